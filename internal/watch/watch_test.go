package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	triggers []string
}

func (r *recorder) run(_ context.Context, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
	return nil
}

func (r *recorder) count(trigger string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.triggers {
		if t == trigger {
			n++
		}
	}
	return n
}

func serve(t *testing.T, l *Loop) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after cancel")
		}
	})
}

func TestScheduleEvery(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	_, err = s.ScheduleEvery("bad", 0, func() {})
	require.Error(t, err)

	var ticks atomic.Int32
	id, err := s.ScheduleEvery("tick", 20*time.Millisecond, func() { ticks.Add(1) })
	require.NoError(t, err)
	require.NotEmpty(t, id)
	s.Start()
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Options{Root: t.TempDir()})
	assert.Error(t, err)

	_, err = New(func(context.Context, string) error { return nil }, Options{Root: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = New(func(context.Context, string) error { return nil }, Options{Root: file})
	assert.Error(t, err)
}

func TestInitialRunThenChange(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	l, err := New(rec.run, Options{Root: root, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	serve(t, l)

	require.Eventually(t, func() bool { return rec.count(TriggerInitial) == 1 }, 5*time.Second, 10*time.Millisecond)
	// Give the watcher a moment to register after the initial run.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.CATPart"), []byte("a"), 0o600))
	require.Eventually(t, func() bool { return rec.count(TriggerChange) >= 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestNewSubdirectoriesAreWatched(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	l, err := New(rec.run, Options{Root: root, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	serve(t, l)
	require.Eventually(t, func() bool { return rec.count(TriggerInitial) == 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o750))
	require.Eventually(t, func() bool { return rec.count(TriggerChange) == 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.CATPart"), []byte("b"), 0o600))
	require.Eventually(t, func() bool { return rec.count(TriggerChange) >= 2 }, 5*time.Second, 20*time.Millisecond)
}

func TestExcludedAndHiddenPathsDoNotTrigger(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	require.NoError(t, os.Mkdir(out, 0o750))
	cache := filepath.Join(root, "cache.json")
	rec := &recorder{}
	l, err := New(rec.run, Options{
		Root:         root,
		ExcludeDirs:  []string{out},
		ExcludeFiles: []string{cache},
		Debounce:     20 * time.Millisecond,
	})
	require.NoError(t, err)
	serve(t, l)
	require.Eventually(t, func() bool { return rec.count(TriggerInitial) == 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(out, "a.xml"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(cache, []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(cache+".lock", nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("h"), 0o600))

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, rec.count(TriggerChange))
}

func TestIntervalRuns(t *testing.T) {
	rec := &recorder{}
	l, err := New(rec.run, Options{Root: t.TempDir(), Interval: 30 * time.Millisecond})
	require.NoError(t, err)
	serve(t, l)

	require.Eventually(t, func() bool { return rec.count(TriggerInterval) >= 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestRunsNeverOverlap(t *testing.T) {
	var active, maxActive atomic.Int32
	run := func(context.Context, string) error {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	}
	l, err := New(run, Options{Root: t.TempDir()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.RunNow(context.Background(), TriggerChange)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, 8, l.Runs())
}

func TestRunErrorsDoNotEndTheLoop(t *testing.T) {
	var calls atomic.Int32
	run := func(context.Context, string) error {
		calls.Add(1)
		return errors.New("export failed")
	}
	l, err := New(run, Options{Root: t.TempDir(), Interval: 20 * time.Millisecond})
	require.NoError(t, err)
	serve(t, l)

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 5*time.Second, 10*time.Millisecond)
}

func TestPendingRequestsCoalesce(t *testing.T) {
	l, err := New(func(context.Context, string) error { return nil }, Options{Root: t.TempDir()})
	require.NoError(t, err)

	l.request(TriggerChange)
	l.request(TriggerInterval)
	l.request(TriggerChange)
	assert.Len(t, l.requests, 1)
	assert.Equal(t, TriggerChange, <-l.requests)
}
