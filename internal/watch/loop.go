package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/catminer/internal/logfields"
)

// Triggers passed to RunFunc.
const (
	TriggerInitial  = "initial"
	TriggerChange   = "change"
	TriggerInterval = "interval"
)

// DefaultDebounce is the quiet period after the last change before a run starts.
const DefaultDebounce = 2 * time.Second

// RunFunc performs one export run. Errors are logged; they do not end the loop.
type RunFunc func(ctx context.Context, trigger string) error

// Options configure a Loop.
type Options struct {
	Root         string
	ExcludeDirs  []string // ignored subtrees, e.g. an output directory inside the input root
	ExcludeFiles []string // ignored path prefixes, e.g. the skip cache and its lock
	Debounce     time.Duration
	Interval     time.Duration // 0 disables periodic runs
	Logger       *slog.Logger
}

// Loop serializes runs requested by the initial start, input changes and
// the interval scheduler.
type Loop struct {
	run  RunFunc
	opts Options
	log  *slog.Logger

	mu       sync.Mutex // held for the duration of a run
	requests chan string
	runs     atomic.Int64
}

// New validates opts and creates a Loop.
func New(run RunFunc, opts Options) (*Loop, error) {
	if run == nil {
		return nil, errors.New("watch loop requires a run function")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", root)
	}
	opts.Root = root
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loop{run: run, opts: opts, log: opts.Logger, requests: make(chan string, 1)}, nil
}

// RunNow performs a run immediately, waiting for any run in progress.
func (l *Loop) RunNow(ctx context.Context, trigger string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.runs.Add(1)
	start := time.Now()
	l.log.Info("Watch run starting", logfields.Trigger(trigger), logfields.Count(int(n)))
	err := l.run(ctx, trigger)
	if err != nil {
		l.log.Error("Watch run failed", logfields.Trigger(trigger), logfields.Error(err), logfields.Duration(time.Since(start)))
	} else {
		l.log.Info("Watch run finished", logfields.Trigger(trigger), logfields.Duration(time.Since(start)))
	}
	return err
}

// Runs is the number of runs started so far.
func (l *Loop) Runs() int { return int(l.runs.Load()) }

// request queues a run; it is a no-op when one is already pending.
func (l *Loop) request(trigger string) {
	select {
	case l.requests <- trigger:
	default:
	}
}

// Serve performs the initial run, then runs on demand until ctx is done.
func (l *Loop) Serve(ctx context.Context) error {
	_ = l.RunNow(ctx, TriggerInitial)
	if ctx.Err() != nil {
		return nil
	}

	tw, err := newTreeWatcher(l.opts.Root, l.opts.ExcludeDirs, l.opts.ExcludeFiles, l.log)
	if err != nil {
		return err
	}
	defer func() { _ = tw.close() }()

	changes := make(chan struct{}, 1)
	go tw.loop(ctx, func(string) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	go l.debounce(ctx, changes)

	if l.opts.Interval > 0 {
		sched, err := NewScheduler()
		if err != nil {
			return err
		}
		if _, err := sched.ScheduleEvery("catminer-export", l.opts.Interval, func() { l.request(TriggerInterval) }); err != nil {
			_ = sched.Stop()
			return err
		}
		sched.Start()
		defer func() { _ = sched.Stop() }()
	}

	l.log.Info("Watching for changes", logfields.Path(l.opts.Root), slog.Duration("interval", l.opts.Interval))
	for {
		select {
		case <-ctx.Done():
			l.log.Info("Watch stopped", logfields.Count(l.Runs()))
			return nil
		case trigger := <-l.requests:
			_ = l.RunNow(ctx, trigger)
		}
	}
}

// debounce requests a change run once no change arrived for the debounce period.
func (l *Loop) debounce(ctx context.Context, changes <-chan struct{}) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-changes:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(l.opts.Debounce, func() { l.request(TriggerChange) })
		}
	}
}
