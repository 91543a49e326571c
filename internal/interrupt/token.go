// Package interrupt implements two-level cooperative cancellation for a run.
// The first stop request is graceful: work in flight finishes and nothing
// new starts. The second is forced: the token's context is cancelled so
// blocking calls return at once.
package interrupt

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Level is how far cancellation has progressed.
type Level int

const (
	None Level = iota
	Graceful
	Forced
)

func (l Level) String() string {
	switch l {
	case Graceful:
		return "graceful"
	case Forced:
		return "forced"
	default:
		return "none"
	}
}

// Token carries stop requests to a run.
type Token struct {
	mu       sync.Mutex
	level    Level
	ctx      context.Context
	cancel   context.CancelFunc
	graceful chan struct{}
}

// New creates a token whose context derives from parent.
func New(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel, graceful: make(chan struct{})}
}

// Stop escalates cancellation by one level and returns the new level.
func (t *Token) Stop() Level {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.level {
	case None:
		t.level = Graceful
		close(t.graceful)
	case Graceful:
		t.level = Forced
		t.cancel()
	}
	return t.level
}

// Level returns the current cancellation level.
func (t *Token) Level() Level {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level
}

// StopRequested reports whether at least a graceful stop was requested.
func (t *Token) StopRequested() bool { return t.Level() >= Graceful }

// Forced reports whether a forced stop was requested.
func (t *Token) Forced() bool { return t.Level() == Forced }

// Context is cancelled on a forced stop or when the parent is cancelled.
func (t *Token) Context() context.Context { return t.ctx }

// StopRequestedChan is closed on the first stop request.
func (t *Token) StopRequestedChan() <-chan struct{} { return t.graceful }

// Release frees the context resources. It does not count as a stop.
func (t *Token) Release() { t.cancel() }

// NotifySignals escalates the token on every SIGINT or SIGTERM until the
// returned function is called.
func (t *Token) NotifySignals() (stop func()) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				level := t.Stop()
				slog.Warn("Stop requested", slog.String("signal", sig.String()), slog.String("level", level.String()))
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
		})
	}
}
