package natsx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/catminer/internal/extractor"
	"git.home.luguber.info/inful/catminer/internal/logfields"
)

// Worker serves an extractor.Extractor on NATS so that a pipeline on
// another machine can reach the CAD host.
type Worker struct {
	ex      extractor.Extractor
	subject string

	mu      sync.Mutex
	handles map[string]extractor.Handle
	subs    []*nats.Subscription
}

// NewWorker creates a worker fronting ex on subject.
func NewWorker(ex extractor.Extractor, subject string) *Worker {
	return &Worker{ex: ex, subject: subject, handles: map[string]extractor.Handle{}}
}

// Serve subscribes to the worker subjects. Requests are handled in a queue
// group so several workers can share a subject.
func (w *Worker) Serve(ctx context.Context, conn *nats.Conn) error {
	for _, op := range []string{opOpen, opExtract, opClose} {
		sub, err := conn.QueueSubscribe(subject(w.subject, op), w.subject, func(msg *nats.Msg) {
			if err := msg.Respond(w.handle(ctx, op, msg.Data)); err != nil {
				slog.Warn("Failed to respond to extraction request", slog.String("op", op), logfields.Error(err))
			}
		})
		if err != nil {
			w.Stop()
			return fmt.Errorf("failed to subscribe to %s: %w", subject(w.subject, op), err)
		}
		w.mu.Lock()
		w.subs = append(w.subs, sub)
		w.mu.Unlock()
	}
	slog.Info("Extraction worker listening", slog.String("subject", w.subject))
	return nil
}

// Stop unsubscribes and closes any handles left open by clients.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.subs {
		_ = s.Unsubscribe()
	}
	w.subs = nil
	for id, h := range w.handles {
		_ = w.ex.Close(context.Background(), h)
		delete(w.handles, id)
	}
}

// handle executes one request and returns the encoded reply.
func (w *Worker) handle(ctx context.Context, op string, data []byte) []byte {
	r := w.dispatch(ctx, op, data)
	out, err := json.Marshal(r)
	if err != nil {
		out, _ = json.Marshal(reply{Error: err.Error()})
	}
	return out
}

func (w *Worker) dispatch(ctx context.Context, op string, data []byte) reply {
	switch op {
	case opOpen:
		var req openRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return reply{Error: err.Error()}
		}
		h, err := w.ex.Open(ctx, req.Path)
		if err != nil {
			return reply{Error: err.Error()}
		}
		id := uuid.NewString()
		w.mu.Lock()
		w.handles[id] = h
		w.mu.Unlock()
		return reply{Handle: id}

	case opExtract, opClose:
		var req handleRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return reply{Error: err.Error()}
		}
		w.mu.Lock()
		h, ok := w.handles[req.Handle]
		if ok && op == opClose {
			delete(w.handles, req.Handle)
		}
		w.mu.Unlock()
		if !ok {
			return reply{Error: fmt.Sprintf("unknown handle %q", req.Handle)}
		}
		if op == opClose {
			if err := w.ex.Close(ctx, h); err != nil {
				return reply{Error: err.Error()}
			}
			return reply{}
		}
		tree, err := w.ex.Extract(ctx, h, req.ActiveDocument)
		if err != nil {
			return reply{Error: err.Error()}
		}
		doc, err := tree.MarshalJSON()
		if err != nil {
			return reply{Error: err.Error()}
		}
		return reply{Document: doc}

	default:
		return reply{Error: "unknown operation " + op}
	}
}

// OpenHandles is the number of sessions clients have not closed.
func (w *Worker) OpenHandles() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.handles)
}
