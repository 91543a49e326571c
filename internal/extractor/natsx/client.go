// Package natsx reaches the Document Extractor over NATS request/reply. An
// extraction worker (see Worker) runs next to the CAD host and answers on
// "<subject>.open", "<subject>.extract" and "<subject>.close".
package natsx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/catminer/internal/document"
	"git.home.luguber.info/inful/catminer/internal/extractor"
	"git.home.luguber.info/inful/catminer/internal/logfields"
	"git.home.luguber.info/inful/catminer/internal/retry"
)

// Client is an extractor.Extractor backed by a NATS connection.
type Client struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
	retry   retry.Policy
}

var _ extractor.Extractor = (*Client)(nil)

// Connect dials url and returns a client for the worker on subject.
func Connect(url, subject string, timeout time.Duration, opts ...nats.Option) (*Client, error) {
	opts = append([]nats.Option{nats.Name("catminer")}, opts...)
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, extractor.Wrap(fmt.Errorf("failed to connect to NATS: %w", err), "connect", url)
	}
	slog.Info("Connected to extraction worker", slog.String("url", url), slog.String("subject", subject))
	return NewClient(conn, subject, timeout), nil
}

// NewClient wraps an existing connection.
func NewClient(conn *nats.Conn, subject string, timeout time.Duration) *Client {
	return &Client{conn: conn, subject: subject, timeout: timeout, retry: retry.DefaultPolicy()}
}

// WithRetry sets the policy for requests nobody is subscribed to answer.
func (c *Client) WithRetry(p retry.Policy) *Client {
	c.retry = p
	return c
}

// Disconnect drains and closes the connection.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Drain()
	c.conn = nil
	return err
}

// Open asks the worker to open path in the CAD host.
func (c *Client) Open(ctx context.Context, path string) (extractor.Handle, error) {
	r, err := c.request(ctx, opOpen, openRequest{Path: path})
	if err != nil {
		return extractor.Handle{}, extractor.Wrap(err, opOpen, path)
	}
	if r.Handle == "" {
		return extractor.Handle{}, extractor.Wrap(fmt.Errorf("%w: no handle returned", ErrRemote), opOpen, path)
	}
	return extractor.Handle{ID: r.Handle, Path: path}, nil
}

// Extract asks the worker for the document tree of an open handle.
func (c *Client) Extract(ctx context.Context, h extractor.Handle, activeDocumentOnly bool) (*document.Tree, error) {
	start := time.Now()
	r, err := c.request(ctx, opExtract, handleRequest{Handle: h.ID, Path: h.Path, ActiveDocument: activeDocumentOnly})
	if err != nil {
		return nil, extractor.Wrap(err, opExtract, h.Path)
	}
	tree, err := document.Parse(r.Document)
	if err != nil {
		return nil, extractor.Wrap(err, "decode", h.Path)
	}
	slog.Debug("Worker extraction finished", logfields.Path(h.Path), logfields.Duration(time.Since(start)))
	return tree, nil
}

// Close releases the handle on the worker.
func (c *Client) Close(ctx context.Context, h extractor.Handle) error {
	_, err := c.request(ctx, opClose, handleRequest{Handle: h.ID, Path: h.Path})
	return extractor.Wrap(err, opClose, h.Path)
}

func (c *Client) request(ctx context.Context, op string, payload any) (reply, error) {
	if c.conn == nil {
		return reply{}, nats.ErrConnectionClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return reply{}, err
	}
	var msg *nats.Msg
	// No responders means no worker is subscribed yet, e.g. during a restart.
	err = retry.Do(ctx, c.retry, func(err error) bool { return errors.Is(err, nats.ErrNoResponders) }, func() error {
		rctx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		var rerr error
		msg, rerr = c.conn.RequestWithContext(rctx, subject(c.subject, op), data)
		return rerr
	})
	if err != nil {
		return reply{}, err
	}
	return decodeReply(msg.Data)
}
