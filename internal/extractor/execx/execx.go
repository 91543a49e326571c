// Package execx reaches the Document Extractor through a helper command.
// The helper is invoked once per document as
//
//	<command> <args...> extract --path <file> [--active-document]
//
// and prints the document tree as JSON on stdout.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"git.home.luguber.info/inful/catminer/internal/document"
	"git.home.luguber.info/inful/catminer/internal/extractor"
	"git.home.luguber.info/inful/catminer/internal/logfields"
)

// Extractor runs the helper command.
type Extractor struct {
	command string
	args    []string
	timeout time.Duration
	env     []string
}

var _ extractor.Extractor = (*Extractor)(nil)

// New creates an exec extractor. A zero timeout disables the per-document limit.
func New(command string, args []string, timeout time.Duration) *Extractor {
	return &Extractor{command: command, args: append([]string(nil), args...), timeout: timeout}
}

// WithEnv appends environment variables passed to the helper.
func (e *Extractor) WithEnv(env ...string) *Extractor {
	e.env = append(e.env, env...)
	return e
}

// Open checks that the document is readable. The helper itself is started
// by Extract.
func (e *Extractor) Open(ctx context.Context, path string) (extractor.Handle, error) {
	if err := ctx.Err(); err != nil {
		return extractor.Handle{}, extractor.Wrap(err, "open", path)
	}
	f, err := os.Open(path) // #nosec G304 -- candidate discovered by the walker
	if err != nil {
		return extractor.Handle{}, extractor.Wrap(err, "open", path)
	}
	_ = f.Close()
	return extractor.Handle{ID: path, Path: path}, nil
}

// Extract runs the helper and decodes its output.
func (e *Extractor) Extract(ctx context.Context, h extractor.Handle, activeDocumentOnly bool) (*document.Tree, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), e.args...), "extract", "--path", h.Path)
	if activeDocumentOnly {
		args = append(args, "--active-document")
	}

	// #nosec G204 -- helper command is operator configuration
	cmd := exec.CommandContext(ctx, e.command, args...)
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, extractor.Wrap(fmt.Errorf("%w: %w", ctxErr, err), "extract", h.Path)
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, extractor.Wrap(fmt.Errorf("%s exited %d: %s", e.command, ee.ExitCode(), bytes.TrimSpace(stderr.Bytes())), "extract", h.Path)
		}
		return nil, extractor.Wrap(err, "extract", h.Path)
	}
	slog.Debug("Helper extraction finished", logfields.Path(h.Path), logfields.Duration(time.Since(start)))

	tree, err := document.Parse(out)
	if err != nil {
		return nil, extractor.Wrap(err, "decode", h.Path)
	}
	return tree, nil
}

// Close is a no-op; the helper exits after each extraction.
func (e *Extractor) Close(context.Context, extractor.Handle) error { return nil }
