/*
 * nucleus - Wrapper for slog
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package logging supplies the nucleus's slog handler: one line per
// record, TOD-stamped; warnings and errors are always echoed to stderr,
// and every record is when the handler is built with debug set, so a
// hung dispatch loop always leaves a trail on the console even when
// file logging is configured.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler is a minimal single-line slog.Handler.
type Handler struct {
	out   io.Writer
	inner slog.Handler
	mu    *sync.Mutex
	debug bool
	attrs []slog.Attr
}

var _ slog.Handler = (*Handler)(nil)

// New returns a Handler writing to out. When debug is true, every
// record (not just warnings and above) is additionally echoed to stderr.
func New(out io.Writer, opts *slog.HandlerOptions, debug bool) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		out:   out,
		inner: slog.NewTextHandler(out, opts),
		mu:    &sync.Mutex{},
		debug: debug,
	}
}

// NewDefault returns a Handler at Info level writing to stderr, for
// callers that have not loaded a boot manifest yet.
func NewDefault() *Handler {
	return New(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		out:   h.out,
		inner: h.inner.WithAttrs(attrs),
		mu:    h.mu,
		debug: h.debug,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, inner: h.inner.WithGroup(name), mu: h.mu, debug: h.debug, attrs: h.attrs}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	fields := []string{r.Time.Format("2006-01-02T15:04:05.000000"), r.Level.String(), r.Message}
	for _, a := range h.attrs {
		fields = append(fields, fmt.Sprintf("%s=%s", a.Key, a.Value))
	}
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, fmt.Sprintf("%s=%s", a.Key, a.Value))
		return true
	})
	line := strings.Join(fields, " ") + "\n"

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write([]byte(line))
	}
	if (h.debug || r.Level >= slog.LevelWarn) && h.out != os.Stderr {
		_, _ = os.Stderr.Write([]byte(line))
	}
	return err
}
