package passage

import (
	"context"
	"log/slog"
)

// discardHandler drops all log records. Engines default to it so that
// logging never becomes a side channel of the operation contract.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// NopLogger returns a logger that discards everything.
func NopLogger() *slog.Logger {
	return slog.New(discardHandler{})
}
