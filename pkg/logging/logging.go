// Package logging holds the structured logger shared by every layercam
// package. Nothing is logged until SetLogger installs a real handler.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards everything. Enabled reports false so callers skip
// attribute formatting altogether.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger installs l for all packages. Passing nil restores the silent
// default. Safe for concurrent use.
//
// Levels in use:
//   - [slog.LevelDebug]: per-layer scheduling and entry decisions
//   - [slog.LevelInfo]: operation lifecycle (start, finish, layer counts)
//   - [slog.LevelWarn]: snapped geometry, ignored settings
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
