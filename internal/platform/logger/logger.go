package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Handlers attach request
// scoped attributes (request_id, state) at each call site.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
