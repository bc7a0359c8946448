// Package log provides the shared slog setup: component-scoped loggers and
// the field name constants used across the ledger services.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the default text handler at the given level and returns
// the root logger.
func Setup(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// ForComponent returns a logger carrying the component attribute.
func ForComponent(component string) *slog.Logger {
	return slog.Default().With(FieldComponent, component)
}
