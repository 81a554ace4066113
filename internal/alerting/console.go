package alerting

import (
	"context"
	"log/slog"
)

// ConsoleAlerter logs alerts through slog. Used in paper runs and tests.
type ConsoleAlerter struct {
	logger *slog.Logger
}

// NewConsoleAlerter creates a new console alerter.
func NewConsoleAlerter(logger *slog.Logger) *ConsoleAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleAlerter{logger: logger.With("component", "alert")}
}

// Name returns the name of the alerter.
func (c *ConsoleAlerter) Name() string {
	return "console"
}

// Alert logs the alert at a level matching its severity.
func (c *ConsoleAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	attrs := append([]any{"severity", severity.String()}, fields...)

	level := slog.LevelInfo
	switch severity {
	case SeverityCritical:
		level = slog.LevelError
	case SeverityHigh, SeverityWarning:
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, message, attrs...)

	return nil
}
