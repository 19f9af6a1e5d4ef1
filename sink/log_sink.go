package sink

import (
	"context"
	"log/slog"
)

// LogSink writes each record as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink { return &LogSink{logger: logger} }

func (l *LogSink) Consume(ctx context.Context, rec Record) error {
	if l.logger == nil {
		return nil
	}
	l.logger.InfoContext(ctx, "cycle",
		"session_id", rec.SessionID,
		"cycle_id", rec.CycleID,
		"start_s", rec.Start,
		"end_s", rec.End,
		"duration_s", rec.Duration,
		"status", rec.Status,
		"label", rec.Label,
	)
	return nil
}

func (l *LogSink) Close() error { return nil }
