package audit

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to a slog.Logger at info level.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("component", "audit")}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	attrs := []any{
		"type", string(event.Type),
		"user_id", event.UserID.String(),
		"timestamp", event.Timestamp,
	}
	if event.Method != "" {
		attrs = append(attrs, "method", event.Method, "uri", event.URI)
	}
	if event.Message != "" {
		attrs = append(attrs, "message", event.Message)
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, "metadata", event.Metadata)
	}
	p.logger.InfoContext(ctx, "audit event", attrs...)
	return nil
}
