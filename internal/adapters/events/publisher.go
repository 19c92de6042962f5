package events

import (
	"context"
	"log/slog"
)

// LoggingPublisher writes ledger mirror events to the structured log
// instead of a broker. Used when no chain writer endpoint is configured.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte) error {
	p.logger.InfoContext(ctx, "ledger event published",
		slog.String("module", "trustengine"),
		slog.String("layer", "events"),
		slog.String("event_type", eventType),
		slog.Int("payload_bytes", len(payload)),
	)
	return nil
}
