package ports

import "context"

// EventPublisher delivers ledger mirror events to the external chain
// writer. Implementations must be safe for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte) error
}
