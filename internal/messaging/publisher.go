package messaging

import (
	"context"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
)

// Publisher defines the interface for publishing events to the message queue
type Publisher interface {
	// PublishEvent publishes a protocol event to the message broker
	PublishEvent(ctx context.Context, event *domain.ProtocolEvent) error
	// Close closes the connection
	Close()
}
