package messaging

import (
	"context"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
)

// EventHandler is called when a new protocol event is received
type EventHandler func(event *domain.ProtocolEvent) error

// Subscriber defines the interface for subscribing to protocol contract events
type Subscriber interface {
	// SubscribeEvents subscribes to Registry and Vault contract events.
	// fromBlock is the starting point for the subscription (0 for latest);
	// handler is invoked once per parsed event.
	SubscribeEvents(ctx context.Context, fromBlock uint64, handler EventHandler) error

	// GetLatestBlock returns the latest block number
	GetLatestBlock(ctx context.Context) (uint64, error)

	// Close closes the connection and cleans up resources
	Close()
}
