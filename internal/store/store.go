package store

import (
	"context"
	"math/big"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/store/schema"
)

// ProtocolDelta describes how a mutation changes the protocol-wide counters.
// Nil big.Int fields mean no change.
type ProtocolDelta struct {
	Projects  int64
	Active    int64
	Sunset    int64
	Deposited *big.Int
	Claimed   *big.Int
}

// IsZero reports whether the delta changes nothing
func (d ProtocolDelta) IsZero() bool {
	return d.Projects == 0 && d.Active == 0 && d.Sunset == 0 &&
		(d.Deposited == nil || d.Deposited.Sign() == 0) &&
		(d.Claimed == nil || d.Claimed.Sign() == 0)
}

// Mutation is the full set of writes derived from one chain event. The store
// applies it atomically together with the event's processed-event key, so a
// redelivered event either fully applies once or is rejected as a duplicate.
type Mutation struct {
	Key       domain.EventKey
	EventType domain.EventType
	Token     string

	// Project is the complete post-event project row to upsert
	Project *schema.Project
	// Appends (at most one of each per event)
	Deposit     *schema.Deposit
	Claim       *schema.Claim
	SunsetEvent *schema.SunsetEvent
	// Protocol counter adjustments
	Protocol ProtocolDelta
}

// Store defines the interface for database operations
type Store interface {
	// GetProject retrieves a project by its token address, nil when not indexed
	GetProject(ctx context.Context, token string) (*schema.Project, error)
	// ListProjects retrieves a page of projects ordered by registration time,
	// together with the total count
	ListProjects(ctx context.Context, limit, offset int) ([]*schema.Project, int64, error)
	// GetProtocol retrieves the singleton protocol counters row, nil when no
	// event has been indexed yet
	GetProtocol(ctx context.Context) (*schema.Protocol, error)
	// GetClaim retrieves a holder's claim for a token, nil when absent
	GetClaim(ctx context.Context, token string, holder string) (*schema.Claim, error)
	// ListDeposits retrieves a token's deposits, newest first
	ListDeposits(ctx context.Context, token string, limit int) ([]*schema.Deposit, error)
	// ListSunsetEvents retrieves a token's sunset lifecycle events, oldest first
	ListSunsetEvents(ctx context.Context, token string) ([]*schema.SunsetEvent, error)
	// IsEventProcessed checks whether an event key was already applied
	IsEventProcessed(ctx context.Context, key domain.EventKey) (bool, error)
	// ApplyMutation applies all writes of a mutation in a single transaction.
	// Returns domain.ErrDuplicateEvent if the event key was already applied.
	ApplyMutation(ctx context.Context, m *Mutation) error
	// GetBlockCursor retrieves the last processed block number for a chain
	GetBlockCursor(ctx context.Context, chain string) (uint64, error)
	// SetBlockCursor stores the last processed block number for a chain
	SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error
}
