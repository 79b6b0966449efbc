// Package aggregator converts the ordered chain event stream into
// deterministic, idempotent mutations of the derived-state store.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sunset-protocol/sunset-indexer/internal/adapter"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/logger"
	"github.com/sunset-protocol/sunset-indexer/internal/store"
)

// Aggregator applies protocol events to the store. Events for the same token
// are serialized through a per-token lock; events for different tokens may be
// applied concurrently.
type Aggregator struct {
	store store.Store
	json  adapter.JSON

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a new aggregator backed by the given store
func New(s store.Store, j adapter.JSON) *Aggregator {
	return &Aggregator{
		store: s,
		json:  j,
		locks: make(map[string]*sync.Mutex),
	}
}

// Apply validates and applies a single event.
//
// Returns domain.ErrMalformedEvent for structurally invalid events,
// domain.ErrDuplicateEvent for already-applied keys, and
// domain.ErrInvariantViolation for events contradicting current state. All
// three are expected anomalies of an at-least-once upstream; the caller
// decides acknowledgement, the store stays in its last-known-good state.
func (a *Aggregator) Apply(ctx context.Context, e *domain.ProtocolEvent) error {
	if e == nil || !e.Valid() {
		return fmt.Errorf("%w: failed structural validation", domain.ErrMalformedEvent)
	}

	token := domain.NormalizeAddress(e.Token)

	// Single writer per token
	lock := a.tokenLock(token)
	lock.Lock()
	defer lock.Unlock()

	processed, err := a.store.IsEventProcessed(ctx, e.Key())
	if err != nil {
		return fmt.Errorf("failed to check event key: %w", err)
	}
	if processed {
		logger.DebugCtx(ctx, "skipping already processed event",
			zap.String("tx_hash", e.TxHash),
			zap.Uint("log_index", e.LogIndex))
		return domain.ErrDuplicateEvent
	}

	project, err := a.store.GetProject(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	hasClaimed := false
	if e.EventType == domain.EventTypeClaimed {
		claim, err := a.store.GetClaim(ctx, token, domain.NormalizeAddress(e.Params.Holder))
		if err != nil {
			return fmt.Errorf("failed to load claim: %w", err)
		}
		hasClaimed = claim != nil
	}

	raw, err := a.json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrMalformedEvent, err)
	}

	m, err := Transition(project, hasClaimed, e, raw)
	if err != nil {
		if errors.Is(err, domain.ErrInvariantViolation) {
			logger.WarnCtx(ctx, "skipping out-of-invariant event",
				zap.String("token", token),
				zap.String("event_type", string(e.EventType)),
				zap.String("tx_hash", e.TxHash),
				zap.Uint("log_index", e.LogIndex),
				zap.Error(err))
		}
		return err
	}

	if err := a.store.ApplyMutation(ctx, m); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			// Lost the race to another applier; the event is in
			return err
		}
		return fmt.Errorf("failed to apply mutation: %w", err)
	}

	logger.DebugCtx(ctx, "applied event",
		zap.String("token", token),
		zap.String("event_type", string(e.EventType)),
		zap.Uint64("block_number", e.BlockNumber))

	return nil
}

func (a *Aggregator) tokenLock(token string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, ok := a.locks[token]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[token] = lock
	}
	return lock
}
