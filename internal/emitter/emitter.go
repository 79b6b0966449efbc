// Package emitter runs the chain-to-queue pipeline: it subscribes to
// Registry and Vault logs, publishes the normalized events to JetStream, and
// checkpoints a block cursor so restarts resume where they left off.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/sunset-protocol/sunset-indexer/internal/adapter"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/logger"
	"github.com/sunset-protocol/sunset-indexer/internal/messaging"
	"github.com/sunset-protocol/sunset-indexer/internal/store"
)

// Config holds the configuration for the event emitter
type Config struct {
	ChainID         domain.Chain
	StartBlock      uint64
	CursorSaveFreq  uint64        // Save cursor every N blocks
	CursorSaveDelay time.Duration // Or save cursor every N seconds
}

// Emitter defines the interface for the event emitter
type Emitter interface {
	// Run starts the event emitter
	Run(ctx context.Context) error
	// Close closes the emitter and cleans up resources
	Close()
}

type emitter struct {
	subscriber messaging.Subscriber
	publisher  messaging.Publisher
	cursors    store.CursorStore
	config     Config
	clock      adapter.Clock
}

// NewEmitter creates a new event emitter
func NewEmitter(
	sub messaging.Subscriber,
	pub messaging.Publisher,
	cursors store.CursorStore,
	cfg Config,
	clock adapter.Clock,
) Emitter {
	if cfg.CursorSaveFreq == 0 {
		cfg.CursorSaveFreq = 10
	}
	if cfg.CursorSaveDelay == 0 {
		cfg.CursorSaveDelay = 30 * time.Second
	}

	return &emitter{
		subscriber: sub,
		publisher:  pub,
		cursors:    cursors,
		config:     cfg,
		clock:      clock,
	}
}

// Run starts the event emitter. The subscription is re-established with
// exponential backoff on transient failures; only context cancellation ends
// the loop.
func (e *emitter) Run(ctx context.Context) error {
	startBlock, err := e.resolveStartBlock(ctx)
	if err != nil {
		return err
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(0), // retry forever
	), ctx)

	return backoff.Retry(func() error {
		err := e.subscribe(ctx, startBlock)
		if err == nil || errors.Is(err, context.Canceled) {
			return backoff.Permanent(err)
		}

		logger.WarnCtx(ctx, "subscription dropped, reconnecting",
			zap.String("chain", string(e.config.ChainID)),
			zap.Error(err))

		// Resume from the checkpoint rather than re-reading published blocks
		if cursor, cursorErr := e.cursors.GetBlockCursor(ctx, string(e.config.ChainID)); cursorErr == nil && cursor > 0 {
			startBlock = cursor + 1
		}
		return err
	}, policy)
}

// resolveStartBlock picks the first block to subscribe from: explicit config,
// then the saved cursor, then the chain head.
func (e *emitter) resolveStartBlock(ctx context.Context) (uint64, error) {
	if e.config.StartBlock > 0 {
		logger.Info("Starting from configured block",
			zap.String("chain", string(e.config.ChainID)),
			zap.Uint64("block", e.config.StartBlock))
		return e.config.StartBlock, nil
	}

	lastBlock, err := e.cursors.GetBlockCursor(ctx, string(e.config.ChainID))
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}
	if lastBlock > 0 {
		logger.Info("Resuming from last processed block",
			zap.String("chain", string(e.config.ChainID)),
			zap.Uint64("block", lastBlock+1))
		return lastBlock + 1, nil
	}

	latestBlock, err := e.subscriber.GetLatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	logger.Info("Starting from latest block",
		zap.String("chain", string(e.config.ChainID)),
		zap.Uint64("block", latestBlock))
	return latestBlock, nil
}

func (e *emitter) subscribe(ctx context.Context, startBlock uint64) error {
	logger.Info("Starting event subscription",
		zap.String("chain", string(e.config.ChainID)),
		zap.Uint64("from_block", startBlock))

	lastSavedBlock := uint64(0)
	lastSaveTime := e.clock.Now()

	handler := func(event *domain.ProtocolEvent) error {
		if err := e.publisher.PublishEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.TxHash, err)
		}

		// Save cursor periodically (every N blocks or N seconds)
		shouldSave := event.BlockNumber-lastSavedBlock >= e.config.CursorSaveFreq ||
			e.clock.Since(lastSaveTime) >= e.config.CursorSaveDelay

		if shouldSave {
			if err := e.cursors.SetBlockCursor(ctx, string(e.config.ChainID), event.BlockNumber); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("message", "Failed to save block cursor"))
			} else {
				lastSavedBlock = event.BlockNumber
				lastSaveTime = e.clock.Now()
			}
		}

		return nil
	}

	return e.subscriber.SubscribeEvents(ctx, startBlock, handler)
}

// Close closes the emitter and cleans up resources
func (e *emitter) Close() {
	e.subscriber.Close()
	e.publisher.Close()
}
