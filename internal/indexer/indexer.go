// Package indexer consumes protocol events from JetStream and feeds them to
// the aggregator.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/sunset-protocol/sunset-indexer/internal/adapter"
	"github.com/sunset-protocol/sunset-indexer/internal/aggregator"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/logger"
)

// Config holds the configuration for the event indexer
type Config struct {
	URL            string
	StreamName     string
	ConsumerName   string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWaitTimeout time.Duration
	MaxDeliver     int
}

// Indexer defines the interface for the event indexer
type Indexer interface {
	// Run starts consuming events until the context is cancelled
	Run(ctx context.Context) error
	// Close closes the indexer and cleans up resources
	Close()
}

type indexer struct {
	nc         adapter.NatsConn
	js         adapter.JetStream
	aggregator *aggregator.Aggregator
	json       adapter.JSON
	config     Config
}

// NewIndexer creates a new event indexer
func NewIndexer(
	cfg Config,
	natsJS adapter.NatsJetStream,
	agg *aggregator.Aggregator,
	jsonAdapter adapter.JSON,
) (Indexer, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &indexer{
		nc:         nc,
		js:         js,
		aggregator: agg,
		json:       jsonAdapter,
		config:     cfg,
	}, nil
}

// Run starts consuming events until the context is cancelled
func (i *indexer) Run(ctx context.Context) error {
	logger.Info("Starting event indexer",
		zap.String("stream", i.config.StreamName),
		zap.String("consumer", i.config.ConsumerName))

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       i.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       i.config.AckWaitTimeout,
		MaxDeliver:    i.config.MaxDeliver,
		FilterSubject: "sunset.>",
	}

	consumer, err := i.js.CreateOrUpdateConsumer(ctx, i.config.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	consumerInfo, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.Info("Consumer created/retrieved", zap.String("consumer", consumerInfo.Name))

	// Messages are handled on a single channel and applied in delivery order;
	// the aggregator's per-token locks only matter when multiple indexer
	// processes run against the same store.
	msgChan := make(chan adapter.Message, 100)
	sub, err := consumer.Consume(func(msg adapter.Message) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	logger.Info("Started consuming messages")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down event indexer")
			return ctx.Err()
		case msg := <-msgChan:
			i.handleMessage(ctx, msg)
		}
	}
}

// handleMessage applies one delivery. Permanent failures (unparseable or
// malformed events) are terminated, expected anomalies (duplicates, invariant
// violations) are acknowledged, and transient failures are NAKed for retry.
func (i *indexer) handleMessage(ctx context.Context, msg adapter.Message) {
	metadata, _ := msg.Metadata()

	var event domain.ProtocolEvent
	if err := i.json.Unmarshal(msg.Data(), &event); err != nil {
		logger.Error(err, zap.String("message", "Failed to unmarshal event"))
		if err := msg.Term(); err != nil {
			logger.Error(err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	fields := []zap.Field{
		zap.String("eventType", string(event.EventType)),
		zap.String("token", event.Token),
		zap.String("txHash", event.TxHash),
		zap.Uint("logIndex", event.LogIndex),
	}
	if metadata != nil {
		fields = append(fields, zap.Uint64("deliveryCount", metadata.NumDelivered))
	}
	logger.Debug("Received event", fields...)

	err := i.aggregator.Apply(ctx, &event)
	switch {
	case err == nil,
		errors.Is(err, domain.ErrDuplicateEvent),
		errors.Is(err, domain.ErrInvariantViolation):
		// Applied, or a known skip; redelivery would not change the outcome
		if err := msg.Ack(); err != nil {
			logger.Error(err, zap.String("message", "Failed to ACK message"))
		}
	case errors.Is(err, domain.ErrMalformedEvent):
		logger.Error(err, zap.String("message", "Terminating malformed event"))
		if err := msg.Term(); err != nil {
			logger.Error(err, zap.String("message", "Failed to terminate message"))
		}
	default:
		logger.Error(err, zap.String("message", "Failed to apply event, will retry"))
		if err := msg.Nak(); err != nil {
			logger.Error(err, zap.String("message", "Failed to NAK message"))
		}
	}
}

// Close closes the indexer and cleans up resources
func (i *indexer) Close() {
	if i.nc == nil {
		return
	}

	i.nc.Close()
}
