package adapter

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsConn is the slice of a NATS connection the emitter and indexer need
type NatsConn interface {
	Close()
	ConnectedUrl() string
}

// JetStream publishes events and materializes the durable consumer. Wrapping
// jetstream.JetStream lets tests stand in a fake without a running server.
type JetStream interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
	CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (Consumer, error)
}

// MessageHandler processes one delivered message
type MessageHandler func(msg Message)

// Consumer is a pull consumer on the event stream
type Consumer interface {
	Consume(handler MessageHandler, opts ...jetstream.PullConsumeOpt) (ConsumeContext, error)
	Info(ctx context.Context) (*jetstream.ConsumerInfo, error)
}

// ConsumeContext stops an in-flight consume loop
type ConsumeContext interface {
	Stop()
}

// Message is one delivered stream message with its acknowledgement controls.
// Ack confirms processing, Nak requests redelivery, Term drops it for good.
type Message interface {
	Data() []byte
	Metadata() (*jetstream.MsgMetadata, error)
	Ack() error
	Nak() error
	Term() error
}

// NatsJetStream dials NATS and opens a JetStream context
type NatsJetStream interface {
	Connect(url string, options ...nats.Option) (NatsConn, JetStream, error)
}

type natsJetStream struct{}

// NewNatsJetStream returns the nats.go-backed implementation
func NewNatsJetStream() NatsJetStream {
	return natsJetStream{}
}

func (natsJetStream) Connect(url string, options ...nats.Option) (NatsConn, JetStream, error) {
	nc, err := nats.Connect(url, options...)
	if err != nil {
		return nil, nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	return nc, jetStreamShim{js: js}, nil
}

// jetStreamShim narrows jetstream.JetStream to the JetStream interface above,
// translating the consumer type so callers only see our Consumer.
type jetStreamShim struct {
	js jetstream.JetStream
}

func (s jetStreamShim) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	return s.js.Publish(ctx, subject, data, opts...)
}

func (s jetStreamShim) CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (Consumer, error) {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, stream, cfg)
	if err != nil {
		return nil, err
	}
	return consumerShim{consumer: consumer}, nil
}

type consumerShim struct {
	consumer jetstream.Consumer
}

func (s consumerShim) Consume(handler MessageHandler, opts ...jetstream.PullConsumeOpt) (ConsumeContext, error) {
	return s.consumer.Consume(func(msg jetstream.Msg) {
		handler(msg)
	}, opts...)
}

func (s consumerShim) Info(ctx context.Context) (*jetstream.ConsumerInfo, error) {
	return s.consumer.Info(ctx)
}
