package indexer

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunset-protocol/sunset-indexer/internal/adapter"
	"github.com/sunset-protocol/sunset-indexer/internal/aggregator"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/logger"
	"github.com/sunset-protocol/sunset-indexer/internal/store"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

const (
	testToken = "0x1111111111111111111111111111111111111111"
	testOwner = "0x2222222222222222222222222222222222222222"
)

// fakeMessage records which acknowledgement path was taken
type fakeMessage struct {
	data   []byte
	acked  bool
	naked  bool
	termed bool
}

func (m *fakeMessage) Data() []byte { return m.data }

func (m *fakeMessage) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: 1}, nil
}

func (m *fakeMessage) Ack() error  { m.acked = true; return nil }
func (m *fakeMessage) Nak() error  { m.naked = true; return nil }
func (m *fakeMessage) Term() error { m.termed = true; return nil }

func newTestIndexer() (*indexer, store.Store) {
	s := store.NewMemoryStore()
	jsonAdapter := adapter.NewJSON()
	return &indexer{
		aggregator: aggregator.New(s, jsonAdapter),
		json:       jsonAdapter,
	}, s
}

func registerEvent() *domain.ProtocolEvent {
	return &domain.ProtocolEvent{
		Chain:     domain.ChainBaseMainnet,
		Contract:  domain.ContractRegistry,
		EventType: domain.EventTypeProjectRegistered,
		Token:     testToken,
		Params: domain.EventParams{
			Owner:       testOwner,
			FeeSplitter: testOwner,
			Tier:        domain.TierStandard,
		},
		TxHash:      "0xabc0000000000000000000000000000000000000000000000000000000000001",
		LogIndex:    0,
		BlockNumber: 100,
		Timestamp:   time.Unix(1700000000, 0).UTC(),
	}
}

func messageFor(t *testing.T, jsonAdapter adapter.JSON, event *domain.ProtocolEvent) *fakeMessage {
	t.Helper()
	data, err := jsonAdapter.Marshal(event)
	require.NoError(t, err)
	return &fakeMessage{data: data}
}

func TestHandleMessage_AcksAppliedEvent(t *testing.T) {
	idx, s := newTestIndexer()
	msg := messageFor(t, idx.json, registerEvent())

	idx.handleMessage(context.Background(), msg)

	assert.True(t, msg.acked)
	assert.False(t, msg.naked)
	assert.False(t, msg.termed)

	project, err := s.GetProject(context.Background(), testToken)
	require.NoError(t, err)
	require.NotNil(t, project)
	assert.Equal(t, testOwner, project.Owner)
}

func TestHandleMessage_AcksDuplicate(t *testing.T) {
	idx, _ := newTestIndexer()
	event := registerEvent()

	first := messageFor(t, idx.json, event)
	idx.handleMessage(context.Background(), first)
	require.True(t, first.acked)

	// Redelivery of the same event is acknowledged, not retried
	second := messageFor(t, idx.json, event)
	idx.handleMessage(context.Background(), second)
	assert.True(t, second.acked)
	assert.False(t, second.naked)
}

func TestHandleMessage_AcksInvariantViolation(t *testing.T) {
	idx, _ := newTestIndexer()

	// Execute without a prior announcement contradicts the state machine
	event := registerEvent()
	event.EventType = domain.EventTypeSunsetExecuted
	event.Params = domain.EventParams{ExecutedBy: testOwner}
	msg := messageFor(t, idx.json, event)

	idx.handleMessage(context.Background(), msg)

	assert.True(t, msg.acked)
	assert.False(t, msg.termed)
}

func TestHandleMessage_TermsMalformedEvent(t *testing.T) {
	idx, _ := newTestIndexer()

	event := registerEvent()
	event.Token = "not-an-address"
	msg := messageFor(t, idx.json, event)

	idx.handleMessage(context.Background(), msg)

	assert.True(t, msg.termed)
	assert.False(t, msg.acked)
	assert.False(t, msg.naked)
}

func TestHandleMessage_TermsUnparseablePayload(t *testing.T) {
	idx, _ := newTestIndexer()
	msg := &fakeMessage{data: []byte("not json")}

	idx.handleMessage(context.Background(), msg)

	assert.True(t, msg.termed)
	assert.False(t, msg.acked)
}

func TestHandleMessage_NaksTransientFailure(t *testing.T) {
	s := &failingStore{Store: store.NewMemoryStore()}
	jsonAdapter := adapter.NewJSON()
	idx := &indexer{
		aggregator: aggregator.New(s, jsonAdapter),
		json:       jsonAdapter,
	}
	msg := messageFor(t, jsonAdapter, registerEvent())

	idx.handleMessage(context.Background(), msg)

	assert.True(t, msg.naked)
	assert.False(t, msg.acked)
	assert.False(t, msg.termed)
}

// failingStore simulates a database outage
type failingStore struct {
	store.Store
}

func (s *failingStore) IsEventProcessed(_ context.Context, _ domain.EventKey) (bool, error) {
	return false, assert.AnError
}
