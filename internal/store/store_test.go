package store

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/store/schema"
)

const (
	testToken       = "0x1111111111111111111111111111111111111111"
	testOtherToken  = "0x4444444444444444444444444444444444444444"
	testOwner       = "0x2222222222222222222222222222222222222222"
	testHolder      = "0x3333333333333333333333333333333333333333"
	testFeeSplitter = "0x5555555555555555555555555555555555555555"
)

var testBaseTime = time.Unix(1700000000, 0).UTC()

// =============================================================================
// Test Data Builders
// =============================================================================

// eventKey builds a unique idempotency key from a sequence number
func eventKey(seq int) domain.EventKey {
	return domain.EventKey{
		TxHash:   fmt.Sprintf("0x%064x", seq+1),
		LogIndex: 0,
	}
}

// buildTestProject creates a registered project row
func buildTestProject(token string, registeredAt time.Time) *schema.Project {
	return &schema.Project{
		Token:          token,
		Chain:          domain.ChainBaseMainnet,
		Owner:          testOwner,
		FeeSplitter:    testFeeSplitter,
		Tier:           domain.TierStandard,
		Active:         true,
		RegisteredAt:   registeredAt,
		TotalDeposited: "0",
		ActualBalance:  "0",
		SunsetState:    domain.SunsetStateActive,
	}
}

// buildRegistrationMutation creates the full mutation a registration event produces
func buildRegistrationMutation(seq int, token string, registeredAt time.Time) *Mutation {
	key := eventKey(seq)
	return &Mutation{
		Key:       key,
		EventType: domain.EventTypeProjectRegistered,
		Token:     token,
		Project:   buildTestProject(token, registeredAt),
		Protocol:  ProtocolDelta{Projects: 1, Active: 1},
	}
}

// buildDepositMutation creates a vault deposit mutation for an existing project
func buildDepositMutation(seq int, project *schema.Project, amount string, blockNumber uint64) *Mutation {
	key := eventKey(seq)
	newBalance := amount
	updated := *project
	updated.TotalDeposited = addAmount(updated.TotalDeposited, domain.ParseAmount(amount))
	updated.DepositCount++

	return &Mutation{
		Key:       key,
		EventType: domain.EventTypeDeposited,
		Token:     project.Token,
		Project:   &updated,
		Deposit: &schema.Deposit{
			Token:       project.Token,
			Source:      schema.DepositSourceVault,
			Amount:      amount,
			NewBalance:  &newBalance,
			Meaningful:  true,
			TxHash:      key.TxHash,
			LogIndex:    key.LogIndex,
			BlockNumber: blockNumber,
			Timestamp:   testBaseTime,
		},
		Protocol: ProtocolDelta{Deposited: domain.ParseAmount(amount)},
	}
}

// =============================================================================
// Test: ApplyMutation
// =============================================================================

func testApplyMutationRegistersProject(t *testing.T, store Store) {
	ctx := context.Background()

	m := buildRegistrationMutation(0, testToken, testBaseTime)
	require.NoError(t, store.ApplyMutation(ctx, m))

	project, err := store.GetProject(ctx, testToken)
	require.NoError(t, err)
	require.NotNil(t, project)
	assert.Equal(t, testToken, project.Token)
	assert.Equal(t, testOwner, project.Owner)
	assert.Equal(t, testFeeSplitter, project.FeeSplitter)
	assert.Equal(t, domain.TierStandard, project.Tier)
	assert.True(t, project.Active)
	assert.Equal(t, domain.SunsetStateActive, project.SunsetState)
	assert.True(t, project.RegisteredAt.Equal(testBaseTime))

	processed, err := store.IsEventProcessed(ctx, m.Key)
	require.NoError(t, err)
	assert.True(t, processed)

	protocol, err := store.GetProtocol(ctx)
	require.NoError(t, err)
	require.NotNil(t, protocol)
	assert.Equal(t, int64(1), protocol.TotalProjects)
	assert.Equal(t, int64(1), protocol.ActiveProjects)
	assert.Equal(t, int64(0), protocol.SunsetProjects)
}

func testApplyMutationRejectsDuplicates(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.ApplyMutation(ctx, buildRegistrationMutation(0, testToken, testBaseTime)))
	project, err := store.GetProject(ctx, testToken)
	require.NoError(t, err)

	m := buildDepositMutation(1, project, "1000", 100)
	require.NoError(t, store.ApplyMutation(ctx, m))

	// A redelivery reuses the same event key and must be rejected whole
	replay := buildDepositMutation(1, project, "1000", 100)
	err = store.ApplyMutation(ctx, replay)
	assert.ErrorIs(t, err, domain.ErrDuplicateEvent)

	deposits, err := store.ListDeposits(ctx, testToken, 10)
	require.NoError(t, err)
	assert.Len(t, deposits, 1)

	protocol, err := store.GetProtocol(ctx)
	require.NoError(t, err)
	require.NotNil(t, protocol)
	assert.Equal(t, "1000", protocol.TotalDeposited)
}

func testApplyMutationUpdatesProject(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.ApplyMutation(ctx, buildRegistrationMutation(0, testToken, testBaseTime)))

	project, err := store.GetProject(ctx, testToken)
	require.NoError(t, err)
	require.NoError(t, store.ApplyMutation(ctx, buildDepositMutation(1, project, "500", 100)))

	updated, err := store.GetProject(ctx, testToken)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "500", updated.TotalDeposited)
	assert.Equal(t, int64(1), updated.DepositCount)
}

// =============================================================================
// Test: Deposits
// =============================================================================

func testListDeposits(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.ApplyMutation(ctx, buildRegistrationMutation(0, testToken, testBaseTime)))
	project, err := store.GetProject(ctx, testToken)
	require.NoError(t, err)

	for i, amount := range []string{"100", "200", "300"} {
		require.NoError(t, store.ApplyMutation(ctx, buildDepositMutation(i+1, project, amount, uint64(100+i))))
	}

	t.Run("newest first", func(t *testing.T) {
		deposits, err := store.ListDeposits(ctx, testToken, 10)
		require.NoError(t, err)
		require.Len(t, deposits, 3)
		assert.Equal(t, "300", deposits[0].Amount)
		assert.Equal(t, "100", deposits[2].Amount)
		assert.Equal(t, uint64(102), deposits[0].BlockNumber)
	})

	t.Run("respects limit", func(t *testing.T) {
		deposits, err := store.ListDeposits(ctx, testToken, 2)
		require.NoError(t, err)
		require.Len(t, deposits, 2)
		assert.Equal(t, "300", deposits[0].Amount)
	})

	t.Run("empty for unknown token", func(t *testing.T) {
		deposits, err := store.ListDeposits(ctx, testOtherToken, 10)
		require.NoError(t, err)
		assert.Empty(t, deposits)
	})
}

// =============================================================================
// Test: Claims
// =============================================================================

func testClaims(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.ApplyMutation(ctx, buildRegistrationMutation(0, testToken, testBaseTime)))

	key := eventKey(1)
	m := &Mutation{
		Key:       key,
		EventType: domain.EventTypeClaimed,
		Token:     testToken,
		Claim: &schema.Claim{
			Token:       testToken,
			Holder:      testHolder,
			Amount:      "42",
			TxHash:      key.TxHash,
			LogIndex:    key.LogIndex,
			BlockNumber: 200,
			Timestamp:   testBaseTime,
		},
		Protocol: ProtocolDelta{Claimed: big.NewInt(42)},
	}
	require.NoError(t, store.ApplyMutation(ctx, m))

	claim, err := store.GetClaim(ctx, testToken, testHolder)
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, "42", claim.Amount)
	assert.Equal(t, uint64(200), claim.BlockNumber)

	missing, err := store.GetClaim(ctx, testToken, testOwner)
	require.NoError(t, err)
	assert.Nil(t, missing)

	protocol, err := store.GetProtocol(ctx)
	require.NoError(t, err)
	require.NotNil(t, protocol)
	assert.Equal(t, "42", protocol.TotalClaimed)
}

// =============================================================================
// Test: Sunset Events
// =============================================================================

func testListSunsetEvents(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.ApplyMutation(ctx, buildRegistrationMutation(0, testToken, testBaseTime)))

	announcedKey := eventKey(1)
	executableAt := testBaseTime.Add(7 * 24 * time.Hour)
	reason := "winding down"
	actor := testOwner
	require.NoError(t, store.ApplyMutation(ctx, &Mutation{
		Key:       announcedKey,
		EventType: domain.EventTypeSunsetAnnounced,
		Token:     testToken,
		SunsetEvent: &schema.SunsetEvent{
			Token:        testToken,
			Kind:         schema.SunsetEventKindAnnounced,
			Actor:        &actor,
			ExecutableAt: &executableAt,
			Reason:       &reason,
			TxHash:       announcedKey.TxHash,
			LogIndex:     announcedKey.LogIndex,
			BlockNumber:  300,
			Timestamp:    testBaseTime,
		},
	}))

	executedKey := eventKey(2)
	require.NoError(t, store.ApplyMutation(ctx, &Mutation{
		Key:       executedKey,
		EventType: domain.EventTypeSunsetExecuted,
		Token:     testToken,
		SunsetEvent: &schema.SunsetEvent{
			Token:       testToken,
			Kind:        schema.SunsetEventKindExecuted,
			Actor:       &actor,
			TxHash:      executedKey.TxHash,
			LogIndex:    executedKey.LogIndex,
			BlockNumber: 400,
			Timestamp:   testBaseTime.Add(8 * 24 * time.Hour),
		},
		Protocol: ProtocolDelta{Sunset: 1},
	}))

	events, err := store.ListSunsetEvents(ctx, testToken)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Oldest first, so the announcement leads the trail
	assert.Equal(t, schema.SunsetEventKindAnnounced, events[0].Kind)
	require.NotNil(t, events[0].Reason)
	assert.Equal(t, "winding down", *events[0].Reason)
	require.NotNil(t, events[0].ExecutableAt)
	assert.True(t, events[0].ExecutableAt.Equal(executableAt))
	assert.Equal(t, schema.SunsetEventKindExecuted, events[1].Kind)
	assert.Nil(t, events[1].Reason)

	protocol, err := store.GetProtocol(ctx)
	require.NoError(t, err)
	require.NotNil(t, protocol)
	assert.Equal(t, int64(1), protocol.SunsetProjects)
}

// =============================================================================
// Test: Projects
// =============================================================================

func testGetProject(t *testing.T, store Store) {
	ctx := context.Background()

	project, err := store.GetProject(ctx, testToken)
	require.NoError(t, err)
	assert.Nil(t, project)
}

func testListProjects(t *testing.T, store Store) {
	ctx := context.Background()

	tokens := []string{
		"0x1111111111111111111111111111111111111111",
		"0x4444444444444444444444444444444444444444",
		"0x5555555555555555555555555555555555555555",
	}
	for i, token := range tokens {
		registeredAt := testBaseTime.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.ApplyMutation(ctx, buildRegistrationMutation(i, token, registeredAt)))
	}

	t.Run("ordered by registration time", func(t *testing.T) {
		projects, total, err := store.ListProjects(ctx, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, projects, 3)
		assert.Equal(t, tokens[0], projects[0].Token)
		assert.Equal(t, tokens[2], projects[2].Token)
	})

	t.Run("pagination", func(t *testing.T) {
		projects, total, err := store.ListProjects(ctx, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, projects, 1)
		assert.Equal(t, tokens[1], projects[0].Token)
	})

	t.Run("offset beyond range", func(t *testing.T) {
		projects, total, err := store.ListProjects(ctx, 10, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Empty(t, projects)
	})
}

// =============================================================================
// Test: Protocol
// =============================================================================

func testProtocol(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("nil before any event", func(t *testing.T) {
		protocol, err := store.GetProtocol(ctx)
		require.NoError(t, err)
		assert.Nil(t, protocol)
	})

	t.Run("accumulates deltas", func(t *testing.T) {
		require.NoError(t, store.ApplyMutation(ctx, buildRegistrationMutation(0, testToken, testBaseTime)))
		project, err := store.GetProject(ctx, testToken)
		require.NoError(t, err)

		require.NoError(t, store.ApplyMutation(ctx, buildDepositMutation(1, project, "1000", 100)))
		project, err = store.GetProject(ctx, testToken)
		require.NoError(t, err)
		require.NoError(t, store.ApplyMutation(ctx, buildDepositMutation(2, project, "500", 101)))

		protocol, err := store.GetProtocol(ctx)
		require.NoError(t, err)
		require.NotNil(t, protocol)
		assert.Equal(t, int64(1), protocol.TotalProjects)
		assert.Equal(t, int64(1), protocol.ActiveProjects)
		assert.Equal(t, "1500", protocol.TotalDeposited)
		assert.Equal(t, "0", protocol.TotalClaimed)
	})
}

// =============================================================================
// Test: BlockCursor
// =============================================================================

func testBlockCursor(t *testing.T, store Store) {
	ctx := context.Background()
	chain := string(domain.ChainBaseMainnet)

	t.Run("defaults to zero", func(t *testing.T) {
		cursor, err := store.GetBlockCursor(ctx, chain)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), cursor)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.SetBlockCursor(ctx, chain, 12345))

		cursor, err := store.GetBlockCursor(ctx, chain)
		require.NoError(t, err)
		assert.Equal(t, uint64(12345), cursor)
	})

	t.Run("overwrites previous value", func(t *testing.T) {
		require.NoError(t, store.SetBlockCursor(ctx, chain, 12345))
		require.NoError(t, store.SetBlockCursor(ctx, chain, 67890))

		cursor, err := store.GetBlockCursor(ctx, chain)
		require.NoError(t, err)
		assert.Equal(t, uint64(67890), cursor)
	})

	t.Run("cursors are per chain", func(t *testing.T) {
		require.NoError(t, store.SetBlockCursor(ctx, chain, 100))

		cursor, err := store.GetBlockCursor(ctx, string(domain.ChainBaseSepolia))
		require.NoError(t, err)
		assert.Equal(t, uint64(0), cursor)
	})
}

// =============================================================================
// Test: IsEventProcessed
// =============================================================================

func testIsEventProcessed(t *testing.T, store Store) {
	ctx := context.Background()

	processed, err := store.IsEventProcessed(ctx, eventKey(0))
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, store.ApplyMutation(ctx, buildRegistrationMutation(0, testToken, testBaseTime)))

	processed, err = store.IsEventProcessed(ctx, eventKey(0))
	require.NoError(t, err)
	assert.True(t, processed)
}

// RunStoreTests runs the shared store test suite against a Store implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"ApplyMutationRegistersProject", testApplyMutationRegistersProject},
		{"ApplyMutationRejectsDuplicates", testApplyMutationRejectsDuplicates},
		{"ApplyMutationUpdatesProject", testApplyMutationUpdatesProject},
		{"ListDeposits", testListDeposits},
		{"Claims", testClaims},
		{"ListSunsetEvents", testListSunsetEvents},
		{"GetProject", testGetProject},
		{"ListProjects", testListProjects},
		{"Protocol", testProtocol},
		{"BlockCursor", testBlockCursor},
		{"IsEventProcessed", testIsEventProcessed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
