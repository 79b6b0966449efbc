package executor

import (
	"context"
	"math/big"
	"time"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
)

// Snapshot is the backend-neutral view of one project that the executor
// computes responses from. Amounts are integer wei; nil means zero.
type Snapshot struct {
	Token      string
	Registered bool
	Chain      domain.Chain

	Owner                 string
	FeeSplitter           string
	Tier                  domain.Tier
	Active                bool
	RegisteredAt          time.Time
	LastMeaningfulDeposit time.Time
	TotalDeposited        *big.Int
	ActualBalance         *big.Int
	DepositCount          int64

	SunsetState  domain.SunsetState
	AnnouncedAt  *time.Time
	AnnouncedBy  string
	ExecutableAt *time.Time
	Reason       string
	ExecutedAt   *time.Time
	ExecutedBy   string

	Triggered       bool
	TriggeredAt     *time.Time
	SnapshotBalance *big.Int
	SnapshotSupply  *big.Int
	SnapshotBlock   *uint64
}

// ProtocolStats are the protocol-wide counters. TotalClaimed is zero for
// backends that cannot observe claims.
type ProtocolStats struct {
	TotalProjects  int64
	ActiveProjects int64
	SunsetProjects int64
	TotalDeposited *big.Int
	TotalClaimed   *big.Int
}


// Source answers project queries from one backend. The store-backed source
// reads indexed rows; the chain-backed source reads contract state over RPC.
// Unknown tokens yield a Snapshot with Registered=false, not an error.
type Source interface {
	// Name identifies the backend in logs
	Name() string
	// GetSnapshot retrieves one project's state
	GetSnapshot(ctx context.Context, token string) (*Snapshot, error)
	// ListSnapshots retrieves a page of projects with the total count
	ListSnapshots(ctx context.Context, limit, offset int) ([]*Snapshot, int64, error)
	// HasClaimed reports whether a holder already claimed for a token
	HasClaimed(ctx context.Context, token string, holder string) (bool, error)
	// GetProtocolStats retrieves the protocol-wide counters
	GetProtocolStats(ctx context.Context) (*ProtocolStats, error)
}
