package executor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/store"
	"github.com/sunset-protocol/sunset-indexer/internal/store/schema"
)

// storeSource answers queries from the indexed database. It only knows what
// the indexer has seen; a project registered after the indexer's cursor reads
// as unregistered until the events arrive.
type storeSource struct {
	store store.Store
}

// NewStoreSource creates a Source backed by the indexed store
func NewStoreSource(s store.Store) Source {
	return &storeSource{store: s}
}

func (s *storeSource) Name() string {
	return "store"
}

func (s *storeSource) GetSnapshot(ctx context.Context, token string) (*Snapshot, error) {
	project, err := s.store.GetProject(ctx, domain.NormalizeAddress(token))
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	// Placeholder rows created by out-of-order vault events have no owner yet
	// and do not count as registered.
	if project == nil || project.Owner == "" {
		return &Snapshot{Token: domain.NormalizeAddress(token)}, nil
	}
	return snapshotFromProject(project), nil
}

func (s *storeSource) ListSnapshots(ctx context.Context, limit, offset int) ([]*Snapshot, int64, error) {
	projects, total, err := s.store.ListProjects(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}

	snapshots := make([]*Snapshot, 0, len(projects))
	for _, p := range projects {
		snapshots = append(snapshots, snapshotFromProject(p))
	}
	return snapshots, total, nil
}

func (s *storeSource) HasClaimed(ctx context.Context, token string, holder string) (bool, error) {
	claim, err := s.store.GetClaim(ctx, domain.NormalizeAddress(token), domain.NormalizeAddress(holder))
	if err != nil {
		return false, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim != nil, nil
}

func (s *storeSource) GetProtocolStats(ctx context.Context) (*ProtocolStats, error) {
	protocol, err := s.store.GetProtocol(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get protocol counters: %w", err)
	}
	if protocol == nil {
		return &ProtocolStats{
			TotalDeposited: new(big.Int),
			TotalClaimed:   new(big.Int),
		}, nil
	}

	return &ProtocolStats{
		TotalProjects:  protocol.TotalProjects,
		ActiveProjects: protocol.ActiveProjects,
		SunsetProjects: protocol.SunsetProjects,
		TotalDeposited: domain.ParseAmount(protocol.TotalDeposited),
		TotalClaimed:   domain.ParseAmount(protocol.TotalClaimed),
	}, nil
}

// snapshotFromProject maps an indexed project row onto the backend-neutral
// snapshot shape
func snapshotFromProject(p *schema.Project) *Snapshot {
	snapshot := &Snapshot{
		Token:          p.Token,
		Registered:     true,
		Chain:          p.Chain,
		Owner:          p.Owner,
		FeeSplitter:    p.FeeSplitter,
		Tier:           p.Tier,
		Active:         p.Active,
		RegisteredAt:   p.RegisteredAt,
		TotalDeposited: domain.ParseAmount(p.TotalDeposited),
		ActualBalance:  domain.ParseAmount(p.ActualBalance),
		DepositCount:   p.DepositCount,
		SunsetState:    p.SunsetState,
		AnnouncedAt:    cloneTime(p.SunsetAnnouncedAt),
		ExecutableAt:   cloneTime(p.SunsetExecutableAt),
		Triggered:      p.SunsetTriggeredAt != nil,
		TriggeredAt:    cloneTime(p.SunsetTriggeredAt),
	}

	// The registration time doubles as the activity baseline until the first
	// meaningful deposit.
	snapshot.LastMeaningfulDeposit = p.RegisteredAt
	if p.LastDepositAt != nil {
		snapshot.LastMeaningfulDeposit = *p.LastDepositAt
	}

	if p.SunsetAnnouncedBy != nil {
		snapshot.AnnouncedBy = *p.SunsetAnnouncedBy
	}
	if p.SunsetReason != nil {
		snapshot.Reason = *p.SunsetReason
	}
	snapshot.ExecutedAt = cloneTime(p.SunsetExecutedAt)
	if p.SunsetExecutedBy != nil {
		snapshot.ExecutedBy = *p.SunsetExecutedBy
	}
	if p.SnapshotBalance != nil {
		snapshot.SnapshotBalance = domain.ParseAmount(*p.SnapshotBalance)
	}
	if p.SnapshotSupply != nil {
		snapshot.SnapshotSupply = domain.ParseAmount(*p.SnapshotSupply)
	}
	if p.SnapshotBlock != nil {
		block := *p.SnapshotBlock
		snapshot.SnapshotBlock = &block
	}

	return snapshot
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
