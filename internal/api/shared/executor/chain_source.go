package executor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alitto/pond/v2"

	"github.com/sunset-protocol/sunset-indexer/internal/chain"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
)

// chainSource answers queries straight from the Registry and Vault contracts.
// It needs no indexer but pays an RPC round-trip per view, so multi-token
// queries fan out over a bounded worker pool.
type chainSource struct {
	chainID  domain.Chain
	registry chain.Registry
	vault    chain.Vault
	pool     pond.ResultPool[*Snapshot]
}

// NewChainSource creates a Source backed by direct contract reads. poolSize
// bounds concurrent RPC calls during fan-out.
func NewChainSource(chainID domain.Chain, registry chain.Registry, vault chain.Vault, poolSize int) Source {
	if poolSize <= 0 {
		poolSize = 10
	}
	return &chainSource{
		chainID:  chainID,
		registry: registry,
		vault:    vault,
		pool:     pond.NewResultPool[*Snapshot](poolSize),
	}
}

func (s *chainSource) Name() string {
	return "chain"
}

func (s *chainSource) GetSnapshot(ctx context.Context, token string) (*Snapshot, error) {
	token = domain.NormalizeAddress(token)

	info, err := s.registry.GetProject(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	if info == nil {
		return &Snapshot{Token: token}, nil
	}

	coverage, err := s.vault.GetCoverage(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to read coverage: %w", err)
	}

	status, err := s.registry.GetSunsetStatus(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to read sunset status: %w", err)
	}

	snapshot := &Snapshot{
		Token:                 token,
		Registered:            true,
		Chain:                 s.chainID,
		Owner:                 info.Owner,
		FeeSplitter:           info.FeeSplitter,
		Tier:                  info.Tier,
		Active:                info.Active,
		RegisteredAt:          info.RegisteredAt,
		LastMeaningfulDeposit: info.LastMeaningfulDeposit,
		TotalDeposited:        coverage.Deposited,
		ActualBalance:         coverage.ActualBalance,
		Triggered:             coverage.Triggered,
	}

	// A vault predating getCoverage reads as all zeros; the registry's own
	// cumulative counter is the better answer then.
	if coverage.Deposited == nil || coverage.Deposited.Sign() == 0 {
		snapshot.TotalDeposited = info.TotalDeposited
	}
	if coverage.Triggered {
		snapshot.SnapshotSupply = coverage.SnapshotSupply
		snapshotBlock := coverage.SnapshotBlock
		snapshot.SnapshotBlock = &snapshotBlock
	}

	switch {
	case !info.Active:
		snapshot.SunsetState = domain.SunsetStateExecuted
	case status.Known && status.Announced:
		snapshot.SunsetState = domain.SunsetStateAnnounced
		announcedAt := status.AnnouncedAt
		executableAt := status.ExecutableAt
		snapshot.AnnouncedAt = &announcedAt
		snapshot.ExecutableAt = &executableAt
		snapshot.AnnouncedBy = status.AnnouncedBy
	default:
		snapshot.SunsetState = domain.SunsetStateActive
	}

	return snapshot, nil
}

func (s *chainSource) ListSnapshots(ctx context.Context, limit, offset int) ([]*Snapshot, int64, error) {
	tokens, err := s.registry.GetRegisteredTokens(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list registered tokens: %w", err)
	}
	total := int64(len(tokens))

	if offset >= len(tokens) {
		return []*Snapshot{}, total, nil
	}
	end := offset + limit
	if end > len(tokens) {
		end = len(tokens)
	}

	snapshots, err := s.fanOut(ctx, tokens[offset:end])
	if err != nil {
		return nil, 0, err
	}
	return snapshots, total, nil
}

func (s *chainSource) HasClaimed(ctx context.Context, token string, holder string) (bool, error) {
	return s.vault.HasClaimed(ctx, domain.NormalizeAddress(token), domain.NormalizeAddress(holder))
}

// GetProtocolStats recomputes the counters by reading every registered token.
// Claims are not observable through the contract views, so TotalClaimed is
// always zero from this backend.
func (s *chainSource) GetProtocolStats(ctx context.Context) (*ProtocolStats, error) {
	tokens, err := s.registry.GetRegisteredTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registered tokens: %w", err)
	}

	snapshots, err := s.fanOut(ctx, tokens)
	if err != nil {
		return nil, err
	}

	stats := &ProtocolStats{
		TotalProjects:  int64(len(snapshots)),
		TotalDeposited: new(big.Int),
		TotalClaimed:   new(big.Int),
	}
	for _, snapshot := range snapshots {
		if snapshot.Triggered || !snapshot.Active {
			stats.SunsetProjects++
		} else {
			stats.ActiveProjects++
		}
		if snapshot.TotalDeposited != nil {
			stats.TotalDeposited.Add(stats.TotalDeposited, snapshot.TotalDeposited)
		}
	}
	return stats, nil
}

// fanOut reads snapshots for the given tokens concurrently, preserving order
func (s *chainSource) fanOut(ctx context.Context, tokens []string) ([]*Snapshot, error) {
	group := s.pool.NewGroup()
	for _, token := range tokens {
		group.SubmitErr(func() (*Snapshot, error) {
			return s.GetSnapshot(ctx, token)
		})
	}

	snapshots, err := group.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}
	return snapshots, nil
}
