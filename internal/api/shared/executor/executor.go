package executor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sunset-protocol/sunset-indexer/internal/adapter"
	"github.com/sunset-protocol/sunset-indexer/internal/api/shared/dto"
	apierrors "github.com/sunset-protocol/sunset-indexer/internal/api/shared/errors"
	"github.com/sunset-protocol/sunset-indexer/internal/cache"
	"github.com/sunset-protocol/sunset-indexer/internal/chain"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/indexer"
	"github.com/sunset-protocol/sunset-indexer/internal/scoring"
)


// Executor defines the business logic interface for API operations
type Executor interface {
	// GetProject retrieves the full project detail for a token
	GetProject(ctx context.Context, token string) (*dto.ProjectResponse, error)
	// ListProjects retrieves a page of projects with embedded scores
	ListProjects(ctx context.Context, limit, offset int) (*dto.ProjectListResponse, error)
	// GetScore computes the health score for a token
	GetScore(ctx context.Context, token string) (*dto.ScoreResponse, error)
	// GetCoverage retrieves coverage, trigger eligibility and sunset state
	GetCoverage(ctx context.Context, token string) (*dto.CoverageResponse, error)
	// GetClaimable retrieves a holder's claim standing for a token
	GetClaimable(ctx context.Context, token string, holder string) (*dto.ClaimableResponse, error)
	// GetProtocolStats retrieves the protocol-wide counters
	GetProtocolStats(ctx context.Context) (*dto.ProtocolResponse, error)
	// ReindexProject replays a token's chain history through the indexer
	ReindexProject(ctx context.Context, token string, fromBlock uint64) (*dto.ReindexResponse, error)
}

// Reindexer replays chain history for one token
type Reindexer interface {
	ReindexToken(ctx context.Context, token string, fromBlock uint64) (indexer.BackfillResult, error)
}

// executor is the concrete implementation of the Executor interface
type executor struct {
	source    Source
	vault     chain.Vault
	cache     *cache.Cache
	clock     adapter.Clock
	reindexer Reindexer
}

// NewExecutor creates an executor over the given query source. vault serves
// holder-specific reads regardless of the source backend; reindexer may be
// nil when backfilling is not wired into the deployment.
func NewExecutor(source Source, vault chain.Vault, c *cache.Cache, clock adapter.Clock, reindexer Reindexer) Executor {
	return &executor{
		source:    source,
		vault:     vault,
		cache:     c,
		clock:     clock,
		reindexer: reindexer,
	}
}

// snapshot reads a project snapshot through the TTL cache
func (e *executor) snapshot(ctx context.Context, token string) (*Snapshot, error) {
	value, err := e.cache.GetOrLoad(ctx, cache.Key("snapshot", domain.NormalizeAddress(token)),
		func(ctx context.Context) (interface{}, error) {
			return e.source.GetSnapshot(ctx, token)
		})
	if err != nil {
		return nil, err
	}
	return value.(*Snapshot), nil
}

func (e *executor) GetProject(ctx context.Context, token string) (*dto.ProjectResponse, error) {
	snapshot, err := e.snapshot(ctx, token)
	if err != nil {
		return nil, err
	}
	return buildProjectResponse(snapshot, e.clock.Now()), nil
}

func (e *executor) ListProjects(ctx context.Context, limit, offset int) (*dto.ProjectListResponse, error) {
	snapshots, total, err := e.source.ListSnapshots(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	projects := make([]*dto.ProjectResponse, 0, len(snapshots))
	for _, snapshot := range snapshots {
		projects = append(projects, buildProjectResponse(snapshot, now))
	}

	return &dto.ProjectListResponse{
		Projects: projects,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

func (e *executor) GetScore(ctx context.Context, token string) (*dto.ScoreResponse, error) {
	snapshot, err := e.snapshot(ctx, token)
	if err != nil {
		return nil, err
	}
	return buildScoreResponse(snapshot, e.clock.Now()), nil
}

func (e *executor) GetCoverage(ctx context.Context, token string) (*dto.CoverageResponse, error) {
	snapshot, err := e.snapshot(ctx, token)
	if err != nil {
		return nil, err
	}
	return buildCoverageResponse(snapshot, e.clock.Now()), nil
}

func (e *executor) GetClaimable(ctx context.Context, token string, holder string) (*dto.ClaimableResponse, error) {
	token = domain.NormalizeAddress(token)
	holder = domain.NormalizeAddress(holder)

	snapshot, err := e.snapshot(ctx, token)
	if err != nil {
		return nil, err
	}

	response := &dto.ClaimableResponse{
		Token:      token,
		Holder:     holder,
		Registered: snapshot.Registered,
		Claimable:  "0",
	}
	if !snapshot.Registered {
		return response, nil
	}
	response.Triggered = snapshot.Triggered

	hasClaimed, err := e.source.HasClaimed(ctx, token, holder)
	if err != nil {
		return nil, fmt.Errorf("failed to check claim state: %w", err)
	}
	response.HasClaimed = hasClaimed

	// The pro-rata amount lives in the vault contract; holder balances are
	// not indexed, so this is a chain read on either backend.
	claimable := new(big.Int)
	if snapshot.Triggered && !hasClaimed {
		value, err := e.cache.GetOrLoad(ctx, cache.Key("claimable", token, holder),
			func(ctx context.Context) (interface{}, error) {
				return e.vault.GetClaimableAmount(ctx, token, holder)
			})
		if err != nil {
			return nil, fmt.Errorf("failed to read claimable amount: %w", err)
		}
		claimable = value.(*big.Int)
	}

	response.Claimable = claimable.String()
	response.CanClaim = scoring.CanClaim(snapshot.Triggered, hasClaimed, claimable)
	return response, nil
}

func (e *executor) GetProtocolStats(ctx context.Context) (*dto.ProtocolResponse, error) {
	value, err := e.cache.GetOrLoad(ctx, cache.Key("protocol", "stats"),
		func(ctx context.Context) (interface{}, error) {
			return e.source.GetProtocolStats(ctx)
		})
	if err != nil {
		return nil, err
	}
	stats := value.(*ProtocolStats)

	return &dto.ProtocolResponse{
		TotalProjects:  stats.TotalProjects,
		ActiveProjects: stats.ActiveProjects,
		SunsetProjects: stats.SunsetProjects,
		TotalDeposited: weiString(stats.TotalDeposited),
		TotalClaimed:   weiString(stats.TotalClaimed),
	}, nil
}

func (e *executor) ReindexProject(ctx context.Context, token string, fromBlock uint64) (*dto.ReindexResponse, error) {
	if e.reindexer == nil {
		return nil, apierrors.NewInternalError("reindexing is not enabled on this deployment")
	}

	token = domain.NormalizeAddress(token)
	result, err := e.reindexer.ReindexToken(ctx, token, fromBlock)
	if err != nil {
		return nil, err
	}

	return &dto.ReindexResponse{
		Token:     token,
		FromBlock: result.FromBlock,
		ToBlock:   result.ToBlock,
		Applied:   result.Applied,
		Skipped:   result.Skipped,
	}, nil
}
