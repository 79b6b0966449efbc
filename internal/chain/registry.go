package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/sunset-protocol/sunset-indexer/internal/adapter"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
)

// registryABI covers the view surface the indexer depends on. getProject
// outputs are declared in the V2 shape; V1 responses are shorter and handled
// by word-count sniffing instead of ABI unpacking.
const registryABI = `[
	{"type":"function","stateMutability":"view","name":"isRegistered","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","stateMutability":"view","name":"getProject","inputs":[{"name":"token","type":"address"}],"outputs":[]},
	{"type":"function","stateMutability":"view","name":"canOwnerTrigger","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"bool"},{"name":"","type":"uint256"}]},
	{"type":"function","stateMutability":"view","name":"canCommunityTrigger","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"bool"},{"name":"","type":"uint256"}]},
	{"type":"function","stateMutability":"view","name":"getSunsetStatus","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"bool"},{"name":"","type":"uint256"},{"name":"","type":"address"},{"name":"","type":"uint256"},{"name":"","type":"bool"}]},
	{"type":"function","stateMutability":"view","name":"getRegisteredTokens","inputs":[],"outputs":[{"name":"","type":"address[]"}]}
]`

type registry struct {
	address common.Address
	client  adapter.EthClient
	abi     abi.ABI
}

// NewRegistry creates a registry reader for the given contract address
func NewRegistry(address string, client adapter.EthClient) (Registry, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	return &registry{
		address: common.HexToAddress(address),
		client:  client,
		abi:     parsed,
	}, nil
}

// IsRegistered checks whether a token is registered
func (r *registry) IsRegistered(ctx context.Context, token string) (bool, error) {
	data, err := r.abi.Pack("isRegistered", common.HexToAddress(token))
	if err != nil {
		return false, fmt.Errorf("failed to pack isRegistered: %w", err)
	}

	result, err := call(ctx, r.client, r.address, data)
	if err != nil {
		if errors.Is(err, errExecutionReverted) {
			return false, nil
		}
		return false, err
	}
	if wordCount(result) < 1 {
		return false, nil
	}
	return wordBool(result, 0), nil
}

// GetProject reads the project tuple, sniffing the contract schema version
// from the response width: 7 words is the V1 shape, 8 or more is V2. Returns
// nil when the token is not registered.
func (r *registry) GetProject(ctx context.Context, token string) (*ProjectInfo, error) {
	data, err := r.abi.Pack("getProject", common.HexToAddress(token))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getProject: %w", err)
	}

	result, err := call(ctx, r.client, r.address, data)
	if err != nil {
		if errors.Is(err, errExecutionReverted) {
			// Unregistered tokens revert on V2 contracts
			return nil, nil
		}
		return nil, err
	}

	words := wordCount(result)
	if words < 7 {
		return nil, nil
	}

	version := SchemaV1
	if words >= 8 {
		version = SchemaV2
	}

	info := &ProjectInfo{
		Owner:                 wordAddress(result, 0),
		FeeSplitter:           wordAddress(result, 1),
		Tier:                  domain.Tier(wordBig(result, 2).Uint64()),
		Active:                wordBool(result, 3),
		RegisteredAt:          wordTime(result, 4),
		LastMeaningfulDeposit: wordTime(result, 5),
		TotalDeposited:        wordBig(result, 6),
		SchemaVersion:         version,
	}

	// A zero owner means the registry returned an empty slot
	if info.Owner == domain.ETHEREUM_ZERO_ADDRESS {
		return nil, nil
	}

	return info, nil
}

// CanOwnerTrigger reads the owner-trigger eligibility view
func (r *registry) CanOwnerTrigger(ctx context.Context, token string) (TriggerEligibility, error) {
	return r.triggerView(ctx, "canOwnerTrigger", token)
}

// CanCommunityTrigger reads the community-trigger eligibility view
func (r *registry) CanCommunityTrigger(ctx context.Context, token string) (TriggerEligibility, error) {
	return r.triggerView(ctx, "canCommunityTrigger", token)
}

func (r *registry) triggerView(ctx context.Context, method string, token string) (TriggerEligibility, error) {
	data, err := r.abi.Pack(method, common.HexToAddress(token))
	if err != nil {
		return TriggerEligibility{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	result, err := call(ctx, r.client, r.address, data)
	if err != nil {
		if errors.Is(err, errExecutionReverted) {
			// Missing or reverting view degrades to "cannot trigger"
			return TriggerEligibility{}, nil
		}
		return TriggerEligibility{}, err
	}
	if wordCount(result) < 2 {
		return TriggerEligibility{}, nil
	}

	return TriggerEligibility{
		CanTrigger:    wordBool(result, 0),
		TimeRemaining: time.Duration(wordBig(result, 1).Int64()) * time.Second,
	}, nil
}

// GetSunsetStatus reads the announcement state. V1 contracts lack the view;
// the result degrades to Known=false instead of failing the computation.
func (r *registry) GetSunsetStatus(ctx context.Context, token string) (SunsetStatus, error) {
	data, err := r.abi.Pack("getSunsetStatus", common.HexToAddress(token))
	if err != nil {
		return SunsetStatus{}, fmt.Errorf("failed to pack getSunsetStatus: %w", err)
	}

	result, err := call(ctx, r.client, r.address, data)
	if err != nil {
		if errors.Is(err, errExecutionReverted) {
			return SunsetStatus{Known: false}, nil
		}
		return SunsetStatus{}, err
	}
	if wordCount(result) < 5 {
		return SunsetStatus{Known: false}, nil
	}

	return SunsetStatus{
		Known:        true,
		Announced:    wordBool(result, 0),
		AnnouncedAt:  wordTime(result, 1),
		AnnouncedBy:  wordAddress(result, 2),
		ExecutableAt: wordTime(result, 3),
		CanExecute:   wordBool(result, 4),
	}, nil
}

// GetRegisteredTokens lists every registered token address
func (r *registry) GetRegisteredTokens(ctx context.Context) ([]string, error) {
	data, err := r.abi.Pack("getRegisteredTokens")
	if err != nil {
		return nil, fmt.Errorf("failed to pack getRegisteredTokens: %w", err)
	}

	result, err := call(ctx, r.client, r.address, data)
	if err != nil {
		if errors.Is(err, errExecutionReverted) {
			return nil, nil
		}
		return nil, err
	}

	values, err := r.abi.Unpack("getRegisteredTokens", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getRegisteredTokens: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	addresses, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected getRegisteredTokens result type %T", values[0])
	}

	tokens := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		tokens = append(tokens, addr.Hex())
	}
	return tokens, nil
}
