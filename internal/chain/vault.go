package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/sunset-protocol/sunset-indexer/internal/adapter"
)

const vaultABI = `[
	{"type":"function","stateMutability":"view","name":"getCoverage","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"bool"}]},
	{"type":"function","stateMutability":"view","name":"getClaimableAmount","inputs":[{"name":"token","type":"address"},{"name":"holder","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","stateMutability":"view","name":"hasClaimed","inputs":[{"name":"token","type":"address"},{"name":"holder","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

type vault struct {
	address common.Address
	client  adapter.EthClient
	abi     abi.ABI
}

// NewVault creates a vault reader for the given contract address
func NewVault(address string, client adapter.EthClient) (Vault, error) {
	parsed, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vault ABI: %w", err)
	}

	return &vault{
		address: common.HexToAddress(address),
		client:  client,
		abi:     parsed,
	}, nil
}

// GetCoverage reads the coverage tuple for a token. Returns zeroed coverage
// for unregistered tokens.
func (v *vault) GetCoverage(ctx context.Context, token string) (*Coverage, error) {
	data, err := v.abi.Pack("getCoverage", common.HexToAddress(token))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getCoverage: %w", err)
	}

	result, err := call(ctx, v.client, v.address, data)
	if err != nil {
		if errors.Is(err, errExecutionReverted) {
			return &Coverage{
				Deposited:      new(big.Int),
				ActualBalance:  new(big.Int),
				SnapshotSupply: new(big.Int),
			}, nil
		}
		return nil, err
	}
	if wordCount(result) < 5 {
		return &Coverage{
			Deposited:      new(big.Int),
			ActualBalance:  new(big.Int),
			SnapshotSupply: new(big.Int),
		}, nil
	}

	return &Coverage{
		Deposited:      wordBig(result, 0),
		ActualBalance:  wordBig(result, 1),
		SnapshotSupply: wordBig(result, 2),
		SnapshotBlock:  wordBig(result, 3).Uint64(),
		Triggered:      wordBool(result, 4),
	}, nil
}

// GetClaimableAmount reads a holder's pro-rata claimable amount. The pro-rata
// math lives in the vault contract; this is a pure read-through.
func (v *vault) GetClaimableAmount(ctx context.Context, token string, holder string) (*big.Int, error) {
	data, err := v.abi.Pack("getClaimableAmount", common.HexToAddress(token), common.HexToAddress(holder))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getClaimableAmount: %w", err)
	}

	result, err := call(ctx, v.client, v.address, data)
	if err != nil {
		if errors.Is(err, errExecutionReverted) {
			return new(big.Int), nil
		}
		return nil, err
	}
	if wordCount(result) < 1 {
		return new(big.Int), nil
	}
	return wordBig(result, 0), nil
}

// HasClaimed reads whether a holder already claimed. Contracts predating the
// view degrade to false rather than failing the whole computation.
func (v *vault) HasClaimed(ctx context.Context, token string, holder string) (bool, error) {
	data, err := v.abi.Pack("hasClaimed", common.HexToAddress(token), common.HexToAddress(holder))
	if err != nil {
		return false, fmt.Errorf("failed to pack hasClaimed: %w", err)
	}

	result, err := call(ctx, v.client, v.address, data)
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
