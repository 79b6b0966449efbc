// Package chain reads Registry and Vault contract state directly over RPC.
// It is the second query backend next to the indexed store, and the only one
// that can answer holder-specific questions like claimable amounts.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/sunset-protocol/sunset-indexer/internal/adapter"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
)

// Schema versions of the deployed registry contract. V1 lacks the
// getSunsetStatus view and returns a 7-field getProject tuple; V2 adds an
// eighth field and the sunset status view.
const (
	SchemaV1 = 1
	SchemaV2 = 2
)

// ProjectInfo is the typed getProject result. SchemaVersion records which
// contract shape produced it so callers can reason about absent fields.
type ProjectInfo struct {
	Owner                 string
	FeeSplitter           string
	Tier                  domain.Tier
	Active                bool
	RegisteredAt          time.Time
	LastMeaningfulDeposit time.Time
	TotalDeposited        *big.Int
	SchemaVersion         int
}

// SunsetStatus is the typed getSunsetStatus result. Known is false when the
// deployed contract does not expose the view (V1); all other fields then hold
// their zero values.
type SunsetStatus struct {
	Known        bool
	Announced    bool
	AnnouncedAt  time.Time
	AnnouncedBy  string
	ExecutableAt time.Time
	CanExecute   bool
}

// Coverage is the typed getCoverage result from the vault
type Coverage struct {
	Deposited      *big.Int
	ActualBalance  *big.Int
	SnapshotSupply *big.Int
	SnapshotBlock  uint64
	Triggered      bool
}

// TriggerEligibility is the typed result of the trigger helper views
type TriggerEligibility struct {
	CanTrigger    bool
	TimeRemaining time.Duration
}

// Registry reads the registry contract
type Registry interface {
	IsRegistered(ctx context.Context, token string) (bool, error)
	GetProject(ctx context.Context, token string) (*ProjectInfo, error)
	CanOwnerTrigger(ctx context.Context, token string) (TriggerEligibility, error)
	CanCommunityTrigger(ctx context.Context, token string) (TriggerEligibility, error)
	// GetSunsetStatus degrades to Known=false on V1 contracts
	GetSunsetStatus(ctx context.Context, token string) (SunsetStatus, error)
	GetRegisteredTokens(ctx context.Context) ([]string, error)
}

// Vault reads the vault contract
type Vault interface {
	GetCoverage(ctx context.Context, token string) (*Coverage, error)
	GetClaimableAmount(ctx context.Context, token string, holder string) (*big.Int, error)
	// HasClaimed degrades to false on contracts without the view
	HasClaimed(ctx context.Context, token string, holder string) (bool, error)
}

// call issues an eth_call and classifies failures: reverts surface as
// errExecutionReverted (the caller decides whether that means "degrade"),
// anything else is the upstream being unreachable.
func call(ctx context.Context, client adapter.EthClient, contract common.Address, data []byte) ([]byte, error) {
	result, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		if isRevertError(err) {
			return nil, errExecutionReverted
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstreamUnavailable, err)
	}
	return result, nil
}

var errExecutionReverted = errors.New("execution reverted")

// isRevertError distinguishes a contract-side revert (including calls to
// functions the contract does not implement) from transport failures
func isRevertError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "invalid opcode") ||
		strings.Contains(msg, "VM execution error")
}

// Static-tuple word helpers. All registry/vault views except
// getRegisteredTokens return fixed-width tuples, so 32-byte word slicing is
// both sufficient and shape-tolerant.

func wordCount(data []byte) int {
	return len(data) / 32
}

func wordAt(data []byte, i int) []byte {
	return data[i*32 : (i+1)*32]
}

func wordBig(data []byte, i int) *big.Int {
	return new(big.Int).SetBytes(wordAt(data, i))
}

func wordAddress(data []byte, i int) string {
	return common.BytesToAddress(wordAt(data, i)).Hex()
}

func wordBool(data []byte, i int) bool {
	return wordBig(data, i).Sign() != 0
}

func wordTime(data []byte, i int) time.Time {
	sec := wordBig(data, i)
	if sec.Sign() == 0 {
		return time.Time{}
	}
	return time.Unix(sec.Int64(), 0).UTC()
}
