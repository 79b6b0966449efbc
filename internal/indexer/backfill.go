package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/sunset-protocol/sunset-indexer/internal/aggregator"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/logger"
	ethprovider "github.com/sunset-protocol/sunset-indexer/internal/providers/ethereum"
)

// BackfillResult summarizes one backfill run. Skipped counts logs that were
// already indexed or rejected as out-of-order replays.
type BackfillResult struct {
	FromBlock uint64
	ToBlock   uint64
	Applied   int
	Skipped   int
}

// Backfiller replays historical contract logs for a single token through the
// aggregator. Idempotency in the store makes re-running a range safe.
type Backfiller struct {
	client     ethprovider.EthereumClient
	aggregator *aggregator.Aggregator
	registry   common.Address
	vault      common.Address
}

// NewBackfiller creates a backfiller over the given contract addresses
func NewBackfiller(client ethprovider.EthereumClient, agg *aggregator.Aggregator, registryAddress, vaultAddress string) *Backfiller {
	return &Backfiller{
		client:     client,
		aggregator: agg,
		registry:   common.HexToAddress(registryAddress),
		vault:      common.HexToAddress(vaultAddress),
	}
}

// ReindexToken fetches every protocol log touching token from fromBlock up to
// the current head and applies them in log order
func (b *Backfiller) ReindexToken(ctx context.Context, token string, fromBlock uint64) (BackfillResult, error) {
	header, err := b.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("%w: %s", domain.ErrUpstreamUnavailable, err)
	}
	toBlock := header.Number.Uint64()

	result := BackfillResult{FromBlock: fromBlock, ToBlock: toBlock}
	if fromBlock > toBlock {
		return result, nil
	}

	// Every protocol event indexes the token address as its first topic, so
	// one filtered query covers both contracts.
	tokenTopic := common.BytesToHash(common.HexToAddress(token).Bytes())
	logs, err := b.client.FilterLogs(ctx, goethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{b.registry, b.vault},
		Topics:    [][]common.Hash{ethprovider.EventSignatures(), {tokenTopic}},
	})
	if err != nil {
		return result, fmt.Errorf("failed to fetch logs: %w", err)
	}

	for _, vLog := range logs {
		event, err := b.client.ParseEventLog(ctx, vLog)
		if err != nil {
			logger.WarnCtx(ctx, "Skipping unparseable log during backfill",
				zap.String("txHash", vLog.TxHash.Hex()),
				zap.Uint("logIndex", vLog.Index),
				zap.Error(err))
			result.Skipped++
			continue
		}
		if event == nil {
			continue
		}

		if err := b.aggregator.Apply(ctx, event); err != nil {
			if errors.Is(err, domain.ErrDuplicateEvent) ||
				errors.Is(err, domain.ErrInvariantViolation) ||
				errors.Is(err, domain.ErrMalformedEvent) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("failed to apply event %s:%d: %w", event.TxHash, event.LogIndex, err)
		}
		result.Applied++
	}

	logger.InfoCtx(ctx, "Backfill completed",
		zap.String("token", token),
		zap.Uint64("fromBlock", result.FromBlock),
		zap.Uint64("toBlock", result.ToBlock),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped))

	return result, nil
}
