package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/logger"
	"github.com/sunset-protocol/sunset-indexer/internal/messaging"
)

// Config holds the configuration for the Ethereum subscription
type Config struct {
	WebSocketURL    string       // WebSocket URL (e.g., wss://base-mainnet.infura.io/ws/v3/KEY)
	ChainID         domain.Chain // e.g., "eip155:8453" for Base mainnet
	RegistryAddress string
	VaultAddress    string
}

type ethSubscriber struct {
	client    EthereumClient
	chainID   domain.Chain
	addresses []common.Address
}

// NewSubscriber creates a new Ethereum event subscriber for the Registry and
// Vault contracts
func NewSubscriber(cfg Config, ethereumClient EthereumClient) messaging.Subscriber {
	return &ethSubscriber{
		client:  ethereumClient,
		chainID: cfg.ChainID,
		addresses: []common.Address{
			common.HexToAddress(cfg.RegistryAddress),
			common.HexToAddress(cfg.VaultAddress),
		},
	}
}

// SubscribeEvents subscribes to Registry and Vault contract events
func (s *ethSubscriber) SubscribeEvents(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: s.addresses,
		Topics:    [][]common.Hash{EventSignatures()},
	}

	logs := make(chan types.Log)
	sub, err := s.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrSubscriptionFailed, err)
	}
	defer func() {
		logger.InfoCtx(ctx, "Unsubscribing from protocol event logs")
		sub.Unsubscribe()
		logger.InfoCtx(ctx, "Unsubscribed from protocol event logs")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("subscription error: %w", err)
		case vLog := <-logs:
			event, err := s.client.ParseEventLog(ctx, vLog)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorCtx(ctx, err, zap.String("message", "Error parsing log"))
				continue
			}

			if event == nil {
				continue
			}

			if err := handler(event); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("message", "Error handling event"))
			}
		}
	}
}

// GetLatestBlock returns the latest block number
func (s *ethSubscriber) GetLatestBlock(ctx context.Context) (uint64, error) {
	header, err := s.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

// Close closes the connection
func (s *ethSubscriber) Close() {
	if s.client == nil {
		return
	}

	s.client.Close()
	logger.Info("Ethereum WebSocket connection closed")
}
