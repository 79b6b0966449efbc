package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/sunset-protocol/sunset-indexer/internal/adapter"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/logger"
)

// Event signatures for the Registry and Vault contracts
var (
	projectRegisteredSig = crypto.Keccak256Hash([]byte("ProjectRegistered(address,address,address,uint8)"))
	feeDepositedSig      = crypto.Keccak256Hash([]byte("FeeDeposited(address,uint256,bool)"))
	sunsetAnnouncedSig   = crypto.Keccak256Hash([]byte("SunsetAnnounced(address,address,uint256,string)"))
	sunsetCancelledSig   = crypto.Keccak256Hash([]byte("SunsetCancelled(address,address)"))
	sunsetExecutedSig    = crypto.Keccak256Hash([]byte("SunsetExecuted(address,address)"))
	depositedSig         = crypto.Keccak256Hash([]byte("Deposited(address,uint256,uint256)"))
	sunsetTriggeredSig   = crypto.Keccak256Hash([]byte("SunsetTriggered(address,uint256,uint256)"))
	claimedSig           = crypto.Keccak256Hash([]byte("Claimed(address,address,uint256)"))
)

// EventSignatures returns the topic hashes of every protocol event
func EventSignatures() []common.Hash {
	return []common.Hash{
		projectRegisteredSig,
		feeDepositedSig,
		sunsetAnnouncedSig,
		sunsetCancelledSig,
		sunsetExecutedSig,
		depositedSig,
		sunsetTriggeredSig,
		claimedSig,
	}
}

// protocolEventsABI declares the non-indexed data layout of every protocol
// event, used to unpack log data portions.
const protocolEventsABI = `[
	{"type":"event","name":"ProjectRegistered","inputs":[{"name":"token","type":"address","indexed":true},{"name":"owner","type":"address","indexed":true},{"name":"feeSplitter","type":"address","indexed":false},{"name":"tier","type":"uint8","indexed":false}]},
	{"type":"event","name":"FeeDeposited","inputs":[{"name":"token","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"meaningful","type":"bool","indexed":false}]},
	{"type":"event","name":"SunsetAnnounced","inputs":[{"name":"token","type":"address","indexed":true},{"name":"announcedBy","type":"address","indexed":true},{"name":"executableAt","type":"uint256","indexed":false},{"name":"reason","type":"string","indexed":false}]},
	{"type":"event","name":"SunsetCancelled","inputs":[{"name":"token","type":"address","indexed":true},{"name":"cancelledBy","type":"address","indexed":true}]},
	{"type":"event","name":"SunsetExecuted","inputs":[{"name":"token","type":"address","indexed":true},{"name":"executedBy","type":"address","indexed":true}]},
	{"type":"event","name":"Deposited","inputs":[{"name":"token","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"newBalance","type":"uint256","indexed":false}]},
	{"type":"event","name":"SunsetTriggered","inputs":[{"name":"token","type":"address","indexed":true},{"name":"actualBalance","type":"uint256","indexed":false},{"name":"snapshotSupply","type":"uint256","indexed":false}]},
	{"type":"event","name":"Claimed","inputs":[{"name":"token","type":"address","indexed":true},{"name":"holder","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

// EthereumClient wraps the raw RPC client with protocol-aware log parsing
type EthereumClient interface {
	// ParseEventLog parses an Ethereum log into a normalized protocol event.
	// Returns (nil, nil) for logs that are not protocol events.
	ParseEventLog(ctx context.Context, vLog types.Log) (*domain.ProtocolEvent, error)

	// SubscribeFilterLogs subscribes to filter logs
	SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)

	// FilterLogs retrieves historical logs, paginating block ranges to stay
	// under provider result limits
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)

	// HeaderByNumber returns a header by number
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)

	// Close closes the connection
	Close()
}

type ethereumClient struct {
	chainID  domain.Chain
	registry common.Address
	vault    common.Address
	client   adapter.EthClient
	events   abi.ABI

	mu         sync.Mutex
	blockTimes map[uint64]time.Time
}

// NewClient creates a protocol-aware Ethereum client for the given Registry
// and Vault contract addresses
func NewClient(chainID domain.Chain, registryAddress, vaultAddress string, client adapter.EthClient) (EthereumClient, error) {
	events, err := abi.JSON(strings.NewReader(protocolEventsABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse events ABI: %w", err)
	}

	return &ethereumClient{
		chainID:    chainID,
		registry:   common.HexToAddress(registryAddress),
		vault:      common.HexToAddress(vaultAddress),
		client:     client,
		events:     events,
		blockTimes: make(map[uint64]time.Time),
	}, nil
}

// ParseEventLog parses an Ethereum log into a normalized protocol event
func (c *ethereumClient) ParseEventLog(ctx context.Context, vLog types.Log) (*domain.ProtocolEvent, error) {
	var contract domain.Contract
	switch vLog.Address {
	case c.registry:
		contract = domain.ContractRegistry
	case c.vault:
		contract = domain.ContractVault
	default:
		return nil, nil
	}

	if len(vLog.Topics) < 2 {
		return nil, nil
	}

	timestamp, err := c.blockTime(ctx, vLog.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve block time: %w", err)
	}

	blockHash := vLog.BlockHash.Hex()
	event := &domain.ProtocolEvent{
		Chain:       c.chainID,
		Contract:    contract,
		Token:       topicAddress(vLog.Topics[1]),
		TxHash:      vLog.TxHash.Hex(),
		LogIndex:    vLog.Index,
		BlockNumber: vLog.BlockNumber,
		BlockHash:   &blockHash,
		Timestamp:   timestamp,
	}

	switch vLog.Topics[0] {
	case projectRegisteredSig:
		if len(vLog.Topics) < 3 {
			return nil, fmt.Errorf("ProjectRegistered log %s missing owner topic", vLog.TxHash.Hex())
		}
		values, err := c.events.Unpack("ProjectRegistered", vLog.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack ProjectRegistered: %w", err)
		}
		event.EventType = domain.EventTypeProjectRegistered
		event.Params = domain.EventParams{
			Owner:       topicAddress(vLog.Topics[2]),
			FeeSplitter: values[0].(common.Address).Hex(),
			Tier:        domain.Tier(values[1].(uint8)),
		}

	case feeDepositedSig:
		values, err := c.events.Unpack("FeeDeposited", vLog.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack FeeDeposited: %w", err)
		}
		event.EventType = domain.EventTypeFeeDeposited
		event.Params = domain.EventParams{
			Amount:     values[0].(*big.Int).String(),
			Meaningful: values[1].(bool),
		}

	case sunsetAnnouncedSig:
		if len(vLog.Topics) < 3 {
			return nil, fmt.Errorf("SunsetAnnounced log %s missing announcer topic", vLog.TxHash.Hex())
		}
		values, err := c.events.Unpack("SunsetAnnounced", vLog.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack SunsetAnnounced: %w", err)
		}
		event.EventType = domain.EventTypeSunsetAnnounced
		event.Params = domain.EventParams{
			AnnouncedBy:  topicAddress(vLog.Topics[2]),
			ExecutableAt: values[0].(*big.Int).Int64(),
			Reason:       values[1].(string),
		}

	case sunsetCancelledSig:
		if len(vLog.Topics) < 3 {
			return nil, fmt.Errorf("SunsetCancelled log %s missing canceller topic", vLog.TxHash.Hex())
		}
		event.EventType = domain.EventTypeSunsetCancelled
		event.Params = domain.EventParams{
			CancelledBy: topicAddress(vLog.Topics[2]),
		}

	case sunsetExecutedSig:
		if len(vLog.Topics) < 3 {
			return nil, fmt.Errorf("SunsetExecuted log %s missing executor topic", vLog.TxHash.Hex())
		}
		event.EventType = domain.EventTypeSunsetExecuted
		event.Params = domain.EventParams{
			ExecutedBy: topicAddress(vLog.Topics[2]),
		}

	case depositedSig:
		values, err := c.events.Unpack("Deposited", vLog.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack Deposited: %w", err)
		}
		event.EventType = domain.EventTypeDeposited
		event.Params = domain.EventParams{
			Amount:     values[0].(*big.Int).String(),
			NewBalance: values[1].(*big.Int).String(),
		}

	case sunsetTriggeredSig:
		values, err := c.events.Unpack("SunsetTriggered", vLog.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack SunsetTriggered: %w", err)
		}
		event.EventType = domain.EventTypeSunsetTriggered
		event.Params = domain.EventParams{
			ActualBalance:  values[0].(*big.Int).String(),
			SnapshotSupply: values[1].(*big.Int).String(),
		}

	case claimedSig:
		if len(vLog.Topics) < 3 {
			return nil, fmt.Errorf("Claimed log %s missing holder topic", vLog.TxHash.Hex())
		}
		values, err := c.events.Unpack("Claimed", vLog.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack Claimed: %w", err)
		}
		event.EventType = domain.EventTypeClaimed
		event.Params = domain.EventParams{
			Holder: topicAddress(vLog.Topics[2]),
			Amount: values[0].(*big.Int).String(),
		}

	default:
		return nil, nil
	}

	return event, nil
}

// blockTime resolves a block's timestamp, memoizing headers since all logs of
// one block share it
func (c *ethereumClient) blockTime(ctx context.Context, blockNumber uint64) (time.Time, error) {
	c.mu.Lock()
	cached, ok := c.blockTimes[blockNumber]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	header, err := c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, err
	}

	timestamp := time.Unix(int64(header.Time), 0).UTC()

	c.mu.Lock()
	// Bound the memo; emitters move forward so old entries are dead weight
	if len(c.blockTimes) > 1024 {
		c.blockTimes = make(map[uint64]time.Time)
	}
	c.blockTimes[blockNumber] = timestamp
	c.mu.Unlock()

	return timestamp, nil
}

// SubscribeFilterLogs subscribes to filter logs
func (c *ethereumClient) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return c.client.SubscribeFilterLogs(ctx, query, ch)
}

// FilterLogs retrieves historical logs, chunking the block range and halving
// the chunk size when the provider rejects a range as too large
func (c *ethereumClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	if query.BlockHash != nil {
		return c.client.FilterLogs(ctx, query)
	}

	fromBlock := big.NewInt(0)
	if query.FromBlock != nil {
		fromBlock = query.FromBlock
	}

	toBlock := query.ToBlock
	if toBlock == nil {
		header, err := c.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest block: %w", err)
		}
		toBlock = header.Number
	}

	var allLogs []types.Log
	stepSize := uint64(100000)
	currentFrom := new(big.Int).Set(fromBlock)

	for currentFrom.Cmp(toBlock) <= 0 {
		currentTo := new(big.Int).Add(currentFrom, new(big.Int).SetUint64(stepSize-1))
		if currentTo.Cmp(toBlock) > 0 {
			currentTo.Set(toBlock)
		}

		chunk := query
		chunk.FromBlock = new(big.Int).Set(currentFrom)
		chunk.ToBlock = new(big.Int).Set(currentTo)

		logs, err := c.client.FilterLogs(ctx, chunk)
		if err != nil {
			if !isTooManyResultsError(err) {
				return nil, fmt.Errorf("failed to get logs for range %d-%d: %w",
					currentFrom.Uint64(), currentTo.Uint64(), err)
			}
			if stepSize <= 1 {
				return nil, fmt.Errorf("single-block range %d still over limit: %w", currentFrom.Uint64(), err)
			}
			stepSize /= 2
			logger.Warn("Too many results, reducing step size",
				zap.Uint64("newStepSize", stepSize),
				zap.Uint64("fromBlock", currentFrom.Uint64()))
			continue
		}

		allLogs = append(allLogs, logs...)
		currentFrom.SetUint64(currentTo.Uint64() + 1)
	}

	return allLogs, nil
}

// isTooManyResultsError checks if the error is related to too many results
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "query returned more than 10000 results") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum")
}

// HeaderByNumber returns a header by number
func (c *ethereumClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.client.HeaderByNumber(ctx, number)
}

// Close closes the connection
func (c *ethereumClient) Close() {
	c.client.Close()
}

func topicAddress(topic common.Hash) string {
	return common.BytesToAddress(topic.Bytes()).Hex()
}
