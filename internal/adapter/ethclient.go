package adapter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthClient is the subset of ethclient.Client the emitter, backfiller and
// chain readers use: log subscription and filtering, block metadata, and
// read-only contract calls.
type EthClient interface {
	SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// EthClientDialer opens an EthClient for an RPC endpoint
type EthClientDialer interface {
	Dial(ctx context.Context, rawurl string) (EthClient, error)
}

type gethDialer struct{}

// NewEthClientDialer returns the go-ethereum-backed dialer
func NewEthClientDialer() EthClientDialer {
	return gethDialer{}
}

func (gethDialer) Dial(ctx context.Context, rawurl string) (EthClient, error) {
	return ethclient.DialContext(ctx, rawurl)
}
