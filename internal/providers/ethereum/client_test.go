package ethereum_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/logger"
	ethprovider "github.com/sunset-protocol/sunset-indexer/internal/providers/ethereum"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

const (
	registryAddress = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	vaultAddress    = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	tokenAddress    = "0x1111111111111111111111111111111111111111"
	ownerAddress    = "0x2222222222222222222222222222222222222222"
	holderAddress   = "0x3333333333333333333333333333333333333333"
)

const blockTimestamp = uint64(1700000000)

type fakeEthClient struct {
	filterFn func(query goethereum.FilterQuery) ([]types.Log, error)
}

func (f *fakeEthClient) CallContract(_ context.Context, _ goethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEthClient) SubscribeFilterLogs(_ context.Context, _ goethereum.FilterQuery, _ chan<- types.Log) (goethereum.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEthClient) FilterLogs(_ context.Context, query goethereum.FilterQuery) ([]types.Log, error) {
	if f.filterFn == nil {
		return nil, nil
	}
	return f.filterFn(query)
}

func (f *fakeEthClient) BlockNumber(_ context.Context) (uint64, error) {
	return 200, nil
}

func (f *fakeEthClient) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	if number == nil {
		number = big.NewInt(200)
	}
	return &types.Header{Number: number, Time: blockTimestamp}, nil
}

func (f *fakeEthClient) Close() {}

func newClient(t *testing.T) ethprovider.EthereumClient {
	t.Helper()
	client, err := ethprovider.NewClient(domain.ChainBaseMainnet, registryAddress, vaultAddress, &fakeEthClient{})
	require.NoError(t, err)
	return client
}

func sig(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

func addressTopic(addr string) common.Hash {
	return common.BytesToHash(common.HexToAddress(addr).Bytes())
}

// dataWords encodes the non-indexed event data as 32-byte words
func dataWords(vals ...*big.Int) []byte {
	out := make([]byte, 0, len(vals)*32)
	for _, v := range vals {
		out = append(out, common.BigToHash(v).Bytes()...)
	}
	return out
}

func protocolLog(contract string, topics []common.Hash, data []byte) types.Log {
	return types.Log{
		Address:     common.HexToAddress(contract),
		Topics:      topics,
		Data:        data,
		BlockNumber: 150,
		TxHash:      common.HexToHash("0x01"),
		Index:       3,
		BlockHash:   common.HexToHash("0x02"),
	}
}

func TestParseEventLog_ProjectRegistered(t *testing.T) {
	client := newClient(t)

	vLog := protocolLog(registryAddress,
		[]common.Hash{
			sig("ProjectRegistered(address,address,address,uint8)"),
			addressTopic(tokenAddress),
			addressTopic(ownerAddress),
		},
		dataWords(
			new(big.Int).SetBytes(common.HexToAddress(holderAddress).Bytes()),
			big.NewInt(1),
		))

	event, err := client.ParseEventLog(context.Background(), vLog)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.EventTypeProjectRegistered, event.EventType)
	assert.Equal(t, domain.ContractRegistry, event.Contract)
	assert.Equal(t, common.HexToAddress(tokenAddress).Hex(), event.Token)
	assert.Equal(t, common.HexToAddress(ownerAddress).Hex(), event.Params.Owner)
	assert.Equal(t, common.HexToAddress(holderAddress).Hex(), event.Params.FeeSplitter)
	assert.Equal(t, domain.TierPremium, event.Params.Tier)
	assert.Equal(t, uint64(150), event.BlockNumber)
	assert.Equal(t, uint(3), event.LogIndex)
	assert.Equal(t, time.Unix(int64(blockTimestamp), 0).UTC(), event.Timestamp)
}

func TestParseEventLog_FeeDeposited(t *testing.T) {
	client := newClient(t)

	vLog := protocolLog(registryAddress,
		[]common.Hash{
			sig("FeeDeposited(address,uint256,bool)"),
			addressTopic(tokenAddress),
		},
		dataWords(big.NewInt(1000), big.NewInt(1)))

	event, err := client.ParseEventLog(context.Background(), vLog)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.EventTypeFeeDeposited, event.EventType)
	assert.Equal(t, "1000", event.Params.Amount)
	assert.True(t, event.Params.Meaningful)
}

func TestParseEventLog_SunsetAnnounced(t *testing.T) {
	client := newClient(t)

	// executableAt, then the ABI-encoded dynamic reason string
	reason := []byte("maintenance over")
	data := dataWords(big.NewInt(1700604800), big.NewInt(64), big.NewInt(int64(len(reason))))
	data = append(data, common.RightPadBytes(reason, 32)...)

	vLog := protocolLog(registryAddress,
		[]common.Hash{
			sig("SunsetAnnounced(address,address,uint256,string)"),
			addressTopic(tokenAddress),
			addressTopic(ownerAddress),
		},
		data)

	event, err := client.ParseEventLog(context.Background(), vLog)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.EventTypeSunsetAnnounced, event.EventType)
	assert.Equal(t, common.HexToAddress(ownerAddress).Hex(), event.Params.AnnouncedBy)
	assert.Equal(t, int64(1700604800), event.Params.ExecutableAt)
	assert.Equal(t, "maintenance over", event.Params.Reason)
}

func TestParseEventLog_VaultEvents(t *testing.T) {
	client := newClient(t)

	t.Run("deposited", func(t *testing.T) {
		vLog := protocolLog(vaultAddress,
			[]common.Hash{
				sig("Deposited(address,uint256,uint256)"),
				addressTopic(tokenAddress),
			},
			dataWords(big.NewInt(500), big.NewInt(1500)))

		event, err := client.ParseEventLog(context.Background(), vLog)
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, domain.EventTypeDeposited, event.EventType)
		assert.Equal(t, domain.ContractVault, event.Contract)
		assert.Equal(t, "500", event.Params.Amount)
		assert.Equal(t, "1500", event.Params.NewBalance)
	})

	t.Run("sunset triggered", func(t *testing.T) {
		vLog := protocolLog(vaultAddress,
			[]common.Hash{
				sig("SunsetTriggered(address,uint256,uint256)"),
				addressTopic(tokenAddress),
			},
			dataWords(big.NewInt(900), big.NewInt(1000000)))

		event, err := client.ParseEventLog(context.Background(), vLog)
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, domain.EventTypeSunsetTriggered, event.EventType)
		assert.Equal(t, "900", event.Params.ActualBalance)
		assert.Equal(t, "1000000", event.Params.SnapshotSupply)
	})

	t.Run("claimed", func(t *testing.T) {
		vLog := protocolLog(vaultAddress,
			[]common.Hash{
				sig("Claimed(address,address,uint256)"),
				addressTopic(tokenAddress),
				addressTopic(holderAddress),
			},
			dataWords(big.NewInt(42)))

		event, err := client.ParseEventLog(context.Background(), vLog)
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, domain.EventTypeClaimed, event.EventType)
		assert.Equal(t, common.HexToAddress(holderAddress).Hex(), event.Params.Holder)
		assert.Equal(t, "42", event.Params.Amount)
	})
}

func TestParseEventLog_IgnoresForeignLogs(t *testing.T) {
	client := newClient(t)

	t.Run("unknown contract", func(t *testing.T) {
		vLog := protocolLog("0x9999999999999999999999999999999999999999",
			[]common.Hash{
				sig("FeeDeposited(address,uint256,bool)"),
				addressTopic(tokenAddress),
			},
			dataWords(big.NewInt(1), big.NewInt(0)))

		event, err := client.ParseEventLog(context.Background(), vLog)
		require.NoError(t, err)
		assert.Nil(t, event)
	})

	t.Run("unknown event signature", func(t *testing.T) {
		vLog := protocolLog(registryAddress,
			[]common.Hash{
				sig("Transfer(address,address,uint256)"),
				addressTopic(tokenAddress),
			},
			nil)

		event, err := client.ParseEventLog(context.Background(), vLog)
		require.NoError(t, err)
		assert.Nil(t, event)
	})

	t.Run("missing token topic", func(t *testing.T) {
		vLog := protocolLog(registryAddress,
			[]common.Hash{sig("FeeDeposited(address,uint256,bool)")},
			dataWords(big.NewInt(1), big.NewInt(0)))

		event, err := client.ParseEventLog(context.Background(), vLog)
		require.NoError(t, err)
		assert.Nil(t, event)
	})
}

func TestEventSignatures(t *testing.T) {
	sigs := ethprovider.EventSignatures()
	assert.Len(t, sigs, 8)
	assert.Contains(t, sigs, sig("ProjectRegistered(address,address,address,uint8)"))
	assert.Contains(t, sigs, sig("Claimed(address,address,uint256)"))
}

func TestFilterLogs_ChunksLargeRanges(t *testing.T) {
	var ranges [][2]uint64
	fake := &fakeEthClient{filterFn: func(query goethereum.FilterQuery) ([]types.Log, error) {
		ranges = append(ranges, [2]uint64{query.FromBlock.Uint64(), query.ToBlock.Uint64()})
		return []types.Log{{BlockNumber: query.FromBlock.Uint64()}}, nil
	}}
	client, err := ethprovider.NewClient(domain.ChainBaseMainnet, registryAddress, vaultAddress, fake)
	require.NoError(t, err)

	logs, err := client.FilterLogs(context.Background(), goethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		ToBlock:   big.NewInt(150000),
	})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.Equal(t, [][2]uint64{{0, 99999}, {100000, 150000}}, ranges)
}

func TestFilterLogs_HalvesStepOnResultLimit(t *testing.T) {
	failed := false
	var ranges [][2]uint64
	fake := &fakeEthClient{filterFn: func(query goethereum.FilterQuery) ([]types.Log, error) {
		if !failed {
			failed = true
			return nil, errors.New("query returned more than 10000 results")
		}
		ranges = append(ranges, [2]uint64{query.FromBlock.Uint64(), query.ToBlock.Uint64()})
		return nil, nil
	}}
	client, err := ethprovider.NewClient(domain.ChainBaseMainnet, registryAddress, vaultAddress, fake)
	require.NoError(t, err)

	_, err = client.FilterLogs(context.Background(), goethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		ToBlock:   big.NewInt(99999),
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{0, 49999}, {50000, 99999}}, ranges)
}
