// Package chain wraps go-ethereum's ethclient with the confirmed-header and
// partitioned-log-fetch primitives the state-fold engine (internal/statefold)
// builds on, grounded on the op-stack/Espresso L1-client idiom found in the
// retrieval pack's other_examples/ (op-node's derive/l1 client and
// EspressoSystems' op-service/sources/l1_client.go) since the teacher repo's
// own chain client talks to Neo N3 over raw JSON-RPC, not go-ethereum.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/cartesi/rollups-sub002/infrastructure/resilience"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

// Client is a thin, resilience-wrapped façade over an L1 JSON-RPC/WS
// endpoint. Every other component depends on this interface, never on
// ethclient directly, so tests can substitute a fake.
type Client interface {
	HeaderByNumber(ctx context.Context, number *uint64) (rollupstypes.Block, error)
	HeaderByHash(ctx context.Context, hash common.Hash) (rollupstypes.Block, error)
	FilterLogs(ctx context.Context, q LogQuery) ([]types.Log, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)

	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	Close()
}

// LogQuery mirrors ethereum.FilterQuery, scoped to a single block range.
type LogQuery struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []common.Address
	Topics    [][]common.Hash
}

func (q LogQuery) toFilterQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(q.FromBlock),
		ToBlock:   new(big.Int).SetUint64(q.ToBlock),
		Addresses: q.Addresses,
		Topics:    q.Topics,
	}
}

type client struct {
	eth *ethclient.Client
	cb  *resilience.CircuitBreaker
}

// Dial connects to an L1 JSON-RPC endpoint (http(s) or ws(s)).
func Dial(ctx context.Context, rawURL string) (Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rawURL, err)
	}
	return &client{
		eth: ethclient.NewClient(rpcClient),
		cb: resilience.New(resilience.Config{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			HalfOpenMax: 1,
		}),
	}, nil
}

func (c *client) HeaderByNumber(ctx context.Context, number *uint64) (rollupstypes.Block, error) {
	var blockNum *big.Int
	if number != nil {
		blockNum = new(big.Int).SetUint64(*number)
	}
	var header *types.Header
	err := c.cb.Execute(ctx, func() error {
		h, err := c.eth.HeaderByNumber(ctx, blockNum)
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	if err != nil {
		return rollupstypes.Block{}, fmt.Errorf("chain: header by number: %w", err)
	}
	return headerToBlock(header), nil
}

func (c *client) HeaderByHash(ctx context.Context, hash common.Hash) (rollupstypes.Block, error) {
	var header *types.Header
	err := c.cb.Execute(ctx, func() error {
		h, err := c.eth.HeaderByHash(ctx, hash)
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	if err != nil {
		return rollupstypes.Block{}, fmt.Errorf("chain: header by hash: %w", err)
	}
	return headerToBlock(header), nil
}

func (c *client) FilterLogs(ctx context.Context, q LogQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.cb.Execute(ctx, func() error {
		l, err := c.eth.FilterLogs(ctx, q.toFilterQuery())
		if err != nil {
			return err
		}
		logs = l
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chain: filter logs [%d,%d]: %w", q.FromBlock, q.ToBlock, err)
	}
	return logs, nil
}

func (c *client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	sub, err := c.eth.SubscribeNewHead(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("chain: subscribe new head: %w", err)
	}
	return sub, nil
}

func (c *client) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := c.cb.Execute(ctx, func() error {
		v, err := c.eth.ChainID(ctx)
		if err != nil {
			return err
		}
		id = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	return id, nil
}

func (c *client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce uint64
	err := c.cb.Execute(ctx, func() error {
		n, err := c.eth.PendingNonceAt(ctx, account)
		if err != nil {
			return err
		}
		nonce = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("chain: pending nonce: %w", err)
	}
	return nonce, nil
}

func (c *client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.cb.Execute(ctx, func() error {
		p, err := c.eth.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chain: suggest gas price: %w", err)
	}
	return price, nil
}

func (c *client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.cb.Execute(ctx, func() error {
		g, err := c.eth.EstimateGas(ctx, msg)
		if err != nil {
			return err
		}
		gas = g
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("chain: estimate gas: %w", err)
	}
	return gas, nil
}

func (c *client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	err := c.cb.Execute(ctx, func() error {
		return c.eth.SendTransaction(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("chain: send transaction: %w", err)
	}
	return nil
}

func (c *client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.cb.Execute(ctx, func() error {
		r, err := c.eth.TransactionReceipt(ctx, txHash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chain: transaction receipt: %w", err)
	}
	return receipt, nil
}

func (c *client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.cb.Execute(ctx, func() error {
		o, err := c.eth.CallContract(ctx, msg, blockNumber)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chain: call contract: %w", err)
	}
	return out, nil
}

func (c *client) Close() {
	c.eth.Close()
}

func headerToBlock(h *types.Header) rollupstypes.Block {
	return rollupstypes.Block{
		Hash:       h.Hash(),
		Number:     h.Number.Uint64(),
		ParentHash: h.ParentHash,
		Timestamp:  h.Time,
		LogsBloom:  h.Bloom.Bytes(),
	}
}
