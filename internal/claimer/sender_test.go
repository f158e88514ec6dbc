package claimer

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cartesi/rollups-sub002/internal/chain"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
	"github.com/cartesi/rollups-sub002/pkg/logger"
)

// fakeChainClient implements chain.Client with just enough behavior to drive
// ClaimSender.Send through simulate -> build -> sign -> send -> confirm.
type fakeChainClient struct {
	simulateErr error
	sendErr     error
	receipt     *types.Receipt
	head        rollupstypes.Block
}

func (f *fakeChainClient) HeaderByNumber(ctx context.Context, number *uint64) (rollupstypes.Block, error) {
	return f.head, nil
}
func (f *fakeChainClient) HeaderByHash(ctx context.Context, hash common.Hash) (rollupstypes.Block, error) {
	return f.head, nil
}
func (f *fakeChainClient) FilterLogs(ctx context.Context, q chain.LogQuery) ([]types.Log, error) {
	return nil, nil
}
func (f *fakeChainClient) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	return nil, nil
}
func (f *fakeChainClient) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (f *fakeChainClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}
func (f *fakeChainClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}
func (f *fakeChainClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}
func (f *fakeChainClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return f.sendErr
}
func (f *fakeChainClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return f.receipt, nil
}
func (f *fakeChainClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, f.simulateErr
}
func (f *fakeChainClient) Close() {}

var _ chain.Client = (*fakeChainClient)(nil)

type fakeSigner struct{ addr common.Address }

func (s fakeSigner) Address() common.Address { return s.addr }
func (s fakeSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.NewTx(&types.LegacyTx{Nonce: tx.Nonce(), To: tx.To(), Gas: tx.Gas(), GasPrice: tx.GasPrice(), Data: tx.Data()}), nil
}

func TestSendAbsorbsAlreadyClaimedSimulationError(t *testing.T) {
	client := &fakeChainClient{simulateErr: errors.New("execution reverted: claim already submitted")}
	sender := NewClaimSender(client, fakeSigner{}, common.Address{}, big.NewInt(1), 1, logger.NewDefault("test"))

	_, err := sender.Send(context.Background(), rollupstypes.RollupsClaim{EpochIndex: 3})
	if err != nil {
		t.Fatalf("expected already-claimed simulation error to be absorbed, got %v", err)
	}
}

func TestSendPropagatesOtherSimulationErrors(t *testing.T) {
	client := &fakeChainClient{simulateErr: errors.New("execution reverted: out of gas")}
	sender := NewClaimSender(client, fakeSigner{}, common.Address{}, big.NewInt(1), 1, logger.NewDefault("test"))

	_, err := sender.Send(context.Background(), rollupstypes.RollupsClaim{EpochIndex: 3})
	if err == nil {
		t.Fatalf("expected a non-already-claimed simulation error to propagate")
	}
}

func TestSendAbsorbsAlreadyClaimedSendError(t *testing.T) {
	client := &fakeChainClient{sendErr: errors.New("first index must be greater than last claimed")}
	sender := NewClaimSender(client, fakeSigner{}, common.Address{}, big.NewInt(1), 1, logger.NewDefault("test"))

	_, err := sender.Send(context.Background(), rollupstypes.RollupsClaim{EpochIndex: 4})
	if err != nil {
		t.Fatalf("expected already-claimed send error to be absorbed, got %v", err)
	}
}

func TestIsAlreadyClaimedErrorMatchesKnownSubstrings(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{errors.New("Already Claimed"), true},
		{errors.New("claim already submitted by another party"), true},
		{errors.New("first index too low"), true},
	}
	for _, c := range cases {
		if got := isAlreadyClaimedError(c.err); got != c.want {
			t.Errorf("isAlreadyClaimedError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
