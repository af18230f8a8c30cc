package test

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"polycry.pt/poly-go/sync"

	"github.com/ledgerops/evm-submit/client"
)

// Method names recorded by MockRPCClient, in JSON-RPC spelling.
const (
	MethodGetBalance            = "eth_getBalance"
	MethodGasPrice              = "eth_gasPrice"
	MethodEstimateGas           = "eth_estimateGas"
	MethodSendRawTransaction    = "eth_sendRawTransaction"
	MethodGetTransactionReceipt = "eth_getTransactionReceipt"
	MethodGetTransactionCount   = "eth_getTransactionCount"
	MethodBlockNumber           = "eth_blockNumber"
	MethodChainID               = "eth_chainId"
)

// MockRPCClient is a client.ChainClient whose methods are set individually.
// Every method not configured through an option panics when called, and every
// call is recorded in order.
type MockRPCClient struct {
	balanceAt          func(ctx context.Context, account common.Address) (*big.Int, error)
	suggestGasPrice    func(ctx context.Context) (*big.Int, error)
	estimateGas        func(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	sendTransaction    func(ctx context.Context, tx *types.Transaction) error
	transactionReceipt func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	pendingNonceAt     func(ctx context.Context, account common.Address) (uint64, error)
	blockNumber        func(ctx context.Context) (uint64, error)
	chainID            func(ctx context.Context) (*big.Int, error)

	mu    sync.Mutex
	calls []string
}

var _ client.ChainClient = (*MockRPCClient)(nil)

type MockRPCClientOption func(*MockRPCClient)

func NewMockRPCClient(opts ...MockRPCClientOption) *MockRPCClient {
	m := &MockRPCClient{
		balanceAt: func(context.Context, common.Address) (*big.Int, error) {
			panic("unimplemented")
		},
		suggestGasPrice: func(context.Context) (*big.Int, error) {
			panic("unimplemented")
		},
		estimateGas: func(context.Context, ethereum.CallMsg) (uint64, error) {
			panic("unimplemented")
		},
		sendTransaction: func(context.Context, *types.Transaction) error {
			panic("unimplemented")
		},
		transactionReceipt: func(context.Context, common.Hash) (*types.Receipt, error) {
			panic("unimplemented")
		},
		pendingNonceAt: func(context.Context, common.Address) (uint64, error) {
			panic("unimplemented")
		},
		blockNumber: func(context.Context) (uint64, error) {
			panic("unimplemented")
		},
		chainID: func(context.Context) (*big.Int, error) {
			panic("unimplemented")
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func WithBalanceAt(f func(ctx context.Context, account common.Address) (*big.Int, error)) MockRPCClientOption {
	return func(m *MockRPCClient) { m.balanceAt = f }
}

// WithBalance answers every balance query with a copy of balance.
func WithBalance(balance *big.Int) MockRPCClientOption {
	return WithBalanceAt(func(context.Context, common.Address) (*big.Int, error) {
		return new(big.Int).Set(balance), nil
	})
}

func WithSuggestGasPrice(f func(ctx context.Context) (*big.Int, error)) MockRPCClientOption {
	return func(m *MockRPCClient) { m.suggestGasPrice = f }
}

func WithGasPrice(price *big.Int) MockRPCClientOption {
	return WithSuggestGasPrice(func(context.Context) (*big.Int, error) {
		return new(big.Int).Set(price), nil
	})
}

func WithEstimateGas(f func(ctx context.Context, msg ethereum.CallMsg) (uint64, error)) MockRPCClientOption {
	return func(m *MockRPCClient) { m.estimateGas = f }
}

func WithGasEstimate(gas uint64) MockRPCClientOption {
	return WithEstimateGas(func(context.Context, ethereum.CallMsg) (uint64, error) {
		return gas, nil
	})
}

func WithSendTransaction(f func(ctx context.Context, tx *types.Transaction) error) MockRPCClientOption {
	return func(m *MockRPCClient) { m.sendTransaction = f }
}

func WithTransactionReceipt(f func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)) MockRPCClientOption {
	return func(m *MockRPCClient) { m.transactionReceipt = f }
}

// WithPendingReceipt makes every receipt query report the transaction as not
// yet mined.
func WithPendingReceipt() MockRPCClientOption {
	return WithTransactionReceipt(func(context.Context, common.Hash) (*types.Receipt, error) {
		return nil, ethereum.NotFound
	})
}

func WithPendingNonceAt(f func(ctx context.Context, account common.Address) (uint64, error)) MockRPCClientOption {
	return func(m *MockRPCClient) { m.pendingNonceAt = f }
}

func WithNonce(nonce uint64) MockRPCClientOption {
	return WithPendingNonceAt(func(context.Context, common.Address) (uint64, error) {
		return nonce, nil
	})
}

func WithBlockNumber(f func(ctx context.Context) (uint64, error)) MockRPCClientOption {
	return func(m *MockRPCClient) { m.blockNumber = f }
}

func WithChainID(f func(ctx context.Context) (*big.Int, error)) MockRPCClientOption {
	return func(m *MockRPCClient) { m.chainID = f }
}

// Calls returns the methods invoked so far, in order.
func (m *MockRPCClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Called reports whether method has been invoked at least once.
func (m *MockRPCClient) Called(method string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == method {
			return true
		}
	}
	return false
}

func (m *MockRPCClient) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

// BalanceAt implements client.ChainClient
func (m *MockRPCClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	m.record(MethodGetBalance)
	return m.balanceAt(ctx, account)
}

// SuggestGasPrice implements client.ChainClient
func (m *MockRPCClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	m.record(MethodGasPrice)
	return m.suggestGasPrice(ctx)
}

// EstimateGas implements client.ChainClient
func (m *MockRPCClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	m.record(MethodEstimateGas)
	return m.estimateGas(ctx, msg)
}

// SendTransaction implements client.ChainClient
func (m *MockRPCClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	m.record(MethodSendRawTransaction)
	return m.sendTransaction(ctx, tx)
}

// TransactionReceipt implements client.ChainClient
func (m *MockRPCClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.record(MethodGetTransactionReceipt)
	return m.transactionReceipt(ctx, txHash)
}

// PendingNonceAt implements client.ChainClient
func (m *MockRPCClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	m.record(MethodGetTransactionCount)
	return m.pendingNonceAt(ctx, account)
}

// BlockNumber implements client.ChainClient
func (m *MockRPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	m.record(MethodBlockNumber)
	return m.blockNumber(ctx)
}

// ChainID implements client.ChainClient
func (m *MockRPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	m.record(MethodChainID)
	return m.chainID(ctx)
}
