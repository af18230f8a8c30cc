package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
)

const DefaultPerCallTimeout = 10 * time.Second

var (
	// ErrTransport marks failures to reach the node at all: connection
	// problems, HTTP errors, undecodable responses and per-call timeouts.
	// Errors answered by the node itself are not wrapped with it.
	ErrTransport = errors.New("transport error")

	ErrChainIDMismatch = errors.New("chain id mismatch")
)

// ChainClient is the set of node queries the submission pipeline depends on.
type ChainClient interface {
	// BalanceAt returns the balance of account at the latest block, in wei.
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	// SuggestGasPrice returns the node's suggested legacy gas price, in wei.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// EstimateGas simulates msg against the latest state and returns the gas
	// it consumes.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	// SendTransaction broadcasts the raw signed transaction.
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	// TransactionReceipt returns the receipt of a mined transaction or
	// ethereum.NotFound while it is still pending.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// rpcBackend is the subset of *ethclient.Client wrapped by Client.
type rpcBackend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Client is a ChainClient talking to a JSON-RPC node. Every call is bounded by
// the per-call timeout.
type Client struct {
	eth     rpcBackend
	timeout time.Duration
	chainID *StableChainIDCache
	log     zerolog.Logger
}

type Option func(*Client)

func WithPerCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log.With().Str("module", "client").Logger()
	}
}

// Dial connects to the node at endpoint. The HTTP transport carries the same
// timeout as the per-call contexts.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	c := newClient(nil, opts...)
	httpClient := &http.Client{Timeout: c.timeout}
	rpcClient, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dialing rpc endpoint: %w: %w", ErrTransport, err)
	}
	c.eth = ethclient.NewClient(rpcClient)
	return c, nil
}

func newClient(eth rpcBackend, opts ...Option) *Client {
	c := &Client{
		eth:     eth,
		timeout: DefaultPerCallTimeout,
		chainID: NewStableChainIDCache(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	balance, err := c.eth.BalanceAt(ctx, account, nil)
	return balance, c.wrap("eth_getBalance", err)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	price, err := c.eth.SuggestGasPrice(ctx)
	return price, c.wrap("eth_gasPrice", err)
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	gas, err := c.eth.EstimateGas(ctx, msg)
	return gas, c.wrap("eth_estimateGas", err)
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.wrap("eth_sendRawTransaction", c.eth.SendTransaction(ctx, tx))
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	return receipt, c.wrap("eth_getTransactionReceipt", err)
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	nonce, err := c.eth.PendingNonceAt(ctx, account)
	return nonce, c.wrap("eth_getTransactionCount", err)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	n, err := c.eth.BlockNumber(ctx)
	return n, c.wrap("eth_blockNumber", err)
}

// ChainID returns the node's chain id. It is queried once and then served
// from cache; a node that later reports a different id is an error.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	if id, ok := c.chainID.Get(); ok {
		return id, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, c.wrap("eth_chainId", err)
	}
	if err := c.chainID.Set(id); err != nil {
		return nil, err
	}
	return id, nil
}

// wrap names the failed method and marks errors that did not come from the
// node as ErrTransport. ethereum.NotFound is passed through untouched.
func (c *Client) wrap(method string, err error) error {
	if err == nil || errors.Is(err, ethereum.NotFound) {
		return err
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		c.log.Debug().Str("method", method).Int("code", rpcErr.ErrorCode()).Err(err).Msg("node rejected call")
		return fmt.Errorf("%s: %w", method, err)
	}
	c.log.Debug().Str("method", method).Err(err).Msg("transport failure")
	return fmt.Errorf("%s: %w: %w", method, ErrTransport, err)
}

// VerifyChainID fails with ErrChainIDMismatch unless the node serves the
// expected chain.
func VerifyChainID(ctx context.Context, c ChainClient, expected *big.Int) error {
	actual, err := c.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("querying chain id: %w", err)
	}
	if actual.Cmp(expected) != 0 {
		return fmt.Errorf("%w: node serves %s, configured %s", ErrChainIDMismatch, actual, expected)
	}
	return nil
}

var _ ChainClient = (*Client)(nil)
