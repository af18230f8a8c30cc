package backend

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ledgerops/evm-submit/transaction"
)

// Transactor interacts with the blockchain and is able to submit signed
// transactions to the blockchain.
type Transactor interface {
	// SubmitTransaction broadcasts the given transaction and returns its hash.
	// It does not wait for inclusion.
	SubmitTransaction(ctx context.Context, tx *transaction.Signed) (common.Hash, error)
}

// Broadcaster is the node call an RPCTransactor needs. client.ChainClient
// satisfies it.
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// RPCTransactor submits transactions through eth_sendRawTransaction.
type RPCTransactor struct {
	node Broadcaster
}

func NewRPCTransactor(node Broadcaster) *RPCTransactor {
	return &RPCTransactor{node: node}
}

func (t *RPCTransactor) SubmitTransaction(ctx context.Context, tx *transaction.Signed) (common.Hash, error) {
	if err := t.node.SendTransaction(ctx, tx.Tx()); err != nil {
		return common.Hash{}, fmt.Errorf("sending transaction: %w", err)
	}
	return tx.Hash(), nil
}

var _ Transactor = (*RPCTransactor)(nil)
