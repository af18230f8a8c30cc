package submission

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// BalanceGuard rejects a submission whose sender cannot cover it. The check
// is advisory: nothing is reserved, a concurrent spender can still drain the
// account before the transaction lands.
type BalanceGuard struct {
	node BalanceReader
}

func NewBalanceGuard(node BalanceReader) *BalanceGuard {
	return &BalanceGuard{node: node}
}

// Check returns the balance of addr iff it is at least required. Otherwise
// the error wraps an *InsufficientFundsError.
func (g *BalanceGuard) Check(ctx context.Context, addr common.Address, required *big.Int) (*big.Int, error) {
	balance, err := g.node.BalanceAt(ctx, addr)
	if err != nil {
		return nil, classify(BalanceChecked, KindTransport, err)
	}
	if balance == nil {
		return nil, newError(BalanceChecked, KindTransport, errors.New("node returned no balance"))
	}
	if err := Covers(balance, required); err != nil {
		return nil, newError(BalanceChecked, KindInsufficientFunds, err)
	}
	return balance, nil
}

// Covers fails with an *InsufficientFundsError unless available >= required.
func Covers(available, required *big.Int) error {
	if available.Cmp(required) < 0 {
		return &InsufficientFundsError{
			Required:  new(big.Int).Set(required),
			Available: new(big.Int).Set(available),
		}
	}
	return nil
}
