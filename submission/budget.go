package submission

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ledgerops/evm-submit/transaction"
)

// The simulated gas usage is raised by BudgetNumerator/BudgetDenominator,
// rounding up.
const (
	BudgetNumerator   = 130
	BudgetDenominator = 100
)

type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// BudgetEstimator determines the gas limit of a submission by simulating it.
type BudgetEstimator struct {
	node GasEstimator
}

func NewBudgetEstimator(node GasEstimator) *BudgetEstimator {
	return &BudgetEstimator{node: node}
}

// Estimate simulates a transfer of value from from to to and returns the
// estimate with the safety margin applied. Failures are never retried.
func (b *BudgetEstimator) Estimate(ctx context.Context, from, to common.Address, value, feeRate *big.Int) (uint64, error) {
	gas, err := b.node.EstimateGas(ctx, transaction.Skeleton(from, to, value, feeRate))
	if err != nil {
		return 0, classify(BudgetEstimated, KindSimulation, err)
	}
	if gas == 0 {
		return 0, newError(BudgetEstimated, KindSimulation, errors.New("node estimated zero gas"))
	}
	budget, err := ApplyMargin(gas)
	if err != nil {
		return 0, newError(BudgetEstimated, KindSimulation, err)
	}
	return budget, nil
}

// ApplyMargin returns ceil(gas * 130 / 100).
func ApplyMargin(gas uint64) (uint64, error) {
	b := new(big.Int).SetUint64(gas)
	b.Mul(b, big.NewInt(BudgetNumerator))
	b.Add(b, big.NewInt(BudgetDenominator-1))
	b.Quo(b, big.NewInt(BudgetDenominator))
	if !b.IsUint64() {
		return 0, fmt.Errorf("gas estimate %d overflows with margin", gas)
	}
	return b.Uint64(), nil
}
