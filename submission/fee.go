package submission

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// The sampled gas price is scaled by FeeNumerator/FeeDenominator.
const (
	FeeNumerator   = 110
	FeeDenominator = 100
)

type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// FeeEstimator determines the fee rate, in wei per gas, of a submission.
type FeeEstimator struct {
	node     GasPricer
	override *big.Int
}

// NewFeeEstimator returns an estimator that samples node, or that always
// answers override if it is non-nil. A negative override is malformed input.
func NewFeeEstimator(node GasPricer, override *big.Int) (*FeeEstimator, error) {
	f := &FeeEstimator{node: node}
	if override != nil {
		if override.Sign() < 0 {
			return nil, newError(Idle, KindMalformedInput, fmt.Errorf("negative fee rate override %s", override))
		}
		f.override = new(big.Int).Set(override)
	}
	return f, nil
}

// Estimate returns the override verbatim without touching the network, or
// the suggested rate * 110 / 100 rounded down.
func (f *FeeEstimator) Estimate(ctx context.Context) (*big.Int, error) {
	if f.override != nil {
		return new(big.Int).Set(f.override), nil
	}
	suggested, err := f.node.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classify(FeePriced, KindFeeQuery, err)
	}
	if suggested == nil || suggested.Sign() < 0 {
		return nil, newError(FeePriced, KindFeeQuery, errors.New("node suggested an invalid gas price"))
	}
	return ScaleFee(suggested), nil
}

func ScaleFee(suggested *big.Int) *big.Int {
	fee := new(big.Int).Mul(suggested, big.NewInt(FeeNumerator))
	return fee.Quo(fee, big.NewInt(FeeDenominator))
}
