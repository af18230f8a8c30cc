package submission

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ledgerops/evm-submit/client"
	"github.com/ledgerops/evm-submit/units"
)

// Kind classifies why a submission failed.
type Kind int

const (
	KindMalformedInput Kind = iota
	KindInsufficientFunds
	KindFeeQuery
	KindSimulation
	KindBroadcast
	KindTransport
	KindConfirmationTimeout
	KindReverted
	KindSigning
)

var (
	ErrMalformedInput      = errors.New("malformed input")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrFeeQuery            = errors.New("fee query failed")
	ErrSimulation          = errors.New("simulation failed")
	ErrBroadcast           = errors.New("broadcast failed")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrReverted            = errors.New("transaction reverted")
	ErrSigning             = errors.New("signing failed")
)

// sentinel returns the error errors.Is matches for kind k.
func (k Kind) sentinel() error {
	switch k {
	case KindMalformedInput:
		return ErrMalformedInput
	case KindInsufficientFunds:
		return ErrInsufficientFunds
	case KindFeeQuery:
		return ErrFeeQuery
	case KindSimulation:
		return ErrSimulation
	case KindBroadcast:
		return ErrBroadcast
	case KindTransport:
		return client.ErrTransport
	case KindConfirmationTimeout:
		return ErrConfirmationTimeout
	case KindReverted:
		return ErrReverted
	case KindSigning:
		return ErrSigning
	}
	return nil
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every failed submission. Stage is the state the
// pipeline was trying to enter when it failed.
type Error struct {
	Stage State
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage.step(), e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newError(stage State, kind Kind, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}

// classify attributes err to stage. Failures to reach the node become
// KindTransport; everything else is reported as kind. An err that already is
// an *Error keeps its classification.
func classify(stage State, kind Kind, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, client.ErrTransport) {
		kind = KindTransport
	}
	return newError(stage, kind, err)
}

// InsufficientFundsError reports a balance below the amount a submission
// needs. Amounts are in wei.
type InsufficientFundsError struct {
	Required  *big.Int
	Available *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("required %s ETH (%s wei), available %s ETH (%s wei)",
		units.Ether.Trimmed(e.Required), e.Required,
		units.Ether.Trimmed(e.Available), e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// KindOf returns the kind of a submission error and false if err carries
// none.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsUnresolved reports whether err leaves the outcome of a broadcast
// transaction unknown. The transaction may still be included later.
func IsUnresolved(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindConfirmationTimeout
}
