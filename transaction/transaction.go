package transaction

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

// Params are the inputs of Assemble.
type Params struct {
	From    common.Address
	To      common.Address
	Value   *big.Int
	FeeRate *big.Int
	Budget  uint64
	ChainID *big.Int
	Nonce   uint64
}

// Unsigned is a canonical, chain-bound transfer ready to be signed. It cannot
// be modified after Assemble; getters hand out copies.
type Unsigned struct {
	from    common.Address
	to      common.Address
	value   *big.Int
	feeRate *big.Int
	budget  uint64
	chainID *big.Int
	nonce   uint64
}

// Assemble validates p and builds the unsigned record. It performs no I/O.
func Assemble(p Params) (*Unsigned, error) {
	switch {
	case p.To == (common.Address{}):
		return nil, fmt.Errorf("%w: destination is the zero address", ErrInvalidTransaction)
	case p.Value == nil || p.Value.Sign() < 0:
		return nil, fmt.Errorf("%w: value must be non-negative", ErrInvalidTransaction)
	case p.FeeRate == nil || p.FeeRate.Sign() < 0:
		return nil, fmt.Errorf("%w: fee rate must be non-negative", ErrInvalidTransaction)
	case p.Budget == 0:
		return nil, fmt.Errorf("%w: gas limit must be positive", ErrInvalidTransaction)
	case p.ChainID == nil || p.ChainID.Sign() <= 0:
		return nil, fmt.Errorf("%w: chain id must be positive", ErrInvalidTransaction)
	}
	return &Unsigned{
		from:    p.From,
		to:      p.To,
		value:   new(big.Int).Set(p.Value),
		feeRate: new(big.Int).Set(p.FeeRate),
		budget:  p.Budget,
		chainID: new(big.Int).Set(p.ChainID),
		nonce:   p.Nonce,
	}, nil
}

func (u *Unsigned) From() common.Address { return u.from }
func (u *Unsigned) To() common.Address   { return u.to }
func (u *Unsigned) Value() *big.Int      { return new(big.Int).Set(u.value) }
func (u *Unsigned) FeeRate() *big.Int    { return new(big.Int).Set(u.feeRate) }
func (u *Unsigned) Budget() uint64       { return u.budget }
func (u *Unsigned) ChainID() *big.Int    { return new(big.Int).Set(u.chainID) }
func (u *Unsigned) Nonce() uint64        { return u.nonce }

// MaxCost is the most the sender can be charged: value + fee rate * budget.
func (u *Unsigned) MaxCost() *big.Int {
	fee := new(big.Int).Mul(u.feeRate, new(big.Int).SetUint64(u.budget))
	return fee.Add(fee, u.value)
}

// Tx returns the legacy go-ethereum transaction for this record. The chain id
// is applied by the EIP-155 signer at signing time.
func (u *Unsigned) Tx() *types.Transaction {
	to := u.to
	return types.NewTx(&types.LegacyTx{
		Nonce:    u.nonce,
		GasPrice: u.FeeRate(),
		Gas:      u.budget,
		To:       &to,
		Value:    u.Value(),
	})
}

// Skeleton is the provisional call used to simulate a transfer before the gas
// limit is known.
func Skeleton(from, to common.Address, value, feeRate *big.Int) ethereum.CallMsg {
	msg := ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: new(big.Int).Set(value),
	}
	if feeRate != nil {
		msg.GasPrice = new(big.Int).Set(feeRate)
	}
	return msg
}

// Signed is an Unsigned record together with its EIP-155 signature.
type Signed struct {
	*Unsigned
	tx *types.Transaction
}

// NewSigned pairs u with its signed transaction, checking that the signature
// recovers to the record's sender and that no field was altered.
func NewSigned(u *Unsigned, tx *types.Transaction) (*Signed, error) {
	sender, err := types.Sender(types.NewEIP155Signer(u.chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("recovering sender: %w", err)
	}
	if sender != u.from {
		return nil, fmt.Errorf("signature recovers to %s, expected %s", sender.Hex(), u.from.Hex())
	}
	if tx.Nonce() != u.nonce || tx.Gas() != u.budget || tx.GasPrice().Cmp(u.feeRate) != 0 ||
		tx.Value().Cmp(u.value) != 0 || tx.To() == nil || *tx.To() != u.to {
		return nil, errors.New("signed transaction does not match the assembled record")
	}
	return &Signed{Unsigned: u, tx: tx}, nil
}

// Hash is the content derived transaction identifier.
func (s *Signed) Hash() common.Hash {
	return s.tx.Hash()
}

// RawBytes returns the RLP encoding broadcast to the network.
func (s *Signed) RawBytes() ([]byte, error) {
	return s.tx.MarshalBinary()
}

func (s *Signed) Tx() *types.Transaction {
	return s.tx
}
