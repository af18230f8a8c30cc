package backend

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ledgerops/evm-submit/transaction"
	"github.com/ledgerops/evm-submit/wallet"
)

var ErrWrongSigner = errors.New("transaction sender does not match signer")

type Signer interface {
	// SignTransaction signs the transaction and returns the signed transaction or an error.
	SignTransaction(tx *transaction.Unsigned) (*transaction.Signed, error)
	// Address returns the address of the signer.
	Address() common.Address
}

// LocalSigner is the signer used by the backend implementation. It holds the
// account in memory and only signs for the chain it was created for.
type LocalSigner struct {
	account *wallet.Account
	chainID *big.Int
}

func NewSigner(account *wallet.Account, chainID *big.Int) *LocalSigner {
	return &LocalSigner{
		account: account,
		chainID: new(big.Int).Set(chainID),
	}
}

func (s *LocalSigner) SignTransaction(tx *transaction.Unsigned) (*transaction.Signed, error) {
	if tx.From() != s.account.Address() {
		return nil, fmt.Errorf("%w: %s", ErrWrongSigner, tx.From().Hex())
	}
	if tx.ChainID().Cmp(s.chainID) != 0 {
		return nil, fmt.Errorf("signing for chain %s with a signer for chain %s", tx.ChainID(), s.chainID)
	}
	signed, err := s.account.SignTx(tx.Tx(), s.chainID)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return transaction.NewSigned(tx, signed)
}

func (s *LocalSigner) Address() common.Address {
	return s.account.Address()
}

var _ Signer = (*LocalSigner)(nil)
