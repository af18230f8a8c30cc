package backend_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	ptest "polycry.pt/poly-go/test"

	"github.com/ledgerops/evm-submit/backend"
	ctest "github.com/ledgerops/evm-submit/client/test"
	"github.com/ledgerops/evm-submit/transaction"
	"github.com/ledgerops/evm-submit/wallet"
	wtest "github.com/ledgerops/evm-submit/wallet/test"
)

var testChainID = big.NewInt(421614)

func newUnsigned(t *testing.T, from *wallet.Account, chainID *big.Int) *transaction.Unsigned {
	rng := ptest.Prng(t)
	u, err := transaction.Assemble(transaction.Params{
		From:    from.Address(),
		To:      wtest.NewRandomAddress(rng),
		Value:   big.NewInt(500_000_000_000_000_000),
		FeeRate: big.NewInt(2),
		Budget:  27300,
		ChainID: chainID,
		Nonce:   0,
	})
	require.NoError(t, err)
	return u
}

func TestLocalSigner(t *testing.T) {
	acc := wtest.NewRandomAccount()
	signer := backend.NewSigner(acc, testChainID)
	require.Equal(t, acc.Address(), signer.Address())

	u := newUnsigned(t, acc, testChainID)
	signed, err := signer.SignTransaction(u)
	require.NoError(t, err)

	sender, err := types.Sender(types.NewEIP155Signer(testChainID), signed.Tx())
	require.NoError(t, err)
	require.Equal(t, acc.Address(), sender)
	require.Zero(t, u.Value().Cmp(signed.Value()))
	require.Equal(t, u.Budget(), signed.Budget())
}

func TestLocalSignerRejectsForeignRecords(t *testing.T) {
	acc := wtest.NewRandomAccount()
	signer := backend.NewSigner(acc, testChainID)

	_, err := signer.SignTransaction(newUnsigned(t, wtest.NewRandomAccount(), testChainID))
	require.ErrorIs(t, err, backend.ErrWrongSigner)

	_, err = signer.SignTransaction(newUnsigned(t, acc, big.NewInt(1)))
	require.Error(t, err)
}

func TestLocalSignerAfterZero(t *testing.T) {
	acc := wtest.NewRandomAccount()
	signer := backend.NewSigner(acc, testChainID)
	u := newUnsigned(t, acc, testChainID)
	acc.Zero()
	_, err := signer.SignTransaction(u)
	require.Error(t, err)
}

func TestRPCTransactor(t *testing.T) {
	acc := wtest.NewRandomAccount()
	signed, err := backend.NewSigner(acc, testChainID).SignTransaction(newUnsigned(t, acc, testChainID))
	require.NoError(t, err)

	var sent *types.Transaction
	mock := ctest.NewMockRPCClient(ctest.WithSendTransaction(func(_ context.Context, tx *types.Transaction) error {
		sent = tx
		return nil
	}))
	hash, err := backend.NewRPCTransactor(mock).SubmitTransaction(context.Background(), signed)
	require.NoError(t, err)
	require.Equal(t, signed.Hash(), hash)
	require.Equal(t, signed.Hash(), sent.Hash())

	rejected := errors.New("nonce too low")
	mock = ctest.NewMockRPCClient(ctest.WithSendTransaction(func(context.Context, *types.Transaction) error {
		return rejected
	}))
	_, err = backend.NewRPCTransactor(mock).SubmitTransaction(context.Background(), signed)
	require.ErrorIs(t, err, rejected)
}
