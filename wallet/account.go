package wallet

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

const PrivateKeyLength = 32

var ErrInvalidPrivateKey = errors.New("invalid private key")

// Account is a secp256k1 key pair controlling an EVM address. The private key
// never leaves the Account; String and log marshalling only reveal the address.
type Account struct {
	key  *secp256k1.PrivateKey
	addr common.Address
}

func NewAccount() (*Account, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return newAccount(key), nil
}

// NewAccountFromHex parses a hex encoded private key, with or without 0x prefix.
func NewAccountFromHex(s string) (*Account, error) {
	raw, err := DecodeHex(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	defer zeroBytes(raw)
	return NewAccountFromBytes(raw)
}

func NewAccountFromBytes(raw []byte) (*Account, error) {
	if len(raw) != PrivateKeyLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeyLength, len(raw))
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(raw); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidPrivateKey)
	}
	return newAccount(secp256k1.NewPrivateKey(&scalar)), nil
}

func newAccount(key *secp256k1.PrivateKey) *Account {
	return &Account{key: key, addr: PubKeyToAddress(key.PubKey())}
}

func (a *Account) Address() common.Address {
	return a.addr
}

// SignTx signs tx for the given chain with an EIP-155 signer, which binds the
// signature to chainID.
func (a *Account) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if a.key == nil {
		return nil, errors.New("account key has been wiped")
	}
	raw := a.key.Serialize()
	defer zeroBytes(raw)
	ecdsaKey, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, err
	}
	defer ecdsaKey.D.SetInt64(0)
	return types.SignTx(tx, types.NewEIP155Signer(chainID), ecdsaKey)
}

// Zero wipes the private key. The account can no longer sign afterwards.
func (a *Account) Zero() {
	if a.key != nil {
		a.key.Zero()
		a.key = nil
	}
}

func (a *Account) String() string {
	return a.addr.Hex()
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (a *Account) MarshalZerologObject(e *zerolog.Event) {
	e.Str("address", a.addr.Hex())
}

var _ zerolog.LogObjectMarshaler = (*Account)(nil)

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
