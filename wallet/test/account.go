package test

import (
	"fmt"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ledgerops/evm-submit/wallet"
)

func NewRandomAccount() *wallet.Account {
	acc, err := wallet.NewAccount()
	if err != nil {
		panic(fmt.Sprintf("generating secp256k1 private key: %v", err))
	}
	return acc
}

func NewRandomAddress(rng *rand.Rand) common.Address {
	var addr common.Address
	rng.Read(addr[:])
	return addr
}
