package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

var ErrInvalidAddress = errors.New("invalid address")

// PubKeyToAddress derives the EVM address of a public key: the last 20 bytes
// of keccak256 over the uncompressed key without its 0x04 prefix.
func PubKeyToAddress(pubKey *secp256k1.PublicKey) common.Address {
	uncompressed := pubKey.SerializeUncompressed()
	hash := sha3.NewLegacyKeccak256()
	hash.Write(uncompressed[1:])
	return common.BytesToAddress(hash.Sum(nil)[12:])
}

// ParseAddress parses a 0x prefixed, 40 hex digit address. Mixed-case input
// must carry a valid EIP-55 checksum; all-lower or all-upper input is accepted
// as is.
func ParseAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, fmt.Errorf("%w: %q is missing the 0x prefix", ErrInvalidAddress, s)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q is not 20 hex encoded bytes", ErrInvalidAddress, s)
	}
	addr := common.HexToAddress(s)
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex()[2:] != body {
		return common.Address{}, fmt.Errorf("%w: %q has a bad checksum", ErrInvalidAddress, s)
	}
	return addr, nil
}

func DecodeHex(in string) ([]byte, error) {
	normalized := in
	if strings.HasPrefix(in, "0x") || strings.HasPrefix(in, "0X") {
		normalized = normalized[2:]
	}
	return hex.DecodeString(normalized)
}
