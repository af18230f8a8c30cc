package units_test

import (
	"math/big"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"
	"pgregory.net/rapid"

	"github.com/ledgerops/evm-submit/units"
)

func TestToSubUnits(t *testing.T) {
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)
	halfEther, _ := new(big.Int).SetString("500000000000000000", 10)

	tests := []struct {
		in   string
		want *big.Int
	}{
		{"0", big.NewInt(0)},
		{"1", oneEther},
		{"0.5", halfEther},
		{".5", halfEther},
		{"1.", oneEther},
		{"0.001", big.NewInt(1_000_000_000_000_000)},
		{"0.000000000000000001", big.NewInt(1)},
		{"000.100", big.NewInt(100_000_000_000_000_000)},
	}
	for _, tt := range tests {
		got, err := units.Ether.ToSubUnits(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, 0, tt.want.Cmp(got), "%s: want %s, got %s", tt.in, tt.want, got)
	}
}

func TestToSubUnitsMalformed(t *testing.T) {
	for _, in := range []string{
		"", ".", "-1", "+1", "1e18", " 1", "1 ", "1,5", "1.2.3", "abc", "0x10",
		"0.0000000000000000001", // 19 fractional digits
	} {
		_, err := units.Ether.ToSubUnits(in)
		require.ErrorIs(t, err, units.ErrMalformedAmount, "input %q", in)
	}
}

func TestToDecimalString(t *testing.T) {
	require.Equal(t, "0.000000000000000000", units.Ether.ToDecimalString(big.NewInt(0)))
	require.Equal(t, "0.000000000000000001", units.Ether.ToDecimalString(big.NewInt(1)))
	require.Equal(t, "0.500000000000000000", units.Ether.ToDecimalString(big.NewInt(500_000_000_000_000_000)))
	require.Equal(t, "1.100000000", units.Gwei.ToDecimalString(big.NewInt(1_100_000_000)))
	require.Equal(t, "42", units.NewConverter(0).ToDecimalString(big.NewInt(42)))
}

func TestZeroConverter(t *testing.T) {
	var c units.Converter
	require.Equal(t, uint8(0), c.Decimals())
	require.Equal(t, "42", c.ToDecimalString(big.NewInt(42)))
	v, err := c.ToSubUnits("42")
	require.NoError(t, err)
	require.Equal(t, int64(42), v.Int64())
	require.Equal(t, uint8(18), units.Ether.Decimals())
}

func TestTrimmed(t *testing.T) {
	require.Equal(t, "0", units.Ether.Trimmed(big.NewInt(0)))
	require.Equal(t, "0.5", units.Ether.Trimmed(big.NewInt(500_000_000_000_000_000)))
	require.Equal(t, "1", units.Ether.Trimmed(big.NewInt(1_000_000_000_000_000_000)))
	require.Equal(t, "0.1", units.Gwei.Trimmed(big.NewInt(100_000_000)))
}

func TestFractionalDigitsOverPrecision(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		whole := rapid.StringMatching(`[0-9]{1,10}`).Draw(t, "whole")
		extra := rapid.IntRange(19, 40).Draw(t, "digits")
		frac := rapid.StringMatching(`[0-9]{` + strconv.Itoa(extra) + `}`).Draw(t, "frac")
		_, err := units.Ether.ToSubUnits(whole + "." + frac)
		if err == nil {
			t.Fatalf("accepted %d fractional digits", len(frac))
		}
	})
}

func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Up to 2^256-1, the largest value an EVM balance can hold.
		b := rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "bytes")
		x := new(big.Int).SetBytes(b)
		for _, c := range []*units.Converter{units.Ether, units.Gwei, units.NewConverter(0)} {
			back, err := c.ToSubUnits(c.ToDecimalString(x))
			if err != nil {
				t.Fatalf("decimals %d: %v", c.Decimals(), err)
			}
			if back.Cmp(x) != 0 {
				t.Fatalf("decimals %d: %s != %s", c.Decimals(), back, x)
			}
		}
	})
}

func TestRoundTripRandomAmounts(t *testing.T) {
	rng := pkgtest.Prng(t)
	for i := 0; i < 1000; i++ {
		x := new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), 128))
		s := units.Ether.ToDecimalString(x)
		require.Len(t, s[strings.IndexByte(s, '.')+1:], 18)
		back, err := units.Ether.ToSubUnits(s)
		require.NoError(t, err)
		require.Zero(t, x.Cmp(back))
	}
}
