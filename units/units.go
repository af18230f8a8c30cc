package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrMalformedAmount is returned when a decimal string cannot be converted
// into sub-units without losing precision.
var ErrMalformedAmount = errors.New("malformed amount")

// Converter converts between integer sub-units and their decimal rendering at
// a fixed number of fractional digits. The zero value has no fractional
// digits.
type Converter struct {
	decimals uint8
}

var (
	// Ether converts between wei and ether (10^18 wei per ether).
	Ether = NewConverter(18)
	// Gwei converts between wei and gwei (10^9 wei per gwei).
	Gwei = NewConverter(9)
)

func NewConverter(decimals uint8) *Converter {
	return &Converter{decimals: decimals}
}

// Decimals returns the number of fractional digits.
func (c *Converter) Decimals() uint8 { return c.decimals }

func (c *Converter) scale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(c.decimals)), nil)
}

// ToSubUnits parses a non-negative decimal string such as "0.5", "12" or ".25"
// into sub-units. Signs, exponents, whitespace and more than Decimals()
// fractional digits are rejected with ErrMalformedAmount.
func (c *Converter) ToSubUnits(s string) (*big.Int, error) {
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("%w: %q has no digits", ErrMalformedAmount, s)
	}
	// frac still holds any second decimal point, which isDigits rejects.
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("%w: %q is not a non-negative decimal number", ErrMalformedAmount, s)
	}
	if len(frac) > int(c.decimals) {
		return nil, fmt.Errorf("%w: %q has %d fractional digits, at most %d allowed", ErrMalformedAmount, s, len(frac), c.decimals)
	}

	digits := whole + frac + strings.Repeat("0", int(c.decimals)-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	return v, nil
}

// ToDecimalString renders x with exactly Decimals fractional digits. The
// conversion is exact, nothing is rounded.
func (c *Converter) ToDecimalString(x *big.Int) string {
	if x == nil {
		x = new(big.Int)
	}
	sign := ""
	abs := new(big.Int).Set(x)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}
	whole, frac := new(big.Int).QuoRem(abs, c.scale(), new(big.Int))
	if c.decimals == 0 {
		return sign + whole.String()
	}
	fracStr := frac.String()
	fracStr = strings.Repeat("0", int(c.decimals)-len(fracStr)) + fracStr
	return sign + whole.String() + "." + fracStr
}

// Trimmed renders x like ToDecimalString but drops trailing fractional zeros.
// It is meant for display only.
func (c *Converter) Trimmed(x *big.Int) string {
	s := c.ToDecimalString(x)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
