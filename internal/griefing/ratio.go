package griefing

import (
	"fmt"
	"math/big"
	"strings"
)

const fracDigits = 18

// ParseRatio converts a decimal string such as "2" or "0.5" into the
// 18-decimal fixed-point representation.
func ParseRatio(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRatio, s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > fracDigits {
		return nil, fmt.Errorf("%w: more than %d fractional digits", ErrInvalidRatio, fracDigits)
	}
	if whole == "" {
		whole = "0"
	}
	frac += strings.Repeat("0", fracDigits-len(frac))

	r, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRatio, s)
	}
	return r, nil
}

// MustParseRatio is ParseRatio for constants
func MustParseRatio(s string) *big.Int {
	r, err := ParseRatio(s)
	if err != nil {
		panic(err)
	}
	return r
}

// FormatRatio renders a fixed-point ratio without trailing zeros
func FormatRatio(r *big.Int) string {
	if r == nil {
		return "0"
	}
	whole, frac := new(big.Int).QuoRem(r, Scale, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	f := frac.String()
	f = strings.Repeat("0", fracDigits-len(f)) + f
	return whole.String() + "." + strings.TrimRight(f, "0")
}
