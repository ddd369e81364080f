package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// USDCDecimals is the fixed-point precision of the donation token.
const USDCDecimals = 6

// ErrInvalidAmount marks amounts that fail local validation and must never
// reach the encoder.
var ErrInvalidAmount = errors.New("invalid amount")

// ToUnits converts a human-entered decimal string into an integer in the
// token's smallest unit. The amount must be a positive decimal with at most
// `decimals` fractional digits; anything else fails with ErrInvalidAmount.
func ToUnits(amount string, decimals int) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("%w: %q must be an unsigned decimal", ErrInvalidAmount, amount)
	}
	if decimals < 0 {
		decimals = 0
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if len(fracPart) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, amount, decimals)
	}
	digits := intPart + fracPart
	if digits == "" {
		return nil, fmt.Errorf("%w: %q has no digits", ErrInvalidAmount, amount)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, amount)
		}
	}
	digits += strings.Repeat("0", decimals-len(fracPart))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q must be greater than zero", ErrInvalidAmount, amount)
	}
	return v, nil
}

// FromUnits renders a smallest-unit integer back to a decimal string. It is
// the exact inverse of ToUnits for all valid inputs.
func FromUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	if decimals <= 0 {
		return v.String()
	}
	s := new(big.Int).Abs(v).String()
	neg := v.Sign() < 0
	if len(s) <= decimals {
		frac := strings.Repeat("0", decimals-len(s)) + s
		out := "0." + strings.TrimRight(frac, "0")
		if out == "0." {
			out = "0"
		}
		if neg {
			return "-" + out
		}
		return out
	}
	intPart := s[:len(s)-decimals]
	frac := strings.TrimRight(s[len(s)-decimals:], "0")
	out := intPart
	if frac != "" {
		out = intPart + "." + frac
	}
	if neg {
		return "-" + out
	}
	return out
}

// FormatUSD renders a smallest-unit USDC value with at least two fractional
// digits, the way the UI and error messages display dollar amounts.
func FormatUSD(v *big.Int) string {
	s := FromUnits(v, USDCDecimals)
	_, frac, found := strings.Cut(s, ".")
	if !found {
		return s + ".00"
	}
	if len(frac) == 1 {
		return s + "0"
	}
	return s
}
