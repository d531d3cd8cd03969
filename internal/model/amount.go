package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ParseAmount parses a base-unit decimal string.
func ParseAmount(s string) (uint256.Int, error) {
	var v uint256.Int
	if err := v.SetFromDecimal(strings.TrimSpace(s)); err != nil {
		return v, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

// ParseAddress parses a 0x-prefixed hex account address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// Tokens converts a whole-token count to base units with the given decimals.
func Tokens(n uint64, decimals uint8) uint256.Int {
	var v uint256.Int
	v.Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	v.Mul(&v, uint256.NewInt(n))
	return v
}

// ParseTokens parses a whole-token decimal string and scales it to base units.
func ParseTokens(s string, decimals uint8) (uint256.Int, error) {
	v, err := ParseAmount(s)
	if err != nil {
		return v, err
	}
	unit := Tokens(1, decimals)
	if _, overflow := v.MulOverflow(&v, &unit); overflow {
		return v, fmt.Errorf("parse amount %q: overflows 256 bits", s)
	}
	return v, nil
}

// FormatTokens renders base units as a token amount with up to four
// fractional digits, truncated.
func FormatTokens(v uint256.Int, decimals uint8) string {
	unit := Tokens(1, decimals)
	var whole, frac uint256.Int
	whole.DivMod(&v, &unit, &frac)

	s := whole.Dec()
	if decimals == 0 || frac.IsZero() {
		return s
	}
	digits := frac.Dec()
	if pad := int(decimals) - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	if len(digits) > 4 {
		digits = digits[:4]
	}
	digits = strings.TrimRight(digits, "0")
	if digits == "" {
		return s
	}
	return s + "." + digits
}
