package x402

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice converts a human-readable token amount ("1.25", "$0.10") into
// base units of an asset with the given decimals. Amounts finer than one base
// unit are rejected rather than rounded.
func ParsePrice(price string, decimals int32) (string, error) {
	cleaned := strings.TrimSpace(price)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", ErrMissingPrice
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return "", fmt.Errorf("x402: invalid price %q: %w", price, err)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("x402: price %q must be positive", price)
	}

	units := amount.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return "", fmt.Errorf("x402: price %q has more than %d decimal places", price, decimals)
	}
	return units.BigInt().String(), nil
}

// ValidateBaseUnits checks that amount is a positive base-10 integer.
func ValidateBaseUnits(amount string) error {
	if amount == "" {
		return ErrMissingPrice
	}
	n, ok := new(big.Int).SetString(amount, 10)
	if !ok || n.Sign() <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidPrice, amount)
	}
	return nil
}

// FormatBaseUnits renders base units as a decimal token amount, e.g. "1000000"
// with 6 decimals is "1".
func FormatBaseUnits(amount string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("x402: invalid amount %q: %w", amount, err)
	}
	return d.Shift(-decimals).String(), nil
}
