package sdk

import (
	"fmt"
	"math/big"
	"strings"
)

// validateAmount accepts a positive plain decimal ("1", "0.25") with at most
// decimals fractional digits.
func validateAmount(amount string, decimals uint8) error {
	if amount == "" || strings.ContainsAny(amount, "eE/+-") {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, amount)
	}
	if r.Sign() <= 0 {
		return fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, amount)
	}
	if _, frac, found := strings.Cut(amount, "."); found && len(frac) > int(decimals) {
		return fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, amount, decimals)
	}
	return nil
}
