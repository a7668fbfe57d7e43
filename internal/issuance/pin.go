package issuance

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GeneratePin returns a uniformly random numeric one-time code with exactly
// digits characters and no leading zero, sampled from
// [10^(digits-1), 10^digits). The wallet prompts the user to type it, so it
// stays short and purely decimal.
func GeneratePin(digits int) (string, error) {
	if digits < 1 {
		return "", fmt.Errorf("pin length must be at least 1, got %d", digits)
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))
	if digits == 1 {
		low = big.NewInt(0)
		span = big.NewInt(10)
	}
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return n.Add(n, low).String(), nil
}
