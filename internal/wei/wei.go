// ABOUTME: Arbitrary-precision decimal-string arithmetic for rewards, stakes, and escrow amounts.
// ABOUTME: Amounts are base-10 unsigned integers compared and combined without floating point.

package wei

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInvalidAmount is returned when a string is not a non-negative base-10 integer.
var ErrInvalidAmount = errors.New("invalid amount")

// maxBits bounds amounts to the 256-bit range used by the on-chain types
// these values mirror.
const maxBits = 256

// Parse converts a decimal string into a big.Int. Empty strings parse as zero.
func Parse(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	if n.BitLen() > maxBits {
		return nil, fmt.Errorf("%w: %q exceeds 256 bits", ErrInvalidAmount, s)
	}
	return n, nil
}

// Valid reports whether s parses as an amount.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Cmp compares two amount strings numerically. Malformed inputs are treated
// as zero so list filters stay total.
func Cmp(a, b string) int {
	x, err := Parse(a)
	if err != nil {
		x = new(big.Int)
	}
	y, err := Parse(b)
	if err != nil {
		y = new(big.Int)
	}
	return x.Cmp(y)
}

// Add returns a+b as a decimal string.
func Add(a, b string) (string, error) {
	x, err := Parse(a)
	if err != nil {
		return "", err
	}
	y, err := Parse(b)
	if err != nil {
		return "", err
	}
	return new(big.Int).Add(x, y).String(), nil
}

// Sub returns a-b as a decimal string. Returns ErrInvalidAmount if the
// result would be negative.
func Sub(a, b string) (string, error) {
	x, err := Parse(a)
	if err != nil {
		return "", err
	}
	y, err := Parse(b)
	if err != nil {
		return "", err
	}
	if x.Cmp(y) < 0 {
		return "", fmt.Errorf("%w: %s - %s is negative", ErrInvalidAmount, a, b)
	}
	return new(big.Int).Sub(x, y).String(), nil
}

// Share returns floor(amount * percent / 100) as a decimal string.
// The rounding remainder is intentionally not distributed.
func Share(amount string, percent int) (string, error) {
	x, err := Parse(amount)
	if err != nil {
		return "", err
	}
	if percent < 0 {
		return "", fmt.Errorf("%w: negative share %d", ErrInvalidAmount, percent)
	}
	n := new(big.Int).Mul(x, big.NewInt(int64(percent)))
	n.Quo(n, big.NewInt(100))
	return n.String(), nil
}
