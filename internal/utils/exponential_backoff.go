package utils

import (
	"errors"
	"fmt"
	"time"
)

// MaxBackoffExponent caps the exponent so the shift can't overflow a time.Duration with the usual units.
const MaxBackoffExponent = 32

var ErrInvalidBackoffExponent = errors.New("invalid backoff exponent")

// ExponentialBackoff returns unit * 2^exponent, e.g. 1s, 2s, 4s, 8s for exponents 0 to 3.
func ExponentialBackoff(exponent int, unit time.Duration) (time.Duration, error) {
	if exponent < 0 || exponent > MaxBackoffExponent {
		return 0, fmt.Errorf("%w: %d is out of [0, %d]", ErrInvalidBackoffExponent, exponent, MaxBackoffExponent)
	}
	if unit <= 0 {
		return 0, fmt.Errorf("backoff unit must be positive, got %s", unit)
	}

	return unit * time.Duration(int64(1)<<exponent), nil
}
