package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ExponentialBackoff(t *testing.T) {
	testCases := []struct {
		exponent     int
		unit         time.Duration
		wantDuration time.Duration
	}{
		{exponent: 0, unit: time.Second, wantDuration: time.Second},
		{exponent: 3, unit: time.Second, wantDuration: 8 * time.Second},
		{exponent: 4, unit: 100 * time.Millisecond, wantDuration: 1600 * time.Millisecond},
		{exponent: MaxBackoffExponent, unit: time.Nanosecond, wantDuration: time.Duration(4294967296)},
	}
	for _, tc := range testCases {
		backoff, err := ExponentialBackoff(tc.exponent, tc.unit)
		require.NoError(t, err)
		assert.Equal(t, tc.wantDuration, backoff, "exponent %d", tc.exponent)
	}
}

func Test_ExponentialBackoff_invalid(t *testing.T) {
	for _, exponent := range []int{-1, MaxBackoffExponent + 1} {
		_, err := ExponentialBackoff(exponent, time.Second)
		assert.ErrorIs(t, err, ErrInvalidBackoffExponent)
	}

	_, err := ExponentialBackoff(1, 0)
	assert.EqualError(t, err, "backoff unit must be positive, got 0s")
}
