package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failN(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Call(func() error { return errBoom })
	}
}

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Minute})
	assert.Equal(t, "closed", cb.State())

	failN(cb, 2)
	assert.Equal(t, "closed", cb.State())
	assert.Equal(t, uint32(2), cb.FailureCount())

	failN(cb, 1)
	assert.Equal(t, "open", cb.State())

	err := cb.Call(func() error { return nil })
	require.Error(t, err)
	assert.ErrorContains(t, err, "circuit breaker is open")
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Minute})

	failN(cb, 2)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, uint32(0), cb.FailureCount())

	// Two more failures are still below the threshold after the reset.
	failN(cb, 2)
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond})

	failN(cb, 1)
	require.Equal(t, "open", cb.State())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreakerHalfOpenProbeFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond})

	failN(cb, 1)
	time.Sleep(20 * time.Millisecond)

	err := cb.Call(func() error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "open", cb.State())
}

func TestCircuitBreakerPassesErrorThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	err := cb.Call(func() error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
}
