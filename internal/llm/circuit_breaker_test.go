package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          2,
		Timeout:              50 * time.Millisecond,
		HalfOpenMaxSuccesses: 1,
	})

	failing := func() (interface{}, error) { return nil, errors.New("boom") }

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(context.Background(), failing)
		require.Error(t, err)
	}

	assert.Equal(t, "open", cb.State())

	_, err := cb.Execute(context.Background(), failing)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_ClosesAfterHalfOpenSuccess(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          1,
		Timeout:              10 * time.Millisecond,
		HalfOpenMaxSuccesses: 1,
	})

	_, _ = cb.Execute(context.Background(), func() (interface{}, error) { return nil, errors.New("boom") })
	require.Equal(t, "open", cb.State())

	time.Sleep(20 * time.Millisecond)

	_, err := cb.Execute(context.Background(), func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "closed", cb.State())
}
