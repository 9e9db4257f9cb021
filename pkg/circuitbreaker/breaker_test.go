package circuitbreaker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := NewWithSettings("test", Settings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
	})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func() (any, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, "open", b.State())

	_, err := b.Execute(func() (any, error) { return "ok", nil })
	assert.True(t, IsOpen(err))
}

func TestBreaker_PassesThroughResult(t *testing.T) {
	b := New("test")

	res, err := b.Execute(func() (any, error) { return "ok", nil })

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, "closed", b.State())
	assert.False(t, IsOpen(err))
}

func TestBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	rejected := errors.New("rejected")
	b := NewWithSettings("test", Settings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
		Ignored:             []error{rejected},
	})

	for i := 0; i < 4; i++ {
		_, err := b.Execute(func() (any, error) { return nil, fmt.Errorf("wrapped: %w", rejected) })
		require.ErrorIs(t, err, rejected)
	}

	assert.Equal(t, "closed", b.State())
}
