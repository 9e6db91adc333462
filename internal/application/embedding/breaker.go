package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects requests to keep a
// failing embedding backend from stalling every matching run.
var ErrCircuitOpen = errors.New("embedding circuit breaker is open")

// newBreaker builds the circuit breaker used around embedding HTTP calls:
// trips after 3 consecutive failures, stays open 30s, closes again after 2
// successes in half-open state.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
		},
	})
}

// execute runs fn through the breaker, translating open-state rejections.
func execute(ctx context.Context, cb *gobreaker.CircuitBreaker, fn func() ([]float32, error)) ([]float32, error) {
	result, err := cb.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result.([]float32), nil
}
