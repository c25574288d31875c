// Package network carries the replicated drive triple between hosts and
// guards the publishing side with a circuit breaker.
package network

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/logging"
)

// Operation is a single network write
type Operation func() error

// Breaker wraps network operations with a circuit breaker. Once the peer
// fails CircuitBreakerMaxConsecutiveFails times in a row, operations fail
// fast until CircuitBreakerTimeout has passed.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  *logging.Logger
}

// NewBreaker creates a breaker named name with the thresholds from cfg
func NewBreaker(name string, cfg config.NetworkConfig, logger *logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.Discard()
	}
	maxFails := uint32(cfg.CircuitBreakerMaxConsecutiveFails)
	if maxFails == 0 {
		maxFails = 1
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.CircuitBreakerMaxRequests),
		Interval:    cfg.CircuitBreakerInterval,
		Timeout:     cfg.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Breaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Execute runs op through the breaker. An open breaker returns
// gobreaker.ErrOpenState without calling op. A done ctx returns its error
// without calling op or counting against the breaker.
func (b *Breaker) Execute(ctx context.Context, op Operation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("circuit breaker: %w", err)
	}
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, op()
	})
	if err != nil {
		return fmt.Errorf("circuit breaker: %w", err)
	}
	return nil
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// Counts returns the failure and success counts of the current interval
func (b *Breaker) Counts() gobreaker.Counts {
	return b.breaker.Counts()
}
