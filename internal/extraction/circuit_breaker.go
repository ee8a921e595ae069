package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while the breaker rejects calls to a failing
// backend.
var ErrCircuitOpen = errors.New("extraction circuit breaker is open")

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// Name labels state-change log lines.
	Name string

	// MaxFailures is the number of consecutive failures that opens the circuit.
	// Default: 3
	MaxFailures uint32

	// Timeout is how long the circuit stays open before a trial call.
	// Default: 30s
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of trial calls allowed while half-open.
	// Default: 2
	HalfOpenMaxSuccesses uint32
}

// CircuitBreaker guards calls to a remote text generator.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a breaker. Zero config fields take defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig, log *zap.Logger) *CircuitBreaker {
	if cfg.Name == "" {
		cfg.Name = "extraction"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxSuccesses == 0 {
		cfg.HalfOpenMaxSuccesses = 2
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &CircuitBreaker{breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})}
}

// Execute runs fn unless the circuit is open. A context cancelled before
// the call counts as a failure without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() (string, error)) (string, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", ErrCircuitOpen
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// State returns "closed", "open" or "half-open".
func (cb *CircuitBreaker) State() string {
	return cb.breaker.State().String()
}
