package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const defaultTripAfter = 5

// ErrBreakerOpen is returned while the provider is considered down.
var ErrBreakerOpen = gobreaker.ErrOpenState

// Breaker fails fast after repeated provider errors instead of spending the
// full call timeout on every remaining email.
type Breaker struct {
	next Completer
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(name string, next Completer, tripAfter uint32, log zerolog.Logger) *Breaker {
	if tripAfter == 0 {
		tripAfter = defaultTripAfter
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		// The caller giving up is not the provider failing.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *Breaker) Complete(ctx context.Context, req Request) (Completion, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, req)
	})
	if err != nil {
		if c, ok := res.(Completion); ok {
			return c, err
		}
		return Completion{}, err
	}
	return res.(Completion), nil
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }
