package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures the circuit around gateway authorizations.
type BreakerSettings struct {
	MaxRequests         uint32        // probes allowed while half-open
	Interval            time.Duration // closed-state counter reset period
	Timeout             time.Duration // open-state duration before probing
	ConsecutiveFailures uint32        // failures that trip the breaker
}

// Breaker decorates a PaymentGateway with a circuit breaker.
// Declines are successful calls; only infrastructure failures count.
type Breaker struct {
	next ports.PaymentGateway
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next.
func NewBreaker(next ports.PaymentGateway, s BreakerSettings, log zerolog.Logger) *Breaker {
	threshold := s.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		IsSuccessful: isSuccessful,
	}

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func isSuccessful(err error) bool {
	var declined *domain.PaymentDeclinedError
	return err == nil || errors.As(err, &declined) || errors.Is(err, context.Canceled)
}

// Authorize runs the wrapped authorization through the breaker.
func (b *Breaker) Authorize(ctx context.Context, amount domain.Money, cardToken string) (*domain.Authorization, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Authorize(ctx, amount, cardToken)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return res.(*domain.Authorization), nil
}

// DescribeCard is local validation and bypasses the breaker.
func (b *Breaker) DescribeCard(cardToken, cardNumber string) (*domain.CardInfo, error) {
	return b.next.DescribeCard(cardToken, cardNumber)
}

// Lookup bypasses the breaker.
func (b *Breaker) Lookup(ctx context.Context, reference string) (*domain.PaymentRecord, error) {
	return b.next.Lookup(ctx, reference)
}

// State reports the breaker state, e.g. for health output.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
