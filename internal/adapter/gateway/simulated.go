// Package gateway provides the card payment gateway used for recharges.
package gateway

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	tokenPrefix    = "tok_"
	minTokenLength = 11
)

// Options tunes the simulated processor.
type Options struct {
	MaxAmount   domain.Money  // per-authorization ceiling
	DeclineRate float64       // probability in [0,1] of a random decline
	Latency     time.Duration // simulated network delay
	Currency    string
	RecordTTL   time.Duration // lifetime of payment records

	Rand func() float64   // defaults to math/rand/v2
	Now  func() time.Time // defaults to time.Now
}

// Simulated is an in-process stand-in for a card processor. It implements ports.PaymentGateway.
type Simulated struct {
	opts    Options
	records ports.PaymentRecordStore
	log     zerolog.Logger
}

// NewSimulated creates a simulated gateway that records every attempt in records.
func NewSimulated(records ports.PaymentRecordStore, opts Options, log zerolog.Logger) *Simulated {
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxAmount <= 0 {
		opts.MaxAmount = 1_000_000
	}
	return &Simulated{opts: opts, records: records, log: log}
}

// Authorize charges amount to the tokenized card.
// Business declines are returned as *domain.PaymentDeclinedError.
func (g *Simulated) Authorize(ctx context.Context, amount domain.Money, cardToken string) (*domain.Authorization, error) {
	if err := g.wait(ctx); err != nil {
		return nil, fmt.Errorf("gateway authorize: %w", err)
	}

	now := g.opts.Now().UTC()
	record := &domain.PaymentRecord{
		Reference: newReference(now),
		Amount:    amount,
		Currency:  g.opts.Currency,
		CardLast4: lastFour(cardToken),
		CreatedAt: now,
	}

	if declined := g.check(amount, cardToken); declined != nil {
		declined.Reference = record.Reference
		record.Status = domain.PaymentStatusDeclined
		record.DeclineReason = declined.Reason
		if err := g.records.Save(ctx, record, g.opts.RecordTTL); err != nil {
			g.log.Warn().Err(err).Str("reference", record.Reference).Msg("failed to record declined payment")
		}
		g.log.Info().
			Str("reference", record.Reference).
			Str("reason", string(declined.Reason)).
			Int64("amount", int64(amount)).
			Msg("payment declined")
		return nil, declined
	}

	record.Status = domain.PaymentStatusApproved
	if err := g.records.Save(ctx, record, g.opts.RecordTTL); err != nil {
		return nil, fmt.Errorf("gateway authorize: record payment: %w", err)
	}

	g.log.Info().
		Str("reference", record.Reference).
		Int64("amount", int64(amount)).
		Msg("payment approved")

	return &domain.Authorization{
		Reference:  record.Reference,
		Amount:     amount,
		Currency:   record.Currency,
		ApprovedAt: now,
	}, nil
}

func (g *Simulated) check(amount domain.Money, cardToken string) *domain.PaymentDeclinedError {
	switch {
	case !validToken(cardToken):
		return &domain.PaymentDeclinedError{Reason: domain.DeclineInvalidToken, Message: "invalid card token"}
	case amount <= 0:
		return &domain.PaymentDeclinedError{Reason: domain.DeclineInvalidAmount, Message: "amount must be positive"}
	case amount > g.opts.MaxAmount:
		return &domain.PaymentDeclinedError{
			Reason:  domain.DeclineAmountAboveCeiling,
			Message: fmt.Sprintf("amount exceeds the %s limit", g.opts.MaxAmount),
		}
	case g.opts.Rand() < g.opts.DeclineRate:
		return &domain.PaymentDeclinedError{Reason: domain.DeclineRejected, Message: "card declined by issuer"}
	}
	return nil
}

// DescribeCard returns brand and last four digits for a card being saved.
func (g *Simulated) DescribeCard(cardToken, cardNumber string) (*domain.CardInfo, error) {
	if !validToken(cardToken) {
		return nil, domain.ErrInvalidCardToken
	}
	digits := onlyDigits(cardNumber)
	if digits == "" {
		return nil, domain.ErrInvalidCardNumber
	}
	return &domain.CardInfo{
		Token: cardToken,
		Brand: DetectBrand(digits),
		Last4: lastFour(digits),
	}, nil
}

// Lookup returns the stored record of an authorization attempt.
func (g *Simulated) Lookup(ctx context.Context, reference string) (*domain.PaymentRecord, error) {
	return g.records.Get(ctx, reference)
}

func (g *Simulated) wait(ctx context.Context) error {
	if g.opts.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.opts.Latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validToken(token string) bool {
	return len(token) >= minTokenLength && strings.HasPrefix(token, tokenPrefix)
}

func newReference(now time.Time) string {
	return fmt.Sprintf("pay_%d_%s", now.Unix(), uuid.NewString()[:8])
}

// DetectBrand infers the card network from the leading digits.
func DetectBrand(digits string) domain.CardBrand {
	has := func(prefixes ...string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(digits, p) {
				return true
			}
		}
		return false
	}

	switch {
	case has("4"):
		return domain.CardBrandVisa
	case has("51", "52", "53", "54", "55"):
		return domain.CardBrandMastercard
	case has("34", "37"):
		return domain.CardBrandAmex
	case has("6011", "622", "64", "65"):
		return domain.CardBrandDiscover
	case has("35"):
		return domain.CardBrandJCB
	case has("36", "38", "39"):
		return domain.CardBrandDiners
	case has("62"):
		return domain.CardBrandUnionPay
	default:
		return domain.CardBrandUnknown
	}
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lastFour(s string) string {
	digits := onlyDigits(s)
	if len(digits) < 4 {
		return "0000"
	}
	return digits[len(digits)-4:]
}
