package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestBreaker(t *testing.T, failures uint32) (*Breaker, *mocks.MockPaymentGateway) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockPaymentGateway(ctrl)
	b := NewBreaker(next, BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ConsecutiveFailures: failures,
	}, zerolog.Nop())
	return b, next
}

func TestBreaker_TripsOnInfrastructureFailures(t *testing.T) {
	b, next := newTestBreaker(t, 3)
	ctx := context.Background()

	next.EXPECT().Authorize(ctx, domain.Money(2000), testToken).
		Return(nil, errors.New("connection reset")).Times(3)

	for range 3 {
		_, err := b.Authorize(ctx, 2000, testToken)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrGatewayUnavailable)
	}

	// Open: the wrapped gateway is not called again.
	_, err := b.Authorize(ctx, 2000, testToken)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_DeclinesDoNotTrip(t *testing.T) {
	b, next := newTestBreaker(t, 2)
	ctx := context.Background()
	declined := &domain.PaymentDeclinedError{Reason: domain.DeclineRejected, Message: "card declined"}

	next.EXPECT().Authorize(ctx, gomock.Any(), gomock.Any()).Return(nil, declined).Times(5)

	for range 5 {
		_, err := b.Authorize(ctx, 2000, testToken)
		var got *domain.PaymentDeclinedError
		require.True(t, errors.As(err, &got))
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_PassesThrough(t *testing.T) {
	b, next := newTestBreaker(t, 5)
	ctx := context.Background()
	auth := &domain.Authorization{Reference: "pay_1_abcd1234", Amount: 2000}

	next.EXPECT().Authorize(ctx, domain.Money(2000), testToken).Return(auth, nil)
	next.EXPECT().DescribeCard(testToken, "4242").Return(&domain.CardInfo{Brand: domain.CardBrandVisa}, nil)
	next.EXPECT().Lookup(ctx, "pay_1_abcd1234").Return(&domain.PaymentRecord{Reference: "pay_1_abcd1234"}, nil)

	got, err := b.Authorize(ctx, 2000, testToken)
	require.NoError(t, err)
	assert.Equal(t, auth, got)

	info, err := b.DescribeCard(testToken, "4242")
	require.NoError(t, err)
	assert.Equal(t, domain.CardBrandVisa, info.Brand)

	rec, err := b.Lookup(ctx, "pay_1_abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "pay_1_abcd1234", rec.Reference)
}
