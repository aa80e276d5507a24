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

const testToken = "tok_4242424242424242"

func fixedRand(v float64) func() float64 { return func() float64 { return v } }

func newTestGateway(t *testing.T, opts Options) (*Simulated, *mocks.MockPaymentRecordStore) {
	ctrl := gomock.NewController(t)
	records := mocks.NewMockPaymentRecordStore(ctrl)
	if opts.Rand == nil {
		opts.Rand = fixedRand(0.99)
	}
	if opts.DeclineRate == 0 {
		opts.DeclineRate = 0.05
	}
	opts.Currency = "EUR"
	opts.RecordTTL = time.Hour
	return NewSimulated(records, opts, zerolog.Nop()), records
}

func TestSimulated_Authorize_Approved(t *testing.T) {
	gw, records := newTestGateway(t, Options{})

	var saved *domain.PaymentRecord
	records.EXPECT().Save(gomock.Any(), gomock.Any(), time.Hour).
		DoAndReturn(func(_ context.Context, r *domain.PaymentRecord, _ time.Duration) error {
			saved = r
			return nil
		})

	auth, err := gw.Authorize(context.Background(), 2000, testToken)
	require.NoError(t, err)
	assert.Regexp(t, `^pay_\d+_[0-9a-f]{8}$`, auth.Reference)
	assert.Equal(t, domain.Money(2000), auth.Amount)
	assert.Equal(t, "EUR", auth.Currency)

	require.NotNil(t, saved)
	assert.Equal(t, auth.Reference, saved.Reference)
	assert.Equal(t, domain.PaymentStatusApproved, saved.Status)
	assert.Equal(t, "4242", saved.CardLast4)
}

func TestSimulated_Authorize_Declines(t *testing.T) {
	tests := []struct {
		name   string
		amount domain.Money
		token  string
		rand   float64
		reason domain.DeclineReason
	}{
		{"missing prefix", 2000, "card_4242424242", 0.99, domain.DeclineInvalidToken},
		{"token too short", 2000, "tok_123", 0.99, domain.DeclineInvalidToken},
		{"zero amount", 0, testToken, 0.99, domain.DeclineInvalidAmount},
		{"negative amount", -100, testToken, 0.99, domain.DeclineInvalidAmount},
		{"above ceiling", 1_000_001, testToken, 0.99, domain.DeclineAmountAboveCeiling},
		{"random decline", 2000, testToken, 0.01, domain.DeclineRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, records := newTestGateway(t, Options{Rand: fixedRand(tt.rand)})
			records.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, r *domain.PaymentRecord, _ time.Duration) error {
					assert.Equal(t, domain.PaymentStatusDeclined, r.Status)
					assert.Equal(t, tt.reason, r.DeclineReason)
					return nil
				})

			auth, err := gw.Authorize(context.Background(), tt.amount, tt.token)
			assert.Nil(t, auth)

			var declined *domain.PaymentDeclinedError
			require.True(t, errors.As(err, &declined))
			assert.Equal(t, tt.reason, declined.Reason)
			assert.NotEmpty(t, declined.Reference)
		})
	}
}

func TestSimulated_Authorize_CeilingIsInclusive(t *testing.T) {
	gw, records := newTestGateway(t, Options{MaxAmount: 5000})
	records.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	_, err := gw.Authorize(context.Background(), 5000, testToken)
	assert.NoError(t, err)
}

func TestSimulated_Authorize_RecordFailure(t *testing.T) {
	gw, records := newTestGateway(t, Options{})
	records.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	auth, err := gw.Authorize(context.Background(), 2000, testToken)
	assert.Nil(t, auth)
	require.Error(t, err)
	var declined *domain.PaymentDeclinedError
	assert.False(t, errors.As(err, &declined))
}

func TestSimulated_Authorize_HonoursContext(t *testing.T) {
	gw, _ := newTestGateway(t, Options{Latency: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := gw.Authorize(ctx, 2000, testToken)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSimulated_DescribeCard(t *testing.T) {
	gw, _ := newTestGateway(t, Options{})

	info, err := gw.DescribeCard(testToken, "4242 4242 4242 4242")
	require.NoError(t, err)
	assert.Equal(t, domain.CardBrandVisa, info.Brand)
	assert.Equal(t, "4242", info.Last4)

	info, err = gw.DescribeCard(testToken, "37")
	require.NoError(t, err)
	assert.Equal(t, domain.CardBrandAmex, info.Brand)
	assert.Equal(t, "0000", info.Last4)

	_, err = gw.DescribeCard("bad", "4242424242424242")
	assert.ErrorIs(t, err, domain.ErrInvalidCardToken)

	_, err = gw.DescribeCard(testToken, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidCardNumber)
}

func TestDetectBrand(t *testing.T) {
	tests := map[string]domain.CardBrand{
		"4111111111111111": domain.CardBrandVisa,
		"5105105105105100": domain.CardBrandMastercard,
		"5500000000000004": domain.CardBrandMastercard,
		"340000000000009":  domain.CardBrandAmex,
		"378282246310005":  domain.CardBrandAmex,
		"6011111111111117": domain.CardBrandDiscover,
		"6221260000000000": domain.CardBrandDiscover,
		"6445644564456445": domain.CardBrandDiscover,
		"6500000000000002": domain.CardBrandDiscover,
		"3530111333300000": domain.CardBrandJCB,
		"36227206271667":   domain.CardBrandDiners,
		"38520000023237":   domain.CardBrandDiners,
		"6200000000000005": domain.CardBrandUnionPay,
		"5600000000000000": domain.CardBrandUnknown,
		"9999":             domain.CardBrandUnknown,
	}
	for number, want := range tests {
		assert.Equal(t, want, DetectBrand(number), number)
	}
}

func TestSimulated_Lookup(t *testing.T) {
	gw, records := newTestGateway(t, Options{})
	record := &domain.PaymentRecord{Reference: "pay_1_abcd1234", Status: domain.PaymentStatusApproved}
	records.EXPECT().Get(gomock.Any(), "pay_1_abcd1234").Return(record, nil)
	records.EXPECT().Get(gomock.Any(), "pay_missing").Return(nil, domain.ErrPaymentNotFound)

	got, err := gw.Lookup(context.Background(), "pay_1_abcd1234")
	require.NoError(t, err)
	assert.Equal(t, record, got)

	_, err = gw.Lookup(context.Background(), "pay_missing")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}
