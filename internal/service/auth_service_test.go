package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"
	"personal-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testStartingBalance = domain.Money(100000)

func setupAuthService(t *testing.T) (
	*AuthServiceImpl,
	*mocks.MockAccountRepository,
	*mocks.MockHashService,
	*mocks.MockTokenService,
	*gomock.Controller,
) {
	ctrl := gomock.NewController(t)
	accountRepo := mocks.NewMockAccountRepository(ctrl)
	hashSvc := mocks.NewMockHashService(ctrl)
	tokenSvc := mocks.NewMockTokenService(ctrl)

	svc := NewAuthService(accountRepo, hashSvc, tokenSvc, testStartingBalance)
	return svc, accountRepo, hashSvc, tokenSvc, ctrl
}

func testIssuedToken() *ports.IssuedToken {
	now := time.Now().UTC()
	return &ports.IssuedToken{
		Token:        "jwt_token_here",
		IssuedAt:     now,
		ExpiresAt:    now.Add(30 * time.Minute),
		RefreshAfter: now.Add(15 * time.Minute),
	}
}

func TestAuthService_Register_Success(t *testing.T) {
	svc, accountRepo, hashSvc, tokenSvc, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	req := ports.RegisterRequest{
		Email:    " Mario.Rossi@Example.com ",
		Password: "StrongP@ss123",
		Profile:  domain.Profile{FirstName: "Mario", LastName: "Rossi"},
	}

	// Expect: check email uniqueness on the normalized address
	accountRepo.EXPECT().GetByEmail(ctx, "mario.rossi@example.com").Return(nil, nil)
	hashSvc.EXPECT().Hash(req.Password).Return("$argon2id$hashed", nil)
	accountRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.Account) error {
			assert.Equal(t, "mario.rossi@example.com", a.Email)
			assert.Equal(t, "$argon2id$hashed", a.PasswordHash)
			assert.Equal(t, testStartingBalance, a.Balance)
			assert.Equal(t, domain.DefaultCountry, a.Profile.Country)
			assert.Equal(t, domain.AccountStatusActive, a.Status)
			return nil
		},
	)
	tokenSvc.EXPECT().Generate(gomock.Any(), "mario.rossi@example.com").Return(testIssuedToken(), nil)

	res, err := svc.Register(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.NotEqual(t, uuid.Nil, res.Account.ID)
	assert.Equal(t, "jwt_token_here", res.Token.Token)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc, accountRepo, _, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	accountRepo.EXPECT().GetByEmail(ctx, "taken@example.com").Return(&domain.Account{Email: "taken@example.com"}, nil)

	res, err := svc.Register(ctx, ports.RegisterRequest{Email: "taken@example.com", Password: "password"})
	assert.Nil(t, res)
	assertAppError(t, err, "AUTH_002")
}

func TestAuthService_Register_RaceOnCreate(t *testing.T) {
	svc, accountRepo, hashSvc, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	accountRepo.EXPECT().GetByEmail(ctx, "race@example.com").Return(nil, nil)
	hashSvc.EXPECT().Hash(gomock.Any()).Return("$argon2id$hashed", nil)
	accountRepo.EXPECT().Create(ctx, gomock.Any()).Return(fmt.Errorf("insert account: %w", domain.ErrEmailTaken))

	_, err := svc.Register(ctx, ports.RegisterRequest{Email: "race@example.com", Password: "password"})
	assertAppError(t, err, "AUTH_002")
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, accountRepo, hashSvc, tokenSvc, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	account := &domain.Account{
		ID:           uuid.New(),
		Email:        "test@example.com",
		PasswordHash: "$argon2id$hashed",
		Status:       domain.AccountStatusActive,
	}

	accountRepo.EXPECT().GetByEmail(ctx, "test@example.com").Return(account, nil)
	hashSvc.EXPECT().Verify("correct_password", "$argon2id$hashed").Return(true, nil)
	tokenSvc.EXPECT().Generate(account.ID, account.Email).Return(testIssuedToken(), nil)

	res, err := svc.Login(ctx, "Test@Example.com", "correct_password")
	require.NoError(t, err)
	assert.Equal(t, "jwt_token_here", res.Token.Token)
	assert.Equal(t, account, res.Account)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	svc, accountRepo, _, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	accountRepo.EXPECT().GetByEmail(ctx, "nobody@example.com").Return(nil, nil)

	_, err := svc.Login(ctx, "nobody@example.com", "password")
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, accountRepo, hashSvc, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	account := &domain.Account{
		ID:           uuid.New(),
		Email:        "test@example.com",
		PasswordHash: "$argon2id$hashed",
		Status:       domain.AccountStatusActive,
	}

	accountRepo.EXPECT().GetByEmail(ctx, "test@example.com").Return(account, nil)
	hashSvc.EXPECT().Verify("wrong_password", "$argon2id$hashed").Return(false, nil)

	_, err := svc.Login(ctx, "test@example.com", "wrong_password")
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_AccountSuspended(t *testing.T) {
	svc, accountRepo, hashSvc, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	account := &domain.Account{
		ID:           uuid.New(),
		Email:        "test@example.com",
		PasswordHash: "$argon2id$hashed",
		Status:       domain.AccountStatusSuspended,
	}

	accountRepo.EXPECT().GetByEmail(ctx, "test@example.com").Return(account, nil)
	hashSvc.EXPECT().Verify("correct_password", "$argon2id$hashed").Return(true, nil)

	_, err := svc.Login(ctx, "test@example.com", "correct_password")
	assertAppError(t, err, "AUTH_004")
}

func TestAuthService_Refresh(t *testing.T) {
	t.Run("active account gets a new token", func(t *testing.T) {
		svc, accountRepo, _, tokenSvc, ctrl := setupAuthService(t)
		defer ctrl.Finish()

		account := &domain.Account{ID: uuid.New(), Email: "a@example.com", Status: domain.AccountStatusActive}
		accountRepo.EXPECT().GetByID(gomock.Any(), account.ID).Return(account, nil)
		tokenSvc.EXPECT().Generate(account.ID, account.Email).Return(testIssuedToken(), nil)

		res, err := svc.Refresh(context.Background(), account.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token.Token)
	})

	t.Run("deleted account is rejected", func(t *testing.T) {
		svc, accountRepo, _, _, ctrl := setupAuthService(t)
		defer ctrl.Finish()

		accountRepo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, nil)

		_, err := svc.Refresh(context.Background(), uuid.New())
		assertAppError(t, err, "AUTH_003")
	})

	t.Run("closed account is rejected", func(t *testing.T) {
		svc, accountRepo, _, _, ctrl := setupAuthService(t)
		defer ctrl.Finish()

		account := &domain.Account{ID: uuid.New(), Status: domain.AccountStatusClosed}
		accountRepo.EXPECT().GetByID(gomock.Any(), account.ID).Return(account, nil)

		_, err := svc.Refresh(context.Background(), account.ID)
		assertAppError(t, err, "AUTH_004")
	})
}
