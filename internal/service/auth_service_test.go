package service

import (
	"context"
	"testing"

	"app/internal/config"
	"app/internal/model"
	"app/internal/util"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(t *testing.T) (AuthService, *fakeUserRepo, *fakeSubscriptionRepo) {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:            "test-secret",
		AccessTokenTTLMin:    15,
		RefreshTokenTTLHours: 168,
	}
	userRepo := newFakeUserRepo()
	subRepo := &fakeSubscriptionRepo{}
	return NewAuthService(cfg, userRepo, subRepo, zerolog.Nop()), userRepo, subRepo
}

func TestRegister(t *testing.T) {
	svc, userRepo, subRepo := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Email:     "ada@example.com",
		Password:  "correct horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Empty(t, user.Password, "hash must not leak out of the service")

	require.Len(t, userRepo.profiles, 1)
	assert.Equal(t, user.ID, userRepo.profiles[0].UserID)

	sub, err := subRepo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, sub, "registration seeds the subscription row")
	assert.Equal(t, model.SubscriptionStatusInactive, sub.Status)
	assert.False(t, sub.CancelAtPeriodEnd)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	in := RegisterInput{Email: "ada@example.com", Password: "pw", FirstName: "Ada", LastName: "Lovelace"}
	_, err := svc.Register(ctx, in)
	require.NoError(t, err)

	_, err = svc.Register(ctx, in)
	assert.ErrorIs(t, err, ErrEmailAlreadyRegistered)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	tokens, err := svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, tokens.User.ID)
	assert.Empty(t, tokens.User.Password)

	claims, err := util.ValidateJWT(tokens.AccessToken, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	tokens, err := svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, refreshed.User.ID)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = svc.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
