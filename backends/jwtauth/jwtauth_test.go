package jwtauth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/backends/jwtauth"
	"github.com/on-the-ground/effect_ive_runtime/effects/auth"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct{ at time.Time }

func (c *clock) now() time.Time { return c.at }

func newService(t *testing.T, opts ...jwtauth.Option) (*jwtauth.TokenService, *clock) {
	t.Helper()
	c := &clock{at: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := jwtauth.NewTokenService([]byte("test-secret"), append([]jwtauth.Option{jwtauth.WithClock(c.now)}, opts...)...)
	require.NoError(t, err)
	return svc, c
}

func TestNewTokenService_RequiresSecret(t *testing.T) {
	_, err := jwtauth.NewTokenService(nil)
	assert.ErrorIs(t, err, jwtauth.ErrEmptySecret)
}

func TestGenerateThenValidate(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)
	id := uuid.New()

	issued, err := svc.Generate(ctx, id, "ada@example.com", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, c.at.Add(time.Hour), issued.ExpiresAt)

	v, err := svc.Validate(ctx, issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenValid{UserID: id, Email: "ada@example.com", ExpiresAt: issued.ExpiresAt}, v)
}

func TestValidate_Expired(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t, jwtauth.WithAccessTTL(time.Minute))
	issued, err := svc.Generate(ctx, uuid.New(), "a@b.c", 0)
	require.NoError(t, err)

	c.at = c.at.Add(2 * time.Minute)
	v, err := svc.Validate(ctx, issued.AccessToken)

	require.NoError(t, err)
	assert.Equal(t, auth.TokenExpired{ExpiredAt: issued.ExpiresAt}, v)
}

func TestValidate_RejectsGarbageAndForeignSignatures(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	other, err := jwtauth.NewTokenService([]byte("other-secret"), jwtauth.WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	foreign, err := other.Generate(ctx, uuid.New(), "a@b.c", 0)
	require.NoError(t, err)

	for _, token := range []string{"not-a-jwt", foreign.AccessToken} {
		v, err := svc.Validate(ctx, token)
		require.NoError(t, err)
		assert.IsType(t, auth.TokenInvalid{}, v)
	}
}

func TestValidate_RefreshTokenIsNotAnAccessToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	issued, err := svc.Generate(ctx, uuid.New(), "a@b.c", 0)
	require.NoError(t, err)

	v, err := svc.Validate(ctx, issued.RefreshToken)

	require.NoError(t, err)
	assert.IsType(t, auth.TokenInvalid{}, v)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	issued, err := svc.Generate(ctx, uuid.New(), "a@b.c", 0)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, issued.AccessToken))
	v, err := svc.Validate(ctx, issued.AccessToken)

	require.NoError(t, err)
	assert.Equal(t, auth.TokenInvalid{Reason: "token revoked"}, v)

	err = svc.Revoke(ctx, "garbage")
	assert.ErrorIs(t, err, jwtauth.ErrMalformedToken)
	assert.True(t, retry.IsPermanent(err))
}

func TestRefresh_RotatesToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	id := uuid.New()
	issued, err := svc.Generate(ctx, id, "a@b.c", 0)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, issued.RefreshToken)
	require.NoError(t, err)
	pair, ok := refreshed.(auth.IssuedToken)
	require.True(t, ok)
	v, err := svc.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, v.(auth.TokenValid).UserID)

	reused, err := svc.Refresh(ctx, issued.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenInvalid{Reason: "token revoked"}, reused)
}

func TestPasswordHasher(t *testing.T) {
	ctx := context.Background()
	h, err := jwtauth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := h.Hash(ctx, "s3cret")
	require.NoError(t, err)

	ok, err := h.Compare(ctx, "s3cret", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(ctx, "wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Compare(ctx, "s3cret", "not-a-hash")
	assert.True(t, retry.IsPermanent(err))
}

func TestNewPasswordHasher_RejectsInvalidCost(t *testing.T) {
	_, err := jwtauth.NewPasswordHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)
}
