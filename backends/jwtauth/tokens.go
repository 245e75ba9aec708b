// Package jwtauth implements the auth capabilities with HS256-signed JWTs
// and bcrypt password hashes.
package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects/auth"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
)

var _ auth.TokenService = (*TokenService)(nil)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrEmptySecret    = errors.New("jwtauth: empty signing secret")
	ErrMalformedToken = errors.New("jwtauth: malformed token")
)

// rejection is TokenExpired or TokenInvalid.
type rejection interface {
	auth.Validation
	auth.Refresh
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Kind  string `json:"typ"`
}

type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	mu sync.Mutex
	// revoked maps token ids to their expiry, after which they are pruned.
	revoked map[string]time.Time
}

type Option func(*TokenService)

func WithIssuer(issuer string) Option {
	return func(s *TokenService) { s.issuer = issuer }
}

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *TokenService) { s.accessTTL = ttl }
}

func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *TokenService) { s.refreshTTL = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(secret []byte, opts ...Option) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	s := &TokenService{
		secret:     secret,
		issuer:     "effectrun",
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
		revoked:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate issues an access token valid for ttl (the configured access TTL
// when ttl <= 0) together with a refresh token.
func (s *TokenService) Generate(_ context.Context, userID uuid.UUID, email string, ttl time.Duration) (auth.IssuedToken, error) {
	if ttl <= 0 {
		ttl = s.accessTTL
	}
	now := s.now()
	access, exp, err := s.sign(userID, email, kindAccess, now, ttl)
	if err != nil {
		return auth.IssuedToken{}, err
	}
	refresh, _, err := s.sign(userID, email, kindRefresh, now, s.refreshTTL)
	if err != nil {
		return auth.IssuedToken{}, err
	}
	return auth.IssuedToken{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

func (s *TokenService) Validate(_ context.Context, token string) (auth.Validation, error) {
	claims, outcome := s.check(token, kindAccess)
	if outcome != nil {
		return outcome, nil
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return auth.TokenInvalid{Reason: "invalid subject"}, nil
	}
	return auth.TokenValid{UserID: userID, Email: claims.Email, ExpiresAt: claims.ExpiresAt.Time.UTC()}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (auth.Refresh, error) {
	claims, outcome := s.check(refreshToken, kindRefresh)
	if outcome != nil {
		return outcome, nil
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return auth.TokenInvalid{Reason: "invalid subject"}, nil
	}
	s.revoke(claims)
	return s.Generate(ctx, userID, claims.Email, 0)
}

// Revoke invalidates token until it would have expired anyway. Revoking an
// expired token is a no-op.
func (s *TokenService) Revoke(_ context.Context, token string) error {
	claims := &tokenClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, s.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	); err != nil {
		return retry.Permanent(fmt.Errorf("%w: %w", ErrMalformedToken, err))
	}
	if claims.ID == "" {
		return retry.Permanent(fmt.Errorf("%w: missing token id", ErrMalformedToken))
	}
	s.revoke(claims)
	return nil
}

func (s *TokenService) sign(
	userID uuid.UUID,
	email, kind string,
	now time.Time,
	ttl time.Duration,
) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
		Kind:  kind,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwtauth: sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time.UTC(), nil
}

// check parses token and returns its claims, or the TokenExpired or
// TokenInvalid outcome describing why it cannot be used.
func (s *TokenService) check(token, kind string) (*tokenClaims, rejection) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, s.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired) && claims.ExpiresAt != nil:
		return nil, auth.TokenExpired{ExpiredAt: claims.ExpiresAt.Time.UTC()}
	case err != nil:
		return nil, auth.TokenInvalid{Reason: err.Error()}
	case claims.Kind != kind:
		return nil, auth.TokenInvalid{Reason: fmt.Sprintf("expected %s token, got %q", kind, claims.Kind)}
	case s.isRevoked(claims.ID):
		return nil, auth.TokenInvalid{Reason: "token revoked"}
	}
	return claims, nil
}

func (s *TokenService) key(*jwt.Token) (any, error) {
	return s.secret, nil
}

func (s *TokenService) revoke(claims *tokenClaims) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	if claims.ExpiresAt != nil && now.After(claims.ExpiresAt.Time) {
		return
	}
	exp := now.Add(s.refreshTTL)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	s.revoked[claims.ID] = exp
}

func (s *TokenService) isRevoked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[id]
	return ok
}
