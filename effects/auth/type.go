package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
)

// Effect is the sealed set of auth effects.
type Effect interface {
	effects.Effect
	authEffect()
}

type ValidateToken struct {
	Token string
}

func (ValidateToken) EffectTag() string { return "ValidateToken" }
func (ValidateToken) authEffect()       {}

// GenerateToken issues an access/refresh token pair; a zero TTL means the
// token service default.
type GenerateToken struct {
	UserID uuid.UUID
	Email  string
	TTL    time.Duration
}

func (GenerateToken) EffectTag() string { return "GenerateToken" }
func (GenerateToken) authEffect()       {}

type RefreshToken struct {
	RefreshToken string
}

func (RefreshToken) EffectTag() string { return "RefreshToken" }
func (RefreshToken) authEffect()       {}

type RevokeToken struct {
	Token string
}

func (RevokeToken) EffectTag() string { return "RevokeToken" }
func (RevokeToken) authEffect()       {}

type HashPassword struct {
	Password string
}

func (HashPassword) EffectTag() string { return "HashPassword" }
func (HashPassword) authEffect()       {}

type ValidatePassword struct {
	Password     string
	PasswordHash string
}

func (ValidatePassword) EffectTag() string { return "ValidatePassword" }
func (ValidatePassword) authEffect()       {}

type GetUserByEmail struct {
	Email string
}

func (GetUserByEmail) EffectTag() string { return "GetUserByEmail" }
func (GetUserByEmail) authEffect()       {}

// Validation is TokenValid, TokenExpired or TokenInvalid.
type Validation interface {
	tokenValidation()
}

// Refresh is IssuedToken, TokenExpired or TokenInvalid.
type Refresh interface {
	tokenRefresh()
}

type TokenValid struct {
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
}

func (TokenValid) tokenValidation() {}

type TokenExpired struct {
	ExpiredAt time.Time
}

func (TokenExpired) tokenValidation() {}
func (TokenExpired) tokenRefresh()    {}

type TokenInvalid struct {
	Reason string
}

func (TokenInvalid) tokenValidation() {}
func (TokenInvalid) tokenRefresh()    {}

type IssuedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (IssuedToken) tokenRefresh() {}

type TokenRevoked struct {
	Token string
}

type PasswordHashed struct {
	Hash string
}

type PasswordCheck struct {
	Valid bool
}
