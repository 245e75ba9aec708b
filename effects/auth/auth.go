// Package auth holds the auth effect family and its interpreter.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/database"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
)

const Name = "auth"

// TokenService issues and checks tokens. Expired and malformed tokens are
// outcomes, not errors.
type TokenService interface {
	Validate(ctx context.Context, token string) (Validation, error)
	Generate(ctx context.Context, userID uuid.UUID, email string, ttl time.Duration) (IssuedToken, error)
	Refresh(ctx context.Context, refreshToken string) (Refresh, error)
	Revoke(ctx context.Context, token string) error
}

type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	// Compare reports whether password matches hash; a mismatch is not an error.
	Compare(ctx context.Context, password, hash string) (bool, error)
}

// UserLookup resolves users by email for login flows.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (database.UserLookup, error)
}

type Services struct {
	Tokens    TokenService
	Passwords PasswordHasher
	Users     UserLookup
}

var ErrMissingService = errors.New("auth: missing service")

type Interpreter struct {
	services Services
}

func NewInterpreter(services Services) (*Interpreter, error) {
	switch {
	case services.Tokens == nil:
		return nil, fmt.Errorf("%w: tokens", ErrMissingService)
	case services.Passwords == nil:
		return nil, fmt.Errorf("%w: passwords", ErrMissingService)
	case services.Users == nil:
		return nil, fmt.Errorf("%w: users", ErrMissingService)
	}
	return &Interpreter{services: services}, nil
}

func (i *Interpreter) Interpret(ctx context.Context, eff effects.Effect) effects.InterpretResult {
	e, ok := effects.Concrete(eff).(Effect)
	if !ok {
		return effects.Unhandled(eff, Name)
	}

	var (
		res any
		err error
	)
	switch e := e.(type) {
	case ValidateToken:
		res, err = effects.Safely(func() (Validation, error) {
			return i.services.Tokens.Validate(ctx, e.Token)
		})
	case GenerateToken:
		res, err = effects.Safely(func() (IssuedToken, error) {
			return i.services.Tokens.Generate(ctx, e.UserID, e.Email, e.TTL)
		})
	case RefreshToken:
		res, err = effects.Safely(func() (Refresh, error) {
			return i.services.Tokens.Refresh(ctx, e.RefreshToken)
		})
	case RevokeToken:
		res, err = effects.Safely(func() (TokenRevoked, error) {
			return TokenRevoked{Token: e.Token}, i.services.Tokens.Revoke(ctx, e.Token)
		})
	case HashPassword:
		res, err = effects.Safely(func() (PasswordHashed, error) {
			hash, err := i.services.Passwords.Hash(ctx, e.Password)
			return PasswordHashed{Hash: hash}, err
		})
	case ValidatePassword:
		res, err = effects.Safely(func() (PasswordCheck, error) {
			valid, err := i.services.Passwords.Compare(ctx, e.Password, e.PasswordHash)
			return PasswordCheck{Valid: valid}, err
		})
	case GetUserByEmail:
		res, err = effects.Safely(func() (database.UserLookup, error) {
			return i.services.Users.GetByEmail(ctx, e.Email)
		})
	default:
		panic(fmt.Errorf("invalid auth effect type: %T", e))
	}

	if err != nil {
		return effects.Failed(effects.NewAuthError(eff, err.Error(), retry.Auth.Classify(err), err))
	}
	return effects.Returned(eff, res)
}
