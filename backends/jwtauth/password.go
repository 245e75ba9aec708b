package jwtauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/on-the-ground/effect_ive_runtime/effects/auth"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
	"golang.org/x/crypto/bcrypt"
)

var _ auth.PasswordHasher = (*PasswordHasher)(nil)

type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a bcrypt hasher. A cost of zero selects
// bcrypt.DefaultCost.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("jwtauth: invalid bcrypt cost %d", cost)
	}
	return &PasswordHasher{cost: cost}, nil
}

func (h *PasswordHasher) Hash(_ context.Context, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("jwtauth: hash password: %w", err))
	}
	return string(hash), nil
}

func (h *PasswordHasher) Compare(_ context.Context, password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, retry.Permanent(fmt.Errorf("jwtauth: malformed password hash: %w", err))
	}
}
