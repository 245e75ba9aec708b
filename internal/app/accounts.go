package app

import (
	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/auth"
	"github.com/on-the-ground/effect_ive_runtime/effects/database"
)

// SignupOutcome is SignedUp or EmailTaken.
type SignupOutcome interface {
	signupOutcome()
}

type SignedUp struct {
	User  database.User
	Token auth.IssuedToken
}

func (SignedUp) signupOutcome() {}

type EmailTaken struct {
	Email string
}

func (EmailTaken) signupOutcome() {}

// Signup registers a user and issues their first tokens.
func Signup(email, name, password string) effects.Program[SignupOutcome] {
	return func(yield effects.Yield) SignupOutcome {
		if _, taken := effects.Perform[database.UserLookup](yield, auth.GetUserByEmail{Email: email}).(database.UserFound); taken {
			return EmailTaken{Email: email}
		}

		hashed := effects.Perform[auth.PasswordHashed](yield, auth.HashPassword{Password: password})
		user := effects.Perform[database.User](yield, database.CreateUser{
			Email:        email,
			Name:         name,
			PasswordHash: hashed.Hash,
		})
		token := effects.Perform[auth.IssuedToken](yield, auth.GenerateToken{UserID: user.ID, Email: user.Email})
		return SignedUp{User: user, Token: token}
	}
}

// LoginOutcome is LoggedIn or InvalidCredentials.
type LoginOutcome interface {
	loginOutcome()
}

type LoggedIn struct {
	UserID uuid.UUID
	Token  auth.IssuedToken
}

func (LoggedIn) loginOutcome() {}

// InvalidCredentials does not say whether the email or the password was
// wrong.
type InvalidCredentials struct{}

func (InvalidCredentials) loginOutcome() {}

func Login(email, password string) effects.Program[LoginOutcome] {
	return func(yield effects.Yield) LoginOutcome {
		found, ok := effects.Perform[database.UserLookup](yield, auth.GetUserByEmail{Email: email}).(database.UserFound)
		if !ok {
			return InvalidCredentials{}
		}
		check := effects.Perform[auth.PasswordCheck](yield, auth.ValidatePassword{
			Password:     password,
			PasswordHash: found.User.PasswordHash,
		})
		if !check.Valid {
			return InvalidCredentials{}
		}
		token := effects.Perform[auth.IssuedToken](yield, auth.GenerateToken{UserID: found.User.ID, Email: found.User.Email})
		return LoggedIn{UserID: found.User.ID, Token: token}
	}
}

// Authenticate validates an access token.
func Authenticate(token string) effects.Program[auth.Validation] {
	return effects.Single[auth.Validation](auth.ValidateToken{Token: token})
}
