// Package database holds the database effect family and its interpreter.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
)

// Name identifies the database interpreter in dispatch diagnostics.
const Name = "database"

// UserRepository is the user capability a backend provides.
//
// Absence is reported through UserNotFound, never through an error.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (UserLookup, error)
	GetByEmail(ctx context.Context, email string) (UserLookup, error)
	Create(ctx context.Context, email, name, passwordHash string) (User, error)
	Update(ctx context.Context, id uuid.UUID, email, name string) (UserLookup, error)
	Delete(ctx context.Context, id uuid.UUID) (UserDeletion, error)
	List(ctx context.Context, limit, offset int) ([]User, error)
}

// MessageRepository is the chat message capability a backend provides.
type MessageRepository interface {
	Save(ctx context.Context, userID uuid.UUID, text string) (ChatMessage, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]ChatMessage, error)
}

var ErrNilRepository = errors.New("database: nil repository")

type Interpreter struct {
	users    UserRepository
	messages MessageRepository
}

func NewInterpreter(users UserRepository, messages MessageRepository) (*Interpreter, error) {
	if users == nil || messages == nil {
		return nil, ErrNilRepository
	}
	return &Interpreter{users: users, messages: messages}, nil
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
	case GetUserByID:
		res, err = effects.Safely(func() (UserLookup, error) {
			return i.users.GetByID(ctx, e.UserID)
		})
	case CreateUser:
		res, err = effects.Safely(func() (User, error) {
			return i.users.Create(ctx, e.Email, e.Name, e.PasswordHash)
		})
	case UpdateUser:
		res, err = effects.Safely(func() (UserLookup, error) {
			return i.users.Update(ctx, e.UserID, e.Email, e.Name)
		})
	case DeleteUser:
		res, err = effects.Safely(func() (UserDeletion, error) {
			return i.users.Delete(ctx, e.UserID)
		})
	case ListUsers:
		res, err = effects.Safely(func() ([]User, error) {
			return i.users.List(ctx, e.Limit, e.Offset)
		})
	case SaveMessage:
		res, err = effects.Safely(func() (ChatMessage, error) {
			return i.messages.Save(ctx, e.UserID, e.Text)
		})
	case ListMessagesForUser:
		res, err = effects.Safely(func() ([]ChatMessage, error) {
			return i.messages.ListForUser(ctx, e.UserID)
		})
	default:
		// Effect is sealed; a new variant without a case here is a bug.
		panic(fmt.Errorf("invalid database effect type: %T", e))
	}

	if err != nil {
		return effects.Failed(effects.NewDatabaseError(eff, err.Error(), retry.Database.Classify(err), err))
	}
	return effects.Returned(eff, res)
}
