package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
)

// Effect is the sealed set of database effects.
type Effect interface {
	effects.Effect
	databaseEffect()
}

type GetUserByID struct {
	UserID uuid.UUID
}

func (GetUserByID) EffectTag() string { return "GetUserById" }
func (GetUserByID) databaseEffect()   {}

type CreateUser struct {
	Email        string
	Name         string
	PasswordHash string
}

func (CreateUser) EffectTag() string { return "CreateUser" }
func (CreateUser) databaseEffect()   {}

// UpdateUser changes the non-empty fields of a user.
type UpdateUser struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

func (UpdateUser) EffectTag() string { return "UpdateUser" }
func (UpdateUser) databaseEffect()   {}

type DeleteUser struct {
	UserID uuid.UUID
}

func (DeleteUser) EffectTag() string { return "DeleteUser" }
func (DeleteUser) databaseEffect()   {}

type ListUsers struct {
	Limit  int
	Offset int
}

func (ListUsers) EffectTag() string { return "ListUsers" }
func (ListUsers) databaseEffect()   {}

type SaveMessage struct {
	UserID uuid.UUID
	Text   string
}

func (SaveMessage) EffectTag() string { return "SaveMessage" }
func (SaveMessage) databaseEffect()   {}

type ListMessagesForUser struct {
	UserID uuid.UUID
}

func (ListMessagesForUser) EffectTag() string { return "ListMessagesForUser" }
func (ListMessagesForUser) databaseEffect()   {}

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

type ChatMessage struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Text      string
	CreatedAt time.Time
}

// UserLookup is the outcome of finding a single user: UserFound or
// UserNotFound.
type UserLookup interface {
	userLookup()
}

type UserFound struct {
	User User
}

func (UserFound) userLookup() {}

// UserNotFound carries whichever key was searched for.
type UserNotFound struct {
	UserID uuid.UUID
	Email  string
}

func (UserNotFound) userLookup()   {}
func (UserNotFound) userDeletion() {}

// UserDeletion is the outcome of DeleteUser: UserDeleted or UserNotFound.
type UserDeletion interface {
	userDeletion()
}

type UserDeleted struct {
	UserID uuid.UUID
}

func (UserDeleted) userDeletion() {}
