package memdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	gomemdb "github.com/hashicorp/go-memdb"
	"github.com/on-the-ground/effect_ive_runtime/effects/database"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
)

var _ database.UserRepository = (*Users)(nil)

type userRecord struct {
	ID   string
	Seq  uint64
	User database.User
	// Email duplicates User.Email for the email index.
	Email string
}

type Users struct {
	store *Store
}

func (u *Users) GetByID(_ context.Context, id uuid.UUID) (database.UserLookup, error) {
	txn := u.store.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableUser, "id", id.String())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return database.UserNotFound{UserID: id}, nil
	}
	return database.UserFound{User: raw.(*userRecord).User}, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (database.UserLookup, error) {
	txn := u.store.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableUser, "email", email)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return database.UserNotFound{Email: email}, nil
	}
	return database.UserFound{User: raw.(*userRecord).User}, nil
}

func (u *Users) Create(_ context.Context, email, name, passwordHash string) (database.User, error) {
	txn := u.store.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tableUser, "email", email)
	if err != nil {
		return database.User{}, err
	} else if existing != nil {
		return database.User{}, retry.Permanent(fmt.Errorf("%w: %s", ErrDuplicateEmail, email))
	}

	user := database.User{
		ID:           u.store.newID(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    u.store.now(),
	}
	rec := &userRecord{ID: user.ID.String(), Seq: u.store.nextSeq(), User: user, Email: user.Email}
	if err := txn.Insert(tableUser, rec); err != nil {
		return database.User{}, err
	}
	txn.Commit()
	return user, nil
}

func (u *Users) Update(_ context.Context, id uuid.UUID, email, name string) (database.UserLookup, error) {
	txn := u.store.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableUser, "id", id.String())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return database.UserNotFound{UserID: id}, nil
	}

	// Records in memdb are immutable once inserted: copy, then replace.
	rec := *raw.(*userRecord)
	if email != "" && !strings.EqualFold(email, rec.Email) {
		clash, err := txn.First(tableUser, "email", email)
		if err != nil {
			return nil, err
		} else if clash != nil {
			return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrDuplicateEmail, email))
		}
		rec.User.Email = email
		rec.Email = email
	}
	if name != "" {
		rec.User.Name = name
	}
	if err := txn.Insert(tableUser, &rec); err != nil {
		return nil, err
	}
	txn.Commit()
	return database.UserFound{User: rec.User}, nil
}

func (u *Users) Delete(_ context.Context, id uuid.UUID) (database.UserDeletion, error) {
	txn := u.store.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableUser, "id", id.String())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return database.UserNotFound{UserID: id}, nil
	}
	if err := txn.Delete(tableUser, raw); err != nil {
		return nil, err
	}
	txn.Commit()
	return database.UserDeleted{UserID: id}, nil
}

// List returns users in creation order. A limit <= 0 means no limit.
func (u *Users) List(_ context.Context, limit, offset int) ([]database.User, error) {
	txn := u.store.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableUser, "seq")
	if err != nil {
		return nil, err
	}
	return collect(it, limit, offset, func(raw any) database.User {
		return raw.(*userRecord).User
	}), nil
}

func collect[T any](it gomemdb.ResultIterator, limit, offset int, conv func(any) T) []T {
	out := []T{}
	skipped := 0
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if skipped < offset {
			skipped++
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, conv(raw))
	}
	return out
}
