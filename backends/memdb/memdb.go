// Package memdb implements the database and storage capabilities on an
// in-memory go-memdb database. It is used for local runs and tests.
package memdb

import (
	"errors"
	"time"

	"github.com/google/uuid"
	gomemdb "github.com/hashicorp/go-memdb"
)

const (
	tableUser    = "user"
	tableMessage = "message"
	tableObject  = "object"
)

var ErrDuplicateEmail = errors.New("memdb: duplicate key on email")

// Store holds users, chat messages and objects in one go-memdb database.
// It is safe for concurrent use.
type Store struct {
	db    *gomemdb.MemDB
	now   func() time.Time
	newID func() uuid.UUID
	seq   uint64
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDSource(newID func() uuid.UUID) Option {
	return func(s *Store) { s.newID = newID }
}

func NewStore(opts ...Option) (*Store, error) {
	db, err := gomemdb.NewMemDB(schema())
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Users returns the store as a database.UserRepository.
func (s *Store) Users() *Users { return &Users{store: s} }

// Messages returns the store as a database.MessageRepository.
func (s *Store) Messages() *Messages { return &Messages{store: s} }

// Objects returns the store as a storage.ObjectStore.
func (s *Store) Objects() *Objects { return &Objects{store: s} }

// nextSeq must be called inside a write transaction, which memdb
// serializes.
func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func schema() *gomemdb.DBSchema {
	return &gomemdb.DBSchema{
		Tables: map[string]*gomemdb.TableSchema{
			tableUser: {
				Name: tableUser,
				Indexes: map[string]*gomemdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &gomemdb.StringFieldIndex{Field: "ID"},
					},
					"email": {
						Name:    "email",
						Unique:  true,
						Indexer: &gomemdb.StringFieldIndex{Field: "Email", Lowercase: true},
					},
					"seq": {
						Name:    "seq",
						Unique:  true,
						Indexer: &gomemdb.UintFieldIndex{Field: "Seq"},
					},
				},
			},
			tableMessage: {
				Name: tableMessage,
				Indexes: map[string]*gomemdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &gomemdb.StringFieldIndex{Field: "ID"},
					},
					"user": {
						Name:    "user",
						Indexer: &gomemdb.StringFieldIndex{Field: "UserID"},
					},
				},
			},
			tableObject: {
				Name: tableObject,
				Indexes: map[string]*gomemdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &gomemdb.StringFieldIndex{Field: "Path"},
					},
				},
			},
		},
	}
}
