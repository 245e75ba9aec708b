package memdb

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects/database"
)

var _ database.MessageRepository = (*Messages)(nil)

type messageRecord struct {
	ID      string
	UserID  string
	Seq     uint64
	Message database.ChatMessage
}

type Messages struct {
	store *Store
}

func (m *Messages) Save(_ context.Context, userID uuid.UUID, text string) (database.ChatMessage, error) {
	txn := m.store.db.Txn(true)
	defer txn.Abort()

	msg := database.ChatMessage{
		ID:        m.store.newID(),
		UserID:    userID,
		Text:      text,
		CreatedAt: m.store.now(),
	}
	rec := &messageRecord{ID: msg.ID.String(), UserID: userID.String(), Seq: m.store.nextSeq(), Message: msg}
	if err := txn.Insert(tableMessage, rec); err != nil {
		return database.ChatMessage{}, err
	}
	txn.Commit()
	return msg, nil
}

// ListForUser returns the user's messages oldest first.
func (m *Messages) ListForUser(_ context.Context, userID uuid.UUID) ([]database.ChatMessage, error) {
	txn := m.store.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableMessage, "user", userID.String())
	if err != nil {
		return nil, err
	}
	var recs []*messageRecord
	for raw := it.Next(); raw != nil; raw = it.Next() {
		recs = append(recs, raw.(*messageRecord))
	}
	slices.SortFunc(recs, func(a, b *messageRecord) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})

	out := make([]database.ChatMessage, len(recs))
	for n, rec := range recs {
		out[n] = rec.Message
	}
	return out, nil
}
