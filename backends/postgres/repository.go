package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/on-the-ground/effect_ive_runtime/effects/database"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
)

var (
	_ database.UserRepository    = (*Users)(nil)
	_ database.MessageRepository = (*Messages)(nil)
)

const queryTimeout = 4 * time.Second

type Users struct {
	db *pgxpool.Pool
}

func NewUsers(db *pgxpool.Pool) *Users { return &Users{db: db} }

const userColumns = `id::text, email, name, password_hash, created_at`

func scanUser(row pgx.Row) (database.User, error) {
	var (
		u  database.User
		id string
	)
	if err := row.Scan(&id, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		return database.User{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return database.User{}, err
	}
	u.ID = parsed
	return u, nil
}

func (r *Users) GetByID(ctx context.Context, id uuid.UUID) (database.UserLookup, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return database.UserNotFound{UserID: id}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return database.UserFound{User: u}, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (database.UserLookup, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return database.UserNotFound{Email: email}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return database.UserFound{User: u}, nil
}

func (r *Users) Create(ctx context.Context, email, name, passwordHash string) (database.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	u, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1::uuid, $2, $3, $4)
		RETURNING `+userColumns,
		uuid.NewString(), email, name, passwordHash))
	if err != nil {
		return database.User{}, classify(err)
	}
	return u, nil
}

func (r *Users) Update(ctx context.Context, id uuid.UUID, email, name string) (database.UserLookup, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	u, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET
			email = COALESCE(NULLIF($2, ''), email),
			name  = COALESCE(NULLIF($3, ''), name)
		WHERE id = $1::uuid
		RETURNING `+userColumns,
		id.String(), email, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return database.UserNotFound{UserID: id}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return database.UserFound{User: u}, nil
}

func (r *Users) Delete(ctx context.Context, id uuid.UUID) (database.UserDeletion, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1::uuid`, id.String())
	if err != nil {
		return nil, classify(err)
	}
	if tag.RowsAffected() == 0 {
		return database.UserNotFound{UserID: id}, nil
	}
	return database.UserDeleted{UserID: id}, nil
}

func (r *Users) List(ctx context.Context, limit, offset int) ([]database.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`, lim, max(offset, 0))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	users := []database.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, classify(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return users, nil
}

type Messages struct {
	db *pgxpool.Pool
}

func NewMessages(db *pgxpool.Pool) *Messages { return &Messages{db: db} }

func scanMessage(row pgx.Row) (database.ChatMessage, error) {
	var (
		m          database.ChatMessage
		id, userID string
	)
	if err := row.Scan(&id, &userID, &m.Text, &m.CreatedAt); err != nil {
		return database.ChatMessage{}, err
	}
	var err error
	if m.ID, err = uuid.Parse(id); err != nil {
		return database.ChatMessage{}, err
	}
	if m.UserID, err = uuid.Parse(userID); err != nil {
		return database.ChatMessage{}, err
	}
	return m, nil
}

func (r *Messages) Save(ctx context.Context, userID uuid.UUID, text string) (database.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	m, err := scanMessage(r.db.QueryRow(ctx, `
		INSERT INTO chat_messages (id, user_id, text)
		VALUES ($1::uuid, $2::uuid, $3)
		RETURNING id::text, user_id::text, text, created_at`,
		uuid.NewString(), userID.String(), text))
	if err != nil {
		return database.ChatMessage{}, classify(err)
	}
	return m, nil
}

func (r *Messages) ListForUser(ctx context.Context, userID uuid.UUID) ([]database.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := r.db.Query(ctx, `
		SELECT id::text, user_id::text, text, created_at
		FROM chat_messages WHERE user_id = $1::uuid
		ORDER BY created_at, id`, userID.String())
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	msgs := []database.ChatMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, classify(err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return msgs, nil
}

// classify marks server errors by SQLSTATE class so the database retry
// policy does not have to guess from message text.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	return classifyCode(pgErr.Code, err)
}

func classifyCode(code string, err error) error {
	switch {
	case code == "40001", code == "40P01", // serialization failure, deadlock
		len(code) >= 2 && (code[:2] == "08" || code[:2] == "53" || code[:2] == "57"):
		return retry.Transient(err)
	case len(code) >= 2 && (code[:2] == "22" || code[:2] == "23" || code[:2] == "42"):
		return retry.Permanent(err)
	}
	return err
}
