package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrotrade/chat/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('buyer', 'seller')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		product TEXT NOT NULL,
		sender_id UUID NOT NULL REFERENCES users(id),
		receiver_id UUID NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(product, sender_id, receiver_id);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, role, created_at
		FROM users WHERE email = $1
	`, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// EnsureUser returns the user with the given email, creating it if missing.
// ON CONFLICT DO NOTHING makes the first-contact race safe: concurrent
// callers insert at most one row, and whoever loses reads the winner's row.
func (s *PostgresStore) EnsureUser(ctx context.Context, name, email string, role models.Role) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
		RETURNING id, name, email, role, created_at
	`, name, email, role).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
	)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Row already existed.
	existing, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.New("user vanished during ensure")
	}
	return existing, nil
}

// CountUsers returns the total number of users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// InsertMessage persists one message record.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	assignDefaults(msg)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, product, sender_id, receiver_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.Product, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt)
	return err
}

const messageColumns = `
	m.id, m.product, m.sender_id, m.receiver_id, m.content, m.created_at,
	s.id, s.name, s.email, s.role, s.created_at,
	r.id, r.name, r.email, r.role, r.created_at
`

const messageJoins = `
	FROM messages m
	JOIN users s ON s.id = m.sender_id
	JOIN users r ON r.id = m.receiver_id
`

func scanMessage(row pgx.Row) (models.Message, error) {
	var msg models.Message
	sender := &models.User{}
	receiver := &models.User{}
	err := row.Scan(
		&msg.ID, &msg.Product, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.CreatedAt,
		&sender.ID, &sender.Name, &sender.Email, &sender.Role, &sender.CreatedAt,
		&receiver.ID, &receiver.Name, &receiver.Email, &receiver.Role, &receiver.CreatedAt,
	)
	if err != nil {
		return models.Message{}, err
	}
	msg.Sender = sender
	msg.Receiver = receiver
	return msg, nil
}

func (s *PostgresStore) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ListRoomMessages retrieves the conversation history for a product between
// two participants, oldest first.
func (s *PostgresStore) ListRoomMessages(ctx context.Context, product string, buyerID, sellerID uuid.UUID) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+messageJoins+`
		WHERE m.product = $1
		  AND ((m.sender_id = $2 AND m.receiver_id = $3)
		    OR (m.sender_id = $3 AND m.receiver_id = $2))
		ORDER BY m.created_at ASC, m.id ASC
	`, product, buyerID, sellerID)
}

// ListMessagesBySender retrieves all messages sent by a user, oldest first.
func (s *PostgresStore) ListMessagesBySender(ctx context.Context, senderID uuid.UUID) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+messageJoins+`
		WHERE m.sender_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`, senderID)
}

// ListMessagesInvolving retrieves all messages sent or received by a user,
// oldest first.
func (s *PostgresStore) ListMessagesInvolving(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+messageJoins+`
		WHERE m.sender_id = $1 OR m.receiver_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`, userID)
}

// GetMessagesByID retrieves specific messages, newest first.
func (s *PostgresStore) GetMessagesByID(ctx context.Context, ids []string) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+messageJoins+`
		WHERE m.id = ANY($1)
		ORDER BY m.created_at DESC, m.id DESC
	`, ids)
}

// CountMessages returns the total number of persisted messages.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// LastMessageAt returns the creation time of the most recent message, or nil
// when the log is empty.
func (s *PostgresStore) LastMessageAt(ctx context.Context) (*time.Time, error) {
	var last *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(created_at) FROM messages`).Scan(&last)
	if err != nil {
		return nil, err
	}
	return last, nil
}
