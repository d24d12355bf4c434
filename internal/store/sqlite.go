package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agrotrade/chat/internal/models"
)

// SQLiteStore handles SQLite database operations. It serves single-node
// deployments and local development where no PostgreSQL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('buyer', 'seller')),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		product TEXT NOT NULL,
		sender_id TEXT NOT NULL REFERENCES users(id),
		receiver_id TEXT NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(product, sender_id, receiver_id);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanUserRow(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := row.Scan(&idStr, &user.Name, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, created_at
		FROM users WHERE email = ?
	`, email)
	return scanUserRow(row)
}

// EnsureUser returns the user with the given email, creating it if missing.
// INSERT OR IGNORE leaves exactly one row per email under concurrent
// first-contact, mirroring the Postgres ON CONFLICT path.
func (s *SQLiteStore) EnsureUser(ctx context.Context, name, email string, role models.Role) (*models.User, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, name, email, role, now)
	if err != nil {
		return nil, err
	}

	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user vanished during ensure")
	}
	return user, nil
}

// CountUsers returns the total number of users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// InsertMessage persists one message record.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	assignDefaults(msg)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, product, sender_id, receiver_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.Product, msg.SenderID.String(), msg.ReceiverID.String(), msg.Content, msg.CreatedAt)
	return err
}

const sqliteMessageColumns = `
	m.id, m.product, m.sender_id, m.receiver_id, m.content, m.created_at,
	s.id, s.name, s.email, s.role, s.created_at,
	r.id, r.name, r.email, r.role, r.created_at
`

const sqliteMessageJoins = `
	FROM messages m
	JOIN users s ON s.id = m.sender_id
	JOIN users r ON r.id = m.receiver_id
`

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		sender := &models.User{}
		receiver := &models.User{}
		var msgSenderID, msgReceiverID, senderID, receiverID string
		err := rows.Scan(
			&msg.ID, &msg.Product, &msgSenderID, &msgReceiverID, &msg.Content, &msg.CreatedAt,
			&senderID, &sender.Name, &sender.Email, &sender.Role, &sender.CreatedAt,
			&receiverID, &receiver.Name, &receiver.Email, &receiver.Role, &receiver.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if msg.SenderID, err = uuid.Parse(msgSenderID); err != nil {
			return nil, err
		}
		if msg.ReceiverID, err = uuid.Parse(msgReceiverID); err != nil {
			return nil, err
		}
		if sender.ID, err = uuid.Parse(senderID); err != nil {
			return nil, err
		}
		if receiver.ID, err = uuid.Parse(receiverID); err != nil {
			return nil, err
		}
		msg.Sender = sender
		msg.Receiver = receiver
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ListRoomMessages retrieves the conversation history for a product between
// two participants, oldest first.
func (s *SQLiteStore) ListRoomMessages(ctx context.Context, product string, buyerID, sellerID uuid.UUID) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+sqliteMessageColumns+sqliteMessageJoins+`
		WHERE m.product = ?
		  AND ((m.sender_id = ? AND m.receiver_id = ?)
		    OR (m.sender_id = ? AND m.receiver_id = ?))
		ORDER BY m.created_at ASC, m.id ASC
	`, product, buyerID.String(), sellerID.String(), sellerID.String(), buyerID.String())
}

// ListMessagesBySender retrieves all messages sent by a user, oldest first.
func (s *SQLiteStore) ListMessagesBySender(ctx context.Context, senderID uuid.UUID) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+sqliteMessageColumns+sqliteMessageJoins+`
		WHERE m.sender_id = ?
		ORDER BY m.created_at ASC, m.id ASC
	`, senderID.String())
}

// ListMessagesInvolving retrieves all messages sent or received by a user,
// oldest first.
func (s *SQLiteStore) ListMessagesInvolving(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+sqliteMessageColumns+sqliteMessageJoins+`
		WHERE m.sender_id = ? OR m.receiver_id = ?
		ORDER BY m.created_at ASC, m.id ASC
	`, userID.String(), userID.String())
}

// GetMessagesByID retrieves specific messages, newest first.
func (s *SQLiteStore) GetMessagesByID(ctx context.Context, ids []string) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return s.queryMessages(ctx, `
		SELECT `+sqliteMessageColumns+sqliteMessageJoins+`
		WHERE m.id IN (`+placeholders+`)
		ORDER BY m.created_at DESC, m.id DESC
	`, args...)
}

// CountMessages returns the total number of persisted messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// LastMessageAt returns the creation time of the most recent message, or nil
// when the log is empty.
func (s *SQLiteStore) LastMessageAt(ctx context.Context) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM messages`).Scan(&last)
	if err != nil {
		return nil, err
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}
