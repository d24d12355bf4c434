package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agrotrade/chat/internal/models"
)

// MemoryStore is an in-memory DataStore used by tests. It mirrors the SQL
// stores' semantics, including single-row-per-email provisioning under
// concurrency.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]*models.User // keyed by email
	messages []models.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*models.User)}
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// GetUserByEmail retrieves a user by email.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.users[email]), nil
}

// EnsureUser returns the user with the given email, creating it if missing.
func (s *MemoryStore) EnsureUser(ctx context.Context, name, email string, role models.Role) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[email]; ok {
		return copyUser(existing), nil
	}

	user := &models.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	s.users[email] = user
	return copyUser(user), nil
}

// CountUsers returns the total number of users.
func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *MemoryStore) userByID(id uuid.UUID) *models.User {
	for _, u := range s.users {
		if u.ID == id {
			return copyUser(u)
		}
	}
	return nil
}

func (s *MemoryStore) populate(msg models.Message) models.Message {
	msg.Sender = s.userByID(msg.SenderID)
	msg.Receiver = s.userByID(msg.ReceiverID)
	return msg
}

// InsertMessage persists one message record.
func (s *MemoryStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	assignDefaults(msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *msg
	stored.Sender = nil
	stored.Receiver = nil
	s.messages = append(s.messages, stored)
	return nil
}

func sortOldestFirst(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// ListRoomMessages retrieves the conversation history for a product between
// two participants, oldest first.
func (s *MemoryStore) ListRoomMessages(ctx context.Context, product string, buyerID, sellerID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Message
	for _, m := range s.messages {
		if m.Product != product {
			continue
		}
		pair := (m.SenderID == buyerID && m.ReceiverID == sellerID) ||
			(m.SenderID == sellerID && m.ReceiverID == buyerID)
		if pair {
			result = append(result, s.populate(m))
		}
	}
	sortOldestFirst(result)
	return result, nil
}

// ListMessagesBySender retrieves all messages sent by a user, oldest first.
func (s *MemoryStore) ListMessagesBySender(ctx context.Context, senderID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Message
	for _, m := range s.messages {
		if m.SenderID == senderID {
			result = append(result, s.populate(m))
		}
	}
	sortOldestFirst(result)
	return result, nil
}

// ListMessagesInvolving retrieves all messages sent or received by a user,
// oldest first.
func (s *MemoryStore) ListMessagesInvolving(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Message
	for _, m := range s.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			result = append(result, s.populate(m))
		}
	}
	sortOldestFirst(result)
	return result, nil
}

// GetMessagesByID retrieves specific messages, newest first.
func (s *MemoryStore) GetMessagesByID(ctx context.Context, ids []string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var result []models.Message
	for _, m := range s.messages {
		if wanted[m.ID] {
			result = append(result, s.populate(m))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// CountMessages returns the total number of persisted messages.
func (s *MemoryStore) CountMessages(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.messages)), nil
}

// LastMessageAt returns the creation time of the most recent message.
func (s *MemoryStore) LastMessageAt(ctx context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *time.Time
	for _, m := range s.messages {
		if last == nil || m.CreatedAt.After(*last) {
			t := m.CreatedAt
			last = &t
		}
	}
	return last, nil
}
