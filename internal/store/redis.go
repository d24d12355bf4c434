package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agrotrade/chat/internal/models"
)

const (
	searchTTL = 30 * 24 * time.Hour
)

// RedisStore handles Redis operations: the message search index and the
// backing client for rate limiting. The durable message log lives in the SQL
// store; Redis only ever holds derived data.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the rate limiter middleware.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// searchWordKey returns the key for a search word index.
func searchWordKey(word string) string {
	return fmt.Sprintf("search:words:%s", strings.ToLower(word))
}

// wordRegex matches word characters for search indexing.
var wordRegex = regexp.MustCompile(`\w+`)

// IndexMessage indexes a message body for search. Indexing is best-effort;
// callers treat failures as non-fatal.
func (s *RedisStore) IndexMessage(ctx context.Context, msg *models.Message) error {
	words := wordRegex.FindAllString(strings.ToLower(msg.Content), -1)

	seen := make(map[string]bool)
	for _, word := range words {
		if len(word) < 3 || seen[word] {
			continue
		}
		seen[word] = true

		key := searchWordKey(word)

		s.client.ZAdd(ctx, key, redis.Z{
			Score:  float64(msg.CreatedAt.UnixMilli()),
			Member: msg.ID,
		})
		s.client.Expire(ctx, key, searchTTL)
	}

	return nil
}

// SearchMessageIDs returns the ids of messages whose bodies contain all of
// the given tokens, newest first. The caller hydrates the ids from the
// durable store.
func (s *RedisStore) SearchMessageIDs(ctx context.Context, tokens []string, limit int) ([]string, error) {
	if len(tokens) == 0 {
		return []string{}, nil
	}

	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = searchWordKey(t)
	}

	if len(keys) == 1 {
		return s.client.ZRevRangeByScore(ctx, keys[0], &redis.ZRangeBy{
			Min:   "-inf",
			Max:   "+inf",
			Count: int64(limit),
		}).Result()
	}

	// Multiple words: intersect into a short-lived temp key.
	tempKey := fmt.Sprintf("search:temp:%d", time.Now().UnixNano())

	if err := s.client.ZInterStore(ctx, tempKey, &redis.ZStore{
		Keys:      keys,
		Aggregate: "MIN",
	}).Err(); err != nil {
		return nil, err
	}
	s.client.Expire(ctx, tempKey, 10*time.Second)

	return s.client.ZRevRangeByScore(ctx, tempKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
}
