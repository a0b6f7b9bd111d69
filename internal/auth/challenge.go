package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChallengeStore keeps at most one pending challenge per user.
type ChallengeStore interface {
	// Put stores the code hash for the user, replacing any previous one.
	Put(ctx context.Context, userID uint, codeHash string, ttl time.Duration) error
	// Take returns and deletes the user's code hash. Expired entries are absent.
	Take(ctx context.Context, userID uint) (string, bool, error)
}

type challengeEntry struct {
	hash      string
	expiresAt time.Time
}

// MemoryStore implements ChallengeStore with an in-memory map.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uint]challengeEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[uint]challengeEntry),
		now:     time.Now,
	}
}

// Put stores a challenge (thread-safe). Expired entries are swept on the way.
func (s *MemoryStore) Put(_ context.Context, userID uint, codeHash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}

	s.entries[userID] = challengeEntry{hash: codeHash, expiresAt: now.Add(ttl)}
	return nil
}

// Take removes and returns the user's challenge (thread-safe).
func (s *MemoryStore) Take(_ context.Context, userID uint) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, userID)

	if !s.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.hash, true, nil
}

// RedisStore implements ChallengeStore on redis keys with a TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func challengeKey(userID uint) string {
	return fmt.Sprintf("challenge:%d", userID)
}

func (s *RedisStore) Put(ctx context.Context, userID uint, codeHash string, ttl time.Duration) error {
	return s.client.Set(ctx, challengeKey(userID), codeHash, ttl).Err()
}

// Take uses GETDEL, so two concurrent verifications can never both read the code.
func (s *RedisStore) Take(ctx context.Context, userID uint) (string, bool, error) {
	hash, err := s.client.GetDel(ctx, challengeKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// NewRedisClient connects to a redis url like redis://:password@host:6379/0
// and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("could not parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("could not connect to redis: %w", err)
	}
	return client, nil
}
