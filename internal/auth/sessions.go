package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "paymenthub:session:"

func sessionKey(id string) string { return sessionKeyPrefix + id }

// RedisSessions keeps one key per session holding the client id, expiring
// with the session.
type RedisSessions struct {
	rdb *redis.Client
}

func NewRedisSessions(rdb *redis.Client) *RedisSessions {
	return &RedisSessions{rdb: rdb}
}

func (s *RedisSessions) Create(ctx context.Context, clientID string, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	if err := s.rdb.Set(ctx, sessionKey(id), clientID, ttl).Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisSessions) Lookup(ctx context.Context, sessionID string) (string, error) {
	clientID, err := s.rdb.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionExpired
		}
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return clientID, nil
}

func (s *RedisSessions) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, sessionKey(sessionID)).Err()
}

// MemorySessions is used when REDIS_ADDR is unset.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	clientID string
	expires  time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]memorySession), now: time.Now}
}

func (s *MemorySessions) Create(_ context.Context, clientID string, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = memorySession{clientID: clientID, expires: s.now().Add(ttl)}
	s.mu.Unlock()
	return id, nil
}

func (s *MemorySessions) Lookup(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", ErrSessionExpired
	}
	if !s.now().Before(sess.expires) {
		delete(s.sessions, sessionID)
		return "", ErrSessionExpired
	}
	return sess.clientID, nil
}

func (s *MemorySessions) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}
