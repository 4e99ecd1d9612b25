package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// SessionStore persists server-side sessions. Get must fail with
// ErrSessionNotFound for unknown or expired IDs.
type SessionStore interface {
	Put(ctx context.Context, session *SessionObject) error
	Get(ctx context.Context, id string) (*SessionObject, error)
	Delete(ctx context.Context, id string) error
}

const sessionIDByteLength = 32

func newSessionID() (string, error) {
	buf := make([]byte, sessionIDByteLength)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read session entropy")
	}
	return hex.EncodeToString(buf), nil
}

// MemorySessionStore is an in-process store for development and tests.
// Expired entries are dropped lazily on read.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionObject
	nowFn    func() time.Time
}

type MemorySessionStoreOption func(*MemorySessionStore)

func WithMemorySessionClock(now func() time.Time) MemorySessionStoreOption {
	return func(s *MemorySessionStore) {
		if now != nil {
			s.nowFn = now
		}
	}
}

func NewMemorySessionStore(opts ...MemorySessionStoreOption) *MemorySessionStore {
	store := &MemorySessionStore{
		sessions: make(map[string]*SessionObject),
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *MemorySessionStore) Put(_ context.Context, session *SessionObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*SessionObject, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}

	if session.Expired(s.nowFn()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	cp := *session
	return &cp, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

const redisSessionPrefix = "auth:session:"

// RedisSessionStore keeps sessions in Redis so instances can share them.
// The Redis TTL mirrors the session expiry, so expiry is enforced by the
// store itself.
type RedisSessionStore struct {
	client *redis.Client
	nowFn  func() time.Time
}

type RedisSessionStoreOption func(*RedisSessionStore)

func WithRedisSessionClock(now func() time.Time) RedisSessionStoreOption {
	return func(s *RedisSessionStore) {
		if now != nil {
			s.nowFn = now
		}
	}
}

func NewRedisSessionStore(client *redis.Client, opts ...RedisSessionStoreOption) *RedisSessionStore {
	store := &RedisSessionStore{
		client: client,
		nowFn:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *RedisSessionStore) Put(ctx context.Context, session *SessionObject) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session")
	}

	ttl := session.ExpiresAt.Sub(s.nowFn())
	if ttl <= 0 {
		return goerrors.New("session already expired", goerrors.CategoryBadInput)
	}

	if err := s.client.Set(ctx, redisSessionPrefix+session.ID, payload, ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store session")
	}

	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*SessionObject, error) {
	payload, err := s.client.Get(ctx, redisSessionPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session")
	}

	session := &SessionObject{}
	if err := json.Unmarshal(payload, session); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode session")
	}

	if session.Expired(s.nowFn()) {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisSessionPrefix+id).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}
	return nil
}
