package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"pickit-backend/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore 会话存储，令牌到账号的映射
type SessionStore interface {
	Create(ctx context.Context, account models.Account) (string, error)
	Get(ctx context.Context, token string) (*models.Account, error)
	Delete(ctx context.Context, token string) error
}

type sessionRecord struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func newSessionToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// RedisSessionStore 会话保存在 Redis，多副本共享
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return "session:" + token
}

func (s *RedisSessionStore) Create(ctx context.Context, account models.Account) (string, error) {
	token := newSessionToken()
	data, err := json.Marshal(sessionRecord{AccountID: account.ID, Email: account.Email, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, sessionKey(token), data, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (*models.Account, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &models.Account{ID: rec.AccountID, Email: rec.Email}, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}

// MemorySessionStore 没有 Redis 时的进程内会话，重启后失效
type MemorySessionStore struct {
	items *gocache.Cache
	ttl   time.Duration
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{items: gocache.New(ttl, 10*time.Minute), ttl: ttl}
}

func (s *MemorySessionStore) Create(_ context.Context, account models.Account) (string, error) {
	token := newSessionToken()
	s.items.Set(token, sessionRecord{AccountID: account.ID, Email: account.Email, CreatedAt: time.Now().UTC()}, s.ttl)
	return token, nil
}

func (s *MemorySessionStore) Get(_ context.Context, token string) (*models.Account, error) {
	v, ok := s.items.Get(token)
	if !ok {
		return nil, ErrSessionNotFound
	}
	rec := v.(sessionRecord)
	return &models.Account{ID: rec.AccountID, Email: rec.Email}, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.items.Delete(token)
	return nil
}
