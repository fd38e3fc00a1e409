package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"portraitstudio/internal/studio"
)

const sessionKeyPrefix = "studio:session:"

// redisClient is the subset of go-redis used by the session repository.
type redisClient interface {
	GetEx(ctx context.Context, key string, expiration time.Duration) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SessionRepositoryRedis implements studio.Store on Redis so that sessions
// survive across API replicas. Every read or write renews the TTL.
type SessionRepositoryRedis struct {
	rdb redisClient
	ttl time.Duration
}

// NewSessionRepository creates a session repository backed by Redis.
func NewSessionRepository(rdb redisClient, ttl time.Duration) *SessionRepositoryRedis {
	return &SessionRepositoryRedis{rdb: rdb, ttl: ttl}
}

// Load fetches a session and refreshes its expiry.
func (r *SessionRepositoryRedis) Load(ctx context.Context, id string) (studio.Session, error) {
	raw, err := r.rdb.GetEx(ctx, sessionKey(id), r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return studio.Session{}, studio.ErrSessionNotFound
	}
	if err != nil {
		return studio.Session{}, fmt.Errorf("load session: %w", err)
	}
	var sess studio.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return studio.Session{}, fmt.Errorf("decode session: %w", err)
	}
	if sess.RefundState == "" {
		sess.RefundState = studio.RefundNotRequested
	}
	return sess, nil
}

// Save writes a session with a fresh expiry.
func (r *SessionRepositoryRedis) Save(ctx context.Context, s studio.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, sessionKey(s.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (r *SessionRepositoryRedis) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

var _ studio.Store = (*SessionRepositoryRedis)(nil)
