// Package store provides the Redis-backed session configuration lookup. The
// web backend writes session payloads under session-{id}; this service only
// ever reads them.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session key is absent or expired.
var ErrNotFound = errors.New("store: session not found")

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Sessions reads interview session payloads.
type Sessions struct {
	rdb redis.Cmdable
}

func NewSessions(rdb redis.Cmdable) *Sessions { return &Sessions{rdb: rdb} }

// Get returns the raw JSON payload for a session ID. The key format matches
// what the web backend writes.
func (s *Sessions) Get(ctx context.Context, sessionID string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, "session-"+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return raw, nil
}
