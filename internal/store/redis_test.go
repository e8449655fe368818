package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestSessions_Get(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Set("session-abc123", `{"role":"Backend Engineer"}`)

	s := NewSessions(rdb)
	raw, err := s.Get(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(raw) != `{"role":"Backend Engineer"}` {
		t.Fatalf("payload = %s", raw)
	}
}

func TestSessions_GetMissing(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewSessions(rdb)
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
