package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testEmitter(t *testing.T) (*Emitter, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewEmitter(rdb, nil), rdb
}

func TestEmitter_AppendsToStream(t *testing.T) {
	em, rdb := testEmitter(t)
	ref := Ref{SessionID: "s1", InterviewID: 42, UserID: 7, AgentID: 3}

	em.Emit(ref, TypeStartInterview, nil)
	em.Emit(ref, TypeQuestionEvaluate, map[string]any{"questionNumber": 2, "userResponse": "I used goroutines"})

	msgs, err := rdb.XRange(context.Background(), StreamKey, "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("stream has %d entries, want 2", len(msgs))
	}
	if msgs[0].Values["event"] != TypeStartInterview {
		t.Fatalf("first event = %v", msgs[0].Values["event"])
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(msgs[1].Values["payload"].(string)), &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload["sessionId"] != "s1" || payload["interviewId"] != float64(42) {
		t.Fatalf("payload ref fields: %v", payload)
	}
	if payload["questionNumber"] != float64(2) {
		t.Fatalf("payload extra fields: %v", payload)
	}
}

func TestEmitter_MissingSessionIDIsDropped(t *testing.T) {
	em, rdb := testEmitter(t)
	em.Emit(Ref{}, TypeEndInterview, nil)

	n, err := rdb.XLen(context.Background(), StreamKey).Result()
	if err != nil && err != redis.Nil {
		t.Fatalf("xlen: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty stream, got %d entries", n)
	}
}

func TestSessionEmitter_CarriesRef(t *testing.T) {
	em, rdb := testEmitter(t)
	se := em.ForSession(Ref{SessionID: "s9"})
	se.Emit(TypeTabChange, nil)

	msgs, _ := rdb.XRange(context.Background(), StreamKey, "-", "+").Result()
	if len(msgs) != 1 {
		t.Fatalf("stream has %d entries, want 1", len(msgs))
	}
	var payload map[string]any
	_ = json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &payload)
	if payload["sessionId"] != "s9" {
		t.Fatalf("sessionId = %v", payload["sessionId"])
	}
}

func TestSessionEmitter_NilSafe(t *testing.T) {
	var se *SessionEmitter
	se.Emit(TypeEndInterview, nil) // must not panic
}
