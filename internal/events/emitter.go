// Package events publishes interview lifecycle events to a Redis stream. A
// separate worker consumes the stream to update interview records and build
// reports, so emission here is fire-and-forget: a failed append is logged and
// never propagated into the call path.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamKey must match what the worker reads.
const StreamKey = "interview_events"

// Event types understood by the worker.
const (
	TypeStartInterview   = "start_interview"
	TypeEndInterview     = "end_interview"
	TypeAbandonInterview = "abandon_interview"
	TypeCheatInterview   = "cheat_interview"
	TypeTabChange        = "proctoring_tab_change"
	TypeSnapshot         = "proctoring_snapshot"
	TypeQuestionEvaluate = "question_evaluate"
	TypeGenerateReport   = "generate_report"
)

// Ref identifies which interview an event belongs to.
type Ref struct {
	SessionID   string
	InterviewID int
	UserID      int
	AgentID     int
}

type Emitter struct {
	rdb redis.Cmdable
	log *zap.Logger
}

func NewEmitter(rdb redis.Cmdable, log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{rdb: rdb, log: log}
}

// Emit appends one event to the stream. Never returns an error; failures are
// logged so an unavailable Redis cannot stall the audio path.
func (e *Emitter) Emit(ref Ref, eventType string, fields map[string]any) {
	if e == nil || ref.SessionID == "" {
		return
	}
	payload := map[string]any{
		"sessionId":        ref.SessionID,
		"interviewId":      ref.InterviewID,
		"userId":           ref.UserID,
		"interviewAgentId": ref.AgentID,
	}
	for k, v := range fields {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		e.log.Warn("event payload marshal failed", zap.String("event", eventType), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err = e.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: map[string]any{
			"event":     eventType,
			"payload":   string(raw),
			"emittedAt": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		e.log.Warn("event emit failed", zap.String("event", eventType), zap.Error(err))
	}
}

// SessionEmitter binds an Emitter to one interview so call sites do not carry
// the Ref around.
type SessionEmitter struct {
	emitter *Emitter
	ref     Ref
}

func (e *Emitter) ForSession(ref Ref) *SessionEmitter {
	return &SessionEmitter{emitter: e, ref: ref}
}

func (s *SessionEmitter) Emit(eventType string, fields map[string]any) {
	if s == nil {
		return
	}
	s.emitter.Emit(s.ref, eventType, fields)
}

func (s *SessionEmitter) Ref() Ref {
	if s == nil {
		return Ref{}
	}
	return s.ref
}
