package agent

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shoyeb45/ai-interview/internal/events"
	"github.com/Shoyeb45/ai-interview/internal/flow"
	"github.com/Shoyeb45/ai-interview/internal/transport"
)

// Config carries the session timing knobs.
type Config struct {
	InputRate      int           // sample rate of inbound utterance PCM
	MinUtterance   time.Duration // utterances shorter than this are dropped
	LeadSilence    time.Duration // queued before synthesized speech
	TailSilence    time.Duration // queued after synthesized speech
	TabChangeLimit int           // tab changes before the interview is voided
	IdlePoll       time.Duration // idle monitor tick
	IdleTiers      [3]time.Duration
}

func DefaultConfig() Config {
	return Config{
		InputRate:      16000,
		MinUtterance:   300 * time.Millisecond,
		LeadSilence:    300 * time.Millisecond,
		TailSilence:    500 * time.Millisecond,
		TabChangeLimit: 3,
		IdlePoll:       time.Second,
		IdleTiers:      [3]time.Duration{12 * time.Second, 20 * time.Second, 30 * time.Second},
	}
}

// Session orchestrates one interview: utterances in, interviewer speech out.
// Frame-path callbacks (OnSpeechStart, OnUtterance) must never block; the
// transcribe/reply/synthesize chain runs on its own goroutine per utterance.
type Session struct {
	transcriber Transcriber
	responder   Responder
	synth       Synthesizer
	tr          transport.Transport
	flow        *flow.Manager
	audit       *events.SessionEmitter
	turns       *TurnController
	cfg         Config
	log         *zap.Logger

	mu              sync.Mutex
	history         []Message
	struggling      bool
	tabChanges      int
	completed       bool
	questionAskedAt time.Time
	answerStartedAt time.Time
	waitingSince    time.Time // when the agent finished speaking and began waiting
	tipTier         int
	pipelineCancel  context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSession(
	transcriber Transcriber,
	responder Responder,
	synth Synthesizer,
	tr transport.Transport,
	flowMgr *flow.Manager,
	audit *events.SessionEmitter,
	cfg Config,
	log *zap.Logger,
) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		transcriber: transcriber,
		responder:   responder,
		synth:       synth,
		tr:          tr,
		flow:        flowMgr,
		audit:       audit,
		turns:       NewTurnController(tr, log),
		cfg:         cfg,
		log:         log,
	}
}

// Turns exposes the floor state, mainly for the connection layer.
func (s *Session) Turns() *TurnController { return s.turns }

// PlaybackBusy reports whether agent audio is still queued. The segmenter
// uses this to ignore echo of the agent's own voice.
func (s *Session) PlaybackBusy() bool { return s.tr.QueueSize() > 0 }

// Start emits the audit start event, delivers the opening message, and
// launches the idle monitor. Call once the transport is ready for audio.
func (s *Session) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.ctx, s.cancel = runCtx, cancel
	s.mu.Unlock()
	s.audit.Emit(events.TypeStartInterview, nil)

	opening := s.flow.OpeningMessage()
	s.appendHistory(RoleAssistant, opening)
	s.send(transport.NewLLMResponse(opening))
	s.speak(runCtx, opening)
	s.markWaiting()

	go s.watchIdle(runCtx)
	s.log.Info("interview session started", zap.String("session", s.flow.SessionID()))
}

// OnSpeechStart is the barge-in entry point, called from the frame path the
// moment an utterance opens. Any in-flight response pipeline is superseded:
// its remaining audio will never be enqueued, though history it already
// committed stands.
func (s *Session) OnSpeechStart() {
	s.mu.Lock()
	if s.pipelineCancel != nil {
		s.pipelineCancel()
		s.pipelineCancel = nil
	}
	s.answerStartedAt = time.Now()
	s.waitingSince = time.Time{}
	s.tipTier = 0
	s.mu.Unlock()

	s.turns.NotifyUserStarted()
}

// OnUtterance receives a complete utterance and starts the response pipeline.
func (s *Session) OnUtterance(pcm []int16) {
	s.turns.NotifyUserStopped()

	s.mu.Lock()
	base := s.ctx
	if base == nil {
		// utterance raced the opening turn; still serve it
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	if s.pipelineCancel != nil {
		s.pipelineCancel()
	}
	s.pipelineCancel = cancel
	s.mu.Unlock()

	go s.respond(ctx, pcm)
}

// OnTabChange records a proctoring tab-change report. Returns true when the
// violation limit is reached and the interview must end.
func (s *Session) OnTabChange() bool {
	s.mu.Lock()
	s.tabChanges++
	n := s.tabChanges
	s.mu.Unlock()

	s.audit.Emit(events.TypeTabChange, nil)
	s.log.Info("tab change reported", zap.Int("count", n))
	if n < s.cfg.TabChangeLimit {
		return false
	}
	s.audit.Emit(events.TypeCheatInterview, map[string]any{"reason": "tab_change_violation"})
	s.send(transport.NewInterviewCheated("Too many tab changes. Interview ended due to proctoring violation."))
	return true
}

// OnSnapshot forwards a periodic video observation to the audit stream.
func (s *Session) OnSnapshot(facePresent bool, movementLevel, engagementScore float64) {
	s.audit.Emit(events.TypeSnapshot, map[string]any{
		"facePresent":     facePresent,
		"movementLevel":   movementLevel,
		"dominantEmotion": "neutral",
		"engagementScore": engagementScore,
		"snapshotAt":      time.Now().UTC().Format(time.RFC3339),
	})
}

// Close tears the session down. If the interview never completed, an abandon
// event records why.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	cancel := s.cancel
	completed := s.completed
	history := s.historyPayloadLocked()
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.turns.Close()

	if !completed {
		s.audit.Emit(events.TypeAbandonInterview, map[string]any{
			"reason":              reason,
			"conversationHistory": history,
		})
	}
	s.log.Info("interview session closed", zap.String("reason", reason), zap.Bool("completed", completed))
}

func (s *Session) appendHistory(role, content string) {
	s.mu.Lock()
	s.history = append(s.history, Message{Role: role, Content: content, At: time.Now()})
	s.mu.Unlock()
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) historyPayloadLocked() []map[string]any {
	out := make([]map[string]any, 0, len(s.history))
	for _, m := range s.history {
		out = append(out, map[string]any{
			"role":      m.Role,
			"content":   m.Content,
			"timestamp": m.At.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func (s *Session) send(v any) {
	if err := s.tr.Send(v); err != nil {
		s.log.Debug("event send failed", zap.Error(err))
	}
}

// markWaiting starts the idle clock from when queued audio will finish.
func (s *Session) markWaiting() {
	s.mu.Lock()
	s.waitingSince = time.Now().Add(s.tr.QueueDuration())
	s.tipTier = 0
	s.mu.Unlock()
}

// watchIdle nudges a silent candidate with escalating tips.
func (s *Session) watchIdle(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.IdlePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		waiting := s.waitingSince
		tier := s.tipTier
		completed := s.completed
		s.mu.Unlock()
		if completed || waiting.IsZero() || s.turns.State() != TurnIdle {
			continue
		}
		pause := time.Since(waiting)
		if pause < 0 {
			continue
		}
		t := s.tierFor(pause)
		if t <= tier {
			continue
		}
		msg := s.tipFor(t)
		s.mu.Lock()
		s.tipTier = t
		s.mu.Unlock()
		s.send(transport.NewInterviewerTip(msg))
		s.speak(ctx, msg)
		s.log.Debug("sent interviewer tip", zap.Int("tier", t), zap.Duration("pause", pause))
	}
}

func (s *Session) tierFor(pause time.Duration) int {
	tiers := s.cfg.IdleTiers
	switch {
	case pause < tiers[0]:
		return 0
	case pause < tiers[1]:
		return 1
	case pause < tiers[2]:
		return 2
	default:
		return 3
	}
}

func (s *Session) tipFor(tier int) string {
	switch tier {
	case 1:
		return "Take your time to think through your answer."
	case 2:
		return "No rush. Would you like me to rephrase the question?"
	default:
		return "I notice you're taking some time. Would a hint help, or should we approach this differently?"
	}
}
