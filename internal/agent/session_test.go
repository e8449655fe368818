package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Shoyeb45/ai-interview/internal/events"
	"github.com/Shoyeb45/ai-interview/internal/flow"
	"github.com/Shoyeb45/ai-interview/internal/store"
)

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, pcm []int16, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeResponder struct {
	mu         sync.Mutex
	reply      string
	advance    bool
	err        error
	calls      int
	lastSystem string
	gate       chan struct{} // when set, Reply blocks until closed or ctx done
}

func (f *fakeResponder) Reply(ctx context.Context, system string, _ []Message) (string, bool, error) {
	f.mu.Lock()
	f.calls++
	f.lastSystem = system
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reply, f.advance, f.err
}

func (f *fakeResponder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeResponder) system() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSystem
}

type fakeSynth struct {
	mu    sync.Mutex
	pcm   []byte
	err   error
	calls int
}

func (f *fakeSynth) Synthesize(context.Context, string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.pcm, f.err
}

func (f *fakeSynth) SampleRate() int { return 48000 }

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testHarness struct {
	sess  *Session
	ft    *fakeTransport
	stt   *fakeTranscriber
	llm   *fakeResponder
	tts   *fakeSynth
	rdb   *redis.Client
	audit *events.SessionEmitter
}

func newHarness(t *testing.T, totalQuestions int) *testHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	payload := fmt.Sprintf(`{
		"id": 3, "interviewId": 41, "userId": 9,
		"role": "Backend Engineer", "jobDescription": "Go services",
		"experienceLevel": "MID_LEVEL", "totalQuestions": %d,
		"focusAreas": ["Go"], "questionSelectionMode": "CUSTOM_ONLY",
		"openingMessage": "Welcome to the interview.",
		"questions": [
			{"id": 1, "questionText": "Q1", "orderIndex": 0, "category": "coding", "difficulty": "easy"},
			{"id": 2, "questionText": "Q2", "orderIndex": 1, "category": "coding", "difficulty": "medium"}
		]
	}`, totalQuestions)
	mr.Set("session-s1", payload)

	fm, err := flow.Load(context.Background(), store.NewSessions(rdb), "s1")
	if err != nil {
		t.Fatalf("flow load: %v", err)
	}

	h := &testHarness{
		ft:    &fakeTransport{},
		stt:   &fakeTranscriber{text: "I have four years of experience writing Go services and working with Postgres."},
		llm:   &fakeResponder{reply: "Thanks for sharing. What drew you to backend work?"},
		tts:   &fakeSynth{pcm: make([]byte, 1920)}, // 20ms at 48kHz
		rdb:   rdb,
		audit: events.NewEmitter(rdb, nil).ForSession(fm.Ref()),
	}
	cfg := DefaultConfig()
	cfg.MinUtterance = 100 * time.Millisecond
	cfg.LeadSilence = 0
	cfg.TailSilence = 0
	cfg.IdlePoll = 10 * time.Millisecond
	cfg.IdleTiers = [3]time.Duration{400 * time.Millisecond, 10 * time.Second, 20 * time.Second}
	h.sess = NewSession(h.stt, h.llm, h.tts, h.ft, fm, h.audit, cfg, nil)
	t.Cleanup(func() { h.sess.Close("test teardown") })
	return h
}

func (h *testHarness) streamEvents(t *testing.T) []string {
	t.Helper()
	msgs, err := h.rdb.XRange(context.Background(), events.StreamKey, "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	var out []string
	for _, m := range msgs {
		out = append(out, m.Values["event"].(string))
	}
	return out
}

func (h *testHarness) streamCount(t *testing.T, event string) int {
	n := 0
	for _, e := range h.streamEvents(t) {
		if e == event {
			n++
		}
	}
	return n
}

func oneSecondUtterance() []int16 { return make([]int16, 16000) }

func TestSession_StartDeliversOpening(t *testing.T) {
	h := newHarness(t, 2)
	h.sess.Start(context.Background())

	if h.ft.countEvent("llm_response") != 1 {
		t.Fatalf("events = %v", h.ft.eventTypes())
	}
	if h.ft.countEvent("ai_speaking:true") != 1 {
		t.Fatalf("expected agent to claim the floor, events = %v", h.ft.eventTypes())
	}
	if h.streamCount(t, events.TypeStartInterview) != 1 {
		t.Fatalf("stream = %v", h.streamEvents(t))
	}
	hist := h.sess.History()
	if len(hist) != 1 || hist[0].Role != RoleAssistant {
		t.Fatalf("history = %+v", hist)
	}
}

func TestSession_UtterancePipeline(t *testing.T) {
	h := newHarness(t, 2)
	h.sess.Start(context.Background())

	h.sess.OnSpeechStart()
	h.sess.OnUtterance(oneSecondUtterance())

	waitFor(t, 2*time.Second, func() bool { return h.ft.countEvent("llm_response") == 2 })

	if h.ft.countEvent("transcript") != 1 {
		t.Fatalf("events = %v", h.ft.eventTypes())
	}
	hist := h.sess.History()
	if len(hist) != 3 || hist[1].Role != RoleUser || hist[2].Role != RoleAssistant {
		t.Fatalf("history = %+v", hist)
	}
	sys := h.llm.system()
	if !strings.Contains(sys, "Current question you asked") || !strings.Contains(sys, "self-introduction") {
		t.Fatalf("system message missing question context:\n%s", sys)
	}
	// agent spoke the reply: opening + reply
	waitFor(t, 2*time.Second, func() bool { return h.ft.countEvent("ai_speaking:true") == 2 })
}

func TestSession_TTSFailureStillSendsText(t *testing.T) {
	h := newHarness(t, 2)
	h.tts.err = fmt.Errorf("tts unavailable")
	h.sess.Start(context.Background())

	h.sess.OnSpeechStart()
	h.sess.OnUtterance(oneSecondUtterance())

	waitFor(t, 2*time.Second, func() bool { return h.ft.countEvent("llm_response") == 2 })
	time.Sleep(50 * time.Millisecond)
	if got := h.ft.countEvent("ai_speaking:true"); got != 0 {
		t.Fatalf("ai_speaking emitted %d times despite TTS failure", got)
	}
}

func TestSession_LLMFailureSpeaksFallback(t *testing.T) {
	h := newHarness(t, 2)
	h.llm.err = fmt.Errorf("upstream 500")
	h.sess.Start(context.Background())

	h.sess.OnSpeechStart()
	h.sess.OnUtterance(oneSecondUtterance())

	waitFor(t, 2*time.Second, func() bool { return h.ft.countEvent("llm_response") == 2 })
	hist := h.sess.History()
	last := hist[len(hist)-1]
	if last.Role != RoleAssistant || last.Content != fallbackReply {
		t.Fatalf("last history entry = %+v", last)
	}
}

func TestSession_ShortUtteranceDropped(t *testing.T) {
	h := newHarness(t, 2)
	h.sess.Start(context.Background())

	h.sess.OnUtterance(make([]int16, 800)) // 50ms at 16kHz

	time.Sleep(100 * time.Millisecond)
	if h.stt.callCount() != 0 {
		t.Fatal("transcriber called for sub-minimum utterance")
	}
	if h.ft.countEvent("transcript") != 0 {
		t.Fatalf("events = %v", h.ft.eventTypes())
	}
}

func TestSession_EmptyTranscriptDropped(t *testing.T) {
	h := newHarness(t, 2)
	h.stt.text = "   "
	h.sess.Start(context.Background())

	h.sess.OnUtterance(oneSecondUtterance())

	waitFor(t, time.Second, func() bool { return h.stt.callCount() == 1 })
	time.Sleep(50 * time.Millisecond)
	if h.llm.callCount() != 0 {
		t.Fatal("responder called despite empty transcript")
	}
	if h.ft.countEvent("transcript") != 0 {
		t.Fatalf("events = %v", h.ft.eventTypes())
	}
}

func TestSession_AdvanceCompletesInterview(t *testing.T) {
	h := newHarness(t, 1)
	h.llm.advance = true
	h.llm.reply = "Great, that wraps things up. Thanks for your time!"
	h.sess.Start(context.Background())

	h.sess.OnSpeechStart()
	h.sess.OnUtterance(oneSecondUtterance())

	waitFor(t, 2*time.Second, func() bool { return h.ft.countEvent("interview_ended") == 1 })

	if h.streamCount(t, events.TypeQuestionEvaluate) != 1 {
		t.Fatalf("stream = %v", h.streamEvents(t))
	}
	if h.streamCount(t, events.TypeEndInterview) != 1 || h.streamCount(t, events.TypeGenerateReport) != 1 {
		t.Fatalf("stream = %v", h.streamEvents(t))
	}

	// completed interviews must not also record an abandon
	h.sess.Close("client disconnect")
	if h.streamCount(t, events.TypeAbandonInterview) != 0 {
		t.Fatalf("stream = %v", h.streamEvents(t))
	}
}

func TestSession_CloseWithoutCompletionAbandons(t *testing.T) {
	h := newHarness(t, 2)
	h.sess.Start(context.Background())
	h.sess.Close("connection_closed")

	if h.streamCount(t, events.TypeAbandonInterview) != 1 {
		t.Fatalf("stream = %v", h.streamEvents(t))
	}
}

func TestSession_TabChangeLimit(t *testing.T) {
	h := newHarness(t, 2)
	h.sess.Start(context.Background())

	if h.sess.OnTabChange() || h.sess.OnTabChange() {
		t.Fatal("interview ended before the limit")
	}
	if !h.sess.OnTabChange() {
		t.Fatal("third tab change should end the interview")
	}
	if h.streamCount(t, events.TypeTabChange) != 3 {
		t.Fatalf("stream = %v", h.streamEvents(t))
	}
	if h.streamCount(t, events.TypeCheatInterview) != 1 {
		t.Fatalf("stream = %v", h.streamEvents(t))
	}
	if h.ft.countEvent("interview_cheated") != 1 {
		t.Fatalf("events = %v", h.ft.eventTypes())
	}
}

func TestSession_BargeInSupersedesPipeline(t *testing.T) {
	h := newHarness(t, 2)
	h.llm.gate = make(chan struct{})
	h.sess.Start(context.Background())
	synthCallsAfterOpening := h.tts.callCount()

	h.sess.OnSpeechStart()
	h.sess.OnUtterance(oneSecondUtterance())
	waitFor(t, time.Second, func() bool { return h.llm.callCount() == 1 })

	// user starts again while the model is thinking
	h.sess.OnSpeechStart()

	if h.ft.clearCount() < 2 { // once per OnSpeechStart
		t.Fatalf("queue cleared %d times", h.ft.clearCount())
	}
	// the superseded pipeline must vanish silently: no reply, no apology,
	// no audio
	time.Sleep(50 * time.Millisecond)
	if got := h.ft.countEvent("llm_response"); got != 1 {
		t.Fatalf("llm_response events after barge-in = %d, want opening only", got)
	}
	hist := h.sess.History()
	last := hist[len(hist)-1]
	if last.Role != RoleUser {
		t.Fatalf("cancelled reply reached history: %+v", last)
	}
	if h.tts.callCount() != synthCallsAfterOpening {
		t.Fatalf("superseded pipeline synthesized audio: %d calls", h.tts.callCount())
	}
}

func TestSession_IdleTipAfterSilence(t *testing.T) {
	h := newHarness(t, 2)
	h.sess.Start(context.Background())

	waitFor(t, 3*time.Second, func() bool { return h.ft.countEvent("interviewer_tip") >= 1 })

	// the same tier never repeats
	n := h.ft.countEvent("interviewer_tip")
	time.Sleep(100 * time.Millisecond)
	if h.ft.countEvent("interviewer_tip") != n {
		t.Fatal("tip tier repeated")
	}
}

