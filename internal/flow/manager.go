// Package flow drives the interview question sequence. Session configuration
// is written to Redis by the web backend; this package loads it and decides
// what the interviewer asks next.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Shoyeb45/ai-interview/internal/events"
	"github.com/Shoyeb45/ai-interview/internal/store"
)

// ErrSessionNotFound is surfaced to the client as a session-expired error.
var ErrSessionNotFound = errors.New("flow: session expired or invalid")

// Question selection modes from the backend.
const (
	ModeCustomOnly = "CUSTOM_ONLY"
	ModeAIOnly     = "AI_ONLY"
	ModeMixed      = "MIXED"
)

type Question struct {
	ID           int    `json:"id"`
	QuestionText string `json:"questionText"`
	OrderIndex   int    `json:"orderIndex"`
	Category     string `json:"category"`
	Difficulty   string `json:"difficulty"`
}

type sessionConfig struct {
	AgentID               int        `json:"id"`
	InterviewID           int        `json:"interviewId"`
	UserID                int        `json:"userId"`
	Role                  string     `json:"role"`
	JobDescription        string     `json:"jobDescription"`
	ExperienceLevel       string     `json:"experienceLevel"`
	TotalQuestions        int        `json:"totalQuestions"`
	FocusAreas            []string   `json:"focusAreas"`
	QuestionSelectionMode string     `json:"questionSelectionMode"`
	OpeningMessage        string     `json:"openingMessage"`
	Questions             []Question `json:"questions"`
}

// Manager tracks the current position in the interview. It is confined to the
// session goroutine that owns the response pipeline, so it carries no lock.
type Manager struct {
	sessionID string
	cfg       sessionConfig
	questions []Question // sorted by orderIndex
	index     int
}

// Load fetches and parses the session config. A missing key or unparsable
// payload both map to ErrSessionNotFound: either way the client has to start
// the interview again.
func Load(ctx context.Context, sessions *store.Sessions, sessionID string) (*Manager, error) {
	raw, err := sessions.Get(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var cfg sessionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, ErrSessionNotFound
	}
	if cfg.TotalQuestions <= 0 {
		cfg.TotalQuestions = 6
	}
	if cfg.Role == "" {
		cfg.Role = "Software Engineer"
	}
	if cfg.ExperienceLevel == "" {
		cfg.ExperienceLevel = "MID_LEVEL"
	}
	if cfg.QuestionSelectionMode == "" {
		cfg.QuestionSelectionMode = ModeMixed
	}
	sorted := make([]Question, len(cfg.Questions))
	copy(sorted, cfg.Questions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderIndex < sorted[j].OrderIndex })
	return &Manager{sessionID: sessionID, cfg: cfg, questions: sorted}, nil
}

func (m *Manager) SessionID() string       { return m.sessionID }
func (m *Manager) Role() string            { return m.cfg.Role }
func (m *Manager) ExperienceLevel() string { return m.cfg.ExperienceLevel }
func (m *Manager) TotalQuestions() int     { return m.cfg.TotalQuestions }
func (m *Manager) QuestionIndex() int      { return m.index }

func (m *Manager) Ref() events.Ref {
	return events.Ref{
		SessionID:   m.sessionID,
		InterviewID: m.cfg.InterviewID,
		UserID:      m.cfg.UserID,
		AgentID:     m.cfg.AgentID,
	}
}

func (m *Manager) focusAreas() string {
	if len(m.cfg.FocusAreas) == 0 {
		return "technical skills and problem-solving"
	}
	return strings.Join(m.cfg.FocusAreas, ", ")
}

// OpeningMessage prefers the configured opening and falls back to a generated
// greeting.
func (m *Manager) OpeningMessage() string {
	if custom := strings.TrimSpace(m.cfg.OpeningMessage); custom != "" {
		return custom
	}
	return fmt.Sprintf(
		"Hello! Thanks for joining today. I'll be conducting your interview for the %s position.\n\n"+
			"This will be a conversational interview with %d questions focusing on %s.\n\n"+
			"Don't worry if you need hints or want to think out loud. Ready to begin?",
		m.cfg.Role, m.cfg.TotalQuestions, m.focusAreas(),
	)
}

// SystemPrompt builds the interviewer persona and flow rules for the model.
func (m *Manager) SystemPrompt() string {
	jd := m.cfg.JobDescription
	if len(jd) > 2000 {
		jd = jd[:2000]
	}
	return fmt.Sprintf(`You are an experienced technical interviewer conducting a CONVERSATIONAL interview for a %s position. This is NOT a quiz - engage naturally with the candidate's answers.

Interview Context:
- Role: %s
- Experience Level: %s
- Focus Areas: %s
- Total Questions: %d
- Current Question: %d/%d

Job Description:
%s

CRITICAL - Conversational Flow (NOT quiz-style):
1. **Always acknowledge** the candidate's answer
2. **Follow up when answers are brief** - ask for more depth before moving on
3. **Only move to the next question** when you have enough depth. Don't rush.
4. **Personalize** - use their name if they gave it, reference what they said
5. **Keep responses natural** - 2-4 sentences, warm and professional

When to follow up vs move on:
- Brief answer (1-2 sentences): follow up to get more depth. Do NOT end with [NEXT].
- Satisfactory answer (good detail): acknowledge and move on. End with [NEXT].
- If unsure, prefer follow-up.

Output format: End your response with exactly [NEXT] ONLY when moving to the next question. If asking a follow-up, do NOT include [NEXT].`,
		m.cfg.Role, m.cfg.Role, m.cfg.ExperienceLevel, m.focusAreas(),
		m.cfg.TotalQuestions, m.index+1, m.cfg.TotalQuestions, jd)
}

// ResponseContext describes where the interview currently stands, for the
// model's system message.
type ResponseContext struct {
	CurrentQuestion string // what was asked, for follow-up awareness
	NextQuestion    string // predefined next question, if any
	NextInstruction string // instruction for generating the next question or closing
}

// Context returns the current/next question context. It does not advance;
// advancement happens only when the model signals it.
func (m *Manager) Context() ResponseContext {
	var rc ResponseContext
	if m.index >= m.cfg.TotalQuestions {
		return rc
	}
	if m.index == 0 {
		rc.CurrentQuestion = "Opening / self-introduction (asked candidate to introduce themselves)"
	} else if text := m.questionTextAt(m.index - 1); text != "" {
		rc.CurrentQuestion = text
	} else {
		rc.CurrentQuestion = fmt.Sprintf("Question %d (from focus areas)", m.index)
	}

	if m.index >= m.cfg.TotalQuestions-1 && m.index > 0 {
		rc.NextInstruction = "This was the last question. Provide a warm closing message thanking the candidate, " +
			"mentioning next steps, and concluding the interview. End with [NEXT]."
		return rc
	}
	if text := m.questionTextAt(m.index); text != "" {
		rc.NextQuestion = text
		return rc
	}
	switch strings.ToUpper(m.cfg.QuestionSelectionMode) {
	case ModeAIOnly, ModeMixed:
		rc.NextInstruction = fmt.Sprintf(
			"Generate question %d of %d based on the job description and focus areas.",
			m.index+1, m.cfg.TotalQuestions)
	}
	return rc
}

// CurrentQuestion returns the predefined question being answered, if any.
func (m *Manager) CurrentQuestion() *Question {
	if m.index == 0 || m.index-1 >= len(m.questions) {
		return nil
	}
	q := m.questions[m.index-1]
	return &q
}

func (m *Manager) questionTextAt(i int) string {
	if i < 0 || i >= len(m.questions) {
		return ""
	}
	return strings.TrimSpace(m.questions[i].QuestionText)
}

// Advance moves to the next question. Call only when the model ended with the
// advance marker.
func (m *Manager) Advance() { m.index++ }

// Complete reports whether every question has been asked and answered.
func (m *Manager) Complete() bool { return m.index >= m.cfg.TotalQuestions }
