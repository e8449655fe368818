package agent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Shoyeb45/ai-interview/internal/events"
	"github.com/Shoyeb45/ai-interview/internal/transport"
)

// respond runs the full utterance pipeline: transcribe, generate the
// interviewer's reply, synthesize, and queue playback. ctx is cancelled if
// the user starts speaking again before this finishes; committed transcript
// and history entries are deliberately not rolled back.
func (s *Session) respond(ctx context.Context, pcm []int16) {
	dur := time.Duration(len(pcm)) * time.Second / time.Duration(s.cfg.InputRate)
	if dur < s.cfg.MinUtterance {
		s.log.Debug("utterance too short, dropping", zap.Duration("duration", dur))
		return
	}

	s.send(transport.NewAIStatus("thinking"))

	text, err := s.transcriber.Transcribe(ctx, pcm, s.cfg.InputRate)
	if err != nil {
		s.log.Warn("transcription failed, dropping utterance", zap.Error(err))
		s.send(transport.NewAIStatus("idle"))
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.log.Debug("empty transcript, dropping utterance")
		s.send(transport.NewAIStatus("idle"))
		return
	}

	s.send(transport.NewTranscript(text, dur.Seconds()))
	s.appendHistory(RoleUser, text)

	analysis := AnalyzeAnswer(text, dur.Seconds(), s.flow.ExperienceLevel())
	s.mu.Lock()
	if analysis.IsStruggling {
		s.struggling = true
	}
	thinkingTime := s.answerStartedAt.Sub(s.questionAskedAt)
	answerStartedAt := s.answerStartedAt
	system := s.buildSystemMessage(analysis)
	history := make([]Message, len(s.history))
	copy(history, s.history)
	s.mu.Unlock()

	reply, advance, err := s.responder.Reply(ctx, system, history)
	if ctx.Err() != nil {
		// superseded mid-generation: no fallback, no history entry; the
		// newer utterance's pipeline owns the floor
		return
	}
	if err != nil {
		s.log.Warn("llm call failed, using fallback", zap.Error(err))
		reply, advance = fallbackReply, false
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = "Could you elaborate on that?"
	}

	s.appendHistory(RoleAssistant, reply)
	s.send(transport.NewLLMResponse(reply))

	finished := false
	if advance {
		s.evaluateQuestion(text, reply, analysis, thinkingTime, answerStartedAt)
		s.mu.Lock()
		s.flow.Advance()
		finished = s.flow.Complete()
		s.mu.Unlock()
	}

	if ctx.Err() != nil {
		// superseded by a newer utterance; its pipeline owns the floor now
		return
	}
	s.speak(ctx, reply)
	if finished {
		s.finish()
		return
	}
	s.markWaiting()
}

// buildSystemMessage assembles the system prompt plus question and behavior
// context. Caller holds s.mu.
func (s *Session) buildSystemMessage(analysis AnswerAnalysis) string {
	var b strings.Builder
	b.WriteString(s.flow.SystemPrompt())

	rc := s.flow.Context()
	if rc.CurrentQuestion != "" {
		b.WriteString("\n\nCurrent question you asked: ")
		b.WriteString(rc.CurrentQuestion)
	}
	if rc.NextQuestion != "" {
		b.WriteString("\n\nWhen you advance (end with [NEXT]), naturally incorporate this next question: ")
		b.WriteString(rc.NextQuestion)
	} else if rc.NextInstruction != "" {
		b.WriteString("\n\nWhen you advance (end with [NEXT]), ")
		b.WriteString(rc.NextInstruction)
	}
	b.WriteString(analysis.BehaviorNote())
	if s.struggling {
		b.WriteString("\n- The candidate has struggled earlier in this interview: keep difficulty moderate and be encouraging.")
	}
	return b.String()
}

// evaluateQuestion publishes the answered question for offline scoring.
func (s *Session) evaluateQuestion(userText, reply string, analysis AnswerAnalysis, thinkingTime time.Duration, answerStartedAt time.Time) {
	s.mu.Lock()
	questionNumber := s.flow.QuestionIndex() + 1
	rc := s.flow.Context()
	q := s.flow.CurrentQuestion()
	askedAt := s.questionAskedAt
	history := s.historyPayloadLocked()
	s.mu.Unlock()

	payload := map[string]any{
		"questionNumber":      questionNumber,
		"question":            rc.CurrentQuestion,
		"userResponse":        userText,
		"aiResponse":          reply,
		"questionAskedAt":     formatTime(askedAt),
		"answerStartedAt":     formatTime(answerStartedAt),
		"answerEndedAt":       formatTime(time.Now()),
		"thinkingTime":        int(thinkingTime.Seconds()),
		"answerDuration":      analysis.Duration,
		"conversationHistory": history,
		"metrics":             analysis,
	}
	if q != nil {
		payload["interviewQuestionId"] = q.ID
		payload["category"] = q.Category
		payload["difficulty"] = q.Difficulty
	}
	s.audit.Emit(events.TypeQuestionEvaluate, payload)
}

// speak synthesizes the reply and queues it for paced playback. The floor is
// claimed only after synthesis succeeds: on TTS failure the candidate keeps
// the text reply and never sees a phantom speaking state.
func (s *Session) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil || len(audio) == 0 {
		if err != nil {
			s.log.Warn("tts synthesis failed, continuing text-only", zap.Error(err))
		}
		s.send(transport.NewAIStatus("idle"))
		return
	}
	if ctx.Err() != nil {
		return
	}

	s.turns.BeginAITurn()
	s.send(transport.NewAIStatus("speaking"))
	s.tr.AddSilence(s.cfg.LeadSilence)
	if err := s.tr.PlayAudio(audio, s.synth.SampleRate()); err != nil {
		s.log.Warn("audio enqueue failed", zap.Error(err))
	}
	s.tr.AddSilence(s.cfg.TailSilence)
	s.turns.EndAITurn(s.tr.QueueDuration())

	s.mu.Lock()
	s.questionAskedAt = time.Now().Add(s.tr.QueueDuration())
	s.mu.Unlock()
}

// finish wraps up a fully answered interview.
func (s *Session) finish() {
	s.mu.Lock()
	s.completed = true
	history := s.historyPayloadLocked()
	s.mu.Unlock()

	s.send(transport.NewInterviewEnded())
	s.audit.Emit(events.TypeEndInterview, map[string]any{"conversationHistory": history})
	s.audit.Emit(events.TypeGenerateReport, map[string]any{"conversationHistory": history})
	s.log.Info("interview completed")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
