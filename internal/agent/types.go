package agent

import (
	"context"
	"time"
)

// Transcriber converts a complete utterance of 16kHz mono PCM into text. An
// empty string with nil error means the recognizer heard nothing usable.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error)
}

// Responder generates the interviewer's next line. advance is true when the
// model decided to move to the next question.
type Responder interface {
	Reply(ctx context.Context, systemPrompt string, history []Message) (text string, advance bool, err error)
}

// Synthesizer turns text into little-endian PCM at SampleRate.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	SampleRate() int
}

// Message is one turn of the conversation history.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
	At      time.Time
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// fallbackReply is spoken when the model call fails; the candidate never sees
// a raw error.
const fallbackReply = "I apologize, I'm having technical difficulties. Could you please repeat that?"
