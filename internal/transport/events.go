package transport

// Outbound side-channel events. Every message carries a "type" discriminator
// so the frontend can switch on it.

type UserSpeaking struct {
	Type     string `json:"type"`
	Speaking bool   `json:"speaking"`
}

func NewUserSpeaking(speaking bool) UserSpeaking {
	return UserSpeaking{Type: "user_speaking", Speaking: speaking}
}

type AISpeaking struct {
	Type     string `json:"type"`
	Speaking bool   `json:"speaking"`
}

func NewAISpeaking(speaking bool) AISpeaking {
	return AISpeaking{Type: "ai_speaking", Speaking: speaking}
}

type Transcript struct {
	Type     string  `json:"type"`
	Text     string  `json:"text"`
	IsFinal  bool    `json:"is_final"`
	Duration float64 `json:"duration"` // seconds of audio transcribed
}

func NewTranscript(text string, durationSec float64) Transcript {
	return Transcript{Type: "transcript", Text: text, IsFinal: true, Duration: durationSec}
}

type LLMResponse struct {
	Type     string `json:"type"`
	Response string `json:"response"`
}

func NewLLMResponse(text string) LLMResponse {
	return LLMResponse{Type: "llm_response", Response: text}
}

// AIStatus reports coarse pipeline progress (thinking, speaking, idle) so the
// frontend can animate while the user waits on model latency.
type AIStatus struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

func NewAIStatus(status string) AIStatus {
	return AIStatus{Type: "ai_status", Status: status}
}

type InterviewerTip struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewInterviewerTip(message string) InterviewerTip {
	return InterviewerTip{Type: "interviewer_tip", Message: message}
}

type InterviewEnded struct {
	Type string `json:"type"`
}

func NewInterviewEnded() InterviewEnded { return InterviewEnded{Type: "interview_ended"} }

type InterviewCheated struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func NewInterviewCheated(reason string) InterviewCheated {
	return InterviewCheated{Type: "interview_cheated", Reason: reason}
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewError(code, message string) ErrorEvent {
	return ErrorEvent{Type: "error", Code: code, Message: message}
}

// WebSocket close codes for fatal session errors.
const (
	CloseMissingToken   = 4401
	CloseForbidden      = 4403
	CloseSessionExpired = 4410
)
