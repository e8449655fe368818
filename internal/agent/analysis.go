package agent

import (
	"strings"
)

// fillerWords signal hesitation; each one present in an answer counts once.
var fillerWords = []string{"um", "uh", "hmm", "err", "like", "you know", "ahh", "basically", "actually"}

// AnswerAnalysis holds the delivery metrics for one answer. It feeds the
// model's behavior context and the question_evaluate audit event.
type AnswerAnalysis struct {
	Duration           float64 `json:"duration"`
	WordCount          int     `json:"word_count"`
	WordsPerSecond     float64 `json:"words_per_second"`
	FillerWords        int     `json:"filler_words"`
	ConfidenceScore    float64 `json:"confidence_score"`
	IsStruggling       bool    `json:"is_struggling"`
	IsTooBrief         bool    `json:"is_too_brief"`
	IsConfident        bool    `json:"is_confident"`
	NeedsEncouragement bool    `json:"needs_encouragement"`
	Assessment         string  `json:"assessment"`
}

// AnalyzeAnswer scores an answer from its text and spoken duration in
// seconds. experienceLevel shifts the expected answer length: senior
// candidates are expected to elaborate more.
func AnalyzeAnswer(text string, duration float64, experienceLevel string) AnswerAnalysis {
	words := len(strings.Fields(text))
	lower := strings.ToLower(text)

	fillers := 0
	for _, w := range fillerWords {
		if strings.Contains(lower, w) {
			fillers++
		}
	}

	// fluency: heavy filler use drags confidence down fast
	denom := words
	if denom < 1 {
		denom = 1
	}
	fillerRatio := float64(fillers) / float64(denom)
	fluency := 1 - fillerRatio*5
	if fluency < 0 {
		fluency = 0
	}

	// length: distance from the expected answer size
	optimal := 30.0
	switch strings.ToUpper(experienceLevel) {
	case "SENIOR", "LEAD":
		optimal = 50
	}
	lengthScore := 1 - abs(float64(words)-optimal)/optimal
	lengthScore = clamp01(lengthScore)

	// pacing: answers in the 5-45s band read as deliberate
	var pacing float64
	switch {
	case duration > 5 && duration < 45:
		pacing = 0.9
	case duration <= 5:
		pacing = 0.5
	default:
		pacing = 0.3
	}

	confidence := (fluency + lengthScore + pacing) / 3

	dur := duration
	if dur < 1 {
		dur = 1
	}
	return AnswerAnalysis{
		Duration:           duration,
		WordCount:          words,
		WordsPerSecond:     float64(words) / dur,
		FillerWords:        fillers,
		ConfidenceScore:    confidence,
		IsStruggling:       fillers > 3 || duration > 60,
		IsTooBrief:         words < 15 && duration < 5,
		IsConfident:        fillers <= 1 && words > 20 && words < 150,
		NeedsEncouragement: duration > 30 || fillers > 4,
		Assessment:         assess(confidence, fillers),
	}
}

func assess(confidence float64, fillers int) string {
	switch {
	case confidence > 0.8 && fillers <= 1:
		return "excellent"
	case confidence > 0.6:
		return "good"
	case confidence > 0.4:
		return "moderate"
	default:
		return "struggling"
	}
}

// BehaviorNote renders the analysis as extra system-prompt context so the
// model can adapt its follow-up behavior.
func (a AnswerAnalysis) BehaviorNote() string {
	var b strings.Builder
	if a.IsStruggling {
		b.WriteString("- User seems to be struggling (many filler words or taking long time)\n")
	}
	if a.IsTooBrief {
		b.WriteString("- User gave very brief answer - DEFINITELY ask a follow-up, do NOT advance yet\n")
	}
	if a.IsConfident {
		b.WriteString("- User seems confident in their answer\n")
	}
	if b.Len() == 0 {
		return ""
	}
	return "\n\nCandidate behavior context:\n" + b.String()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
