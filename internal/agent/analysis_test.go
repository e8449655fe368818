package agent

import (
	"strings"
	"testing"
)

func TestAnalyzeAnswer_ConfidentAnswer(t *testing.T) {
	text := strings.Repeat("goroutines channels select timeouts retries ", 6) // 30 words
	a := AnalyzeAnswer(text, 15, "MID_LEVEL")

	if a.WordCount != 30 {
		t.Fatalf("word count = %d", a.WordCount)
	}
	if a.FillerWords != 0 {
		t.Fatalf("filler words = %d", a.FillerWords)
	}
	if !a.IsConfident || a.IsStruggling || a.IsTooBrief {
		t.Fatalf("flags = %+v", a)
	}
	if a.Assessment != "excellent" {
		t.Fatalf("assessment = %q (confidence %.2f)", a.Assessment, a.ConfidenceScore)
	}
}

func TestAnalyzeAnswer_FillerHeavyAnswerStruggles(t *testing.T) {
	text := "um uh hmm err like basically I do not actually know you know"
	a := AnalyzeAnswer(text, 10, "MID_LEVEL")

	if a.FillerWords < 4 {
		t.Fatalf("filler words = %d, want >= 4", a.FillerWords)
	}
	if !a.IsStruggling {
		t.Fatalf("expected struggling, got %+v", a)
	}
	if !a.NeedsEncouragement {
		t.Fatal("expected needs encouragement")
	}
}

func TestAnalyzeAnswer_TooBrief(t *testing.T) {
	a := AnalyzeAnswer("My name is Sam", 3, "MID_LEVEL")
	if !a.IsTooBrief {
		t.Fatalf("expected too brief, got %+v", a)
	}
	note := a.BehaviorNote()
	if !strings.Contains(note, "brief answer") {
		t.Fatalf("behavior note = %q", note)
	}
}

func TestAnalyzeAnswer_LongDurationStruggles(t *testing.T) {
	a := AnalyzeAnswer(strings.Repeat("detail ", 40), 75, "MID_LEVEL")
	if !a.IsStruggling {
		t.Fatal("answers over a minute should read as struggling")
	}
}

func TestAnalyzeAnswer_SeniorExpectsLongerAnswers(t *testing.T) {
	text := strings.Repeat("word ", 30)
	mid := AnalyzeAnswer(text, 15, "MID_LEVEL")
	senior := AnalyzeAnswer(text, 15, "SENIOR")
	if senior.ConfidenceScore >= mid.ConfidenceScore {
		t.Fatalf("30 words should score lower for senior: senior=%.2f mid=%.2f",
			senior.ConfidenceScore, mid.ConfidenceScore)
	}
}

func TestBehaviorNote_EmptyWhenUnremarkable(t *testing.T) {
	a := AnswerAnalysis{}
	if a.BehaviorNote() != "" {
		t.Fatalf("note = %q", a.BehaviorNote())
	}
}
