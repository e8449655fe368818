// Package vad gates 20ms PCM frames into speech/silence decisions.
//
// A cheap mean-amplitude pre-filter runs first so that silence-level frames
// never reach the classifier; only frames with enough energy pay for a real
// classification.
package vad

import (
	"go.uber.org/zap"

	"github.com/Shoyeb45/ai-interview/internal/audio"
)

// Classifier decides whether a single frame contains voice. Implementations
// may keep per-stream smoothing state and are not required to be safe for
// concurrent use; each session owns its own instance.
type Classifier interface {
	IsSpeech(frame []int16) (bool, error)
}

// Gate applies the energy pre-filter and delegates to a Classifier.
// Classifier failures are logged and treated as silence.
type Gate struct {
	threshold float64
	clf       Classifier
	log       *zap.Logger
}

func NewGate(energyThreshold float64, clf Classifier, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{threshold: energyThreshold, clf: clf, log: log}
}

// Classify returns true when the frame is voiced. Deterministic for
// identical input bytes and threshold configuration.
func (g *Gate) Classify(frame []int16) bool {
	if audio.MeanAbs(frame) <= g.threshold {
		return false
	}
	voiced, err := g.clf.IsSpeech(frame)
	if err != nil {
		g.log.Warn("vad classifier failed, treating frame as silence", zap.Error(err))
		return false
	}
	return voiced
}

// EnergyClassifier is a pure-Go voice detector based on RMS level with a
// short majority-vote smoothing window to absorb single-frame flicker.
type EnergyClassifier struct {
	threshold float64
	smoothN   int
	win       []bool
}

func NewEnergyClassifier() *EnergyClassifier {
	return &EnergyClassifier{threshold: 300.0, smoothN: 4}
}

func (c *EnergyClassifier) IsSpeech(frame []int16) (bool, error) {
	if len(frame) == 0 {
		return false, nil
	}
	b := audio.RMS(frame) >= c.threshold
	c.win = append(c.win, b)
	if len(c.win) > c.smoothN {
		c.win = c.win[len(c.win)-c.smoothN:]
	}
	trueCount := 0
	for _, x := range c.win {
		if x {
			trueCount++
		}
	}
	return trueCount*2 >= len(c.win), nil
}

// Reset clears the smoothing window.
func (c *EnergyClassifier) Reset() {
	c.win = c.win[:0]
}
