// Package segment turns per-frame voice decisions into complete utterances.
package segment

import (
	"go.uber.org/zap"
)

// Config holds the frame-count thresholds of the state machine. All values
// are in 20ms frames.
type Config struct {
	MinSpeechFrames         int // voiced score needed before recording is considered
	MinSpeechDurationFrames int // voiced score needed to open an utterance
	SilenceThresholdFrames  int // consecutive silent frames that end an utterance
	MaxSpeechFrames         int // hard cap; dispatch happens here no matter what
}

// Hooks are invoked synchronously on the frame-processing path. OnUtterance
// receives ownership of the dispatched buffer; it is never mutated afterwards.
type Hooks struct {
	OnSpeechStart func()
	OnUtterance   func(pcm []int16)
}

// Segmenter consumes gate decisions frame by frame and detects utterance
// boundaries. It is single-writer: all mutation happens on the one ingestion
// path, so no locking is needed.
type Segmenter struct {
	cfg   Config
	hooks Hooks
	gate  func(frame []int16) bool
	// playbackBusy suppresses the start-of-speech transition while synthesized
	// audio is queued, so the agent's own voice cannot trigger a false start.
	playbackBusy func() bool
	log          *zap.Logger

	speechFrameCount  int
	silenceFrames     int
	totalSpeechFrames int
	speaking          bool
	buf               []int16
}

func New(cfg Config, gate func([]int16) bool, playbackBusy func() bool, hooks Hooks, log *zap.Logger) *Segmenter {
	if playbackBusy == nil {
		playbackBusy = func() bool { return false }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Segmenter{cfg: cfg, gate: gate, playbackBusy: playbackBusy, hooks: hooks, log: log}
}

// ProcessFrame advances the state machine by one 20ms frame.
func (s *Segmenter) ProcessFrame(frame []int16) {
	voiced := s.gate(frame)

	if voiced {
		s.speechFrameCount++
		s.silenceFrames = 0
	} else {
		if s.speaking {
			s.silenceFrames++
		}
		if s.speechFrameCount > 0 {
			// decay rather than reset, tolerating brief VAD flicker
			s.speechFrameCount--
		}
	}

	shouldRecord := s.speechFrameCount >= s.cfg.MinSpeechFrames

	if shouldRecord {
		if !s.speaking && s.speechFrameCount >= s.cfg.MinSpeechDurationFrames && !s.playbackBusy() {
			s.speaking = true
			s.buf = s.buf[:0]
			s.totalSpeechFrames = 0
			s.log.Debug("user started speaking")
			if s.hooks.OnSpeechStart != nil {
				s.hooks.OnSpeechStart()
			}
		}
		if s.speaking {
			s.buf = append(s.buf, frame...)
			s.totalSpeechFrames++
			if s.totalSpeechFrames >= s.cfg.MaxSpeechFrames {
				s.log.Debug("max utterance duration reached, dispatching")
				s.dispatch()
			}
		}
		return
	}

	if s.speaking {
		// frames inside the tolerated pause still belong to the utterance so
		// the recognizer sees trailing audio without truncation
		if s.silenceFrames <= s.cfg.SilenceThresholdFrames {
			s.buf = append(s.buf, frame...)
		}
		if s.silenceFrames > s.cfg.SilenceThresholdFrames {
			s.log.Debug("user stopped speaking", zap.Int("frames", s.totalSpeechFrames))
			s.dispatch()
		}
	}
}

func (s *Segmenter) dispatch() {
	pcm := make([]int16, len(s.buf))
	copy(pcm, s.buf)
	s.Reset()
	if s.hooks.OnUtterance != nil {
		s.hooks.OnUtterance(pcm)
	}
}

// Reset restores the idle state and drops any partial buffer.
func (s *Segmenter) Reset() {
	s.speechFrameCount = 0
	s.silenceFrames = 0
	s.totalSpeechFrames = 0
	s.speaking = false
	s.buf = s.buf[:0]
}

// Speaking reports whether an utterance is currently open.
func (s *Segmenter) Speaking() bool { return s.speaking }
