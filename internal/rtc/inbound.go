package rtc

import (
	"context"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/Shoyeb45/ai-interview/internal/agent"
	"github.com/Shoyeb45/ai-interview/internal/audio"
	"github.com/Shoyeb45/ai-interview/internal/segment"
	"github.com/Shoyeb45/ai-interview/internal/vad"
)

// pumpAudio decodes the candidate's opus track straight to 16kHz mono and
// feeds fixed-size frames through the voice gate and segmenter. Runs until
// the track ends or the connection context is cancelled.
func (h *Handler) pumpAudio(ctx context.Context, remote *webrtc.TrackRemote, sess *agent.Session, log *zap.Logger) {
	dec, err := opus.NewDecoder(h.Audio.InputRate, 1)
	if err != nil {
		log.Error("opus decoder init failed", zap.Error(err))
		return
	}

	gate := vad.NewGate(h.Audio.EnergyThreshold, vad.NewEnergyClassifier(), log)
	seg := segment.New(
		segment.Config{
			MinSpeechFrames:         h.Audio.MinSpeechFrames,
			MinSpeechDurationFrames: h.Audio.MinSpeechDurationFrames,
			SilenceThresholdFrames:  h.Audio.SilenceThresholdFrames,
			MaxSpeechFrames:         h.Audio.MaxSpeechFrames,
		},
		gate.Classify,
		sess.PlaybackBusy,
		segment.Hooks{
			OnSpeechStart: sess.OnSpeechStart,
			OnUtterance:   sess.OnUtterance,
		},
		log,
	)

	ring := audio.NewRing(h.Audio.MaxBufferSec, h.Audio.InputRate)
	samples := make([]int16, 1920)
	for {
		if ctx.Err() != nil {
			return
		}
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, err := dec.Decode(pkt.Payload, samples)
		if err != nil {
			continue
		}
		ring.Write(samples[:n])

		for {
			frame, ok := ring.PopFrame(h.Audio.FrameSize)
			if !ok {
				break
			}
			seg.ProcessFrame(frame)
		}
	}
}
