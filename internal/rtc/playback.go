package rtc

import (
	"sync"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/zap"

	"github.com/Shoyeb45/ai-interview/internal/audio"
)

const (
	playbackRate     = 48000
	frameSamples     = 960 // 20ms at 48kHz
	frameDuration    = 20 * time.Millisecond
	maxQueuedSamples = playbackRate * 60 // one minute of audio, hard cap
)

type sampleWriter interface {
	WriteSample(s media.Sample) error
}

// PlaybackTrack owns the outbound audio path: synthesized PCM is queued here
// and a pacing goroutine encodes and writes one 20ms Opus frame per wall-clock
// interval. When the queue runs dry the pacer writes silence so the track
// keeps a steady cadence.
type PlaybackTrack struct {
	mu      sync.Mutex
	queue   []int16 // mono samples at playbackRate
	track   sampleWriter
	encode  func(pcm []int16) ([]byte, error)
	stopCh  chan struct{}
	stopped bool
	log     *zap.Logger
}

// NewPlaybackTrack wires an Opus encoder to a local track and starts the pacer.
func NewPlaybackTrack(track *webrtc.TrackLocalStaticSample, log *zap.Logger) (*PlaybackTrack, error) {
	enc, err := opus.NewEncoder(playbackRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	opusBuf := make([]byte, 4000)
	p := &PlaybackTrack{
		track: track,
		encode: func(pcm []int16) ([]byte, error) {
			n, err := enc.Encode(pcm, opusBuf)
			if err != nil {
				return nil, err
			}
			out := make([]byte, n)
			copy(out, opusBuf[:n])
			return out, nil
		},
		stopCh: make(chan struct{}),
		log:    log,
	}
	go p.pace()
	return p, nil
}

// Enqueue converts little-endian PCM at the given rate to the playback rate
// and appends it to the queue.
func (p *PlaybackTrack) Enqueue(pcm []byte, sampleRate int) error {
	if len(pcm) < 2 {
		return nil
	}
	samples := audio.BytesToInt16(pcm)
	if sampleRate != playbackRate {
		samples = audio.Resample(samples, sampleRate, playbackRate)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue)+len(samples) > maxQueuedSamples {
		p.log.Warn("playback queue full, dropping audio",
			zap.Int("queued", len(p.queue)), zap.Int("incoming", len(samples)))
		return nil
	}
	p.queue = append(p.queue, samples...)
	return nil
}

// EnqueueSilence appends silence, used as lead-in/lead-out around speech so
// the first syllable is not clipped by jitter buffers.
func (p *PlaybackTrack) EnqueueSilence(d time.Duration) {
	n := int(d * playbackRate / time.Second)
	if n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue)+n > maxQueuedSamples {
		p.log.Warn("playback queue full, dropping silence",
			zap.Int("queued", len(p.queue)), zap.Int("incoming", n))
		return
	}
	p.queue = append(p.queue, make([]int16, n)...)
}

// Clear discards all queued audio. Called on barge-in.
func (p *PlaybackTrack) Clear() {
	p.mu.Lock()
	p.queue = p.queue[:0]
	p.mu.Unlock()
}

// QueueSize reports queued samples.
func (p *PlaybackTrack) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// QueueDuration reports how long the queued audio will take to play out.
func (p *PlaybackTrack) QueueDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(len(p.queue)) * time.Second / playbackRate
}

// Close stops the pacer. Safe to call more than once.
func (p *PlaybackTrack) Close() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.mu.Unlock()
}

// pace writes one frame per 20ms against absolute deadlines, so encode time
// and scheduler jitter do not accumulate as drift.
func (p *PlaybackTrack) pace() {
	start := time.Now()
	frame := make([]int16, frameSamples)
	timer := time.NewTimer(frameDuration)
	defer timer.Stop()
	for n := int64(0); ; n++ {
		deadline := start.Add(time.Duration(n) * frameDuration)
		if wait := time.Until(deadline); wait > 0 {
			timer.Reset(wait)
			select {
			case <-p.stopCh:
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-p.stopCh:
				return
			default:
			}
		}
		p.popFrame(frame)
		pkt, err := p.encode(frame)
		if err != nil {
			p.log.Warn("opus encode failed", zap.Error(err))
			continue
		}
		if err := p.track.WriteSample(media.Sample{Data: pkt, Duration: frameDuration}); err != nil {
			p.log.Debug("track write failed", zap.Error(err))
		}
	}
}

// popFrame fills frame with the next queued samples, zero-padding on underrun.
func (p *PlaybackTrack) popFrame(frame []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(frame, p.queue)
	for i := n; i < len(frame); i++ {
		frame[i] = 0
	}
	if n > 0 {
		copy(p.queue, p.queue[n:])
		p.queue = p.queue[:len(p.queue)-n]
	}
}
