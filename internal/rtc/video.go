package rtc

import (
	"io"
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Snapshot is a coarse proctoring observation derived from the video stream.
// Without decoding frames, bitrate works as a cheap activity signal: a static
// or covered camera produces a near-constant low-rate stream, while a person
// in frame keeps the encoder busy.
type Snapshot struct {
	FacePresent     bool    `json:"face_present"`
	MovementLevel   float64 `json:"movement_level"`
	EngagementScore float64 `json:"engagement_score"`
}

const snapshotInterval = 3500 * time.Millisecond

// watchVideo drains the remote video track and invokes onSnapshot roughly
// every 3.5 seconds. Returns when the track ends.
func watchVideo(remote *webrtc.TrackRemote, onSnapshot func(Snapshot), log *zap.Logger) {
	var (
		bytesSeen  int64
		prevBytes  int64
		lastSample = time.Now()
	)
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			if err != io.EOF {
				log.Debug("video track read ended", zap.Error(err))
			}
			return
		}
		bytesSeen += int64(len(pkt.Payload))

		now := time.Now()
		if now.Sub(lastSample) < snapshotInterval {
			continue
		}
		elapsed := now.Sub(lastSample).Seconds()
		lastSample = now

		rate := float64(bytesSeen-prevBytes) / elapsed // bytes/sec since last sample
		prevBytes = bytesSeen

		snap := analyzeBitrate(rate)
		onSnapshot(snap)
	}
}

func analyzeBitrate(bytesPerSec float64) Snapshot {
	// ~8KB/s is a floor for a live camera pointed at anything
	facePresent := bytesPerSec > 8000
	movement := bytesPerSec / 60000
	if movement > 1 {
		movement = 1
	}
	base := 0.2
	if facePresent {
		base = 0.6
	}
	engagement := base + movement*0.2
	if engagement > 1 {
		engagement = 1
	}
	return Snapshot{FacePresent: facePresent, MovementLevel: movement, EngagementScore: engagement}
}
