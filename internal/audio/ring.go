package audio

import "sync"

// Ring accumulates inbound mono PCM until it is consumed in fixed-size
// frames. When more than maxSamples are retained the oldest samples are
// dropped; under correct real-time operation this never happens, it only
// bounds memory if a consumer stalls.
type Ring struct {
	mu         sync.Mutex
	buf        []int16
	maxSamples int
}

// NewRing creates a ring holding at most maxSeconds of audio at sampleRate.
func NewRing(maxSeconds, sampleRate int) *Ring {
	n := maxSeconds * sampleRate
	if n < sampleRate {
		n = sampleRate
	}
	return &Ring{maxSamples: n}
}

// Write appends samples, trimming the oldest past capacity.
func (r *Ring) Write(samples []int16) {
	r.mu.Lock()
	r.buf = append(r.buf, samples...)
	if len(r.buf) > r.maxSamples {
		over := len(r.buf) - r.maxSamples
		copy(r.buf, r.buf[over:])
		r.buf = r.buf[:r.maxSamples]
	}
	r.mu.Unlock()
}

// PopFrame removes and returns exactly n samples, or false when fewer than n
// are buffered. The returned slice is owned by the caller.
func (r *Ring) PopFrame(n int) ([]int16, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) < n {
		return nil, false
	}
	frame := make([]int16, n)
	copy(frame, r.buf[:n])
	copy(r.buf, r.buf[n:])
	r.buf = r.buf[:len(r.buf)-n]
	return frame, true
}

// Len reports the number of buffered samples.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Clear drops all buffered samples.
func (r *Ring) Clear() {
	r.mu.Lock()
	r.buf = r.buf[:0]
	r.mu.Unlock()
}
