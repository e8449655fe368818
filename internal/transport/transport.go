// Package transport decouples the interview session from its delivery
// mechanisms: JSON control events travel over the WebSocket side channel
// while synthesized audio goes out on the WebRTC track.
package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is what the session talks to. Send delivers a JSON event to the
// client; PlayAudio queues little-endian PCM for playback.
type Transport interface {
	Send(v any) error
	PlayAudio(pcm []byte, sampleRate int) error
	AddSilence(d time.Duration)
	ClearQueue()
	QueueSize() int
	QueueDuration() time.Duration
}

// AudioSink is the playback half, implemented by the paced WebRTC track.
type AudioSink interface {
	Enqueue(pcm []byte, sampleRate int) error
	EnqueueSilence(d time.Duration)
	Clear()
	QueueSize() int
	QueueDuration() time.Duration
}

// TextOnly sends JSON events over a WebSocket and discards audio. The write
// mutex serializes concurrent senders; gorilla allows only one writer at a
// time.
type TextOnly struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewTextOnly(conn *websocket.Conn) *TextOnly { return &TextOnly{conn: conn} }

func (t *TextOnly) Send(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(v)
}

func (t *TextOnly) PlayAudio([]byte, int) error  { return nil }
func (t *TextOnly) AddSilence(time.Duration)     {}
func (t *TextOnly) ClearQueue()                  {}
func (t *TextOnly) QueueSize() int               { return 0 }
func (t *TextOnly) QueueDuration() time.Duration { return 0 }

// AudioOnly plays audio through a sink and drops JSON events.
type AudioOnly struct {
	sink AudioSink
}

func NewAudioOnly(sink AudioSink) *AudioOnly { return &AudioOnly{sink: sink} }

func (a *AudioOnly) Send(any) error { return nil }

func (a *AudioOnly) PlayAudio(pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	return a.sink.Enqueue(pcm, sampleRate)
}

func (a *AudioOnly) AddSilence(d time.Duration)   { a.sink.EnqueueSilence(d) }
func (a *AudioOnly) ClearQueue()                  { a.sink.Clear() }
func (a *AudioOnly) QueueSize() int               { return a.sink.QueueSize() }
func (a *AudioOnly) QueueDuration() time.Duration { return a.sink.QueueDuration() }

// Composite routes events to one transport and audio to another.
type Composite struct {
	msg   Transport
	audio Transport
}

func NewComposite(msg, audio Transport) *Composite { return &Composite{msg: msg, audio: audio} }

func (c *Composite) Send(v any) error                     { return c.msg.Send(v) }
func (c *Composite) PlayAudio(pcm []byte, rate int) error { return c.audio.PlayAudio(pcm, rate) }
func (c *Composite) AddSilence(d time.Duration)           { c.audio.AddSilence(d) }
func (c *Composite) ClearQueue()                          { c.audio.ClearQueue() }
func (c *Composite) QueueSize() int                       { return c.audio.QueueSize() }
func (c *Composite) QueueDuration() time.Duration         { return c.audio.QueueDuration() }
