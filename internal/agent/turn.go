package agent

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shoyeb45/ai-interview/internal/transport"
)

// TurnState is who holds the floor.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnAISpeaking
	TurnUserSpeaking
)

func (s TurnState) String() string {
	switch s {
	case TurnAISpeaking:
		return "ai_speaking"
	case TurnUserSpeaking:
		return "user_speaking"
	default:
		return "idle"
	}
}

// stopLag pads the scheduled end of an AI turn past the queued audio's
// nominal duration, covering pacing jitter and the trailing silence.
const stopLag = 300 * time.Millisecond

// TurnController sequences the floor between the candidate and the agent and
// keeps the ai_speaking side-channel events truthful. The agent has no
// explicit "finished playing" signal, so the end of an AI turn is scheduled
// from the playback queue's duration and cancelled if the user barges in.
type TurnController struct {
	tr  transport.Transport
	log *zap.Logger

	mu        sync.Mutex
	state     TurnState
	stopTimer *time.Timer
}

func NewTurnController(tr transport.Transport, log *zap.Logger) *TurnController {
	if log == nil {
		log = zap.NewNop()
	}
	return &TurnController{tr: tr, log: log}
}

func (c *TurnController) State() TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NotifyUserStarted handles barge-in: queued agent audio is physically
// discarded, any pending ai-stopped timer is cancelled, and if the agent was
// mid-turn the client is told it stopped.
func (c *TurnController) NotifyUserStarted() {
	c.mu.Lock()
	wasAI := c.state == TurnAISpeaking
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
	c.state = TurnUserSpeaking
	c.mu.Unlock()

	c.tr.ClearQueue()
	if wasAI {
		c.log.Debug("barge-in: user interrupted agent")
		c.send(transport.NewAISpeaking(false))
	}
	c.send(transport.NewUserSpeaking(true))
}

// NotifyUserStopped marks the end of the user's utterance.
func (c *TurnController) NotifyUserStopped() {
	c.mu.Lock()
	if c.state == TurnUserSpeaking {
		c.state = TurnIdle
	}
	c.mu.Unlock()
	c.send(transport.NewUserSpeaking(false))
}

// BeginAITurn announces the agent holds the floor. Call only after synthesis
// succeeded and audio is about to be queued.
func (c *TurnController) BeginAITurn() {
	c.mu.Lock()
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
	c.state = TurnAISpeaking
	c.mu.Unlock()
	c.send(transport.NewAISpeaking(true))
}

// EndAITurn schedules the ai-stopped notification for when the queued audio
// will have played out. A barge-in before then cancels it.
func (c *TurnController) EndAITurn(queued time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != TurnAISpeaking {
		return
	}
	if c.stopTimer != nil {
		c.stopTimer.Stop()
	}
	c.stopTimer = time.AfterFunc(queued+stopLag, func() {
		c.mu.Lock()
		fire := c.state == TurnAISpeaking
		if fire {
			c.state = TurnIdle
		}
		c.stopTimer = nil
		c.mu.Unlock()
		if fire {
			c.send(transport.NewAISpeaking(false))
		}
	})
}

// Close cancels any scheduled notification.
func (c *TurnController) Close() {
	c.mu.Lock()
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
	c.mu.Unlock()
}

func (c *TurnController) send(v any) {
	if err := c.tr.Send(v); err != nil {
		c.log.Debug("turn event send failed", zap.Error(err))
	}
}
