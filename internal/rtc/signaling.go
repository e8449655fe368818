package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/Shoyeb45/ai-interview/internal/agent"
	"github.com/Shoyeb45/ai-interview/internal/config"
	"github.com/Shoyeb45/ai-interview/internal/events"
	"github.com/Shoyeb45/ai-interview/internal/flow"
	"github.com/Shoyeb45/ai-interview/internal/store"
	"github.com/Shoyeb45/ai-interview/internal/transport"
)

// signalMessage is the JSON frame format on the signaling side channel.
// Inbound types: "offer", "ice", "proctoring_event", "bye".
type signalMessage struct {
	Type string `json:"type"`
	SDP  string `json:"sdp,omitempty"`

	Candidate *candidatePayload `json:"candidate,omitempty"`

	// proctoring_event
	EventType string `json:"eventType,omitempty"`
}

type candidatePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// The interview frontend runs on a different origin.
		return true
	},
}

const (
	connectTimeout    = 10 * time.Second
	audioTrackTimeout = 5 * time.Second
	settleDelay       = 500 * time.Millisecond
)

// Handler owns the process-wide collaborators and serves one interview per
// WebSocket connection.
type Handler struct {
	Sessions    *store.Sessions
	Events      *events.Emitter
	Transcriber agent.Transcriber
	Responder   agent.Responder
	Synth       agent.Synthesizer

	ICEServersJSON string
	AuthToken      string
	Audio          config.Audio
	Log            *zap.Logger
}

// ServeWebSocket upgrades the request, validates token and session, runs
// offer/answer + trickle ICE signaling, and drives the interview until the
// client hangs up or the interview completes.
func (h *Handler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	log := h.Log
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	token := r.URL.Query().Get("token")
	sessionID := r.URL.Query().Get("session_id")
	if token == "" || sessionID == "" {
		closeWith(conn, transport.CloseMissingToken, "token and session_id required")
		return
	}
	if h.AuthToken != "" && token != h.AuthToken {
		closeWith(conn, transport.CloseForbidden, "invalid token")
		return
	}

	fm, err := flow.Load(r.Context(), h.Sessions, sessionID)
	if err != nil {
		if errors.Is(err, flow.ErrSessionNotFound) {
			closeWith(conn, transport.CloseSessionExpired, "session not found or expired")
		} else {
			closeWith(conn, websocket.CloseInternalServerErr, "session lookup failed")
		}
		return
	}
	log = log.With(zap.String("session_id", sessionID), zap.String("conn_id", uuid.NewString()))

	pc, outTrack, err := newPeerConnection(h.ICEServersJSON)
	if err != nil {
		closeWith(conn, websocket.CloseInternalServerErr, "peer setup failed")
		return
	}
	defer func() { _ = pc.Close() }()

	playback, err := NewPlaybackTrack(outTrack, log)
	if err != nil {
		closeWith(conn, websocket.CloseInternalServerErr, "audio pipeline setup failed")
		return
	}
	defer playback.Close()

	textTr := transport.NewTextOnly(conn)
	tr := transport.NewComposite(textTr, transport.NewAudioOnly(playback))

	agentCfg := agent.DefaultConfig()
	agentCfg.InputRate = h.Audio.InputRate
	agentCfg.MinUtterance = time.Duration(h.Audio.MinUtteranceMs) * time.Millisecond

	sess := agent.NewSession(
		h.Transcriber, h.Responder, h.Synth,
		tr, fm, h.Events.ForSession(fm.Ref()),
		agentCfg, log,
	)
	defer sess.Close("connection_closed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go closeOnDone(ctx, conn)

	var connReadyOnce, audioReadyOnce sync.Once
	connReady := make(chan struct{})
	audioReady := make(chan struct{})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		_ = tr.Send(signalMessage{Type: "ice", Candidate: &candidatePayload{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		}})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Info("peer connection state", zap.String("state", state.String()))
		switch state {
		case webrtc.PeerConnectionStateConnected:
			connReadyOnce.Do(func() { close(connReady) })
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			cancel()
		}
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		switch remote.Kind() {
		case webrtc.RTPCodecTypeAudio:
			log.Info("remote audio track", zap.String("codec", remote.Codec().MimeType))
			audioReadyOnce.Do(func() { close(audioReady) })
			go h.pumpAudio(ctx, remote, sess, log)
		case webrtc.RTPCodecTypeVideo:
			log.Info("remote video track", zap.String("codec", remote.Codec().MimeType))
			go watchVideo(remote, func(s Snapshot) {
				sess.OnSnapshot(s.FacePresent, s.MovementLevel, s.EngagementScore)
			}, log)
		}
	})

	// The opening turn waits for both the peer connection and the audio
	// track so the candidate hears it from the first sample.
	go func() {
		select {
		case <-connReady:
		case <-time.After(connectTimeout):
			log.Warn("peer connection never established")
			_ = tr.Send(transport.NewError("connect_timeout", "peer connection was not established in time"))
			cancel()
			return
		case <-ctx.Done():
			return
		}
		select {
		case <-audioReady:
		case <-time.After(audioTrackTimeout):
			log.Warn("audio track never arrived")
			_ = tr.Send(transport.NewError("audio_timeout", "no audio track received in time"))
			cancel()
			return
		case <-ctx.Done():
			return
		}
		time.Sleep(settleDelay)
		sess.Start(ctx)
	}()

	h.readLoop(ctx, conn, pc, sess, tr, log)
}

// readLoop is the signaling main loop; it returns when the client says bye,
// the connection drops, or proctoring voids the interview.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, pc *webrtc.PeerConnection, sess *agent.Session, tr transport.Transport, log *zap.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var m signalMessage
		if json.Unmarshal(data, &m) != nil {
			log.Warn("invalid signaling frame")
			continue
		}

		switch strings.ToLower(m.Type) {
		case "offer":
			if m.SDP == "" {
				continue
			}
			answer, err := h.negotiate(pc, m.SDP)
			if err != nil {
				log.Error("offer negotiation failed", zap.Error(err))
				_ = tr.Send(transport.NewError("negotiation_failed", err.Error()))
				continue
			}
			_ = tr.Send(signalMessage{Type: "answer", SDP: answer})

		case "ice":
			if m.Candidate == nil || m.Candidate.Candidate == "" {
				continue
			}
			_ = pc.AddICECandidate(webrtc.ICECandidateInit{
				Candidate:     m.Candidate.Candidate,
				SDPMid:        m.Candidate.SDPMid,
				SDPMLineIndex: m.Candidate.SDPMLineIndex,
			})

		case "proctoring_event":
			if m.EventType != "tab_change" {
				continue
			}
			if sess.OnTabChange() {
				return
			}

		case "bye":
			return
		}
	}
}

func (h *Handler) negotiate(pc *webrtc.PeerConnection, offerSDP string) (string, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	local := pc.LocalDescription()
	if local == nil {
		return "", errors.New("no local description")
	}
	return local.SDP, nil
}

// closeOnDone tears the socket down when the connection context ends, so the
// read loop never lingers in ReadMessage after a timeout or peer failure.
func closeOnDone(ctx context.Context, conn *websocket.Conn) {
	<-ctx.Done()
	_ = conn.Close()
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteJSON(transport.NewError("connection_rejected", reason))
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
