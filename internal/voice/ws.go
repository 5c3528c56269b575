package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"kirana/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// clientFrame is the framing between the shopkeeper's browser and this
// server. Inbound: 16kHz mono PCM microphone audio. Outbound: 24kHz mono PCM
// synthesized audio with its scheduled start, tool results, and interrupt
// signals.
type clientFrame struct {
	Type    string `json:"type"`
	Audio   string `json:"audio,omitempty"`
	PlayAt  int64  `json:"playAtMs,omitempty"`
	CallID  string `json:"callId,omitempty"`
	Result  string `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
}

// AgentDialer opens the upstream agent connection for a new session.
type AgentDialer func() (AgentStream, error)

// Server owns the client-facing voice WebSocket endpoint.
type Server struct {
	interpreter *Interpreter
	dial        AgentDialer
	sampleRate  int
	log         *zap.Logger
}

// NewServer creates the voice WebSocket server. sampleRate is the synthesized
// audio rate used for playback scheduling.
func NewServer(interpreter *Interpreter, dial AgentDialer, sampleRate int) *Server {
	return &Server{
		interpreter: interpreter,
		dial:        dial,
		sampleRate:  sampleRate,
		log:         util.GetLogger(),
	}
}

// HandleWS upgrades the connection and runs one voice session until either
// side closes. Teardown is unconditional: the agent stream, the client
// connection and the pending slot are all released on every exit path.
func (s *Server) HandleWS(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("voice ws upgrade failed", zap.Error(err))
		return
	}

	agent, err := s.dial()
	if err != nil {
		s.log.Error("voice agent dial failed", zap.Error(err))
		s.writeFrame(conn, clientFrame{Type: "error", Message: "voice service is unavailable right now"})
		conn.Close()
		return
	}

	sess := NewSession(userID, s.sampleRate)
	util.VoiceSessionsActive.Inc()
	s.log.Info("voice session opened",
		zap.String("session", sess.ID), zap.String("user", userID))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer func() {
		cancel()
		agent.Close()
		conn.Close()
		sess.Reset()
		util.VoiceSessionsActive.Dec()
		s.log.Info("voice session closed", zap.String("session", sess.ID))
	}()

	// Client reads run in the background; agent events drive this goroutine.
	go s.readClient(ctx, cancel, conn, agent, sess)
	s.runAgentEvents(ctx, conn, agent, sess)
}

// readClient relays microphone audio from the client to the agent.
func (s *Server) readClient(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, agent AgentStream, sess *Session) {
	defer cancel()

	conn.SetReadLimit(512 * 1024) // 512KB
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("voice client read failed",
					zap.String("session", sess.ID), zap.Error(err))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Warn("voice client sent malformed frame",
				zap.String("session", sess.ID), zap.Error(err))
			continue
		}

		if frame.Type != "audio" {
			continue
		}
		pcm, err := base64.StdEncoding.DecodeString(frame.Audio)
		if err != nil {
			s.log.Warn("voice client sent malformed audio",
				zap.String("session", sess.ID), zap.Error(err))
			continue
		}
		if err := agent.SendAudio(pcm); err != nil {
			s.log.Warn("audio relay to agent failed",
				zap.String("session", sess.ID), zap.Error(err))
			return
		}
	}
}

// runAgentEvents consumes the agent stream: schedules synthesized audio onto
// the playback cursor, executes tool calls through the interpreter and
// answers each with exactly one result, and flushes playback on barge-in.
func (s *Server) runAgentEvents(ctx context.Context, conn *websocket.Conn, agent AgentStream, sess *Session) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-agent.Events():
			if !ok {
				return
			}

			switch ev.Type {
			case AgentAudio:
				start := sess.Playout.Schedule(ev.Audio, time.Now())
				s.writeFrame(conn, clientFrame{
					Type:   "audio",
					Audio:  base64.StdEncoding.EncodeToString(ev.Audio),
					PlayAt: start.UnixMilli(),
				})

			case AgentToolCall:
				result := s.executeToolCall(ctx, sess, ev.Call)
				if err := agent.SendToolResult(ev.Call.ID, result); err != nil {
					s.log.Warn("tool result delivery failed",
						zap.String("session", sess.ID), zap.Error(err))
				}
				s.writeFrame(conn, clientFrame{
					Type:   "toolResult",
					CallID: ev.Call.ID,
					Result: result,
				})

			case AgentInterrupted:
				dropped := sess.Playout.Flush()
				s.log.Debug("barge-in flush",
					zap.String("session", sess.ID), zap.Int("dropped", dropped))
				s.writeFrame(conn, clientFrame{Type: "interrupted"})

			case AgentClosed:
				return
			}
		}
	}
}

func (s *Server) executeToolCall(ctx context.Context, sess *Session, call *IncomingToolCall) string {
	decoded, err := DecodeToolCall(call.Name, call.Args)
	if err != nil {
		s.log.Warn("tool call rejected at boundary",
			zap.String("session", sess.ID),
			zap.String("tool", call.Name),
			zap.Error(err))
		util.ToolCallsTotal.WithLabelValues(call.Name, "invalid").Inc()
		return "Sorry, I didn't catch that. Could you say it again?"
	}
	return s.interpreter.Handle(ctx, sess, decoded)
}

func (s *Server) writeFrame(conn *websocket.Conn, frame clientFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Debug("voice client write failed", zap.Error(err))
	}
}
