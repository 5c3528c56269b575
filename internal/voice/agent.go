package voice

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"kirana/internal/util"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AgentEvent is one event pushed by the conversational agent: synthesized
// audio, a tool call to execute, or a barge-in interruption.
type AgentEvent struct {
	Type  AgentEventType
	Audio []byte
	Call  *IncomingToolCall
	Err   error
}

// AgentEventType enumerates the agent's event kinds
type AgentEventType string

const (
	AgentAudio       AgentEventType = "audio"
	AgentToolCall    AgentEventType = "toolCall"
	AgentInterrupted AgentEventType = "interrupted"
	AgentClosed      AgentEventType = "closed"
)

// IncomingToolCall carries a named call with raw arguments; each call must
// receive exactly one result keyed by its ID.
type IncomingToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// AgentStream is the duplex connection to the external conversational agent:
// microphone audio out, synthesized audio and tool calls in. The core only
// depends on this interface, not on the concrete transport.
type AgentStream interface {
	SendAudio(pcm []byte) error
	SendToolResult(callID, result string) error
	Events() <-chan AgentEvent
	Close() error
}

// agentFrame is the wire framing of the realtime agent connection. Audio is
// base64-framed PCM in both directions.
type agentFrame struct {
	Type   string          `json:"type"`
	Audio  string          `json:"audio,omitempty"`
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Result string          `json:"result,omitempty"`
}

// realtimeAgent is the WebSocket-backed AgentStream implementation.
type realtimeAgent struct {
	conn   *websocket.Conn
	events chan AgentEvent

	writeMu sync.Mutex
	once    sync.Once
	log     *zap.Logger
}

// DialAgent connects to the realtime conversational agent.
func DialAgent(url string) (AgentStream, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial agent: %w", err)
	}

	a := &realtimeAgent{
		conn:   conn,
		events: make(chan AgentEvent, 64),
		log:    util.GetLogger(),
	}
	go a.readLoop()
	return a, nil
}

func (a *realtimeAgent) SendAudio(pcm []byte) error {
	return a.write(agentFrame{
		Type:  "audio",
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

func (a *realtimeAgent) SendToolResult(callID, result string) error {
	return a.write(agentFrame{
		Type:   "toolResult",
		ID:     callID,
		Result: result,
	})
}

func (a *realtimeAgent) Events() <-chan AgentEvent {
	return a.events
}

func (a *realtimeAgent) Close() error {
	var err error
	a.once.Do(func() {
		err = a.conn.Close()
	})
	return err
}

func (a *realtimeAgent) write(frame agentFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.conn.WriteMessage(websocket.TextMessage, data)
}

func (a *realtimeAgent) readLoop() {
	defer close(a.events)

	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				a.log.Warn("agent stream read failed", zap.Error(err))
			}
			a.events <- AgentEvent{Type: AgentClosed, Err: err}
			return
		}

		var frame agentFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			a.log.Warn("agent stream sent malformed frame", zap.Error(err))
			continue
		}

		switch frame.Type {
		case "audio":
			pcm, err := base64.StdEncoding.DecodeString(frame.Audio)
			if err != nil {
				a.log.Warn("agent stream sent malformed audio", zap.Error(err))
				continue
			}
			a.events <- AgentEvent{Type: AgentAudio, Audio: pcm}

		case "toolCall":
			a.events <- AgentEvent{Type: AgentToolCall, Call: &IncomingToolCall{
				ID:   frame.ID,
				Name: frame.Name,
				Args: frame.Args,
			}}

		case "interrupted":
			a.events <- AgentEvent{Type: AgentInterrupted}

		default:
			a.log.Debug("ignoring agent frame", zap.String("type", frame.Type))
		}
	}
}
