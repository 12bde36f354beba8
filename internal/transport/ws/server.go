// Package ws bridges a host client to the engine over one WebSocket
// connection: inputs in, probe/mark/buffer/roster traffic out.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"questwatch.gg/internal/protocol"
	"questwatch.gg/internal/sim/engine"
	"questwatch.gg/internal/sim/engine/roster"
)

type Server struct {
	engine *engine.Engine
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(e *engine.Engine, logger *log.Logger) *Server {
	return &Server{
		engine: e,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}
		defer s.engine.Detach(sessionID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Control RESULTs go through here so only the writer goroutine ever
		// touches the connection after the handshake.
		replies := make(chan []byte, 64)

		// Writer goroutine.
		go func() {
			write := func(b []byte) bool {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return false
				}
				return true
			}
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					if !write(b) {
						return
					}
				case b := <-replies:
					if !write(b) {
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			s.dispatch(replies, msg)
		}
	}
}

func (s *Server) dispatch(replies chan<- []byte, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeQuests:
		var m protocol.QuestsMsg
		if json.Unmarshal(msg, &m) != nil {
			return
		}
		objs := make([]roster.Objective, 0, len(m.Objectives))
		for _, o := range m.Objectives {
			objs = append(objs, roster.Objective{
				Name:          o.Name,
				QuestComplete: o.QuestComplete,
				Finisher:      o.Finisher,
				ObjectiveType: o.ObjectiveType,
				Collected:     o.Collected,
				Needed:        o.Needed,
				Description:   o.Description,
			})
		}
		s.engine.SubmitQuests(objs)

	case protocol.TypeSignal:
		var m protocol.SignalMsg
		if json.Unmarshal(msg, &m) != nil {
			return
		}
		s.engine.SubmitSignal(m)

	case protocol.TypeSelect:
		var m protocol.SelectMsg
		if json.Unmarshal(msg, &m) != nil {
			return
		}
		s.engine.SubmitSelect(m.Entity)

	case protocol.TypeHover:
		var m protocol.HoverMsg
		if json.Unmarshal(msg, &m) != nil {
			return
		}
		s.engine.SubmitHover(m.Entity)

	case protocol.TypeGroup:
		var m protocol.GroupMsg
		if json.Unmarshal(msg, &m) != nil {
			return
		}
		s.engine.SubmitGroup(m)

	case protocol.TypeControl:
		var m protocol.ControlMsg
		if json.Unmarshal(msg, &m) != nil {
			return
		}
		res := s.engine.Control(m)
		if b, err := json.Marshal(res); err == nil {
			select {
			case replies <- b:
			default:
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out <-chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	if hello.AddonID == "" {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "missing addon_id"), time.Now().Add(time.Second))
		return "", nil
	}

	sessionID = "S_" + uuid.NewString()
	ch, params := s.engine.Attach(sessionID)

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		ResumeToken:     "resume_" + uuid.NewString(),
		EngineParams:    params,
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.engine.Detach(sessionID)
		return "", nil
	}
	s.log.Printf("session %s joined host=%s addon=%s", sessionID, hello.HostName, hello.AddonID)
	return sessionID, ch
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
