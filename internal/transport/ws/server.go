package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"planetgen/internal/editor"
	"planetgen/internal/protocol"
)

// Editor is the subset of the editor service a connection drives.
type Editor interface {
	Edit(ctx context.Context, ops []protocol.EditOp) (editor.RegenEntry, error)
	Save(ctx context.Context, name string) (string, error)
	State(ctx context.Context) (protocol.PlanetState, editor.RegenEntry, error)
}

type Server struct {
	editor Editor
	log    *log.Logger

	upgrader websocket.Upgrader

	nextID   atomic.Uint64
	mu       sync.Mutex
	sessions map[string]chan []byte
}

func NewServer(e Editor, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}
	s := &Server{
		editor: e,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[string]chan []byte{},
	}
	return s
}

// Sessions returns the number of connected editors.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sessionID, out := s.handshake(ctx, conn)
		if sessionID == "" {
			return
		}
		defer s.detach(sessionID)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.dispatch(ctx, sessionID, out, msg)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sessionID string, out chan []byte, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.send(out, protocol.NewError("", protocol.ErrProtoBadRequest, "malformed json"))
		return
	}
	if base.ProtocolVersion != protocol.Version {
		s.send(out, protocol.NewError("", protocol.ErrProtoBadRequest, "bad protocol_version"))
		return
	}

	switch base.Type {
	case protocol.TypeEdit:
		var m protocol.EditMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.send(out, protocol.NewError("", protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		regen, err := s.editor.Edit(ctx, m.Ops)
		if err != nil {
			s.send(out, errorMsg(m.ID, err))
			return
		}
		s.send(out, editor.RegenMsg(m.ID, regen))
		s.broadcast(sessionID, editor.RegenMsg("", regen))

	case protocol.TypeSave:
		var m protocol.SaveMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.send(out, protocol.NewError("", protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		path, err := s.editor.Save(ctx, m.Name)
		if err != nil {
			s.send(out, errorMsg(m.ID, err))
			return
		}
		s.send(out, protocol.SavedMsg{Type: protocol.TypeSaved, ProtocolVersion: protocol.Version, ID: m.ID, Path: path})

	default:
		s.send(out, protocol.NewError("", protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type)))
	}
}

func errorMsg(id string, err error) protocol.ErrorMsg {
	var ee *editor.EditError
	if errors.As(err, &ee) {
		return protocol.NewError(id, ee.Code, ee.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return protocol.NewError(id, protocol.ErrBusy, err.Error())
	}
	return protocol.NewError(id, protocol.ErrInternal, err.Error())
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (sessionID string, out chan []byte) {
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
	if hello.ClientName == "" {
		hello.ClientName = "editor"
	}

	state, regen, err := s.editor.State(ctx)
	if err != nil {
		return "", nil
	}
	sessionID = fmt.Sprintf("S%d", s.nextID.Add(1))
	rm := editor.RegenMsg("", regen)
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		State:           state,
		Regen:           &rm,
	}
	// Register before WELCOME so no broadcast can slip between the two. The
	// writer goroutine starts after this returns, keeping WELCOME first.
	out = make(chan []byte, 16)
	s.mu.Lock()
	s.sessions[sessionID] = out
	s.mu.Unlock()
	if err := writeJSON(conn, welcome); err != nil {
		s.detach(sessionID)
		return "", nil
	}
	s.log.Printf("session %s attached (%s)", sessionID, hello.ClientName)
	return sessionID, out
}

func (s *Server) detach(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	s.log.Printf("session %s detached", sessionID)
}

func (s *Server) send(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("marshal: %v", err)
		return
	}
	select {
	case out <- b:
	default:
		// Slow client; the next REGEN supersedes this one.
	}
}

// broadcast notifies every other session that the planet changed.
func (s *Server) broadcast(from string, v any) {
	s.mu.Lock()
	targets := make([]chan []byte, 0, len(s.sessions))
	for id, ch := range s.sessions {
		if id != from {
			targets = append(targets, ch)
		}
	}
	s.mu.Unlock()
	for _, ch := range targets {
		s.send(ch, v)
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
