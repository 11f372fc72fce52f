package socket

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"mingle_server/models"
	"mingle_server/services"
	"mingle_server/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const defaultAuthTimeout = 10 * time.Second

// Server upgrades websocket connections and runs the delivery protocol:
// the first frame must authenticate; everything else is rejected until the
// auth_ok acknowledgment is on the wire.
type Server struct {
	Hub            *Hub
	Chat           *services.ChatService
	Presence       *services.PresenceService
	Auth           *utils.TokenIssuer
	AllowedOrigins []string
	AuthTimeout    time.Duration
}

func (s *Server) upgrader() websocket.Upgrader {
	allowed := make(map[string]bool, len(s.AllowedOrigins))
	for _, origin := range s.AllowedOrigins {
		allowed[origin] = true
	}
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			return allowed[r.Header.Get("Origin")]
		},
	}
}

// HandleWebSocket handles GET /ws
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade error: %v", err)
		return
	}

	session, err := s.authenticate(conn)
	if err != nil {
		log.Printf("❌ WebSocket authentication failed: %v", err)
		conn.WriteJSON(models.Frame{Type: models.FrameError, Code: "auth", Error: "authentication failed"})
		conn.Close()
		return
	}

	go session.writePump()
	session.enqueue(models.Frame{
		Type:         models.FrameAuthOK,
		UserID:       session.UserID,
		ConnectionID: session.ConnectionID,
	})

	s.Hub.Register(session)
	s.Presence.Connect(session.UserID, session.ConnectionID)
	defer func() {
		s.Presence.Disconnect(session.UserID, session.ConnectionID)
		s.Hub.Unregister(session)
		session.close()
	}()

	s.readLoop(session)
}

// authenticate reads the first frame, which must carry a valid bearer token
// within the auth timeout. No session state exists until this succeeds.
func (s *Server) authenticate(conn *websocket.Conn) (*Session, error) {
	timeout := s.AuthTimeout
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}
	conn.SetReadDeadline(time.Now().Add(timeout))

	var frame models.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return nil, err
	}
	if frame.Type != models.FrameAuthenticate {
		return nil, utils.ErrAuthentication
	}
	userID, err := s.Auth.Verify(frame.Token)
	if err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return newSession(userID, uuid.NewString(), conn), nil
}

func (s *Server) readLoop(session *Session) {
	for {
		var frame models.Frame
		if err := session.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ Session %s read error: %v", session.ConnectionID, err)
			}
			return
		}
		s.handleFrame(session, frame)
	}
}

func (s *Server) handleFrame(session *Session, frame models.Frame) {
	switch frame.Type {
	case models.FrameJoin:
		s.handleJoin(session, frame.PairID)
	case models.FrameLeave:
		s.Hub.Leave(session, frame.PairID)
	case models.FrameMessage:
		s.handleMessage(session, frame)
	case models.FrameTypingStart, models.FrameTypingStop:
		s.handleTyping(session, frame)
	case models.FrameAuthenticate:
		// Already authenticated; re-auth on a live connection is a no-op.
	default:
		session.enqueue(models.Frame{
			Type:  models.FrameError,
			Code:  "validation",
			Error: "unknown frame type " + frame.Type,
		})
	}
}

func (s *Server) handleJoin(session *Session, pairID string) {
	if !models.PairContains(pairID, session.UserID) {
		session.enqueue(models.Frame{
			Type:   models.FrameError,
			Code:   "validation",
			PairID: pairID,
			Error:  "not a member of this pair",
		})
		return
	}
	s.Hub.Join(session, pairID)
	session.enqueue(models.Frame{Type: models.FrameJoined, PairID: pairID})

	// Let the joiner know immediately whether the peer is online.
	if peer, ok := models.PairPeer(pairID, session.UserID); ok {
		online := s.Presence.IsOnline(peer)
		session.enqueue(models.Frame{Type: models.FramePresence, UserID: peer, Online: &online})
	}
}

func (s *Server) handleMessage(session *Session, frame models.Frame) {
	_, err := s.Chat.Append(context.Background(), frame.PairID, session.UserID, frame.Content, frame.Kind)
	if err != nil {
		session.enqueue(models.Frame{
			Type:   models.FrameError,
			Code:   errorCode(err),
			PairID: frame.PairID,
			Error:  err.Error(),
		})
	}
	// The room broadcast from ChatService is the delivery confirmation;
	// no separate ack frame is sent.
}

func (s *Server) handleTyping(session *Session, frame models.Frame) {
	if !s.Hub.InRoom(session, frame.PairID) {
		return
	}
	s.Hub.BroadcastToRoomExceptUser(frame.PairID, session.UserID, models.Frame{
		Type:   frame.Type,
		PairID: frame.PairID,
		UserID: session.UserID,
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, utils.ErrAuthentication):
		return "auth"
	case errors.Is(err, utils.ErrNotFound):
		return "not_found"
	case errors.Is(err, utils.ErrValidation):
		return "validation"
	case errors.Is(err, utils.ErrPersistence):
		return "persistence"
	default:
		return "internal"
	}
}
