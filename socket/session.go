package socket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"mingle_server/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendQueueDepth = 64
)

// Session is one live authenticated connection. A user may hold several
// concurrent sessions (multi-device); room membership is tracked per
// session, not per user.
type Session struct {
	UserID       string
	ConnectionID string

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newSession(userID, connectionID string, conn *websocket.Conn) *Session {
	return &Session{
		UserID:       userID,
		ConnectionID: connectionID,
		conn:         conn,
		send:         make(chan []byte, sendQueueDepth),
		done:         make(chan struct{}),
	}
}

// enqueue serializes a frame onto the session's send queue. A session that
// cannot keep up loses frames rather than blocking the broadcaster.
func (s *Session) enqueue(frame models.Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("❌ Failed to marshal %s frame: %v", frame.Type, err)
		return
	}
	select {
	case s.send <- payload:
	case <-s.done:
	default:
		log.Printf("⚠️ Dropping %s frame for slow session %s", frame.Type, s.ConnectionID)
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. One writer goroutine per connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
