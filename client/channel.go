package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"mingle_server/models"
	"mingle_server/utils"

	"github.com/gorilla/websocket"
)

// State of the delivery channel. The channel is Ready only after the server
// acknowledged authentication, never on raw transport connect.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	default:
		return "disconnected"
	}
}

const (
	defaultReadyTimeout   = 10 * time.Second
	defaultMaxRetries     = 5
	defaultInitialBackoff = time.Second
	channelWriteWait      = 10 * time.Second
)

// Config for a delivery channel.
type Config struct {
	URL            string // websocket endpoint, e.g. ws://host/ws
	Token          string // bearer credential from the identity collaborator
	ReadyTimeout   time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	Dialer         *websocket.Dialer
}

func (c *Config) norm() {
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = defaultReadyTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
}

// Channel is one logical delivery session. It owns its own state; nothing is
// shared between channels, so concurrent chats cannot leak state into each
// other. All errors after Connect surface through OnError, never panics.
type Channel struct {
	cfg Config

	mu           sync.Mutex
	state        State
	conn         *websocket.Conn
	rooms        map[string]struct{}
	closed       bool
	userID       string
	connectionID string

	writeMu sync.Mutex

	// Callbacks. Set before Connect; invoked from the read goroutine.
	OnMessage     func(message models.Message)
	OnMatch       func(match models.MatchSnapshot)
	OnTypingStart func(pairID, userID string)
	OnTypingStop  func(pairID, userID string)
	OnPresence    func(userID string, online bool)
	OnStateChange func(state State)
	OnError       func(err error)
	// OnSendError fires for server error frames tied to a specific pair,
	// letting the chat client roll back the provisional message.
	OnSendError func(pairID string, err error)
}

// NewChannel creates a disconnected channel.
func NewChannel(cfg Config) *Channel {
	cfg.norm()
	return &Channel{
		cfg:   cfg,
		state: StateDisconnected,
		rooms: make(map[string]struct{}),
	}
}

// State returns the current channel state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the authenticated user id, empty until the first auth_ok.
func (c *Channel) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Connect dials and authenticates, blocking until Ready or the bounded
// ready wait elapses. A timeout or transport failure returns ErrTransport
// so the caller can fall back to the stateless channel.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%w: channel closed", utils.ErrTransport)
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.dialAndAuthenticate(ctx); err != nil {
		return err
	}
	go c.readLoop()
	return nil
}

// dialAndAuthenticate runs one connect attempt through the full state
// machine: Connecting → Authenticating → Ready.
func (c *Channel) dialAndAuthenticate(ctx context.Context) error {
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()
	conn, _, err := c.cfg.Dialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("%w: dial %s: %v", utils.ErrTransport, c.cfg.URL, err)
	}

	// Authenticate immediately on transport connect.
	c.setState(StateAuthenticating)
	conn.SetWriteDeadline(time.Now().Add(channelWriteWait))
	if err := conn.WriteJSON(models.Frame{Type: models.FrameAuthenticate, Token: c.cfg.Token}); err != nil {
		conn.Close()
		c.setState(StateDisconnected)
		return fmt.Errorf("%w: send authenticate: %v", utils.ErrTransport, err)
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.ReadyTimeout))
	var frame models.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		conn.Close()
		c.setState(StateDisconnected)
		return fmt.Errorf("%w: authentication ack not received: %v", utils.ErrTransport, err)
	}
	if frame.Type != models.FrameAuthOK {
		conn.Close()
		c.setState(StateDisconnected)
		return utils.ErrAuthentication
	}
	conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	c.conn = conn
	c.userID = frame.UserID
	c.connectionID = frame.ConnectionID
	// Reconnection never preserves room membership; consumers re-join.
	c.rooms = make(map[string]struct{})
	c.mu.Unlock()

	c.setState(StateReady)
	return nil
}

func (c *Channel) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}

		var frame models.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if !c.reconnect() {
				return
			}
			continue
		}
		c.dispatch(frame)
	}
}

// reconnect runs the bounded retry loop. Room membership is dropped; every
// reconnect re-authenticates from scratch.
func (c *Channel) reconnect() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.rooms = make(map[string]struct{})
	c.mu.Unlock()
	c.setState(StateDisconnected)

	backoff := c.cfg.InitialBackoff
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		time.Sleep(backoff)
		backoff *= 2

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return false
		}
		c.mu.Unlock()

		if err := c.dialAndAuthenticate(context.Background()); err != nil {
			log.Printf("channel reconnect attempt %d/%d failed: %v", attempt, c.cfg.MaxRetries, err)
			if errors.Is(err, utils.ErrAuthentication) {
				c.emitError(err)
				return false
			}
			continue
		}
		return true
	}
	c.emitError(fmt.Errorf("%w: reconnect attempts exhausted", utils.ErrTransport))
	return false
}

func (c *Channel) dispatch(frame models.Frame) {
	switch frame.Type {
	case models.FrameMessage:
		if c.OnMessage != nil && frame.Message != nil {
			c.OnMessage(*frame.Message)
		}
	case models.FrameMatch:
		if c.OnMatch != nil && frame.Match != nil {
			c.OnMatch(*frame.Match)
		}
	case models.FrameTypingStart:
		if c.OnTypingStart != nil {
			c.OnTypingStart(frame.PairID, frame.UserID)
		}
	case models.FrameTypingStop:
		if c.OnTypingStop != nil {
			c.OnTypingStop(frame.PairID, frame.UserID)
		}
	case models.FramePresence:
		if c.OnPresence != nil && frame.Online != nil {
			c.OnPresence(frame.UserID, *frame.Online)
		}
	case models.FrameJoined:
		// Join acknowledgment; membership was already tracked on send.
	case models.FrameError:
		err := frameError(frame)
		if frame.PairID != "" && c.OnSendError != nil {
			c.OnSendError(frame.PairID, err)
		}
		c.emitError(err)
	}
}

// JoinRoom subscribes this connection to a pair's room. Idempotent; calling
// it twice yields the same membership state as calling it once.
func (c *Channel) JoinRoom(pairID string) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return fmt.Errorf("%w: channel not ready", utils.ErrTransport)
	}
	if _, joined := c.rooms[pairID]; joined {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.writeFrame(models.Frame{Type: models.FrameJoin, PairID: pairID}); err != nil {
		return err
	}
	c.mu.Lock()
	c.rooms[pairID] = struct{}{}
	c.mu.Unlock()
	return nil
}

// LeaveRoom unsubscribes from a pair's room. Idempotent.
func (c *Channel) LeaveRoom(pairID string) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return fmt.Errorf("%w: channel not ready", utils.ErrTransport)
	}
	if _, joined := c.rooms[pairID]; !joined {
		c.mu.Unlock()
		return nil
	}
	delete(c.rooms, pairID)
	c.mu.Unlock()

	return c.writeFrame(models.Frame{Type: models.FrameLeave, PairID: pairID})
}

// SendMessage sends a chat message over the persistent channel. ErrTransport
// means the caller should use the stateless fallback instead.
func (c *Channel) SendMessage(pairID, content, kind string) error {
	if c.State() != StateReady {
		return fmt.Errorf("%w: channel not ready", utils.ErrTransport)
	}
	return c.writeFrame(models.Frame{
		Type:    models.FrameMessage,
		PairID:  pairID,
		Content: content,
		Kind:    kind,
	})
}

// SendTyping signals typing state to the pair's room. Best effort; typing is
// never persisted.
func (c *Channel) SendTyping(pairID string, typing bool) error {
	if c.State() != StateReady {
		return fmt.Errorf("%w: channel not ready", utils.ErrTransport)
	}
	frameType := models.FrameTypingStop
	if typing {
		frameType = models.FrameTypingStart
	}
	return c.writeFrame(models.Frame{Type: frameType, PairID: pairID})
}

// Close tears down the channel permanently. In-flight reads stop; no
// reconnect is attempted.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.setState(StateDisconnected)
}

func (c *Channel) writeFrame(frame models.Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: no connection", utils.ErrTransport)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(channelWriteWait))
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("%w: write %s frame: %v", utils.ErrTransport, frame.Type, err)
	}
	return nil
}

func (c *Channel) setState(state State) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	cb := c.OnStateChange
	c.mu.Unlock()
	if cb != nil {
		cb(state)
	}
}

func (c *Channel) emitError(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

func frameError(frame models.Frame) error {
	var base error
	switch frame.Code {
	case "auth":
		base = utils.ErrAuthentication
	case "not_found":
		base = utils.ErrNotFound
	case "validation":
		base = utils.ErrValidation
	case "persistence":
		base = utils.ErrPersistence
	default:
		base = utils.ErrTransport
	}
	if frame.Error == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, frame.Error)
}
