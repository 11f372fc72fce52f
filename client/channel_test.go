package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mingle_server/models"
	"mingle_server/utils"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// fakeDeliveryServer accepts connections, acknowledges authentication, and
// records every frame each connection sends.
type fakeDeliveryServer struct {
	ts *httptest.Server

	mu     sync.Mutex
	conns  []*websocket.Conn
	frames []models.Frame

	// rejectAuth makes the server answer authenticate with an auth error
	// frame instead of auth_ok. silent makes it never answer at all.
	rejectAuth bool
	silent     bool
}

func newFakeDeliveryServer(t *testing.T) *fakeDeliveryServer {
	t.Helper()
	f := &fakeDeliveryServer{}
	f.ts = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fakeDeliveryServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	for {
		var frame models.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		f.mu.Lock()
		f.frames = append(f.frames, frame)
		silent, reject := f.silent, f.rejectAuth
		f.mu.Unlock()

		if frame.Type != models.FrameAuthenticate || silent {
			continue
		}
		if reject {
			conn.WriteJSON(models.Frame{Type: models.FrameError, Code: "auth", Error: "invalid token"})
			continue
		}
		conn.WriteJSON(models.Frame{Type: models.FrameAuthOK, UserID: "alice", ConnectionID: "conn-1"})
	}
}

func (f *fakeDeliveryServer) url() string {
	return "ws" + strings.TrimPrefix(f.ts.URL, "http")
}

func (f *fakeDeliveryServer) framesOfType(frameType string) []models.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Frame
	for _, frame := range f.frames {
		if frame.Type == frameType {
			out = append(out, frame)
		}
	}
	return out
}

func (f *fakeDeliveryServer) connCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeDeliveryServer) closeConn(i int) {
	f.mu.Lock()
	conn := f.conns[i]
	f.mu.Unlock()
	conn.Close()
}

func waitForState(t *testing.T, c *Channel, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("channel never reached %s (now %s)", want, c.State())
}

func TestConnectReachesReadyAfterAuthAck(t *testing.T) {
	f := newFakeDeliveryServer(t)

	var mu sync.Mutex
	var states []State
	c := NewChannel(Config{URL: f.url(), Token: "token"})
	c.OnStateChange = func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("expected Ready, got %s", c.State())
	}
	if c.UserID() != "alice" {
		t.Fatalf("expected authenticated user, got %q", c.UserID())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateConnecting, StateAuthenticating, StateReady}
	if len(states) != len(want) {
		t.Fatalf("state transitions %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("transition %d: want %s, got %s", i, want[i], states[i])
		}
	}
}

func TestConnectTimesOutWithoutAuthAck(t *testing.T) {
	f := newFakeDeliveryServer(t)
	f.silent = true

	c := NewChannel(Config{URL: f.url(), Token: "token", ReadyTimeout: 200 * time.Millisecond})
	defer c.Close()

	err := c.Connect(context.Background())
	if !errors.Is(err, utils.ErrTransport) {
		t.Fatalf("expected ErrTransport on missing ack, got %v", err)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("expected Disconnected after timeout, got %s", c.State())
	}
}

func TestConnectSurfacesAuthenticationFailure(t *testing.T) {
	f := newFakeDeliveryServer(t)
	f.rejectAuth = true

	c := NewChannel(Config{URL: f.url(), Token: "bad", ReadyTimeout: time.Second})
	defer c.Close()

	err := c.Connect(context.Background())
	if !errors.Is(err, utils.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestOperationsRejectedBeforeReady(t *testing.T) {
	c := NewChannel(Config{URL: "ws://127.0.0.1:0/ws", Token: "token"})
	defer c.Close()

	if err := c.SendMessage("alice#bob", "hi", models.KindText); !errors.Is(err, utils.ErrTransport) {
		t.Fatalf("SendMessage before Ready: expected ErrTransport, got %v", err)
	}
	if err := c.JoinRoom("alice#bob"); !errors.Is(err, utils.ErrTransport) {
		t.Fatalf("JoinRoom before Ready: expected ErrTransport, got %v", err)
	}
	if err := c.SendTyping("alice#bob", true); !errors.Is(err, utils.ErrTransport) {
		t.Fatalf("SendTyping before Ready: expected ErrTransport, got %v", err)
	}
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	f := newFakeDeliveryServer(t)

	c := NewChannel(Config{URL: f.url(), Token: "token"})
	defer c.Close()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	room := models.CanonicalPairKey("alice", "bob")
	if err := c.JoinRoom(room); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if err := c.JoinRoom(room); err != nil {
		t.Fatalf("second JoinRoom: %v", err)
	}

	// Give the server a beat to read everything we wrote.
	time.Sleep(100 * time.Millisecond)
	if got := len(f.framesOfType(models.FrameJoin)); got != 1 {
		t.Fatalf("double join must send one frame, got %d", got)
	}

	if err := c.LeaveRoom(room); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	if err := c.LeaveRoom(room); err != nil {
		t.Fatalf("second LeaveRoom: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := len(f.framesOfType(models.FrameLeave)); got != 1 {
		t.Fatalf("double leave must send one frame, got %d", got)
	}
}

func TestReconnectReauthenticatesAndClearsRooms(t *testing.T) {
	f := newFakeDeliveryServer(t)

	c := NewChannel(Config{
		URL:            f.url(),
		Token:          "token",
		MaxRetries:     3,
		InitialBackoff: 20 * time.Millisecond,
	})
	defer c.Close()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	room := models.CanonicalPairKey("alice", "bob")
	if err := c.JoinRoom(room); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	// Drop the transport out from under the client.
	f.closeConn(0)
	waitForState(t, c, StateReady)

	if f.connCount() < 2 {
		t.Fatalf("expected a second connection, got %d", f.connCount())
	}
	if got := len(f.framesOfType(models.FrameAuthenticate)); got < 2 {
		t.Fatalf("reconnect must re-authenticate, got %d authenticate frames", got)
	}

	// Membership did not survive: the consumer must join again, and the
	// join goes out on the wire instead of being swallowed as a duplicate.
	if err := c.JoinRoom(room); err != nil {
		t.Fatalf("JoinRoom after reconnect: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := len(f.framesOfType(models.FrameJoin)); got != 2 {
		t.Fatalf("expected 2 join frames across connections, got %d", got)
	}
}

func TestReconnectGivesUpAfterBoundedRetries(t *testing.T) {
	f := newFakeDeliveryServer(t)

	errs := make(chan error, 1)
	c := NewChannel(Config{
		URL:            f.url(),
		Token:          "token",
		ReadyTimeout:   500 * time.Millisecond,
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	})
	c.OnError = func(err error) {
		select {
		case errs <- err:
		default:
		}
	}
	defer c.Close()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Stop accepting new connections before dropping the live session so
	// every retry fails.
	f.ts.Listener.Close()
	f.closeConn(0)

	select {
	case err := <-errs:
		if !errors.Is(err, utils.ErrTransport) {
			t.Fatalf("expected ErrTransport after exhausted retries, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no error surfaced after retries were exhausted")
	}
	if c.State() != StateDisconnected {
		t.Fatalf("expected Disconnected, got %s", c.State())
	}
}

func TestCloseStopsReconnectAttempts(t *testing.T) {
	f := newFakeDeliveryServer(t)

	c := NewChannel(Config{
		URL:            f.url(),
		Token:          "token",
		MaxRetries:     5,
		InitialBackoff: 50 * time.Millisecond,
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	c.Close()
	before := f.connCount()
	time.Sleep(300 * time.Millisecond)
	if f.connCount() != before {
		t.Fatal("closed channel must not dial again")
	}
	if err := c.Connect(context.Background()); !errors.Is(err, utils.ErrTransport) {
		t.Fatalf("Connect after Close: expected ErrTransport, got %v", err)
	}
}
