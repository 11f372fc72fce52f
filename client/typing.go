package client

import (
	"sync"
	"time"
)

const (
	// typingIdle is how long after the last keystroke a stop signal fires.
	typingIdle = time.Second
	// typingExpiry bounds how long a peer stays "typing" if the stop
	// signal is lost; the receiving side self-expires.
	typingExpiry = 5 * time.Second
)

// TypingReporter emits typing signals for one pair: start on the first
// keystroke after idle, stop on empty input or after the debounce timer
// fires with no further keystrokes.
type TypingReporter struct {
	mu      sync.Mutex
	channel *Channel
	pairID  string
	idle    time.Duration
	timer   *time.Timer
	active  bool
}

func NewTypingReporter(channel *Channel, pairID string) *TypingReporter {
	return &TypingReporter{channel: channel, pairID: pairID, idle: typingIdle}
}

// Keystroke reports the current compose text after a keystroke.
func (r *TypingReporter) Keystroke(text string) {
	if text == "" {
		r.Stop()
		return
	}

	r.mu.Lock()
	if !r.active {
		r.active = true
		// Best effort; a lost start just means no indicator shows.
		go r.channel.SendTyping(r.pairID, true)
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.idle, r.Stop)
	r.mu.Unlock()
}

// Stop emits a stop signal if typing was active.
func (r *TypingReporter) Stop() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()

	go r.channel.SendTyping(r.pairID, false)
}

// TypingWatcher tracks which peers are typing. A missed stop signal
// self-expires after a bounded timeout, so the flag can never stick.
type TypingWatcher struct {
	mu     sync.Mutex
	expiry time.Duration
	timers map[string]*time.Timer

	// OnChange fires on every flag transition.
	OnChange func(pairID, userID string, typing bool)
}

func NewTypingWatcher(onChange func(pairID, userID string, typing bool)) *TypingWatcher {
	return &TypingWatcher{
		expiry:   typingExpiry,
		timers:   make(map[string]*time.Timer),
		OnChange: onChange,
	}
}

func typingKey(pairID, userID string) string {
	return pairID + "|" + userID
}

// Start flags the peer as typing and (re)arms the self-expiry timer.
func (w *TypingWatcher) Start(pairID, userID string) {
	key := typingKey(pairID, userID)
	w.mu.Lock()
	timer, already := w.timers[key]
	if already {
		timer.Stop()
	}
	w.timers[key] = time.AfterFunc(w.expiry, func() { w.Stop(pairID, userID) })
	cb := w.OnChange
	w.mu.Unlock()

	if !already && cb != nil {
		cb(pairID, userID, true)
	}
}

// Stop clears the typing flag. Idempotent.
func (w *TypingWatcher) Stop(pairID, userID string) {
	key := typingKey(pairID, userID)
	w.mu.Lock()
	timer, ok := w.timers[key]
	if ok {
		timer.Stop()
		delete(w.timers, key)
	}
	cb := w.OnChange
	w.mu.Unlock()

	if ok && cb != nil {
		cb(pairID, userID, false)
	}
}

// IsTyping reports whether the peer is currently flagged as typing.
func (w *TypingWatcher) IsTyping(pairID, userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.timers[typingKey(pairID, userID)]
	return ok
}
