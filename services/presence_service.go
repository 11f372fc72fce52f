package services

import (
	"log"
	"sync"
)

// PresenceService tracks per-user live connections. Presence is a
// reference-counted set of connection ids, never a boolean, so closing one
// of several open sessions does not report the user offline.
type PresenceService struct {
	mu          sync.Mutex
	connections map[string]map[string]struct{}
	subscribers []func(userID string, online bool)
}

func NewPresenceService() *PresenceService {
	return &PresenceService{connections: make(map[string]map[string]struct{})}
}

// Subscribe registers a callback fired on every offline→online and
// online→offline transition. Intermediate connection churn is silent.
func (p *PresenceService) Subscribe(cb func(userID string, online bool)) {
	p.mu.Lock()
	p.subscribers = append(p.subscribers, cb)
	p.mu.Unlock()
}

// Connect records a live connection. Duplicate connection ids are a no-op.
func (p *PresenceService) Connect(userID, connectionID string) {
	p.mu.Lock()
	conns, ok := p.connections[userID]
	if !ok {
		conns = make(map[string]struct{})
		p.connections[userID] = conns
	}
	if _, dup := conns[connectionID]; dup {
		p.mu.Unlock()
		return
	}
	conns[connectionID] = struct{}{}
	wentOnline := len(conns) == 1
	subs := p.snapshotSubscribers()
	p.mu.Unlock()

	if wentOnline {
		log.Printf("🟢 User %s is online", userID)
		for _, cb := range subs {
			cb(userID, true)
		}
	}
}

// Disconnect removes a live connection. Unknown connections are a no-op, so
// a duplicate disconnect cannot corrupt the count.
func (p *PresenceService) Disconnect(userID, connectionID string) {
	p.mu.Lock()
	conns, ok := p.connections[userID]
	if !ok {
		p.mu.Unlock()
		return
	}
	if _, exists := conns[connectionID]; !exists {
		p.mu.Unlock()
		return
	}
	delete(conns, connectionID)
	wentOffline := len(conns) == 0
	if wentOffline {
		delete(p.connections, userID)
	}
	subs := p.snapshotSubscribers()
	p.mu.Unlock()

	if wentOffline {
		log.Printf("⚪ User %s is offline", userID)
		for _, cb := range subs {
			cb(userID, false)
		}
	}
}

// IsOnline reports whether the user has at least one live connection.
func (p *PresenceService) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections[userID]) > 0
}

func (p *PresenceService) snapshotSubscribers() []func(string, bool) {
	subs := make([]func(string, bool), len(p.subscribers))
	copy(subs, p.subscribers)
	return subs
}
