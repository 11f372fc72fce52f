package client

import (
	"sync"
	"time"

	"mingle_server/models"
)

// reconcileWindow is how far apart a provisional message and its
// authoritative counterpart may be timestamped and still collapse into one
// displayed entry.
const reconcileWindow = 5 * time.Second

type reconcilerEntry struct {
	message     models.Message
	provisional bool
}

// Reconciler merges optimistic local sends with authoritative persisted or
// broadcast messages for one pair. Provisional entries are replaced in
// place, preserving display position; everything else inserts by sort key,
// so out-of-order network arrival never produces out-of-order display.
type Reconciler struct {
	mu      sync.Mutex
	window  time.Duration
	entries []reconcilerEntry
}

func NewReconciler() *Reconciler {
	return &Reconciler{window: reconcileWindow}
}

// AppendProvisional adds a not-yet-persisted message to the local view.
func (r *Reconciler) AppendProvisional(message models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, reconcilerEntry{message: message, provisional: true})
}

// ApplyAuthoritative merges a persisted message (broadcast or fallback
// response) into the view. Idempotent for repeated ids.
func (r *Reconciler) ApplyAuthoritative(message models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Already known: the same message can arrive over both channels.
	for i := range r.entries {
		if !r.entries[i].provisional && r.entries[i].message.MessageID == message.MessageID {
			r.entries[i].message = message
			return
		}
	}

	// Collapse into a matching provisional entry, keeping its position.
	created := message.CreatedTime()
	for i := range r.entries {
		e := &r.entries[i]
		if !e.provisional || e.message.SenderID != message.SenderID || e.message.Content != message.Content {
			continue
		}
		delta := created.Sub(e.message.CreatedTime())
		if delta < 0 {
			delta = -delta
		}
		if delta <= r.window {
			e.message = message
			e.provisional = false
			return
		}
	}

	r.insertSorted(message)
}

// insertSorted must be called with the lock held.
func (r *Reconciler) insertSorted(message models.Message) {
	key := message.SortKey()
	idx := len(r.entries)
	for i := range r.entries {
		if r.entries[i].message.SortKey() > key {
			idx = i
			break
		}
	}
	r.entries = append(r.entries, reconcilerEntry{})
	copy(r.entries[idx+1:], r.entries[idx:])
	r.entries[idx] = reconcilerEntry{message: message}
}

// RemoveProvisional drops a failed optimistic send from the view and
// returns it so the compose state can be restored.
func (r *Reconciler) RemoveProvisional(localID string) (models.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].provisional && r.entries[i].message.MessageID == localID {
			removed := r.entries[i].message
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return removed, true
		}
	}
	return models.Message{}, false
}

// RemoveNewestProvisional drops the most recent provisional entry. Used when
// a server error frame cannot be correlated to a specific local id.
func (r *Reconciler) RemoveNewestProvisional() (models.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].provisional {
			removed := r.entries[i].message
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return removed, true
		}
	}
	return models.Message{}, false
}

// Messages returns the rendered view, in non-decreasing createdAt order for
// authoritative entries with provisional entries at their optimistic spots.
func (r *Reconciler) Messages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Message, len(r.entries))
	for i := range r.entries {
		out[i] = r.entries[i].message
	}
	return out
}

// PendingCount reports how many entries still await confirmation.
func (r *Reconciler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.entries {
		if r.entries[i].provisional {
			n++
		}
	}
	return n
}
