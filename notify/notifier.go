// Package notify fans rotor status changes out to subscribers. Delivery
// is best-effort: a slow or disconnected subscriber misses updates
// instead of blocking the arbiter or its siblings.
package notify

import (
	"sync"

	"github.com/w1xm/peltrack/rotor"
)

// Notifier distributes status snapshots to any number of subscribers.
type Notifier struct {
	mu   sync.RWMutex
	subs map[chan rotor.Status]struct{}
}

func New() *Notifier {
	return &Notifier{subs: make(map[chan rotor.Status]struct{})}
}

// Subscribe returns a channel of status updates and a cleanup function.
// The caller must call the cleanup when done (e.g. on client
// disconnect).
func (n *Notifier) Subscribe() (<-chan rotor.Status, func()) {
	ch := make(chan rotor.Status, 16)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	unsub := func() {
		n.mu.Lock()
		delete(n.subs, ch)
		n.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Publish sends the snapshot to every subscriber without blocking.
// Subscribers whose buffer is full are skipped; they will catch up on
// the next tick.
func (n *Notifier) Publish(status rotor.Status) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.subs {
		select {
		case ch <- status:
		default:
		}
	}
}
