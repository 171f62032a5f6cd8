package scheduler

import (
	"sync"

	"github.com/mwhitfield/loom/pkg/models"
)

// Listener receives scheduler notifications. Delivery is synchronous, in
// subscription order, in the calling goroutine; a slow listener slows the
// scheduler, so listeners should hand work off quickly.
type Listener func(models.Notification)

// notifier manages the subscriber set. It keeps listeners in subscription
// order so delivery order is stable.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id int
	fn Listener
}

// subscribe registers a listener and returns a function that removes it.
// Unsubscribing twice is a no-op.
func (n *notifier) subscribe(fn Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subs = append(n.subs, subscription{id: id, fn: fn})

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, s := range n.subs {
			if s.id == id {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

// publish delivers the notification to every listener, once each, in
// subscription order. The subscriber list is snapshotted first so listeners
// may subscribe or unsubscribe from inside the callback.
func (n *notifier) publish(event models.Notification) {
	n.mu.Lock()
	subs := make([]subscription, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, s := range subs {
		s.fn(event)
	}
}

// clear drops all listeners.
func (n *notifier) clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = nil
}
