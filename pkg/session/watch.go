package session

import (
	"context"
	"sync"

	"github.com/aretw0/flowrun/pkg/domain"
)

// Watch streams snapshots of the session: one immediately, then one after every
// transcript append or status change. The channel closes when ctx is done or the
// session is deleted. Slow readers miss intermediate snapshots, never the latest.
func (m *Manager) Watch(ctx context.Context, sessionID string) (<-chan *domain.Session, error) {
	ent, err := m.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	msgs, unsubscribe := ent.interp.Subscribe()
	changed, unwatch := m.watchers.subscribe(sessionID)
	out := make(chan *domain.Session, 1)

	go func() {
		defer close(out)
		defer unwatch()
		defer unsubscribe()

		send := func() {
			snap := ent.interp.Snapshot()
			select {
			case out <- snap:
				return
			default:
			}
			// Replace the unread snapshot with the newer one.
			select {
			case <-out:
			default:
			}
			select {
			case out <- snap:
			default:
			}
		}

		send()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				send()
			case _, ok := <-changed:
				if !ok {
					return
				}
				send()
			}
		}
	}()
	return out, nil
}

// notifier fans status-change signals out to watchers of a session.
type notifier struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[string]map[chan struct{}]struct{})}
}

func (n *notifier) subscribe(sessionID string) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan struct{}, 1)
	if n.subs[sessionID] == nil {
		n.subs[sessionID] = make(map[chan struct{}]struct{})
	}
	n.subs[sessionID][ch] = struct{}{}

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if subs, ok := n.subs[sessionID]; ok {
			if _, live := subs[ch]; live {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(n.subs, sessionID)
			}
		}
	}
}

func (n *notifier) signal(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[sessionID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *notifier) close(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[sessionID] {
		close(ch)
	}
	delete(n.subs, sessionID)
}
