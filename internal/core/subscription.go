package core

import "sync"

const DefaultSubscriptionBuffer = 64

// Notification is delivered once per committed operation. Revisions increase
// by one per notification; a gap tells the subscriber it missed one and
// should re-read the snapshot.
type Notification struct {
	Revision uint64  `json:"revision"`
	Events   []Event `json:"events"`
}

type Subscription struct {
	C <-chan Notification

	ch     chan Notification
	id     uint64
	engine *Engine
	once   sync.Once
}

// Subscribe registers a listener. Slow listeners drop notifications rather
// than block the engine.
func (e *Engine) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextSub++
	ch := make(chan Notification, buffer)
	sub := &Subscription{C: ch, ch: ch, id: e.nextSub, engine: e}
	e.subs[sub.id] = sub
	return sub
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.engine.mu.Lock()
		defer s.engine.mu.Unlock()
		delete(s.engine.subs, s.id)
		close(s.ch)
	})
}

// commit publishes everything emitted since the last commit. Callers hold mu.
func (e *Engine) commit() {
	if len(e.pending) == 0 && !e.dirty {
		return
	}
	e.revision++
	n := Notification{Revision: e.revision, Events: e.pending}
	e.pending = nil
	e.dirty = false

	for _, sub := range e.subs {
		select {
		case sub.ch <- n:
		default:
			e.logger.WithField("revision", n.Revision).Debug("subscriber lagging, notification dropped")
		}
	}
}
