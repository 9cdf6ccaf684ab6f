package playback

import "sync"

const eventBufferSize = 16

// Subscription provides event channels for a subscriber.
type Subscription struct {
	TrackChanged   <-chan TrackChange
	StatusChanged  <-chan StatusChange
	HistoryChanged <-chan HistoryChange
	Done           <-chan struct{}

	// Internal write channels
	trackCh   chan TrackChange
	statusCh  chan StatusChange
	historyCh chan HistoryChange
	doneCh    chan struct{}
	closeOnce sync.Once
}

// newSubscription creates a new subscription with buffered channels.
func newSubscription() *Subscription {
	s := &Subscription{
		trackCh:   make(chan TrackChange, eventBufferSize),
		statusCh:  make(chan StatusChange, eventBufferSize),
		historyCh: make(chan HistoryChange, eventBufferSize),
		doneCh:    make(chan struct{}),
	}
	s.TrackChanged = s.trackCh
	s.StatusChanged = s.statusCh
	s.HistoryChanged = s.historyCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh.
func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.doneCh) })
}

// sendTrack sends a track change event (non-blocking).
func (s *Subscription) sendTrack(e TrackChange) {
	select {
	case s.trackCh <- e:
	default:
		// Drop if buffer full
	}
}

// sendStatus sends a status event (non-blocking).
func (s *Subscription) sendStatus(e StatusChange) {
	select {
	case s.statusCh <- e:
	default:
	}
}

// sendHistory sends a history event (non-blocking).
func (s *Subscription) sendHistory(e HistoryChange) {
	select {
	case s.historyCh <- e:
	default:
	}
}

// Hub fans events out to subscribers. Subscribers are registered when a
// collaborator is created and must Unsubscribe on teardown.
type Hub struct {
	mu     sync.RWMutex
	subs   []*Subscription
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers a new subscription.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := newSubscription()
	if h.closed {
		sub.close()
		return sub
	}
	h.subs = append(h.subs, sub)
	return sub
}

// Unsubscribe removes sub and closes its Done channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subs {
		if s == sub {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			break
		}
	}
	sub.close()
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		sub.close()
	}
	h.subs = nil
	h.closed = true
}

// PublishTrack sends a track change to every subscriber. Tracks are cloned
// per subscriber.
func (h *Hub) PublishTrack(prev, curr *Track) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		sub.sendTrack(TrackChange{Previous: prev.Clone(), Current: curr.Clone()})
	}
}

// PublishStatus sends a status line to every subscriber.
func (h *Hub) PublishStatus(text string, isError bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		sub.sendStatus(StatusChange{Text: text, IsError: isError})
	}
}

// PublishHistory sends the current history to every subscriber.
func (h *Hub) PublishHistory(entries []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		cp := make([]string, len(entries))
		copy(cp, entries)
		sub.sendHistory(HistoryChange{Entries: cp})
	}
}
