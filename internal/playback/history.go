package playback

import "sync"

// MaxHistory is the number of entries History keeps.
const MaxHistory = 10

// History is the most-recent-first list of played tracks. Only the head is
// checked for duplicates, so a track that comes back after another one is
// inserted again.
type History struct {
	mu      sync.RWMutex
	entries []string
}

// NewHistory creates a history seeded with entries (most recent first).
func NewHistory(entries []string) *History {
	h := &History{}
	for _, e := range entries {
		if e == "" {
			continue
		}
		if len(h.entries) == MaxHistory {
			break
		}
		h.entries = append(h.entries, e)
	}
	return h
}

// Push inserts entry at the head. Returns false if entry equals the head.
func (h *History) Push(entry string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) > 0 && h.entries[0] == entry {
		return false
	}
	h.entries = append([]string{entry}, h.entries...)
	if len(h.entries) > MaxHistory {
		h.entries = h.entries[:MaxHistory]
	}
	return true
}

// Entries returns a copy of the history.
func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
