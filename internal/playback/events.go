package playback

// TrackChange is emitted when the current track is replaced.
//
// Emitted by the poll loop on every detected transition, including the
// transition to nothing playing (Current == nil) and forced refreshes.
// NOT emitted for position/duration updates of the same track.
type TrackChange struct {
	Previous *Track
	Current  *Track
}

// IsRefresh reports whether the event re-announces the track that was
// already current, as a forced refresh or a resume does.
func (e TrackChange) IsRefresh() bool {
	return e.Current != nil && SameIdentity(e.Previous, e.Current)
}

// StatusChange carries a human-readable status line.
type StatusChange struct {
	Text    string
	IsError bool
}

// HistoryChange is emitted after History gained an entry.
type HistoryChange struct {
	Entries []string
}
