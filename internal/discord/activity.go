package discord

import "time"

// ActivityType selects the verb Discord shows ("Playing", "Listening to").
type ActivityType int

const (
	ActivityTypePlaying   ActivityType = 0
	ActivityTypeListening ActivityType = 2
)

// Activity is the rich presence payload.
type Activity struct {
	Type       ActivityType `json:"type"`
	Details    string       `json:"details,omitempty"`
	State      string       `json:"state,omitempty"`
	Assets     *Assets      `json:"assets,omitempty"`
	Timestamps *Timestamps  `json:"timestamps,omitempty"`
	Buttons    []Button     `json:"buttons,omitempty"`
}

// Assets are the images of an activity. Images may be asset keys or URLs.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Timestamps are unix milliseconds. With both set Discord shows a progress
// bar counting towards End.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// NewTimestamps converts start and end times, leaving zero times out.
func NewTimestamps(start, end time.Time) *Timestamps {
	ts := &Timestamps{}
	if !start.IsZero() {
		ts.Start = start.UnixMilli()
	}
	if !end.IsZero() {
		ts.End = end.UnixMilli()
	}
	return ts
}

// Button is a clickable link under the activity. Discord allows two.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}
