package lastfm

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ScrobbleTrack contains track metadata for now-playing and scrobble calls.
type ScrobbleTrack struct {
	Artist    string
	Track     string
	Album     string
	Duration  time.Duration
	Timestamp time.Time // When playback started
}

// ScrobbleResult is the service's verdict on a scrobble. A scrobble that
// was ignored is final: the service will not accept it on a retry either.
type ScrobbleResult struct {
	Accepted       int
	Ignored        int
	IgnoredCode    string
	IgnoredMessage string
}

// Done reports whether the service acknowledged the scrobble one way or the other.
func (r ScrobbleResult) Done() bool {
	return r.Accepted > 0 || r.Ignored > 0
}

// Session is the result of a completed authorization.
type Session struct {
	Username string
	Key      string
}

// TrackMatch is one result of track.search.
type TrackMatch struct {
	Name      string
	Artist    string
	Listeners int
}

// Image is one entry of an image list, smallest first as the API returns them.
type Image struct {
	URL  string
	Size string
}

// flexInt decodes a JSON number that Last.fm sometimes sends as a string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type errorResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

type ignoredMessage struct {
	Code string `json:"code"`
	Text string `json:"#text"`
}

type scrobbleEntry struct {
	IgnoredMessage ignoredMessage `json:"ignoredMessage"`
}

type scrobbleResponse struct {
	Scrobbles struct {
		Attr struct {
			Accepted flexInt `json:"accepted"`
			Ignored  flexInt `json:"ignored"`
		} `json:"@attr"`
		// Object for a single scrobble, array for a batch.
		Scrobble json.RawMessage `json:"scrobble"`
	} `json:"scrobbles"`
}

type nowPlayingResponse struct {
	NowPlaying struct {
		IgnoredMessage ignoredMessage `json:"ignoredMessage"`
	} `json:"nowplaying"`
}

type trackSearchResponse struct {
	Results struct {
		TrackMatches struct {
			Track []struct {
				Name      string  `json:"name"`
				Artist    string  `json:"artist"`
				Listeners flexInt `json:"listeners"`
			} `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

type trackInfoResponse struct {
	Track struct {
		Album struct {
			Image []struct {
				URL  string `json:"#text"`
				Size string `json:"size"`
			} `json:"image"`
		} `json:"album"`
	} `json:"track"`
}
