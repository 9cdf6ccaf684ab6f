// Package errmsg provides consistent error formatting for user-facing status text.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Media source
	OpMediaQuery Op = "query media player"

	// Presence operations
	OpPresenceConnect Op = "connect to Discord"
	OpPresenceUpdate  Op = "update presence"
	OpPresenceClear   Op = "clear presence"

	// Last.fm operations
	OpLastfmAuth       Op = "authenticate with Last.fm"
	OpLastfmScrobble   Op = "scrobble"
	OpLastfmNowPlaying Op = "update now playing"
	OpLastfmLookup     Op = "look up track on Last.fm"

	// Enrichment
	OpCatalogSearch  Op = "search Apple Music"
	OpArtworkUpload  Op = "upload artwork"
	OpArtworkPrepare Op = "prepare artwork"

	// Persistence
	OpConfigLoad   Op = "load config"
	OpConfigReload Op = "reload config"
	OpStateOpen    Op = "open state database"
	OpHistorySave  Op = "save history"
	OpHistoryLoad  Op = "load history"
	OpStatsRecord  Op = "record statistics"
	OpStatsLoad    Op = "load statistics"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}

// Status is the status-line form of an error: "Error: <message>".
func Status(err error) string {
	if err == nil {
		return ""
	}
	return "Error: " + err.Error()
}
