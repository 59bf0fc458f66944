// Package transcript bridges a session's conversation log onto Redis
// Pub/Sub for live display. The bus core stays in-memory; this package is
// the presentation-layer transport that forwards every published message
// to a namespaced channel and tails that channel from the CLI.
package transcript

import "fmt"

// Redis channel pattern helpers
//
// Channels are namespaced by session name so multiple concurrent analysis
// sessions can share a single Redis server without interference.
//
// Channel pattern: caseboard:{session_name}:transcript_events

// EventsChannel returns the Pub/Sub channel name for a session's
// transcript events.
// Pattern: caseboard:{session_name}:transcript_events
func EventsChannel(sessionName string) string {
	return fmt.Sprintf("caseboard:%s:transcript_events", sessionName)
}
