package domain

import (
	"time"
)

// TypingTTL is how long a typing signal stays live without a refresh. Readers
// filter out anything older, so a client that disconnects mid-typing simply
// ages out.
const TypingTTL = 10 * time.Second

// TypingStatus is an ephemeral "is typing" signal keyed by (chat, subject).
// A false update deletes the record rather than storing it, so the stored set
// equals "currently typing".
type TypingStatus struct {
	ChatID      string    `json:"chat_id"`
	SubjectID   string    `json:"subject_id"`
	LastUpdated time.Time `json:"last_updated"`
}

// Stale reports whether the signal has outlived the TTL.
func (t *TypingStatus) Stale(now time.Time) bool {
	return now.Sub(t.LastUpdated) > TypingTTL
}
