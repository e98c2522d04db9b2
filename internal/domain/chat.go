package domain

import (
	"time"
)

// Chat is a multi-party conversation. The creator is always a member of the
// participant set; admins are implicitly members for access purposes without
// being listed.
type Chat struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatorID    string    `json:"creator_id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasParticipant reports whether the subject is the creator or a listed
// participant of the chat.
func (c *Chat) HasParticipant(subjectID string) bool {
	if c.CreatorID == subjectID {
		return true
	}
	for _, p := range c.Participants {
		if p == subjectID {
			return true
		}
	}
	return false
}

// CanonicalParticipants deduplicates the given participant lists while
// preserving first-seen order.
func CanonicalParticipants(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range lists {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
