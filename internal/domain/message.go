package domain

import (
	"time"
)

// SystemSender is the reserved sender id for system-authored messages, such
// as the welcome message seeded on chat creation.
const SystemSender = "system"

// Message belongs to exactly one chat. ReadBy always contains the sender at
// creation and only ever grows; messages are removed solely via cascading
// chat deletion.
type Message struct {
	ID              string    `json:"id"`
	ChatID          string    `json:"chat_id"`
	SenderID        string    `json:"sender_id"`
	Content         string    `json:"content"`
	SentAt          time.Time `json:"sent_at"`
	ReadBy          []string  `json:"read_by"`
	IsAdminAuthored bool      `json:"is_admin_authored"`
	IsSystemMessage bool      `json:"is_system_message"`
}

// ReadByContains reports whether the subject has read the message.
func (m *Message) ReadByContains(subjectID string) bool {
	for _, id := range m.ReadBy {
		if id == subjectID {
			return true
		}
	}
	return false
}
