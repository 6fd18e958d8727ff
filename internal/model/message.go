package model

import "time"

// MessageTTL is how long a direct message lives after it is sent.
// The deadline is hard: read/delivery status does not extend it.
const MessageTTL = 24 * time.Hour

// Message is a direct message between two accounts.
//
// SenderID and RecipientID are weak references. They are stored by value and
// never checked against the account table, so a message can outlive (or
// predate) the accounts it mentions.
type Message struct {
	ID             string    `json:"_id"`
	SenderID       string    `json:"senderId"`
	RecipientID    string    `json:"recipientId"`
	SenderUsername string    `json:"senderUsername"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"-"`
}

// Expired reports whether the message is past its deadline at now.
// A message expires exactly MessageTTL after CreatedAt.
func (m *Message) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}
