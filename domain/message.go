// Package domain contains core concepts of the chat system.
// This file defines Message records and their content rules.
// Messages are immutable once created and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"

	"chat-relay/errors"
)

type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeFile MessageType = "file"
)

// Message represents an immutable chat record.
// Recipient is empty for channel messages, which are not point-to-point.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	Sender    string      `json:"sender"`
	Recipient string      `json:"recipient,omitempty"`
	Type      MessageType `json:"messageType"`
	Content   string      `json:"content,omitempty"`
	FileURL   string      `json:"fileUrl,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Validate enforces content exclusivity: a text message carries Content and
// no FileURL, a file message carries FileURL and no Content.
func (m Message) Validate() error {
	switch m.Type {
	case MessageTypeText:
		if m.Content == "" || m.FileURL != "" {
			return errors.ErrContentMismatch
		}
	case MessageTypeFile:
		if m.FileURL == "" || m.Content != "" {
			return errors.ErrContentMismatch
		}
	default:
		return errors.ErrContentMismatch
	}
	return nil
}

// IsDirect reports whether the message targets a single user.
func (m Message) IsDirect() bool {
	return m.Recipient != ""
}
