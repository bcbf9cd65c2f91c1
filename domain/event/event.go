// Package event defines the delivery events pushed to live connections.
// Payloads carry expanded messages: sender/recipient as profile objects so
// the receiving client renders immediately without a follow-up fetch.
package event

import (
	"time"

	"github.com/google/uuid"

	"chat-relay/domain"
)

// DeliveryEvent is anything the gateway can push to a connected client.
type DeliveryEvent interface {
	EventName() string
}

// ExpandedMessage is a persisted message with identity fields replaced by
// partial profiles. Recipient is nil for channel messages.
type ExpandedMessage struct {
	ID        uuid.UUID          `json:"id"`
	Sender    *domain.Profile    `json:"sender"`
	Recipient *domain.Profile    `json:"recipient,omitempty"`
	Type      domain.MessageType `json:"messageType"`
	Content   string             `json:"content,omitempty"`
	FileURL   string             `json:"fileUrl,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// DirectMessageDelivered fans out to the sender's and the recipient's live
// connections. The event name is the historical wire contract, typo included.
type DirectMessageDelivered struct {
	ExpandedMessage
}

func (DirectMessageDelivered) EventName() string { return "recieveMessage" }

// ChannelMessageDelivered fans out to every live channel member and the admin.
type ChannelMessageDelivered struct {
	ExpandedMessage
	ChannelID uuid.UUID `json:"channelId"`
}

func (ChannelMessageDelivered) EventName() string { return "recieve-channel-message" }
