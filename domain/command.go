package domain

import "time"

// Command is an inbound intent routed from a live connection to the engine.
type Command interface {
	SenderID() string
}

// SendDirectCommand carries a point-to-point send request.
// Validation tags are enforced by the engine, not the gateway.
type SendDirectCommand struct {
	Sender    string      `json:"sender" validate:"required"`
	Recipient string      `json:"recipient" validate:"required"`
	Type      MessageType `json:"messageType" validate:"required,oneof=text file"`
	Content   string      `json:"content,omitempty"`
	FileURL   string      `json:"fileUrl,omitempty"`
	CreatedAt time.Time   `json:"-"`
}

func (c SendDirectCommand) SenderID() string { return c.Sender }

// SendChannelCommand carries a group send request addressed to a channel.
type SendChannelCommand struct {
	Sender    string      `json:"sender" validate:"required"`
	ChannelID string      `json:"channelId" validate:"required,uuid"`
	Type      MessageType `json:"messageType" validate:"required,oneof=text file"`
	Content   string      `json:"content,omitempty"`
	FileURL   string      `json:"fileUrl,omitempty"`
	CreatedAt time.Time   `json:"-"`
}

func (c SendChannelCommand) SenderID() string { return c.Sender }
