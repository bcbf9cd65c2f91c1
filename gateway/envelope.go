package gateway

import (
	"encoding/json"

	"chat-relay/domain/event"
)

// Wire event names accepted from clients. The outbound names live on the
// delivery events themselves.
const (
	eventSendDirect  = "sendMessage"
	eventSendChannel = "send-channel-message"
)

// Envelope frames every client-to-server websocket message:
// {"event": "...", "data": {...}}. Data is forwarded verbatim to the engine,
// which owns validation.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outbound frames a server-to-client delivery event.
type outbound struct {
	Event string              `json:"event"`
	Data  event.DeliveryEvent `json:"data"`
}
