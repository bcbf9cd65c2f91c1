// Package gateway accepts real-time connections, binds them to user
// identities, and routes inbound send events to the fan-out engine.
package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Gateway upgrades websocket connections and runs their read loops. Presence
// is bound to the connection lifetime: registered after the upgrade when the
// client supplied a userId, unregistered exactly once when the read loop ends.
type Gateway struct {
	log        *slog.Logger
	presence   contract.IPresence
	engine     contract.IEngine
	upgrader   websocket.Upgrader
	sendBuffer int
}

func NewGateway(log *slog.Logger, presence contract.IPresence, engine contract.IEngine, sendBuffer int) *Gateway {
	return &Gateway{
		log:      log,
		presence: presence,
		engine:   engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin policy is enforced by the fronting HTTP layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
	}
}

// HandleConnection serves GET /ws?userId=…. A connection without a userId is
// accepted but never registered: it can send and receive nothing meaningful,
// mirroring the tolerance for unauthenticated probes. This blocks until the
// client disconnects.
func (g *Gateway) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	userID := r.URL.Query().Get("userId")
	session := NewSession(conn, userID, g.log, g.sendBuffer)

	if userID != "" {
		g.presence.Register(userID, session)
		g.log.Info("User connected", "user_id", userID, "remote", r.RemoteAddr)
	} else {
		g.log.Info("User ID not provided during connection", "remote", r.RemoteAddr)
	}

	go session.writePump()
	g.readLoop(session)
}

// readLoop decodes inbound envelopes and forwards their payloads verbatim to
// the engine. Cleanup runs on any exit, graceful close or network drop: the
// presence entry goes away synchronously so no later send resolves this
// handle.
func (g *Gateway) readLoop(session *Session) {
	defer func() {
		g.presence.Unregister(session)
		session.close()
		_ = session.conn.Close()
		g.log.Info("Client disconnected", "user_id", session.userID)
	}()

	if err := session.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		g.log.Debug("Read deadline failed", "user_id", session.userID, "error", err)
	}
	session.conn.SetPongHandler(func(string) error {
		return session.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := session.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				g.log.Warn("Unexpected websocket error", "user_id", session.userID, "error", err)
			}
			return
		}
		if err := g.route(data); err != nil {
			g.log.Warn("Inbound event dropped", "user_id", session.userID, "error", err)
		}
	}
}

// route maps an envelope to a command. Payload shape is not validated here;
// the engine rejects malformed sends.
func (g *Gateway) route(data []byte) error {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("unreadable envelope: %w", err)
	}

	switch envelope.Event {
	case eventSendDirect:
		var cmd domain.SendDirectCommand
		if err := json.Unmarshal(envelope.Data, &cmd); err != nil {
			return fmt.Errorf("unreadable direct send: %w", err)
		}
		g.engine.Dispatch(cmd)
	case eventSendChannel:
		var cmd domain.SendChannelCommand
		if err := json.Unmarshal(envelope.Data, &cmd); err != nil {
			return fmt.Errorf("unreadable channel send: %w", err)
		}
		g.engine.Dispatch(cmd)
	default:
		return fmt.Errorf("unknown event %q", envelope.Event)
	}
	return nil
}
