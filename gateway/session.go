package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/domain/event"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Session is one live websocket connection. It is the connection handle the
// presence registry stores, and it implements contract.EventSink: the engine
// hands it delivery events, the write pump drains them onto the wire.
//
// The read loop closes the session while the engine worker may be delivering
// into it, so Consume and close synchronize on mu: a delivery that loses the
// race fails for this handle only.
type Session struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
	log    *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewSession(conn *websocket.Conn, userID string, log *slog.Logger, bufferSize int) *Session {
	return &Session{
		conn:   conn,
		send:   make(chan []byte, bufferSize),
		userID: userID,
		log:    log,
	}
}

// Consume queues a delivery event for this connection. A full buffer or a
// session already closed by its read loop drops the event for this handle
// only; the engine logs it and moves on.
func (s *Session) Consume(_ context.Context, e event.DeliveryEvent) error {
	data, err := json.Marshal(outbound{Event: e.EventName(), Data: e})
	if err != nil {
		return fmt.Errorf("marshal delivery event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("connection closed for %s", s.userID)
	}
	select {
	case s.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full for %s", s.userID)
	}
}

// close releases the send channel exactly once; the write pump then sends a
// close frame and tears the connection down. Held under mu so an in-flight
// Consume either lands before the close or observes it.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// writePump serializes all writes to the connection: queued delivery events
// and keep-alive pings. It exits when the send channel closes or a write
// fails, closing the underlying connection either way.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.log.Debug("Write deadline failed", "user_id", s.userID, "error", err)
				return
			}
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("Write failed", "user_id", s.userID, "error", err)
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
