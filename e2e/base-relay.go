package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"chat-relay/auth"
	"chat-relay/gateway"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
// and skips the whole suite when no relay address is configured.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR not set, skipping end-to-end suite")
	}
}

// logStep prints a colorized header for a connection or request step
func (s *BaseRelaySuite) logStep(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Connect dials the websocket endpoint as the given user.
func (s *BaseRelaySuite) Connect(name string, userID string) *websocket.Conn {
	s.logStep(name)
	u := url.URL{Scheme: "ws", Host: s.Config.RelayAddr, Path: "/ws"}
	if userID != "" {
		u.RawQuery = "userId=" + userID
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err, "Failed to connect to relay at "+s.Config.RelayAddr)
	return conn
}

// Send pushes a client event envelope on the connection.
func (s *BaseRelaySuite) Send(conn *websocket.Conn, eventName string, payload any) {
	data, err := json.Marshal(payload)
	s.Require().NoError(err)
	frame := gateway.Envelope{Event: eventName, Data: data}
	if s.Config.DebugJSON {
		dump, _ := json.Marshal(frame)
		s.T().Logf("WS SEND: %s", dump)
	}
	s.Require().NoError(conn.WriteJSON(frame))
}

// Receive waits for the next server event and returns its name and payload.
func (s *BaseRelaySuite) Receive(conn *websocket.Conn) (string, json.RawMessage) {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	var envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	s.Require().NoError(conn.ReadJSON(&envelope))
	if s.Config.DebugJSON {
		s.T().Logf("WS RECV [%s]: %s", envelope.Event, envelope.Data)
	}
	return envelope.Event, envelope.Data
}

// HTTPDo sends an authenticated JSON request to the relay's history API
// and decodes the response body into out when out is non-nil.
func (s *BaseRelaySuite) HTTPDo(name, method, path, userID string, body, out any) *http.Response {
	s.logStep(name)
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	request, err := http.NewRequest(method, "http://"+s.Config.RelayAddr+path, &buf)
	s.Require().NoError(err)

	token, err := auth.GenerateToken(userID, time.Minute)
	s.Require().NoError(err)
	request.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	response, err := http.DefaultClient.Do(request)
	s.Require().NoError(err)
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	s.Require().NoError(err)
	s.T().Logf("HTTP %s %s [%d] in %v", method, path, response.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		s.T().Logf("RESPONSE: %s", raw)
	}

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return response
}
