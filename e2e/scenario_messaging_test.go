package e2e

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type testMessagingSuite struct {
	BaseRelaySuite
}

func TestMessagingSuite(t *testing.T) {
	suite.Run(t, &testMessagingSuite{})
}

func (s *testMessagingSuite) TestDirectMessageFlow() {
	sender := "e2e-sender-" + uuid.NewString()
	recipient := "e2e-recipient-" + uuid.NewString()
	content := "e2e hello " + uuid.NewString()

	var senderConn, recipientConn *websocket.Conn

	// --- STEP 1: CONNECT BOTH PARTIES ---
	s.Run("Step 1: Connect sender and recipient", func() {
		senderConn = s.Connect("Connecting sender", sender)
		recipientConn = s.Connect("Connecting recipient", recipient)
	})
	defer senderConn.Close()
	defer recipientConn.Close()

	// Registration happens server side after the handshake
	time.Sleep(200 * time.Millisecond)

	// --- STEP 2: SEND AND RECEIVE ---
	s.Run("Step 2: Direct message reaches both connections", func() {
		s.Send(senderConn, "sendMessage", domain.SendDirectCommand{
			Sender:    sender,
			Recipient: recipient,
			Type:      domain.MessageTypeText,
			Content:   content,
		})

		for _, conn := range []*websocket.Conn{senderConn, recipientConn} {
			eventName, data := s.Receive(conn)
			s.Require().Equal("recieveMessage", eventName)

			var delivered event.ExpandedMessage
			s.Require().NoError(json.Unmarshal(data, &delivered))
			s.Require().Equal(content, delivered.Content)
			s.Require().Equal(sender, delivered.Sender.ID)
			s.Require().Equal(recipient, delivered.Recipient.ID)
		}
	})

	// --- STEP 3: HISTORY REFLECTS THE EXCHANGE ---
	s.Run("Step 3: Conversation history contains the message", func() {
		var body struct {
			Messages []event.ExpandedMessage `json:"messages"`
		}
		response := s.HTTPDo("Fetching conversation as recipient",
			http.MethodPost, "/api/messages", recipient,
			map[string]string{"id": sender}, &body)
		s.Require().Equal(http.StatusOK, response.StatusCode)
		s.Require().Len(body.Messages, 1)
		s.Require().Equal(content, body.Messages[0].Content)
	})
}

func (s *testMessagingSuite) TestChannelMessageFlow() {
	admin := "e2e-admin-" + uuid.NewString()
	member := "e2e-member-" + uuid.NewString()
	offline := "e2e-offline-" + uuid.NewString()
	content := "e2e channel " + uuid.NewString()

	var channelID uuid.UUID

	// --- STEP 1: CREATE THE CHANNEL OVER HTTP ---
	s.Run("Step 1: Create channel with one offline member", func() {
		var body struct {
			Channel domain.Channel `json:"channel"`
		}
		response := s.HTTPDo("Creating channel as admin",
			http.MethodPost, "/api/channels", admin,
			map[string]any{"name": "e2e-room", "members": []string{member, offline}}, &body)
		s.Require().Equal(http.StatusCreated, response.StatusCode)
		s.Require().Equal(admin, body.Channel.Admin)
		channelID = body.Channel.ID
	})

	// --- STEP 2: CONNECT ADMIN AND ONE MEMBER ---
	memberConn := s.Connect("Connecting member", member)
	defer memberConn.Close()
	adminConn := s.Connect("Connecting admin", admin)
	defer adminConn.Close()
	time.Sleep(200 * time.Millisecond)

	// --- STEP 3: FAN OUT ---
	s.Run("Step 3: Channel message reaches the live participants", func() {
		s.Send(memberConn, "send-channel-message", domain.SendChannelCommand{
			Sender:    member,
			ChannelID: channelID.String(),
			Type:      domain.MessageTypeText,
			Content:   content,
		})

		for _, conn := range []*websocket.Conn{memberConn, adminConn} {
			eventName, data := s.Receive(conn)
			s.Require().Equal("recieve-channel-message", eventName)

			var delivered struct {
				ChannelID uuid.UUID `json:"channelId"`
				Content   string    `json:"content"`
			}
			s.Require().NoError(json.Unmarshal(data, &delivered))
			s.Require().Equal(channelID, delivered.ChannelID)
			s.Require().Equal(content, delivered.Content)
		}
	})

	// --- STEP 4: CHANNEL LOG GREW ---
	s.Run("Step 4: Channel history contains the message", func() {
		var body struct {
			Messages []event.ExpandedMessage `json:"messages"`
		}
		response := s.HTTPDo("Fetching channel messages",
			http.MethodGet, "/api/channels/"+channelID.String()+"/messages", member, nil, &body)
		s.Require().Equal(http.StatusOK, response.StatusCode)
		s.Require().Len(body.Messages, 1)
		s.Require().Equal(content, body.Messages[0].Content)
	})
}
