package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

// History serves the fetch side of the conversation log: the records the
// fan-out engine persisted, expanded the same way the live events are.
type History struct {
	log      *slog.Logger
	messages contract.IMessageStore
	channels contract.IChannelDirectory
	profiles contract.IProfileDirectory
	validate *validator.Validate
}

func NewHistory(log *slog.Logger, messages contract.IMessageStore,
	channels contract.IChannelDirectory, profiles contract.IProfileDirectory) *History {
	return &History{
		log:      log,
		messages: messages,
		channels: channels,
		profiles: profiles,
		validate: validator.New(),
	}
}

// Register mounts the history routes on mux.
func (h *History) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/messages", h.withAuth(h.handleConversation))
	mux.HandleFunc("GET /api/channels", h.withAuth(h.handleListChannels))
	mux.HandleFunc("GET /api/channels/{channelId}/messages", h.withAuth(h.handleChannelMessages))
	mux.HandleFunc("POST /api/channels", h.withAuth(h.handleCreateChannel))
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withAuth resolves the bearer token to a user identity before the handler
// runs. The websocket endpoint stays outside this guard.
func (h *History) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r, claims.UserID)
	}
}

type conversationRequest struct {
	ID     string  `json:"id" validate:"required"`
	Cursor *string `json:"cursor,omitempty"`
}

type conversationResponse struct {
	Messages []event.ExpandedMessage `json:"messages"`
	Cursor   *string                 `json:"cursor,omitempty"`
}

// handleConversation returns the authenticated user's conversation with the
// requested peer, oldest first, expanded for rendering.
func (h *History) handleConversation(w http.ResponseWriter, r *http.Request, userID string) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "unreadable request", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "both user IDs are required", http.StatusBadRequest)
		return
	}

	messages, cursor, err := h.messages.GetConversation(userID, req.ID, req.Cursor)
	if err != nil {
		h.log.Error("Conversation fetch failed", "user_id", userID, "peer_id", req.ID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.respond(w, conversationResponse{Messages: h.expandAll(messages), Cursor: cursor})
}

type channelMessagesResponse struct {
	Messages []event.ExpandedMessage `json:"messages"`
}

// handleChannelMessages resolves the channel's ordered message-ID list into
// expanded messages.
func (h *History) handleChannelMessages(w http.ResponseWriter, r *http.Request, _ string) {
	channelID, err := uuid.Parse(r.PathValue("channelId"))
	if err != nil {
		http.Error(w, "channel ID is required", http.StatusBadRequest)
		return
	}

	channel, err := h.channels.GetChannel(channelID)
	if err == errors.ErrChannelNotFound {
		http.Error(w, "channel not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Channel fetch failed", "channel_id", channelID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	messages := make([]domain.Message, 0, len(channel.Messages))
	for _, id := range channel.Messages {
		message, err := h.messages.GetMessage(id)
		if err == errors.ErrMessageNotFound {
			h.log.Debug("Dangling message reference", "channel_id", channelID, "message_id", id)
			continue
		}
		if err != nil {
			h.log.Error("Channel message fetch failed", "message_id", id, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		messages = append(messages, message)
	}

	h.respond(w, channelMessagesResponse{Messages: h.expandAll(messages)})
}

type listChannelsResponse struct {
	Channels []domain.Channel `json:"channels"`
}

// handleListChannels returns every channel the caller participates in,
// most recently active first.
func (h *History) handleListChannels(w http.ResponseWriter, r *http.Request, userID string) {
	channels, err := h.channels.ListChannels(userID)
	if err != nil {
		h.log.Error("Channel listing failed", "user_id", userID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if channels == nil {
		channels = []domain.Channel{}
	}
	h.respond(w, listChannelsResponse{Channels: channels})
}

type createChannelRequest struct {
	Name    string   `json:"name" validate:"required"`
	Members []string `json:"members" validate:"required,min=1"`
}

type createChannelResponse struct {
	Channel domain.Channel `json:"channel"`
}

// handleCreateChannel persists a channel with the caller as admin. The member
// set is fixed at creation for the fan-out path.
func (h *History) handleCreateChannel(w http.ResponseWriter, r *http.Request, userID string) {
	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "unreadable request", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "name and members are required", http.StatusBadRequest)
		return
	}

	channel := domain.Channel{
		ID:        uuid.New(),
		Name:      req.Name,
		Members:   req.Members,
		Admin:     userID,
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.channels.CreateChannel(channel); err != nil {
		h.log.Error("Channel creation failed", "admin", userID, "error", err)
		http.Error(w, "could not create channel", http.StatusInternalServerError)
		return
	}

	h.respondStatus(w, http.StatusCreated, createChannelResponse{Channel: channel})
}

func (h *History) respond(w http.ResponseWriter, body any) {
	h.respondStatus(w, http.StatusOK, body)
}

func (h *History) respondStatus(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Response encoding failed", "error", err)
	}
}

func (h *History) expandAll(messages []domain.Message) []event.ExpandedMessage {
	expanded := make([]event.ExpandedMessage, 0, len(messages))
	for _, message := range messages {
		expanded = append(expanded, event.ExpandedMessage{
			ID:        message.ID,
			Sender:    h.profileOf(message.Sender),
			Recipient: h.optionalProfile(message),
			Type:      message.Type,
			Content:   message.Content,
			FileURL:   message.FileURL,
			Timestamp: message.Timestamp,
		})
	}
	return expanded
}

func (h *History) optionalProfile(message domain.Message) *domain.Profile {
	if !message.IsDirect() {
		return nil
	}
	return h.profileOf(message.Recipient)
}

func (h *History) profileOf(userID string) *domain.Profile {
	profile, err := h.profiles.GetProfile(userID)
	if err != nil {
		return &domain.Profile{ID: userID}
	}
	return &profile
}
