package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

// Engine is the fan-out core: it persists each accepted send exactly once,
// expands the stored record with display profiles, resolves the interested
// live connections through the presence registry, and pushes delivery events.
//
// All commands are consumed by a single worker goroutine, so persistence
// strictly precedes broadcast and a sender's sends keep their emission order.
// The transport is fire-and-forget: every failure is logged and contained
// per event, nothing is surfaced back over the real-time channel.
type Engine struct {
	log      *slog.Logger
	messages contract.IMessageStore
	channels contract.IChannelDirectory
	profiles contract.IProfileDirectory
	presence contract.IPresence
	commands chan domain.Command
	validate *validator.Validate
}

func NewEngine(log *slog.Logger, messages contract.IMessageStore,
	channels contract.IChannelDirectory, profiles contract.IProfileDirectory,
	presence contract.IPresence, bufferSize int) *Engine {
	return &Engine{
		log:      log,
		messages: messages,
		channels: channels,
		profiles: profiles,
		presence: presence,
		commands: make(chan domain.Command, bufferSize),
		validate: validator.New(),
	}
}

// Dispatch enqueues a command for the worker. A full channel drops the
// command with a warning; the sender is never notified on this transport.
func (e *Engine) Dispatch(cmd domain.Command) {
	select {
	case e.commands <- cmd:
	default:
		e.log.Warn("Command channel full, dropping command",
			"sender", cmd.SenderID(), "error", errors.ErrEngineSaturated)
	}
}

// Run consumes commands until the context is canceled. It satisfies
// contract.Worker and runs under the supervisor.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.log.Debug("Context done, stopping fan-out engine")
			return nil
		case cmd := <-e.commands:
			if err := e.handle(ctx, cmd); err != nil {
				e.log.Warn("Send event dropped", "sender", cmd.SenderID(), "error", err)
			}
		}
	}
}

func (e *Engine) handle(ctx context.Context, cmd domain.Command) error {
	switch c := cmd.(type) {
	case domain.SendDirectCommand:
		return e.SendDirect(ctx, c)
	case domain.SendChannelCommand:
		return e.SendChannel(ctx, c)
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
}

// SendDirect runs the point-to-point path: persist unconditionally (the
// recipient may be offline, the record is the durable conversation log),
// re-read and expand, then deliver to the recipient's and the sender's live
// connections so a sender with several open views stays in sync.
func (e *Engine) SendDirect(ctx context.Context, cmd domain.SendDirectCommand) error {
	if err := e.validate.Struct(cmd); err != nil {
		return fmt.Errorf("malformed direct send: %w", err)
	}

	message := domain.Message{
		ID:        uuid.New(),
		Sender:    cmd.Sender,
		Recipient: cmd.Recipient,
		Type:      cmd.Type,
		Content:   cmd.Content,
		FileURL:   cmd.FileURL,
		Timestamp: at(cmd.CreatedAt),
	}
	if err := e.messages.StoreMessage(message); err != nil {
		return fmt.Errorf("persist failed, no broadcast: %w", err)
	}

	stored, err := e.messages.GetMessage(message.ID)
	if err != nil {
		return fmt.Errorf("read-back failed, no broadcast: %w", err)
	}

	delivered := event.DirectMessageDelivered{ExpandedMessage: e.expand(stored)}
	e.emit(ctx, delivered, []string{cmd.Recipient, cmd.Sender})
	return nil
}

// SendChannel runs the group path: persist with no recipient, expand, append
// the message reference to the channel, then deliver to every live member and
// the admin. A channel deleted underneath us leaves the persisted message in
// place and broadcasts to nobody.
func (e *Engine) SendChannel(ctx context.Context, cmd domain.SendChannelCommand) error {
	if err := e.validate.Struct(cmd); err != nil {
		return fmt.Errorf("malformed channel send: %w", err)
	}
	channelID, err := uuid.Parse(cmd.ChannelID)
	if err != nil {
		return fmt.Errorf("malformed channel send: %w", err)
	}

	message := domain.Message{
		ID:        uuid.New(),
		Sender:    cmd.Sender,
		Type:      cmd.Type,
		Content:   cmd.Content,
		FileURL:   cmd.FileURL,
		Timestamp: at(cmd.CreatedAt),
	}
	if err := e.messages.StoreMessage(message); err != nil {
		return fmt.Errorf("persist failed, no broadcast: %w", err)
	}

	stored, err := e.messages.GetMessage(message.ID)
	if err != nil {
		return fmt.Errorf("read-back failed, no broadcast: %w", err)
	}

	if err := e.channels.AppendMessageID(channelID, message.ID); err != nil {
		if err == errors.ErrChannelNotFound {
			e.log.Debug("Channel vanished before append, broadcasting to nobody",
				"channel_id", channelID)
			return nil
		}
		return fmt.Errorf("channel append failed: %w", err)
	}

	channel, err := e.channels.GetChannel(channelID)
	if err != nil {
		if err == errors.ErrChannelNotFound {
			e.log.Debug("Channel vanished before broadcast", "channel_id", channelID)
			return nil
		}
		return fmt.Errorf("membership read failed: %w", err)
	}

	delivered := event.ChannelMessageDelivered{
		ExpandedMessage: e.expand(stored),
		ChannelID:       channelID,
	}
	e.emit(ctx, delivered, channel.Recipients())
	return nil
}

// emit resolves each user to their live sink and pushes the event once per
// distinct handle. A dead or saturated handle only loses its own copy.
func (e *Engine) emit(ctx context.Context, evt event.DeliveryEvent, userIDs []string) {
	seen := make(map[contract.EventSink]struct{})
	for _, userID := range lo.Uniq(userIDs) {
		sink, ok := e.presence.Lookup(userID)
		if !ok {
			continue
		}
		if _, dup := seen[sink]; dup {
			continue
		}
		seen[sink] = struct{}{}
		if err := sink.Consume(ctx, evt); err != nil {
			e.log.Warn("Delivery failed for one handle",
				"user_id", userID, "event", evt.EventName(), "error", err)
		}
	}
}

// expand replaces identity fields with partial profiles so clients render
// without a follow-up fetch. A missing profile degrades to a bare ID.
func (e *Engine) expand(message domain.Message) event.ExpandedMessage {
	expanded := event.ExpandedMessage{
		ID:        message.ID,
		Sender:    e.profileOf(message.Sender),
		Type:      message.Type,
		Content:   message.Content,
		FileURL:   message.FileURL,
		Timestamp: message.Timestamp,
	}
	if message.IsDirect() {
		expanded.Recipient = e.profileOf(message.Recipient)
	}
	return expanded
}

func (e *Engine) profileOf(userID string) *domain.Profile {
	profile, err := e.profiles.GetProfile(userID)
	if err != nil {
		e.log.Debug("Profile lookup failed, sending bare ID", "user_id", userID, "error", err)
		return &domain.Profile{ID: userID}
	}
	return &profile
}

func at(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
