package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
)

type recordingSink struct {
	events chan event.DeliveryEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan event.DeliveryEvent, 16)}
}

func (s *recordingSink) Consume(_ context.Context, e event.DeliveryEvent) error {
	s.events <- e
	return nil
}

type failingSink struct{}

func (failingSink) Consume(context.Context, event.DeliveryEvent) error {
	return fmt.Errorf("connection gone")
}

func newTestEngine(t *testing.T) (*Engine, *Registry, repositories.MessageRepository, repositories.ChannelRepository, repositories.ProfileRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	messages := repositories.NewMessageRepository(db, log, nil)
	channels := repositories.NewChannelRepository(db)
	profiles := repositories.NewProfileRepository(db)
	engine := NewEngine(log, messages, channels, profiles, registry, 100)
	return engine, registry, messages, channels, profiles
}

func seedProfile(t *testing.T, profiles repositories.ProfileRepository, id, email string) {
	t.Helper()
	require.NoError(t, profiles.UpsertProfile(domain.Profile{ID: id, Email: email}))
}

func TestEngine_Direct_Dual_Delivery(t *testing.T) {
	req := require.New(t)
	engine, registry, _, _, profiles := newTestEngine(t)
	seedProfile(t, profiles, "alice", "alice@example.com")
	seedProfile(t, profiles, "bob", "bob@example.com")

	// Given sender and recipient both connected
	senderSink := newRecordingSink()
	recipientSink := newRecordingSink()
	registry.Register("alice", senderSink)
	registry.Register("bob", recipientSink)

	// When alice sends bob a message
	err := engine.SendDirect(context.Background(), domain.SendDirectCommand{
		Sender:    "alice",
		Recipient: "bob",
		Type:      domain.MessageTypeText,
		Content:   "lunch?",
	})
	req.NoError(err)

	// Then each connection received exactly one expanded event
	req.Len(senderSink.events, 1)
	req.Len(recipientSink.events, 1)

	got := (<-recipientSink.events).(event.DirectMessageDelivered)
	want := (<-senderSink.events).(event.DirectMessageDelivered)
	req.Equal(want, got)
	req.Equal("lunch?", got.Content)
	req.Equal("alice@example.com", got.Sender.Email)
	req.Equal("bob@example.com", got.Recipient.Email)
}

func TestEngine_Direct_Offline_Recipient_Still_Persists(t *testing.T) {
	req := require.New(t)
	engine, registry, messages, _, _ := newTestEngine(t)

	// Given only the sender is connected
	senderSink := newRecordingSink()
	registry.Register("alice", senderSink)

	// When alice messages an offline bob
	err := engine.SendDirect(context.Background(), domain.SendDirectCommand{
		Sender:    "alice",
		Recipient: "bob",
		Type:      domain.MessageTypeText,
		Content:   "see this later",
	})
	req.NoError(err)

	// Then no delivery happened for bob but the record is durable
	req.Len(senderSink.events, 1)
	conversation, _, err := messages.GetConversation("bob", "alice", nil)
	req.NoError(err)
	req.Len(conversation, 1)
	req.Equal("see this later", conversation[0].Content)
}

func TestEngine_Direct_Missing_Fields_Dropped(t *testing.T) {
	req := require.New(t)
	engine, _, messages, _, _ := newTestEngine(t)

	// When a send arrives without a recipient
	err := engine.SendDirect(context.Background(), domain.SendDirectCommand{
		Sender:  "alice",
		Type:    domain.MessageTypeText,
		Content: "to nobody",
	})

	// Then it is rejected and nothing was persisted
	req.Error(err)
	conversation, _, err := messages.GetConversation("alice", "", nil)
	req.NoError(err)
	req.Empty(conversation)
}

func TestEngine_Persistence_Precedes_Broadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	mockStore := mocks.NewMockIMessageStore(ctrl)
	mockProfiles := mocks.NewMockIProfileDirectory(ctrl)
	registry := NewRegistry()
	engine := NewEngine(log, mockStore, mocks.NewMockIChannelDirectory(ctrl), mockProfiles, registry, 10)

	senderSink := mocks.NewMockEventSink(ctrl)
	recipientSink := mocks.NewMockEventSink(ctrl)
	registry.Register("alice", senderSink)
	registry.Register("bob", recipientSink)

	mockProfiles.EXPECT().GetProfile(gomock.Any()).
		Return(domain.Profile{}, fmt.Errorf("not seeded")).AnyTimes()

	var storedID uuid.UUID
	store := mockStore.EXPECT().StoreMessage(gomock.Any()).
		Do(func(m domain.Message) { storedID = m.ID }).
		Return(nil)
	readBack := mockStore.EXPECT().GetMessage(gomock.Any()).
		DoAndReturn(func(id uuid.UUID) (domain.Message, error) {
			req.Equal(storedID, id)
			return domain.Message{ID: id, Sender: "alice", Recipient: "bob",
				Type: domain.MessageTypeText, Content: "ordered", Timestamp: time.Now().UTC()}, nil
		})
	deliverRecipient := recipientSink.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil)
	deliverSender := senderSink.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil)

	// The store write and read-back must both precede any emission
	gomock.InOrder(store, readBack, deliverRecipient)
	gomock.InOrder(store, readBack, deliverSender)

	err := engine.SendDirect(context.Background(), domain.SendDirectCommand{
		Sender:    "alice",
		Recipient: "bob",
		Type:      domain.MessageTypeText,
		Content:   "ordered",
	})
	req.NoError(err)
}

func TestEngine_Persistence_Failure_Blocks_Broadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	mockStore := mocks.NewMockIMessageStore(ctrl)
	registry := NewRegistry()
	engine := NewEngine(log, mockStore, mocks.NewMockIChannelDirectory(ctrl),
		mocks.NewMockIProfileDirectory(ctrl), registry, 10)

	// Given a connected recipient that must never be reached
	recipientSink := mocks.NewMockEventSink(ctrl)
	registry.Register("bob", recipientSink)

	mockStore.EXPECT().StoreMessage(gomock.Any()).Return(fmt.Errorf("store unavailable"))

	err := engine.SendDirect(context.Background(), domain.SendDirectCommand{
		Sender:    "alice",
		Recipient: "bob",
		Type:      domain.MessageTypeText,
		Content:   "lost",
	})
	req.Error(err)
}

func TestEngine_Direct_One_Dead_Handle_Does_Not_Abort_The_Rest(t *testing.T) {
	req := require.New(t)
	engine, registry, _, _, _ := newTestEngine(t)

	// Given a recipient whose connection just died mid-delivery
	senderSink := newRecordingSink()
	registry.Register("alice", senderSink)
	registry.Register("bob", failingSink{})

	err := engine.SendDirect(context.Background(), domain.SendDirectCommand{
		Sender:    "alice",
		Recipient: "bob",
		Type:      domain.MessageTypeText,
		Content:   "still here",
	})

	// Then the send succeeds and the sender still got its copy
	req.NoError(err)
	req.Len(senderSink.events, 1)
}

func TestEngine_Channel_Fanout_Completeness(t *testing.T) {
	req := require.New(t)
	engine, registry, _, channels, profiles := newTestEngine(t)
	seedProfile(t, profiles, "alice", "alice@example.com")

	// Given a channel with members {alice,bob,carol} and admin dora,
	// where only alice and dora are connected
	channel := domain.Channel{
		ID:      uuid.New(),
		Name:    "general",
		Members: []string{"alice", "bob", "carol"},
		Admin:   "dora",
	}
	req.NoError(channels.CreateChannel(channel))

	aliceSink := newRecordingSink()
	doraSink := newRecordingSink()
	registry.Register("alice", aliceSink)
	registry.Register("dora", doraSink)

	// When alice sends into the channel
	err := engine.SendChannel(context.Background(), domain.SendChannelCommand{
		Sender:    "alice",
		ChannelID: channel.ID.String(),
		Type:      domain.MessageTypeText,
		Content:   "meeting at noon",
	})
	req.NoError(err)

	// Then exactly two delivery events went out
	req.Len(aliceSink.events, 1)
	req.Len(doraSink.events, 1)

	delivered := (<-doraSink.events).(event.ChannelMessageDelivered)
	req.Equal(channel.ID, delivered.ChannelID)
	req.Equal("meeting at noon", delivered.Content)
	req.Equal("alice@example.com", delivered.Sender.Email)
	req.Nil(delivered.Recipient)

	// And the channel's message list grew by exactly one
	fetched, err := channels.GetChannel(channel.ID)
	req.NoError(err)
	req.Len(fetched.Messages, 1)
}

func TestEngine_Channel_Admin_Listed_As_Member_Gets_One_Event(t *testing.T) {
	req := require.New(t)
	engine, registry, _, channels, _ := newTestEngine(t)

	channel := domain.Channel{
		ID:      uuid.New(),
		Name:    "general",
		Members: []string{"alice", "dora"},
		Admin:   "dora",
	}
	req.NoError(channels.CreateChannel(channel))

	doraSink := newRecordingSink()
	registry.Register("dora", doraSink)

	err := engine.SendChannel(context.Background(), domain.SendChannelCommand{
		Sender:    "alice",
		ChannelID: channel.ID.String(),
		Type:      domain.MessageTypeText,
		Content:   "no doubles",
	})
	req.NoError(err)

	req.Len(doraSink.events, 1)
}

func TestEngine_Channel_Vanished_Is_A_Silent_Noop(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	mockStore := mocks.NewMockIMessageStore(ctrl)
	mockChannels := mocks.NewMockIChannelDirectory(ctrl)
	registry := NewRegistry()
	engine := NewEngine(log, mockStore, mockChannels,
		mocks.NewMockIProfileDirectory(ctrl), registry, 10)

	// Given a connected sender that must receive nothing
	senderSink := mocks.NewMockEventSink(ctrl)
	registry.Register("alice", senderSink)

	// And a channel deleted underneath the send: the message still persists
	mockStore.EXPECT().StoreMessage(gomock.Any()).Return(nil)
	mockStore.EXPECT().GetMessage(gomock.Any()).
		DoAndReturn(func(id uuid.UUID) (domain.Message, error) {
			return domain.Message{ID: id, Sender: "alice",
				Type: domain.MessageTypeFile, FileURL: "/uploads/files/slides.pdf",
				Timestamp: time.Now().UTC()}, nil
		})
	mockChannels.EXPECT().AppendMessageID(gomock.Any(), gomock.Any()).
		Return(errors.ErrChannelNotFound)

	err := engine.SendChannel(context.Background(), domain.SendChannelCommand{
		Sender:    "alice",
		ChannelID: uuid.NewString(),
		Type:      domain.MessageTypeFile,
		FileURL:   "/uploads/files/slides.pdf",
	})

	// Then no error surfaces and the broadcast was a no-op
	req.NoError(err)
}

func TestEngine_Dispatch_Through_Worker(t *testing.T) {
	req := require.New(t)
	engine, registry, _, _, _ := newTestEngine(t)

	recipientSink := newRecordingSink()
	registry.Register("bob", recipientSink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = engine.Run(ctx) }()

	// When a command goes through the asynchronous path
	engine.Dispatch(domain.SendDirectCommand{
		Sender:    "alice",
		Recipient: "bob",
		Type:      domain.MessageTypeText,
		Content:   "async hello",
	})

	select {
	case evt := <-recipientSink.events:
		req.Equal("async hello", evt.(event.DirectMessageDelivered).Content)
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: delivery never reached the recipient sink")
	}
}
