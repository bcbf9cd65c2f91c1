//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself.
// The supervisor recovers panics and restarts it.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding a manual naming method
// on the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one live connection's intake. Consume must not block the
// caller beyond the sink's own buffering policy.
type EventSink interface {
	Consume(ctx context.Context, e event.DeliveryEvent) error
}

// IPresence maps user identities to their single live connection.
// A second connection for the same user overwrites the first.
type IPresence interface {
	Register(userID string, sink EventSink)
	Lookup(userID string) (EventSink, bool)
	Unregister(sink EventSink)
}

type IMessageStore interface {
	StoreMessage(message domain.Message) error
	GetMessage(id uuid.UUID) (domain.Message, error)
	GetConversation(userA, userB string, cursor *string) ([]domain.Message, *string, error)
}

type IChannelDirectory interface {
	CreateChannel(channel domain.Channel) error
	GetChannel(id uuid.UUID) (domain.Channel, error)
	ListChannels(userID string) ([]domain.Channel, error)
	AppendMessageID(channelID, messageID uuid.UUID) error
}

type IProfileDirectory interface {
	UpsertProfile(profile domain.Profile) error
	GetProfile(id string) (domain.Profile, error)
}

// IEngine accepts send commands from the gateway. Dispatch is fire-and-forget:
// a saturated engine drops the command with a log, never an error to the client.
type IEngine interface {
	Dispatch(cmd domain.Command)
}
