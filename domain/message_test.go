package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/errors"
)

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		message Message
		wantErr error
	}{
		{
			name:    "text message with content only",
			message: Message{Type: MessageTypeText, Content: "hello"},
			wantErr: nil,
		},
		{
			name:    "file message with file url only",
			message: Message{Type: MessageTypeFile, FileURL: "/uploads/files/report.pdf"},
			wantErr: nil,
		},
		{
			name:    "text message without content",
			message: Message{Type: MessageTypeText},
			wantErr: errors.ErrContentMismatch,
		},
		{
			name:    "text message carrying a file url",
			message: Message{Type: MessageTypeText, Content: "hello", FileURL: "/uploads/x"},
			wantErr: errors.ErrContentMismatch,
		},
		{
			name:    "file message without file url",
			message: Message{Type: MessageTypeFile},
			wantErr: errors.ErrContentMismatch,
		},
		{
			name:    "file message carrying content",
			message: Message{Type: MessageTypeFile, FileURL: "/uploads/x", Content: "hello"},
			wantErr: errors.ErrContentMismatch,
		},
		{
			name:    "unknown type",
			message: Message{Type: "audio", Content: "hello"},
			wantErr: errors.ErrContentMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.message.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMessage_IsDirect(t *testing.T) {
	req := require.New(t)

	direct := Message{ID: uuid.New(), Sender: "alice", Recipient: "bob",
		Type: MessageTypeText, Content: "hi", Timestamp: time.Now().UTC()}
	channel := Message{ID: uuid.New(), Sender: "alice",
		Type: MessageTypeText, Content: "hi", Timestamp: time.Now().UTC()}

	req.True(direct.IsDirect())
	req.False(channel.IsDirect())
}

func TestChannel_Recipients_Deduplicates_Admin(t *testing.T) {
	req := require.New(t)

	// Given an admin also listed as a member
	channel := Channel{
		ID:      uuid.New(),
		Name:    "general",
		Members: []string{"alice", "bob", "dora"},
		Admin:   "dora",
	}

	// When recipients are resolved
	recipients := channel.Recipients()

	// Then the admin appears exactly once
	req.ElementsMatch([]string{"alice", "bob", "dora"}, recipients)
}

func TestChannel_Recipients_Includes_Unlisted_Admin(t *testing.T) {
	req := require.New(t)

	channel := Channel{
		ID:      uuid.New(),
		Name:    "general",
		Members: []string{"alice", "bob", "carol"},
		Admin:   "dora",
	}

	recipients := channel.Recipients()

	req.ElementsMatch([]string{"alice", "bob", "carol", "dora"}, recipients)
}
