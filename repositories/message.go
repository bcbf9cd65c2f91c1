package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-relay/domain"
	"chat-relay/errors"
)

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// conversationPrefix orders the two user IDs so both directions of a DM pair
// share one index prefix. IDs are opaque strings and may contain the ":"
// delimiter, so each one is length-prefixed to keep distinct pairs from
// colliding on one prefix.
func conversationPrefix(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("dm:%d:%s:%d:%s:", len(userA), userA, len(userB), userB)
}

func primaryKey(id uuid.UUID) []byte {
	return []byte("msg:" + id.String())
}

// StoreMessage persists a message document under its primary key and, for
// direct messages, an ordered conversation index entry. The index key is
// "dm:{len(a)}:{a}:{len(b)}:{b}:{timestamp_padded}:{uuid}" so that:
//  1. A prefix scan returns one S-R conversation in chronological order
//     (19-digit zero padding keeps lexicographic = temporal order).
//  2. The UUID suffix disambiguates two messages landing on the same
//     nanosecond.
//
// Channel messages carry no recipient and are ordered by the channel's own
// message-ID list instead of an index here.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primaryKey(message.ID), data); err != nil {
			return err
		}
		if !message.IsDirect() {
			return nil
		}
		indexKey := fmt.Sprintf("%s%019d:%s",
			conversationPrefix(message.Sender, message.Recipient),
			message.Timestamp.UnixNano(),
			message.ID,
		)
		return txn.Set([]byte(indexKey), message.ID[:])
	})
}

// GetMessage reads one message back by its primary key.
func (m MessageRepository) GetMessage(id uuid.UUID) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(primaryKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &message)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	return message, err
}

// GetConversation retrieves the S-R conversation page ending at cursor.
// It scans the conversation index backwards and returns the page in
// chronological order, stopping at the configured limit. The returned cursor
// is the index position to resume from on the next call.
func (m MessageRepository) GetConversation(userA, userB string, cursor *string) ([]domain.Message, *string, error) {
	var ids []uuid.UUID
	var lastKey string
	prefixStr := conversationPrefix(userA, userB)
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(ids) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = strings.TrimPrefix(string(item.Key()), prefixStr)
			err := item.Value(func(value []byte) error {
				id, err := uuid.FromBytes(value)
				if err != nil {
					return err
				}
				ids = append(ids, id)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(ids) == 0 {
		return []domain.Message{}, nil, nil
	}

	// Reverse scan collected newest-first; callers expect chronological order.
	messages := make([]domain.Message, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		message, err := m.GetMessage(ids[i])
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	return messages, &lastKey, nil
}
