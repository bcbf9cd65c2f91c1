package repositories

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-relay/domain"
	"chat-relay/errors"
)

// maxAppendRetries bounds the conflict-retry loop of AppendMessageID.
// Generous: under a burst of concurrent sends into one channel, each commit
// conflict costs one retry.
const maxAppendRetries = 50

type ChannelRepository struct {
	db *badger.DB
}

func NewChannelRepository(db *badger.DB) ChannelRepository {
	return ChannelRepository{db: db}
}

func channelKey(id uuid.UUID) []byte {
	return []byte("channel:" + id.String())
}

func (c ChannelRepository) CreateChannel(channel domain.Channel) error {
	data, err := json.Marshal(channel)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(channelKey(channel.ID), data)
	})
}

func (c ChannelRepository) GetChannel(id uuid.UUID) (domain.Channel, error) {
	var channel domain.Channel
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(channelKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &channel)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Channel{}, errors.ErrChannelNotFound
	}
	return channel, err
}

// ListChannels returns every channel where the user is a member or the admin,
// most recently active first.
func (c ChannelRepository) ListChannels(userID string) ([]domain.Channel, error) {
	var channels []domain.Channel
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("channel:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var channel domain.Channel
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &channel)
			})
			if err != nil {
				return err
			}
			if channel.HasParticipant(userID) {
				channels = append(channels, channel)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(channels, func(i, j int) bool {
		return channels[i].UpdatedAt.After(channels[j].UpdatedAt)
	})
	return channels, nil
}

// AppendMessageID adds a message reference to the channel's ordered list.
// The read-append-write runs inside one Badger transaction, so two concurrent
// appends to the same channel conflict instead of losing an ID; the loser is
// retried against the fresh document.
func (c ChannelRepository) AppendMessageID(channelID, messageID uuid.UUID) error {
	var err error
	for i := 0; i < maxAppendRetries; i++ {
		err = c.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(channelKey(channelID))
			if err != nil {
				return err
			}
			var channel domain.Channel
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &channel)
			}); err != nil {
				return err
			}
			channel.Messages = append(channel.Messages, messageID)
			channel.UpdatedAt = time.Now().UTC()
			data, err := json.Marshal(channel)
			if err != nil {
				return err
			}
			return txn.Set(channelKey(channelID), data)
		})
		if err != badger.ErrConflict {
			break
		}
	}
	if err == badger.ErrKeyNotFound {
		return errors.ErrChannelNotFound
	}
	return err
}
