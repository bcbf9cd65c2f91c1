package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	"chat-relay/errors"
)

// ProfileRepository reads the display profiles written by the account flows.
// The fan-out layer never creates accounts; Upsert exists for those flows and
// for test seeding.
type ProfileRepository struct {
	db *badger.DB
}

func NewProfileRepository(db *badger.DB) ProfileRepository {
	return ProfileRepository{db: db}
}

func profileKey(id string) []byte {
	return []byte("profile:" + id)
}

func (p ProfileRepository) UpsertProfile(profile domain.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(profile.ID), data)
	})
}

func (p ProfileRepository) GetProfile(id string) (domain.Profile, error) {
	var profile domain.Profile
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &profile)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Profile{}, errors.ErrProfileNotFound
	}
	return profile, err
}
