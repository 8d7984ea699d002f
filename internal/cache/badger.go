package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"jetpreview/internal/domain"
)

const badgerKeyPrefix = "preview:"

// BadgerStore keeps previews in a badger database next to the bookmarks.
// Expiry uses badger's native entry TTL, which has second granularity.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps db. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func badgerKey(url string) []byte {
	return []byte(badgerKeyPrefix + url)
}

func (s *BadgerStore) Get(_ context.Context, key string) (domain.Metadata, bool, error) {
	var md domain.Metadata
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &md)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Metadata{}, false, nil
	}
	if err != nil {
		return domain.Metadata{}, false, fmt.Errorf("read preview %s: %w", key, err)
	}
	return md, true, nil
}

func (s *BadgerStore) Set(_ context.Context, key string, md domain.Metadata, ttl time.Duration) error {
	val, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal preview: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(badgerKey(key), val).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("write preview %s: %w", key, err)
	}
	return nil
}
