package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"jetpreview/internal/domain"
)

// OpenBadger opens the badger database at dbPath. The same handle backs the
// bookmark repository and the badger preview cache.
func OpenBadger(dbPath string, logger logrus.FieldLogger) (*badger.DB, error) {
	opts := badger.DefaultOptions(dbPath)
	// Route Badger's internal logging through logrus
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)
	return db, nil
}

// RunGC reclaims value log space every interval until ctx is cancelled.
func RunGC(ctx context.Context, db *badger.DB, interval time.Duration, logger logrus.FieldLogger) {
	log := logger.WithField("component", "badgerdb")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				log.Info("BadgerDB GC completed successfully")
			case errors.Is(err, badger.ErrNoRewrite):
				log.Debug("BadgerDB GC: No rewrite needed")
			default:
				log.WithError(err).Error("BadgerDB GC failed")
			}
		case <-ctx.Done():
			log.Info("Stopping BadgerDB GC routine")
			return
		}
	}
}

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

var _ Repository = (*BadgerRepository)(nil)

// NewBadgerRepository creates a repository over an open database. The caller
// keeps ownership of db.
func NewBadgerRepository(db *badger.DB, logger logrus.FieldLogger) *BadgerRepository {
	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
	}
}

// generateLinkKey creates a unique key for storing a link.
// Format: user:{userID}:link:{linkURL}
func generateLinkKey(userID int64, linkURL string) []byte {
	return []byte(fmt.Sprintf("user:%d:link:%s", userID, linkURL))
}

// generateUserPrefix creates a key prefix for scanning all links belonging to a user.
// Format: user:{userID}:link:
func generateUserPrefix(userID int64) []byte {
	return []byte(fmt.Sprintf("user:%d:link:", userID))
}

// SaveLink stores or updates a link in BadgerDB.
func (r *BadgerRepository) SaveLink(ctx context.Context, link domain.Link) error {
	log := r.log.WithFields(logrus.Fields{
		"user_id": link.UserID,
		"url":     link.URL,
	})
	log.Info("Attempting to save link")

	if link.Timestamp.IsZero() {
		link.Timestamp = time.Now()
	}

	linkBytes, err := json.Marshal(link)
	if err != nil {
		log.WithError(err).Error("Failed to marshal link to JSON")
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	key := generateLinkKey(link.UserID, link.URL)

	// Overwrites an existing entry for the same user and URL
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, linkBytes))
	})
	if err != nil {
		log.WithError(err).Error("Failed to save link to BadgerDB")
		return fmt.Errorf("failed to save link: %w", err)
	}

	log.Info("Link saved successfully")
	return nil
}

// GetLink retrieves a single link.
func (r *BadgerRepository) GetLink(ctx context.Context, userID int64, linkURL string) (domain.Link, error) {
	var link domain.Link
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(generateLinkKey(userID, linkURL))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &link)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Link{}, ErrNotFound
	}
	if err != nil {
		return domain.Link{}, fmt.Errorf("failed to get link %s for user %d: %w", linkURL, userID, err)
	}
	return link, nil
}

// GetLinksByUser retrieves all links for a specific user.
func (r *BadgerRepository) GetLinksByUser(ctx context.Context, userID int64) ([]domain.Link, error) {
	log := r.log.WithField("user_id", userID)
	log.Info("Attempting to get links for user")

	var links []domain.Link

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := generateUserPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var link domain.Link
				// val is only valid inside this callback; Unmarshal copies what it keeps
				if err := json.Unmarshal(val, &link); err != nil {
					log.WithError(err).WithField("key", string(item.Key())).Error("Failed to unmarshal link from DB")
					return fmt.Errorf("failed to unmarshal link data for key %s: %w", string(item.Key()), err)
				}
				links = append(links, link)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.WithError(err).Error("Failed to retrieve links from BadgerDB")
		return nil, fmt.Errorf("failed to get links for user %d: %w", userID, err)
	}

	// Newest first
	sort.Slice(links, func(i, j int) bool {
		return links[i].Timestamp.After(links[j].Timestamp)
	})

	log.WithField("link_count", len(links)).Info("Links retrieved successfully")
	return links, nil
}

// DeleteLink removes a specific link for a user. Deleting a missing link is
// not an error.
func (r *BadgerRepository) DeleteLink(ctx context.Context, userID int64, linkURL string) error {
	log := r.log.WithFields(logrus.Fields{
		"user_id": userID,
		"url":     linkURL,
	})
	log.Info("Attempting to delete link")

	key := generateLinkKey(userID, linkURL)
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		log.WithError(err).Error("Failed to delete link from BadgerDB")
		return fmt.Errorf("failed to delete link %s for user %d: %w", linkURL, userID, err)
	}

	log.Info("Link deleted successfully")
	return nil
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
