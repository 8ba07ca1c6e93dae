package buffer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store persists buffered writes in a BoltDB bucket.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = "buffer"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, bucket: []byte(bucket)}, nil
}

// Enqueue stores an item under its priority-ordered key.
func (s *Store) Enqueue(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(s.bucket), &item)
	})
}

// GetBatch returns up to limit items in replay order without removing them.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			item.key = append([]byte(nil), k...)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove deletes an item previously returned by GetBatch, or looks it up by ID.
func (s *Store) Remove(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if len(item.key) > 0 {
			return b.Delete(item.key)
		}
		key, err := findByID(b, item.ID)
		if err != nil || key == nil {
			return err
		}
		return b.Delete(key)
	})
}

// Retry bumps the retry count in place so the item keeps its position
// ahead of later writes to the same entity.
func (s *Store) Retry(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		key := item.key
		if len(key) == 0 {
			found, err := findByID(b, item.ID)
			if err != nil {
				return err
			}
			key = found
		}
		value := b.Get(key)
		if value == nil {
			return nil
		}
		var stored Item
		if err := json.Unmarshal(value, &stored); err != nil {
			return err
		}
		stored.Retries++
		payload, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		return b.Put(key, payload)
	})
}

// Size returns the number of buffered items.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes items older than olderThan and reports how many were dropped.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if item.Timestamp.Before(olderThan) {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func put(b *bolt.Bucket, item *Item) error {
	item.normalize()
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	item.key = item.storageKey()
	return b.Put(item.key, payload)
}

func findByID(b *bolt.Bucket, id string) ([]byte, error) {
	if id == "" {
		return nil, nil
	}
	var found []byte
	err := b.ForEach(func(k, v []byte) error {
		if found != nil {
			return nil
		}
		var item Item
		if err := json.Unmarshal(v, &item); err == nil && item.ID == id {
			found = append([]byte(nil), k...)
		}
		return nil
	})
	return found, err
}
