package client

import (
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	PrefHasOnboarded = "hasOnboarded"
	PrefUserEmail    = "userEmail"
	PrefUserUID      = "userUid"
)

var prefsBucket = []byte("prefs")

// Prefs is a small string key-value store kept on disk between runs.
type Prefs struct {
	db *bolt.DB
}

func OpenPrefs(path string) (*Prefs, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(prefsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Prefs{db: db}, nil
}

// Get returns the value and whether the key is set.
func (p *Prefs) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := p.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(prefsBucket).Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	return value, found, err
}

func (p *Prefs) Set(key, value string) error {
	return p.MultiSet(map[string]string{key: value})
}

// MultiSet writes every pair in one transaction.
func (p *Prefs) MultiSet(values map[string]string) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(prefsBucket)
		for k, v := range values {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove deletes the keys; missing keys are ignored.
func (p *Prefs) Remove(keys ...string) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(prefsBucket)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Prefs) CompleteOnboarding() error {
	return p.Set(PrefHasOnboarded, "true")
}

func (p *Prefs) HasOnboarded() (bool, error) {
	v, _, err := p.Get(PrefHasOnboarded)
	return v == "true", err
}

// RememberUser stores the signed-in user's email and id.
func (p *Prefs) RememberUser(email, uid string) error {
	return p.MultiSet(map[string]string{
		PrefUserEmail: email,
		PrefUserUID:   uid,
	})
}

// RememberedUser returns the stored email and id, empty when signed out.
func (p *Prefs) RememberedUser() (email, uid string, err error) {
	if email, _, err = p.Get(PrefUserEmail); err != nil {
		return "", "", err
	}
	uid, _, err = p.Get(PrefUserUID)
	return email, uid, err
}

// Forget drops the remembered user. The onboarding flag is kept.
func (p *Prefs) Forget() error {
	return p.Remove(PrefUserEmail, PrefUserUID)
}

func (p *Prefs) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
