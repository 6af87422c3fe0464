package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/r0zar/amm-price-engine/business/oracle/app"
)

// Ensure Bolt implements CacheStore.
var _ app.CacheStore = (*Bolt)(nil)

var bucketName = []byte("oracle")

// envelope wraps a stored value with its expiry deadline.
type envelope struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"` // zero = no expiry
}

// Bolt is a bbolt-backed cache store. It keeps the anchor-price backup slot
// and the oracle health record across restarts.
type Bolt struct {
	db *bbolt.DB
}

// NewBolt opens (or creates) the store at path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store at %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Get returns the stored bytes for key. Expired entries are reported as absent.
func (b *Bolt) Get(_ context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		ok    bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil {
			return nil
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("corrupt entry for %s: %w", key, err)
		}
		if !env.ExpiresAt.IsZero() && time.Now().After(env.ExpiresAt) {
			return nil
		}

		value = make([]byte, len(env.Value))
		copy(value, env.Value)
		ok = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, ok, nil
}

// Set stores value under key. A non-positive ttl means no expiry.
func (b *Bolt) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	env := envelope{Value: value}
	if ttl > 0 {
		env.ExpiresAt = time.Now().Add(ttl)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
}

// Close closes the underlying database.
func (b *Bolt) Close() error {
	return b.db.Close()
}
