package store

import (
	"bytes"
	"encoding/gob"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"catalog/internal/domain"
)

var (
	bucketCache = []byte("cache")
	bucketState = []byte("state")
	keyRecord   = []byte("record")
	keyState    = []byte("last_seen")
)

// CacheStore persists the catalog cache record and the invalidation
// tracker's last-seen state in a single bbolt file. The file is opened
// per operation so Invalidate can simply remove it; access is
// single-writer by construction (the orchestrator serializes calls).
type CacheStore struct {
	path   string
	logger *zap.Logger
}

func NewCacheStore(path string, logger *zap.Logger) *CacheStore {
	return &CacheStore{path: path, logger: logger}
}

// Load returns the cached record, or nil when the file is absent,
// unreadable, corrupt or the record has expired. Read failures are a
// cold cache, never an error.
func (s *CacheStore) Load() *domain.CacheRecord {
	var rec *domain.CacheRecord
	ok := s.view(func(tx *bolt.Tx) {
		b := tx.Bucket(bucketCache)
		if b == nil {
			return
		}
		data := b.Get(keyRecord)
		if data == nil {
			return
		}
		var r domain.CacheRecord
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
			s.logger.Warn("cache record did not deserialize, treating as cold", zap.Error(err))
			return
		}
		rec = &r
	})
	if !ok || rec == nil {
		return nil
	}
	if rec.Expired(time.Now()) {
		return nil
	}
	return rec
}

// Save overwrites the cached record. bbolt commits the new value
// atomically, so a reader never observes a half-written record.
// Failures are logged and swallowed; a cache write must never fail the
// fetch that produced it.
func (s *CacheStore) Save(rec *domain.CacheRecord) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		s.logger.Error("serializing cache record", zap.Error(err))
		return
	}
	s.update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketCache)
		if err != nil {
			return err
		}
		return b.Put(keyRecord, buf.Bytes())
	})
}

// Invalidate deletes the backing file. A missing file is not an error.
func (s *CacheStore) Invalidate() {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("removing cache file", zap.Error(err))
	}
}

// LoadState returns the invalidation tracker's last-seen values, zero
// when none were recorded.
func (s *CacheStore) LoadState() domain.InvalidationState {
	var state domain.InvalidationState
	s.view(func(tx *bolt.Tx) {
		b := tx.Bucket(bucketState)
		if b == nil {
			return
		}
		data := b.Get(keyState)
		if data == nil {
			return
		}
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
			s.logger.Warn("invalidation state did not deserialize", zap.Error(err))
			state = domain.InvalidationState{}
		}
	})
	return state
}

// SaveState records the tracker's last-seen values.
func (s *CacheStore) SaveState(state domain.InvalidationState) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		s.logger.Error("serializing invalidation state", zap.Error(err))
		return
	}
	s.update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketState)
		if err != nil {
			return err
		}
		return b.Put(keyState, buf.Bytes())
	})
}

// view runs fn inside a read transaction. It reports false when the
// file could not be opened at all.
func (s *CacheStore) view(fn func(tx *bolt.Tx)) bool {
	if _, err := os.Stat(s.path); err != nil {
		return false
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		s.logger.Warn("opening cache file", zap.Error(err))
		return false
	}
	defer db.Close()
	_ = db.View(func(tx *bolt.Tx) error {
		fn(tx)
		return nil
	})
	return true
}

// update runs fn inside a write transaction, logging and swallowing
// any failure.
func (s *CacheStore) update(fn func(tx *bolt.Tx) error) {
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		s.logger.Error("opening cache file for write", zap.Error(err))
		return
	}
	defer db.Close()
	if err := db.Update(fn); err != nil {
		s.logger.Error("writing cache file", zap.Error(err))
	}
}
