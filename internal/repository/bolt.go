package repository

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/shamaton/msgpack/v2"
	bolt "go.etcd.io/bbolt"
)

// Bucket names for the bbolt database.
var (
	entriesBucket = []byte("entries")
	metaBucket    = []byte("meta")
	byTimeBucket  = []byte("by_time")
	byTypeBucket  = []byte("by_type")
)

// ErrNotOpen is returned when the repository is used before Open.
var ErrNotOpen = errors.New("repository not open")

// BoltConfig holds bbolt database configuration.
type BoltConfig struct {
	// Path is the database file. Its directory is created on Open.
	Path string
	// OpenTimeout bounds how long Open waits for the file lock.
	OpenTimeout time.Duration
	// NoSync skips fsync after each commit. Only for tests.
	NoSync bool
}

// DefaultBoltConfig returns the on-device defaults for path.
func DefaultBoltConfig(path string) BoltConfig {
	return BoltConfig{
		Path:        path,
		OpenTimeout: 5 * time.Second,
	}
}

// BoltRepository stores cache entries in a single bbolt file.
//
// Layout: entries (key -> data), meta (key -> msgpack EntryMeta),
// by_time (ts ‖ key -> nil) and by_type (type ‖ 0x00 ‖ key -> nil).
type BoltRepository struct {
	cfg BoltConfig
	mu  sync.RWMutex
	db  *bolt.DB
}

// NewBoltRepository creates a repository; call Open before use.
func NewBoltRepository(cfg BoltConfig) *BoltRepository {
	return &BoltRepository{cfg: cfg}
}

// Open opens the database file and creates the buckets.
func (r *BoltRepository) Open(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return nil
	}

	if dir := filepath.Dir(r.cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := bolt.Open(r.cfg.Path, 0o600, &bolt.Options{
		Timeout: r.cfg.OpenTimeout,
		NoSync:  r.cfg.NoSync,
	})
	if err != nil {
		return fmt.Errorf("failed to open store database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{entriesBucket, metaBucket, byTimeBucket, byTypeBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return err
	}

	r.db = db
	return nil
}

func (r *BoltRepository) handle() (*bolt.DB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return nil, ErrNotOpen
	}
	return r.db, nil
}

// Get returns the entry stored under key.
func (r *BoltRepository) Get(_ context.Context, key string) (*model.CacheEntry, error) {
	db, err := r.handle()
	if err != nil {
		return nil, err
	}

	var entry *model.CacheEntry
	err = db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(metaBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		meta, err := decodeMeta(raw)
		if err != nil {
			return err
		}
		data := tx.Bucket(entriesBucket).Get([]byte(key))
		// bbolt memory is only valid inside the transaction.
		entry = &model.CacheEntry{EntryMeta: meta, Data: bytes.Clone(data)}
		if entry.Data == nil {
			entry.Data = []byte{}
		}
		return nil
	})
	return entry, err
}

// Put upserts an entry and its index records.
func (r *BoltRepository) Put(_ context.Context, entry *model.CacheEntry) error {
	db, err := r.handle()
	if err != nil {
		return err
	}

	raw, err := msgpack.Marshal(entry.EntryMeta)
	if err != nil {
		return fmt.Errorf("failed to encode entry metadata: %w", err)
	}

	return db.Update(func(tx *bolt.Tx) error {
		key := []byte(entry.Key)
		if old := tx.Bucket(metaBucket).Get(key); old != nil {
			oldMeta, err := decodeMeta(old)
			if err != nil {
				return err
			}
			if err := deleteIndexes(tx, oldMeta); err != nil {
				return err
			}
		}
		if err := tx.Bucket(entriesBucket).Put(key, entry.Data); err != nil {
			return err
		}
		if err := tx.Bucket(metaBucket).Put(key, raw); err != nil {
			return err
		}
		if err := tx.Bucket(byTimeBucket).Put(timeIndexKey(entry.Timestamp, entry.Key), nil); err != nil {
			return err
		}
		return tx.Bucket(byTypeBucket).Put(typeIndexKey(entry.Type, entry.Key), nil)
	})
}

// Delete removes keys in a single transaction.
func (r *BoltRepository) Delete(_ context.Context, keys ...string) (model.CleanupCount, error) {
	var count model.CleanupCount
	if len(keys) == 0 {
		return count, nil
	}

	db, err := r.handle()
	if err != nil {
		return count, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, k := range keys {
			key := []byte(k)
			raw := tx.Bucket(metaBucket).Get(key)
			if raw == nil {
				continue
			}
			meta, err := decodeMeta(raw)
			if err != nil {
				return err
			}
			if err := deleteIndexes(tx, meta); err != nil {
				return err
			}
			if err := tx.Bucket(entriesBucket).Delete(key); err != nil {
				return err
			}
			if err := tx.Bucket(metaBucket).Delete(key); err != nil {
				return err
			}
			count.Items++
			count.Bytes += meta.Size
		}
		return nil
	})
	if err != nil {
		return model.CleanupCount{}, err
	}
	return count, nil
}

// List walks the timestamp index, or the type index when filter.Type is set.
func (r *BoltRepository) List(_ context.Context, filter ListFilter) ([]model.EntryMeta, error) {
	db, err := r.handle()
	if err != nil {
		return nil, err
	}

	var metas []model.EntryMeta
	err = db.View(func(tx *bolt.Tx) error {
		metaB := tx.Bucket(metaBucket)

		if filter.Type != "" {
			prefix := typeIndexKey(filter.Type, "")
			c := tx.Bucket(byTypeBucket).Cursor()
			for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
				raw := metaB.Get(k[len(prefix):])
				if raw == nil {
					continue
				}
				meta, err := decodeMeta(raw)
				if err != nil {
					return err
				}
				if filter.Matches(meta) {
					metas = append(metas, meta)
				}
			}
			sort.SliceStable(metas, func(i, j int) bool {
				return metas[i].Timestamp < metas[j].Timestamp
			})
			return nil
		}

		c := tx.Bucket(byTimeBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if len(k) < 8 {
				continue
			}
			raw := metaB.Get(k[8:])
			if raw == nil {
				continue
			}
			meta, err := decodeMeta(raw)
			if err != nil {
				return err
			}
			if filter.Matches(meta) {
				metas = append(metas, meta)
			}
		}
		return nil
	})
	return metas, err
}

// Clear drops and recreates every bucket.
func (r *BoltRepository) Clear(_ context.Context) error {
	db, err := r.handle()
	if err != nil {
		return err
	}

	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{entriesBucket, metaBucket, byTimeBucket, byTypeBucket} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Ping verifies the database is open.
func (r *BoltRepository) Ping(_ context.Context) error {
	db, err := r.handle()
	if err != nil {
		return err
	}
	return db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(entriesBucket) == nil {
			return fmt.Errorf("bucket %s missing", entriesBucket)
		}
		return nil
	})
}

// Close closes the database file.
func (r *BoltRepository) Close(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func decodeMeta(raw []byte) (model.EntryMeta, error) {
	var meta model.EntryMeta
	if err := msgpack.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("failed to decode entry metadata: %w", err)
	}
	return meta, nil
}

func deleteIndexes(tx *bolt.Tx, meta model.EntryMeta) error {
	if err := tx.Bucket(byTimeBucket).Delete(timeIndexKey(meta.Timestamp, meta.Key)); err != nil {
		return err
	}
	return tx.Bucket(byTypeBucket).Delete(typeIndexKey(meta.Type, meta.Key))
}

// timeIndexKey sorts by timestamp first; big-endian keeps byte order equal to numeric order.
func timeIndexKey(ts int64, key string) []byte {
	if ts < 0 {
		ts = 0
	}
	buf := make([]byte, 8+len(key))
	binary.BigEndian.PutUint64(buf, uint64(ts))
	copy(buf[8:], key)
	return buf
}

func typeIndexKey(entryType, key string) []byte {
	buf := make([]byte, 0, len(entryType)+1+len(key))
	buf = append(buf, entryType...)
	buf = append(buf, 0)
	return append(buf, key...)
}
