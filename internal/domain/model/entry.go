// Package model provides domain models for the offline cache gateway.
package model

import "time"

// Entry types. Advisory only: the store never enforces them.
const (
	TypeImage = "image"
	TypeTile  = "tile"
	TypeData  = "data"
	TypeFont  = "font"
)

// EntryMeta describes a stored entry without its payload.
type EntryMeta struct {
	Key string `json:"key" bson:"_id" msgpack:"key"`
	// Timestamp is the insertion time in milliseconds since the Unix epoch.
	Timestamp int64  `json:"timestamp" bson:"timestamp" msgpack:"ts"`
	Size      int64  `json:"size" bson:"size" msgpack:"size"`
	Type      string `json:"type" bson:"type" msgpack:"type"`
}

// Time returns the insertion time.
func (m EntryMeta) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Age returns how old the entry is relative to now.
func (m EntryMeta) Age(now time.Time) time.Duration {
	return now.Sub(m.Time())
}

// CacheEntry is the unit stored in the persistent store.
type CacheEntry struct {
	EntryMeta
	Data []byte `json:"-"`
}

// NewCacheEntry builds an entry whose size matches the payload length.
func NewCacheEntry(key string, data []byte, entryType string, at time.Time) *CacheEntry {
	return &CacheEntry{
		EntryMeta: EntryMeta{
			Key:       key,
			Timestamp: at.UnixMilli(),
			Size:      int64(len(data)),
			Type:      entryType,
		},
		Data: data,
	}
}

// StoreStats is the aggregate view of the store. All fields are zero when the store is empty.
type StoreStats struct {
	TotalSize  int64 `json:"total_size"`
	ItemCount  int   `json:"item_count"`
	OldestItem int64 `json:"oldest_item"`
	NewestItem int64 `json:"newest_item"`
}

// CleanupCount reports what a deletion pass removed.
type CleanupCount struct {
	Items int   `json:"items"`
	Bytes int64 `json:"bytes"`
}

// Add accumulates another count.
func (c CleanupCount) Add(o CleanupCount) CleanupCount {
	return CleanupCount{Items: c.Items + o.Items, Bytes: c.Bytes + o.Bytes}
}
