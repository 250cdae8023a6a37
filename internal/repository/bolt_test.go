//go:build !integration

package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBolt(t *testing.T) *BoltRepository {
	t.Helper()
	cfg := DefaultBoltConfig(filepath.Join(t.TempDir(), "nested", "cache.db"))
	cfg.NoSync = true
	repo := NewBoltRepository(cfg)
	require.NoError(t, repo.Open(context.Background()))
	t.Cleanup(func() { _ = repo.Close(context.Background()) })
	return repo
}

func entryAt(key string, size int, entryType string, ms int64) *model.CacheEntry {
	return model.NewCacheEntry(key, make([]byte, size), entryType, time.UnixMilli(ms))
}

func TestBoltRepository_NotOpen(t *testing.T) {
	repo := NewBoltRepository(DefaultBoltConfig(filepath.Join(t.TempDir(), "cache.db")))

	_, err := repo.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, repo.Put(context.Background(), entryAt("k", 1, model.TypeData, 1)), ErrNotOpen)
	assert.ErrorIs(t, repo.Ping(context.Background()), ErrNotOpen)
	assert.NoError(t, repo.Close(context.Background()))
}

func TestBoltRepository_OpenIsIdempotent(t *testing.T) {
	repo := newTestBolt(t)

	assert.NoError(t, repo.Open(context.Background()))
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestBoltRepository_PutGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestBolt(t)

	t.Run("missing key is nil without error", func(t *testing.T) {
		got, err := repo.Get(ctx, "absent")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("round trips payload and metadata", func(t *testing.T) {
		entry := model.NewCacheEntry("img:1", []byte("payload"), model.TypeImage, time.UnixMilli(1_700_000_000_000))
		require.NoError(t, repo.Put(ctx, entry))

		got, err := repo.Get(ctx, "img:1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, []byte("payload"), got.Data)
		assert.Equal(t, entry.EntryMeta, got.EntryMeta)
	})

	t.Run("empty payload is stored as empty, not nil", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, model.NewCacheEntry("empty", []byte{}, model.TypeData, time.UnixMilli(5))))

		got, err := repo.Get(ctx, "empty")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.NotNil(t, got.Data)
		assert.Len(t, got.Data, 0)
	})

	t.Run("overwrite replaces indexes", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, entryAt("dup", 10, model.TypeTile, 100)))
		require.NoError(t, repo.Put(ctx, entryAt("dup", 20, model.TypeImage, 200)))

		tiles, err := repo.List(ctx, ListFilter{Type: model.TypeTile})
		require.NoError(t, err)
		for _, m := range tiles {
			assert.NotEqual(t, "dup", m.Key)
		}

		all, err := repo.List(ctx, ListFilter{Prefix: "dup"})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, int64(20), all[0].Size)
		assert.Equal(t, int64(200), all[0].Timestamp)
	})
}

func TestBoltRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := newTestBolt(t)

	require.NoError(t, repo.Put(ctx, entryAt("tile:b", 1, model.TypeTile, 300)))
	require.NoError(t, repo.Put(ctx, entryAt("img:a", 2, model.TypeImage, 100)))
	require.NoError(t, repo.Put(ctx, entryAt("tile:a", 3, model.TypeTile, 200)))
	require.NoError(t, repo.Put(ctx, entryAt("sw:api:GET /x", 4, model.TypeData, 50)))

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{name: "all entries oldest first", filter: ListFilter{}, want: []string{"sw:api:GET /x", "img:a", "tile:a", "tile:b"}},
		{name: "by type", filter: ListFilter{Type: model.TypeTile}, want: []string{"tile:a", "tile:b"}},
		{name: "by prefix", filter: ListFilter{Prefix: "img:"}, want: []string{"img:a"}},
		{name: "prefix and type", filter: ListFilter{Prefix: "tile:b", Type: model.TypeTile}, want: []string{"tile:b"}},
		{name: "no match", filter: ListFilter{Type: model.TypeFont}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metas, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			var keys []string
			for _, m := range metas {
				keys = append(keys, m.Key)
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestBoltRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestBolt(t)

	require.NoError(t, repo.Put(ctx, entryAt("a", 10, model.TypeData, 1)))
	require.NoError(t, repo.Put(ctx, entryAt("b", 20, model.TypeData, 2)))

	count, err := repo.Delete(ctx, "a", "missing", "b")
	require.NoError(t, err)
	assert.Equal(t, model.CleanupCount{Items: 2, Bytes: 30}, count)

	metas, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, metas)

	count, err = repo.Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CleanupCount{}, count)
}

func TestBoltRepository_Clear(t *testing.T) {
	ctx := context.Background()
	repo := newTestBolt(t)

	require.NoError(t, repo.Put(ctx, entryAt("a", 10, model.TypeData, 1)))
	require.NoError(t, repo.Clear(ctx))

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Put(ctx, entryAt("b", 1, model.TypeData, 1)))
	metas, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}

func TestBoltRepository_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	first := NewBoltRepository(DefaultBoltConfig(path))
	require.NoError(t, first.Open(ctx))
	require.NoError(t, first.Put(ctx, entryAt("kept", 7, model.TypeFont, 42)))
	require.NoError(t, first.Close(ctx))

	second := NewBoltRepository(DefaultBoltConfig(path))
	require.NoError(t, second.Open(ctx))
	defer func() { _ = second.Close(ctx) }()

	got, err := second.Get(ctx, "kept")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.Size)
	assert.Equal(t, model.TypeFont, got.Type)
}

func TestTimeIndexKey_Ordering(t *testing.T) {
	early := timeIndexKey(255, "z")
	late := timeIndexKey(256, "a")

	assert.Less(t, string(early), string(late))
}

func TestListFilter_Matches(t *testing.T) {
	meta := model.EntryMeta{Key: "tile:abc:1:2:3", Type: model.TypeTile}

	assert.True(t, ListFilter{}.Matches(meta))
	assert.True(t, ListFilter{Prefix: "tile:"}.Matches(meta))
	assert.False(t, ListFilter{Prefix: "img:"}.Matches(meta))
	assert.False(t, ListFilter{Prefix: "tile:abc:1:2:3:4"}.Matches(meta))
	assert.False(t, ListFilter{Type: model.TypeImage}.Matches(meta))
}
