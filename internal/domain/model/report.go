package model

import "time"

// CleanupResult is the before/after delta of one cleanup pass.
type CleanupResult struct {
	CleanedItems int           `json:"cleaned_items"`
	FreedSpace   int64         `json:"freed_space"`
	Duration     time.Duration `json:"duration"`
	Before       StoreStats    `json:"before"`
	After        StoreStats    `json:"after"`
}

// ImageCacheStats reports in-process handles plus store aggregates.
type ImageCacheStats struct {
	MemoryHandles int        `json:"memory_handles"`
	Store         StoreStats `json:"store"`
}

// TileCacheStats is derived from store aggregates.
type TileCacheStats struct {
	TotalTiles      int   `json:"total_tiles"`
	TotalSize       int64 `json:"total_size"`
	AverageTileSize int64 `json:"average_tile_size"`
}

// TileCoord identifies a slippy-map tile.
type TileCoord struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// TilePreloadReport summarizes a tile neighborhood preload.
type TilePreloadReport struct {
	Requested int `json:"requested"`
	Loaded    int `json:"loaded"`
	Failed    int `json:"failed"`
}

// BatchReport summarizes a best-effort batch load.
type BatchReport struct {
	Requested int `json:"requested"`
	Loaded    int `json:"loaded"`
	Failed    int `json:"failed"`
}

// Preload task names.
const (
	PreloadTaskImages = "images"
	PreloadTaskTiles  = "tiles"
	PreloadTaskFonts  = "fonts"
	PreloadTaskIcons  = "icons"
)

// PreloadTaskResult is the settled outcome of one preload task.
type PreloadTaskResult struct {
	Task     string        `json:"task"`
	TimedOut bool          `json:"timed_out"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// PreloadReport summarizes a PreloadAll call.
type PreloadReport struct {
	Skipped  bool                `json:"skipped"`
	Offline  bool                `json:"offline"`
	Progress int                 `json:"progress"`
	Tasks    []PreloadTaskResult `json:"tasks,omitempty"`
	Duration time.Duration       `json:"duration"`
}
