package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/guttosm/offline-cache/internal/domain/model"
)

// Valid slippy-map zoom range.
const (
	MinZoom = 0
	MaxZoom = 22
)

// MaxRadius bounds a neighborhood preload to (2*MaxRadius+1)^2 tiles per zoom.
const MaxRadius = 10

// LonLatToTile projects a WGS84 coordinate onto the tile grid at zoom using Web Mercator.
// Results are clamped to [0, 2^zoom).
func LonLatToTile(lng, lat float64, zoom int) (x, y int) {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180

	fx := (lng + 180) / 360 * n
	fy := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n

	limit := int(n) - 1
	return clamp(int(math.Floor(fx)), 0, limit), clamp(int(math.Floor(fy)), 0, limit)
}

// TileNeighborhood lists the tiles within radius of the tile containing center, row by row.
// Tiles outside the grid are skipped.
func TileNeighborhood(center [2]float64, zoom, radius int) []model.TileCoord {
	cx, cy := LonLatToTile(center[0], center[1], zoom)
	n := 1 << zoom
	radius = max(radius, 0)

	tiles := make([]model.TileCoord, 0, (2*radius+1)*(2*radius+1))
	for y := cy - radius; y <= cy+radius; y++ {
		if y < 0 || y >= n {
			continue
		}
		for x := cx - radius; x <= cx+radius; x++ {
			if x < 0 || x >= n {
				continue
			}
			tiles = append(tiles, model.TileCoord{Z: zoom, X: x, Y: y})
		}
	}
	return tiles
}

// TileURL expands the {source}/{z}/{x}/{y}.png template.
func TileURL(source string, t model.TileCoord) string {
	return fmt.Sprintf("%s/%d/%d/%d.png", strings.TrimRight(source, "/"), t.Z, t.X, t.Y)
}

// TileKey returns the store key of a tile from source.
func TileKey(source string, t model.TileCoord) string {
	return fmt.Sprintf("tile:%s:%d:%d:%d", hashString(source), t.Z, t.X, t.Y)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
