// Package http exposes the gateway's admin API under /_sw and hands every other request to the
// network intermediary.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/guttosm/offline-cache/internal/events"
	"github.com/guttosm/offline-cache/internal/fetch"
	"github.com/guttosm/offline-cache/internal/handles"
	"github.com/guttosm/offline-cache/internal/intermediary"
	"github.com/guttosm/offline-cache/internal/service"
	"github.com/guttosm/offline-cache/internal/strategy"
)

// Intermediary is the part of the request interceptor the admin API drives.
type Intermediary interface {
	HandleMessage(ctx context.Context, msg intermediary.Message) (intermediary.Reply, error)
	State() intermediary.State
	Version() string
	CacheSize(ctx context.Context) (int64, error)
}

// StatsSource reports store aggregates.
type StatsSource interface {
	Stats(ctx context.Context) (model.StoreStats, error)
}

// Handler serves the admin API.
type Handler struct {
	Store        StatsSource
	Images       *service.ImageCache
	Tiles        *service.TileCache
	Cleanup      *service.CleanupService
	Preload      *service.PreloadService
	Fonts        *service.FontLibrary
	Handles      *handles.Registry
	Intermediary Intermediary
	Runner       *strategy.Runner
	Bus          *events.Bus
}

// StatsResponse is the body of GET /_sw/stats.
type StatsResponse struct {
	State           string                `json:"state"`
	Version         string                `json:"version"`
	PartitionsSize  int64                 `json:"partitions_size"`
	Store           model.StoreStats      `json:"store"`
	Images          model.ImageCacheStats `json:"images"`
	Tiles           model.TileCacheStats  `json:"tiles"`
	Background      strategy.RunnerStats  `json:"background"`
	PreloadProgress int                   `json:"preload_progress"`
	AutoCleanup     bool                  `json:"auto_cleanup"`
}

// HandleResponse carries an in-process handle URL.
type HandleResponse struct {
	URL string `json:"url"`
}

// TilePreloadRequest is the body of POST /_sw/tiles/preload.
type TilePreloadRequest struct {
	Center [2]float64 `json:"center"`
	Zoom   int        `json:"zoom"`
	Radius int        `json:"radius"`
}

// Valid reports whether the request names a zoom on the grid and a sane radius.
func (r TilePreloadRequest) Valid() bool {
	return r.Zoom >= service.MinZoom && r.Zoom <= service.MaxZoom && r.Radius >= 0 && r.Radius <= service.MaxRadius
}

// Message handles POST /_sw/message.
//
// @Summary      Send a page command
// @Description  Runs SKIP_WAITING, CLEAN_CACHE or GET_CACHE_SIZE against the interceptor.
// @Tags         Intermediary
// @Accept       json
// @Produce      json
// @Param        request body intermediary.Message true "Command"
// @Success      200 {object} intermediary.Reply
// @Failure      400 {object} dto.ErrorResponse "Unknown or malformed command"
// @Failure      500 {object} dto.ErrorResponse
// @Router       /_sw/message [post]
func (h *Handler) Message(c *gin.Context) {
	builder := NewResponseBuilder(c)

	msg, err := BindJSON[intermediary.Message](c)
	if err != nil {
		builder.Error(http.StatusBadRequest, "Invalid message", err)
		return
	}

	reply, err := h.Intermediary.HandleMessage(c.Request.Context(), *msg)
	switch {
	case errors.Is(err, intermediary.ErrUnknownMessage):
		builder.Error(http.StatusBadRequest, err.Error(), nil)
	case err != nil:
		builder.Error(http.StatusInternalServerError, "Message failed", err)
	default:
		c.JSON(http.StatusOK, reply)
	}
}

// Stats handles GET /_sw/stats.
//
// @Summary      Cache statistics
// @Tags         Cache
// @Produce      json
// @Success      200 {object} dto.SuccessResponse{data=StatsResponse}
// @Failure      500 {object} dto.ErrorResponse
// @Router       /_sw/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	builder := NewResponseBuilder(c)

	storeStats, err := h.Store.Stats(ctx)
	if err != nil {
		builder.Error(http.StatusInternalServerError, "Could not read store stats", err)
		return
	}
	imageStats, err := h.Images.Stats(ctx)
	if err != nil {
		builder.Error(http.StatusInternalServerError, "Could not read image stats", err)
		return
	}
	tileStats, err := h.Tiles.Stats(ctx)
	if err != nil {
		builder.Error(http.StatusInternalServerError, "Could not read tile stats", err)
		return
	}
	partitions, err := h.Intermediary.CacheSize(ctx)
	if err != nil {
		builder.Error(http.StatusInternalServerError, "Could not read partition sizes", err)
		return
	}

	resp := StatsResponse{
		State:           h.Intermediary.State().String(),
		Version:         h.Intermediary.Version(),
		PartitionsSize:  partitions,
		Store:           storeStats,
		Images:          imageStats,
		Tiles:           tileStats,
		PreloadProgress: h.Preload.Progress(),
		AutoCleanup:     h.Cleanup.Running(),
	}
	if h.Runner != nil {
		resp.Background = h.Runner.Stats()
	}
	builder.SuccessOK(resp)
}

// PerformCleanup handles POST /_sw/cleanup.
//
// @Summary      Run a cleanup pass
// @Description  Deletes expired entries and shrinks the store to 70% of its budget when over it.
// @Tags         Cache
// @Produce      json
// @Success      200 {object} dto.SuccessResponse{data=model.CleanupResult}
// @Failure      500 {object} dto.ErrorResponse
// @Router       /_sw/cleanup [post]
func (h *Handler) PerformCleanup(c *gin.Context) {
	builder := NewResponseBuilder(c)

	result, err := h.Cleanup.PerformCleanup(c.Request.Context())
	if err != nil {
		builder.Error(http.StatusInternalServerError, "Cleanup failed", err)
		return
	}
	builder.SuccessOK(result)
}

// ClearCache handles DELETE /_sw/cache.
//
// @Summary      Clear every cached entry
// @Tags         Cache
// @Success      204
// @Failure      500 {object} dto.ErrorResponse
// @Router       /_sw/cache [delete]
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.Cleanup.ClearAllCache(c.Request.Context()); err != nil {
		NewResponseBuilder(c).Error(http.StatusInternalServerError, "Clearing the cache failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PreloadAll handles POST /_sw/preload.
//
// @Summary      Preload critical resources
// @Description  Returns 202 when a preload is already running.
// @Tags         Preload
// @Produce      json
// @Success      200 {object} dto.SuccessResponse{data=model.PreloadReport}
// @Success      202 {object} dto.SuccessResponse{data=model.PreloadReport}
// @Router       /_sw/preload [post]
func (h *Handler) PreloadAll(c *gin.Context) {
	report := h.Preload.PreloadAll(c.Request.Context())
	if report.Skipped {
		NewResponseBuilder(c).SuccessAccepted(report)
		return
	}
	NewResponseBuilder(c).SuccessOK(report)
}

// PreloadProgress handles GET /_sw/preload/progress.
//
// @Summary      Preload progress
// @Tags         Preload
// @Produce      json
// @Success      200 {object} dto.SuccessResponse
// @Router       /_sw/preload/progress [get]
func (h *Handler) PreloadProgress(c *gin.Context) {
	NewResponseBuilder(c).SuccessOK(gin.H{
		"progress": h.Preload.Progress(),
		"running":  h.Preload.Running(),
	})
}

// UpdatePreloadConfig handles PUT /_sw/preload/config.
//
// @Summary      Replace the preload configuration
// @Tags         Preload
// @Accept       json
// @Produce      json
// @Param        request body service.PreloadConfig true "Preload configuration"
// @Success      200 {object} dto.SuccessResponse{data=service.PreloadConfig}
// @Failure      400 {object} dto.ErrorResponse "Malformed or out of range configuration"
// @Router       /_sw/preload/config [put]
func (h *Handler) UpdatePreloadConfig(c *gin.Context) {
	builder := NewResponseBuilder(c)

	cfg, err := BindJSON[service.PreloadConfig](c)
	if err != nil {
		builder.Error(http.StatusBadRequest, "Invalid preload configuration", err)
		return
	}
	h.Preload.UpdateConfig(*cfg)
	builder.SuccessOK(h.Preload.Config())
}

// LoadImage handles GET /_sw/images.
//
// @Summary      Load an image through the cache
// @Tags         Images
// @Produce      json
// @Param        url query string true "Image URL"
// @Param        max_width query int false "Maximum width"
// @Param        max_height query int false "Maximum height"
// @Param        quality query int false "Encoding quality (1-100)"
// @Param        format query string false "Output format"
// @Success      200 {object} dto.SuccessResponse{data=HandleResponse}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      502 {object} dto.ErrorResponse
// @Failure      503 {object} dto.ErrorResponse
// @Failure      504 {object} dto.ErrorResponse
// @Router       /_sw/images [get]
func (h *Handler) LoadImage(c *gin.Context) {
	builder := NewResponseBuilder(c)

	url := c.Query("url")
	if url == "" {
		builder.Error(http.StatusBadRequest, "url is required", nil)
		return
	}
	var opts service.ImageOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		builder.Error(http.StatusBadRequest, "Invalid image options", err)
		return
	}

	handle, err := h.Images.LoadImage(c.Request.Context(), url, opts)
	if err != nil {
		h.upstreamError(c, err)
		return
	}
	builder.SuccessOK(HandleResponse{URL: handle})
}

// GetTile handles GET /_sw/tiles/:z/:x/:y.
//
// @Summary      Load a map tile through the cache
// @Tags         Tiles
// @Produce      json
// @Param        z path int true "Zoom"
// @Param        x path int true "Column"
// @Param        y path int true "Row"
// @Param        source query string false "Tile source template"
// @Success      200 {object} dto.SuccessResponse{data=HandleResponse}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      503 {object} dto.ErrorResponse
// @Router       /_sw/tiles/{z}/{x}/{y} [get]
func (h *Handler) GetTile(c *gin.Context) {
	builder := NewResponseBuilder(c)

	var req service.TileRequest
	if err := c.ShouldBindUri(&req); err != nil {
		builder.Error(http.StatusBadRequest, "Invalid tile coordinates", err)
		return
	}
	req.Source = c.Query("source")

	handle, err := h.Tiles.GetTile(c.Request.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidTile):
		builder.Error(http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrNoTileSource):
		builder.Error(http.StatusServiceUnavailable, err.Error(), nil)
	case err != nil:
		h.upstreamError(c, err)
	default:
		builder.SuccessOK(HandleResponse{URL: handle})
	}
}

// PreloadTiles handles POST /_sw/tiles/preload.
//
// @Summary      Preload the tiles around a point
// @Tags         Tiles
// @Accept       json
// @Produce      json
// @Param        request body TilePreloadRequest true "Center [lng, lat], zoom and radius"
// @Success      200 {object} dto.SuccessResponse{data=model.TilePreloadReport}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      503 {object} dto.ErrorResponse
// @Router       /_sw/tiles/preload [post]
func (h *Handler) PreloadTiles(c *gin.Context) {
	builder := NewResponseBuilder(c)

	req, err := BindJSON[TilePreloadRequest](c)
	if err != nil {
		builder.Error(http.StatusBadRequest, "Invalid tile preload request", err)
		return
	}

	report, err := h.Tiles.PreloadTiles(c.Request.Context(), req.Center, req.Zoom, req.Radius)
	if err != nil {
		builder.Error(http.StatusServiceUnavailable, err.Error(), err)
		return
	}
	builder.SuccessOK(report)
}

// Blob handles GET /_sw/blob/:id.
//
// @Summary      Serve an in-process handle
// @Tags         Handles
// @Produce      octet-stream
// @Param        id path string true "Handle id"
// @Success      200 {file} binary
// @Failure      404 {object} dto.ErrorResponse
// @Router       /_sw/blob/{id} [get]
func (h *Handler) Blob(c *gin.Context) {
	blob, ok := h.Handles.Get(c.Param("id"))
	if !ok {
		NewResponseBuilder(c).Error(http.StatusNotFound, "Handle not found or revoked", nil)
		return
	}
	c.Header("Cache-Control", "private, max-age=31536000, immutable")
	c.Data(http.StatusOK, blob.ContentType, blob.Data)
}

// ListFonts handles GET /_sw/fonts.
//
// @Summary      List registered fonts
// @Tags         Fonts
// @Produce      json
// @Success      200 {object} dto.SuccessResponse
// @Router       /_sw/fonts [get]
func (h *Handler) ListFonts(c *gin.Context) {
	NewResponseBuilder(c).SuccessOK(h.Fonts.Fonts())
}

// Events handles GET /_sw/events as a server-sent event stream.
//
// @Summary      Cache event stream
// @Description  Server-sent events: sw-update-available, cache-cleaned, preload-progress.
// @Tags         Events
// @Produce      text/event-stream
// @Success      200
// @Router       /_sw/events [get]
func (h *Handler) Events(c *gin.Context) {
	ch, unsubscribe := h.Bus.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// upstreamError maps a failed load to a gateway status.
func (h *Handler) upstreamError(c *gin.Context, err error) {
	builder := NewResponseBuilder(c)

	var statusErr *fetch.StatusError
	switch {
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusNotFound {
			builder.Error(http.StatusNotFound, err.Error(), nil)
			return
		}
		builder.Error(http.StatusBadGateway, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		builder.Error(http.StatusGatewayTimeout, err.Error(), nil)
	default:
		builder.Error(http.StatusServiceUnavailable, err.Error(), nil)
	}
}
