package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/pokedex/internal/logger"
	"github.com/timmy/pokedex/internal/service"
	"github.com/timmy/pokedex/internal/source"
)

// CatalogHandler runs the static catalog push on demand.
type CatalogHandler struct {
	ingestService *service.IngestService
	source        source.Source

	mu            sync.RWMutex
	isRunning     bool
	currentStats  *service.IngestStats
	lastRunTime   time.Time
	lastRunStatus string
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewCatalogHandler creates a new catalog handler.
// Parameters:
//   - ingestService: ingest service instance.
//   - src: catalog source; nil disables the push endpoint.
// Returns:
//   - *CatalogHandler: initialized handler.
func NewCatalogHandler(ingestService *service.IngestService, src source.Source) *CatalogHandler {
	return &CatalogHandler{
		ingestService: ingestService,
		source:        src,
	}
}

// CatalogPushRequest represents the catalog push API request.
type CatalogPushRequest struct {
	Limit int `json:"limit" binding:"min=0,max=10000"`
}

// CatalogStatusResponse represents the catalog push status.
type CatalogStatusResponse struct {
	IsRunning     bool                 `json:"is_running"`
	LastRunTime   string               `json:"last_run_time,omitempty"`
	LastRunStatus string               `json:"last_run_status,omitempty"`
	CurrentStats  *service.IngestStats `json:"current_stats,omitempty"`
}

// TriggerPush starts a catalog push in the background and returns 202.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CatalogHandler) TriggerPush(c *gin.Context) {
	ctx := c.Request.Context()

	var req CatalogPushRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	if h.source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "catalog source is not configured"})
		return
	}

	if !h.Start(ctx, req.Limit) {
		logger.CtxWarn(ctx, "Catalog push rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "catalog push is already running"})
		return
	}
	logger.CtxInfo(ctx, "Catalog push started: limit=%d, client_ip=%s", req.Limit, c.ClientIP())

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Catalog push started",
	})
}

// Start runs a catalog push in the background. The push outlives ctx and is only
// stopped by Wait. It reports false when a push is already running.
func (h *CatalogHandler) Start(ctx context.Context, limit int) bool {
	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		return false
	}
	pushCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.isRunning = true
	h.currentStats = nil
	h.cancel = cancel
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		defer cancel()
		stats, err := h.ingestService.PushCatalog(pushCtx, h.source, limit)

		h.mu.Lock()
		h.isRunning = false
		h.currentStats = stats
		h.lastRunTime = time.Now()
		h.cancel = nil
		if err != nil {
			h.lastRunStatus = "failed: " + err.Error()
		} else {
			h.lastRunStatus = "success"
		}
		h.mu.Unlock()

		if err != nil {
			logger.CtxError(pushCtx, "Catalog push failed: %v", err)
		}
	}()
	return true
}

// GetStatus returns the current catalog push status.
func (h *CatalogHandler) GetStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := CatalogStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		CurrentStats:  h.currentStats,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// Wait blocks until a running push finishes or ctx is done. On ctx expiry the
// push is cancelled and ctx.Err() is returned.
func (h *CatalogHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		h.mu.Lock()
		if h.cancel != nil {
			h.cancel()
		}
		h.mu.Unlock()
		return ctx.Err()
	}
}
