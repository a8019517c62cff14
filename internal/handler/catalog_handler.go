package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/strategy-catalog/internal/backtest"
	"github.com/yourorg/strategy-catalog/internal/catalog"
	"github.com/yourorg/strategy-catalog/internal/model"
	"github.com/yourorg/strategy-catalog/internal/utils"
)

// CatalogHandler exposes the strategy catalog over HTTP
type CatalogHandler struct {
	store        *catalog.Store
	orchestrator *backtest.Orchestrator
	logger       *zap.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(store *catalog.Store, orchestrator *backtest.Orchestrator, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		store:        store,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// RegisterRoutes mounts the catalog routes on a router group
func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	strategies := rg.Group("/strategies")
	{
		strategies.GET("", h.ListStrategies)
		strategies.POST("", h.CreateStrategy)
		strategies.POST("/refresh", h.RefreshCatalog)
		strategies.GET("/:id", h.GetStrategy)
		strategies.PUT("/:id", h.RenameStrategy)
		strategies.DELETE("/:id", h.DeleteStrategy)
		strategies.GET("/:id/export", h.ExportStrategy)

		// Name editing
		strategies.POST("/:id/rename/begin", h.BeginRename)
		strategies.PUT("/:id/rename/draft", h.SetDraft)
		strategies.POST("/:id/rename/commit", h.CommitRename)
		strategies.POST("/:id/rename/cancel", h.CancelRename)

		// Backtests
		strategies.POST("/:id/backtest", h.RunBacktest)
		strategies.GET("/:id/backtest", h.GetBacktest)
		strategies.POST("/:id/backtest/abandon", h.AbandonBacktest)

		// Intraday simulation
		strategies.POST("/:id/simulate", h.Simulate)
	}
}

// ListStrategies handles listing the catalog in remote order
// GET /api/v1/strategies
func (h *CatalogHandler) ListStrategies(c *gin.Context) {
	page, pagination := utils.Paginate(h.store.List(), utils.PageFromQuery(c, 100, 500))
	utils.SendPaginatedResponse(c, http.StatusOK, page, pagination)
}

// RefreshCatalog handles reloading the catalog from the remote store
// POST /api/v1/strategies/refresh
func (h *CatalogHandler) RefreshCatalog(c *gin.Context) {
	if err := h.store.Load(c.Request.Context()); err != nil {
		h.respondError(c, "Failed to refresh catalog", err)
		return
	}
	utils.SendDataResponse(c, http.StatusOK, gin.H{"count": h.store.Len()})
}

// CreateStrategy handles creating a new strategy
// POST /api/v1/strategies
func (h *CatalogHandler) CreateStrategy(c *gin.Context) {
	var draft model.StrategyDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	strategy, err := h.store.Create(c.Request.Context(), draft)
	if err != nil {
		h.respondError(c, "Failed to create strategy", err)
		return
	}

	utils.SendDataResponse(c, http.StatusCreated, strategy)
}

// GetStrategy handles retrieving one catalog entry
// GET /api/v1/strategies/{id}
func (h *CatalogHandler) GetStrategy(c *gin.Context) {
	entry, err := h.store.Get(strategyID(c))
	if err != nil {
		h.respondError(c, "Failed to get strategy", err)
		return
	}
	utils.SendDataResponse(c, http.StatusOK, entry)
}

// RenameStrategy handles a direct rename
// PUT /api/v1/strategies/{id}
func (h *CatalogHandler) RenameStrategy(c *gin.Context) {
	var request model.RenameStrategyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	id := strategyID(c)
	if err := h.store.Rename(c.Request.Context(), id, request.Name); err != nil {
		h.respondError(c, "Failed to rename strategy", err)
		return
	}

	h.sendEntry(c, id)
}

// DeleteStrategy handles removing a strategy
// DELETE /api/v1/strategies/{id}
func (h *CatalogHandler) DeleteStrategy(c *gin.Context) {
	if err := h.store.Remove(c.Request.Context(), strategyID(c)); err != nil {
		h.respondError(c, "Failed to delete strategy", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportStrategy handles downloading a strategy document
// GET /api/v1/strategies/{id}/export
func (h *CatalogHandler) ExportStrategy(c *gin.Context) {
	id := strategyID(c)

	doc, err := h.store.Export(id)
	if err != nil {
		h.respondError(c, "Failed to export strategy", err)
		return
	}

	// Ids come from the remote store and may need quoting
	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": fmt.Sprintf("strategy-%s.json", id),
	})
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, "application/json", doc)
}

// BeginRename handles entering name editing
// POST /api/v1/strategies/{id}/rename/begin
func (h *CatalogHandler) BeginRename(c *gin.Context) {
	view, err := h.store.BeginRename(strategyID(c))
	if err != nil {
		h.respondError(c, "Failed to begin rename", err)
		return
	}
	utils.SendDataResponse(c, http.StatusOK, view)
}

// SetDraft handles updating the draft name
// PUT /api/v1/strategies/{id}/rename/draft
func (h *CatalogHandler) SetDraft(c *gin.Context) {
	var request model.RenameStrategyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.store.SetDraft(strategyID(c), request.Name)
	if err != nil {
		h.respondError(c, "Failed to update draft", err)
		return
	}
	utils.SendDataResponse(c, http.StatusOK, view)
}

// CommitRename handles submitting the draft name
// POST /api/v1/strategies/{id}/rename/commit
func (h *CatalogHandler) CommitRename(c *gin.Context) {
	id := strategyID(c)
	if err := h.store.CommitRename(c.Request.Context(), id); err != nil {
		h.respondError(c, "Failed to commit rename", err)
		return
	}
	h.sendEntry(c, id)
}

// CancelRename handles discarding the draft name
// POST /api/v1/strategies/{id}/rename/cancel
func (h *CatalogHandler) CancelRename(c *gin.Context) {
	id := strategyID(c)
	if err := h.store.CancelRename(id); err != nil {
		h.respondError(c, "Failed to cancel rename", err)
		return
	}
	h.sendEntry(c, id)
}

// RunBacktest handles starting a backtest. The body is optional.
// POST /api/v1/strategies/{id}/backtest
func (h *CatalogHandler) RunBacktest(c *gin.Context) {
	var overrides model.BacktestOverrides
	if err := c.ShouldBindJSON(&overrides); err != nil && !errors.Is(err, io.EOF) {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	started, err := h.orchestrator.Run(strategyID(c), &overrides)
	if err != nil {
		h.respondError(c, "Failed to start backtest", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"started": started})
}

// GetBacktest handles reading the backtest slot
// GET /api/v1/strategies/{id}/backtest
func (h *CatalogHandler) GetBacktest(c *gin.Context) {
	entry, err := h.store.Get(strategyID(c))
	if err != nil {
		h.respondError(c, "Failed to get backtest", err)
		return
	}
	utils.SendDataResponse(c, http.StatusOK, entry.Backtest)
}

// AbandonBacktest handles releasing a stuck backtest
// POST /api/v1/strategies/{id}/backtest/abandon
func (h *CatalogHandler) AbandonBacktest(c *gin.Context) {
	abandoned, err := h.orchestrator.Abandon(strategyID(c))
	if err != nil {
		h.respondError(c, "Failed to abandon backtest", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"abandoned": abandoned})
}

// Simulate handles an intraday replay and answers with its outcome.
// The body is optional.
// POST /api/v1/strategies/{id}/simulate
func (h *CatalogHandler) Simulate(c *gin.Context) {
	var overrides model.BacktestOverrides
	if err := c.ShouldBindJSON(&overrides); err != nil && !errors.Is(err, io.EOF) {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.orchestrator.Simulate(c.Request.Context(), strategyID(c), &overrides)
	if err != nil {
		h.respondError(c, "Failed to run simulation", err)
		return
	}

	utils.SendDataResponse(c, http.StatusOK, result)
}

func (h *CatalogHandler) sendEntry(c *gin.Context, id model.StrategyID) {
	entry, err := h.store.Get(id)
	if err != nil {
		h.respondError(c, "Failed to get strategy", err)
		return
	}
	utils.SendDataResponse(c, http.StatusOK, entry)
}

// respondError maps catalog errors to status codes
func (h *CatalogHandler) respondError(c *gin.Context, msg string, err error) {
	var validationErr *model.ValidationError
	var remoteErr *model.RemoteError

	switch {
	case errors.As(err, &validationErr):
		utils.SendErrorResponse(c, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, model.ErrStrategyNotFound):
		utils.SendErrorResponse(c, http.StatusNotFound, "Strategy not found")
	case errors.Is(err, model.ErrNotRenaming):
		utils.SendErrorResponse(c, http.StatusConflict, err.Error())
	case errors.As(err, &remoteErr):
		h.logger.Error(msg, zap.String("strategy_id", c.Param("id")), zap.Error(err))
		utils.SendErrorResponse(c, http.StatusBadGateway, remoteErr.Error())
	default:
		h.logger.Error(msg, zap.String("strategy_id", c.Param("id")), zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, msg)
	}
}

func strategyID(c *gin.Context) model.StrategyID {
	return model.StrategyID(c.Param("id"))
}
