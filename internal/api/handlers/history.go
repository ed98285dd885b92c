package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printsim/internal/core"
	"github.com/orrn/printsim/internal/db"
	"github.com/orrn/printsim/internal/export"
)

type HistoryStore interface {
	ListHistory(ctx context.Context, filter db.HistoryFilter) ([]*db.HistoryRecord, error)
	CountHistory(ctx context.Context) (int64, error)
}

type HistoryQuery struct {
	Search string `form:"search"`
}

type ArchivedHistoryQuery struct {
	Search    string `form:"search"`
	PrinterID int64  `form:"printer_id"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset    int    `form:"offset" binding:"omitempty,min=0"`
}

type ArchivedHistoryResponse struct {
	Records []*db.HistoryRecord `json:"records"`
	Total   int64               `json:"total"`
}

// HistoryHandler serves completed jobs: the engine's bounded in-memory
// history and the unbounded audit copy in sqlite.
type HistoryHandler struct {
	engine  *core.Engine
	history HistoryStore
}

func NewHistoryHandler(engine *core.Engine, history HistoryStore) *HistoryHandler {
	return &HistoryHandler{engine: engine, history: history}
}

func (h *HistoryHandler) ListHistory(c *gin.Context) {
	var query HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		validationError(c, err)
		return
	}

	jobs := export.Filter(h.engine.Snapshot().Completed, query.Search)
	if jobs == nil {
		jobs = []core.Job{}
	}
	c.JSON(http.StatusOK, JobsResponse{Jobs: jobs, Count: len(jobs)})
}

func (h *HistoryHandler) ExportHistory(c *gin.Context) {
	var query HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		validationError(c, err)
		return
	}

	jobs := export.Filter(h.engine.Snapshot().Completed, query.Search)

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename))
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, jobs); err != nil {
		_ = c.Error(err)
	}
}

func (h *HistoryHandler) ClearHistory(c *gin.Context) {
	n := h.engine.ClearHistory()
	c.JSON(http.StatusOK, ClearResponse{Removed: n, Revision: h.engine.Revision()})
}

func (h *HistoryHandler) ListArchivedHistory(c *gin.Context) {
	var query ArchivedHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		validationError(c, err)
		return
	}

	ctx := c.Request.Context()
	records, err := h.history.ListHistory(ctx, db.HistoryFilter{
		Search:    query.Search,
		PrinterID: query.PrinterID,
		Limit:     query.Limit,
		Offset:    query.Offset,
	})
	if err != nil {
		databaseError(c, "Failed to retrieve job history")
		return
	}
	total, err := h.history.CountHistory(ctx)
	if err != nil {
		databaseError(c, "Failed to count job history")
		return
	}

	if records == nil {
		records = []*db.HistoryRecord{}
	}
	c.JSON(http.StatusOK, ArchivedHistoryResponse{Records: records, Total: total})
}

func (h *HistoryHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/history", h.ListHistory)
	r.GET("/history/export", h.ExportHistory)
	r.GET("/history/archive", h.ListArchivedHistory)
	r.DELETE("/history", h.ClearHistory)
}
