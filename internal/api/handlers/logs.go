package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printsim/internal/core"
	"github.com/orrn/printsim/internal/db"
)

type EventStore interface {
	ListEvents(ctx context.Context, filter db.EventFilter) ([]*db.EventRecord, error)
	CountEvents(ctx context.Context) (int64, error)
}

type LogsResponse struct {
	Entries []string     `json:"entries"`
	Events  []core.Event `json:"events"`
}

type ArchivedEventsQuery struct {
	Kind   string `form:"kind"`
	JobID  string `form:"job_id"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type ArchivedEventsResponse struct {
	Events []*db.EventRecord `json:"events"`
	Total  int64             `json:"total"`
}

type LogHandler struct {
	engine *core.Engine
	events EventStore
}

func NewLogHandler(engine *core.Engine, events EventStore) *LogHandler {
	return &LogHandler{engine: engine, events: events}
}

func (h *LogHandler) ListLogs(c *gin.Context) {
	events := h.engine.Events()
	entries := make([]string, 0, len(events))
	for _, ev := range events {
		entries = append(entries, ev.String())
	}
	c.JSON(http.StatusOK, LogsResponse{Entries: entries, Events: events})
}

func (h *LogHandler) ListArchivedEvents(c *gin.Context) {
	var query ArchivedEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		validationError(c, err)
		return
	}

	ctx := c.Request.Context()
	records, err := h.events.ListEvents(ctx, db.EventFilter{
		Kind:   query.Kind,
		JobID:  query.JobID,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		databaseError(c, "Failed to retrieve events")
		return
	}
	total, err := h.events.CountEvents(ctx)
	if err != nil {
		databaseError(c, "Failed to count events")
		return
	}

	if records == nil {
		records = []*db.EventRecord{}
	}
	c.JSON(http.StatusOK, ArchivedEventsResponse{Events: records, Total: total})
}

func (h *LogHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/logs", h.ListLogs)
	r.GET("/logs/archive", h.ListArchivedEvents)
}
