package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/orrn/printsim/internal/core"
)

const recentLogLimit = 10

type DashboardStats struct {
	QueueDepth          int   `json:"queue_depth"`
	DelayedJobs         int   `json:"delayed_jobs"`
	ProcessingJobs      int   `json:"processing_jobs"`
	CompletedJobs       int   `json:"completed_jobs"`
	ArchivedCompletions int64 `json:"archived_completions"`
	TotalPrinters       int   `json:"total_printers"`
	OnlinePrinters      int   `json:"online_printers"`
	OfflinePrinters     int   `json:"offline_printers"`
	MaintenancePrinters int   `json:"maintenance_printers"`
	ErrorPrinters       int   `json:"error_printers"`
	TotalJobsProcessed  int64 `json:"total_jobs_processed"`
}

type PrinterWithStatus struct {
	PrinterResponse
	StatusClass string  `json:"status_class"`
	CanPrint    bool    `json:"can_print"`
	Progress    float64 `json:"progress"`
}

type DashboardData struct {
	Revision     uint64              `json:"revision"`
	AutoProcess  bool                `json:"automatic_processing_enabled"`
	TickPeriodMS int64               `json:"tick_period_ms"`
	Stats        DashboardStats      `json:"stats"`
	Printers     []PrinterWithStatus `json:"printers"`
	NextJob      *core.Job           `json:"next_job,omitempty"`
	RecentLogs   []string            `json:"recent_logs"`
}

type DashboardHandler struct {
	engine  *core.Engine
	history HistoryStore
	logger  logrus.FieldLogger
}

func NewDashboardHandler(engine *core.Engine, history HistoryStore, logger logrus.FieldLogger) *DashboardHandler {
	return &DashboardHandler{
		engine:  engine,
		history: history,
		logger:  logger.WithField("component", "dashboard"),
	}
}

func (h *DashboardHandler) Dashboard(c *gin.Context) {
	snap := h.engine.Snapshot()

	data := DashboardData{
		Revision:     snap.Revision,
		AutoProcess:  snap.AutoProcess,
		TickPeriodMS: snap.TickMillis,
		Stats:        dashboardStats(snap),
		Printers:     make([]PrinterWithStatus, 0, len(snap.Printers)),
		RecentLogs:   snap.LogEntries,
	}
	if len(data.RecentLogs) > recentLogLimit {
		data.RecentLogs = data.RecentLogs[:recentLogLimit]
	}
	if len(snap.QueuedJobs) > 0 {
		next := snap.QueuedJobs[0]
		data.NextJob = &next
	}

	if h.history != nil {
		n, err := h.history.CountHistory(c.Request.Context())
		if err != nil {
			h.logger.WithError(err).Warn("failed to count archived completions")
		}
		data.Stats.ArchivedCompletions = n
	}

	for _, p := range snap.Printers {
		ps := PrinterWithStatus{
			PrinterResponse: withCurrentJob(p, snap.ActiveJobs),
			StatusClass:     statusClass(p.Status),
		}
		ps.CanPrint = p.Status == core.PrinterStatusOnline && ps.CurrentJob == nil
		if ps.CurrentJob != nil {
			ps.Progress = ps.CurrentJob.Progress
		}
		data.Printers = append(data.Printers, ps)
	}

	c.JSON(http.StatusOK, data)
}

func dashboardStats(snap core.Snapshot) DashboardStats {
	stats := DashboardStats{
		QueueDepth:     len(snap.QueuedJobs),
		ProcessingJobs: len(snap.ActiveJobs),
		CompletedJobs:  len(snap.Completed),
		TotalPrinters:  len(snap.Printers),
	}
	for _, j := range snap.QueuedJobs {
		if j.Status == core.JobStatusDelayed {
			stats.DelayedJobs++
		}
	}
	for _, p := range snap.Printers {
		stats.TotalJobsProcessed += p.TotalJobsProcessed
		switch p.Status {
		case core.PrinterStatusOnline:
			stats.OnlinePrinters++
		case core.PrinterStatusOffline:
			stats.OfflinePrinters++
		case core.PrinterStatusMaintenance:
			stats.MaintenancePrinters++
		case core.PrinterStatusError:
			stats.ErrorPrinters++
		}
	}
	return stats
}

func statusClass(s core.PrinterStatus) string {
	switch s {
	case core.PrinterStatusOnline:
		return "success"
	case core.PrinterStatusMaintenance:
		return "warning"
	case core.PrinterStatusError:
		return "danger"
	default:
		return "secondary"
	}
}

func (h *DashboardHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.Dashboard)
}
