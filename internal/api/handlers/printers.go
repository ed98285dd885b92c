package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printsim/internal/core"
)

type PrinterResponse struct {
	core.Printer
	CurrentJob *core.Job `json:"current_job,omitempty"`
}

type PrinterHandler struct {
	engine *core.Engine
}

func NewPrinterHandler(engine *core.Engine) *PrinterHandler {
	return &PrinterHandler{engine: engine}
}

func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	snap := h.engine.Snapshot()
	responses := make([]PrinterResponse, 0, len(snap.Printers))
	for _, p := range snap.Printers {
		responses = append(responses, withCurrentJob(p, snap.ActiveJobs))
	}
	c.JSON(http.StatusOK, responses)
}

func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	id, ok := parseID(c, "printer")
	if !ok {
		return
	}

	printer, err := h.engine.Printer(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   core.ResultNotFound.String(),
			Message: "Printer not found",
		})
		return
	}

	c.JSON(http.StatusOK, withCurrentJob(printer, h.engine.Snapshot().ActiveJobs))
}

func (h *PrinterHandler) TogglePrinter(c *gin.Context) {
	id, ok := parseID(c, "printer")
	if !ok {
		return
	}

	r := h.engine.TogglePrinter(id)
	if !r.OK() {
		respondResult(c, h.engine, r, nil)
		return
	}

	printer, err := h.engine.Printer(id)
	if err != nil {
		respondResult(c, h.engine, core.ResultNotFound, nil)
		return
	}
	c.JSON(http.StatusOK, withCurrentJob(printer, h.engine.Snapshot().ActiveJobs))
}

func withCurrentJob(p core.Printer, active []core.Job) PrinterResponse {
	resp := PrinterResponse{Printer: p}
	for i := range active {
		if active[i].PrinterID == p.ID {
			job := active[i]
			resp.CurrentJob = &job
			break
		}
	}
	return resp
}

func (h *PrinterHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/printers", h.ListPrinters)
	r.GET("/printers/:id", h.GetPrinter)
	r.POST("/printers/:id/toggle", h.TogglePrinter)
}
