package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/orrn/printsim/internal/archive"
)

type ArchiveHandler struct {
	archiver *archive.Archiver
	settings SettingsStore
	logger   logrus.FieldLogger
}

func NewArchiveHandler(archiver *archive.Archiver, settings SettingsStore, logger logrus.FieldLogger) *ArchiveHandler {
	return &ArchiveHandler{
		archiver: archiver,
		settings: settings,
		logger:   logger.WithField("component", "archive"),
	}
}

type ArchiveListResponse struct {
	Archives []*archive.ArchiveFile `json:"archives"`
	Count    int                    `json:"count"`
}

func (h *ArchiveHandler) ListArchives(c *gin.Context) {
	archives, err := h.archiver.ListArchives(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "archive_error",
			Message: "Failed to list archives",
		})
		return
	}
	if archives == nil {
		archives = []*archive.ArchiveFile{}
	}

	c.JSON(http.StatusOK, ArchiveListResponse{
		Archives: archives,
		Count:    len(archives),
	})
}

type TriggerArchiveResponse struct {
	Message  string `json:"message"`
	Archived int64  `json:"archived"`
}

func (h *ArchiveHandler) TriggerArchive(c *gin.Context) {
	n, err := h.archiver.RunArchive(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("manual archive run failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "archive_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, TriggerArchiveResponse{Message: "archive completed", Archived: n})
}

func (h *ArchiveHandler) DeleteArchive(c *gin.Context) {
	err := h.archiver.DeleteArchive(c.Request.Context(), c.Param("name"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, archive.ErrInvalidName):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_name", Message: err.Error()})
	case errors.Is(err, archive.ErrArchiveNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "archive_error", Message: err.Error()})
	}
}

type ArchiveSettingsResponse struct {
	ArchivePath string `json:"archive_path"`
	ArchiveDays int    `json:"archive_days"`
}

func (h *ArchiveHandler) GetArchiveSettings(c *gin.Context) {
	c.JSON(http.StatusOK, ArchiveSettingsResponse{
		ArchivePath: h.archiver.GetArchivePath(),
		ArchiveDays: h.archiver.GetArchiveDays(),
	})
}

type UpdateArchiveSettingsRequest struct {
	ArchiveDays int `json:"archive_days" binding:"required,min=1,max=365"`
}

func (h *ArchiveHandler) UpdateArchiveSettings(c *gin.Context) {
	var req UpdateArchiveSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	h.archiver.SetArchiveDays(req.ArchiveDays)
	if err := h.settings.SetSetting(c.Request.Context(), settingsKeyArchiveDays, strconv.Itoa(req.ArchiveDays)); err != nil {
		h.logger.WithError(err).Error("failed to persist archive days")
	}

	c.JSON(http.StatusOK, ArchiveSettingsResponse{
		ArchivePath: h.archiver.GetArchivePath(),
		ArchiveDays: req.ArchiveDays,
	})
}

func (h *ArchiveHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/archives", h.ListArchives)
	r.POST("/archives/run", h.TriggerArchive)
	r.DELETE("/archives/:name", h.DeleteArchive)
	r.GET("/settings/archival", h.GetArchiveSettings)
	r.PUT("/settings/archival", h.UpdateArchiveSettings)
}
