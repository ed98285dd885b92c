package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/orrn/printsim/internal/config"
	"github.com/orrn/printsim/internal/core"
	"github.com/orrn/printsim/internal/db"
)

const (
	settingsKeyAutoProcess  = "auto_process"
	settingsKeyTickPeriodMS = "tick_period_ms"
	settingsKeyArchiveDays  = "archive_days"
)

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (*db.Setting, error)
	SetSetting(ctx context.Context, key, value string) error
}

type SettingsResponse struct {
	AutoProcess     bool  `json:"automatic_processing_enabled"`
	TickPeriodMS    int64 `json:"tick_period_ms"`
	MinTickPeriodMS int64 `json:"min_tick_period_ms"`
	MaxTickPeriodMS int64 `json:"max_tick_period_ms"`
}

type UpdateSettingsRequest struct {
	AutoProcess  *bool  `json:"automatic_processing_enabled"`
	TickPeriodMS *int64 `json:"tick_period_ms"`
}

type SettingsHandler struct {
	engine   *core.Engine
	settings SettingsStore
	config   *config.Config
	logger   logrus.FieldLogger
}

func NewSettingsHandler(engine *core.Engine, settings SettingsStore, cfg *config.Config, logger logrus.FieldLogger) *SettingsHandler {
	return &SettingsHandler{
		engine:   engine,
		settings: settings,
		config:   cfg,
		logger:   logger.WithField("component", "settings"),
	}
}

func (h *SettingsHandler) current() SettingsResponse {
	return SettingsResponse{
		AutoProcess:     h.engine.AutoProcess(),
		TickPeriodMS:    h.engine.TickPeriod().Milliseconds(),
		MinTickPeriodMS: core.MinTickPeriod.Milliseconds(),
		MaxTickPeriodMS: core.MaxTickPeriod.Milliseconds(),
	}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.current())
}

func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	ctx := c.Request.Context()

	if req.TickPeriodMS != nil {
		period := time.Duration(*req.TickPeriodMS) * time.Millisecond
		if r := h.engine.SetTickPeriod(period); !r.OK() {
			c.JSON(resultStatus(r), ErrorResponse{
				Error:   r.String(),
				Message: fmt.Sprintf("Tick period must be between %s and %s", core.MinTickPeriod, core.MaxTickPeriod),
			})
			return
		}
		h.persist(ctx, settingsKeyTickPeriodMS, strconv.FormatInt(*req.TickPeriodMS, 10))
	}

	if req.AutoProcess != nil {
		h.engine.SetAutoProcess(*req.AutoProcess)
		h.persist(ctx, settingsKeyAutoProcess, strconv.FormatBool(*req.AutoProcess))
	}

	c.JSON(http.StatusOK, h.current())
}

func (h *SettingsHandler) persist(ctx context.Context, key, value string) {
	if h.settings == nil {
		return
	}
	if err := h.settings.SetSetting(ctx, key, value); err != nil {
		h.logger.WithError(err).WithField("key", key).Error("failed to persist setting")
	}
}

// GetServerConfig returns the effective configuration as dotted keys.
func (h *SettingsHandler) GetServerConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.config.Flatten())
}

func (h *SettingsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)
	r.GET("/settings/server", h.GetServerConfig)
}

// RestoreSettings applies operator settings saved by a previous run. Missing
// keys keep the engine's configured values; unparsable ones are skipped.
func RestoreSettings(ctx context.Context, settings SettingsStore, engine *core.Engine, logger logrus.FieldLogger) error {
	value, err := lookupSetting(ctx, settings, settingsKeyTickPeriodMS)
	if err != nil {
		return err
	}
	if value != "" {
		ms, err := cast.ToInt64E(value)
		if err != nil {
			logger.WithError(err).Warn("ignoring stored tick period")
		} else {
			engine.SetTickPeriod(time.Duration(ms) * time.Millisecond)
		}
	}

	value, err = lookupSetting(ctx, settings, settingsKeyAutoProcess)
	if err != nil {
		return err
	}
	if value != "" {
		enabled, err := cast.ToBoolE(value)
		if err != nil {
			logger.WithError(err).Warn("ignoring stored auto process flag")
		} else {
			engine.SetAutoProcess(enabled)
		}
	}

	return nil
}

// StoredArchiveDays returns the persisted archive retention, or zero.
func StoredArchiveDays(ctx context.Context, settings SettingsStore) (int, error) {
	value, err := lookupSetting(ctx, settings, settingsKeyArchiveDays)
	if err != nil || value == "" {
		return 0, err
	}
	days, err := cast.ToIntE(value)
	if err != nil {
		return 0, nil
	}
	return days, nil
}

func lookupSetting(ctx context.Context, settings SettingsStore, key string) (string, error) {
	s, err := settings.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return s.Value, nil
}
