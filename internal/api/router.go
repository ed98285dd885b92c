package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/orrn/printsim/internal/api/handlers"
	"github.com/orrn/printsim/internal/api/middleware"
	"github.com/orrn/printsim/internal/archive"
	"github.com/orrn/printsim/internal/config"
	"github.com/orrn/printsim/internal/core"
	"github.com/orrn/printsim/internal/db"
	"github.com/orrn/printsim/internal/webhook"
)

type Dependencies struct {
	Engine   *core.Engine
	Store    *db.Store
	Archiver *archive.Archiver
	Webhooks *webhook.WebhookSender
	Config   *config.Config
	Logger   logrus.FieldLogger

	// Streams is built by NewRouter when nil.
	Streams *handlers.StreamHandler
}

// NewRouter assembles the HTTP API. Everything under /api except the auth
// endpoints requires an operator session when auth is enabled.
func NewRouter(ctx context.Context, deps Dependencies) (*gin.Engine, error) {
	auth, err := middleware.NewAuthMiddleware(ctx, deps.Store.Settings, middleware.AuthConfig{
		Enabled:       deps.Config.Auth.Enabled,
		TokenDuration: deps.Config.Auth.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise auth: %w", err)
	}

	limiter := middleware.NewRateLimiter(deps.Config.RateLimit.RequestsPerSecond, deps.Config.RateLimit.Burst)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(deps.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "revision": deps.Engine.Revision()})
	})

	apiGroup := r.Group("/api")
	auth.RegisterRoutes(apiGroup)

	protected := apiGroup.Group("", auth.RequireAuth())
	streams := deps.Streams
	if streams == nil {
		streams = handlers.NewStreamHandler(deps.Engine)
	}
	streams.RegisterRoutes(protected)
	handlers.NewDashboardHandler(deps.Engine, deps.Store.History, deps.Logger).RegisterRoutes(protected)
	handlers.NewJobHandler(deps.Engine, limiter.Middleware()).RegisterRoutes(protected)
	handlers.NewPrinterHandler(deps.Engine).RegisterRoutes(protected)
	handlers.NewSettingsHandler(deps.Engine, deps.Store.Settings, deps.Config, deps.Logger).RegisterRoutes(protected)
	handlers.NewHistoryHandler(deps.Engine, deps.Store.History).RegisterRoutes(protected)
	handlers.NewLogHandler(deps.Engine, deps.Store.Events).RegisterRoutes(protected)
	handlers.NewWebhookHandler(deps.Store.Webhooks, deps.Webhooks).RegisterRoutes(protected)
	if deps.Archiver != nil {
		handlers.NewArchiveHandler(deps.Archiver, deps.Store.Settings, deps.Logger).RegisterRoutes(protected)
	}

	return r, nil
}
