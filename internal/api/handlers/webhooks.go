package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printsim/internal/core"
	"github.com/orrn/printsim/internal/db"
	"github.com/orrn/printsim/internal/webhook"
)

type WebhookStore interface {
	CreateWebhook(ctx context.Context, w *db.Webhook) error
	GetWebhookByID(ctx context.Context, id int64) (*db.Webhook, error)
	ListWebhooks(ctx context.Context) ([]*db.Webhook, error)
	UpdateWebhook(ctx context.Context, w *db.Webhook) error
	DeleteWebhook(ctx context.Context, id int64) error
}

type WebhookTester interface {
	SendTest(ctx context.Context, webhookID int64) (string, error)
}

type WebhookHandler struct {
	store  WebhookStore
	tester WebhookTester
}

type CreateWebhookRequest struct {
	Name   string   `json:"name" binding:"required"`
	URL    string   `json:"url" binding:"required,url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

type UpdateWebhookRequest struct {
	Name    string   `json:"name"`
	URL     string   `json:"url" binding:"omitempty,url"`
	Secret  string   `json:"secret"`
	Events  []string `json:"events"`
	Enabled *bool    `json:"enabled"`
}

type WebhookResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	HasSecret bool      `json:"has_secret"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

type TestWebhookResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DeliveryID string `json:"delivery_id,omitempty"`
}

func NewWebhookHandler(store WebhookStore, tester WebhookTester) *WebhookHandler {
	return &WebhookHandler{store: store, tester: tester}
}

func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	webhooks, err := h.store.ListWebhooks(c.Request.Context())
	if err != nil {
		databaseError(c, "Failed to retrieve webhooks")
		return
	}

	responses := make([]WebhookResponse, 0, len(webhooks))
	for _, w := range webhooks {
		responses = append(responses, webhookToResponse(w))
	}

	c.JSON(http.StatusOK, responses)
}

func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	eventsJSON, ok := encodeEvents(c, req.Events)
	if !ok {
		return
	}

	w := &db.Webhook{
		Name:       req.Name,
		URL:        req.URL,
		Secret:     req.Secret,
		EventsJSON: eventsJSON,
		Enabled:    true,
	}

	if err := h.store.CreateWebhook(c.Request.Context(), w); err != nil {
		databaseError(c, "Failed to create webhook")
		return
	}

	c.JSON(http.StatusCreated, webhookToResponse(w))
}

func (h *WebhookHandler) GetWebhook(c *gin.Context) {
	w, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, webhookToResponse(w))
}

func (h *WebhookHandler) UpdateWebhook(c *gin.Context) {
	w, ok := h.lookup(c)
	if !ok {
		return
	}

	var req UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	if req.Name != "" {
		w.Name = req.Name
	}
	if req.URL != "" {
		w.URL = req.URL
	}
	if req.Secret != "" {
		w.Secret = req.Secret
	}
	if req.Events != nil {
		eventsJSON, ok := encodeEvents(c, req.Events)
		if !ok {
			return
		}
		w.EventsJSON = eventsJSON
	}
	if req.Enabled != nil {
		w.Enabled = *req.Enabled
	}

	if err := h.store.UpdateWebhook(c.Request.Context(), w); err != nil {
		databaseError(c, "Failed to update webhook")
		return
	}

	c.JSON(http.StatusOK, webhookToResponse(w))
}

func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	id, ok := parseID(c, "webhook")
	if !ok {
		return
	}

	if err := h.store.DeleteWebhook(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			webhookNotFound(c)
			return
		}
		databaseError(c, "Failed to delete webhook")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *WebhookHandler) TestWebhook(c *gin.Context) {
	id, ok := parseID(c, "webhook")
	if !ok {
		return
	}

	deliveryID, err := h.tester.SendTest(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			webhookNotFound(c)
			return
		}
		c.JSON(http.StatusOK, TestWebhookResponse{
			Success:    false,
			Message:    fmt.Sprintf("Failed to send webhook: %v", err),
			DeliveryID: deliveryID,
		})
		return
	}

	c.JSON(http.StatusOK, TestWebhookResponse{
		Success:    true,
		Message:    "Webhook test successful",
		DeliveryID: deliveryID,
	})
}

func (h *WebhookHandler) lookup(c *gin.Context) (*db.Webhook, bool) {
	id, ok := parseID(c, "webhook")
	if !ok {
		return nil, false
	}

	w, err := h.store.GetWebhookByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			webhookNotFound(c)
			return nil, false
		}
		databaseError(c, "Failed to retrieve webhook")
		return nil, false
	}
	return w, true
}

func webhookNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: "Webhook not found",
	})
}

// encodeEvents validates event names and serialises them. An empty list
// subscribes to every event.
func encodeEvents(c *gin.Context, events []string) (string, bool) {
	if events == nil {
		events = []string{}
	}
	for _, event := range events {
		if event != "*" && !core.KnownEventKind(event) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_event",
				Message: fmt.Sprintf("Invalid event type: %s", event),
			})
			return "", false
		}
	}

	eventsJSON, err := json.Marshal(events)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "json_error",
			Message: "Failed to serialize events",
		})
		return "", false
	}
	return string(eventsJSON), true
}

func webhookToResponse(w *db.Webhook) WebhookResponse {
	events, _ := webhook.ParseEvents(w.EventsJSON)
	if events == nil {
		events = []string{}
	}

	return WebhookResponse{
		ID:        w.ID,
		Name:      w.Name,
		URL:       w.URL,
		Events:    events,
		HasSecret: w.Secret != "",
		Enabled:   w.Enabled,
		CreatedAt: w.CreatedAt,
	}
}

func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/webhooks", h.ListWebhooks)
	r.POST("/webhooks", h.CreateWebhook)
	r.GET("/webhooks/:id", h.GetWebhook)
	r.PUT("/webhooks/:id", h.UpdateWebhook)
	r.DELETE("/webhooks/:id", h.DeleteWebhook)
	r.POST("/webhooks/:id/test", h.TestWebhook)
}
