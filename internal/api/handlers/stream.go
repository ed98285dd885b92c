package handlers

import (
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printsim/internal/core"
)

const snapshotEvent = "snapshot"

// StreamHandler serves the snapshot a presentation layer renders from, either
// on request or pushed after every engine revision.
type StreamHandler struct {
	engine    *core.Engine
	done      chan struct{}
	closeOnce sync.Once
}

func NewStreamHandler(engine *core.Engine) *StreamHandler {
	return &StreamHandler{engine: engine, done: make(chan struct{})}
}

// Close ends every open stream. http.Server.Shutdown does not cancel request
// contexts, so serve registers this with RegisterOnShutdown.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *StreamHandler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

// Stream sends the current snapshot and then one snapshot per notification.
// Notifications dropped for a slow client are covered by the next one.
func (h *StreamHandler) Stream(c *gin.Context) {
	sub := h.engine.Subscribe(core.DefaultSubscriptionBuffer)
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(snapshotEvent, h.engine.Snapshot())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-h.done:
			return false
		case _, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(snapshotEvent, h.engine.Snapshot())
			return true
		}
	})
}

func (h *StreamHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/snapshot", h.GetSnapshot)
	r.GET("/stream", h.Stream)
}
