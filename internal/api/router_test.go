package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"gotest.tools/v3/assert"

	"github.com/orrn/printsim/internal/archive"
	"github.com/orrn/printsim/internal/config"
	"github.com/orrn/printsim/internal/core"
	"github.com/orrn/printsim/internal/db"
	"github.com/orrn/printsim/internal/logging"
	"github.com/orrn/printsim/internal/webhook"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "printsim.db")
	cfg.Database.ArchivePath = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	store, err := db.Open(db.Config{Path: cfg.Database.Path})
	assert.NilError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := core.NewEngine(core.Options{Logger: logging.Discard()})
	assert.NilError(t, err)

	archiver, err := archive.NewArchiver(store, archive.ArchiveConfig{ArchivePath: cfg.Database.ArchivePath}, logging.Discard())
	assert.NilError(t, err)

	r, err := NewRouter(context.Background(), Dependencies{
		Engine:   engine,
		Store:    store,
		Archiver: archiver,
		Webhooks: webhook.NewWebhookSender(store.Webhooks, webhook.WebhookConfig{}, logging.Discard()),
		Config:   cfg,
		Logger:   logging.Discard(),
	})
	assert.NilError(t, err)
	return r
}

func request(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterRequiresOperatorSession(t *testing.T) {
	r := newRouter(t, nil)

	assert.Equal(t, request(r, http.MethodGet, "/healthz", "", nil).Code, http.StatusOK)
	assert.Equal(t, request(r, http.MethodGet, "/api/printers", "", nil).Code, http.StatusUnauthorized)
	assert.Equal(t, request(r, http.MethodPost, "/api/jobs", "", map[string]interface{}{"type": "pdf", "priority": 1}).Code, http.StatusUnauthorized)

	w := request(r, http.MethodPost, "/api/auth/setup", "", map[string]string{"password": "operator1"})
	assert.Equal(t, w.Code, http.StatusOK)
	var setup struct {
		Token string `json:"token"`
	}
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &setup))

	w = request(r, http.MethodPost, "/api/jobs", setup.Token, map[string]interface{}{"type": "pdf", "priority": 1})
	assert.Equal(t, w.Code, http.StatusCreated)
	assert.Check(t, w.Header().Get("X-Request-ID") != "")

	assert.Equal(t, request(r, http.MethodGet, "/api/printers", setup.Token, nil).Code, http.StatusOK)
	assert.Equal(t, request(r, http.MethodGet, "/api/archives", setup.Token, nil).Code, http.StatusOK)
}

func TestRouterWithoutAuthAndRateLimit(t *testing.T) {
	r := newRouter(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = false
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 2
	})

	var printers []map[string]interface{}
	w := request(r, http.MethodGet, "/api/printers", "", nil)
	assert.Equal(t, w.Code, http.StatusOK)
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &printers))
	assert.Equal(t, len(printers), 5)

	job := map[string]interface{}{"type": "doc", "priority": 2}
	assert.Equal(t, request(r, http.MethodPost, "/api/jobs", "", job).Code, http.StatusCreated)
	assert.Equal(t, request(r, http.MethodPost, "/api/jobs", "", job).Code, http.StatusCreated)
	assert.Equal(t, request(r, http.MethodPost, "/api/jobs", "", job).Code, http.StatusTooManyRequests)

	assert.Equal(t, request(r, http.MethodGet, "/api/jobs", "", nil).Code, http.StatusOK)
}
