package router_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/wasilisafish/proposal-builder/internal/handler"
	"github.com/wasilisafish/proposal-builder/internal/metrics"
	"github.com/wasilisafish/proposal-builder/internal/middleware"
	"github.com/wasilisafish/proposal-builder/internal/router"
	"github.com/wasilisafish/proposal-builder/mocks"
)

func TestSetup_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := router.Setup(router.Deps{
		Logger:     logger,
		Metrics:    metrics.New(),
		Limiter:    middleware.NewClientLimiter(1, 1),
		Extraction: handler.NewExtractionHandler(new(mocks.MockExtractionService), 10<<20, logger),
		Export:     handler.NewExportHandler(logger),
		Health:     handler.NewHealthHandler(),
	})

	routes := map[string]bool{}
	for _, ri := range r.Routes() {
		routes[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"POST /api/extract-policy",
		"POST /api/v1/extractions",
		"POST /api/v1/extractions/export",
		"GET /healthz",
		"GET /readyz",
		"GET /metrics",
	} {
		assert.True(t, routes[want], want)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
