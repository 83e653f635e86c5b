package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	httpH "github.com/prismbi/prism-backend/internal/http/handlers"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

func TestNewServerServesConfiguredRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	t.Cleanup(log.Sync)

	srv := NewServer(RouterConfig{
		ServiceName:   "prism-backend-test",
		Log:           log,
		HealthHandler: httpH.NewHealthHandler(),
	})

	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthcheck status = %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("healthcheck body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unregistered route status = %d", rec.Code)
	}
}
