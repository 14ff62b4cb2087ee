package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/carverdev/projhub/internal/testutil"
)

func TestHealthMountedUnderAPI(t *testing.T) {
	db := testutil.SetupTestDB(t)
	deps := DBDeps{MongoClient: db.Client(), MongoDatabase: db}
	appCfg := AppConfig{
		JWTSecret:   "routes-test-secret-0123456789ABCDEF",
		FrontendURL: "http://localhost:3000",
	}

	handler, err := BuildHandler(nil, appCfg, deps, zap.NewNop())
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/health status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /health status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
