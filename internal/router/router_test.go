package router

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/carbonlog/internal/db"
	"github.com/carbonlog/internal/handler"
	"github.com/carbonlog/internal/service"
	"github.com/gin-gonic/gin"
)

var testDBSeq atomic.Int64

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	gdb, err := db.Open(db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	api := handler.NewAPI(gdb, service.SystemSettings{}, nil)
	r, err := SetupRouter(api, Options{SessionSecret: "test-secret"})
	if err != nil {
		t.Fatalf("failed to setup router: %v", err)
	}
	return r
}

func TestSetupRouterPing(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "pong") {
		t.Fatalf("unexpected body, got %q", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestHealthCheckReportsDatabase(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	r := newTestRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/user"},
		{http.MethodGet, "/api/dashboard"},
		{http.MethodGet, "/api/activities"},
		{http.MethodPost, "/api/activities"},
		{http.MethodGet, "/api/stats/weekly"},
		{http.MethodPost, "/api/challenges/1/join"},
		{http.MethodPatch, "/api/user-challenges/1/progress"},
		{http.MethodGet, "/api/products/barcode/8901234567890"},
		{http.MethodPost, "/api/products"},
		{http.MethodGet, "/api/ai/eco-tips"},
	}

	for _, tt := range paths {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString("{}")))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tt.method, tt.path, rr.Code)
		}
	}
}

func TestPublicRoutesAreOpen(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/api/factors", "/api/challenges", "/api/auth/session"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestRegisterSetsSessionCookie(t *testing.T) {
	r := newTestRouter(t)

	body := `{"username":"alice","password":"secret123","first_name":"Alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var sessionCookie *http.Cookie
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == sessionName {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil {
		t.Fatalf("expected %s cookie to be set", sessionName)
	}
	if !sessionCookie.HttpOnly {
		t.Fatalf("expected session cookie to be HttpOnly")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(sessionCookie)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Fatalf("user payload must not expose password: %s", rr.Body.String())
	}
}

func TestWithCORSAllowsConfiguredOrigin(t *testing.T) {
	r := newTestRouter(t)
	h := WithCORS(r, []string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodOptions, "/api/factors", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials to be allowed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin for foreign origin: %q", got)
	}
}

func TestWithCORSWithoutOriginsIsPassthrough(t *testing.T) {
	r := newTestRouter(t)
	if h := WithCORS(r, nil); h != http.Handler(r) {
		t.Fatalf("expected handler to be returned unchanged")
	}
}
