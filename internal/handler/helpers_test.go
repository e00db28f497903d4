package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carbonlog/internal/db"
	"github.com/carbonlog/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// 2024-05-15 为周三
var testNow = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

var testDBSeq atomic.Int64

type testServer struct {
	api    *API
	engine *gin.Engine
	db     *gorm.DB
}

func setupTestAPI(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler_%d?mode=memory&cache=shared", testDBSeq.Add(1))
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

	if err := RegisterValidators(); err != nil {
		t.Fatalf("failed to register validators: %v", err)
	}

	api := NewAPI(gdb, service.SystemSettings{}, nil)
	api.SetClock(func() time.Time { return testNow })

	r := gin.New()
	r.Use(sessions.Sessions("carbonlog_session", cookie.NewStore([]byte("test-secret"))))
	r.POST("/login", api.Login)
	r.POST("/register", api.Register)
	r.POST("/logout", api.Logout)
	r.GET("/session", api.Session)
	r.GET("/factors", api.ListFactors)
	r.GET("/challenges", api.ListChallenges)
	r.POST("/activities/preview", api.PreviewActivity)
	r.POST("/activities/parse", api.ParseTranscript)

	auth := r.Group("")
	auth.Use(AuthRequired())
	auth.GET("/user", api.CurrentUser)
	auth.GET("/dashboard", api.Dashboard)
	auth.GET("/activities", api.ListActivities)
	auth.POST("/activities", api.CreateActivity)
	auth.GET("/activities/recent", api.RecentActivities)
	auth.GET("/activities/weekly", api.WeeklyActivities)
	auth.GET("/stats/weekly", api.WeeklyStats)
	auth.POST("/challenges/:id/join", api.JoinChallenge)
	auth.GET("/user-challenges", api.ListUserChallenges)
	auth.PATCH("/user-challenges/:id/progress", api.UpdateChallengeProgress)
	auth.GET("/products/barcode/:barcode", api.LookupBarcode)
	auth.GET("/products/recent", api.RecentProducts)
	auth.POST("/products", api.ContributeProduct)
	auth.GET("/ai/eco-tips", api.EcoTips)
	auth.GET("/ai/footprint-analysis", api.FootprintAnalysis)
	auth.GET("/ai/custom-challenge", api.CustomChallenge)
	auth.POST("/ai/analyze-impact", api.AnalyzeImpact)
	auth.GET("/ai/status", api.AIStatus)

	return &testServer{api: api, engine: r, db: gdb}
}

// do 发送请求并返回响应；body 非 nil 时按 JSON 编码
func (s *testServer) do(t *testing.T, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// loginAs 注册用户并返回会话 Cookie
func (s *testServer) loginAs(t *testing.T, username string) (*db.User, []*http.Cookie) {
	t.Helper()

	w := s.do(t, http.MethodPost, "/register", map[string]any{
		"username":   username,
		"password":   "secret123",
		"first_name": "Alex",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}

	var user db.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	return &user, w.Result().Cookies()
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return payload
}
