package router

import (
	"net/http"
	"time"

	"github.com/carbonlog/internal/handler"
	"github.com/carbonlog/internal/middleware"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const (
	sessionName   = "carbonlog_session"
	sessionMaxAge = 7 * 24 * time.Hour
)

// Options 描述路由所需的外部配置
type Options struct {
	SessionSecret  string
	SecureCookie   bool
	AllowedOrigins []string
	Logger         *zap.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) (*gin.Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(logger), middleware.Recovery())

	// 配置会话中间件
	secret := opts.SessionSecret
	if secret == "" {
		secret = "carbonlog-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(sessionMaxAge / time.Second),
		HttpOnly: true,
		Secure:   opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	r.GET("/healthz", api.HealthCheck)

	apiGroup := r.Group("/api")
	{
		auth := apiGroup.Group("/auth")
		{
			auth.POST("/register", api.Register)
			auth.POST("/login", api.Login)
			auth.POST("/logout", api.Logout)
			auth.GET("/session", api.Session)
		}

		// 无需登录即可查看的接口
		apiGroup.GET("/factors", api.ListFactors)
		apiGroup.GET("/challenges", api.ListChallenges)
		apiGroup.POST("/activities/preview", api.PreviewActivity)
		apiGroup.POST("/activities/parse", api.ParseTranscript)

		protected := apiGroup.Group("")
		protected.Use(handler.AuthRequired())
		{
			protected.GET("/user", api.CurrentUser)
			protected.GET("/dashboard", api.Dashboard)

			protected.GET("/activities", api.ListActivities)
			protected.POST("/activities", api.CreateActivity)
			protected.GET("/activities/recent", api.RecentActivities)
			protected.GET("/activities/weekly", api.WeeklyActivities)
			protected.GET("/stats/weekly", api.WeeklyStats)

			protected.POST("/challenges/:id/join", api.JoinChallenge)
			protected.GET("/user-challenges", api.ListUserChallenges)
			protected.PATCH("/user-challenges/:id/progress", api.UpdateChallengeProgress)

			protected.GET("/products/barcode/:barcode", api.LookupBarcode)
			protected.GET("/products/recent", api.RecentProducts)
			protected.POST("/products", api.ContributeProduct)

			ai := protected.Group("/ai")
			{
				ai.GET("/eco-tips", api.EcoTips)
				ai.GET("/footprint-analysis", api.FootprintAnalysis)
				ai.GET("/custom-challenge", api.CustomChallenge)
				ai.POST("/analyze-impact", api.AnalyzeImpact)
				ai.GET("/status", api.AIStatus)
				ai.POST("/test-connection", api.TestAIConnection)
			}
		}
	}

	return r, nil
}

// WithCORS 为前端单页应用的来源放行跨域请求，未配置来源时原样返回
func WithCORS(next http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return next
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.HeaderXRequestID},
		ExposedHeaders:   []string{middleware.HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           600,
	}).Handler(next)
}
