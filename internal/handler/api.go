package handler

import (
	"time"

	"github.com/carbonlog/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	users      *service.UserService
	activities *service.ActivityService
	challenges *service.ChallengeService
	products   *service.ProductService
	insights   *service.InsightService
	dashboard  *service.DashboardService
	settings   *service.SystemSettingService
	voice      *service.VoiceParser
	logger     *zap.Logger
	now        func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, aiDefaults service.SystemSettings, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}

	users := service.NewUserService(gdb)
	activities := service.NewActivityService(gdb)
	challenges := service.NewChallengeService(gdb)
	settings := service.NewSystemSettingService(gdb, aiDefaults)

	return &API{
		db:         gdb,
		users:      users,
		activities: activities,
		challenges: challenges,
		products:   service.NewProductService(gdb, activities),
		insights:   service.NewInsightService(settings, logger.Named("insights")),
		dashboard:  service.NewDashboardService(users, activities, challenges),
		settings:   settings,
		voice:      service.NewVoiceParser(),
		logger:     logger,
		now:        time.Now,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Insights 暴露建议服务，便于测试替换模型客户端
func (a *API) Insights() *service.InsightService {
	return a.insights
}

// SetClock 替换时间来源，周窗口等依赖当前时间的接口在测试中使用固定时间
func (a *API) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	a.now = now
}

// Settings 暴露系统设置服务，CLI 与测试复用同一实例
func (a *API) Settings() *service.SystemSettingService {
	return a.settings
}
