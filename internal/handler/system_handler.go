package handler

import (
	"errors"
	"net/http"

	"github.com/carbonlog/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck 供部署平台探活，同时检查数据库连通性。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
	})
}

// AIStatus 返回当前 AI 平台配置，不回显 Key
func (a *API) AIStatus(c *gin.Context) {
	settings, err := a.settings.GetSettings()
	if err != nil {
		respondServiceError(c, err, "获取 AI 配置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider":   settings.AIProvider,
		"model":      settings.AIModel,
		"configured": settings.APIKey() != "",
	})
}

// TestAIConnection 使用已保存的配置测试 AI 平台连通性。
func (a *API) TestAIConnection(c *gin.Context) {
	if err := a.settings.TestAIConnection(c.Request.Context()); err != nil {
		switch {
		case errors.Is(err, service.ErrAIAPIKeyMissing):
			respondError(c, http.StatusBadRequest, "尚未配置 AI API Key")
		default:
			a.logger.Warn("ai connection test failed", zap.Error(err))
			respondError(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "AI 接口连接正常"})
}
