package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/middleware"
	"github.com/carbonlog/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const sessionUserKey = "user_id"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("%s：字段 %s 不合法", message, strings.ToLower(validationErrs[0].Field())))
			return false
		}
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// parseWindow 读取 window/days/tz 查询参数，默认以当前时间所在自然周为窗口
func (a *API) parseWindow(c *gin.Context) (carbon.Window, error) {
	kind, err := carbon.ParseWindowKind(c.Query("window"))
	if err != nil {
		return carbon.Window{}, err
	}

	window := carbon.Window{Kind: kind, Reference: a.now()}
	if kind == carbon.WindowTrailingDays {
		days := parseIntQuery(c, "days", 7)
		if days < 1 || days > 366 {
			return carbon.Window{}, fmt.Errorf("%w: days must be between 1 and 366", carbon.ErrInvalidInput)
		}
		window.Days = days
	}

	if tz := strings.TrimSpace(c.Query("tz")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return carbon.Window{}, fmt.Errorf("%w: unknown time zone %q", carbon.ErrInvalidInput, tz)
		}
		window.Location = loc
	}
	return window, nil
}

func currentUserID(c *gin.Context) (uint, bool) {
	session := sessions.Default(c)
	switch value := session.Get(sessionUserKey).(type) {
	case uint:
		return value, value > 0
	case int:
		return uint(value), value > 0
	case int64:
		return uint(value), value > 0
	case float64:
		return uint(value), value > 0
	default:
		return 0, false
	}
}

// respondServiceError 将领域错误映射为 HTTP 状态码，未知错误记日志后返回 500
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, carbon.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, errorDetail(err))
	case errors.Is(err, carbon.ErrNotFound):
		respondError(c, http.StatusNotFound, errorDetail(err))
	case errors.Is(err, carbon.ErrConcurrentUpdate):
		respondError(c, http.StatusConflict, "数据已被并发修改，请重试")
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "用户不存在")
	case errors.Is(err, service.ErrProductNotFound):
		respondError(c, http.StatusNotFound, "未找到该条码对应的商品")
	case errors.Is(err, service.ErrUsernameTaken):
		respondError(c, http.StatusConflict, "用户名已被占用")
	case errors.Is(err, service.ErrProductExists):
		respondError(c, http.StatusConflict, "该条码已收录")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
	case errors.Is(err, service.ErrInvalidUserInput),
		errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, service.ErrInvalidChallenge):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		_ = c.Error(err)
		middleware.Logger(c).Error(fallback, zap.Error(err))
		respondError(c, http.StatusInternalServerError, fallback)
	}
}

// errorDetail 返回 carbon.Error 的校验细节，前端据此提示具体字段
func errorDetail(err error) string {
	var domainErr *carbon.Error
	if errors.As(err, &domainErr) && domainErr.Detail != "" {
		return domainErr.Detail
	}
	return err.Error()
}
