package handler

import (
	"net/http"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/db"
	"github.com/carbonlog/internal/middleware"
	"github.com/carbonlog/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type registerPayload struct {
	Username  string `json:"username" binding:"required,min=3,max=32"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"omitempty,email"`
}

type loginPayload struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userView struct {
	ID           uint    `json:"id"`
	Username     string  `json:"username"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Email        string  `json:"email"`
	Points       int64   `json:"points"`
	EcoRank      string  `json:"eco_rank"`
	Level        int     `json:"level"`
	NextRank     string  `json:"next_rank,omitempty"`
	PointsToNext int64   `json:"points_to_next"`
	RankProgress float64 `json:"rank_progress"`
}

// newUserView 不包含密码哈希，等级由积分推导
func newUserView(user db.User) userView {
	progress := carbon.Progress(user.Points)
	return userView{
		ID:           user.ID,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		Points:       user.Points,
		EcoRank:      string(progress.Rank),
		Level:        progress.Level,
		NextRank:     string(progress.NextRank),
		PointsToNext: progress.PointsToNext,
		RankProgress: progress.Percent,
	}
}

func (a *API) startSession(c *gin.Context, user *db.User) bool {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserKey, user.ID)
	session.Set("username", user.Username)
	if err := session.Save(); err != nil {
		middleware.Logger(c).Error("save session failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return false
	}
	return true
}

// Register 注册新用户并直接登录
func (a *API) Register(c *gin.Context) {
	var payload registerPayload
	if !bindJSON(c, &payload, "注册信息不完整") {
		return
	}

	user, err := a.users.Register(service.RegisterInput{
		Username:  payload.Username,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
	})
	if err != nil {
		respondServiceError(c, err, "注册失败")
		return
	}

	if !a.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": newUserView(*user)})
}

// Login 校验账号密码并建立会话
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if !bindJSON(c, &payload, "请输入用户名和密码") {
		return
	}

	user, err := a.users.Authenticate(payload.Username, payload.Password)
	if err != nil {
		respondServiceError(c, err, "登录失败")
		return
	}

	if !a.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserView(*user)})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// Session 返回当前会话用户，未登录时 authenticated=false
func (a *API) Session(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	user, err := a.users.Get(userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": newUserView(*user)})
}

// CurrentUser 返回登录用户的资料与等级进度
func (a *API) CurrentUser(c *gin.Context) {
	userID, _ := currentUserID(c)

	user, err := a.users.Get(userID)
	if err != nil {
		respondServiceError(c, err, "获取用户失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserView(*user)})
}

// AuthRequired 是一个简单的认证中间件，未登录返回 401
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentUserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请先登录"})
			return
		}
		c.Next()
	}
}
