package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dashboard 聚合积分等级、本周统计、最近活动与已参加挑战
func (a *API) Dashboard(c *gin.Context) {
	userID, _ := currentUserID(c)

	window, err := a.parseWindow(c)
	if err != nil {
		respondServiceError(c, err, "窗口参数不合法")
		return
	}

	dashboard, err := a.dashboard.Load(c.Request.Context(), userID, window, parseIntQuery(c, "limit", 5))
	if err != nil {
		respondServiceError(c, err, "加载看板失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       newUserView(dashboard.Profile.User),
		"weekly":     newSummaryView(dashboard.Weekly),
		"recent":     newActivityViews(dashboard.Recent),
		"challenges": newUserChallengeViews(dashboard.Challenges),
	})
}
