package handler

import (
	"net/http"
	"time"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/db"
	"github.com/carbonlog/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type progressPayload struct {
	Progress *float64 `json:"progress" binding:"required"`
}

type challengeView struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	TargetValue float64 `json:"target_value"`
	Unit        string  `json:"unit"`
	Category    string  `json:"category"`
	Points      int64   `json:"points"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
}

type userChallengeView struct {
	ID          uint          `json:"id"`
	ChallengeID uint          `json:"challenge_id"`
	Progress    float64       `json:"progress"`
	Percent     float64       `json:"percent"`
	IsCompleted bool          `json:"is_completed"`
	CompletedAt *string       `json:"completed_at,omitempty"`
	Challenge   challengeView `json:"challenge"`
}

func newChallengeView(challenge db.Challenge) challengeView {
	return challengeView{
		ID:          challenge.ID,
		Title:       challenge.Title,
		Description: challenge.Description,
		TargetValue: challenge.TargetValue.InexactFloat64(),
		Unit:        challenge.Unit,
		Category:    challenge.Category,
		Points:      challenge.Points,
		StartDate:   challenge.StartDate.Format(dateFormat),
		EndDate:     challenge.EndDate.Format(dateFormat),
	}
}

func newUserChallengeView(entry db.UserChallenge) userChallengeView {
	view := userChallengeView{
		ID:          entry.ID,
		ChallengeID: entry.ChallengeID,
		Progress:    entry.Progress.InexactFloat64(),
		IsCompleted: entry.IsCompleted,
		Challenge:   newChallengeView(entry.Challenge),
	}
	if entry.Challenge.TargetValue.IsPositive() {
		percent := entry.Progress.Div(entry.Challenge.TargetValue).Mul(hundred)
		if percent.GreaterThan(hundred) {
			percent = hundred
		}
		view.Percent = percent.Round(1).InexactFloat64()
	}
	if entry.CompletedAt != nil {
		formatted := entry.CompletedAt.UTC().Format(time.RFC3339)
		view.CompletedAt = &formatted
	}
	return view
}

func newUserChallengeViews(entries []db.UserChallenge) []userChallengeView {
	views := make([]userChallengeView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, newUserChallengeView(entry))
	}
	return views
}

// ListChallenges 返回挑战列表，active=true 时只返回进行中的挑战
func (a *API) ListChallenges(c *gin.Context) {
	filter := service.ChallengeFilter{Category: c.Query("category")}
	if c.Query("active") == "true" {
		now := a.now()
		filter.ActiveAt = &now
	}

	challenges, err := a.challenges.List(filter)
	if err != nil {
		respondServiceError(c, err, "获取挑战列表失败")
		return
	}

	views := make([]challengeView, 0, len(challenges))
	for _, challenge := range challenges {
		views = append(views, newChallengeView(challenge))
	}
	c.JSON(http.StatusOK, gin.H{"challenges": views})
}

// JoinChallenge 参与挑战，重复参与返回 200 与已有记录
func (a *API) JoinChallenge(c *gin.Context) {
	userID, _ := currentUserID(c)

	challengeID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的挑战ID")
		return
	}

	entry, created, err := a.challenges.Join(userID, challengeID)
	if err != nil {
		respondServiceError(c, err, "参与挑战失败")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"user_challenge": newUserChallengeView(*entry)})
}

// ListUserChallenges 返回当前用户参与的挑战
func (a *API) ListUserChallenges(c *gin.Context) {
	userID, _ := currentUserID(c)

	entries, err := a.challenges.ListForUser(userID)
	if err != nil {
		respondServiceError(c, err, "获取挑战进度失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_challenges": newUserChallengeViews(entries)})
}

// UpdateChallengeProgress 上报挑战进度
func (a *API) UpdateChallengeProgress(c *gin.Context) {
	userID, _ := currentUserID(c)

	entryID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的挑战记录ID")
		return
	}

	var payload progressPayload
	if !bindJSON(c, &payload, "请提供进度值") {
		return
	}

	result, err := a.challenges.UpdateProgress(userID, entryID, *payload.Progress, a.now())
	if err != nil {
		respondServiceError(c, err, "更新进度失败")
		return
	}

	response := gin.H{
		"user_challenge": newUserChallengeView(result.UserChallenge),
		"completed":      result.JustCompleted,
		"points_awarded": result.PointsAwarded,
	}
	if result.JustCompleted {
		if user, err := a.users.Get(userID); err == nil {
			response["total_points"] = user.Points
			response["eco_rank"] = string(carbon.RankFor(user.Points))
		}
	}
	c.JSON(http.StatusOK, response)
}
