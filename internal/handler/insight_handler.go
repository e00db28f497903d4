package handler

import (
	"net/http"
	"time"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const insightActivityLimit = 20

type impactPayload struct {
	Category    string   `json:"category" binding:"required,carbon_category"`
	Subtype     string   `json:"subtype"`
	Description string   `json:"description" binding:"max=255"`
	Quantity    float64  `json:"quantity" binding:"gte=0"`
	Unit        string   `json:"unit"`
	EmissionsKg *float64 `json:"emissions_kg" binding:"omitempty,gte=0"`
	Passengers  *int     `json:"passengers"`
}

func respondInsight(c *gin.Context, insight *service.Insight) {
	c.JSON(http.StatusOK, gin.H{
		"kind":         insight.Kind,
		"markdown":     insight.Markdown,
		"html":         insight.HTML,
		"source":       insight.Source,
		"generated_at": insight.GeneratedAt.UTC().Format(time.RFC3339),
	})
}

// EcoTips 基于最近活动生成环保建议
func (a *API) EcoTips(c *gin.Context) {
	userID, _ := currentUserID(c)

	activities, err := a.activities.Recent(userID, insightActivityLimit)
	if err != nil {
		respondServiceError(c, err, "生成建议失败")
		return
	}

	insight, err := a.insights.EcoTips(c.Request.Context(), activities, a.now())
	if err != nil {
		respondServiceError(c, err, "生成建议失败")
		return
	}
	respondInsight(c, insight)
}

// FootprintAnalysis 分析窗口内的排放趋势
func (a *API) FootprintAnalysis(c *gin.Context) {
	userID, _ := currentUserID(c)

	window, err := a.parseWindow(c)
	if err != nil {
		respondServiceError(c, err, "窗口参数不合法")
		return
	}

	summary, err := a.activities.Summary(userID, window)
	if err != nil {
		respondServiceError(c, err, "生成分析失败")
		return
	}

	insight, err := a.insights.FootprintAnalysis(summary, a.now())
	if err != nil {
		respondServiceError(c, err, "生成分析失败")
		return
	}
	respondInsight(c, insight)
}

// CustomChallenge 生成个性化 7 天挑战
func (a *API) CustomChallenge(c *gin.Context) {
	userID, _ := currentUserID(c)

	user, err := a.users.Get(userID)
	if err != nil {
		respondServiceError(c, err, "生成挑战失败")
		return
	}
	activities, err := a.activities.Recent(userID, insightActivityLimit)
	if err != nil {
		respondServiceError(c, err, "生成挑战失败")
		return
	}

	insight, err := a.insights.CustomChallenge(user.Points, activities, a.now())
	if err != nil {
		respondServiceError(c, err, "生成挑战失败")
		return
	}
	respondInsight(c, insight)
}

// AnalyzeImpact 分析单条活动的环境影响；未提供排放值时按计算器推导
func (a *API) AnalyzeImpact(c *gin.Context) {
	var payload impactPayload
	if !bindJSON(c, &payload, "活动参数不合法") {
		return
	}

	input := service.ImpactInput{
		Category:    payload.Category,
		Subtype:     payload.Subtype,
		Description: payload.Description,
		Quantity:    payload.Quantity,
		Unit:        payload.Unit,
	}

	if payload.EmissionsKg != nil {
		input.EmissionsKg = decimal.NewFromFloat(*payload.EmissionsKg).Round(carbon.EmissionsPlaces)
	} else {
		preview, err := a.activities.Preview(service.ActivityInput{
			Category:   payload.Category,
			Subtype:    payload.Subtype,
			Quantity:   payload.Quantity,
			Passengers: payload.Passengers,
		})
		if err != nil {
			respondServiceError(c, err, "分析失败")
			return
		}
		input.EmissionsKg = preview.EmissionsKg
		if input.Unit == "" {
			input.Unit = preview.Unit
		}
	}

	insight, err := a.insights.ImpactAnalysis(input, a.now())
	if err != nil {
		respondServiceError(c, err, "分析失败")
		return
	}
	respondInsight(c, insight)
}
