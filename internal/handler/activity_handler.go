package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/db"
	"github.com/carbonlog/internal/service"
	"github.com/gin-gonic/gin"
)

const dateFormat = "2006-01-02"

type activityPayload struct {
	Category    string   `json:"category" binding:"required,carbon_category"`
	Subtype     string   `json:"subtype" binding:"required"`
	Description string   `json:"description" binding:"max=255"`
	Quantity    *float64 `json:"quantity" binding:"required"`
	Passengers  *int     `json:"passengers"`
	Date        string   `json:"date"`
	Notes       string   `json:"notes"`
	Source      string   `json:"source" binding:"omitempty,oneof=manual voice barcode"`
}

type parsePayload struct {
	Transcript string `json:"transcript" binding:"required"`
}

type activityView struct {
	ID          uint    `json:"id"`
	Category    string  `json:"category"`
	Subtype     string  `json:"subtype"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	EmissionsKg float64 `json:"emissions_kg"`
	Passengers  *int    `json:"passengers,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	Source      string  `json:"source"`
	OccurredAt  string  `json:"occurred_at"`
}

type previewView struct {
	Category    string  `json:"category"`
	Subtype     string  `json:"subtype"`
	Unit        string  `json:"unit"`
	Factor      float64 `json:"factor"`
	EmissionsKg float64 `json:"emissions_kg"`
	Points      int64   `json:"points"`
}

type dayView struct {
	Date           string  `json:"date"`
	Weekday        string  `json:"weekday"`
	TotalEmissions float64 `json:"total_emissions"`
	Count          int     `json:"count"`
}

type categoryView struct {
	Category       string  `json:"category"`
	TotalEmissions float64 `json:"total_emissions"`
	Share          float64 `json:"share"`
}

type summaryView struct {
	Window         string         `json:"window"`
	Start          string         `json:"start"`
	End            string         `json:"end"`
	TotalEmissions float64        `json:"total_emissions"`
	ActivityCount  int            `json:"activity_count"`
	DailyAverage   float64        `json:"daily_average"`
	Days           []dayView      `json:"days"`
	Categories     []categoryView `json:"categories"`
	Highest        *dayView       `json:"highest,omitempty"`
	Lowest         *dayView       `json:"lowest,omitempty"`
}

type factorView struct {
	Category string  `json:"category"`
	Subtype  string  `json:"subtype"`
	PerUnit  float64 `json:"per_unit"`
	Unit     string  `json:"unit"`
	Shared   bool    `json:"shared"`
}

func newActivityView(activity db.Activity) activityView {
	return activityView{
		ID:          activity.ID,
		Category:    activity.Category,
		Subtype:     activity.Subtype,
		Description: activity.Description,
		Quantity:    activity.Quantity.InexactFloat64(),
		Unit:        activity.Unit,
		EmissionsKg: activity.EmissionsKg.InexactFloat64(),
		Passengers:  activity.Passengers,
		Notes:       activity.Notes,
		Source:      activity.Source,
		OccurredAt:  activity.OccurredAt.UTC().Format(time.RFC3339),
	}
}

func newActivityViews(activities []db.Activity) []activityView {
	views := make([]activityView, 0, len(activities))
	for _, activity := range activities {
		views = append(views, newActivityView(activity))
	}
	return views
}

func newPreviewView(preview *service.ActivityPreview) previewView {
	return previewView{
		Category:    string(preview.Category),
		Subtype:     preview.Subtype,
		Unit:        preview.Unit,
		Factor:      preview.Factor.InexactFloat64(),
		EmissionsKg: preview.EmissionsKg.InexactFloat64(),
		Points:      preview.Points,
	}
}

func newDayView(day carbon.DayTotal) dayView {
	return dayView{
		Date:           day.Day.Format(dateFormat),
		Weekday:        day.Day.Weekday().String()[:3],
		TotalEmissions: day.TotalEmissions.Round(carbon.EmissionsPlaces).InexactFloat64(),
		Count:          day.Count,
	}
}

func newSummaryView(summary carbon.Summary) summaryView {
	view := summaryView{
		Window:         string(summary.Kind),
		Start:          summary.Start.Format(time.RFC3339),
		End:            summary.End.Format(time.RFC3339),
		TotalEmissions: summary.TotalEmissions.Round(carbon.EmissionsPlaces).InexactFloat64(),
		ActivityCount:  summary.ActivityCount,
		DailyAverage:   summary.DailyAverage.Round(carbon.EmissionsPlaces).InexactFloat64(),
		Days:           make([]dayView, 0, len(summary.Days)),
		Categories:     make([]categoryView, 0, len(summary.Categories)),
	}
	for _, day := range summary.Days {
		view.Days = append(view.Days, newDayView(day))
	}
	for _, category := range summary.Categories {
		view.Categories = append(view.Categories, categoryView{
			Category:       string(category.Category),
			TotalEmissions: category.TotalEmissions.Round(carbon.EmissionsPlaces).InexactFloat64(),
			Share:          category.Share.InexactFloat64(),
		})
	}
	if summary.Highest != nil {
		highest := newDayView(*summary.Highest)
		view.Highest = &highest
	}
	if summary.Lowest != nil {
		lowest := newDayView(*summary.Lowest)
		view.Lowest = &lowest
	}
	return view
}

func (a *API) activityInput(payload activityPayload) (service.ActivityInput, error) {
	input := service.ActivityInput{
		Category:    payload.Category,
		Subtype:     payload.Subtype,
		Description: payload.Description,
		Passengers:  payload.Passengers,
		Notes:       payload.Notes,
		Source:      payload.Source,
	}
	if payload.Quantity != nil {
		input.Quantity = *payload.Quantity
	}

	if raw := strings.TrimSpace(payload.Date); raw != "" {
		occurredAt, err := parseActivityDate(raw, a.now())
		if err != nil {
			return input, err
		}
		input.OccurredAt = occurredAt
	}
	return input, nil
}

// parseActivityDate 接受 RFC3339 或 YYYY-MM-DD；仅日期时保留当前时刻的时分秒
func parseActivityDate(raw string, now time.Time) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	day, err := time.ParseInLocation(dateFormat, raw, now.Location())
	if err != nil {
		return time.Time{}, &carbon.Error{Kind: carbon.KindInvalidInput, Op: "parse date", Detail: "date must be RFC3339 or YYYY-MM-DD"}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), now.Second(), 0, now.Location()), nil
}

// ListFactors 返回排放因子目录
func (a *API) ListFactors(c *gin.Context) {
	catalog := carbon.Catalog()
	views := make([]factorView, 0, len(catalog))
	for _, entry := range catalog {
		views = append(views, factorView{
			Category: string(entry.Category),
			Subtype:  entry.Subtype,
			PerUnit:  entry.PerUnit.InexactFloat64(),
			Unit:     entry.Unit,
			Shared:   entry.Shared,
		})
	}
	c.JSON(http.StatusOK, gin.H{"factors": views})
}

// PreviewActivity 只计算排放与积分，不写库
func (a *API) PreviewActivity(c *gin.Context) {
	var payload activityPayload
	if !bindJSON(c, &payload, "活动参数不合法") {
		return
	}

	input, err := a.activityInput(payload)
	if err != nil {
		respondServiceError(c, err, "计算失败")
		return
	}

	preview, err := a.activities.Preview(input)
	if err != nil {
		respondServiceError(c, err, "计算失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"preview": newPreviewView(preview)})
}

// ParseTranscript 解析语音转写文本，信息完整时附带计算预览
func (a *API) ParseTranscript(c *gin.Context) {
	var payload parsePayload
	if !bindJSON(c, &payload, "请提供语音文本") {
		return
	}

	guess := a.voice.Parse(payload.Transcript, a.now())
	response := gin.H{
		"activity": gin.H{
			"category":    string(guess.Category),
			"subtype":     guess.Subtype,
			"quantity":    guess.Quantity,
			"unit":        guess.Unit,
			"passengers":  guess.Passengers,
			"date_hint":   guess.DateHint,
			"occurred_at": guess.OccurredAt.UTC().Format(time.RFC3339),
			"complete":    guess.Complete,
		},
		"transcript": guess.Transcript,
	}

	if guess.Complete {
		if preview, err := a.activities.Preview(guess.Input()); err == nil {
			response["preview"] = newPreviewView(preview)
		}
	}
	c.JSON(http.StatusOK, response)
}

// CreateActivity 记录活动并发放积分
func (a *API) CreateActivity(c *gin.Context) {
	userID, _ := currentUserID(c)

	var payload activityPayload
	if !bindJSON(c, &payload, "活动参数不合法") {
		return
	}

	input, err := a.activityInput(payload)
	if err != nil {
		respondServiceError(c, err, "记录活动失败")
		return
	}

	result, err := a.activities.Create(userID, input, a.now())
	if err != nil {
		respondServiceError(c, err, "记录活动失败")
		return
	}

	progress := carbon.Progress(result.TotalPoints)
	c.JSON(http.StatusCreated, gin.H{
		"activity":      newActivityView(result.Activity),
		"points_earned": result.PointsEarned,
		"total_points":  result.TotalPoints,
		"eco_rank":      string(progress.Rank),
	})
}

// ListActivities 分页返回活动列表
func (a *API) ListActivities(c *gin.Context) {
	userID, _ := currentUserID(c)

	filter := service.ActivityFilter{
		Category: c.Query("category"),
		Limit:    parseIntQuery(c, "limit", 50),
		Offset:   parseIntQuery(c, "offset", 0),
	}
	for key, target := range map[string]**time.Time{"from": &filter.Start, "to": &filter.End} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(dateFormat, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "日期格式应为 YYYY-MM-DD")
			return
		}
		*target = &parsed
	}

	activities, total, err := a.activities.List(userID, filter)
	if err != nil {
		respondServiceError(c, err, "获取活动列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": newActivityViews(activities), "total": total})
}

// RecentActivities 返回最近的活动
func (a *API) RecentActivities(c *gin.Context) {
	userID, _ := currentUserID(c)

	activities, err := a.activities.Recent(userID, parseIntQuery(c, "limit", 5))
	if err != nil {
		respondServiceError(c, err, "获取最近活动失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": newActivityViews(activities)})
}

// WeeklyActivities 返回窗口内的活动明细
func (a *API) WeeklyActivities(c *gin.Context) {
	userID, _ := currentUserID(c)

	window, err := a.parseWindow(c)
	if err != nil {
		respondServiceError(c, err, "窗口参数不合法")
		return
	}

	activities, err := a.activities.InWindow(userID, window)
	if err != nil {
		respondServiceError(c, err, "获取本周活动失败")
		return
	}
	start, end := window.Bounds()
	c.JSON(http.StatusOK, gin.H{
		"activities": newActivityViews(activities),
		"start":      start.Format(time.RFC3339),
		"end":        end.Format(time.RFC3339),
	})
}

// WeeklyStats 返回窗口内的聚合统计
func (a *API) WeeklyStats(c *gin.Context) {
	userID, _ := currentUserID(c)

	window, err := a.parseWindow(c)
	if err != nil {
		respondServiceError(c, err, "窗口参数不合法")
		return
	}

	summary, err := a.activities.Summary(userID, window)
	if err != nil {
		respondServiceError(c, err, "获取统计失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": newSummaryView(summary)})
}
