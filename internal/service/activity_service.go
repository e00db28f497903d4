package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/db"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// ActivitySourceManual 手动录入
	ActivitySourceManual = "manual"
	// ActivitySourceVoice 语音解析
	ActivitySourceVoice = "voice"
	// ActivitySourceBarcode 条码扫描
	ActivitySourceBarcode = "barcode"

	defaultRecentLimit = 5
	maxListLimit       = 200
)

var textPolicy = bluemonday.StrictPolicy()

// ActivityService 负责活动记录的计算、持久化与聚合查询
type ActivityService struct {
	db *gorm.DB
}

// ActivityInput 定义记录活动时的输入
type ActivityInput struct {
	Category    string
	Subtype     string
	Description string
	Quantity    float64
	Passengers  *int
	OccurredAt  time.Time
	Notes       string
	Source      string
}

// ActivityPreview 为仅计算不落库的结果
type ActivityPreview struct {
	Category    carbon.Category
	Subtype     string
	Unit        string
	Factor      decimal.Decimal
	EmissionsKg decimal.Decimal
	Points      int64
}

// ActivityResult 返回新建的活动与积分变化
type ActivityResult struct {
	Activity     db.Activity
	PointsEarned int64
	TotalPoints  int64
}

// ActivityFilter 描述列表查询条件
type ActivityFilter struct {
	Category string
	Start    *time.Time
	End      *time.Time
	Limit    int
	Offset   int
}

// NewActivityService 构造 ActivityService
func NewActivityService(gdb *gorm.DB) *ActivityService {
	return &ActivityService{db: gdb}
}

// Preview 计算排放与积分但不写库
func (s *ActivityService) Preview(input ActivityInput) (*ActivityPreview, error) {
	category, err := carbon.ParseCategory(input.Category)
	if err != nil {
		return nil, err
	}

	subtype := strings.TrimSpace(input.Subtype)
	emissions, err := carbon.Compute(carbon.Input{
		Category:   category,
		Subtype:    subtype,
		Quantity:   input.Quantity,
		Passengers: input.Passengers,
	})
	if err != nil {
		return nil, err
	}

	factor, err := carbon.Factor(category, subtype)
	if err != nil {
		return nil, err
	}
	unit, err := carbon.Unit(category, subtype)
	if err != nil {
		return nil, err
	}

	return &ActivityPreview{
		Category:    category,
		Subtype:     subtype,
		Unit:        unit,
		Factor:      factor,
		EmissionsKg: emissions,
		Points:      carbon.PointsForEmissions(emissions),
	}, nil
}

// Create 计算排放、写入活动并发放积分，三者在同一事务内完成
func (s *ActivityService) Create(userID uint, input ActivityInput, now time.Time) (*ActivityResult, error) {
	preview, err := s.Preview(input)
	if err != nil {
		return nil, err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	source := strings.ToLower(strings.TrimSpace(input.Source))
	switch source {
	case ActivitySourceVoice, ActivitySourceBarcode:
	default:
		source = ActivitySourceManual
	}

	activity := db.Activity{
		UserID:      userID,
		Category:    string(preview.Category),
		Subtype:     preview.Subtype,
		Description: sanitizeText(input.Description, 255),
		Quantity:    decimal.NewFromFloat(input.Quantity),
		Unit:        preview.Unit,
		EmissionsKg: preview.EmissionsKg,
		OccurredAt:  occurredAt.UTC(),
		Notes:       sanitizeText(input.Notes, 0),
		Passengers:  input.Passengers,
		Source:      source,
	}

	result := ActivityResult{PointsEarned: preview.Points}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&activity).Error; err != nil {
			return fmt.Errorf("create activity: %w", err)
		}
		if err := addPoints(tx, userID, preview.Points); err != nil {
			return err
		}
		total, err := currentPoints(tx, userID)
		if err != nil {
			return err
		}
		result.TotalPoints = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Activity = activity
	return &result, nil
}

// List 返回用户活动，按发生时间倒序
func (s *ActivityService) List(userID uint, filter ActivityFilter) ([]db.Activity, int64, error) {
	query := s.db.Model(&db.Activity{}).Where("user_id = ?", userID)

	if category := strings.TrimSpace(filter.Category); category != "" {
		parsed, err := carbon.ParseCategory(category)
		if err != nil {
			return nil, 0, err
		}
		query = query.Where("category = ?", string(parsed))
	}
	if filter.Start != nil {
		query = query.Where("occurred_at >= ?", filter.Start.UTC())
	}
	if filter.End != nil {
		query = query.Where("occurred_at < ?", filter.End.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var activities []db.Activity
	if err := query.Order("occurred_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&activities).Error; err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	return activities, total, nil
}

// Recent 返回最近 limit 条活动
func (s *ActivityService) Recent(userID uint, limit int) ([]db.Activity, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	activities, _, err := s.List(userID, ActivityFilter{Limit: limit})
	return activities, err
}

// InWindow 返回窗口内的活动
func (s *ActivityService) InWindow(userID uint, window carbon.Window) ([]db.Activity, error) {
	start, end := window.Bounds()

	var activities []db.Activity
	if err := s.db.Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, start.UTC(), end.UTC()).
		Order("occurred_at ASC").
		Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("load window activities: %w", err)
	}
	return activities, nil
}

// Summary 聚合窗口内的排放数据
func (s *ActivityService) Summary(userID uint, window carbon.Window) (carbon.Summary, error) {
	activities, err := s.InWindow(userID, window)
	if err != nil {
		return carbon.Summary{}, err
	}
	loc := window.Location
	if loc == nil {
		loc = window.Reference.Location()
	}
	return carbon.Summarize(toEntries(activities, loc), window), nil
}

func toEntries(activities []db.Activity, loc *time.Location) []carbon.Entry {
	entries := make([]carbon.Entry, 0, len(activities))
	for _, activity := range activities {
		occurredAt := activity.OccurredAt
		if loc != nil {
			occurredAt = occurredAt.In(loc)
		}
		entries = append(entries, carbon.Entry{
			Category:    carbon.Category(activity.Category),
			OccurredAt:  occurredAt,
			EmissionsKg: activity.EmissionsKg,
		})
	}
	return entries
}

func sanitizeText(raw string, maxRunes int) string {
	cleaned := strings.TrimSpace(textPolicy.Sanitize(raw))
	if maxRunes > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxRunes {
			cleaned = string(runes[:maxRunes])
		}
	}
	return cleaned
}
