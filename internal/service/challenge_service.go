package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/db"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidChallenge 创建挑战时的配置错误
var ErrInvalidChallenge = errors.New("invalid challenge configuration")

// ChallengeService 负责挑战的管理、参与与进度更新
type ChallengeService struct {
	db *gorm.DB
}

// ChallengeFilter 描述挑战列表的过滤条件
type ChallengeFilter struct {
	Category string
	// ActiveAt 非空时只返回该时刻仍在进行的挑战
	ActiveAt *time.Time
}

// ChallengeInput 定义创建挑战时的字段
type ChallengeInput struct {
	Title       string
	Description string
	TargetValue float64
	Unit        string
	StartDate   time.Time
	EndDate     time.Time
	Category    string
	Points      int64
}

// ProgressResult 返回一次进度上报后的状态
type ProgressResult struct {
	UserChallenge db.UserChallenge
	// JustCompleted 仅在本次上报触发完成时为 true
	JustCompleted bool
	PointsAwarded int64
}

// NewChallengeService 构造 ChallengeService
func NewChallengeService(gdb *gorm.DB) *ChallengeService {
	return &ChallengeService{db: gdb}
}

// List 返回挑战集合
func (s *ChallengeService) List(filter ChallengeFilter) ([]db.Challenge, error) {
	query := s.db.Model(&db.Challenge{})

	if category := strings.TrimSpace(filter.Category); category != "" {
		parsed, err := carbon.ParseCategory(category)
		if err != nil {
			return nil, err
		}
		query = query.Where("category = ?", string(parsed))
	}
	if filter.ActiveAt != nil {
		query = query.Where("start_date <= ? AND end_date > ?", filter.ActiveAt.UTC(), filter.ActiveAt.UTC())
	}

	var challenges []db.Challenge
	if err := query.Order("end_date ASC").Order("id ASC").Find(&challenges).Error; err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return challenges, nil
}

// Get 根据 ID 获取挑战
func (s *ChallengeService) Get(id uint) (*db.Challenge, error) {
	var challenge db.Challenge
	if err := s.db.First(&challenge, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, carbon.NotFound("get challenge", "challenge %d", id)
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return &challenge, nil
}

// Create 新建挑战
func (s *ChallengeService) Create(input ChallengeInput) (*db.Challenge, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidChallenge)
	}
	if math.IsNaN(input.TargetValue) || math.IsInf(input.TargetValue, 0) || input.TargetValue <= 0 {
		return nil, fmt.Errorf("%w: target value must be positive", ErrInvalidChallenge)
	}
	if !input.EndDate.After(input.StartDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", ErrInvalidChallenge)
	}
	if input.Points < 0 {
		return nil, fmt.Errorf("%w: points must not be negative", ErrInvalidChallenge)
	}
	category, err := carbon.ParseCategory(input.Category)
	if err != nil {
		return nil, err
	}

	challenge := db.Challenge{
		Title:       title,
		Description: sanitizeText(input.Description, 0),
		TargetValue: decimal.NewFromFloat(input.TargetValue),
		Unit:        strings.TrimSpace(input.Unit),
		StartDate:   input.StartDate.UTC(),
		EndDate:     input.EndDate.UTC(),
		Category:    string(category),
		Points:      input.Points,
	}
	if err := s.db.Create(&challenge).Error; err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}
	return &challenge, nil
}

// Join 让用户参与挑战，重复参与返回已有记录
func (s *ChallengeService) Join(userID, challengeID uint) (*db.UserChallenge, bool, error) {
	if _, err := s.Get(challengeID); err != nil {
		return nil, false, err
	}

	entry := db.UserChallenge{UserID: userID, ChallengeID: challengeID, Progress: decimal.Zero}
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "challenge_id"}},
		DoNothing: true,
	}).Create(&entry)
	if res.Error != nil {
		return nil, false, fmt.Errorf("join challenge: %w", res.Error)
	}

	var joined db.UserChallenge
	if err := s.db.Preload("Challenge").
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		First(&joined).Error; err != nil {
		return nil, false, fmt.Errorf("load user challenge: %w", err)
	}
	return &joined, res.RowsAffected > 0, nil
}

// ListForUser 返回用户参与的挑战及进度
func (s *ChallengeService) ListForUser(userID uint) ([]db.UserChallenge, error) {
	var entries []db.UserChallenge
	if err := s.db.Preload("Challenge").
		Where("user_id = ?", userID).
		Order("is_completed ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list user challenges: %w", err)
	}
	return entries, nil
}

// UpdateProgress 记录客户端上报的进度，达到目标时一次性发放挑战积分。
// 并发冲突时重试一次，仍冲突则返回 CONCURRENT_UPDATE_CONFLICT。
func (s *ChallengeService) UpdateProgress(userID, userChallengeID uint, reported float64, now time.Time) (*ProgressResult, error) {
	result, err := s.updateProgress(userID, userChallengeID, reported, now)
	if errors.Is(err, carbon.ErrConcurrentUpdate) {
		result, err = s.updateProgress(userID, userChallengeID, reported, now)
	}
	return result, err
}

func (s *ChallengeService) updateProgress(userID, userChallengeID uint, reported float64, now time.Time) (*ProgressResult, error) {
	var result ProgressResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var entry db.UserChallenge
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Challenge").
			First(&entry, userChallengeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return carbon.NotFound("update progress", "user challenge %d", userChallengeID)
			}
			return fmt.Errorf("load user challenge: %w", err)
		}
		// 不暴露其他用户的记录是否存在
		if entry.UserID != userID {
			return carbon.NotFound("update progress", "user challenge %d", userChallengeID)
		}

		update, err := carbon.EvaluateProgress(carbon.ProgressState{
			Progress:    entry.Progress,
			IsCompleted: entry.IsCompleted,
			CompletedAt: entry.CompletedAt,
		}, entry.Challenge.TargetValue, reported, now)
		if err != nil {
			return err
		}

		if update.Completed {
			res := tx.Model(&db.UserChallenge{}).
				Where("id = ? AND is_completed = ?", entry.ID, false).
				Updates(map[string]interface{}{
					"progress":     update.State.Progress,
					"is_completed": true,
					"completed_at": update.State.CompletedAt.UTC(),
				})
			if res.Error != nil {
				return fmt.Errorf("complete user challenge: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return carbon.ConcurrentUpdate("update progress", "user challenge %d was completed concurrently", entry.ID)
			}
			if err := addPoints(tx, userID, entry.Challenge.Points); err != nil {
				return err
			}
			result.JustCompleted = true
			result.PointsAwarded = entry.Challenge.Points
		} else if update.State.Progress.GreaterThan(entry.Progress) {
			// 条件更新保证进度不会被较小的并发值覆盖
			if err := tx.Model(&db.UserChallenge{}).
				Where("id = ? AND progress < ?", entry.ID, update.State.Progress).
				Update("progress", update.State.Progress).Error; err != nil {
				return fmt.Errorf("update progress: %w", err)
			}
		}

		if err := tx.Preload("Challenge").First(&result.UserChallenge, entry.ID).Error; err != nil {
			return fmt.Errorf("reload user challenge: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}
