package db

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Challenge 定义了挑战模型
// TargetValue 与 Unit 描述完成条件，例如 target=4/unit=weeks
// Points 为完成后一次性发放的积分
type Challenge struct {
	gorm.Model
	Title       string          `gorm:"size:255;not null"`
	Description string          `gorm:"type:text"`
	TargetValue decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Unit        string          `gorm:"size:32"`
	StartDate   time.Time
	EndDate     time.Time
	Category    string `gorm:"size:32;index"`
	Points      int64  `gorm:"not null;default:0"`
}

// UserChallenge 记录用户参与挑战的进度
// UserID + ChallengeID 采用唯一索引，保证重复加入幂等
// IsCompleted 一旦为 true 不再回退，CompletedAt 只写一次
type UserChallenge struct {
	gorm.Model
	UserID      uint            `gorm:"index;index:idx_user_challenge_unique,unique;not null"`
	User        User            `gorm:"constraint:OnDelete:CASCADE"`
	ChallengeID uint            `gorm:"index:idx_user_challenge_unique,unique;not null"`
	Challenge   Challenge       `gorm:"constraint:OnDelete:CASCADE"`
	Progress    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	IsCompleted bool            `gorm:"not null;default:false"`
	CompletedAt *time.Time
}

// TableName 重写确保唯一索引作用到 user_id + challenge_id
func (UserChallenge) TableName() string {
	return "user_challenges"
}
