package db

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Activity 记录一次产生碳排放的行为
// EmissionsKg 在创建时由计算器得出，之后不再修改
// Source 标记录入来源（manual/voice/barcode），仅用于展示，不影响计算
type Activity struct {
	gorm.Model
	UserID      uint            `gorm:"index;not null"`
	User        User            `gorm:"constraint:OnDelete:CASCADE"`
	Category    string          `gorm:"size:32;index;not null"`
	Subtype     string          `gorm:"size:64;not null"`
	Description string          `gorm:"size:255"`
	Quantity    decimal.Decimal `gorm:"type:decimal(14,4);not null"`
	Unit        string          `gorm:"size:16"`
	EmissionsKg decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	OccurredAt  time.Time       `gorm:"index;not null"`
	Notes       string          `gorm:"type:text"`
	Passengers  *int
	Source      string `gorm:"size:16"`
}

// TableName 固定表名
func (Activity) TableName() string {
	return "activities"
}
