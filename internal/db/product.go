package db

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product 条形码商品库
// Category/Subtype 指向排放因子表中的条目，可为空（未知商品只保存名称与单位排放）
// IsUserContribution 为 true 时 UserID 记录贡献者
type Product struct {
	gorm.Model
	Barcode            string          `gorm:"size:64;uniqueIndex;not null"`
	Name               string          `gorm:"size:255;not null"`
	Category           string          `gorm:"size:32"`
	Subtype            string          `gorm:"size:64"`
	CO2PerUnit         decimal.Decimal `gorm:"column:co2_per_unit;type:decimal(10,4);not null"`
	Unit               string          `gorm:"size:32"`
	IsUserContribution bool            `gorm:"not null;default:false"`
	UserID             *uint           `gorm:"index"`
}

// TableName 固定表名
func (Product) TableName() string {
	return "products"
}
