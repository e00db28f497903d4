package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedResult 汇总一次种子写入新增的记录数
type SeedResult struct {
	Challenges int
	Products   int
}

func seedChallenges(now time.Time) []Challenge {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return []Challenge{
		{
			Title:       "Meatless Monday",
			Description: "连续 4 周在每个周一只吃素食。",
			TargetValue: decimal.NewFromInt(4),
			Unit:        "weeks",
			StartDate:   start,
			EndDate:     start.AddDate(0, 0, 28),
			Category:    "food",
			Points:      100,
		},
		{
			Title:       "Public Transport Hero",
			Description: "本周至少 5 天使用公共交通通勤。",
			TargetValue: decimal.NewFromInt(5),
			Unit:        "days",
			StartDate:   start,
			EndDate:     start.AddDate(0, 0, 7),
			Category:    "transport",
			Points:      80,
		},
	}
}

func seedProducts() []Product {
	return []Product{
		{
			Barcode:    "8901234567890",
			Name:       "Organic Oat Milk",
			Category:   "food",
			Subtype:    "dairy",
			CO2PerUnit: decimal.RequireFromString("0.8"),
			Unit:       "liter",
		},
		{
			Barcode:    "7894561230123",
			Name:       "Whole Grain Bread",
			Category:   "food",
			Subtype:    "grains",
			CO2PerUnit: decimal.RequireFromString("0.5"),
			Unit:       "loaf",
		},
	}
}

// Seed 写入演示用的挑战与商品，可重复执行。
// 挑战按标题去重，商品按条形码去重。
func Seed(gdb *gorm.DB, now time.Time) (SeedResult, error) {
	var result SeedResult
	if gdb == nil {
		return result, errors.New("database not initialized")
	}

	err := gdb.Transaction(func(tx *gorm.DB) error {
		for _, challenge := range seedChallenges(now) {
			var existing Challenge
			err := tx.Where("title = ?", challenge.Title).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("find challenge %q: %w", challenge.Title, err)
			}
			if err := tx.Create(&challenge).Error; err != nil {
				return fmt.Errorf("create challenge %q: %w", challenge.Title, err)
			}
			result.Challenges++
		}

		for _, product := range seedProducts() {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "barcode"}},
				DoNothing: true,
			}).Create(&product)
			if res.Error != nil {
				return fmt.Errorf("create product %s: %w", product.Barcode, res.Error)
			}
			result.Products += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	return result, nil
}
