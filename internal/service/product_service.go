package service

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/db"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrProductNotFound 条码未收录
	ErrProductNotFound = errors.New("product not found")
	// ErrProductExists 条码已存在，不能重复贡献
	ErrProductExists = errors.New("product already exists")
	// ErrInvalidProduct 商品信息不合法
	ErrInvalidProduct = errors.New("invalid product")
)

var barcodePattern = regexp.MustCompile(`^[0-9]{8,14}$`)

// ProductService 负责条码商品库的查询与用户贡献
type ProductService struct {
	db         *gorm.DB
	activities *ActivityService
}

// ProductInput 定义用户贡献商品时的字段
type ProductInput struct {
	Barcode    string
	Name       string
	Category   string
	Subtype    string
	CO2PerUnit float64
	Unit       string
}

// ProductLookup 为扫码结果；商品能映射到排放因子时附带一条可直接记录的活动建议
type ProductLookup struct {
	Product    db.Product
	Suggestion *ActivityInput
	Preview    *ActivityPreview
}

// ContributionResult 返回新商品与贡献者当前积分
type ContributionResult struct {
	Product      db.Product
	PointsEarned int64
	TotalPoints  int64
}

// NewProductService 构造 ProductService
func NewProductService(gdb *gorm.DB, activities *ActivityService) *ProductService {
	return &ProductService{db: gdb, activities: activities}
}

// NormalizeBarcode 去除空白并校验为 8-14 位数字
func NormalizeBarcode(raw string) (string, error) {
	barcode := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if !barcodePattern.MatchString(barcode) {
		return "", fmt.Errorf("%w: barcode must be 8-14 digits", ErrInvalidProduct)
	}
	return barcode, nil
}

// LookupBarcode 按条码查询商品
func (s *ProductService) LookupBarcode(raw string) (*ProductLookup, error) {
	barcode, err := NormalizeBarcode(raw)
	if err != nil {
		return nil, err
	}

	var product db.Product
	if err := s.db.Where("barcode = ?", barcode).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("lookup barcode: %w", err)
	}

	lookup := &ProductLookup{Product: product}
	if product.Category == "" || product.Subtype == "" || s.activities == nil {
		return lookup, nil
	}

	suggestion := ActivityInput{
		Category:    product.Category,
		Subtype:     product.Subtype,
		Description: product.Name,
		Quantity:    1,
		Source:      ActivitySourceBarcode,
	}
	// 映射不到因子表的商品只返回商品本身
	if preview, err := s.activities.Preview(suggestion); err == nil {
		lookup.Suggestion = &suggestion
		lookup.Preview = preview
	}
	return lookup, nil
}

// Recent 返回最近收录的商品
func (s *ProductService) Recent(limit int) ([]db.Product, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultRecentLimit
	}

	var products []db.Product
	if err := s.db.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list recent products: %w", err)
	}
	return products, nil
}

// Contribute 收录用户提交的新商品并奖励积分
func (s *ProductService) Contribute(userID uint, input ProductInput) (*ContributionResult, error) {
	barcode, err := NormalizeBarcode(input.Barcode)
	if err != nil {
		return nil, err
	}

	name := sanitizeText(input.Name, 255)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if math.IsNaN(input.CO2PerUnit) || math.IsInf(input.CO2PerUnit, 0) || input.CO2PerUnit < 0 {
		return nil, fmt.Errorf("%w: co2 per unit must be a non-negative number", ErrInvalidProduct)
	}

	category := strings.TrimSpace(input.Category)
	subtype := strings.TrimSpace(input.Subtype)
	if category != "" {
		parsed, err := carbon.ParseCategory(category)
		if err != nil {
			return nil, err
		}
		category = string(parsed)
		if subtype != "" {
			if _, err := carbon.Factor(parsed, subtype); err != nil {
				return nil, err
			}
		}
	}

	owner := userID
	product := db.Product{
		Barcode:            barcode,
		Name:               name,
		Category:           category,
		Subtype:            subtype,
		CO2PerUnit:         decimal.NewFromFloat(input.CO2PerUnit),
		Unit:               strings.TrimSpace(input.Unit),
		IsUserContribution: true,
		UserID:             &owner,
	}

	result := ContributionResult{PointsEarned: carbon.ProductContributionPoints}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.Product{}).Where("barcode = ?", barcode).Count(&count).Error; err != nil {
			return fmt.Errorf("check barcode: %w", err)
		}
		if count > 0 {
			return ErrProductExists
		}
		if err := tx.Create(&product).Error; err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		if err := addPoints(tx, userID, carbon.ProductContributionPoints); err != nil {
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

	result.Product = product
	return &result, nil
}
