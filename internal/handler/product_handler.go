package handler

import (
	"net/http"
	"time"

	"github.com/carbonlog/internal/db"
	"github.com/carbonlog/internal/service"
	"github.com/gin-gonic/gin"
)

type productPayload struct {
	Barcode    string   `json:"barcode" binding:"required,barcode"`
	Name       string   `json:"name" binding:"required,max=255"`
	Category   string   `json:"category" binding:"omitempty,carbon_category"`
	Subtype    string   `json:"subtype"`
	CO2PerUnit *float64 `json:"co2_per_unit" binding:"required,gte=0"`
	Unit       string   `json:"unit" binding:"max=32"`
}

type productView struct {
	ID                 uint    `json:"id"`
	Barcode            string  `json:"barcode"`
	Name               string  `json:"name"`
	Category           string  `json:"category,omitempty"`
	Subtype            string  `json:"subtype,omitempty"`
	CO2PerUnit         float64 `json:"co2_per_unit"`
	Unit               string  `json:"unit"`
	IsUserContribution bool    `json:"is_user_contribution"`
	CreatedAt          string  `json:"created_at"`
}

func newProductView(product db.Product) productView {
	return productView{
		ID:                 product.ID,
		Barcode:            product.Barcode,
		Name:               product.Name,
		Category:           product.Category,
		Subtype:            product.Subtype,
		CO2PerUnit:         product.CO2PerUnit.InexactFloat64(),
		Unit:               product.Unit,
		IsUserContribution: product.IsUserContribution,
		CreatedAt:          product.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// LookupBarcode 按条码查询商品
func (a *API) LookupBarcode(c *gin.Context) {
	lookup, err := a.products.LookupBarcode(c.Param("barcode"))
	if err != nil {
		respondServiceError(c, err, "查询条码失败")
		return
	}

	response := gin.H{"product": newProductView(lookup.Product)}
	if lookup.Suggestion != nil && lookup.Preview != nil {
		response["suggestion"] = gin.H{
			"category":    lookup.Suggestion.Category,
			"subtype":     lookup.Suggestion.Subtype,
			"description": lookup.Suggestion.Description,
			"quantity":    lookup.Suggestion.Quantity,
			"source":      lookup.Suggestion.Source,
			"preview":     newPreviewView(lookup.Preview),
		}
	}
	c.JSON(http.StatusOK, response)
}

// RecentProducts 返回最近收录的商品
func (a *API) RecentProducts(c *gin.Context) {
	products, err := a.products.Recent(parseIntQuery(c, "limit", 5))
	if err != nil {
		respondServiceError(c, err, "获取商品失败")
		return
	}

	views := make([]productView, 0, len(products))
	for _, product := range products {
		views = append(views, newProductView(product))
	}
	c.JSON(http.StatusOK, gin.H{"products": views})
}

// ContributeProduct 收录用户提交的商品并奖励积分
func (a *API) ContributeProduct(c *gin.Context) {
	userID, _ := currentUserID(c)

	var payload productPayload
	if !bindJSON(c, &payload, "商品信息不完整") {
		return
	}

	result, err := a.products.Contribute(userID, service.ProductInput{
		Barcode:    payload.Barcode,
		Name:       payload.Name,
		Category:   payload.Category,
		Subtype:    payload.Subtype,
		CO2PerUnit: *payload.CO2PerUnit,
		Unit:       payload.Unit,
	})
	if err != nil {
		respondServiceError(c, err, "收录商品失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"product":       newProductView(result.Product),
		"points_earned": result.PointsEarned,
		"total_points":  result.TotalPoints,
	})
}
