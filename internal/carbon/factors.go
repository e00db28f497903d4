package carbon

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Category 为活动大类
type Category string

const (
	CategoryTransport Category = "transport"
	CategoryFood      Category = "food"
	CategoryHome      Category = "home"
	CategoryShopping  Category = "shopping"
	CategoryWaste     Category = "waste"
)

// Categories 按固定顺序列出全部类别，用于展示与补零。
var Categories = []Category{CategoryTransport, CategoryFood, CategoryHome, CategoryShopping, CategoryWaste}

// ParseCategory 将输入规整为 Category，未知类别返回 INVALID_INPUT。
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := factorTable[c]; !ok {
		return "", invalidInput("parse category", "unknown category %q", raw)
	}
	return c, nil
}

// Valid 报告类别是否存在于排放系数表中
func (c Category) Valid() bool {
	_, ok := factorTable[c]
	return ok
}

// factor 描述单个子类的排放系数（kg CO2e / 单位数量）。
type factor struct {
	perUnit decimal.Decimal
	unit    string
}

func f(value, unit string) factor {
	return factor{perUnit: decimal.RequireFromString(value), unit: unit}
}

// factorTable 是静态排放系数表，按类别/子类索引。
// 子类键区分大小写，与客户端提交的值保持一致（例如 naturalGas）。
var factorTable = map[Category]map[string]factor{
	CategoryTransport: {
		"car":     f("0.192", "km"),
		"bus":     f("0.105", "km"),
		"train":   f("0.041", "km"),
		"plane":   f("0.255", "km"),
		"bicycle": f("0", "km"),
		"walking": f("0", "km"),
	},
	CategoryFood: {
		"beef":       f("60", "kg"),
		"pork":       f("7", "kg"),
		"chicken":    f("6", "kg"),
		"fish":       f("5", "kg"),
		"dairy":      f("3", "kg"),
		"vegetables": f("0.5", "kg"),
		"fruits":     f("0.8", "kg"),
		"grains":     f("1.5", "kg"),
	},
	CategoryHome: {
		"electricity": f("0.32", "kWh"),
		"naturalGas":  f("0.18", "kWh"),
		"heating":     f("0.27", "kWh"),
		"water":       f("0.001", "liter"),
	},
	CategoryShopping: {
		"clothing":    f("10", "item"),
		"electronics": f("50", "item"),
		"furniture":   f("30", "item"),
		"groceries":   f("2.7", "trip"),
	},
	CategoryWaste: {
		"landfill":  f("0.52", "kg"),
		"recycled":  f("0.1", "kg"),
		"composted": f("0.05", "kg"),
	},
}

// sharedVehicles 中的子类按乘客数分摊排放
var sharedVehicles = map[string]struct{}{
	"car": {},
	"bus": {},
}

func lookup(category Category, subtype string) (factor, error) {
	subtypes, ok := factorTable[category]
	if !ok {
		return factor{}, invalidInput("lookup factor", "unknown category %q", category)
	}
	fac, ok := subtypes[strings.TrimSpace(subtype)]
	if !ok {
		return factor{}, invalidInput("lookup factor", "unknown subtype %q for category %s", subtype, category)
	}
	return fac, nil
}

// Factor 返回 (category, subtype) 的排放系数，未知组合返回 INVALID_INPUT，绝不回退为 0。
func Factor(category Category, subtype string) (decimal.Decimal, error) {
	fac, err := lookup(category, subtype)
	if err != nil {
		return decimal.Zero, err
	}
	return fac.perUnit, nil
}

// Unit 返回子类数量的计量单位，如 km、kg、kWh。
func Unit(category Category, subtype string) (string, error) {
	fac, err := lookup(category, subtype)
	if err != nil {
		return "", err
	}
	return fac.unit, nil
}

// Subtypes 返回类别下所有子类，按字母序排列。
func Subtypes(category Category) []string {
	subtypes := factorTable[category]
	names := make([]string, 0, len(subtypes))
	for name := range subtypes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// FactorEntry 是系数表的一行，用于对外展示。
type FactorEntry struct {
	Category Category
	Subtype  string
	PerUnit  decimal.Decimal
	Unit     string
	Shared   bool
}

// Catalog 以稳定顺序导出完整系数表。
func Catalog() []FactorEntry {
	entries := make([]FactorEntry, 0, 25)
	for _, category := range Categories {
		for _, subtype := range Subtypes(category) {
			fac := factorTable[category][subtype]
			entries = append(entries, FactorEntry{
				Category: category,
				Subtype:  subtype,
				PerUnit:  fac.perUnit,
				Unit:     fac.unit,
				Shared:   isShared(category, subtype),
			})
		}
	}
	return entries
}

func isShared(category Category, subtype string) bool {
	if category != CategoryTransport {
		return false
	}
	_, ok := sharedVehicles[subtype]
	return ok
}
