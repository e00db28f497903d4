package carbon

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// EmissionsPlaces 是排放量保留的小数位数。
// 舍入规则为四舍五入（远离零），例如 0.125 -> 0.13。
const EmissionsPlaces int32 = 2

// Input 描述一次待计算的活动。手动录入、语音解析与条码扫描都走同一个入口。
type Input struct {
	Category Category
	Subtype  string
	Quantity float64
	// Passengers 仅对 transport/car、transport/bus 生效，nil 表示默认 1 人。
	Passengers *int
}

// Compute 计算活动的 CO2e 排放（kg）。
// 纯函数：相同输入永远得到相同输出，不读取时间、随机数或外部状态。
func Compute(in Input) (decimal.Decimal, error) {
	if math.IsNaN(in.Quantity) || math.IsInf(in.Quantity, 0) || in.Quantity <= 0 {
		return decimal.Zero, invalidInput("compute emissions", "quantity must be a positive finite number, got %v", in.Quantity)
	}

	passengers := 1
	if in.Passengers != nil {
		if *in.Passengers < 1 {
			return decimal.Zero, invalidInput("compute emissions", "passenger count must be a positive integer, got %d", *in.Passengers)
		}
		passengers = *in.Passengers
	}

	subtype := strings.TrimSpace(in.Subtype)
	fac, err := lookup(in.Category, subtype)
	if err != nil {
		return decimal.Zero, err
	}

	raw := fac.perUnit.Mul(decimal.NewFromFloat(in.Quantity))
	if isShared(in.Category, subtype) && passengers > 1 {
		raw = raw.Div(decimal.NewFromInt(int64(passengers)))
	}

	return raw.Round(EmissionsPlaces), nil
}

// ComputeEmissions 是 Compute 的位置参数形式。
func ComputeEmissions(category, subtype string, quantity float64, passengers *int) (decimal.Decimal, error) {
	c, err := ParseCategory(category)
	if err != nil {
		return decimal.Zero, err
	}
	return Compute(Input{Category: c, Subtype: subtype, Quantity: quantity, Passengers: passengers})
}
