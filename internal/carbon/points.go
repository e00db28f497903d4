package carbon

import (
	"github.com/shopspring/decimal"
)

const (
	// PointsPerKg 每记录 1 kg CO2e 奖励的积分。奖励的是记录行为本身，与排放高低无关。
	PointsPerKg = 5
	// ProductContributionPoints 用户向条码库贡献新商品时获得的积分。
	ProductContributionPoints = 20
)

var pointsPerKg = decimal.NewFromInt(PointsPerKg)

// PointsForEmissions 返回记录一条活动应得积分：round(emissionsKg * 5)，四舍五入远离零。
func PointsForEmissions(emissionsKg decimal.Decimal) int64 {
	if emissionsKg.IsNegative() {
		return 0
	}
	return emissionsKg.Mul(pointsPerKg).Round(0).IntPart()
}

// ApplyAward 在当前积分上累加奖励。积分只增不减，负数奖励返回 INVALID_INPUT。
func ApplyAward(points, delta int64) (int64, error) {
	if delta < 0 {
		return points, invalidInput("apply award", "award must not be negative, got %d", delta)
	}
	return points + delta, nil
}

// Rank 为由积分推导出的环保等级
type Rank string

const (
	RankBeginner         Rank = "Beginner"
	RankEcoConscious     Rank = "Eco Conscious"
	RankEcoHero          Rank = "Eco Hero"
	RankClimateChampion  Rank = "Climate Champion"
	RankCarbonNeutralist Rank = "Carbon Neutralist"
)

// RankThreshold 表示达到某等级所需的最低积分。
type RankThreshold struct {
	Points int64
	Rank   Rank
}

// RankTable 按积分升序排列，首项阈值必须为 0。
var RankTable = []RankThreshold{
	{Points: 0, Rank: RankBeginner},
	{Points: 100, Rank: RankEcoConscious},
	{Points: 500, Rank: RankEcoHero},
	{Points: 1000, Rank: RankClimateChampion},
	{Points: 2500, Rank: RankCarbonNeutralist},
}

// RankFor 返回不超过 points 的最高阈值对应的等级。
func RankFor(points int64) Rank {
	return RankTable[rankIndex(points)].Rank
}

func rankIndex(points int64) int {
	idx := 0
	for i, threshold := range RankTable {
		if points < threshold.Points {
			break
		}
		idx = i
	}
	return idx
}

// RankProgress 描述当前等级与下一等级的距离。
type RankProgress struct {
	Points       int64
	Rank         Rank
	Level        int
	NextRank     Rank
	NextAt       int64
	PointsToNext int64
	// Percent 为当前等级区间内的完成百分比，已到最高级时为 100。
	Percent float64
}

// Progress 计算积分对应的等级进度，用于个人主页展示。
func Progress(points int64) RankProgress {
	idx := rankIndex(points)
	current := RankTable[idx]
	progress := RankProgress{
		Points:  points,
		Rank:    current.Rank,
		Level:   idx + 1,
		Percent: 100,
	}
	if idx == len(RankTable)-1 {
		return progress
	}

	next := RankTable[idx+1]
	span := next.Points - current.Points
	progress.NextRank = next.Rank
	progress.NextAt = next.Points
	progress.PointsToNext = next.Points - points
	progress.Percent = float64(points-current.Points) / float64(span) * 100
	return progress
}
