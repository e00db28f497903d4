package carbon

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WindowKind 区分周统计窗口的定义
type WindowKind string

const (
	// WindowCalendarWeek 以周一为起点的自然周，所有周视图默认使用。
	WindowCalendarWeek WindowKind = "calendar_week"
	// WindowTrailingDays 从参考时间向前回溯 Days 天。
	WindowTrailingDays WindowKind = "trailing_days"
)

const defaultTrailingDays = 7

// Window 是显式传入的统计窗口配置，聚合函数从不自行读取当前时间。
type Window struct {
	Kind      WindowKind
	Reference time.Time
	// Days 仅对 WindowTrailingDays 生效，<=0 时取 7。
	Days int
	// Location 决定按哪个时区切分自然日，nil 时使用 Reference 自身的时区。
	Location *time.Location
}

// ParseWindowKind 解析查询参数，空值回退到自然周。
func ParseWindowKind(raw string) (WindowKind, error) {
	switch WindowKind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", WindowCalendarWeek, "calendar", "week":
		return WindowCalendarWeek, nil
	case WindowTrailingDays, "trailing":
		return WindowTrailingDays, nil
	default:
		return "", invalidInput("parse window", "unknown window kind %q", raw)
	}
}

func (w Window) location() *time.Location {
	if w.Location != nil {
		return w.Location
	}
	return w.Reference.Location()
}

// Bounds 返回半开区间 [start, end)。
// 自然周：本周一 00:00 至下周一 00:00；回溯窗口：包含参考日在内的最近 Days 个自然日。
func (w Window) Bounds() (time.Time, time.Time) {
	ref := w.Reference.In(w.location())
	switch w.Kind {
	case WindowTrailingDays:
		days := w.Days
		if days <= 0 {
			days = defaultTrailingDays
		}
		today := startOfDay(ref)
		return today.AddDate(0, 0, -(days - 1)), today.AddDate(0, 0, 1)
	default:
		today := startOfDay(ref)
		offset := (int(today.Weekday()) + 6) % 7
		start := today.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	}
}

// Entry 是参与聚合的一条已持久化活动
type Entry struct {
	Category    Category
	OccurredAt  time.Time
	EmissionsKg decimal.Decimal
}

// DayTotal 为单日排放合计
type DayTotal struct {
	Day            time.Time
	TotalEmissions decimal.Decimal
	Count          int
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// AggregateByDay 将 [start, end) 内的活动按自然日汇总，按时间升序输出。
// 没有活动的日期不会出现在结果中，展示层需要时可用 FillDays 补零。
func AggregateByDay(entries []Entry, start, end time.Time) []DayTotal {
	loc := start.Location()
	byDay := make(map[time.Time]*DayTotal)
	for _, entry := range entries {
		if !within(entry.OccurredAt, start, end) {
			continue
		}
		day := startOfDay(entry.OccurredAt.In(loc))
		total, ok := byDay[day]
		if !ok {
			total = &DayTotal{Day: day, TotalEmissions: decimal.Zero}
			byDay[day] = total
		}
		total.TotalEmissions = total.TotalEmissions.Add(entry.EmissionsKg)
		total.Count++
	}

	days := make([]DayTotal, 0, len(byDay))
	for _, total := range byDay {
		days = append(days, *total)
	}
	slices.SortFunc(days, func(a, b DayTotal) int {
		return a.Day.Compare(b.Day)
	})
	return days
}

// FillDays 为 [start, end) 内每个自然日输出一项，缺失日期补 0。
func FillDays(totals []DayTotal, start, end time.Time) []DayTotal {
	loc := start.Location()
	index := make(map[time.Time]DayTotal, len(totals))
	for _, total := range totals {
		index[startOfDay(total.Day.In(loc))] = total
	}

	var filled []DayTotal
	for day := startOfDay(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		if total, ok := index[day]; ok {
			filled = append(filled, total)
			continue
		}
		filled = append(filled, DayTotal{Day: day, TotalEmissions: decimal.Zero})
	}
	return filled
}

// AggregateByCategory 按类别汇总排放，没有任何活动的类别不出现在结果中。
func AggregateByCategory(entries []Entry) map[Category]decimal.Decimal {
	totals := make(map[Category]decimal.Decimal)
	for _, entry := range entries {
		totals[entry.Category] = totals[entry.Category].Add(entry.EmissionsKg)
	}
	return totals
}

// CategoryTotal 是类别合计的有序表示
type CategoryTotal struct {
	Category       Category
	TotalEmissions decimal.Decimal
	Share          decimal.Decimal
}

// Summary 汇总一个窗口内的排放数据，供仪表盘与趋势分析使用。
type Summary struct {
	Kind           WindowKind
	Start          time.Time
	End            time.Time
	TotalEmissions decimal.Decimal
	ActivityCount  int
	Days           []DayTotal
	Categories     []CategoryTotal
	DailyAverage   decimal.Decimal
	Highest        *DayTotal
	Lowest         *DayTotal
}

// Summarize 在窗口内完成按日（补零）与按类别的聚合。
// 最高/最低日只在有活动的日期中挑选。
func Summarize(entries []Entry, window Window) Summary {
	start, end := window.Bounds()

	inWindow := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if within(entry.OccurredAt, start, end) {
			inWindow = append(inWindow, entry)
		}
	}

	active := AggregateByDay(inWindow, start, end)
	summary := Summary{
		Kind:           window.Kind,
		Start:          start,
		End:            end,
		TotalEmissions: decimal.Zero,
		ActivityCount:  len(inWindow),
		Days:           FillDays(active, start, end),
		DailyAverage:   decimal.Zero,
	}
	if summary.Kind == "" {
		summary.Kind = WindowCalendarWeek
	}

	for _, day := range active {
		summary.TotalEmissions = summary.TotalEmissions.Add(day.TotalEmissions)
	}

	if len(summary.Days) > 0 {
		summary.DailyAverage = summary.TotalEmissions.Div(decimal.NewFromInt(int64(len(summary.Days))))
	}

	for i := range active {
		day := active[i]
		if summary.Highest == nil || day.TotalEmissions.GreaterThan(summary.Highest.TotalEmissions) {
			summary.Highest = &day
		}
		if summary.Lowest == nil || day.TotalEmissions.LessThan(summary.Lowest.TotalEmissions) {
			summary.Lowest = &day
		}
	}

	byCategory := AggregateByCategory(inWindow)
	for _, category := range Categories {
		total, ok := byCategory[category]
		if !ok {
			continue
		}
		share := decimal.Zero
		if summary.TotalEmissions.IsPositive() {
			share = total.Div(summary.TotalEmissions).Mul(decimal.NewFromInt(100)).Round(1)
		}
		summary.Categories = append(summary.Categories, CategoryTotal{Category: category, TotalEmissions: total, Share: share})
	}
	slices.SortStableFunc(summary.Categories, func(a, b CategoryTotal) int {
		return cmp.Compare(b.TotalEmissions.InexactFloat64(), a.TotalEmissions.InexactFloat64())
	})

	return summary
}
