package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carbonlog/internal/carbon"
)

// ActivityGuess 是从语音转写文本中推断出的活动。
// Complete 为 true 时可直接交给 ActivityService 记录。
type ActivityGuess struct {
	Transcript string
	Category   carbon.Category
	Subtype    string
	Quantity   *float64
	Unit       string
	Passengers *int
	OccurredAt time.Time
	DateHint   string
	Complete   bool
}

// Input 转为 ActivityService 的输入
func (g ActivityGuess) Input() ActivityInput {
	input := ActivityInput{
		Category:    string(g.Category),
		Subtype:     g.Subtype,
		Description: g.Transcript,
		Passengers:  g.Passengers,
		OccurredAt:  g.OccurredAt,
		Source:      ActivitySourceVoice,
	}
	if g.Quantity != nil {
		input.Quantity = *g.Quantity
	}
	return input
}

type keywordRule struct {
	category carbon.Category
	subtype  string
	pattern  *regexp.Regexp
}

func words(list ...string) *regexp.Regexp {
	return regexp.MustCompile(`\b(` + strings.Join(list, "|") + `)\b`)
}

// 规则按顺序匹配，交通优先
var voiceRules = []keywordRule{
	{carbon.CategoryTransport, "car", words("drove", "drive", "driving", "car", "vehicle")},
	{carbon.CategoryTransport, "bus", words("bus")},
	{carbon.CategoryTransport, "train", words("train", "railway", "metro", "subway")},
	{carbon.CategoryTransport, "plane", words("flew", "flight", "airplane", "plane")},
	{carbon.CategoryTransport, "bicycle", words("bike", "biked", "biking", "bicycle", "cycling", "cycled")},
	{carbon.CategoryTransport, "walking", words("walk", "walked", "walking", "on foot")},
	{carbon.CategoryFood, "", words("ate", "eat", "eating", "food", "meal", "lunch", "dinner", "breakfast")},
	{carbon.CategoryHome, "", words("shower", "electricity", "light", "lights", "heating", "home")},
}

var foodSubtypes = []struct {
	subtype string
	pattern *regexp.Regexp
}{
	{"beef", words("beef", "steak", "burger", "hamburger")},
	{"pork", words("pork", "bacon", "ham")},
	{"chicken", words("chicken")},
	{"fish", words("fish", "salmon", "tuna", "seafood")},
	{"dairy", words("milk", "cheese", "yogurt", "dairy")},
	{"vegetables", words("vegetables", "vegetable", "salad", "veggies")},
	{"fruits", words("fruit", "fruits", "apple", "apples", "banana", "bananas")},
	{"grains", words("rice", "bread", "pasta", "grains", "cereal")},
}

var homeSubtypes = []struct {
	subtype string
	pattern *regexp.Regexp
}{
	{"electricity", words("electricity", "light", "lights", "power")},
	{"heating", words("heating", "heater")},
	{"naturalGas", words("gas")},
	{"water", words("shower", "water")},
}

var (
	quantityPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(kilometers?|kilometres?|km|miles?|mi|meters?|metres?|m|kilograms?|kg|grams?|g|kwh|liters?|litres?|l)\b`)
	passengerPattern = regexp.MustCompile(`(\d+)\s*(passengers?|persons?|people|colleagues?|friends?|family)\b`)
	companionPattern = regexp.MustCompile(`\bwith (one|a|an) (colleague|friend|passenger|person|coworker)\b`)
)

type unitConversion struct {
	unit  string
	scale float64
}

var unitConversions = map[string]unitConversion{
	"km": {"km", 1}, "kilometer": {"km", 1}, "kilometers": {"km", 1}, "kilometre": {"km", 1}, "kilometres": {"km", 1},
	"mi": {"km", 1.609344}, "mile": {"km", 1.609344}, "miles": {"km", 1.609344},
	"m": {"km", 0.001}, "meter": {"km", 0.001}, "meters": {"km", 0.001}, "metre": {"km", 0.001}, "metres": {"km", 0.001},
	"kg": {"kg", 1}, "kilogram": {"kg", 1}, "kilograms": {"kg", 1},
	"g": {"kg", 0.001}, "gram": {"kg", 0.001}, "grams": {"kg", 0.001},
	"kwh": {"kWh", 1},
	"l":   {"liter", 1}, "liter": {"liter", 1}, "liters": {"liter", 1}, "litre": {"liter", 1}, "litres": {"liter", 1},
}

// VoiceParser 基于关键词从转写文本推断活动
type VoiceParser struct{}

// NewVoiceParser 构造 VoiceParser
func NewVoiceParser() *VoiceParser {
	return &VoiceParser{}
}

// Parse 推断类别、子类、数量、乘客数与日期，无法识别类别时默认为交通。
func (p *VoiceParser) Parse(transcript string, now time.Time) ActivityGuess {
	text := strings.ToLower(strings.TrimSpace(transcript))
	guess := ActivityGuess{
		Transcript: strings.TrimSpace(transcript),
		Category:   carbon.CategoryTransport,
		OccurredAt: now,
	}

	for _, rule := range voiceRules {
		if rule.pattern.MatchString(text) {
			guess.Category = rule.category
			guess.Subtype = rule.subtype
			break
		}
	}

	switch guess.Category {
	case carbon.CategoryFood:
		for _, candidate := range foodSubtypes {
			if candidate.pattern.MatchString(text) {
				guess.Subtype = candidate.subtype
				break
			}
		}
	case carbon.CategoryHome:
		for _, candidate := range homeSubtypes {
			if candidate.pattern.MatchString(text) {
				guess.Subtype = candidate.subtype
				break
			}
		}
	}

	p.parseQuantity(text, &guess)
	p.parsePassengers(text, &guess)

	switch {
	case strings.Contains(text, "yesterday"):
		guess.DateHint = "yesterday"
		guess.OccurredAt = now.AddDate(0, 0, -1)
	case strings.Contains(text, "today"):
		guess.DateHint = "today"
	}

	guess.Complete = guess.Subtype != "" && guess.Quantity != nil && *guess.Quantity > 0
	return guess
}

func (p *VoiceParser) parseQuantity(text string, guess *ActivityGuess) {
	expected := ""
	if guess.Subtype != "" {
		if unit, err := carbon.Unit(guess.Category, guess.Subtype); err == nil {
			expected = unit
		}
	}

	for _, match := range quantityPattern.FindAllStringSubmatch(text, -1) {
		conversion, ok := unitConversions[match[2]]
		if !ok {
			continue
		}
		// 单位与子类不符时跳过，例如交通活动里的 "2 kg"
		if expected != "" && conversion.unit != expected {
			continue
		}
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil || value <= 0 {
			continue
		}
		quantity := value * conversion.scale
		guess.Quantity = &quantity
		guess.Unit = conversion.unit
		return
	}
}

// parsePassengers 将 "with 2 colleagues" 视为 2 名同伴加本人；"3 people"/"3 passengers" 视为总人数。
func (p *VoiceParser) parsePassengers(text string, guess *ActivityGuess) {
	if match := passengerPattern.FindStringSubmatch(text); match != nil {
		count, err := strconv.Atoi(match[1])
		if err != nil || count < 1 {
			return
		}
		switch strings.TrimSuffix(match[2], "s") {
		case "colleague", "friend", "family":
			count++
		}
		guess.Passengers = &count
		return
	}

	if companionPattern.MatchString(text) {
		count := 2
		guess.Passengers = &count
	}
}
