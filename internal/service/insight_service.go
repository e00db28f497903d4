package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/db"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

const (
	// InsightSourceTemplate 表示内容来自内置模板
	InsightSourceTemplate = "template"

	insightEcoTips           = "eco_tips"
	insightFootprintAnalysis = "footprint_analysis"
	insightCustomChallenge   = "custom_challenge"
	insightImpactAnalysis    = "impact_analysis"
)

// Insight 是一段渲染后的建议文本
type Insight struct {
	Kind        string
	Markdown    string
	HTML        string
	Source      string
	GeneratedAt time.Time
}

// ImpactInput 描述需要分析环境影响的单条活动
type ImpactInput struct {
	Category    string
	Subtype     string
	Description string
	Quantity    float64
	Unit        string
	EmissionsKg decimal.Decimal
}

// InsightService 依据用户已记录的活动类别挑选模板生成建议。
// 配置了 AI Key 时环保建议改由模型生成，失败回退模板。
type InsightService struct {
	settings *SystemSettingService
	ai       *aiChatClient
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
	logger   *zap.Logger
}

// NewInsightService 构造 InsightService，settings 为 nil 时只使用模板
func NewInsightService(settings *SystemSettingService, logger *zap.Logger) *InsightService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightService{
		settings: settings,
		ai:       newAIChatClient(),
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   bluemonday.UGCPolicy(),
		logger:   logger,
	}
}

// SetHTTPClient 替换调用模型接口的 HTTP 客户端，主要面向测试场景。
func (s *InsightService) SetHTTPClient(client httpDoer) {
	s.ai.SetHTTPClient(client)
}

// SetOpenAIBaseURL 覆盖 OpenAI API 的基础地址。
func (s *InsightService) SetOpenAIBaseURL(base string) {
	s.ai.SetOpenAIBaseURL(base)
}

// SetDeepSeekBaseURL 覆盖 DeepSeek API 的基础地址。
func (s *InsightService) SetDeepSeekBaseURL(base string) {
	s.ai.SetDeepSeekBaseURL(base)
}

func (s *InsightService) render(kind, source, markdown string, now time.Time) (*Insight, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}
	return &Insight{
		Kind:        kind,
		Markdown:    markdown,
		HTML:        s.policy.Sanitize(buf.String()),
		Source:      source,
		GeneratedAt: now,
	}, nil
}

func presentTags(activities []db.Activity) map[string]bool {
	tags := make(map[string]bool)
	for _, activity := range activities {
		if activity.Category != "" {
			tags[strings.ToLower(activity.Category)] = true
		}
		if activity.Subtype != "" {
			tags[strings.ToLower(activity.Subtype)] = true
		}
	}
	return tags
}

func hasAny(tags map[string]bool, keys ...string) bool {
	for _, key := range keys {
		if tags[key] {
			return true
		}
	}
	return false
}

// EcoTips 生成个性化环保建议
func (s *InsightService) EcoTips(ctx context.Context, activities []db.Activity, now time.Time) (*Insight, error) {
	if content, source, ok := s.generateTips(ctx, activities); ok {
		return s.render(insightEcoTips, source, content, now)
	}
	return s.render(insightEcoTips, InsightSourceTemplate, ecoTipsTemplate(activities), now)
}

func (s *InsightService) generateTips(ctx context.Context, activities []db.Activity) (string, string, bool) {
	if s.settings == nil {
		return "", "", false
	}
	settings, err := s.settings.GetSettings()
	if err != nil {
		s.logger.Warn("load ai settings failed", zap.Error(err))
		return "", "", false
	}
	if settings.APIKey() == "" {
		return "", "", false
	}

	var prompt strings.Builder
	prompt.WriteString("Recent activities:\n")
	for _, activity := range activities {
		fmt.Fprintf(&prompt, "- %s/%s: %s %s, %s kg CO2e\n",
			activity.Category, activity.Subtype, activity.Quantity.String(), activity.Unit, activity.EmissionsKg.StringFixed(2))
	}
	if len(activities) == 0 {
		prompt.WriteString("- none recorded yet\n")
	}

	req := aiChatRequest{
		SystemPrompt: "You are a sustainability coach. Reply in Markdown with a level-one heading and exactly five short, numbered, actionable tips tailored to the activities.",
		UserPrompt:   prompt.String(),
		MaxTokens:    600,
		Temperature:  0.4,
	}
	logAIExchange(s.logger, insightEcoTips, "request", req.UserPrompt)

	reply, err := s.ai.callWithSettings(ctx, settings, req)
	if err != nil {
		s.logger.Warn("ai eco tips failed, falling back to template", zap.String("provider", settings.AIProvider), zap.Error(err))
		return "", "", false
	}
	logAIExchange(s.logger, insightEcoTips, "response", reply.Text)
	if reply.Text == "" {
		return "", "", false
	}
	return reply.Text, settings.AIProvider, true
}

func ecoTipsTemplate(activities []db.Activity) string {
	tags := presentTags(activities)
	none := len(tags) == 0

	var b strings.Builder
	b.WriteString("# 5 Personalized Eco-Tips for Reducing Your Carbon Footprint\n\n")

	if none || hasAny(tags, "transport", "car", "plane") {
		b.WriteString("**1. Optimize Your Transportation**\n")
		b.WriteString("Consider carpooling or public transportation for regular commutes. For trips under 5 km, walk or cycle instead of driving. This could reduce transportation emissions by up to 50%.\n\n")
	}
	if none || hasAny(tags, "home", "electricity", "heating") {
		b.WriteString("**2. Reduce Home Energy Usage**\n")
		b.WriteString("Lower your thermostat by 1-2°C in winter, install LED bulbs and unplug idle electronics. These changes can cut home energy emissions by 10-15%.\n\n")
	}
	if none || hasAny(tags, "food", "beef", "pork", "dairy") {
		b.WriteString("**3. Embrace Plant-Based Meals**\n")
		b.WriteString("Try 2-3 plant-based meals per week. Beans and lentils have a far lower footprint than meat and can reduce food emissions by 20-30%.\n\n")
	}
	if none || hasAny(tags, "waste", "shopping") {
		b.WriteString("**4. Practice Zero-Waste Shopping**\n")
		b.WriteString("Bring reusable bags, buy in bulk and choose minimal packaging. Composting food scraps diverts up to 30% of household waste from landfill.\n\n")
	}

	b.WriteString("**5. Conserve Water Resources**\n")
	b.WriteString("Fix leaks promptly, take shorter showers and wash clothes in cold water to reduce your water-related footprint by about 15%.")
	return b.String()
}

// FootprintAnalysis 基于窗口汇总生成趋势分析
func (s *InsightService) FootprintAnalysis(summary carbon.Summary, now time.Time) (*Insight, error) {
	var b strings.Builder
	b.WriteString("# Carbon Footprint Analysis\n\n## Trend Analysis\n")

	if summary.ActivityCount == 0 || summary.Highest == nil {
		b.WriteString("You haven't recorded enough data yet to provide a detailed trend analysis. Start tracking your daily activities to get personalized insights!\n\n")
		b.WriteString("## Patterns Identified\nStart logging your daily activities so patterns in transportation, food choices and energy usage can be identified.\n\n")
	} else {
		fmt.Fprintf(&b, "Your average daily carbon emissions in this period were %s kg CO2e across %d activities.\n",
			summary.DailyAverage.StringFixed(2), summary.ActivityCount)
		fmt.Fprintf(&b, "The highest emissions occurred on %s with %s kg CO2e, while your lowest were on %s with %s kg CO2e.\n\n",
			summary.Highest.Day.Format("Monday, Jan 2"), summary.Highest.TotalEmissions.StringFixed(2),
			summary.Lowest.Day.Format("Monday, Jan 2"), summary.Lowest.TotalEmissions.StringFixed(2))

		b.WriteString("## Patterns Identified\n")
		for _, category := range summary.Categories {
			fmt.Fprintf(&b, "- **%s**: %s kg CO2e (%s%% of total)\n",
				categoryLabel(category.Category), category.TotalEmissions.StringFixed(2), category.Share.String())
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recommendations\n")
	b.WriteString("1. **Transportation Optimization**: use public transportation or carpool for regular commutes to cut emissions by up to 30%.\n")
	b.WriteString("2. **Energy Efficiency**: adjust your thermostat by 1-2 degrees and unplug electronics when not in use.\n")
	b.WriteString("3. **Meal Planning**: incorporate 2-3 plant-based meals per week to reduce food emissions by about 20%.\n")

	if len(summary.Categories) > 0 {
		fmt.Fprintf(&b, "\nYour largest source is **%s**. Focusing there first gives the biggest reduction.", categoryLabel(summary.Categories[0].Category))
	}
	return s.render(insightFootprintAnalysis, InsightSourceTemplate, b.String(), now)
}

var challengeFocusTemplates = map[string]struct {
	title string
	intro string
	days  [7]string
}{
	"transportation": {
		title: "Low-Carbon Mobility Challenge",
		intro: "Reduce your transportation emissions over the next week by making smarter mobility choices.",
		days: [7]string{
			"Map out your weekly trips and find at least 2 that could be combined or eliminated.",
			"Take public transportation, walk or bike instead of driving for at least one trip.",
			"Research carpooling options for your regular commute.",
			"Work from home if possible, or meet somewhere closer to home.",
			"Calculate the footprint of a regular trip and research lower-carbon alternatives.",
			"Plan an errand route that minimizes distance and avoids backtracking.",
			"Go car-free for the entire day.",
		},
	},
	"food": {
		title: "Plant-Powered Diet Challenge",
		intro: "Transform your diet over the next week to significantly reduce your food-related footprint.",
		days: [7]string{
			"Take inventory of your kitchen and plan plant-based meals for the week.",
			"Replace one meat-based meal with a fully plant-based alternative.",
			"Shop for locally grown, seasonal produce.",
			"Learn to prepare a new plant-based protein dish.",
			"Have a zero food waste day and compost any scraps.",
			"Compare the footprint of a favourite meal with its plant-based alternative.",
			"Share a plant-based meal with friends or family.",
		},
	},
	"energy": {
		title: "Home Energy Efficiency Challenge",
		intro: "Cut your home energy consumption over the next week.",
		days: [7]string{
			"Conduct a home energy audit to find the biggest consumers.",
			"Lower your thermostat by 2°C and use layers instead.",
			"Unplug all non-essential electronics and chargers.",
			"Wash clothes in cold water and hang-dry them.",
			"Replace at least one bulb with an LED equivalent.",
			"Cook a meal using an energy-efficient method.",
			"Spend one evening with minimal electricity use.",
		},
	},
	"waste": {
		title: "Zero-Waste Week Challenge",
		intro: "Minimize your waste production and improve your recycling habits over the next week.",
		days: [7]string{
			"Track all waste you generate in 24 hours.",
			"Shop with reusable bags and containers only.",
			"Make one zero-waste swap such as a reusable bottle.",
			"Learn the recycling guidelines for your area.",
			"Repair something instead of replacing it.",
			"Declutter and donate usable items.",
			"Prepare a completely zero-waste meal.",
		},
	},
}

// CustomChallenge 按用户积分与活动类别生成 7 天挑战
func (s *InsightService) CustomChallenge(points int64, activities []db.Activity, now time.Time) (*Insight, error) {
	tags := presentTags(activities)

	focus := "transportation"
	switch {
	case tags["food"]:
		focus = "food"
	case hasAny(tags, "home", "electricity"):
		focus = "energy"
	case hasAny(tags, "waste", "shopping"):
		focus = "waste"
	}

	difficulty := "beginner"
	switch {
	case points > 1000:
		difficulty = "expert"
	case points > 500:
		difficulty = "intermediate"
	}

	tpl := challengeFocusTemplates[focus]

	var b strings.Builder
	b.WriteString("# 7-Day Sustainable Living Challenge\n\n")
	fmt.Fprintf(&b, "## %s\n\n%s\n\nDifficulty: **%s** (%s, %d points)\n\n", tpl.title, tpl.intro, difficulty, carbon.RankFor(points), points)
	b.WriteString("## Daily Tasks\n\n")
	for i, task := range tpl.days {
		fmt.Fprintf(&b, "**Day %d:** %s\n\n", i+1, task)
	}
	b.WriteString("## Expected Carbon Savings\n\nCompleting this challenge can reduce your footprint by approximately 15-25 kg CO2e, and up to 750-1,200 kg CO2e a year if the habits stick.\n\n")
	b.WriteString("## Tracking Your Progress\n\nLog your daily activities to see how your footprint changes. Every activity you record earns points toward your eco-rank.")

	return s.render(insightCustomChallenge, InsightSourceTemplate, b.String(), now)
}

// ImpactAnalysis 分析单条活动的环境影响与替代方案
func (s *InsightService) ImpactAnalysis(input ImpactInput, now time.Time) (*Insight, error) {
	category := strings.ToLower(strings.TrimSpace(input.Category))
	subtype := strings.ToLower(strings.TrimSpace(input.Subtype))
	emissions := input.EmissionsKg

	title := strings.TrimSpace(input.Description)
	if title == "" {
		title = category
		if title == "" {
			title = "general"
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Environmental Impact Analysis: %s\n\n## Direct Environmental Impacts\n\n", title)

	quantity := decimal.NewFromFloat(input.Quantity).String()
	switch category {
	case string(carbon.CategoryTransport):
		fmt.Fprintf(&b, "Your %s trip of %s %s results in approximately %s kg CO2e. ", fallback(subtype, "transport"), quantity, input.Unit, emissions.StringFixed(2))
		switch subtype {
		case "car":
			b.WriteString("Driving also contributes to air pollution, noise and road infrastructure that fragments habitats.\n\n")
		case "plane":
			b.WriteString("Air travel has one of the highest footprints per passenger-kilometre, and high-altitude emissions have a stronger warming effect.\n\n")
		case "bus", "train":
			b.WriteString("Public transportation has a lower footprint per passenger than individual car travel, especially at high ridership.\n\n")
		default:
			b.WriteString("This trip contributes to greenhouse gas emissions, air pollution and resource consumption.\n\n")
		}
	case string(carbon.CategoryFood):
		fmt.Fprintf(&b, "Your food consumption results in approximately %s kg CO2e. ", emissions.StringFixed(2))
		switch subtype {
		case "beef":
			b.WriteString("Beef needs 15,000-20,000 liters of water per kg, drives deforestation and produces significant methane.\n\n")
		case "dairy":
			b.WriteString("Dairy requires around 1,000 liters of water per liter of milk and generates methane from cattle.\n\n")
		default:
			b.WriteString("Food production contributes through farming, processing, transport and packaging waste.\n\n")
		}
	case string(carbon.CategoryHome):
		fmt.Fprintf(&b, "Your %s usage of %s %s results in approximately %s kg CO2e. ", fallback(subtype, "home energy"), quantity, input.Unit, emissions.StringFixed(2))
		switch subtype {
		case "electricity":
			b.WriteString("The impact depends largely on how your electricity is generated.\n\n")
		case "heating", "naturalgas":
			b.WriteString("Gas heating adds direct combustion emissions plus methane leakage during extraction and transport.\n\n")
		default:
			b.WriteString("Home energy use contributes through generation, extraction and infrastructure.\n\n")
		}
	default:
		fmt.Fprintf(&b, "This activity produces approximately %s kg CO2e across extraction, manufacturing, transport, use and disposal.\n\n", emissions.StringFixed(2))
	}

	b.WriteString("## Sustainable Alternatives\n\n")
	switch category {
	case string(carbon.CategoryTransport):
		fmt.Fprintf(&b, "1. **Public transportation**: could reduce this trip to about %s kg CO2e.\n", emissions.Mul(decimal.RequireFromString("0.4")).StringFixed(2))
		fmt.Fprintf(&b, "2. **Carpooling**: sharing with one other person cuts per-person emissions to %s kg CO2e.\n", emissions.Div(decimal.NewFromInt(2)).StringFixed(2))
		b.WriteString("3. **Active transportation**: walking or cycling brings direct emissions close to zero.\n")
	case string(carbon.CategoryFood):
		fmt.Fprintf(&b, "1. **Plant-based alternatives**: could reduce this to about %s kg CO2e.\n", emissions.Mul(decimal.RequireFromString("0.2")).StringFixed(2))
		fmt.Fprintf(&b, "2. **Local, seasonal options**: approximately %s kg CO2e.\n", emissions.Mul(decimal.RequireFromString("0.8")).StringFixed(2))
		b.WriteString("3. **Minimize food waste**: plan portions and compost scraps.\n")
	case string(carbon.CategoryHome):
		fmt.Fprintf(&b, "1. **Efficiency upgrades**: LED lighting and insulation could bring this to about %s kg CO2e.\n", emissions.Mul(decimal.RequireFromString("0.7")).StringFixed(2))
		b.WriteString("2. **Renewable tariff**: switching supplier can remove most generation emissions.\n")
		b.WriteString("3. **Smart controls**: schedule heating and appliances around actual use.\n")
	default:
		b.WriteString("1. **Buy less, buy better**: choose durable, repairable products.\n")
		b.WriteString("2. **Second-hand first**: reuse avoids most manufacturing emissions.\n")
		b.WriteString("3. **Recycle and compost**: keep materials out of landfill.\n")
	}

	return s.render(insightImpactAnalysis, InsightSourceTemplate, b.String(), now)
}

func categoryLabel(category carbon.Category) string {
	name := string(category)
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func fallback(value, alt string) string {
	if value == "" {
		return alt
	}
	return value
}
