package service

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/daypace/internal/db"
	"github.com/microcosm-cc/bluemonday"
)

// TaskSpec 是规整后的严格单日任务描述，外部生成器的松散形态不会越过这一层。
type TaskSpec struct {
	DayNumber        int
	Title            string
	Purpose          string
	Phase            string
	Deliverables     []string
	ActionItems      []db.ActionItem
	Resources        []db.Resource
	SkillProgression string
	EstimatedMinutes int
}

// PlanPhase 表示日序区间上的一个阶段
type PlanPhase struct {
	Name     string
	StartDay int
	EndDay   int
	Focus    string
}

const (
	minActionItems  = 3
	minDeliverables = 2
)

// 鼓励式措辞黑名单，命中即删除；末尾感叹号一并清除
var motivationalPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)great job`),
	regexp.MustCompile(`(?i)well done`),
	regexp.MustCompile(`(?i)keep it up`),
	regexp.MustCompile(`(?i)keep going`),
	regexp.MustCompile(`(?i)you're doing great`),
	regexp.MustCompile(`(?i)you're making progress`),
	regexp.MustCompile(`(?i)stay consistent`),
	regexp.MustCompile(`(?i)trust the process`),
	regexp.MustCompile(`(?i)believe in yourself`),
	regexp.MustCompile(`(?i)you've got this`),
	regexp.MustCompile(`(?i)feel confident`),
	regexp.MustCompile(`(?i)build confidence`),
	regexp.MustCompile(`(?i)celebrate your`),
	regexp.MustCompile(`(?i)be proud`),
	regexp.MustCompile(`(?i)appreciate your`),
	regexp.MustCompile(`(?i)remember why you started`),
	regexp.MustCompile(`(?i)you can do this`),
	regexp.MustCompile(`(?i)don't give up`),
	regexp.MustCompile(`(?i)stay motivated`),
	regexp.MustCompile(`(?i)congratulations`),
	regexp.MustCompile(`(?i)excellent work`),
	regexp.MustCompile(`(?i)amazing progress`),
	regexp.MustCompile(`(?i)proud of`),
	regexp.MustCompile(`(?i)you're on your way`),
	regexp.MustCompile(`(?i)believe in your`),
	regexp.MustCompile(`(?i)trust yourself`),
	regexp.MustCompile(`(?i)you're ready`),
	regexp.MustCompile(`(?i)take a moment to`),
	regexp.MustCompile(`(?i)reflect on your`),
	regexp.MustCompile(`(?i)embrace the`),
	regexp.MustCompile(`(?i)enjoy the journey`),
	regexp.MustCompile(`!\s*$`),
}

// 空泛学习用语黑名单，避免任务描述停留在抽象层面
var abstractPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)strengthen understanding`),
	regexp.MustCompile(`(?i)build skills?`),
	regexp.MustCompile(`(?i)develop knowledge`),
	regexp.MustCompile(`(?i)gain familiarity`),
	regexp.MustCompile(`(?i)learn the basics`),
	regexp.MustCompile(`(?i)core concepts?`),
	regexp.MustCompile(`(?i)fundamental concepts?`),
	regexp.MustCompile(`(?i)build foundation`),
	regexp.MustCompile(`(?i)improve ability`),
	regexp.MustCompile(`(?i)enhance skills?`),
	regexp.MustCompile(`(?i)deepen understanding`),
	regexp.MustCompile(`(?i)broaden knowledge`),
	regexp.MustCompile(`(?i)expand capabilities`),
	regexp.MustCompile(`(?i)master the basics`),
}

var (
	timeTagPattern        = regexp.MustCompile(`\(\d+\s*min\)\s*$`)
	whitespaceRun         = regexp.MustCompile(`\s+`)
	spaceBeforePeriod     = regexp.MustCompile(`\s+\.`)
	spaceBeforeComma      = regexp.MustCompile(`\s+,`)
	duplicatePeriod       = regexp.MustCompile(`\.\s*\.`)
	orphanLeadPunctuation = regexp.MustCompile(`^[\s.,;:!]+`)
)

// PlanNormalizer 将外部生成器的松散输出规整为严格的 TaskSpec 列表。
// 所有文本都会经过 HTML 剥离与两套黑名单清洗，数量不足的字段用确定性填充补齐。
type PlanNormalizer struct {
	htmlPolicy *bluemonday.Policy
}

// NewPlanNormalizer 构造 PlanNormalizer。
func NewPlanNormalizer() *PlanNormalizer {
	return &PlanNormalizer{htmlPolicy: bluemonday.StrictPolicy()}
}

// NormalizePlan 把原始天数列表规整为恰好 totalDays 个 TaskSpec，按 1..N 编号。
// 缺失的天用回退计划补齐，多余的天被截断；rawDays 为空时整体使用回退计划。
func (n *PlanNormalizer) NormalizePlan(req PlanRequest, rawDays []RawPlanDay) []TaskSpec {
	phases := CalculatePhases(req.TotalDays)

	byDay := make(map[int]RawPlanDay, len(rawDays))
	for idx, raw := range rawDays {
		day := raw.DayNumber
		if day < 1 || day > req.TotalDays {
			day = idx + 1
		}
		if day < 1 || day > req.TotalDays {
			continue
		}
		if _, taken := byDay[day]; !taken {
			byDay[day] = raw
		}
	}

	fallback := FallbackPlan(req)

	specs := make([]TaskSpec, 0, req.TotalDays)
	for day := 1; day <= req.TotalDays; day++ {
		raw, ok := byDay[day]
		if !ok {
			raw = fallback[day-1]
		}
		specs = append(specs, n.normalizeDay(req, raw, day, phases))
	}

	return specs
}

func (n *PlanNormalizer) normalizeDay(req PlanRequest, raw RawPlanDay, day int, phases []PlanPhase) TaskSpec {
	phase := phaseForDay(phases, day)

	title := n.cleanText(raw.Title)
	if title == "" {
		title = n.cleanText(raw.Topic)
	}
	if title == "" {
		title = fmt.Sprintf("%s - Day %d", req.Title, day)
	}

	// 新命名 purpose 优先，旧命名 description 兜底
	purpose := n.cleanText(raw.Purpose)
	if purpose == "" {
		purpose = n.cleanText(raw.Description)
	}
	if purpose == "" {
		purpose = fmt.Sprintf("Focus on %s. Required for tasks in subsequent sessions.", title)
	}

	// 新命名 deliverables 优先，旧命名 whatToLearn 兜底
	rawDeliverables := raw.Deliverables
	if len(rawDeliverables) == 0 {
		rawDeliverables = raw.WhatToLearn
	}
	deliverables := make([]string, 0, max(len(rawDeliverables), minDeliverables))
	for _, d := range rawDeliverables {
		if cleaned := n.cleanText(d); cleaned != "" {
			deliverables = append(deliverables, cleaned)
		}
	}
	for i := len(deliverables); i < minDeliverables; i++ {
		deliverables = append(deliverables, fmt.Sprintf("Completed exercise set %d for %s", i+1, title))
	}

	minutes := raw.EstimatedMinutes
	if minutes <= 0 {
		minutes = req.DailyMinutes
	}

	items := make([]db.ActionItem, 0, max(len(raw.ActionItems), minActionItems))
	for _, item := range raw.ActionItems {
		cleaned := n.cleanText(item.Text)
		if cleaned == "" {
			continue
		}
		// 勾选状态在建任务时一律归零
		items = append(items, db.ActionItem{Text: ensureTimeTag(cleaned, req.DailyMinutes)})
	}
	for i := len(items); i < minActionItems; i++ {
		filler := fmt.Sprintf("Work through part %d of %s", i+1, title)
		items = append(items, db.ActionItem{Text: ensureTimeTag(filler, req.DailyMinutes)})
	}

	skill := n.cleanText(raw.SkillProgression)
	if skill == "" {
		skill = fmt.Sprintf("Outcome: Completed %s", title)
	}

	return TaskSpec{
		DayNumber:        day,
		Title:            title,
		Purpose:          purpose,
		Phase:            phase.Name,
		Deliverables:     deliverables,
		ActionItems:      items,
		Resources:        filterResources(raw.Resources),
		SkillProgression: skill,
		EstimatedMinutes: minutes,
	}
}

// cleanText 依次剥离 HTML、鼓励式措辞与空泛用语，并收敛清洗留下的标点空洞。
func (n *PlanNormalizer) cleanText(text string) string {
	cleaned := html.UnescapeString(n.htmlPolicy.Sanitize(text))

	for _, pattern := range motivationalPhrases {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}
	for _, pattern := range abstractPhrases {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	cleaned = whitespaceRun.ReplaceAllString(cleaned, " ")
	cleaned = spaceBeforePeriod.ReplaceAllString(cleaned, ".")
	cleaned = spaceBeforeComma.ReplaceAllString(cleaned, ",")
	cleaned = duplicatePeriod.ReplaceAllString(cleaned, ".")
	cleaned = orphanLeadPunctuation.ReplaceAllString(cleaned, "")

	return strings.TrimSpace(cleaned)
}

// ensureTimeTag 保证执行项末尾带有 (N min) 标注，缺失时按每日预算的四分之一补齐。
func ensureTimeTag(text string, dailyMinutes int) string {
	if timeTagPattern.MatchString(text) {
		return text
	}
	portion := dailyMinutes / 4
	if portion < 1 {
		portion = 1
	}
	return fmt.Sprintf("%s (%d min)", text, portion)
}

// filterResources 丢弃 URL 缺失或无法解析为 http(s) 地址的资源条目。
func filterResources(raws []RawResource) []db.Resource {
	resources := make([]db.Resource, 0, len(raws))
	for _, raw := range raws {
		trimmed := strings.TrimSpace(raw.URL)
		if trimmed == "" {
			continue
		}
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			continue
		}
		resType := strings.TrimSpace(raw.Type)
		if resType == "" {
			resType = "docs"
		}
		resources = append(resources, db.Resource{
			Type:    resType,
			Title:   strings.TrimSpace(raw.Title),
			URL:     trimmed,
			Creator: strings.TrimSpace(raw.Creator),
		})
	}
	return resources
}

// CalculatePhases 按固定阈值把 1..totalDays 切分为 1-4 个连续阶段。
func CalculatePhases(totalDays int) []PlanPhase {
	if totalDays <= 3 {
		return []PlanPhase{
			{Name: "Phase 1: Foundation & Quick Wins", StartDay: 1, EndDay: totalDays, Focus: "Core concepts and first practical application"},
		}
	}

	if totalDays <= 7 {
		foundationEnd := ceilFraction(totalDays, 0.4)
		return []PlanPhase{
			{Name: "Phase 1: Foundation", StartDay: 1, EndDay: foundationEnd, Focus: "Core concepts and mental models"},
			{Name: "Phase 2: Application", StartDay: foundationEnd + 1, EndDay: totalDays, Focus: "Hands-on practice and building"},
		}
	}

	if totalDays <= 14 {
		foundationEnd := ceilFraction(totalDays, 0.25)
		coreEnd := ceilFraction(totalDays, 0.6)
		return []PlanPhase{
			{Name: "Phase 1: Foundation", StartDay: 1, EndDay: foundationEnd, Focus: "Core concepts and terminology"},
			{Name: "Phase 2: Core Skills", StartDay: foundationEnd + 1, EndDay: coreEnd, Focus: "Essential techniques"},
			{Name: "Phase 3: Project", StartDay: coreEnd + 1, EndDay: totalDays, Focus: "Build something real"},
		}
	}

	foundationEnd := ceilFraction(totalDays, 0.2)
	coreEnd := ceilFraction(totalDays, 0.5)
	applicationEnd := ceilFraction(totalDays, 0.8)

	return []PlanPhase{
		{Name: "Phase 1: Foundation", StartDay: 1, EndDay: foundationEnd, Focus: "Core concepts, terminology, mental models"},
		{Name: "Phase 2: Core Skills", StartDay: foundationEnd + 1, EndDay: coreEnd, Focus: "Essential techniques and patterns"},
		{Name: "Phase 3: Application", StartDay: coreEnd + 1, EndDay: applicationEnd, Focus: "Real-world problem solving"},
		{Name: "Phase 4: Mastery Project", StartDay: applicationEnd + 1, EndDay: totalDays, Focus: "Independent creation"},
	}
}

func phaseForDay(phases []PlanPhase, day int) PlanPhase {
	for _, phase := range phases {
		if day >= phase.StartDay && day <= phase.EndDay {
			return phase
		}
	}
	return phases[0]
}

func ceilFraction(total int, fraction float64) int {
	value := int(float64(total) * fraction)
	if float64(total)*fraction > float64(value) {
		value++
	}
	return value
}

// FallbackPlan 构造确定性的回退计划：生成器失败时每个天位一条通用任务，
// 阶段划分与正常路径一致。该回退是本次创建的最终结果，不触发重试。
func FallbackPlan(req PlanRequest) []RawPlanDay {
	phases := CalculatePhases(req.TotalDays)
	days := make([]RawPlanDay, 0, req.TotalDays)

	for i := 1; i <= req.TotalDays; i++ {
		phase := phaseForDay(phases, i)
		phaseDay := i - phase.StartDay + 1

		studyMinutes := req.DailyMinutes * 4 / 10
		if studyMinutes < 1 {
			studyMinutes = 1
		}
		notesMinutes := req.DailyMinutes * 2 / 10
		if notesMinutes < 1 {
			notesMinutes = 1
		}

		days = append(days, RawPlanDay{
			DayNumber:        i,
			Title:            fmt.Sprintf("%s - %s Session %d", req.Title, phase.Name, phaseDay),
			Purpose:          fmt.Sprintf("%s. Required for tasks in subsequent sessions.", phase.Focus),
			EstimatedMinutes: req.DailyMinutes,
			Deliverables: []string{
				fmt.Sprintf("Completed exercises for session %d", phaseDay),
				fmt.Sprintf("Notes document for %s", phase.Name),
				"Practice project files",
			},
			ActionItems: []RawActionItem{
				{Text: fmt.Sprintf("Study core material for %s session %d (%d min)", req.Title, phaseDay, studyMinutes)},
				{Text: fmt.Sprintf("Complete %d practice exercises (%d min)", phaseDay*3, studyMinutes)},
				{Text: fmt.Sprintf("Create notes.md documenting key points from session %d (%d min)", phaseDay, notesMinutes)},
			},
			SkillProgression: fmt.Sprintf("Outcome: Completed session %d tasks for %s", i, req.Title),
		})
	}

	return days
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
