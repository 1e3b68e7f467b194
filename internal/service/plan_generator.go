package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	defaultOpenAIPlannerModel   = "gpt-4o"
	defaultDeepSeekPlannerModel = "deepseek-chat"
	defaultPlannerMaxTokens     = 3000
	defaultPlannerTemperature   = 0.7
)

// ErrPlanEmpty 表示模型未返回任何天数条目。
var ErrPlanEmpty = errors.New("plan generation returned no days")

// PlanRequest 描述生成逐日计划所需的目标参数。
type PlanRequest struct {
	Type         string
	Title        string
	Description  string
	TotalDays    int
	DailyMinutes int
}

// RawActionItem 兼容生成器返回的字符串或 {text, completed} 两种形态。
type RawActionItem struct {
	Text      string
	Completed bool
}

// UnmarshalJSON 同时接受 "..." 与 {"text": "...", "completed": bool}。
func (r *RawActionItem) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		r.Text = text
		r.Completed = false
		return nil
	}

	var obj struct {
		Text      string `json:"text"`
		Completed bool   `json:"completed"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.Text = obj.Text
	r.Completed = obj.Completed
	return nil
}

// RawResource 描述生成器返回的资源条目，规整阶段会过滤掉 URL 不合法的项。
type RawResource struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Creator string `json:"creator"`
}

// RawPlanDay 表示外部生成器产出的松散单日描述。
// 字段命名存在新旧两套（purpose/description、deliverables/whatToLearn），
// 规整阶段优先采用较新的命名。
type RawPlanDay struct {
	DayNumber        int             `json:"dayNumber"`
	Topic            string          `json:"topic"`
	Title            string          `json:"title"`
	Purpose          string          `json:"purpose"`
	Description      string          `json:"description"`
	Deliverables     []string        `json:"deliverables"`
	WhatToLearn      []string        `json:"whatToLearn"`
	ActionItems      []RawActionItem `json:"actionItems"`
	Resources        []RawResource   `json:"resources"`
	SkillProgression string          `json:"skillProgression"`
	EstimatedMinutes int             `json:"estimatedMinutes"`
}

// PlanGenerator 定义逐日计划的生成能力，便于在业务层注入不同实现。
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, req PlanRequest) ([]RawPlanDay, error)
}

// AIPlanService 基于大模型接口生成目标的逐日主题序列。
type AIPlanService struct {
	client *aiChatClient
}

// NewAIPlanService 构造默认的 AIPlanService。
func NewAIPlanService(settings *SystemSettingService) *AIPlanService {
	return &AIPlanService{
		client: newAIChatClient(settings, defaultOpenAIPlannerModel, defaultDeepSeekPlannerModel),
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *AIPlanService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetOpenAIBaseURL 覆盖默认的 OpenAI API 地址。
func (s *AIPlanService) SetOpenAIBaseURL(base string) {
	s.client.SetOpenAIBaseURL(base)
}

// SetDeepSeekBaseURL 覆盖默认的 DeepSeek API 地址。
func (s *AIPlanService) SetDeepSeekBaseURL(base string) {
	s.client.SetDeepSeekBaseURL(base)
}

// GeneratePlan 请求模型产出 totalDays 个逐日主题并解析为 RawPlanDay 列表。
// 任何失败都会原样返回错误，由调用方决定回退策略。
func (s *AIPlanService) GeneratePlan(ctx context.Context, req PlanRequest) ([]RawPlanDay, error) {
	userPrompt := buildPlannerPrompt(req)
	logAIExchange("PLANNER", "prompt", userPrompt)

	result, err := s.client.call(ctx, aiChatRequest{
		SystemPrompt: plannerSystemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    defaultPlannerMaxTokens,
		Temperature:  defaultPlannerTemperature,
	})
	if err != nil {
		return nil, err
	}

	logAIExchange("PLANNER", "response", result.Content)

	days, err := parsePlannerResponse(result.Content)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, ErrPlanEmpty
	}

	return days, nil
}

const plannerSystemPrompt = `You are an expert curriculum designer with deep knowledge of every skill domain.

Your job: generate a day-by-day topic progression for the skill the user wants to build.

RULES:
1. Each day = ONE specific topic or concept to focus on
2. Topics must build on each other logically
3. Progress from fundamentals to intermediate to advanced
4. Topics must be SPECIFIC, not vague ("Breathing techniques and diaphragm control", never "Basics")
5. No motivational language, no vague terms, no repetition across days`

func buildPlannerPrompt(req PlanRequest) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Create a %d-day topic progression for: %q", req.TotalDays, req.Title)
	if strings.TrimSpace(req.Description) != "" {
		fmt.Fprintf(&builder, " - %s", strings.TrimSpace(req.Description))
	}
	builder.WriteString("\n\n")
	fmt.Fprintf(&builder, "Generate exactly %d unique topics, one per day, in the optimal order.\n", req.TotalDays)
	fmt.Fprintf(&builder, "Time available per day: %d minutes.\n\n", req.DailyMinutes)
	builder.WriteString("Return ONLY a valid JSON array with this structure:\n")
	fmt.Fprintf(&builder, `[{"dayNumber": 1, "topic": "Specific topic name", "estimatedMinutes": %d}]`, req.DailyMinutes)
	builder.WriteString("\n\nNo markdown, no code blocks, no explanation. Just the JSON array.")
	return builder.String()
}

// parsePlannerResponse 去除可能混入的代码围栏后解析 JSON 数组。
// topic 仅作标题来源，完整字段由规整阶段补齐。
func parsePlannerResponse(content string) ([]RawPlanDay, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var days []RawPlanDay
	if err := json.Unmarshal([]byte(cleaned), &days); err != nil {
		return nil, fmt.Errorf("parse planner response: %w", err)
	}

	for i := range days {
		if days[i].Title == "" && days[i].Topic != "" {
			days[i].Title = days[i].Topic
		}
	}

	return days, nil
}
