package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/daypace/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrGoalNotFound 在目标不存在或不属于当前用户时返回
	ErrGoalNotFound = errors.New("goal not found")
	// ErrGoalInvalidInput 在目标参数缺失或越界时返回
	ErrGoalInvalidInput = errors.New("invalid goal input")
)

// 各目标类型的最短建议天数，未列出的类型取 defaultMinimumDays
var minimumDaysByType = map[string]int{
	db.GoalTypeLearning: 3,
	db.GoalTypeProject:  3,
	db.GoalTypeHealth:   3,
	db.GoalTypeExam:     3,
	db.GoalTypeHabit:    3,
}

const (
	defaultMinimumDays  = 3
	defaultDailyMinutes = 60
)

// GoalInput 定义创建目标时的可配置字段
type GoalInput struct {
	Type         string
	Title        string
	Description  string
	TotalDays    int
	DailyMinutes int
}

// TimelineSuggestion 是创建前的周期检查结果
type TimelineSuggestion struct {
	IsRushed      bool
	SuggestedDays int
	Message       string
}

// PartnerProgressResult 汇总共享目标中对方的只读进度
type PartnerProgressResult struct {
	PartnerName   string
	CurrentDay    int
	CompletedDays int
	IsCompleted   bool
	Tasks         []PartnerTaskSummary
}

// PartnerTaskSummary 是对方单个任务的摘要
type PartnerTaskSummary struct {
	DayNumber int
	Title     string
	Status    string
}

// GoalService 负责目标的创建、激活与删除。
// 创建路径上外部生成器是可失败的黑盒：任何失败都会静默切换到确定性回退计划，
// 目标创建永远不会因生成器不可用而阻塞。
type GoalService struct {
	db         *gorm.DB
	generator  PlanGenerator
	normalizer *PlanNormalizer
}

// NewGoalService 构造 GoalService。
func NewGoalService(gdb *gorm.DB, generator PlanGenerator) *GoalService {
	return &GoalService{db: gdb, generator: generator, normalizer: NewPlanNormalizer()}
}

// CheckTimeline 按目标类型的最短周期表给出建议，短于下限时标记 isRushed。
func (s *GoalService) CheckTimeline(goalType string, totalDays int) TimelineSuggestion {
	minDays, ok := minimumDaysByType[goalType]
	if !ok {
		minDays = defaultMinimumDays
	}

	if totalDays < minDays {
		return TimelineSuggestion{
			IsRushed:      true,
			SuggestedDays: minDays,
			Message:       fmt.Sprintf("Minimum %d days recommended for this goal type to allow proper skill development.", minDays),
		}
	}

	return TimelineSuggestion{
		IsRushed:      false,
		SuggestedDays: totalDays,
		Message:       "Timeline accepted.",
	}
}

// Create 创建目标并一次性物化全部逐日任务。
// 生成器失败时换用回退计划；目标、任务与计划快照在同一事务内落库。
func (s *GoalService) Create(ctx context.Context, userID uint, input GoalInput) (*db.Goal, error) {
	if err := validateGoalInput(&input); err != nil {
		return nil, err
	}

	req := PlanRequest{
		Type:         input.Type,
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		TotalDays:    input.TotalDays,
		DailyMinutes: input.DailyMinutes,
	}

	rawDays := s.generatePlanWithFallback(ctx, req)
	specs := s.normalizer.NormalizePlan(req, rawDays)

	snapshot, err := json.Marshal(rawDays)
	if err != nil {
		return nil, fmt.Errorf("encode plan snapshot: %w", err)
	}

	startDate := startOfDay(time.Now())
	goal := db.Goal{
		UserID:        userID,
		Type:          req.Type,
		Title:         req.Title,
		Description:   req.Description,
		TotalDays:     req.TotalDays,
		DailyMinutes:  req.DailyMinutes,
		StartDate:     startDate,
		CurrentDay:    1,
		IsActive:      true,
		GeneratedPlan: string(snapshot),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&goal).Error; err != nil {
			return fmt.Errorf("create goal: %w", err)
		}

		tasks := BuildTasks(goal.ID, userID, specs, startDate)
		if err := tx.Create(&tasks).Error; err != nil {
			return fmt.Errorf("create tasks: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &goal, nil
}

// generatePlanWithFallback 调用外部生成器，失败即切换到确定性回退计划。
// 回退是本次创建的最终替代，不做重试；错误不向上传递。
func (s *GoalService) generatePlanWithFallback(ctx context.Context, req PlanRequest) []RawPlanDay {
	if s.generator == nil {
		return FallbackPlan(req)
	}

	rawDays, err := s.generator.GeneratePlan(ctx, req)
	if err != nil {
		log.Printf("plan generation failed, using fallback plan: %v", err)
		return FallbackPlan(req)
	}
	if len(rawDays) == 0 {
		log.Printf("plan generation returned no days, using fallback plan")
		return FallbackPlan(req)
	}

	return rawDays
}

// BuildTasks 把规整后的 TaskSpec 列表物化为任务记录，第 N 天排在 startDate+N-1。
func BuildTasks(goalID, userID uint, specs []TaskSpec, startDate time.Time) []db.Task {
	tasks := make([]db.Task, 0, len(specs))
	for _, spec := range specs {
		tasks = append(tasks, db.Task{
			GoalID:           goalID,
			UserID:           userID,
			DayNumber:        spec.DayNumber,
			Title:            spec.Title,
			Purpose:          spec.Purpose,
			Phase:            spec.Phase,
			Deliverables:     spec.Deliverables,
			ActionItems:      spec.ActionItems,
			Resources:        spec.Resources,
			SkillProgression: spec.SkillProgression,
			EstimatedMinutes: spec.EstimatedMinutes,
			Status:           db.TaskStatusPending,
			ScheduledDate:    startDate.AddDate(0, 0, spec.DayNumber-1),
		})
	}
	return tasks
}

// Get 返回指定目标，校验归属。
func (s *GoalService) Get(userID, goalID uint) (*db.Goal, error) {
	var goal db.Goal
	if err := s.db.Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &goal, nil
}

// List 返回用户的全部目标，最新创建的在前。
func (s *GoalService) List(userID uint) ([]db.Goal, error) {
	var goals []db.Goal
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// Active 返回当前进行中的目标。
func (s *GoalService) Active(userID uint) (*db.Goal, error) {
	var goal db.Goal
	if err := s.db.Where("user_id = ? AND is_active = ? AND is_completed = ?", userID, true, false).
		First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveGoal
		}
		return nil, fmt.Errorf("get active goal: %w", err)
	}
	return &goal, nil
}

// SetActive 激活指定目标。单活跃不变量在此保证：
// 先把该用户的全部目标置为非活跃，再激活目标本身，整体在一个事务内。
func (s *GoalService) SetActive(userID, goalID uint) (*db.Goal, error) {
	var goal db.Goal

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGoalNotFound
			}
			return fmt.Errorf("load goal: %w", err)
		}

		if err := tx.Model(&db.Goal{}).Where("user_id = ?", userID).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivate goals: %w", err)
		}

		if err := tx.Model(&goal).Update("is_active", true).Error; err != nil {
			return fmt.Errorf("activate goal: %w", err)
		}
		goal.IsActive = true

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &goal, nil
}

// ToggleActive 暂停或恢复目标。
func (s *GoalService) ToggleActive(userID, goalID uint) (*db.Goal, error) {
	goal, err := s.Get(userID, goalID)
	if err != nil {
		return nil, err
	}

	goal.IsActive = !goal.IsActive
	if err := s.db.Model(goal).Update("is_active", goal.IsActive).Error; err != nil {
		return nil, fmt.Errorf("toggle goal: %w", err)
	}

	return goal, nil
}

// CompleteGoal 手动收尾目标。
func (s *GoalService) CompleteGoal(userID, goalID uint) (*db.Goal, error) {
	goal, err := s.Get(userID, goalID)
	if err != nil {
		return nil, err
	}

	goal.IsCompleted = true
	goal.IsActive = false
	if err := s.db.Model(goal).Updates(map[string]interface{}{
		"is_completed": true,
		"is_active":    false,
	}).Error; err != nil {
		return nil, fmt.Errorf("complete goal: %w", err)
	}

	return goal, nil
}

// Delete 级联删除目标及其全部任务与动态，任务不会脱离目标存活。
func (s *GoalService) Delete(userID, goalID uint) error {
	goal, err := s.Get(userID, goalID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("goal_id = ?", goal.ID).Delete(&db.Task{}).Error; err != nil {
			return fmt.Errorf("delete goal tasks: %w", err)
		}
		if err := tx.Where("goal_id = ?", goal.ID).Delete(&db.Activity{}).Error; err != nil {
			return fmt.Errorf("delete goal activities: %w", err)
		}
		if err := tx.Delete(&db.Goal{}, goal.ID).Error; err != nil {
			return fmt.Errorf("delete goal: %w", err)
		}
		return nil
	})
}

// PartnerProgress 按需读取共享目标中对方的进度，不做任何写入或同步。
func (s *GoalService) PartnerProgress(userID, goalID uint) (*PartnerProgressResult, error) {
	goal, err := s.Get(userID, goalID)
	if err != nil {
		return nil, err
	}
	if !goal.IsShared || goal.PartnerGoalID == nil {
		return nil, ErrGoalNotFound
	}

	var partnerGoal db.Goal
	if err := s.db.First(&partnerGoal, *goal.PartnerGoalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("load partner goal: %w", err)
	}

	var partner db.User
	if goal.PartnerID != nil {
		if err := s.db.First(&partner, *goal.PartnerID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load partner: %w", err)
		}
	}

	var tasks []db.Task
	if err := s.db.Where("goal_id = ?", partnerGoal.ID).Order("day_number ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list partner tasks: %w", err)
	}

	summaries := make([]PartnerTaskSummary, 0, len(tasks))
	for _, task := range tasks {
		summaries = append(summaries, PartnerTaskSummary{
			DayNumber: task.DayNumber,
			Title:     task.Title,
			Status:    task.Status,
		})
	}

	return &PartnerProgressResult{
		PartnerName:   partner.Name,
		CurrentDay:    partnerGoal.CurrentDay,
		CompletedDays: partnerGoal.CompletedDays,
		IsCompleted:   partnerGoal.IsCompleted,
		Tasks:         summaries,
	}, nil
}

func validateGoalInput(input *GoalInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrGoalInvalidInput)
	}
	if !db.IsValidGoalType(input.Type) {
		return fmt.Errorf("%w: unsupported goal type %s", ErrGoalInvalidInput, input.Type)
	}
	if input.TotalDays < 1 {
		return fmt.Errorf("%w: totalDays must be at least 1", ErrGoalInvalidInput)
	}
	if input.DailyMinutes == 0 {
		input.DailyMinutes = defaultDailyMinutes
	}
	if input.DailyMinutes < 0 {
		return fmt.Errorf("%w: dailyMinutes must be positive", ErrGoalInvalidInput)
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
