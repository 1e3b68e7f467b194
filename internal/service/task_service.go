package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/daypace/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrTaskNotFound 在任务不存在或不属于当前用户时返回
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskNotPending 在对非 pending 任务做状态迁移时返回，
	// 包括并发场景下条件更新落空的情况
	ErrTaskNotPending = errors.New("task is not pending")
	// ErrNoActiveGoal 表示用户当前没有进行中的目标
	ErrNoActiveGoal = errors.New("no active goal")
	// ErrActionItemIndex 表示执行项下标越界
	ErrActionItemIndex = errors.New("action item index out of range")
)

// TaskService 承载任务状态机、跳过改期与当日任务选取
// 状态迁移一律走带 status 条件的单语句更新，并发的第二个调用会拿到 ErrTaskNotPending
type TaskService struct {
	db *gorm.DB
}

// GoalProgress 是伴随当日任务返回的目标进度摘要
type GoalProgress struct {
	ID            uint
	Title         string
	Type          string
	Progress      int
	CurrentDay    int
	CompletedDays int
	SkippedDays   int
	TotalDays     int
}

// TodayResult 描述 "今天做什么" 的查询结果
// AllDone 为 true 时目标下已无 pending 任务，Task 为 nil
type TodayResult struct {
	AllDone bool
	Task    *db.Task
	Goal    GoalProgress
}

// MutationResult 是完成/跳过后的返回值，携带刷新后的当日状态，
// 调用方无需再发起一次查询
type MutationResult struct {
	Task  db.Task
	Goal  db.Goal
	Today *TodayResult
}

// NewTaskService 构造 TaskService
func NewTaskService(gdb *gorm.DB) *TaskService {
	return &TaskService{db: gdb}
}

// Today 返回当前活跃目标下 DayNumber 最小的 pending 任务及进度摘要。
// 选取键是 DayNumber 而非 ScheduledDate：被跳过后克隆出的同号任务会立即重新
// 成为当日任务，这是有意选择的行为（见 DESIGN.md）。
func (s *TaskService) Today(userID uint) (*TodayResult, error) {
	var goal db.Goal
	if err := s.db.Where("user_id = ? AND is_active = ? AND is_completed = ?", userID, true, false).
		First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveGoal
		}
		return nil, fmt.Errorf("find active goal: %w", err)
	}

	return s.todayForGoal(s.db, goal)
}

func (s *TaskService) todayForGoal(tx *gorm.DB, goal db.Goal) (*TodayResult, error) {
	progress, err := s.progressFor(tx, goal)
	if err != nil {
		return nil, err
	}

	var task db.Task
	err = tx.Where("goal_id = ? AND status = ?", goal.ID, db.TaskStatusPending).
		Order("day_number ASC").
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &TodayResult{AllDone: true, Goal: progress}, nil
		}
		return nil, fmt.Errorf("find pending task: %w", err)
	}

	return &TodayResult{Task: &task, Goal: progress}, nil
}

func (s *TaskService) progressFor(tx *gorm.DB, goal db.Goal) (GoalProgress, error) {
	var total, completed int64
	if err := tx.Model(&db.Task{}).Where("goal_id = ?", goal.ID).Count(&total).Error; err != nil {
		return GoalProgress{}, fmt.Errorf("count tasks: %w", err)
	}
	if err := tx.Model(&db.Task{}).
		Where("goal_id = ? AND status = ?", goal.ID, db.TaskStatusCompleted).
		Count(&completed).Error; err != nil {
		return GoalProgress{}, fmt.Errorf("count completed tasks: %w", err)
	}

	percent := 0
	if total > 0 {
		percent = int(math.Round(float64(completed) / float64(total) * 100))
	}

	return GoalProgress{
		ID:            goal.ID,
		Title:         goal.Title,
		Type:          goal.Type,
		Progress:      percent,
		CurrentDay:    goal.CurrentDay,
		CompletedDays: goal.CompletedDays,
		SkippedDays:   goal.SkippedDays,
		TotalDays:     goal.TotalDays,
	}, nil
}

// Complete 把 pending 任务置为 completed 并推进目标计数。
// 迁移与计数在同一事务内完成；status 条件保证并发的重复调用只会成功一次。
func (s *TaskService) Complete(userID, taskID uint) (*MutationResult, error) {
	task, err := s.ownedTask(userID, taskID)
	if err != nil {
		return nil, err
	}

	var goal db.Goal
	now := time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.Task{}).
			Where("id = ? AND status = ?", task.ID, db.TaskStatusPending).
			Updates(map[string]interface{}{
				"status":       db.TaskStatusCompleted,
				"completed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("mark task completed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTaskNotPending
		}

		if err := tx.First(&goal, task.GoalID).Error; err != nil {
			return fmt.Errorf("load goal: %w", err)
		}

		goal.CompletedDays++
		goal.CurrentDay++

		// 无 pending 任务即目标完成
		var pending int64
		if err := tx.Model(&db.Task{}).
			Where("goal_id = ? AND status = ?", goal.ID, db.TaskStatusPending).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("count pending tasks: %w", err)
		}
		if pending == 0 {
			goal.IsCompleted = true
			goal.IsActive = false
		}

		if err := tx.Save(&goal).Error; err != nil {
			return fmt.Errorf("update goal progress: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	task.Status = db.TaskStatusCompleted
	task.CompletedAt = &now

	return s.mutationResult(*task, goal)
}

// Skip 把 pending 任务置为 skipped 并把该天内容排到队尾。
// 同一事务内：SkippedDays+1（CurrentDay 不动），其余 pending 任务的
// ScheduledDate 各后移一天，再以原任务内容克隆一条新的 pending 记录放在队尾。
// 被跳过的记录保留为历史，不会被复用。
func (s *TaskService) Skip(userID, taskID uint) (*MutationResult, error) {
	task, err := s.ownedTask(userID, taskID)
	if err != nil {
		return nil, err
	}

	var goal db.Goal
	now := time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.Task{}).
			Where("id = ? AND status = ?", task.ID, db.TaskStatusPending).
			Updates(map[string]interface{}{
				"status":     db.TaskStatusSkipped,
				"skipped_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("mark task skipped: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTaskNotPending
		}

		if err := tx.First(&goal, task.GoalID).Error; err != nil {
			return fmt.Errorf("load goal: %w", err)
		}

		goal.SkippedDays++
		if err := tx.Save(&goal).Error; err != nil {
			return fmt.Errorf("update goal progress: %w", err)
		}

		var pending []db.Task
		if err := tx.Where("goal_id = ? AND status = ?", goal.ID, db.TaskStatusPending).
			Order("day_number ASC").
			Find(&pending).Error; err != nil {
			return fmt.Errorf("list pending tasks: %w", err)
		}

		// 整体后移一天，DayNumber 不动
		for i := range pending {
			shifted := pending[i].ScheduledDate.Add(24 * time.Hour)
			if err := tx.Model(&pending[i]).Update("scheduled_date", shifted).Error; err != nil {
				return fmt.Errorf("shift task schedule: %w", err)
			}
			pending[i].ScheduledDate = shifted
		}

		trailing := now.Add(24 * time.Hour)
		if len(pending) > 0 {
			trailing = pending[len(pending)-1].ScheduledDate.Add(24 * time.Hour)
		}

		clone := db.Task{
			GoalID:           task.GoalID,
			UserID:           task.UserID,
			DayNumber:        task.DayNumber,
			Title:            task.Title,
			Purpose:          task.Purpose,
			EstimatedMinutes: task.EstimatedMinutes,
			ActionItems:      resetActionItems(task.ActionItems),
			Status:           db.TaskStatusPending,
			ScheduledDate:    trailing,
		}
		if err := tx.Create(&clone).Error; err != nil {
			return fmt.Errorf("requeue skipped task: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	task.Status = db.TaskStatusSkipped
	task.SkippedAt = &now

	return s.mutationResult(*task, goal)
}

func (s *TaskService) mutationResult(task db.Task, goal db.Goal) (*MutationResult, error) {
	result := &MutationResult{Task: task, Goal: goal}

	if goal.IsActive && !goal.IsCompleted {
		today, err := s.todayForGoal(s.db, goal)
		if err != nil {
			return nil, err
		}
		result.Today = today
	}

	return result, nil
}

// SetActionItem 更新任务单条执行项的勾选状态，下标越界返回 ErrActionItemIndex。
func (s *TaskService) SetActionItem(userID, taskID uint, index int, completed bool) (*db.Task, error) {
	task, err := s.ownedTask(userID, taskID)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(task.ActionItems) {
		return nil, fmt.Errorf("%w: %d", ErrActionItemIndex, index)
	}

	task.ActionItems[index].Completed = completed
	if err := s.db.Model(task).Update("action_items", task.ActionItems).Error; err != nil {
		return nil, fmt.Errorf("update action item: %w", err)
	}

	return task, nil
}

// AllForGoal 返回目标下全部任务，按 DayNumber 升序（路线图视图）。
func (s *TaskService) AllForGoal(userID, goalID uint) ([]db.Task, error) {
	var tasks []db.Task
	if err := s.db.Where("user_id = ? AND goal_id = ?", userID, goalID).
		Order("day_number ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list goal tasks: %w", err)
	}
	return tasks, nil
}

// History 返回目标下已完成与已跳过的任务，最近处理的在前。
func (s *TaskService) History(userID, goalID uint) ([]db.Task, error) {
	var tasks []db.Task
	if err := s.db.Where("user_id = ? AND goal_id = ? AND status IN ?",
		userID, goalID, []string{db.TaskStatusCompleted, db.TaskStatusSkipped}).
		Order("COALESCE(completed_at, skipped_at) DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list task history: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) ownedTask(userID, taskID uint) (*db.Task, error) {
	var task db.Task
	if err := s.db.Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("load task: %w", err)
	}
	return &task, nil
}

func resetActionItems(items []db.ActionItem) []db.ActionItem {
	reset := make([]db.ActionItem, len(items))
	for i, item := range items {
		reset[i] = db.ActionItem{Text: item.Text}
	}
	return reset
}
