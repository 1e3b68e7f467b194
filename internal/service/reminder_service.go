package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/daypace/internal/db"
	"gorm.io/gorm"
)

// DueReminder 描述一条应提醒的当日任务
type DueReminder struct {
	UserID    uint
	UserName  string
	GoalTitle string
	TaskTitle string
}

// ReminderService 是只读的提醒扫描：枚举今天有待办任务的用户。
// 它不修改任何核心状态，真正的推送渠道由外部系统接入。
type ReminderService struct {
	db *gorm.DB
}

// NewReminderService 构造 ReminderService
func NewReminderService(gdb *gorm.DB) *ReminderService {
	return &ReminderService{db: gdb}
}

// ListDueToday 返回所有开启提醒且今天仍有 pending 任务的用户及其任务。
func (s *ReminderService) ListDueToday(now time.Time) ([]DueReminder, error) {
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	var users []db.User
	if err := s.db.Where("reminder_enabled = ?", true).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list reminder users: %w", err)
	}

	reminders := make([]DueReminder, 0)
	for _, user := range users {
		var goals []db.Goal
		if err := s.db.Where("user_id = ? AND is_active = ? AND is_completed = ?", user.ID, true, false).
			Find(&goals).Error; err != nil {
			return nil, fmt.Errorf("list active goals: %w", err)
		}

		for _, goal := range goals {
			var task db.Task
			err := s.db.Where("goal_id = ? AND status = ? AND scheduled_date >= ? AND scheduled_date < ?",
				goal.ID, db.TaskStatusPending, today, tomorrow).
				First(&task).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return nil, fmt.Errorf("find due task: %w", err)
			}

			reminders = append(reminders, DueReminder{
				UserID:    user.ID,
				UserName:  user.Name,
				GoalTitle: goal.Title,
				TaskTitle: task.Title,
			})
		}
	}

	return reminders, nil
}

// Sweep 输出今日提醒，仅做日志记录。
func (s *ReminderService) Sweep(now time.Time) {
	reminders, err := s.ListDueToday(now)
	if err != nil {
		log.Printf("reminder sweep failed: %v", err)
		return
	}

	for _, reminder := range reminders {
		log.Printf("reminder for %s: complete %q (%s)", reminder.UserName, reminder.TaskTitle, reminder.GoalTitle)
	}
}
