package db

import (
	"time"

	"gorm.io/gorm"
)

// 任务状态：pending 为初始态，completed 与 skipped 均为该条记录的终态
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusSkipped   = "skipped"
)

// ActionItem 表示任务下的一条可勾选执行项，Text 末尾携带 (N min) 时间标注
type ActionItem struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Resource 表示任务附带的学习资源，URL 不合法的条目在规整阶段被丢弃
type Resource struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Creator string `json:"creator"`
}

// Task 定义了目标下某一天的任务模型
// DayNumber 在计划规整阶段分配且此后不变，改期只移动 ScheduledDate
// 跳过一个任务会产生同 DayNumber 的全新 pending 记录，被跳过的记录保留为历史
// Goal 外键带 CASCADE，目标删除时任务一并删除
type Task struct {
	gorm.Model
	GoalID           uint `gorm:"index;not null"`
	Goal             Goal `gorm:"constraint:OnDelete:CASCADE"`
	UserID           uint `gorm:"index;not null"`
	DayNumber        int  `gorm:"index;not null"`
	Title            string
	Purpose          string
	Phase            string
	Deliverables     []string     `gorm:"serializer:json"`
	ActionItems      []ActionItem `gorm:"serializer:json"`
	Resources        []Resource   `gorm:"serializer:json"`
	SkillProgression string
	EstimatedMinutes int
	Status           string `gorm:"size:20;default:pending;index"`
	ScheduledDate    time.Time
	CompletedAt      *time.Time
	SkippedAt        *time.Time
}
