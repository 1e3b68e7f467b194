package db

import (
	"time"

	"gorm.io/gorm"
)

// 目标类型的闭集，对应不同的最短周期建议
const (
	GoalTypeLearning = "learning"
	GoalTypeProject  = "project"
	GoalTypeHealth   = "health"
	GoalTypeExam     = "exam"
	GoalTypeHabit    = "habit"
)

// GoalTypes 列出全部合法的目标类型
var GoalTypes = []string{GoalTypeLearning, GoalTypeProject, GoalTypeHealth, GoalTypeExam, GoalTypeHabit}

// Goal 定义了多日目标模型
// CurrentDay 从 1 开始，仅在完成任务时递增；CompletedDays/SkippedDays 单调不减
// IsCompleted 为派生状态：当目标下不存在 pending 任务时置 true
// GeneratedPlan 保存规划器输出的 JSON 快照，共享目标接受时据此重放建任务
// PartnerID/PartnerGoalID 在共享目标中互相指向对方，创建后各自独立推进
type Goal struct {
	gorm.Model
	UserID        uint   `gorm:"index;not null"`
	Type          string `gorm:"size:20;not null"`
	Title         string `gorm:"not null"`
	Description   string
	TotalDays     int `gorm:"not null"`
	DailyMinutes  int `gorm:"not null"`
	StartDate     time.Time
	CurrentDay    int  `gorm:"default:1"`
	CompletedDays int  `gorm:"default:0"`
	SkippedDays   int  `gorm:"default:0"`
	IsActive      bool `gorm:"default:true"`
	IsCompleted   bool `gorm:"default:false"`
	GeneratedPlan string
	IsShared      bool `gorm:"default:false"`
	PartnerID     *uint
	PartnerGoalID *uint
}

// IsValidGoalType 校验目标类型是否属于闭集
func IsValidGoalType(goalType string) bool {
	for _, t := range GoalTypes {
		if t == goalType {
			return true
		}
	}
	return false
}
