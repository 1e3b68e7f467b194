package db

import "gorm.io/gorm"

// 动态类型：开始目标、完成当日任务、达成里程碑
const (
	ActivityTypeStarted   = "started"
	ActivityTypeCompleted = "completed"
	ActivityTypeMilestone = "milestone"
)

// Activity 记录展示在公共动态流中的事件
// 仅当用户 ShowInFeed 开启时写入，读取侧按 created_at 倒序分页
type Activity struct {
	gorm.Model
	UserID   uint `gorm:"index;not null"`
	GoalID   uint `gorm:"index"`
	Type     string
	Message  string
	IsPublic bool `gorm:"default:true"`
}
