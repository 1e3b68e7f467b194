package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/daypace/internal/db"
	"gorm.io/gorm"
)

// ActivityEntry 是动态流中的一条展示项
type ActivityEntry struct {
	ID        uint
	UserName  string
	Type      string
	Message   string
	CreatedAt time.Time
}

// DailyStats 汇总当天的社区概况
type DailyStats struct {
	UsersCompletedToday int
	UsersActiveToday    int
	CommunitySize       int
}

// ActivityService 负责动态流的写入与读取。
// 写入只在用户开启 ShowInFeed 时发生，核心任务流程不依赖其成功与否。
type ActivityService struct {
	db *gorm.DB
}

// NewActivityService 构造 ActivityService
func NewActivityService(gdb *gorm.DB) *ActivityService {
	return &ActivityService{db: gdb}
}

// Record 为开启了公开展示的用户写入一条动态，未开启时静默跳过。
func (s *ActivityService) Record(userID, goalID uint, activityType, message string) error {
	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load user for activity: %w", err)
	}
	if !user.ShowInFeed {
		return nil
	}

	entry := db.Activity{
		UserID:   userID,
		GoalID:   goalID,
		Type:     activityType,
		Message:  message,
		IsPublic: true,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("record activity: %w", err)
	}

	return nil
}

// Feed 返回公开动态，按时间倒序分页。
func (s *ActivityService) Feed(limit, offset int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var rows []ActivityEntry
	if err := s.db.Model(&db.Activity{}).
		Select("activities.id AS id, users.name AS user_name, activities.type AS type, activities.message AS message, activities.created_at AS created_at").
		Joins("JOIN users ON users.id = activities.user_id").
		Where("activities.is_public = ? AND users.show_in_feed = ?", true, true).
		Order("activities.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list activity feed: %w", err)
	}

	return rows, nil
}

// MyActivity 返回用户自己的最近动态。
func (s *ActivityService) MyActivity(userID uint) ([]db.Activity, error) {
	var activities []db.Activity
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(50).
		Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("list my activity: %w", err)
	}
	return activities, nil
}

// Stats 统计今天完成过任务的用户数、活跃用户数与社区规模。
func (s *ActivityService) Stats(now time.Time) (*DailyStats, error) {
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	var completedUsers []uint
	if err := s.db.Model(&db.Task{}).
		Distinct("user_id").
		Where("status = ? AND completed_at >= ? AND completed_at < ?", db.TaskStatusCompleted, today, tomorrow).
		Pluck("user_id", &completedUsers).Error; err != nil {
		return nil, fmt.Errorf("count completed users: %w", err)
	}

	var activeToday int64
	if err := s.db.Model(&db.User{}).
		Where("last_active_at >= ?", today).
		Count(&activeToday).Error; err != nil {
		return nil, fmt.Errorf("count active users: %w", err)
	}

	var communitySize int64
	if err := s.db.Model(&db.User{}).
		Where("show_in_feed = ?", true).
		Count(&communitySize).Error; err != nil {
		return nil, fmt.Errorf("count community: %w", err)
	}

	return &DailyStats{
		UsersCompletedToday: len(completedUsers),
		UsersActiveToday:    int(activeToday),
		CommunitySize:       int(communitySize),
	}, nil
}
