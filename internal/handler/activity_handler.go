package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GetActivityFeed 返回公开动态流，支持 limit/offset 分页
func (a *API) GetActivityFeed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := a.activities.Feed(limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取动态失败")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		items = append(items, gin.H{
			"id":         entry.ID,
			"user_name":  entry.UserName,
			"type":       entry.Type,
			"message":    entry.Message,
			"created_at": entry.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"activities": items})
}

// GetMyActivity 返回当前用户自己的最近动态
func (a *API) GetMyActivity(c *gin.Context) {
	activities, err := a.activities.MyActivity(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取动态失败")
		return
	}

	items := make([]gin.H, 0, len(activities))
	for _, activity := range activities {
		items = append(items, gin.H{
			"id":         activity.ID,
			"goal_id":    activity.GoalID,
			"type":       activity.Type,
			"message":    activity.Message,
			"created_at": activity.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"activities": items})
}

// GetDailyStats 返回今日社区概况
func (a *API) GetDailyStats(c *gin.Context) {
	stats, err := a.activities.Stats(time.Now())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取统计失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users_completed_today": stats.UsersCompletedToday,
		"users_active_today":    stats.UsersActiveToday,
		"community_size":        stats.CommunitySize,
	})
}
