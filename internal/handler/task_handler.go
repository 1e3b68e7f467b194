package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/daypace/internal/db"
	"github.com/daypace/internal/service"
	"github.com/gin-gonic/gin"
)

type actionItemPayload struct {
	Completed bool `json:"completed"`
}

// GetTodayTask 返回活跃目标下的当日任务与进度摘要
func (a *API) GetTodayTask(c *gin.Context) {
	result, err := a.tasks.Today(currentUserID(c))
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, todayToPayload(result))
}

// CompleteTask 把任务标记为完成并返回刷新后的当日状态
func (a *API) CompleteTask(c *gin.Context) {
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	userID := currentUserID(c)
	result, err := a.tasks.Complete(userID, taskID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	a.recordGoalActivity(userID, result.Goal.ID, db.ActivityTypeCompleted,
		func(name string) string {
			return fmt.Sprintf("%s completed day %d of %q", name, result.Task.DayNumber, result.Goal.Title)
		})
	if result.Goal.IsCompleted {
		a.recordGoalActivity(userID, result.Goal.ID, db.ActivityTypeMilestone,
			func(name string) string {
				return fmt.Sprintf("%s finished their %s goal: %q", name, result.Goal.Type, result.Goal.Title)
			})
	}

	c.JSON(http.StatusOK, mutationToPayload(result))
}

// SkipTask 跳过任务，当天内容自动排到队尾
func (a *API) SkipTask(c *gin.Context) {
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	result, err := a.tasks.Skip(currentUserID(c), taskID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, mutationToPayload(result))
}

// SetActionItem 勾选或取消任务中的单条执行项
func (a *API) SetActionItem(c *gin.Context) {
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}
	index, err := parseIntParam(c, "index")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的执行项下标")
		return
	}

	var payload actionItemPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	task, err := a.tasks.SetActionItem(currentUserID(c), taskID, index, payload.Completed)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

// GetGoalTasks 返回目标的完整逐日路线图
func (a *API) GetGoalTasks(c *gin.Context) {
	goalID, err := parseUintParam(c, "goalId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	tasks, err := a.tasks.AllForGoal(currentUserID(c), goalID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasksToPayload(tasks)})
}

// GetTaskHistory 返回目标下已完成与已跳过的任务
func (a *API) GetTaskHistory(c *gin.Context) {
	goalID, err := parseUintParam(c, "goalId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	tasks, err := a.tasks.History(currentUserID(c), goalID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasksToPayload(tasks)})
}

func todayToPayload(result *service.TodayResult) gin.H {
	payload := gin.H{
		"all_done": result.AllDone,
		"goal":     progressToPayload(result.Goal),
	}
	if result.Task != nil {
		payload["task"] = taskToPayload(*result.Task)
	}
	return payload
}

func mutationToPayload(result *service.MutationResult) gin.H {
	payload := gin.H{
		"task": taskToPayload(result.Task),
		"goal": goalToPayload(result.Goal),
	}
	if result.Today != nil {
		payload["today"] = todayToPayload(result.Today)
	}
	return payload
}

func progressToPayload(progress service.GoalProgress) gin.H {
	return gin.H{
		"id":             progress.ID,
		"title":          progress.Title,
		"type":           progress.Type,
		"progress":       progress.Progress,
		"current_day":    progress.CurrentDay,
		"completed_days": progress.CompletedDays,
		"skipped_days":   progress.SkippedDays,
		"total_days":     progress.TotalDays,
	}
}

func taskToPayload(task db.Task) gin.H {
	actionItems := make([]gin.H, 0, len(task.ActionItems))
	for _, item := range task.ActionItems {
		actionItems = append(actionItems, gin.H{"text": item.Text, "completed": item.Completed})
	}

	resources := make([]gin.H, 0, len(task.Resources))
	for _, res := range task.Resources {
		resources = append(resources, gin.H{
			"type":    res.Type,
			"title":   res.Title,
			"url":     res.URL,
			"creator": res.Creator,
		})
	}

	payload := gin.H{
		"id":                task.ID,
		"goal_id":           task.GoalID,
		"day_number":        task.DayNumber,
		"title":             task.Title,
		"purpose":           task.Purpose,
		"phase":             task.Phase,
		"deliverables":      task.Deliverables,
		"action_items":      actionItems,
		"resources":         resources,
		"skill_progression": task.SkillProgression,
		"estimated_minutes": task.EstimatedMinutes,
		"status":            task.Status,
		"scheduled_date":    task.ScheduledDate.Format(time.RFC3339),
	}

	if task.CompletedAt != nil {
		payload["completed_at"] = task.CompletedAt.Format(time.RFC3339)
	}
	if task.SkippedAt != nil {
		payload["skipped_at"] = task.SkippedAt.Format(time.RFC3339)
	}

	return payload
}

func tasksToPayload(tasks []db.Task) []gin.H {
	items := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskToPayload(task))
	}
	return items
}

func handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "任务不存在")
	case errors.Is(err, service.ErrNoActiveGoal):
		respondError(c, http.StatusNotFound, "当前没有进行中的目标")
	case errors.Is(err, service.ErrTaskNotPending):
		respondError(c, http.StatusConflict, "任务已被处理")
	case errors.Is(err, service.ErrActionItemIndex):
		respondError(c, http.StatusBadRequest, "执行项下标越界")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
