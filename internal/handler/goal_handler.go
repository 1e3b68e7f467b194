package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/daypace/internal/db"
	"github.com/daypace/internal/service"
	"github.com/gin-gonic/gin"
)

const dateFormat = "2006-01-02"

type goalPayload struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	TotalDays    int    `json:"total_days"`
	DailyMinutes int    `json:"daily_minutes"`
}

type timelinePayload struct {
	Type      string `json:"type"`
	TotalDays int    `json:"total_days"`
}

type invitePayload struct {
	FriendID uint        `json:"friend_id"`
	Goal     goalPayload `json:"goal"`
}

func (p goalPayload) toInput() service.GoalInput {
	return service.GoalInput{
		Type:         p.Type,
		Title:        p.Title,
		Description:  p.Description,
		TotalDays:    p.TotalDays,
		DailyMinutes: p.DailyMinutes,
	}
}

// CheckTimeline 在创建前按目标类型检查周期是否过短
func (a *API) CheckTimeline(c *gin.Context) {
	var payload timelinePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	suggestion := a.goals.CheckTimeline(payload.Type, payload.TotalDays)
	c.JSON(http.StatusOK, gin.H{
		"isRushed":      suggestion.IsRushed,
		"suggestedDays": suggestion.SuggestedDays,
		"message":       suggestion.Message,
	})
}

// CreateGoal 创建目标并物化全部逐日任务
func (a *API) CreateGoal(c *gin.Context) {
	var payload goalPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	userID := currentUserID(c)
	goal, err := a.goals.Create(c.Request.Context(), userID, payload.toInput())
	if err != nil {
		handleGoalError(c, err)
		return
	}

	a.recordGoalActivity(userID, goal.ID, db.ActivityTypeStarted,
		func(name string) string { return fmt.Sprintf("%s started a new %s goal", name, goal.Type) })

	c.JSON(http.StatusCreated, gin.H{"goal": goalToPayload(*goal)})
}

// ListGoals 返回用户的全部目标
func (a *API) ListGoals(c *gin.Context) {
	goals, err := a.goals.List(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取目标列表失败")
		return
	}

	items := make([]gin.H, 0, len(goals))
	for _, goal := range goals {
		items = append(items, goalToPayload(goal))
	}

	c.JSON(http.StatusOK, gin.H{"goals": items})
}

// GetActiveGoal 返回当前进行中的目标
func (a *API) GetActiveGoal(c *gin.Context) {
	goal, err := a.goals.Active(currentUserID(c))
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// GetGoal 返回单个目标详情
func (a *API) GetGoal(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	goal, err := a.goals.Get(currentUserID(c), goalID)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// CompleteGoal 手动收尾目标
func (a *API) CompleteGoal(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	userID := currentUserID(c)
	goal, err := a.goals.CompleteGoal(userID, goalID)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	a.recordGoalActivity(userID, goal.ID, db.ActivityTypeMilestone,
		func(name string) string {
			return fmt.Sprintf("%s completed their %s goal: %q", name, goal.Type, goal.Title)
		})

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// ToggleActiveGoal 暂停或恢复目标
func (a *API) ToggleActiveGoal(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	goal, err := a.goals.ToggleActive(currentUserID(c), goalID)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// SetActiveGoal 激活指定目标，同时停用该用户的其他目标
func (a *API) SetActiveGoal(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	goal, err := a.goals.SetActive(currentUserID(c), goalID)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// DeleteGoal 级联删除目标及其任务与动态
func (a *API) DeleteGoal(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	if err := a.goals.Delete(currentUserID(c), goalID); err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// InviteFriend 向好友发出共享目标邀请
func (a *API) InviteFriend(c *gin.Context) {
	var payload invitePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if payload.FriendID == 0 {
		respondError(c, http.StatusBadRequest, "请选择要邀请的好友")
		return
	}

	invite, err := a.sharedGoals.Invite(c.Request.Context(), currentUserID(c), payload.FriendID, payload.Goal.toInput())
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invite": gin.H{"token": invite.Token}})
}

// ListInvites 返回收到的待处理邀请
func (a *API) ListInvites(c *gin.Context) {
	invites, err := a.sharedGoals.ListInvites(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取邀请列表失败")
		return
	}

	items := make([]gin.H, 0, len(invites))
	for _, invite := range invites {
		items = append(items, gin.H{
			"token":         invite.Token,
			"from_id":       invite.FromUserID,
			"from_name":     invite.FromName,
			"type":          invite.Type,
			"title":         invite.Title,
			"description":   invite.Description,
			"total_days":    invite.TotalDays,
			"daily_minutes": invite.DailyMinutes,
			"created_at":    invite.CreatedAt.Format(dateFormat),
		})
	}

	c.JSON(http.StatusOK, gin.H{"invites": items})
}

// AcceptInvite 接受共享目标邀请，为双方各建一套目标与任务
func (a *API) AcceptInvite(c *gin.Context) {
	token := c.Param("token")
	userID := currentUserID(c)

	result, err := a.sharedGoals.Accept(c.Request.Context(), userID, token)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	a.recordGoalActivity(userID, result.Goal.ID, db.ActivityTypeStarted,
		func(name string) string {
			return fmt.Sprintf("%s started a shared %s goal", name, result.Goal.Type)
		})
	a.recordGoalActivity(result.PartnerGoal.UserID, result.PartnerGoal.ID, db.ActivityTypeStarted,
		func(name string) string {
			return fmt.Sprintf("%s started a shared %s goal", name, result.PartnerGoal.Type)
		})

	c.JSON(http.StatusOK, gin.H{
		"goal":         goalToPayload(result.Goal),
		"partner_goal": goalToPayload(result.PartnerGoal),
	})
}

// DeclineInvite 拒绝共享目标邀请
func (a *API) DeclineInvite(c *gin.Context) {
	if err := a.sharedGoals.Decline(currentUserID(c), c.Param("token")); err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"declined": true})
}

// GetPartnerProgress 返回共享目标中对方的只读进度
func (a *API) GetPartnerProgress(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	progress, err := a.goals.PartnerProgress(currentUserID(c), goalID)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	tasks := make([]gin.H, 0, len(progress.Tasks))
	for _, task := range progress.Tasks {
		tasks = append(tasks, gin.H{
			"day_number": task.DayNumber,
			"title":      task.Title,
			"status":     task.Status,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"partner_name":   progress.PartnerName,
		"current_day":    progress.CurrentDay,
		"completed_days": progress.CompletedDays,
		"is_completed":   progress.IsCompleted,
		"tasks":          tasks,
	})
}

// recordGoalActivity 在开启公开展示时写入动态，写入失败不影响主流程
func (a *API) recordGoalActivity(userID, goalID uint, activityType string, message func(name string) string) {
	user, err := a.users.Get(userID)
	if err != nil {
		return
	}
	_ = a.activities.Record(userID, goalID, activityType, message(user.Name))
}

func goalToPayload(goal db.Goal) gin.H {
	payload := gin.H{
		"id":             goal.ID,
		"type":           goal.Type,
		"title":          goal.Title,
		"description":    goal.Description,
		"total_days":     goal.TotalDays,
		"daily_minutes":  goal.DailyMinutes,
		"start_date":     goal.StartDate.Format(dateFormat),
		"current_day":    goal.CurrentDay,
		"completed_days": goal.CompletedDays,
		"skipped_days":   goal.SkippedDays,
		"is_active":      goal.IsActive,
		"is_completed":   goal.IsCompleted,
		"is_shared":      goal.IsShared,
	}

	if goal.PartnerID != nil {
		payload["partner_id"] = *goal.PartnerID
	}
	if goal.PartnerGoalID != nil {
		payload["partner_goal_id"] = *goal.PartnerGoalID
	}

	return payload
}

func handleGoalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGoalNotFound):
		respondError(c, http.StatusNotFound, "目标不存在")
	case errors.Is(err, service.ErrNoActiveGoal):
		respondError(c, http.StatusNotFound, "当前没有进行中的目标")
	case errors.Is(err, service.ErrInviteNotFound):
		respondError(c, http.StatusNotFound, "邀请不存在")
	case errors.Is(err, service.ErrGoalInvalidInput):
		respondError(c, http.StatusBadRequest, "目标参数不合法")
	case errors.Is(err, service.ErrNotFriends):
		respondError(c, http.StatusBadRequest, "只能邀请好友")
	case errors.Is(err, service.ErrInvitePending):
		respondError(c, http.StatusBadRequest, "已有待处理的邀请")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
