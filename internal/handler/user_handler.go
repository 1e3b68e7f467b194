package handler

import (
	"errors"
	"net/http"

	"github.com/daypace/internal/service"
	"github.com/gin-gonic/gin"
)

type settingsPayload struct {
	ShowInFeed      *bool  `json:"show_in_feed"`
	ReminderEnabled *bool  `json:"reminder_enabled"`
	Timezone        string `json:"timezone"`
}

type friendPayload struct {
	Username string `json:"username"`
}

// UpdateSettings 更新用户偏好，未提供的字段保持原值
func (a *API) UpdateSettings(c *gin.Context) {
	var payload settingsPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	user, err := a.users.UpdateSettings(currentUserID(c), service.UserSettingsInput{
		ShowInFeed:      payload.ShowInFeed,
		ReminderEnabled: payload.ReminderEnabled,
		Timezone:        payload.Timezone,
	})
	if err != nil {
		handleUserError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(*user)})
}

// AddFriend 按用户名添加好友
func (a *API) AddFriend(c *gin.Context) {
	var payload friendPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	friend, err := a.users.AddFriend(currentUserID(c), payload.Username)
	if err != nil {
		handleUserError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"friend": gin.H{
		"id":       friend.ID,
		"username": friend.Username,
		"name":     friend.Name,
	}})
}

// ListFriends 返回好友列表
func (a *API) ListFriends(c *gin.Context) {
	friends, err := a.users.ListFriends(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取好友列表失败")
		return
	}

	items := make([]gin.H, 0, len(friends))
	for _, friend := range friends {
		items = append(items, gin.H{
			"id":       friend.ID,
			"username": friend.Username,
			"name":     friend.Name,
		})
	}

	c.JSON(http.StatusOK, gin.H{"friends": items})
}

func handleUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "用户不存在")
	case errors.Is(err, service.ErrAlreadyFriends):
		respondError(c, http.StatusBadRequest, "已经是好友")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
