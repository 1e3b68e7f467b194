package handler

import (
	"errors"
	"net/http"

	"github.com/daypace/internal/db"
	"github.com/daypace/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const sessionUserKey = "user_id"

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Register 注册新账号并直接建立会话
func (a *API) Register(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	user, err := a.users.Register(payload.Username, payload.Password, payload.Name)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			respondError(c, http.StatusBadRequest, "用户名已被占用")
			return
		}
		respondError(c, http.StatusBadRequest, "注册失败")
		return
	}

	if !saveSession(c, user.ID) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": userToPayload(*user)})
}

// Login 处理登录请求
func (a *API) Login(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	user, err := a.users.Authenticate(payload.Username, payload.Password)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	if !saveSession(c, user.ID) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(*user)})
}

// Logout 清理会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me 返回当前登录用户
func (a *API) Me(c *gin.Context) {
	user, err := a.users.Get(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusNotFound, "用户不存在")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(*user)})
}

// AuthRequired 是一个简单的认证中间件，未登录的请求直接返回 401
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(sessionUserKey)
		if userID == nil {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		if id, ok := userID.(uint); ok {
			c.Set(sessionUserKey, id)
			c.Next()
			return
		}
		respondError(c, http.StatusUnauthorized, "会话无效")
		c.Abort()
	}
}

func currentUserID(c *gin.Context) uint {
	if id, exists := c.Get(sessionUserKey); exists {
		if uid, ok := id.(uint); ok {
			return uid
		}
	}
	return 0
}

func saveSession(c *gin.Context, userID uint) bool {
	session := sessions.Default(c)
	session.Set(sessionUserKey, userID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return false
	}
	return true
}

func userToPayload(user db.User) gin.H {
	return gin.H{
		"id":               user.ID,
		"username":         user.Username,
		"name":             user.Name,
		"show_in_feed":     user.ShowInFeed,
		"reminder_enabled": user.ReminderEnabled,
		"timezone":         user.Timezone,
	}
}
