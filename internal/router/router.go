package router

import (
	"github.com/daypace/internal/handler"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("daypace_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// 无需登录的认证入口
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", api.Register)
		auth.POST("/login", api.Login)
		auth.POST("/logout", api.Logout)
	}

	// 需要认证的业务路由
	apiGroup := r.Group("/api")
	apiGroup.Use(handler.AuthRequired())
	{
		apiGroup.GET("/auth/me", api.Me)

		apiGroup.PUT("/settings", api.UpdateSettings)
		apiGroup.GET("/friends", api.ListFriends)
		apiGroup.POST("/friends", api.AddFriend)

		goals := apiGroup.Group("/goals")
		{
			goals.POST("/check-timeline", api.CheckTimeline)
			goals.POST("", api.CreateGoal)
			goals.GET("", api.ListGoals)
			goals.GET("/active", api.GetActiveGoal)
			goals.GET("/:id", api.GetGoal)
			goals.POST("/:id/complete", api.CompleteGoal)
			goals.POST("/:id/toggle", api.ToggleActiveGoal)
			goals.POST("/:id/activate", api.SetActiveGoal)
			goals.DELETE("/:id", api.DeleteGoal)
			goals.GET("/:id/partner", api.GetPartnerProgress)
		}

		invites := apiGroup.Group("/invites")
		{
			invites.POST("", api.InviteFriend)
			invites.GET("", api.ListInvites)
			invites.POST("/:token/accept", api.AcceptInvite)
			invites.POST("/:token/decline", api.DeclineInvite)
		}

		tasks := apiGroup.Group("/tasks")
		{
			tasks.GET("/today", api.GetTodayTask)
			tasks.POST("/:id/complete", api.CompleteTask)
			tasks.POST("/:id/skip", api.SkipTask)
			tasks.PUT("/:id/action-items/:index", api.SetActionItem)
			tasks.GET("/all/:goalId", api.GetGoalTasks)
			tasks.GET("/history/:goalId", api.GetTaskHistory)
		}

		activity := apiGroup.Group("/activity")
		{
			activity.GET("/feed", api.GetActivityFeed)
			activity.GET("/mine", api.GetMyActivity)
			activity.GET("/stats", api.GetDailyStats)
		}

		system := apiGroup.Group("/system")
		{
			system.GET("/settings", api.GetSystemSettings)
			system.PUT("/settings", api.UpdateSystemSettings)
			system.POST("/test-ai", api.TestAIConnection)
		}
	}

	return r
}
