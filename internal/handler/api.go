package handler

import (
	"github.com/daypace/internal/service"
	"gorm.io/gorm"
)

// API 汇集各 HTTP 处理器共享的服务依赖
type API struct {
	db          *gorm.DB
	users       *service.UserService
	goals       *service.GoalService
	tasks       *service.TaskService
	sharedGoals *service.SharedGoalService
	activities  *service.ActivityService
	system      *service.SystemSettingService
}

// NewAPI 构造处理器集合并完成服务装配
func NewAPI(gdb *gorm.DB) *API {
	systemService := service.NewSystemSettingService(gdb)
	planService := service.NewAIPlanService(systemService)

	return &API{
		db:          gdb,
		users:       service.NewUserService(gdb),
		goals:       service.NewGoalService(gdb, planService),
		tasks:       service.NewTaskService(gdb),
		sharedGoals: service.NewSharedGoalService(gdb, planService),
		activities:  service.NewActivityService(gdb),
		system:      systemService,
	}
}
