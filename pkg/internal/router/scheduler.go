package router

import (
	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/internal/handle"
)

// RegisterSchedulerRoutes 注册后台任务查看与手动触发路由.
func RegisterSchedulerRoutes(g *gin.RouterGroup) {
	g.GET("/jobs", handle.SchedulerJobs)
	g.POST("/jobs/:name/run", handle.SchedulerRunJob)
}
