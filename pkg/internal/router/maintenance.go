package router

import (
	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/internal/handle"
)

// RegisterMaintenanceRoutes 注册运维面路由：统计、诊断、迁移与保底落盘.
func RegisterMaintenanceRoutes(g *gin.RouterGroup) {
	g.GET("/stats", handle.GetStats)
	g.GET("/diagnose", handle.Diagnose)

	migration := g.Group("/migration")
	{
		migration.GET("", handle.MigrationStatus)
		migration.POST("/rerun", handle.MigrationRerun)
	}

	g.POST("/flush", handle.Flush)
}
