// Package router 管理路由配置，把控制台接口绑定到 gin 引擎.
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterAppRoutes 注册控制台全部路由.
// 健康检查挂在根路径，业务接口统一在 /api/v1 下.
func RegisterAppRoutes(e *gin.Engine) {
	RegisterHealthCheckRoute(e.Group("/health"))

	api := e.Group("/api/v1")

	RegisterRecordsRoutes(api)
	RegisterPhotosRoutes(api)
	RegisterMaintenanceRoutes(api)
	RegisterSyncRoutes(api)
	RegisterSchedulerRoutes(api)
}
