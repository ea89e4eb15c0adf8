package router

import (
	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/internal/handle"
)

// RegisterSyncRoutes 注册远端同步路由.
func RegisterSyncRoutes(g *gin.RouterGroup) {
	g.POST("/sync/push", handle.SyncPush)
}
