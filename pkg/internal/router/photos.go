package router

import (
	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/internal/handle"
)

// RegisterPhotosRoutes 注册照片查看路由.
// 照片流走独立前缀，方便中间件按路径跳过压缩.
func RegisterPhotosRoutes(g *gin.RouterGroup) {
	g.GET("/photos/:photoId", handle.ViewPhoto)
}
