package router

import (
	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/internal/handle"
)

// RegisterHealthCheckRoute 注册健康检查路由.
func RegisterHealthCheckRoute(g *gin.RouterGroup) {
	g.GET("", handle.Health)
	g.GET("/db", handle.HealthDB)
	g.GET("/legacy", handle.HealthLegacy)
	g.GET("/emergency", handle.HealthEmergency)
	g.GET("/mq", handle.HealthMQ)
}
