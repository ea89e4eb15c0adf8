package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware CORS 中间件.
// 控制台只对设备本机服务，查看端可能从打包页面（file:// 或局域网地址）
// 发请求，来源完全放开.
func CORSMiddleware() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowFiles = true

	return cors.New(config)
}
