package middleware

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// GzipMiddleware 响应压缩中间件.
// 记录列表的 JSON 字段重复度高，压缩收益明显；照片流本身已是
// 压缩过的 JPEG，再压只浪费设备 CPU，按路径前缀排除.
func GzipMiddleware() gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/photos"}))
}
