// Package middleware 提供控制台服务器的 Gin 中间件.
package middleware

import (
	"github.com/gin-gonic/gin"

	ctxPkg "github.com/JSB847123/simple-business-database/pkg/context"
	"github.com/JSB847123/simple-business-database/pkg/internal/storage"
)

// StorageMiddleware 把存储管理器注入请求上下文.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxPkg.WithStorageManager(c.Request.Context(), manager)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ComponentsMiddleware 把应用组件注入请求上下文，处理器按请求构造服务时取用.
func ComponentsMiddleware(comps *ctxPkg.Components) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxPkg.WithComponents(c.Request.Context(), comps)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
