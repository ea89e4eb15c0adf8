package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/configs"
	ctxPkg "github.com/JSB847123/simple-business-database/pkg/context"
)

const healthTimeout = 2 * time.Second

// healthProbeKey 层级探测用的键，只读探测，不写任何数据.
const healthProbeKey = "sbdb_health_probe"

// Health 进程活性检查.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": configs.AppVersion})
}

// HealthDB 主存储数据库健康检查.
func HealthDB(c *gin.Context) {
	dbc := ctxPkg.GetDBClient(c.Request.Context())
	if dbc == nil || dbc.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "db", "status": "unhealthy", "error": "db client not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	sqlDB, err := dbc.DB.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "db", "status": "unhealthy", "error": err.Error()})
		return
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "db", "status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "db", "status": "ok"})
}

// HealthLegacy 旧版扁平层级健康检查.
func HealthLegacy(c *gin.Context) {
	kvClient := ctxPkg.GetLegacyKV(c.Request.Context())
	if kvClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "legacy", "status": "unhealthy", "error": "legacy kv not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if _, err := kvClient.Exists(ctx, healthProbeKey); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "legacy", "status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "legacy", "status": "ok"})
}

// HealthEmergency 应急快照层级健康检查.
func HealthEmergency(c *gin.Context) {
	kvStore := ctxPkg.GetEmergencyKV(c.Request.Context())
	if kvStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "emergency", "status": "unhealthy", "error": "emergency kv not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if _, err := kvStore.Exists(ctx, healthProbeKey); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "emergency", "status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "emergency", "status": "ok"})
}

// HealthMQ 消息队列健康检查.
func HealthMQ(c *gin.Context) {
	mqClient := ctxPkg.GetMQClient(c.Request.Context())
	if mqClient == nil { // publisher 与 subscriber 初始化在 New 中，判空即可
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "mq", "status": "unhealthy", "error": "mq client not initialized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "mq", "status": "ok"})
}
