package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/metrics"
)

// PrometheusMiddleware Prometheus 监控中间件.
// endpoint 用路由模板而不是真实路径，避免每个记录 id 产生一条时间序列.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// 执行下一个中间件/处理器
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		metrics.RequestCounter.WithLabelValues(method, endpoint).Inc()

		duration := time.Since(start).Seconds()
		metrics.RequestDuration.WithLabelValues(method, endpoint).Observe(duration)
	}
}
