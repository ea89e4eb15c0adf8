package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/internal/service"
)

// SyncPush 手动触发一次向远端的推送.
// POST /api/v1/sync/push
func SyncPush(c *gin.Context) {
	svc := service.NewSyncService(c.Request.Context())

	report, err := svc.PushRecords(c.Request.Context())

	switch {
	case errors.Is(err, service.ErrSyncDisabled):
		respondServiceError(c, err, "sync push failed")
	case err != nil:
		// 熔断中断时报告里已有部分进度，随错误一起给出
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "SyncIncomplete",
			"message": err.Error(),
			"data":    report,
		})
	default:
		respondData(c, http.StatusOK, report)
	}
}
