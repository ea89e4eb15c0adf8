// Package handle 提供控制台 HTTP 请求处理器的实现.
// 响应统一走 success 壳：成功时 data 携带载荷，失败时 error 给出
// 简短错误码、message 给出细节，和同步服务器的响应壳保持一致.
package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/JSB847123/simple-business-database/pkg/internal/service"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
)

// respondData 成功响应.
func respondData(c *gin.Context, code int, data any) {
	c.JSON(code, gin.H{"success": true, "data": data})
}

// respondError 失败响应.
func respondError(c *gin.Context, code int, errCode, message string) {
	body := gin.H{"success": false, "error": errCode}
	if message != "" {
		body["message"] = message
	}

	c.JSON(code, body)
}

// respondServiceError 把服务层错误映射到 HTTP 状态码.
// 哨兵之外的错误一律按内部错误处理并记日志.
func respondServiceError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, service.ErrRecordNotFound):
		respondError(c, http.StatusNotFound, "RecordNotFound", err.Error())
	case errors.Is(err, service.ErrFloorNotFound):
		respondError(c, http.StatusNotFound, "FloorNotFound", err.Error())
	case errors.Is(err, service.ErrPhotoNotFound):
		respondError(c, http.StatusNotFound, "PhotoNotFound", err.Error())
	case errors.Is(err, store.ErrQuotaExceeded):
		respondError(c, http.StatusInsufficientStorage, "QuotaExceeded", err.Error())
	case errors.Is(err, store.ErrStorageUnavailable):
		respondError(c, http.StatusServiceUnavailable, "StorageUnavailable", err.Error())
	case errors.Is(err, service.ErrSyncDisabled):
		respondError(c, http.StatusServiceUnavailable, "SyncDisabled", err.Error())
	case errors.Is(err, service.ErrMigratorUnavailable):
		respondError(c, http.StatusServiceUnavailable, "MigratorUnavailable", err.Error())
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		respondError(c, http.StatusServiceUnavailable, "SyncUnreachable", err.Error())
	default:
		nlog.Logger().Error().Err(err).Msg(logMsg)
		respondError(c, http.StatusInternalServerError, "Internal", err.Error())
	}
}
