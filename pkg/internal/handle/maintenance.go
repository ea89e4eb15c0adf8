package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/internal/service"
)

// GetStats 返回存储统计与配额占用.
// GET /api/v1/stats
func GetStats(c *gin.Context) {
	svc := service.NewMaintenanceService(c.Request.Context())

	stats, err := svc.Stats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "stats failed")
		return
	}

	respondData(c, http.StatusOK, stats)
}

// Diagnose 执行三层存储诊断.
// GET /api/v1/diagnose
func Diagnose(c *gin.Context) {
	svc := service.NewMaintenanceService(c.Request.Context())

	respondData(c, http.StatusOK, svc.Diagnose(c.Request.Context()))
}

// MigrationStatus 返回迁移引擎状态.
// GET /api/v1/migration
func MigrationStatus(c *gin.Context) {
	svc := service.NewMaintenanceService(c.Request.Context())

	respondData(c, http.StatusOK, svc.MigrationStatus())
}

// MigrationRerun 清除完成标记后同步重跑一次迁移.
// POST /api/v1/migration/rerun
func MigrationRerun(c *gin.Context) {
	svc := service.NewMaintenanceService(c.Request.Context())

	report, err := svc.MigrationRerun(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "migration rerun failed")
		return
	}

	respondData(c, http.StatusOK, report)
}

// Flush 立即执行保底落盘.
// POST /api/v1/flush
func Flush(c *gin.Context) {
	svc := service.NewMaintenanceService(c.Request.Context())

	res := svc.Flush(c.Request.Context())
	if res.Error != "" {
		// 保底动作部分失败也返回结果本身，状态码提示调用方留意
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "FlushIncomplete", "data": res})
		return
	}

	respondData(c, http.StatusOK, res)
}
