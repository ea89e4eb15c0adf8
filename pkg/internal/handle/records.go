package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	"github.com/JSB847123/simple-business-database/pkg/internal/service"
	"github.com/JSB847123/simple-business-database/pkg/internal/types"
)

// ListRecords 按过滤条件返回记录列表.
// GET /api/v1/records?page=&limit=&locationType=&search=&startDate=&endDate=
func ListRecords(c *gin.Context) {
	var q types.ListRecordsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "BadQuery", err.Error())
		return
	}

	svc := service.NewRecordService(c.Request.Context())

	records, total, err := svc.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, http.StatusBadRequest, "BadQuery", err.Error())
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"page":    q.Page,
		"limit":   q.Limit,
	})
}

// GetRecord 按 id 返回单条记录.
// GET /api/v1/records/:recordId
func GetRecord(c *gin.Context) {
	svc := service.NewRecordService(c.Request.Context())

	rec, err := svc.Get(c.Request.Context(), c.Param("recordId"))
	if err != nil {
		respondServiceError(c, err, "get record failed")
		return
	}

	if rec == nil {
		respondError(c, http.StatusNotFound, "RecordNotFound", "")
		return
	}

	respondData(c, http.StatusOK, rec)
}

// SaveRecord 保存一条记录，新记录缺省字段由服务端补齐.
// POST /api/v1/records
func SaveRecord(c *gin.Context) {
	var rec model.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		respondError(c, http.StatusBadRequest, "BadBody", err.Error())
		return
	}

	svc := service.NewRecordService(c.Request.Context())

	if err := svc.Save(c.Request.Context(), &rec); err != nil {
		respondServiceError(c, err, "save record failed")
		return
	}

	respondData(c, http.StatusOK, rec)
}

// DeleteRecord 删除记录及其全部照片.
// DELETE /api/v1/records/:recordId
func DeleteRecord(c *gin.Context) {
	svc := service.NewRecordService(c.Request.Context())

	purged, err := svc.Delete(c.Request.Context(), c.Param("recordId"))
	if err != nil {
		respondServiceError(c, err, "delete record failed")
		return
	}

	respondData(c, http.StatusOK, gin.H{"deleted": true, "purged_photos": purged})
}
