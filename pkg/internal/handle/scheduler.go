package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/JSB847123/simple-business-database/pkg/context"
)

// SchedulerJobs 返回所有后台任务的信息.
// GET /api/v1/jobs
func SchedulerJobs(c *gin.Context) {
	sched := ctxPkg.GetScheduler(c.Request.Context())
	if sched == nil {
		respondError(c, http.StatusServiceUnavailable, "SchedulerUnavailable", "")
		return
	}

	respondData(c, http.StatusOK, gin.H{"jobs": sched.GetJobInfos()})
}

// SchedulerRunJob 立即触发一次指定任务，不影响既定调度.
// POST /api/v1/jobs/:name/run
func SchedulerRunJob(c *gin.Context) {
	sched := ctxPkg.GetScheduler(c.Request.Context())
	if sched == nil {
		respondError(c, http.StatusServiceUnavailable, "SchedulerUnavailable", "")
		return
	}

	name := c.Param("name")
	if err := sched.RunJobByName(name); err != nil {
		respondError(c, http.StatusNotFound, "JobNotFound", err.Error())
		return
	}

	respondData(c, http.StatusOK, gin.H{"triggered": name})
}
