package router

import (
	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/internal/handle"
)

// RegisterRecordsRoutes 注册记录增删查改与楼层照片路由.
func RegisterRecordsRoutes(g *gin.RouterGroup) {
	records := g.Group("/records")
	{
		records.GET("", handle.ListRecords)
		records.POST("", handle.SaveRecord)

		// 单条记录操作
		single := records.Group("/:recordId")
		{
			single.GET("", handle.GetRecord)
			single.DELETE("", handle.DeleteRecord)

			// 楼层照片操作
			floorPhotos := single.Group("/floors/:floorId/photos")
			{
				floorPhotos.POST("", handle.AttachPhotos)
				floorPhotos.DELETE("/:photoId", handle.DeletePhoto)
			}
		}
	}
}
