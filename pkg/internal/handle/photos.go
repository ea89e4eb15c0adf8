package handle

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JSB847123/simple-business-database/pkg/internal/service"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
)

// photosFormField 批量上传的 multipart 字段名.
const photosFormField = "photos"

// AttachPhotos 把一批照片压缩后挂到指定楼层.
// POST /api/v1/records/:recordId/floors/:floorId/photos （multipart，字段 photos）
func AttachPhotos(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "BadMultipart", err.Error())
		return
	}

	files := form.File[photosFormField]
	if len(files) == 0 {
		respondError(c, http.StatusBadRequest, "NoPhotos", "multipart field 'photos' is empty")
		return
	}

	uploads := make([]service.PhotoUpload, 0, len(files))

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "BadUpload", err.Error())
			return
		}

		data, err := io.ReadAll(f)

		if closeErr := f.Close(); closeErr != nil {
			nlog.Logger().Warn().Err(closeErr).Str("file", fh.Filename).Msg("close upload failed")
		}

		if err != nil {
			respondError(c, http.StatusBadRequest, "BadUpload", err.Error())
			return
		}

		uploads = append(uploads, service.PhotoUpload{FileName: fh.Filename, Data: data})
	}

	svc := service.NewPhotoService(c.Request.Context())

	resp, err := svc.Attach(c.Request.Context(), c.Param("recordId"), c.Param("floorId"), uploads)
	if err != nil {
		respondServiceError(c, err, "attach photos failed")
		return
	}

	respondData(c, http.StatusOK, resp)
}

// ViewPhoto 以文件流返回照片内容.
// GET /api/v1/photos/:photoId
func ViewPhoto(c *gin.Context) {
	svc := service.NewPhotoService(c.Request.Context())

	h, err := svc.View(c.Request.Context(), c.Param("photoId"))
	if err != nil {
		respondServiceError(c, err, "view photo failed")
		return
	}

	if h == nil {
		respondError(c, http.StatusNotFound, "PhotoNotFound", "")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.File(h.Path)
}

// DeletePhoto 从楼层摘掉照片并删除二进制.
// DELETE /api/v1/records/:recordId/floors/:floorId/photos/:photoId
func DeletePhoto(c *gin.Context) {
	svc := service.NewPhotoService(c.Request.Context())

	err := svc.DeletePhoto(c.Request.Context(), c.Param("recordId"), c.Param("floorId"), c.Param("photoId"))
	if err != nil {
		respondServiceError(c, err, "delete photo failed")
		return
	}

	respondData(c, http.StatusOK, gin.H{"deleted": true})
}
