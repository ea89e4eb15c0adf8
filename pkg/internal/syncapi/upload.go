package syncapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/JSB847123/simple-business-database/pkg/cache"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
)

// grantGraceSeconds 授权剩余有效期低于该值时不再缓存，避免拿到手就过期.
const grantGraceSeconds = 30

// UploadGrant 远端签发的短时上传授权.
// 签名在服务器侧完成，客户端只消费返回的四元组.
type UploadGrant struct {
	UploadURL   string `json:"uploadUrl"`
	DownloadURL string `json:"downloadUrl"`
	FileKey     string `json:"fileKey"`
	ExpiresIn   int    `json:"expiresIn"` // 秒
}

// RequestUploadURL 申请一张照片的上传授权，只转发照片 id 与展示名.
// 授权按照片 id 缓存，剩余有效期内重复申请直接复用.
func (c *Client) RequestUploadURL(ctx context.Context, photoID, name string) (*UploadGrant, error) {
	key := grantKey(photoID)

	if c.grants != nil {
		if grant, err := cache.Get[UploadGrant](ctx, c.grants, key); err == nil {
			return &grant, nil
		}
	}

	payload := map[string]string{"photoId": photoID, "name": name}

	body, status, err := c.do(ctx, http.MethodPost, "/photos/upload-url", nil, payload)
	if err != nil {
		return nil, err
	}

	grant, err := decodeEnvelope[UploadGrant](body, status)
	if err != nil {
		return nil, err
	}

	if c.grants != nil && grant.ExpiresIn > grantGraceSeconds {
		ttl := time.Duration(grant.ExpiresIn-grantGraceSeconds) * time.Second
		if err := cache.Set(ctx, c.grants, key, grant, ttl); err != nil {
			nlog.Logger().Debug().Err(err).Str("photo_id", photoID).Msg("cache upload grant failed")
		}
	}

	return &grant, nil
}

// UploadPhoto 把照片字节 PUT 到授权的上传地址.
// 上传地址指向对象存储而非同步服务器，不走熔断器.
func (c *Client) UploadPhoto(ctx context.Context, grant *UploadGrant, data []byte, contentType string) error {
	if grant == nil || grant.UploadURL == "" {
		return fmt.Errorf("upload grant is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.UploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}

	if contentType == "" {
		contentType = "image/jpeg"
	}

	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("upload rejected: status %d", resp.StatusCode)
	}

	return nil
}

// grantKey 上传授权的缓存键.
func grantKey(photoID string) string {
	return "upload_grant:" + photoID
}
