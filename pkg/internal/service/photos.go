package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JSB847123/simple-business-database/pkg/configs"
	"github.com/JSB847123/simple-business-database/pkg/internal/codec"
	"github.com/JSB847123/simple-business-database/pkg/internal/handlecache"
	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/internal/types"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
)

// 配额重试时的加压参数：最长边减半，质量打六折（下限 0.3）.
const (
	retryDimensionDivisor = 2
	retryQualityFactor    = 0.6
	retryQualityFloor     = 0.3
)

// PhotoService 负责照片的压缩入库、查看句柄与删除.
type PhotoService struct {
	*RecordService
	codecCfg configs.CodecConfig
}

// NewPhotoService 从 context 获取依赖实例.
func NewPhotoService(c context.Context) *PhotoService {
	return &PhotoService{
		RecordService: NewRecordService(c),
		codecCfg:      configs.GetConfig().Codec,
	}
}

// PhotoUpload 一张待挂载的照片原始数据.
type PhotoUpload struct {
	FileName string
	Data     []byte
}

// Attach 把一批照片压缩后挂到指定楼层.
// 逐张处理：压缩 → 写入照片库 → 保存记录；单张失败只计数，批次不中断.
// 首次写入因配额被拒时，按更严苛的压缩参数重试一次.
func (s *PhotoService) Attach(ctx context.Context, recordID, floorID string, uploads []PhotoUpload) (*types.AttachPhotosResponse, error) {
	rec, err := s.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		return nil, ErrRecordNotFound
	}

	floor := rec.FindFloor(floorID)
	if floor == nil {
		return nil, ErrFloorNotFound
	}

	resp := &types.AttachPhotosResponse{Results: make([]types.AttachPhotoResult, 0, len(uploads))}

	for _, up := range uploads {
		result := s.attachOne(ctx, rec, floor, up)
		if result.OK {
			resp.Succeeded++
		} else {
			resp.Failed++
		}

		resp.Results = append(resp.Results, result)
	}

	return resp, nil
}

// attachOne 处理单张照片，失败时回滚已写入的部分保持记录与照片库一致.
func (s *PhotoService) attachOne(ctx context.Context, rec *model.Record, floor *model.Floor, up PhotoUpload) types.AttachPhotoResult {
	result := types.AttachPhotoResult{FileName: up.FileName}

	if len(floor.Photos) >= model.MaxPhotosPerFloor {
		result.Error = fmt.Sprintf("floor already holds %d photos", model.MaxPhotosPerFloor)

		return result
	}

	compressed, dims, err := codec.CompressLimit(up.Data, s.codecCfg.MaxDimensionPx, s.codecCfg.Quality, s.codecCfg.PixelCeiling)
	if err != nil {
		result.Error = err.Error()

		return result
	}

	photoID := uuid.NewString()
	now := time.Now().UnixMilli()
	meta := store.BlobMeta{
		Name:        up.FileName,
		TimestampMs: now,
		LocationID:  rec.ID,
		FloorID:     floor.ID,
	}

	err = s.store.PutPhotoBlob(ctx, photoID, compressed, meta)
	if errors.Is(err, store.ErrQuotaExceeded) {
		compressed, dims, err = s.retryHarsher(ctx, photoID, up.Data, meta)
	}

	if err != nil {
		result.Error = err.Error()

		return result
	}

	floor.Photos = append(floor.Photos, model.Photo{
		ID:        photoID,
		Name:      up.FileName,
		Size:      int64(len(compressed)),
		Timestamp: now,
	})

	if err := s.writer.SaveRecord(ctx, rec); err != nil {
		// 记录没保住就把刚写入的照片撤掉，避免产生孤儿二进制
		floor.Photos = floor.Photos[:len(floor.Photos)-1]

		if delErr := s.store.DeletePhotoBlob(ctx, photoID); delErr != nil {
			nlog.Logger().Warn().Err(delErr).Str("photo_id", photoID).Msg("orphan blob cleanup failed")
		}

		result.Error = err.Error()

		return result
	}

	nlog.Logger().Debug().
		Str("photo_id", photoID).
		Int("width", dims.Width).
		Int("height", dims.Height).
		Int("bytes", len(compressed)).
		Msg("photo attached")

	result.PhotoID = photoID
	result.OK = true

	return result
}

// retryHarsher 配额被拒后按更严苛参数重新压缩并再写一次.
func (s *PhotoService) retryHarsher(ctx context.Context, photoID string, data []byte, meta store.BlobMeta) ([]byte, codec.Dimensions, error) {
	quality := s.codecCfg.Quality * retryQualityFactor
	if quality < retryQualityFloor {
		quality = retryQualityFloor
	}

	compressed, dims, err := codec.CompressLimit(data, s.codecCfg.MaxDimensionPx/retryDimensionDivisor, quality, s.codecCfg.PixelCeiling)
	if err != nil {
		return nil, codec.Dimensions{}, err
	}

	nlog.Logger().Info().
		Str("photo_id", photoID).
		Int("retry_bytes", len(compressed)).
		Msg("quota hit, retrying with harsher compression")

	return compressed, dims, s.store.PutPhotoBlob(ctx, photoID, compressed, meta)
}

// View 取照片的查看句柄，懒加载生成临时文件；照片不存在返回 (nil, nil).
func (s *PhotoService) View(ctx context.Context, photoID string) (*handlecache.Handle, error) {
	if s.handles == nil {
		return nil, fmt.Errorf("handle cache unavailable")
	}

	return s.handles.GetOrCreate(ctx, photoID)
}

// DeletePhoto 从楼层摘掉照片引用并删除二进制，撤销已打开的句柄.
func (s *PhotoService) DeletePhoto(ctx context.Context, recordID, floorID, photoID string) error {
	rec, err := s.Get(ctx, recordID)
	if err != nil {
		return err
	}

	if rec == nil {
		return ErrRecordNotFound
	}

	floor := rec.FindFloor(floorID)
	if floor == nil {
		return ErrFloorNotFound
	}

	idx := -1

	for i := range floor.Photos {
		if floor.Photos[i].ID == photoID {
			idx = i

			break
		}
	}

	if idx < 0 {
		return ErrPhotoNotFound
	}

	removed := floor.Photos[idx]
	floor.Photos = append(floor.Photos[:idx], floor.Photos[idx+1:]...)

	// 先摘引用再删二进制；反过来会留下指向空洞的记录
	if err := s.writer.SaveRecord(ctx, rec); err != nil {
		floor.Photos = append(floor.Photos[:idx], append([]model.Photo{removed}, floor.Photos[idx:]...)...)

		return err
	}

	if err := s.store.DeletePhotoBlob(ctx, photoID); err != nil {
		nlog.Logger().Warn().Err(err).Str("photo_id", photoID).Msg("blob delete failed after reference removed")
	}

	if s.handles != nil {
		s.handles.Revoke(photoID)
	}

	return nil
}
