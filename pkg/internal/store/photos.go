package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	"github.com/JSB847123/simple-business-database/pkg/metrics"
	"github.com/JSB847123/simple-business-database/pkg/tracing"
)

// BlobMeta 随照片二进制一起写入的元数据.
// Size 与 Checksum 由存储层按实际字节计算，调用方无需填写.
type BlobMeta struct {
	Name        string
	TimestampMs int64
	LocationID  string
	FloorID     string
}

// PutPhotoBlob 原子写入照片二进制与元数据（同一事务）.
// 写入前按元数据表的字节总量做配额预测，超限返回 ErrQuotaExceeded；
// 覆盖已有照片时旧字节数不计入预测.
func (s *Store) PutPhotoBlob(ctx context.Context, photoID string, data []byte, meta BlobMeta) error {
	if err := s.Open(ctx); err != nil {
		return err
	}

	if photoID == "" {
		return fmt.Errorf("photo id is required")
	}

	ctx, span := tracing.StartSpan(ctx, "store.PutPhotoBlob")
	defer span.End()

	checksum := strconv.FormatUint(xxhash.Sum64(data), 16)
	dbx := s.client.GetDB().WithContext(ctx)

	var projected int64

	err := dbx.Transaction(func(tx *gorm.DB) error {
		used, err := usedBytes(tx)
		if err != nil {
			return err
		}

		// 覆盖写时把旧字节数从占用里扣掉
		var oldSize int64

		var old model.PhotoMetaRow
		if err := tx.Where("photo_id = ?", photoID).First(&old).Error; err == nil {
			oldSize = old.Size
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("probe existing metadata: %w", err)
		}

		projected = used - oldSize + int64(len(data))
		if s.quotaBytes > 0 && projected > s.quotaBytes {
			return fmt.Errorf("%w: projected %d bytes over quota %d", ErrQuotaExceeded, projected, s.quotaBytes)
		}

		photoRow := model.PhotoRow{PhotoID: photoID, Blob: data}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&photoRow).Error; err != nil {
			return fmt.Errorf("write photo blob: %w", err)
		}

		metaRow := model.PhotoMetaRow{
			PhotoID:     photoID,
			Name:        meta.Name,
			Size:        int64(len(data)),
			TimestampMs: meta.TimestampMs,
			LocationID:  meta.LocationID,
			FloorID:     meta.FloorID,
			Checksum:    checksum,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&metaRow).Error; err != nil {
			return fmt.Errorf("write photo metadata: %w", err)
		}

		return nil
	})
	if err != nil {
		return mapStorageErr(fmt.Errorf("put photo %s: %w", photoID, err))
	}

	metrics.QuotaUsedBytes.Set(float64(projected))

	return nil
}

// GetPhotoBlob 按照片 ID 读取二进制，不存在返回 (nil, nil).
func (s *Store) GetPhotoBlob(ctx context.Context, photoID string) ([]byte, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}

	dbx := s.client.GetDB().WithContext(ctx)

	var row model.PhotoRow
	if err := dbx.Where("photo_id = ?", photoID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("get photo %s: %w", photoID, err)
	}

	return row.Blob, nil
}

// GetPhotoMeta 按照片 ID 读取元数据，不存在返回 (nil, nil).
func (s *Store) GetPhotoMeta(ctx context.Context, photoID string) (*model.PhotoMetaRow, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}

	dbx := s.client.GetDB().WithContext(ctx)

	var row model.PhotoMetaRow
	if err := dbx.Where("photo_id = ?", photoID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("get photo metadata %s: %w", photoID, err)
	}

	return &row, nil
}

// ListPhotoMetaByLocation 列出某条记录名下全部照片元数据.
func (s *Store) ListPhotoMetaByLocation(ctx context.Context, locationID string) ([]model.PhotoMetaRow, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}

	dbx := s.client.GetDB().WithContext(ctx)

	var rows []model.PhotoMetaRow
	if err := dbx.Where("location_id = ?", locationID).Order("timestamp_ms").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list photo metadata for %s: %w", locationID, err)
	}

	return rows, nil
}

// DeletePhotoBlob 删除照片二进制与元数据（同一事务），不存在视为成功.
func (s *Store) DeletePhotoBlob(ctx context.Context, photoID string) error {
	if err := s.Open(ctx); err != nil {
		return err
	}

	dbx := s.client.GetDB().WithContext(ctx)

	err := dbx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("photo_id = ?", photoID).Delete(&model.PhotoRow{}).Error; err != nil {
			return fmt.Errorf("delete photo blob: %w", err)
		}

		if err := tx.Where("photo_id = ?", photoID).Delete(&model.PhotoMetaRow{}).Error; err != nil {
			return fmt.Errorf("delete photo metadata: %w", err)
		}

		return nil
	})
	if err != nil {
		return mapStorageErr(fmt.Errorf("delete photo %s: %w", photoID, err))
	}

	s.refreshQuotaGauge(ctx)

	return nil
}

// usedBytes 返回元数据表记录的照片负载总字节数.
func usedBytes(tx *gorm.DB) (int64, error) {
	var agg struct {
		Used int64 `gorm:"column:used"`
	}

	// COALESCE 避免空表返回 NULL
	if err := tx.Model(&model.PhotoMetaRow{}).
		Select("COALESCE(SUM(size),0) AS used").
		Scan(&agg).Error; err != nil {
		return 0, fmt.Errorf("sum photo bytes: %w", err)
	}

	return agg.Used, nil
}

// refreshQuotaGauge 删除路径后刷新配额占用指标，失败只影响指标不影响调用方.
func (s *Store) refreshQuotaGauge(ctx context.Context) {
	used, err := usedBytes(s.client.GetDB().WithContext(ctx))
	if err != nil {
		return
	}

	metrics.QuotaUsedBytes.Set(float64(used))
}
