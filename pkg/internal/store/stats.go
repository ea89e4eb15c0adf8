package store

import (
	"context"
	"fmt"

	"github.com/JSB847123/simple-business-database/pkg/internal/types"
	"github.com/JSB847123/simple-business-database/pkg/tracing"
)

// Stats 返回存储汇总：记录数、照片数、照片负载总字节.
// 一次查询取回三个聚合，COALESCE 避免空表返回 NULL.
func (s *Store) Stats(ctx context.Context) (types.StoreStats, error) {
	if err := s.Open(ctx); err != nil {
		return types.StoreStats{}, err
	}

	ctx, span := tracing.StartSpan(ctx, "store.Stats")
	defer span.End()

	dbx := s.client.GetDB().WithContext(ctx)

	var agg struct {
		RecordCount     int64 `gorm:"column:record_count"`
		PhotoCount      int64 `gorm:"column:photo_count"`
		TotalPhotoBytes int64 `gorm:"column:total_photo_bytes"`
	}

	query := `SELECT
		(SELECT COUNT(*) FROM records)                      AS record_count,
		(SELECT COUNT(*) FROM photos)                       AS photo_count,
		(SELECT COALESCE(SUM(size), 0) FROM photo_metadata) AS total_photo_bytes`

	if err := dbx.Raw(query).Scan(&agg).Error; err != nil {
		return types.StoreStats{}, fmt.Errorf("aggregate stats: %w", err)
	}

	return types.StoreStats{
		RecordCount:     int(agg.RecordCount),
		PhotoCount:      int(agg.PhotoCount),
		TotalPhotoBytes: agg.TotalPhotoBytes,
	}, nil
}

// QuotaBytes 返回配置的照片字节配额，<= 0 表示不限制.
func (s *Store) QuotaBytes() int64 {
	return s.quotaBytes
}
