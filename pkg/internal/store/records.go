package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
	"github.com/JSB847123/simple-business-database/pkg/rule"
	"github.com/JSB847123/simple-business-database/pkg/tracing"
)

// PutRecord 写入或更新一条记录（按 ID upsert）.
// 记录先过 rule 校验，文档整体序列化存入 doc 列.
func (s *Store) PutRecord(ctx context.Context, rec *model.Record) error {
	if err := s.Open(ctx); err != nil {
		return err
	}

	if rec == nil {
		return fmt.Errorf("record is nil")
	}

	if err := rule.ValidateStruct(rec); err != nil {
		return fmt.Errorf("validate record %s: %w", rec.ID, err)
	}

	doc, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}

	row := model.RecordRow{
		ID:           rec.ID,
		LocationType: rec.LocationType,
		CreatedMs:    rec.Timestamp,
		Doc:          string(doc),
	}
	if rec.LastSaved > 0 {
		ls := rec.LastSaved
		row.LastSavedMs = &ls
	}

	dbx := s.client.GetDB().WithContext(ctx)

	if err := dbx.Save(&row).Error; err != nil {
		return mapStorageErr(fmt.Errorf("put record %s: %w", rec.ID, err))
	}

	return nil
}

// GetRecord 按 ID 读取记录，不存在返回 (nil, nil).
func (s *Store) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}

	dbx := s.client.GetDB().WithContext(ctx)

	var row model.RecordRow
	if err := dbx.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("get record %s: %w", id, err)
	}

	var rec model.Record
	if err := sonic.Unmarshal([]byte(row.Doc), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
	}

	return &rec, nil
}

// GetAllRecords 返回全部记录，最近保存的在前.
// 从未保存过的记录按创建时间参与排序；文档损坏的行跳过并告警.
func (s *Store) GetAllRecords(ctx context.Context) ([]model.Record, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "store.GetAllRecords")
	defer span.End()

	dbx := s.client.GetDB().WithContext(ctx)

	var rows []model.RecordRow
	if err := dbx.Order("COALESCE(last_saved_ms, created_ms) DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	records := make([]model.Record, 0, len(rows))

	for i := range rows {
		var rec model.Record
		if err := sonic.Unmarshal([]byte(rows[i].Doc), &rec); err != nil {
			nlog.Logger().Warn().Str("id", rows[i].ID).Err(err).Msg("skip corrupt record doc")
			continue
		}

		records = append(records, rec)
	}

	return records, nil
}

// DeleteRecord 删除记录及其全部照片（二进制 + 元数据），单事务.
// 任一步失败则整体回滚；记录不存在视为成功.返回清除的照片数.
func (s *Store) DeleteRecord(ctx context.Context, id string) (int, error) {
	if err := s.Open(ctx); err != nil {
		return 0, err
	}

	ctx, span := tracing.StartSpan(ctx, "store.DeleteRecord")
	defer span.End()

	dbx := s.client.GetDB().WithContext(ctx)
	purged := 0

	err := dbx.Transaction(func(tx *gorm.DB) error {
		var photoIDs []string
		if err := tx.Model(&model.PhotoMetaRow{}).
			Where("location_id = ?", id).
			Pluck("photo_id", &photoIDs).Error; err != nil {
			return fmt.Errorf("list record photos: %w", err)
		}

		if len(photoIDs) > 0 {
			if err := tx.Where("photo_id IN ?", photoIDs).Delete(&model.PhotoRow{}).Error; err != nil {
				return fmt.Errorf("delete photo blobs: %w", err)
			}

			if err := tx.Where("location_id = ?", id).Delete(&model.PhotoMetaRow{}).Error; err != nil {
				return fmt.Errorf("delete photo metadata: %w", err)
			}
		}

		if err := tx.Where("id = ?", id).Delete(&model.RecordRow{}).Error; err != nil {
			return fmt.Errorf("delete record row: %w", err)
		}

		purged = len(photoIDs)

		return nil
	})
	if err != nil {
		return 0, mapStorageErr(fmt.Errorf("delete record %s: %w", id, err))
	}

	s.refreshQuotaGauge(ctx)

	return purged, nil
}
