// Package service 提供控制台处理器与定时任务共用的业务编排，不处理 HTTP 细节.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	ctxPkg "github.com/JSB847123/simple-business-database/pkg/context"
	"github.com/JSB847123/simple-business-database/pkg/internal/handlecache"
	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/internal/types"
	"github.com/JSB847123/simple-business-database/pkg/internal/writer"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
	"github.com/JSB847123/simple-business-database/pkg/rule"
)

// 记录查找失败的哨兵错误，处理器用 errors.Is 映射为 404.
var (
	ErrRecordNotFound = errors.New("service: record not found")
	ErrFloorNotFound  = errors.New("service: floor not found")
	ErrPhotoNotFound  = errors.New("service: photo not found")
)

// dateLayout 列表过滤日期格式.
const dateLayout = "2006-01-02"

// RecordService 负责记录相关业务逻辑，工作列表由写入器持有.
type RecordService struct {
	store   *store.Store
	writer  *writer.Writer
	handles *handlecache.Cache
}

// NewRecordService 从 context 获取依赖实例.
// 为了安全起见，核心组件缺失时直接终止而不是返回 nil，依赖此服务就不需要再检查.
func NewRecordService(c context.Context) *RecordService {
	comps := ctxPkg.GetComponents(c)
	if comps == nil || comps.Store == nil || comps.Writer == nil {
		nlog.Logger().Fatal().Msg("app components not initialized")
	}

	return &RecordService{
		store:   comps.Store,
		writer:  comps.Writer,
		handles: comps.Handles,
	}
}

// List 按过滤条件返回工作列表中的记录，第二个返回值为过滤后的总数.
// Limit<=0 表示不分页，返回全部匹配记录.
func (s *RecordService) List(ctx context.Context, q types.ListRecordsQuery) ([]model.Record, int, error) {
	if err := rule.ValidateStruct(&q); err != nil {
		return nil, 0, fmt.Errorf("invalid list query: %w", err)
	}

	startMs, endMs, err := parseDateRange(q.StartDate, q.EndDate)
	if err != nil {
		return nil, 0, err
	}

	all := s.writer.Records()
	filtered := make([]model.Record, 0, len(all))

	search := strings.ToLower(strings.TrimSpace(q.Search))

	for i := range all {
		rec := &all[i]

		if q.LocationType != "" && rec.LocationType != q.LocationType {
			continue
		}

		if search != "" && !matchSearch(rec, search) {
			continue
		}

		saved := rec.EffectiveSaved()
		if startMs > 0 && saved < startMs {
			continue
		}

		if endMs > 0 && saved >= endMs {
			continue
		}

		filtered = append(filtered, *rec)
	}

	total := len(filtered)

	if q.Limit <= 0 {
		return filtered, total, nil
	}

	page := q.Page
	if page < 1 {
		page = 1
	}

	offset := (page - 1) * q.Limit
	if offset >= total {
		return []model.Record{}, total, nil
	}

	end := offset + q.Limit
	if end > total {
		end = total
	}

	return filtered[offset:end], total, nil
}

// Get 按 id 查找记录，优先读内存工作列表，未命中时回落主存储.
// 返回的是深拷贝，调用方可以放心改动后再保存；两处都不存在返回 (nil, nil).
func (s *RecordService) Get(ctx context.Context, id string) (*model.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("record id is empty")
	}

	for _, rec := range s.writer.Records() {
		if rec.ID == id {
			return rec.Clone(), nil
		}
	}

	return s.store.GetRecord(ctx, id)
}

// Save 保存一条记录；新记录缺省字段在此补齐（id、创建时间）.
// 配额不足的错误原样向上传递，由调用方决定重试策略.
func (s *RecordService) Save(ctx context.Context, rec *model.Record) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}

	return s.writer.SaveRecord(ctx, rec)
}

// Delete 删除记录及其全部照片，返回清除的照片数.
// 已打开的照片句柄一并撤销，避免控制台继续提供已删除的内容.
func (s *RecordService) Delete(ctx context.Context, id string) (int, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	if rec == nil {
		return 0, ErrRecordNotFound
	}

	var photoIDs []string
	for i := range rec.Floors {
		for _, p := range rec.Floors[i].Photos {
			photoIDs = append(photoIDs, p.ID)
		}
	}

	purged, err := s.writer.DeleteRecord(ctx, id)
	if err != nil {
		return 0, err
	}

	if s.handles != nil {
		for _, pid := range photoIDs {
			s.handles.Revoke(pid)
		}
	}

	return purged, nil
}

// parseDateRange 解析 YYYY-MM-DD 起止日期为毫秒界限.
// 起始为当日零点（含），截止为次日零点（不含），空串表示无界.
func parseDateRange(start, end string) (int64, int64, error) {
	var startMs, endMs int64

	if start != "" {
		t, err := time.ParseInLocation(dateLayout, start, time.UTC)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid startDate: %w", err)
		}

		startMs = t.UnixMilli()
	}

	if end != "" {
		t, err := time.ParseInLocation(dateLayout, end, time.UTC)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid endDate: %w", err)
		}

		endMs = t.AddDate(0, 0, 1).UnixMilli()
	}

	return startMs, endMs, nil
}

// matchSearch 在地址、备注与检查项里做大小写不敏感的子串匹配.
func matchSearch(rec *model.Record, search string) bool {
	for _, field := range []string{rec.Address.AddressAndName, rec.Notes, rec.CheckItems} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}

	return false
}
