package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sony/gobreaker"

	ctxPkg "github.com/JSB847123/simple-business-database/pkg/context"
	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/internal/syncapi"
	"github.com/JSB847123/simple-business-database/pkg/internal/types"
	"github.com/JSB847123/simple-business-database/pkg/internal/writer"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
	"github.com/JSB847123/simple-business-database/pkg/queue"
)

// ErrSyncDisabled 未配置同步客户端时返回，处理器映射为 503.
var ErrSyncDisabled = errors.New("service: sync disabled")

// photoContentType 照片二进制统一存为压缩后的 JPEG.
const photoContentType = "image/jpeg"

// SyncService 把内存工作列表里的记录与照片推送到远端服务器.
type SyncService struct {
	store  *store.Store
	writer *writer.Writer
	client *syncapi.Client
	pub    message.Publisher
}

// NewSyncService 从 context 获取依赖实例，同步客户端与消息队列可缺省.
func NewSyncService(c context.Context) *SyncService {
	comps := ctxPkg.GetComponents(c)
	if comps == nil || comps.Store == nil || comps.Writer == nil {
		nlog.Logger().Fatal().Msg("app components not initialized")
	}

	var pub message.Publisher
	if mqClient := ctxPkg.GetMQClient(c); mqClient != nil {
		pub = mqClient.Publisher()
	}

	return &SyncService{
		store:  comps.Store,
		writer: comps.Writer,
		client: comps.Sync,
		pub:    pub,
	}
}

// PushRecords 逐条上推工作列表中的记录，随后补传各自的照片二进制.
// 单条失败只计数不中断；熔断器打开后剩余请求注定失败，提前返回部分报告.
func (s *SyncService) PushRecords(ctx context.Context) (types.SyncPushReport, error) {
	var report types.SyncPushReport

	if s.client == nil {
		return report, ErrSyncDisabled
	}

	l := nlog.Logger()
	records := s.writer.Records()
	pushedIDs := make([]string, 0, len(records))

	for i := range records {
		rec := &records[i]

		if err := ctx.Err(); err != nil {
			s.publishPushed(pushedIDs, report.Pushed)
			return report, err
		}

		if err := s.client.UpsertRecord(ctx, rec); err != nil {
			report.Failed++
			s.publishFailed(rec.ID, err)

			if errors.Is(err, gobreaker.ErrOpenState) {
				s.publishPushed(pushedIDs, report.Pushed)
				return report, fmt.Errorf("push aborted after %d records: %w", report.Pushed, err)
			}

			l.Warn().Err(err).Str("record_id", rec.ID).Msg("record push failed")

			continue
		}

		report.Pushed++
		pushedIDs = append(pushedIDs, rec.ID)

		if err := s.pushPhotos(ctx, rec, &report); err != nil {
			s.publishPushed(pushedIDs, report.Pushed)
			return report, fmt.Errorf("push aborted after %d records: %w", report.Pushed, err)
		}
	}

	s.publishPushed(pushedIDs, report.Pushed)
	l.Info().
		Int("pushed", report.Pushed).
		Int("failed", report.Failed).
		Int("photos_pushed", report.PhotosPushed).
		Int("photo_failures", report.PhotoFailures).
		Msg("sync push finished")

	return report, nil
}

// pushPhotos 上传一条记录下所有楼层照片，只有熔断打开才返回错误.
func (s *SyncService) pushPhotos(ctx context.Context, rec *model.Record, report *types.SyncPushReport) error {
	l := nlog.Logger()

	for fi := range rec.Floors {
		for pi := range rec.Floors[fi].Photos {
			photo := &rec.Floors[fi].Photos[pi]

			pushed, err := s.pushOnePhoto(ctx, photo)
			if err == nil {
				if pushed {
					report.PhotosPushed++
				}

				continue
			}

			report.PhotoFailures++

			if errors.Is(err, gobreaker.ErrOpenState) {
				return err
			}

			l.Warn().Err(err).
				Str("record_id", rec.ID).
				Str("photo_id", photo.ID).
				Msg("photo push failed")
		}
	}

	return nil
}

func (s *SyncService) pushOnePhoto(ctx context.Context, photo *model.Photo) (bool, error) {
	blob, err := s.store.GetPhotoBlob(ctx, photo.ID)
	if err != nil {
		return false, err
	}

	// 本地没有二进制的引用（例如迁移中损坏被剔除的照片）直接跳过.
	if blob == nil {
		return false, nil
	}

	grant, err := s.client.RequestUploadURL(ctx, photo.ID, photo.Name)
	if err != nil {
		return false, err
	}

	if err := s.client.UploadPhoto(ctx, grant, blob, photoContentType); err != nil {
		return false, err
	}

	return true, nil
}

func (s *SyncService) publishPushed(ids []string, pushed int) {
	if s.pub == nil {
		return
	}

	payload := queue.SyncPushedPayload{RecordIDs: ids, Pushed: pushed}
	if err := queue.PublishSyncPushed(s.pub, payload); err != nil {
		nlog.Logger().Warn().Err(err).Msg("publish sync pushed event failed")
	}
}

func (s *SyncService) publishFailed(recordID string, pushErr error) {
	if s.pub == nil {
		return
	}

	payload := queue.SyncFailedPayload{RecordID: recordID, Error: pushErr.Error()}
	if err := queue.PublishSyncFailed(s.pub, payload); err != nil {
		nlog.Logger().Warn().Err(err).Msg("publish sync failed event failed")
	}
}
