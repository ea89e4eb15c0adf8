// Package context 拓展上下文功能，将存储管理器与应用组件注入上下文，方便在请求链路各处取用.
package context

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/JSB847123/simple-business-database/pkg/internal/handlecache"
	"github.com/JSB847123/simple-business-database/pkg/internal/migrate"
	"github.com/JSB847123/simple-business-database/pkg/internal/recovery"
	"github.com/JSB847123/simple-business-database/pkg/internal/storage"
	dbc "github.com/JSB847123/simple-business-database/pkg/internal/storage/db"
	kvc "github.com/JSB847123/simple-business-database/pkg/internal/storage/kv"
	mqc "github.com/JSB847123/simple-business-database/pkg/internal/storage/mq"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/internal/syncapi"
	"github.com/JSB847123/simple-business-database/pkg/internal/writer"
	"github.com/JSB847123/simple-business-database/pkg/scheduler"
)

type ContextKey string

const (
	StorageManagerKey ContextKey = "storageManager"
	ComponentsKey     ContextKey = "appComponents"
)

// Components 汇聚应用级长生命周期组件，由 app 装配后注入请求上下文.
// Writer 持有内存中的工作列表，Handles 持有进程内临时文件，二者全进程唯一.
type Components struct {
	Store     *store.Store
	Writer    *writer.Writer
	Migrator  *migrate.Engine
	Recovery  *recovery.Recovery
	Handles   *handlecache.Cache
	Sync      *syncapi.Client
	Scheduler *scheduler.Scheduler
}

// WithStorageManager 将 Manager 存储到 context 中.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return context.WithValue(ctx, StorageManagerKey, mgr)
}

// GetManager 从 context 中获取 Manager.
func GetManager(ctx context.Context) *storage.Manager {
	if mgr, ok := ctx.Value(StorageManagerKey).(*storage.Manager); ok {
		return mgr
	}

	return nil
}

// WithComponents 将应用组件注入 context.
func WithComponents(ctx context.Context, c *Components) context.Context {
	return context.WithValue(ctx, ComponentsKey, c)
}

// GetComponents 从 context 中获取应用组件.
func GetComponents(ctx context.Context) *Components {
	if c, ok := ctx.Value(ComponentsKey).(*Components); ok {
		return c
	}

	return nil
}

// GetDBClient 从 context 中获取 DB 客户端.
func GetDBClient(ctx context.Context) *dbc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetDBClient()
	}

	return nil
}

// GetLegacyKV 从 context 中获取旧版层级的 KV 客户端.
func GetLegacyKV(ctx context.Context) *kvc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetLegacyKV()
	}

	return nil
}

// GetEmergencyKV 从 context 中获取应急层级的 KV 存储.
func GetEmergencyKV(ctx context.Context) kvc.KVStore {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetEmergencyKV()
	}

	return nil
}

// GetMQClient 从 context 中获取 MQ 客户端.
func GetMQClient(ctx context.Context) *mqc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetMQClient()
	}

	return nil
}

// GetStore 从 context 中获取 Blob Store.
func GetStore(ctx context.Context) *store.Store {
	if c := GetComponents(ctx); c != nil {
		return c.Store
	}

	return nil
}

// GetWriter 从 context 中获取记录写入器.
func GetWriter(ctx context.Context) *writer.Writer {
	if c := GetComponents(ctx); c != nil {
		return c.Writer
	}

	return nil
}

// GetMigrator 从 context 中获取迁移引擎.
func GetMigrator(ctx context.Context) *migrate.Engine {
	if c := GetComponents(ctx); c != nil {
		return c.Migrator
	}

	return nil
}

// GetRecovery 从 context 中获取恢复诊断组件.
func GetRecovery(ctx context.Context) *recovery.Recovery {
	if c := GetComponents(ctx); c != nil {
		return c.Recovery
	}

	return nil
}

// GetHandleCache 从 context 中获取照片句柄缓存.
func GetHandleCache(ctx context.Context) *handlecache.Cache {
	if c := GetComponents(ctx); c != nil {
		return c.Handles
	}

	return nil
}

// GetSyncClient 从 context 中获取远端同步客户端.
func GetSyncClient(ctx context.Context) *syncapi.Client {
	if c := GetComponents(ctx); c != nil {
		return c.Sync
	}

	return nil
}

// GetScheduler 从 context 中获取任务调度器.
func GetScheduler(ctx context.Context) *scheduler.Scheduler {
	if c := GetComponents(ctx); c != nil {
		return c.Scheduler
	}

	return nil
}

// WithTraceContext 创建带有追踪上下文的logger.
func WithTraceContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		return logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return logger
}
