// Package storage 聚合记录持久化的三个层级与消息队列.
//
// 层级说明：
//   - DB：主存储（GORM + SQLite），记录与照片的权威数据
//   - Legacy：旧版扁平键值层级，保存迁移前数据与降级快照
//   - Emergency：应急快照层级（Pebble），崩溃后恢复的最后防线
//
// Example:
//
//	ctx := context.Background()
//	mgr, err := storage.Init(ctx)
//	if err != nil {
//	    // 主存储不可用
//	}
//
//	dbClient := mgr.GetDBClient()
//	legacy := mgr.GetLegacyKV()
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/JSB847123/simple-business-database/pkg/configs"
	dbc "github.com/JSB847123/simple-business-database/pkg/internal/storage/db"
	kvc "github.com/JSB847123/simple-business-database/pkg/internal/storage/kv"
	mqc "github.com/JSB847123/simple-business-database/pkg/internal/storage/mq"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
)

// Manager 聚合所有存储资源.
// DB 为必需层级，其余层级初始化失败时为 nil，调用方需判空降级.
type Manager struct {
	DB        *dbc.Client
	Legacy    *kvc.Client
	Emergency kvc.KVStore
	MQ        *mqc.Client
}

var (
	mgr     *Manager
	mgrOnce sync.Once
	mgrErr  error
)

// Init 初始化默认存储，使用全局配置.重复调用只返回已初始化实例.
// 返回的 Manager 始终非 nil；仅当主存储初始化失败时 err 非 nil，
// 旧版与应急层级的失败只记日志，保证设备在局部损坏时仍能启动.
func Init(ctx context.Context) (*Manager, error) {
	mgrOnce.Do(func() {
		cfg := configs.GetConfig()
		m := &Manager{}

		// DB 主层级
		if dbi, e := dbc.New(ctx); e != nil {
			mgrErr = fmt.Errorf("init primary store: %w", e)
		} else {
			m.DB = dbi
		}

		// 旧版扁平层级
		if kvi, e := kvc.NewKVClient(ctx); e != nil {
			nlog.Logger().Warn().Err(e).Msg("legacy tier unavailable")
		} else {
			m.Legacy = kvi
		}

		// 应急快照层级
		if cfg.Emergency.Enabled {
			pebbleCfg := configs.PebbleKVConfig{Dir: cfg.Emergency.Dir}
			if emi, e := kvc.NewKVStore(ctx, kvc.KVTypePebble, &pebbleCfg); e != nil {
				nlog.Logger().Warn().Err(e).Msg("emergency tier unavailable")
			} else {
				m.Emergency = emi
			}
		}

		// MQ
		if mqi, e := mqc.New(ctx); e != nil {
			nlog.Logger().Warn().Err(e).Msg("mq unavailable, snapshot events disabled")
		} else {
			m.MQ = mqi
		}

		mgr = m

		nlog.Logger().Info().Msg("storage manager initialized")
	})

	return mgr, mgrErr
}

// Close 释放所有层级资源.
func (m *Manager) Close() error {
	var err error

	if m.MQ != nil {
		if e := m.MQ.Close(); e != nil {
			err = e
		}
	}

	if m.Emergency != nil {
		if e := m.Emergency.Close(); e != nil {
			err = e
		}
	}

	if m.Legacy != nil {
		if e := m.Legacy.Close(); e != nil {
			err = e
		}
	}

	if m.DB != nil {
		if sqlDB, e := m.DB.GetDB().DB(); e == nil {
			if e := sqlDB.Close(); e != nil {
				err = e
			}
		}
	}

	return err
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetLegacyKV 获取旧版层级的 KV 客户端.
func (m *Manager) GetLegacyKV() *kvc.Client {
	return m.Legacy
}

// GetEmergencyKV 获取应急层级的 KV 存储.
func (m *Manager) GetEmergencyKV() kvc.KVStore {
	return m.Emergency
}

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}
