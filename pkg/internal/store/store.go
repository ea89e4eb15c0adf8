// Package store 提供记录与照片的本地主存储（Blob Store）.
//
// 底层为 GORM 驱动的关系库（默认纯 Go SQLite），四张表：
//   - records：记录文档（JSON）+ 排序索引列
//   - photos：照片二进制，photo_id 全局唯一
//   - photo_metadata：照片元数据，与二进制同事务写删
//   - settings：键值设置（迁移标志、schema 版本）
//
// 错误约定：
//   - 打开失败及其后续操作返回 ErrStorageUnavailable
//   - 照片负载超出配额返回 ErrQuotaExceeded（含磁盘满一类的底层错误映射）
//   - 单键查询的"不存在"不视为错误：GetRecord/GetPhotoBlob 返回 (nil, nil)，
//     settings 读取返回 ErrNotFound 供 errors.Is 判断
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	"github.com/JSB847123/simple-business-database/pkg/internal/storage/db"
)

// 存储层哨兵错误.
var (
	// ErrStorageUnavailable 主存储打开失败或尚未就绪.
	ErrStorageUnavailable = errors.New("store: storage unavailable")
	// ErrQuotaExceeded 照片负载超出配置的字节配额.
	ErrQuotaExceeded = errors.New("store: photo quota exceeded")
	// ErrNotFound 设置键不存在.
	ErrNotFound = errors.New("store: not found")
)

// Store 是记录与照片的主存储.
type Store struct {
	client     *db.Client
	quotaBytes int64

	openOnce sync.Once
	openErr  error
}

// New 创建 Store.quotaBytes <= 0 表示不限制照片配额.
func New(client *db.Client, quotaBytes int64) *Store {
	return &Store{client: client, quotaBytes: quotaBytes}
}

// Open 打开存储：建表（增量 AutoMigrate）并记录 schema 版本.
// 幂等，重复调用只返回首次结果；失败后所有操作返回 ErrStorageUnavailable.
func (s *Store) Open(ctx context.Context) error {
	s.openOnce.Do(func() {
		if err := s.open(ctx); err != nil {
			s.openErr = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	})

	return s.openErr
}

func (s *Store) open(ctx context.Context) error {
	if s.client == nil || s.client.DB == nil {
		return fmt.Errorf("db client not initialized")
	}

	dbx := s.client.GetDB().WithContext(ctx)

	if err := dbx.AutoMigrate(
		&model.RecordRow{},
		&model.PhotoRow{},
		&model.PhotoMetaRow{},
		&model.SettingRow{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// schema 版本直接写表，不走 SetSetting，避免在 openOnce 内重入 Open
	if err := s.writeSetting(dbx, SettingSchemaVersion, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}

	return nil
}

// mapStorageErr 将底层错误归一到存储层哨兵.
// 磁盘满一类的错误（SQLITE_FULL 等）视作配额问题上抛.
func mapStorageErr(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database or disk is full") || strings.Contains(msg, "sqlite_full") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}

	return err
}
