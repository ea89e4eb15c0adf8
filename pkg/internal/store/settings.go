package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	"github.com/JSB847123/simple-business-database/pkg/internal/model"
)

const (
	// SettingSchemaVersion schema 版本在 settings 表中的键名.
	SettingSchemaVersion = "schema_version"
	// CurrentSchemaVersion 当前建表布局的版本号.
	CurrentSchemaVersion = 1
)

// GetSetting 读取设置并反序列化到 out，键不存在返回 ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, name string, out any) error {
	if err := s.Open(ctx); err != nil {
		return err
	}

	dbx := s.client.GetDB().WithContext(ctx)

	var row model.SettingRow
	if err := dbx.Where("name = ?", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: setting %s", ErrNotFound, name)
		}

		return fmt.Errorf("get setting %s: %w", name, err)
	}

	if err := sonic.Unmarshal([]byte(row.Value), out); err != nil {
		return fmt.Errorf("unmarshal setting %s: %w", name, err)
	}

	return nil
}

// SetSetting 序列化 value 并写入设置（按键 upsert）.
func (s *Store) SetSetting(ctx context.Context, name string, value any) error {
	if err := s.Open(ctx); err != nil {
		return err
	}

	return s.writeSetting(s.client.GetDB().WithContext(ctx), name, value)
}

// DeleteSetting 删除设置，键不存在视为成功.
func (s *Store) DeleteSetting(ctx context.Context, name string) error {
	if err := s.Open(ctx); err != nil {
		return err
	}

	dbx := s.client.GetDB().WithContext(ctx)
	if err := dbx.Where("name = ?", name).Delete(&model.SettingRow{}).Error; err != nil {
		return fmt.Errorf("delete setting %s: %w", name, err)
	}

	return nil
}

// writeSetting 不做 Open 检查的内部写入，供 open 流程复用.
func (s *Store) writeSetting(dbx *gorm.DB, name string, value any) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal setting %s: %w", name, err)
	}

	row := model.SettingRow{Name: name, Value: string(data)}
	if err := dbx.Save(&row).Error; err != nil {
		return mapStorageErr(fmt.Errorf("set setting %s: %w", name, err))
	}

	return nil
}
