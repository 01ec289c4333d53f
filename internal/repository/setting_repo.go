package repository

import (
	"context"
	"errors"

	"ewallet/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

func (r *SettingRepository) Get(ctx context.Context, key string) (*model.SystemSetting, error) {
	var setting model.SystemSetting
	err := r.db.WithContext(ctx).Where(map[string]interface{}{"key": key}).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	return &setting, nil
}

func (r *SettingRepository) All(ctx context.Context) ([]*model.SystemSetting, error) {
	var settings []*model.SystemSetting
	err := r.db.WithContext(ctx).Order("id").Find(&settings).Error
	return settings, err
}

// Upsert key 已存在时更新 value / type / description
func (r *SettingRepository) Upsert(ctx context.Context, setting *model.SystemSetting) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "type", "description", "updated_at"}),
		}).
		Create(setting).Error
}
