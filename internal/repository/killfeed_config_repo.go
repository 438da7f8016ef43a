package repository

import (
	"context"
	"errors"

	"communitycore/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type KillfeedConfigRepository struct {
	db *gorm.DB
}

func NewKillfeedConfigRepository(db *gorm.DB) *KillfeedConfigRepository {
	return &KillfeedConfigRepository{db: db}
}

// Get 未配置返回 nil, nil
func (r *KillfeedConfigRepository) Get(ctx context.Context, serverID int64) (*model.KillfeedConfig, error) {
	var cfg model.KillfeedConfig
	err := r.db.WithContext(ctx).Where("server_id = ?", serverID).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *KillfeedConfigRepository) Upsert(ctx context.Context, cfg *model.KillfeedConfig) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "server_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "format_string", "randomizer_enabled", "updated_at"}),
		}).
		Create(cfg).Error
}
