package repository

import (
	"context"
	"errors"
	"time"

	"communitycore/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetByPlayerID 不存在返回 nil, nil
func (r *StatsRepository) GetByPlayerID(ctx context.Context, tx *gorm.DB, playerID int64) (*model.PlayerStats, error) {
	var stats model.PlayerStats
	err := pick(r.db, tx).WithContext(ctx).Where("player_id = ?", playerID).First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stats, nil
}

// Ensure 幂等创建全零战绩
func (r *StatsRepository) Ensure(ctx context.Context, tx *gorm.DB, playerID int64) error {
	return pick(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}},
			DoNothing: true,
		}).
		Create(&model.PlayerStats{PlayerID: playerID}).Error
}

// RecordKill 击杀：kills+1、连杀+1、最高连杀取较大值
//
// 整条更新在数据库侧完成，并发击杀不会丢失计数。
// highest_streak 的表达式引用的是更新前的 kill_streak（gorm 按列名排序生成 SET，
// highest_streak 排在 kill_streak 之前，MySQL 从左到右求值时同样成立）。
func (r *StatsRepository) RecordKill(ctx context.Context, tx *gorm.DB, playerID int64, at time.Time) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.PlayerStats{}).
		Where("player_id = ?", playerID).
		Updates(map[string]interface{}{
			"kills":          gorm.Expr("kills + 1"),
			"kill_streak":    gorm.Expr("kill_streak + 1"),
			"highest_streak": gorm.Expr("CASE WHEN kill_streak + 1 > highest_streak THEN kill_streak + 1 ELSE highest_streak END"),
			"last_kill_time": at,
		}).Error
}

// RecordDeath 死亡：deaths+1，连杀归零
func (r *StatsRepository) RecordDeath(ctx context.Context, tx *gorm.DB, playerID int64) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.PlayerStats{}).
		Where("player_id = ?", playerID).
		Updates(map[string]interface{}{
			"deaths":      gorm.Expr("deaths + 1"),
			"kill_streak": 0,
		}).Error
}

// TouchLastKill 只更新最后击杀时间（击杀 NPC / 动物）
func (r *StatsRepository) TouchLastKill(ctx context.Context, tx *gorm.DB, playerID int64, at time.Time) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.PlayerStats{}).
		Where("player_id = ?", playerID).
		Update("last_kill_time", at).Error
}
