package repository

import (
	"context"
	"errors"

	"communitycore/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create 追加一条流水（流水只追加，不提供修改和删除）
func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.LedgerTransaction) error {
	return pick(r.db, tx).WithContext(ctx).Create(trans).Error
}

// SumByPlayerID 玩家全部流水金额之和
func (r *TransactionRepository) SumByPlayerID(ctx context.Context, tx *gorm.DB, playerID int64) (int64, error) {
	var sum int64
	err := pick(r.db, tx).WithContext(ctx).
		Model(&model.LedgerTransaction{}).
		Where("player_id = ?", playerID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// LatestByType 一组玩家中某类型最近的一条流水，没有返回 nil, nil
func (r *TransactionRepository) LatestByType(ctx context.Context, tx *gorm.DB, playerIDs []int64, txType string) (*model.LedgerTransaction, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}

	var trans model.LedgerTransaction
	err := pick(r.db, tx).WithContext(ctx).
		Where("player_id IN ? AND type = ?", playerIDs, txType).
		Order("created_at DESC").
		Order("id DESC").
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// ListByPlayerID 分页查询流水，同时返回总数
func (r *TransactionRepository) ListByPlayerID(ctx context.Context, playerID int64, page, pageSize int) ([]*model.LedgerTransaction, int64, error) {
	var transactions []*model.LedgerTransaction
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.LedgerTransaction{}).
		Where("player_id = ?", playerID).
		Session(&gorm.Session{})

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
