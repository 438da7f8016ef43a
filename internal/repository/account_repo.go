package repository

import (
	"context"
	"errors"

	"communitycore/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByPlayerID(ctx context.Context, tx *gorm.DB, playerID int64) (*model.EconomyAccount, error) {
	var account model.EconomyAccount
	err := pick(r.db, tx).WithContext(ctx).Where("player_id = ?", playerID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Ensure 幂等创建余额为 0 的账户
func (r *AccountRepository) Ensure(ctx context.Context, tx *gorm.DB, playerID int64) error {
	return pick(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}},
			DoNothing: true,
		}).
		Create(&model.EconomyAccount{PlayerID: playerID}).Error
}

// Increase 原子加款：balance = balance + amount
func (r *AccountRepository) Increase(ctx context.Context, tx *gorm.DB, playerID int64, amount int64) error {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.EconomyAccount{}).
		Where("player_id = ?", playerID).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Deduct 原子条件扣款
//
// 【关键点】余额判断和扣减在同一条 UPDATE 中完成：
//
//	UPDATE economy_account SET balance = balance - ? WHERE player_id = ? AND balance >= ?
//
// 不存在"先查余额再扣款"的窗口，余额不足时影响行数为 0，直接失败。
func (r *AccountRepository) Deduct(ctx context.Context, tx *gorm.DB, playerID int64, amount int64) error {
	conn := pick(r.db, tx)
	result := conn.WithContext(ctx).
		Model(&model.EconomyAccount{}).
		Where("player_id = ? AND balance >= ?", playerID, amount).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByPlayerID(ctx, conn, playerID); err != nil {
			return err
		}
		return ErrBalanceNotEnough
	}
	return nil
}

// DeductExact 按快照整额扣款，要求余额与版本号都未变化
// 用于"全部转出"：期间如有其他入账，版本号变化导致失败而不是留下余额
func (r *AccountRepository) DeductExact(ctx context.Context, tx *gorm.DB, playerID int64, amount int64, version int) error {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.EconomyAccount{}).
		Where("player_id = ? AND balance = ? AND version = ?", playerID, amount, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

// ListBatch 按 id 游标分批遍历账户（对账任务使用）
func (r *AccountRepository) ListBatch(ctx context.Context, afterID int64, limit int) ([]*model.EconomyAccount, error) {
	var accounts []*model.EconomyAccount
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}
