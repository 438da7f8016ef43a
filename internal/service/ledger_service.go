package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"communitycore/internal/config"
	"communitycore/internal/metrics"
	"communitycore/internal/model"
	"communitycore/internal/repository"
	"communitycore/pkg/idgen"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LedgerService 余额与流水
//
// 【核心不变量】账户余额 == 该玩家全部流水金额之和。
// 所有改余额的路径都走 apply：原子增减 + 追加流水，且必须处于同一个数据库事务中。
type LedgerService struct {
	db              *gorm.DB
	cfg             *config.Config
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
	now             func() time.Time
}

func NewLedgerService(db *gorm.DB, cfg *config.Config) *LedgerService {
	return &LedgerService{
		db:              db,
		cfg:             cfg,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		now:             time.Now,
	}
}

// GetBalance 没有账户时返回 0
func (s *LedgerService) GetBalance(ctx context.Context, playerID int64) (int64, error) {
	account, err := s.accountRepo.GetByPlayerID(ctx, nil, playerID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return account.Balance, nil
}

// EnsureAccount 幂等创建余额为 0 的账户
func (s *LedgerService) EnsureAccount(ctx context.Context, tx *gorm.DB, playerID int64) error {
	return s.accountRepo.Ensure(ctx, tx, playerID)
}

// UpdateBalance 单条 SQL 原子增减余额，返回变更后的余额
//
// 负数走条件扣款，余额不足时不做任何修改并返回 ErrBalanceNotEnough。
func (s *LedgerService) UpdateBalance(ctx context.Context, tx *gorm.DB, playerID int64, delta int64) (int64, error) {
	if delta >= 0 {
		if err := s.accountRepo.Ensure(ctx, tx, playerID); err != nil {
			return 0, fmt.Errorf("创建账户失败: %w", err)
		}
		if err := s.accountRepo.Increase(ctx, tx, playerID, delta); err != nil {
			return 0, fmt.Errorf("加款失败: %w", err)
		}
	} else {
		if err := s.accountRepo.Deduct(ctx, tx, playerID, -delta); err != nil {
			if errors.Is(err, repository.ErrBalanceNotEnough) || errors.Is(err, repository.ErrAccountNotFound) {
				return 0, ErrBalanceNotEnough
			}
			return 0, fmt.Errorf("扣款失败: %w", err)
		}
	}

	account, err := s.accountRepo.GetByPlayerID(ctx, tx, playerID)
	if err != nil {
		return 0, fmt.Errorf("查询账户失败: %w", err)
	}
	return account.Balance, nil
}

// RecordTransaction 追加一条流水，必须紧跟对应的 UpdateBalance 调用
func (s *LedgerService) RecordTransaction(ctx context.Context, tx *gorm.DB, playerID int64, amount int64, txType string, balanceAfter int64) (*model.LedgerTransaction, error) {
	trans := &model.LedgerTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		PlayerID:      playerID,
		Amount:        amount,
		Type:          txType,
		BalanceAfter:  balanceAfter,
		CreatedAt:     s.now(),
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}
	return trans, nil
}

// apply 改余额并记流水
func (s *LedgerService) apply(ctx context.Context, tx *gorm.DB, playerID int64, delta int64, txType string) (int64, error) {
	balance, err := s.UpdateBalance(ctx, tx, playerID, delta)
	if err != nil {
		return 0, err
	}
	if _, err := s.RecordTransaction(ctx, tx, playerID, delta, txType, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

type AdjustResult struct {
	TransactionNo string `json:"transaction_no"`
	PlayerID      int64  `json:"player_id"`
	Amount        int64  `json:"amount"`
	Type          string `json:"type"`
	Balance       int64  `json:"balance"`
}

// Adjust 通用记账入口（小游戏输赢、管理员调整）
func (s *LedgerService) Adjust(ctx context.Context, playerID int64, delta int64, txType string) (*AdjustResult, error) {
	if !model.IsAdjustableType(txType) {
		return nil, ErrTransactionTypeNotAllow
	}
	if delta == 0 {
		return nil, ErrInvalidAmount
	}

	result := &AdjustResult{PlayerID: playerID, Amount: delta, Type: txType}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		balance, err := s.UpdateBalance(ctx, tx, playerID, delta)
		if err != nil {
			return err
		}
		trans, err := s.RecordTransaction(ctx, tx, playerID, delta, txType, balance)
		if err != nil {
			return err
		}
		result.TransactionNo = trans.TransactionNo
		result.Balance = balance

		return s.outboxRepo.Enqueue(ctx, tx, s.cfg.Kafka.Topic.LedgerEvents, model.EventAdjustment, trans.TransactionNo, result)
	})
	metrics.RecordLedgerOperation("adjust", err)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"component": "ledger",
		"player_id": playerID,
		"amount":    delta,
		"type":      txType,
	}).Info("余额调整成功")
	return result, nil
}

type ReconcileResult struct {
	PlayerID   int64 `json:"player_id"`
	Balance    int64 `json:"balance"`
	JournalSum int64 `json:"journal_sum"`
	Consistent bool  `json:"consistent"`
}

// Reconcile 对比账户余额与流水合计，不做修正
func (s *LedgerService) Reconcile(ctx context.Context, playerID int64) (*ReconcileResult, error) {
	result := &ReconcileResult{PlayerID: playerID}
	// 同一事务内读取两边，避免读到中间状态
	err := s.db.Transaction(func(tx *gorm.DB) error {
		account, err := s.accountRepo.GetByPlayerID(ctx, tx, playerID)
		if err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
			return err
		}
		if account != nil {
			result.Balance = account.Balance
		}
		sum, err := s.transactionRepo.SumByPlayerID(ctx, tx, playerID)
		if err != nil {
			return err
		}
		result.JournalSum = sum
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("对账失败: %w", err)
	}
	result.Consistent = result.Balance == result.JournalSum
	return result, nil
}

type HistoryPage struct {
	Total        int64                      `json:"total"`
	Page         int                        `json:"page"`
	PageSize     int                        `json:"page_size"`
	Transactions []*model.LedgerTransaction `json:"transactions"`
}

// History 分页查询流水，按时间倒序
func (s *LedgerService) History(ctx context.Context, playerID int64, page, pageSize int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	list, total, err := s.transactionRepo.ListByPlayerID(ctx, playerID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}
	return &HistoryPage{Total: total, Page: page, PageSize: pageSize, Transactions: list}, nil
}

// ReconcileAll 遍历全部账户，返回不一致的账户（对账任务使用）
func (s *LedgerService) ReconcileAll(ctx context.Context, batchSize int) ([]*ReconcileResult, int, error) {
	var mismatches []*ReconcileResult
	checked := 0
	var afterID int64
	for {
		accounts, err := s.accountRepo.ListBatch(ctx, afterID, batchSize)
		if err != nil {
			return mismatches, checked, err
		}
		if len(accounts) == 0 {
			return mismatches, checked, nil
		}
		for _, acc := range accounts {
			if ctx.Err() != nil {
				return mismatches, checked, ctx.Err()
			}
			r, err := s.Reconcile(ctx, acc.PlayerID)
			if err != nil {
				return mismatches, checked, err
			}
			checked++
			if !r.Consistent {
				mismatches = append(mismatches, r)
			}
		}
		afterID = accounts[len(accounts)-1].ID
	}
}
