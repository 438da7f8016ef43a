package service

import (
	"context"
	"fmt"

	"communitycore/internal/metrics"
	"communitycore/internal/model"
	"communitycore/internal/repository"
	"communitycore/pkg/idgen"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TransferService 同服转账
type TransferService struct {
	db         *gorm.DB
	identity   *IdentityService
	ledger     *LedgerService
	outboxRepo *repository.OutboxRepository
}

func NewTransferService(db *gorm.DB, identity *IdentityService, ledger *LedgerService) *TransferService {
	return &TransferService{
		db:         db,
		identity:   identity,
		ledger:     ledger,
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

type TransferRequest struct {
	GuildID       string `json:"guild_id"`
	ServerID      int64  `json:"server_id"`
	FromDiscordID string `json:"from_discord_id"`
	ToDiscordID   string `json:"to_discord_id"`
	Amount        int64  `json:"amount"`
}

type TransferResult struct {
	TransferNo   string `json:"transfer_no"`
	FromPlayerID int64  `json:"from_player_id"`
	ToPlayerID   int64  `json:"to_player_id"`
	Amount       int64  `json:"amount"`
	FromBalance  int64  `json:"from_balance"`
	ToBalance    int64  `json:"to_balance"`
}

// Transfer A 转给 B
//
// 校验全部在写操作之前完成；扣款、入账、两条流水、发件箱消息在同一事务中提交，
// 任一步失败整体回滚，不会出现只扣不加。
func (s *TransferService) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.FromDiscordID == req.ToDiscordID {
		return nil, ErrSelfTransfer
	}

	from, err := s.identity.ResolveByDiscordID(ctx, req.GuildID, req.ServerID, req.FromDiscordID)
	if err != nil {
		return nil, fmt.Errorf("查询转出方绑定失败: %w", err)
	}
	if from == nil {
		return nil, ErrNotLinked
	}
	to, err := s.identity.ResolveByDiscordID(ctx, req.GuildID, req.ServerID, req.ToDiscordID)
	if err != nil {
		return nil, fmt.Errorf("查询收款方绑定失败: %w", err)
	}
	if to == nil {
		return nil, ErrRecipientNotLinked
	}

	balance, err := s.ledger.GetBalance(ctx, from.ID)
	if err != nil {
		return nil, fmt.Errorf("查询余额失败: %w", err)
	}
	if balance < req.Amount {
		return nil, ErrBalanceNotEnough
	}

	result := &TransferResult{
		TransferNo:   idgen.GenerateTransferNo(),
		FromPlayerID: from.ID,
		ToPlayerID:   to.ID,
		Amount:       req.Amount,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 条件扣款再次校验余额，并发支出时这里兜底
		fromBalance, err := s.ledger.apply(ctx, tx, from.ID, -req.Amount, model.TransactionTypeTransferSent)
		if err != nil {
			return err
		}
		toBalance, err := s.ledger.apply(ctx, tx, to.ID, req.Amount, model.TransactionTypeTransferReceived)
		if err != nil {
			return err
		}
		result.FromBalance = fromBalance
		result.ToBalance = toBalance

		if err := s.outboxRepo.Enqueue(ctx, tx, s.ledger.cfg.Kafka.Topic.LedgerEvents, model.EventTransfer, result.TransferNo, map[string]interface{}{
			"transfer_no":    result.TransferNo,
			"guild_id":       req.GuildID,
			"server_id":      req.ServerID,
			"from_player_id": from.ID,
			"to_player_id":   to.ID,
			"amount":         req.Amount,
		}); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
	metrics.RecordLedgerOperation("transfer", err)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"component":   "ledger",
		"transfer_no": result.TransferNo,
		"from":        from.ID,
		"to":          to.ID,
		"amount":      req.Amount,
	}).Info("转账成功")
	return result, nil
}
