package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"communitycore/internal/infrastructure/lock"
	"communitycore/internal/metrics"
	"communitycore/internal/model"
	"communitycore/internal/repository"
	"communitycore/pkg/idgen"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	lockExpiration    = 10 * time.Second
	lockRetryInterval = 50 * time.Millisecond
	lockMaxRetries    = 40
)

// SwapService 同一用户跨服兑换：源服务器余额整额转入目标服务器
type SwapService struct {
	db          *gorm.DB
	servers     ServerDirectory
	identity    *IdentityService
	ledger      *LedgerService
	locker      lock.Locker
	linkRepo    *repository.LinkRepository
	accountRepo *repository.AccountRepository
	outboxRepo  *repository.OutboxRepository
}

func NewSwapService(db *gorm.DB, servers ServerDirectory, identity *IdentityService, ledger *LedgerService, locker lock.Locker) *SwapService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &SwapService{
		db:          db,
		servers:     servers,
		identity:    identity,
		ledger:      ledger,
		locker:      locker,
		linkRepo:    repository.NewLinkRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type SwapRequest struct {
	GuildID      string `json:"guild_id"`
	DiscordID    string `json:"discord_id"`
	FromServerID int64  `json:"from_server_id"`
	ToServerID   int64  `json:"to_server_id"`
}

type SwapResult struct {
	SwapNo       string `json:"swap_no"`
	FromPlayerID int64  `json:"from_player_id"`
	ToPlayerID   int64  `json:"to_player_id"`
	Amount       int64  `json:"amount"`
	FromBalance  int64  `json:"from_balance"`
	ToBalance    int64  `json:"to_balance"`
	AutoLinked   bool   `json:"auto_linked"`
}

// Swap 整额兑换，不支持部分金额
func (s *SwapService) Swap(ctx context.Context, req *SwapRequest) (*SwapResult, error) {
	if req.FromServerID == req.ToServerID {
		return nil, ErrSameServerSwap
	}

	servers, err := s.servers.ListByGuild(ctx, req.GuildID)
	if err != nil {
		return nil, fmt.Errorf("查询服务器列表失败: %w", err)
	}
	if len(servers) < 2 {
		return nil, ErrNotEnoughServers
	}
	if !containsServer(servers, req.FromServerID) || !containsServer(servers, req.ToServerID) {
		return nil, ErrUnknownServer
	}

	swapLock := s.locker.NewLock(lock.SwapLockKey(req.GuildID, req.DiscordID), lockExpiration)
	if err := swapLock.Lock(ctx, lockRetryInterval, lockMaxRetries); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer swapLock.Unlock(ctx)

	from, err := s.identity.ResolveByDiscordID(ctx, req.GuildID, req.FromServerID, req.DiscordID)
	if err != nil {
		return nil, fmt.Errorf("查询源服务器绑定失败: %w", err)
	}
	if from == nil {
		return nil, ErrNotLinked
	}

	account, err := s.accountRepo.GetByPlayerID(ctx, nil, from.ID)
	if err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("查询余额失败: %w", err)
	}
	if account == nil || account.Balance <= 0 {
		return nil, ErrNothingToSwap
	}

	// 目标服务器可能需要自动绑定，与普通绑定使用同一组锁
	releaseLink, err := s.identity.lockLink(ctx, req.GuildID, req.ToServerID, req.DiscordID, from.IGN)
	if err != nil {
		return nil, err
	}
	defer releaseLink()

	result := &SwapResult{
		SwapNo:       idgen.GenerateSwapNo(),
		FromPlayerID: from.ID,
		Amount:       account.Balance,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		to, err := s.linkRepo.FindActiveByDiscordID(ctx, tx, req.GuildID, req.ToServerID, req.DiscordID)
		if err != nil {
			return fmt.Errorf("查询目标服务器绑定失败: %w", err)
		}
		if to == nil {
			holder, err := s.linkRepo.FindActiveByIGN(ctx, tx, req.GuildID, req.ToServerID, from.IGN)
			if err != nil {
				return fmt.Errorf("查询角色名绑定失败: %w", err)
			}
			if holder != nil && holder.DiscordID != req.DiscordID {
				return ErrIGNTaken
			}
			to, err = s.identity.linkTx(ctx, tx, req.GuildID, req.ToServerID, req.DiscordID, from.IGN)
			if err != nil {
				return err
			}
			result.AutoLinked = true
		}
		result.ToPlayerID = to.ID

		// 按快照整额扣款：期间若有其他入账，版本号变化导致失败，不会在源服务器留下余额
		if err := s.accountRepo.DeductExact(ctx, tx, from.ID, account.Balance, account.Version); err != nil {
			if errors.Is(err, repository.ErrOptimisticLock) {
				return ErrConcurrentUpdate
			}
			return fmt.Errorf("扣款失败: %w", err)
		}
		if _, err := s.ledger.RecordTransaction(ctx, tx, from.ID, -account.Balance, model.TransactionTypeSwapSent, 0); err != nil {
			return err
		}

		toBalance, err := s.ledger.apply(ctx, tx, to.ID, account.Balance, model.TransactionTypeSwapReceived)
		if err != nil {
			return err
		}
		result.ToBalance = toBalance

		if err := s.outboxRepo.Enqueue(ctx, tx, s.ledger.cfg.Kafka.Topic.LedgerEvents, model.EventSwap, result.SwapNo, map[string]interface{}{
			"swap_no":        result.SwapNo,
			"guild_id":       req.GuildID,
			"discord_id":     req.DiscordID,
			"from_server_id": req.FromServerID,
			"to_server_id":   req.ToServerID,
			"from_player_id": from.ID,
			"to_player_id":   to.ID,
			"amount":         account.Balance,
		}); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
	metrics.RecordLedgerOperation("swap", err)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"component": "ledger",
		"swap_no":   result.SwapNo,
		"from":      result.FromPlayerID,
		"to":        result.ToPlayerID,
		"amount":    result.Amount,
	}).Info("跨服兑换成功")
	return result, nil
}

func containsServer(servers []model.GameServer, id int64) bool {
	for _, srv := range servers {
		if srv.ID == id {
			return true
		}
	}
	return false
}
