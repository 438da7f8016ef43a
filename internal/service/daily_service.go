package service

import (
	"context"
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

// DailyService 每日奖励
//
// 冷却按 Discord 用户计算：取该用户公会内所有有效绑定上最近一次 daily_reward 流水时间；
// 可领取时给每个有效绑定各入账一次。
type DailyService struct {
	db              *gorm.DB
	identity        *IdentityService
	ledger          *LedgerService
	locker          lock.Locker
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewDailyService(db *gorm.DB, identity *IdentityService, ledger *LedgerService, locker lock.Locker) *DailyService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &DailyService{
		db:              db,
		identity:        identity,
		ledger:          ledger,
		locker:          locker,
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type DailyCredit struct {
	PlayerID int64  `json:"player_id"`
	ServerID int64  `json:"server_id"`
	IGN      string `json:"ign"`
	Balance  int64  `json:"balance"`
}

type DailyResult struct {
	RewardNo       string        `json:"reward_no"`
	Amount         int64         `json:"amount"`
	Credits        []DailyCredit `json:"credits"`
	NextEligibleAt time.Time     `json:"next_eligible_at"`
}

// Claim 领取每日奖励；冷却中返回 *CooldownError（errors.Is(err, ErrDailyCooldown) 成立）
func (s *DailyService) Claim(ctx context.Context, guildID, discordID string) (*DailyResult, error) {
	business := s.ledger.cfg.Business
	cooldown := business.DailyCooldown()

	dailyLock := s.locker.NewLock(lock.DailyLockKey(guildID, discordID), lockExpiration)
	if err := dailyLock.Lock(ctx, lockRetryInterval, lockMaxRetries); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer dailyLock.Unlock(ctx)

	links, err := s.identity.ResolveAllByDiscordID(ctx, guildID, discordID)
	if err != nil {
		return nil, fmt.Errorf("查询用户绑定失败: %w", err)
	}
	if len(links) == 0 {
		return nil, ErrNoActiveLinks
	}

	playerIDs := make([]int64, 0, len(links))
	for _, l := range links {
		playerIDs = append(playerIDs, l.ID)
	}

	// 与流水时间使用同一时钟
	now := s.ledger.now()
	last, err := s.transactionRepo.LatestByType(ctx, nil, playerIDs, model.TransactionTypeDailyReward)
	if err != nil {
		return nil, fmt.Errorf("查询领取记录失败: %w", err)
	}
	if last != nil {
		next := last.CreatedAt.Add(cooldown)
		if now.Before(next) {
			return nil, &CooldownError{NextEligibleAt: next}
		}
	}

	result := &DailyResult{
		RewardNo:       idgen.GenerateDailyNo(),
		Amount:         business.DailyRewardAmount,
		NextEligibleAt: now.Add(cooldown),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, l := range links {
			balance, err := s.ledger.apply(ctx, tx, l.ID, business.DailyRewardAmount, model.TransactionTypeDailyReward)
			if err != nil {
				return err
			}
			result.Credits = append(result.Credits, DailyCredit{
				PlayerID: l.ID,
				ServerID: l.ServerID,
				IGN:      l.IGN,
				Balance:  balance,
			})
		}

		if err := s.outboxRepo.Enqueue(ctx, tx, s.ledger.cfg.Kafka.Topic.LedgerEvents, model.EventDailyReward, result.RewardNo, map[string]interface{}{
			"reward_no":  result.RewardNo,
			"guild_id":   guildID,
			"discord_id": discordID,
			"amount":     business.DailyRewardAmount,
			"player_ids": playerIDs,
		}); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
	metrics.RecordLedgerOperation("daily", err)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"component":  "ledger",
		"reward_no":  result.RewardNo,
		"discord_id": discordID,
		"links":      len(links),
	}).Info("每日奖励发放成功")
	return result, nil
}
