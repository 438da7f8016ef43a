package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"communitycore/internal/infrastructure/lock"
	"communitycore/internal/model"
	"communitycore/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// IdentityService Discord 账号与各服务器角色名之间的绑定
//
// 查询未命中返回 nil / 空切片，不作为错误；只有存储失败才返回 error。
// 同一服务器上 Discord 用户和角色名各自最多一条有效绑定，写入前按两者加锁保证。
type IdentityService struct {
	db       *gorm.DB
	linkRepo *repository.LinkRepository
	locker   lock.Locker
	now      func() time.Time
}

func NewIdentityService(db *gorm.DB, locker lock.Locker) *IdentityService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &IdentityService{
		db:       db,
		linkRepo: repository.NewLinkRepository(db),
		locker:   locker,
		now:      time.Now,
	}
}

// lockLink 依次锁定 (服务器, 用户) 和 (服务器, 角色名)，所有绑定路径使用相同顺序
func (s *IdentityService) lockLink(ctx context.Context, guildID string, serverID int64, discordID, ign string) (func(), error) {
	userLock := s.locker.NewLock(lock.LinkUserLockKey(guildID, serverID, discordID), lockExpiration)
	if err := userLock.Lock(ctx, lockRetryInterval, lockMaxRetries); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	ignLock := s.locker.NewLock(lock.LinkIGNLockKey(guildID, serverID, ign), lockExpiration)
	if err := ignLock.Lock(ctx, lockRetryInterval, lockMaxRetries); err != nil {
		userLock.Unlock(ctx)
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	return func() {
		ignLock.Unlock(ctx)
		userLock.Unlock(ctx)
	}, nil
}

func (s *IdentityService) ResolveByDiscordID(ctx context.Context, guildID string, serverID int64, discordID string) (*model.PlayerLink, error) {
	return s.linkRepo.FindActiveByDiscordID(ctx, nil, guildID, serverID, discordID)
}

// ResolveByIGN 忽略大小写的精确匹配
func (s *IdentityService) ResolveByIGN(ctx context.Context, guildID string, serverID int64, ign string) (*model.PlayerLink, error) {
	ign = strings.TrimSpace(ign)
	if ign == "" {
		return nil, nil
	}
	return s.linkRepo.FindActiveByIGN(ctx, nil, guildID, serverID, ign)
}

// ResolveAllByDiscordID 用户在公会所有服务器上的有效绑定，按服务器名称排序
func (s *IdentityService) ResolveAllByDiscordID(ctx context.Context, guildID, discordID string) ([]model.PlayerLink, error) {
	return s.linkRepo.ListActiveByDiscordID(ctx, nil, guildID, discordID)
}

// Link 幂等绑定：已有有效绑定则更新角色名，否则新建
//
// 不检查角色名冲突，冲突策略由调用方决定（见 LinkChecked）。
func (s *IdentityService) Link(ctx context.Context, guildID string, serverID int64, discordID, ign string) (*model.PlayerLink, error) {
	ign = strings.TrimSpace(ign)
	if ign == "" {
		return nil, ErrEmptyIGN
	}
	unlock, err := s.lockLink(ctx, guildID, serverID, discordID, ign)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var link *model.PlayerLink
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		link, err = s.linkTx(ctx, tx, guildID, serverID, discordID, ign)
		return err
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// LinkChecked 先做两项冲突检查再绑定，命令入口使用
func (s *IdentityService) LinkChecked(ctx context.Context, guildID string, serverID int64, discordID, ign string) (*model.PlayerLink, error) {
	ign = strings.TrimSpace(ign)
	if ign == "" {
		return nil, ErrEmptyIGN
	}
	unlock, err := s.lockLink(ctx, guildID, serverID, discordID, ign)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var link *model.PlayerLink
	err = s.db.Transaction(func(tx *gorm.DB) error {
		holder, err := s.linkRepo.FindActiveByIGN(ctx, tx, guildID, serverID, ign)
		if err != nil {
			return fmt.Errorf("查询角色名绑定失败: %w", err)
		}
		if holder != nil && holder.DiscordID != discordID {
			return ErrIGNTaken
		}

		current, err := s.linkRepo.FindActiveByDiscordID(ctx, tx, guildID, serverID, discordID)
		if err != nil {
			return fmt.Errorf("查询用户绑定失败: %w", err)
		}
		if current != nil && !strings.EqualFold(current.IGN, ign) {
			return ErrDiscordLinkedElsewhere
		}

		link, err = s.linkTx(ctx, tx, guildID, serverID, discordID, ign)
		return err
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// linkTx 在给定事务内执行绑定（跨服兑换自动绑定也复用它），调用方需已持有 lockLink
func (s *IdentityService) linkTx(ctx context.Context, tx *gorm.DB, guildID string, serverID int64, discordID, ign string) (*model.PlayerLink, error) {
	ign = strings.TrimSpace(ign)
	if ign == "" {
		return nil, ErrEmptyIGN
	}
	now := s.now()

	existing, err := s.linkRepo.FindActiveByDiscordID(ctx, tx, guildID, serverID, discordID)
	if err != nil {
		return nil, fmt.Errorf("查询用户绑定失败: %w", err)
	}
	if existing != nil {
		if err := s.linkRepo.UpdateIGN(ctx, tx, existing.ID, ign, now); err != nil {
			return nil, fmt.Errorf("更新绑定失败: %w", err)
		}
		existing.IGN = ign
		existing.LinkedAt = now
		return existing, nil
	}

	link := &model.PlayerLink{
		GuildID:   guildID,
		ServerID:  serverID,
		DiscordID: discordID,
		IGN:       ign,
		IsActive:  true,
		LinkedAt:  now,
	}
	if err := s.linkRepo.Create(ctx, tx, link); err != nil {
		return nil, fmt.Errorf("创建绑定失败: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"component": "identity",
		"player_id": link.ID,
		"server_id": serverID,
		"ign":       ign,
	}).Info("新建绑定")
	return link, nil
}

// IsDiscordIDLinkedToDifferentIGN 用户在该服务器已绑定了另一个角色名
func (s *IdentityService) IsDiscordIDLinkedToDifferentIGN(ctx context.Context, guildID string, serverID int64, discordID, ign string) (bool, error) {
	link, err := s.linkRepo.FindActiveByDiscordID(ctx, nil, guildID, serverID, discordID)
	if err != nil || link == nil {
		return false, err
	}
	return !strings.EqualFold(link.IGN, strings.TrimSpace(ign)), nil
}

// IsIGNLinkedToDifferentDiscordID 角色名已被另一个用户绑定
func (s *IdentityService) IsIGNLinkedToDifferentDiscordID(ctx context.Context, guildID string, serverID int64, ign, discordID string) (bool, error) {
	link, err := s.ResolveByIGN(ctx, guildID, serverID, ign)
	if err != nil || link == nil {
		return false, err
	}
	return link.DiscordID != discordID, nil
}

// Unlink 软失效该服务器上的有效绑定，返回是否存在过绑定
func (s *IdentityService) Unlink(ctx context.Context, guildID string, serverID int64, discordID string) (bool, error) {
	var found bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		link, err := s.linkRepo.FindActiveByDiscordID(ctx, tx, guildID, serverID, discordID)
		if err != nil {
			return fmt.Errorf("查询用户绑定失败: %w", err)
		}
		if link == nil {
			return nil
		}
		rows, err := s.linkRepo.Deactivate(ctx, tx, link.ID, s.now())
		if err != nil {
			return fmt.Errorf("解除绑定失败: %w", err)
		}
		found = rows > 0
		return nil
	})
	return found, err
}

// UnlinkAll 解除用户在公会内的全部绑定，返回解除数量
func (s *IdentityService) UnlinkAll(ctx context.Context, guildID, discordID string) (int64, error) {
	rows, err := s.linkRepo.DeactivateAll(ctx, guildID, discordID, s.now())
	if err != nil {
		return 0, fmt.Errorf("解除全部绑定失败: %w", err)
	}
	return rows, nil
}

// Roster 服务器上所有有效绑定的角色名
func (s *IdentityService) Roster(ctx context.Context, serverID int64) ([]string, error) {
	links, err := s.linkRepo.ListActiveByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(links))
	for _, l := range links {
		names = append(names, l.IGN)
	}
	return names, nil
}
