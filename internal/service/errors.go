package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"communitycore/internal/model"
)

// 业务校验错误：在任何写操作之前返回，调用方用 errors.Is 判断
var (
	ErrInvalidAmount           = errors.New("金额必须大于0")
	ErrSelfTransfer            = errors.New("不能给自己转账")
	ErrBalanceNotEnough        = errors.New("余额不足")
	ErrSameServerSwap          = errors.New("兑换的源服务器和目标服务器相同")
	ErrNotEnoughServers        = errors.New("公会内至少需要两个服务器才能兑换")
	ErrNothingToSwap           = errors.New("源服务器余额为0，无可兑换金额")
	ErrNotLinked               = errors.New("该服务器上没有有效绑定")
	ErrRecipientNotLinked      = errors.New("收款人在该服务器上没有有效绑定")
	ErrDailyCooldown           = errors.New("每日奖励冷却中")
	ErrIGNTaken                = errors.New("角色名已被其他用户绑定")
	ErrDiscordLinkedElsewhere  = errors.New("该用户已绑定其他角色名")
	ErrUnknownServer           = errors.New("服务器不存在")
	ErrNoActiveLinks           = errors.New("没有任何有效绑定")
	ErrConcurrentUpdate        = errors.New("余额在处理期间发生变化，请重试")
	ErrTransactionTypeNotAllow = errors.New("该交易类型不能通过调整入口记账")
	ErrEmptyIGN                = errors.New("角色名不能为空")
)

// CooldownError 每日奖励冷却中，携带下次可领取时间
type CooldownError struct {
	NextEligibleAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s，下次可领取时间: %s", ErrDailyCooldown.Error(), e.NextEligibleAt.Format(time.RFC3339))
}

func (e *CooldownError) Unwrap() error {
	return ErrDailyCooldown
}

// ServerDirectory 公会服务器目录，本服务只读
type ServerDirectory interface {
	Lookup(ctx context.Context, guildID, nickname string) (*model.GameServer, error)
	Get(ctx context.Context, id int64) (*model.GameServer, error)
	ListByGuild(ctx context.Context, guildID string) ([]model.GameServer, error)
}

// ClanLookup 战队名查询，没有战队时返回空串
type ClanLookup interface {
	ClanName(ctx context.Context, playerID int64) (string, error)
}
