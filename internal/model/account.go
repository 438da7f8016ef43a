package model

import (
	"time"
)

// EconomyAccount 玩家在某个服务器上的货币账户
// 与 PlayerLink 一一对应（PlayerID = PlayerLink.ID），首次需要时以余额 0 惰性创建
//
// Balance 只是流水表的派生缓存：Balance 必须始终等于该玩家全部流水 Amount 之和，
// 因此每次变更余额都必须与写流水处于同一个数据库事务中。
type EconomyAccount struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID  int64     `gorm:"uniqueIndex;not null" json:"player_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	Version   int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号（兑换时整额转出使用）
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EconomyAccount) TableName() string {
	return "economy_account"
}
