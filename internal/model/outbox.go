package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 事务发件箱：与业务数据同一事务写入，由 OutboxSender 异步投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	EventType  string    `gorm:"type:varchar(32);not null" json:"event_type"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

const (
	EventTransfer        = "ledger.transfer"
	EventSwap            = "ledger.swap"
	EventDailyReward     = "ledger.daily_reward"
	EventAdjustment      = "ledger.adjustment"
	EventKillfeedMessage = "killfeed.message"
)

// AllModels 需要自动迁移的全部表
func AllModels() []interface{} {
	return []interface{}{
		&GameServer{},
		&PlayerLink{},
		&EconomyAccount{},
		&LedgerTransaction{},
		&PlayerStats{},
		&KillfeedConfig{},
		&Clan{},
		&ClanMember{},
		&OutboxMessage{},
	}
}
