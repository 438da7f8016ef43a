package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeTransferSent     = "transfer_sent"     // 转出
	TransactionTypeTransferReceived = "transfer_received" // 转入
	TransactionTypeSwapSent         = "swap_sent"         // 跨服兑换转出
	TransactionTypeSwapReceived     = "swap_received"     // 跨服兑换转入
	TransactionTypeDailyReward      = "daily_reward"      // 每日奖励
	TransactionTypeCoinflip         = "coinflip"
	TransactionTypeSlots            = "slots"
	TransactionTypeBlackjack        = "blackjack"
	TransactionTypeRoulette         = "roulette"
	TransactionTypeAdminAdjustment  = "admin_adjustment" // 管理员调整
)

// adjustableTypes 允许通过通用 Adjust 入口记账的类型
// 转账、兑换、每日奖励有各自的业务流程，不能从这里绕过
var adjustableTypes = map[string]bool{
	TransactionTypeCoinflip:        true,
	TransactionTypeSlots:           true,
	TransactionTypeBlackjack:       true,
	TransactionTypeRoulette:        true,
	TransactionTypeAdminAdjustment: true,
}

// IsAdjustableType 判断交易类型能否走通用调整入口
func IsAdjustableType(t string) bool {
	return adjustableTypes[t]
}

// ============================================================================
// 账户流水实体
// ============================================================================

// LedgerTransaction 账户流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除，保证审计可追溯
// 2. Amount 带符号（正数入账，负数出账），某玩家全部 Amount 之和 == 账户余额
// 3. 记录交易后余额，便于对账时定位第一笔出错的流水
type LedgerTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	PlayerID      int64     `gorm:"index:idx_txn_player_type,priority:1;not null" json:"player_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Type          string    `gorm:"type:varchar(32);index:idx_txn_player_type,priority:2;not null" json:"type"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	CreatedAt     time.Time `gorm:"index;not null" json:"created_at"`
}

func (LedgerTransaction) TableName() string {
	return "ledger_transaction"
}
