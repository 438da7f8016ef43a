package model

import (
	"time"
)

// PlayerStats 玩家在某服务器上的累计击杀战绩，只由击杀播报处理器修改
//
// 不变量：
//   - 玩家死亡时 KillStreak 归零
//   - HighestStreak 单调不减
//   - 击杀 NPC / 动物不改变 Kills、Deaths、KillStreak
type PlayerStats struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID      int64      `gorm:"uniqueIndex;not null" json:"player_id"`
	Kills         int64      `gorm:"not null;default:0" json:"kills"`
	Deaths        int64      `gorm:"not null;default:0" json:"deaths"`
	KillStreak    int64      `gorm:"not null;default:0" json:"kill_streak"`
	HighestStreak int64      `gorm:"not null;default:0" json:"highest_streak"`
	LastKillTime  *time.Time `json:"last_kill_time,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PlayerStats) TableName() string {
	return "player_stats"
}
