package model

import (
	"time"
)

// PlayerLink Discord 账号与某个游戏服务器内角色名（IGN）的绑定关系
//
// 【重要】绑定记录只做软失效（IsActive=false + UnlinkedAt），从不物理删除，
// 保留历史用于审计。ID 即全系统使用的 player id，余额账户和战绩都以它为键。
//
// 同一 (guild, server) 内：
//   - 每个 DiscordID 至多一条有效绑定
//   - 每个 IGN（忽略大小写）至多一条有效绑定
type PlayerLink struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	GuildID    string     `gorm:"type:varchar(32);not null;index:idx_link_discord,priority:1;index:idx_link_ign,priority:1" json:"guild_id"`
	ServerID   int64      `gorm:"not null;index:idx_link_discord,priority:2;index:idx_link_ign,priority:2" json:"server_id"`
	DiscordID  string     `gorm:"type:varchar(32);not null;index:idx_link_discord,priority:3" json:"discord_id"`
	IGN        string     `gorm:"column:ign;type:varchar(64);not null;index:idx_link_ign,priority:3" json:"ign"`
	IsActive   bool       `gorm:"not null;index" json:"is_active"`
	LinkedAt   time.Time  `gorm:"not null" json:"linked_at"`
	UnlinkedAt *time.Time `json:"unlinked_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PlayerLink) TableName() string {
	return "player_link"
}
