package model

import (
	"time"
)

// GameServer 公会下配置的游戏服务器
// 本服务只读取该表；ID 是系统内部唯一的 server id，外部的 Discord 标识只在入口处解析一次
type GameServer struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	GuildID   string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_server_nick,priority:1" json:"guild_id"`
	Nickname  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_server_nick,priority:2" json:"nickname"`
	IP        string    `gorm:"column:ip;type:varchar(64);not null" json:"ip"`
	Port      int       `gorm:"not null" json:"port"`
	Password  string    `gorm:"type:varchar(128)" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (GameServer) TableName() string {
	return "game_server"
}
