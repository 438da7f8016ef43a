package model

import (
	"time"
)

const DefaultKillfeedFormat = "{Killer} ☠️ {Victim}"

// KillfeedConfig 每个服务器的击杀播报配置，未配置时使用 DefaultKillfeedConfig
type KillfeedConfig struct {
	ServerID          int64     `gorm:"primaryKey;autoIncrement:false" json:"server_id"`
	Enabled           bool      `gorm:"not null" json:"enabled"`
	FormatString      string    `gorm:"type:varchar(512);not null" json:"format_string"`
	RandomizerEnabled bool      `gorm:"not null;default:false" json:"randomizer_enabled"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (KillfeedConfig) TableName() string {
	return "killfeed_config"
}

// DefaultKillfeedConfig 未配置服务器的默认播报配置
func DefaultKillfeedConfig(serverID int64) KillfeedConfig {
	return KillfeedConfig{
		ServerID:     serverID,
		Enabled:      true,
		FormatString: DefaultKillfeedFormat,
	}
}
