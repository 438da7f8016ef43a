package model

// Clan 与 ClanMember 由外部战队模块维护，这里只用于查询战队名
type Clan struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ServerID int64  `gorm:"index;not null" json:"server_id"`
	Name     string `gorm:"type:varchar(64);not null" json:"name"`
}

func (Clan) TableName() string {
	return "clan"
}

type ClanMember struct {
	ID       int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ClanID   int64 `gorm:"index;not null" json:"clan_id"`
	PlayerID int64 `gorm:"uniqueIndex;not null" json:"player_id"`
}

func (ClanMember) TableName() string {
	return "clan_member"
}
