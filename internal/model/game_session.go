package model

import "time"

// GameSession 记录XP换游戏币的游玩会话，每个用户每种游戏一条
type GameSession struct {
	BaseModel
	UserID   uint   `gorm:"type:bigint unsigned;not null;uniqueIndex:idx_user_game"`
	GameType string `gorm:"size:50;not null;default:'tower-defense';uniqueIndex:idx_user_game"`
	LastPlayedAt   time.Time `gorm:"not null"`
	LastXPSnapshot int       `gorm:"default:0"` // 上次游玩时的用户XP
	TotalCoinsUsed int       `gorm:"default:0"`
}

func (GameSession) TableName() string {
	return "game_sessions"
}
