package model

import "time"

// Achievement 用户已获得的成就记录，按获得顺序追加，同一成就每人最多一条
type Achievement struct {
	BaseModel
	UserID uint `gorm:"index;type:bigint unsigned;uniqueIndex:idx_user_achievement"`
	// AchievementID 成就定义的标识（如 streak_7、master_algebra、perfect_25）
	AchievementID string    `gorm:"size:100;not null;uniqueIndex:idx_user_achievement"`
	Name          string    `gorm:"size:100;not null"`
	Description   string    `gorm:"size:255"`
	XPAwarded     int       `gorm:"default:0"`
	EarnedAt      time.Time `gorm:"not null"`
}

func (Achievement) TableName() string {
	return "achievements"
}
