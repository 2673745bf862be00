package model

import "time"

// TopicStat 按 (用户, 主题, 活动类型) 维护的增量聚合，
// 与事件在同一事务内更新，用于首次完成判定、完美分计数与主题掌握度，
// 避免每次事件全量扫描事件日志
type TopicStat struct {
	BaseModel
	UserID       uint         `gorm:"type:bigint unsigned;not null;uniqueIndex:idx_user_topic_type"`
	Topic        string       `gorm:"size:100;not null;uniqueIndex:idx_user_topic_type"`
	ActivityType ActivityType `gorm:"type:varchar(20);not null;uniqueIndex:idx_user_topic_type"`
	Attempts     int          `gorm:"default:0"`
	// Completions 得分 >= 70 的次数；>0 即该 (主题, 类型) 已有过完成
	Completions    int     `gorm:"default:0"`
	ScoreSum       float64 `gorm:"default:0"`
	PerfectCount   int     `gorm:"default:0"`
	XPSum          int     `gorm:"default:0"`
	LastDifficulty Difficulty `gorm:"type:varchar(20)"`
	LastAttemptAt  time.Time
}

func (TopicStat) TableName() string {
	return "topic_stats"
}

// AvgScore 该活动类型在该主题下的平均分
func (s *TopicStat) AvgScore() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return s.ScoreSum / float64(s.Attempts)
}
