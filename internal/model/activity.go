package model

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityType string

const (
	ActivityPractice ActivityType = "practice"
	ActivityLesson   ActivityType = "lesson"
	ActivityRevision ActivityType = "revision"
	ActivityExample  ActivityType = "example"
	ActivityBonus    ActivityType = "bonus"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Activity 学习活动事件，追加写入、不可变；XPEarned 在写入时定格，重放时不得重算
type Activity struct {
	BaseModel
	UserID       uint         `gorm:"index:idx_user_completed;index:idx_user_type_topic;uniqueIndex:idx_user_idem;type:bigint unsigned;not null"`
	ActivityType ActivityType `gorm:"type:varchar(20);not null;index:idx_user_type_topic"`
	Topic        string       `gorm:"size:100;not null;index:idx_user_type_topic"`
	Subtopic     string       `gorm:"size:100"`
	// LessonID 显式课程外键，课程前置检查直接按此查找
	LessonID       *uint      `gorm:"index;type:bigint unsigned"`
	Score          *float64   // 0-100，缺省时由 correct/total 推导
	TotalQuestions *int
	CorrectAnswers *int
	TimeSpent      *int // 秒
	ExpectedTime   *int // 秒，时间奖励的基准
	XPEarned       int  `gorm:"default:0;not null"`
	Difficulty     Difficulty `gorm:"type:varchar(20);default:'beginner'"`
	CompletedAt    time.Time  `gorm:"not null;index:idx_user_completed"`
	// IdempotencyKey 客户端重试去重，按用户限定作用域；为空表示调用方不关心重放
	IdempotencyKey *string           `gorm:"size:64;uniqueIndex:idx_user_idem"`
	Metadata       datatypes.JSONMap `gorm:"type:json"`
}

func (Activity) TableName() string {
	return "activities"
}

// EffectiveScore 返回事件分数，缺省时由答题数推导，皆无则返回0
func (a *Activity) EffectiveScore() float64 {
	if a.Score != nil {
		return *a.Score
	}
	if a.TotalQuestions != nil && a.CorrectAnswers != nil && *a.TotalQuestions > 0 {
		return float64(*a.CorrectAnswers) / float64(*a.TotalQuestions) * 100
	}
	return 0
}

// MasteryLabel 单次活动的掌握程度标签
func (a *Activity) MasteryLabel() string {
	score := a.EffectiveScore()
	switch {
	case score >= 95:
		return "mastered"
	case score >= 80:
		return "proficient"
	case score >= 60:
		return "developing"
	default:
		return "beginner"
	}
}
