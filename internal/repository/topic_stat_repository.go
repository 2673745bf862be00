package repository

import (
	"errors"
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/util"

	"gorm.io/gorm"
)

type TopicStatRepository struct {
	DB *gorm.DB
}

func NewTopicStatRepository(db *gorm.DB) *TopicStatRepository {
	return &TopicStatRepository{DB: db}
}

// HasCompletion 该 (主题, 活动类型) 是否已有得分>=70的事件——首次完成判定
func (r *TopicStatRepository) HasCompletion(tx *gorm.DB, userID uint, topic string, at model.ActivityType) (bool, error) {
	var stat model.TopicStat
	err := tx.Where("user_id = ? AND topic = ? AND activity_type = ?", userID, topic, at).
		First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stat.Completions > 0, nil
}

// Apply 将一条事件并入增量聚合，与事件写入同一事务
func (r *TopicStatRepository) Apply(tx *gorm.DB, activity *model.Activity) error {
	var stat model.TopicStat
	err := tx.Where("user_id = ? AND topic = ? AND activity_type = ?",
		activity.UserID, activity.Topic, activity.ActivityType).First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stat = model.TopicStat{
			UserID:       activity.UserID,
			Topic:        activity.Topic,
			ActivityType: activity.ActivityType,
		}
	} else if err != nil {
		return err
	}

	score := activity.EffectiveScore()
	stat.Attempts++
	stat.ScoreSum += score
	stat.XPSum += activity.XPEarned
	if score >= util.CompletionScore {
		stat.Completions++
	}
	if score == 100 {
		stat.PerfectCount++
	}
	stat.LastDifficulty = activity.Difficulty
	stat.LastAttemptAt = activity.CompletedAt

	return tx.Save(&stat).Error
}

func (r *TopicStatRepository) ListByUser(tx *gorm.DB, userID uint) ([]model.TopicStat, error) {
	var stats []model.TopicStat
	err := tx.Where("user_id = ?", userID).Find(&stats).Error
	return stats, err
}

func (r *TopicStatRepository) ListByUserTopic(userID uint, topic string) ([]model.TopicStat, error) {
	var stats []model.TopicStat
	err := r.DB.Where("user_id = ? AND topic = ?", userID, topic).Find(&stats).Error
	return stats, err
}

// LastLessonDifficulty 用户在某主题最近一次 lesson 活动的难度，没有则返回空串
func (r *TopicStatRepository) LastLessonDifficulty(userID uint, topic string) (model.Difficulty, error) {
	var stat model.TopicStat
	err := r.DB.Where("user_id = ? AND topic = ? AND activity_type = ?",
		userID, topic, model.ActivityLesson).First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return stat.LastDifficulty, nil
}
