package repository

import (
	"mathquest_backend/internal/model"

	"gorm.io/gorm"
)

type AchievementRepository struct {
	DB *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: db}
}

func (r *AchievementRepository) FindByUserID(userID uint) ([]model.Achievement, error) {
	var achievements []model.Achievement
	err := r.DB.Where("user_id = ?", userID).Order("earned_at asc").Find(&achievements).Error
	if err != nil {
		return nil, err
	}
	return achievements, nil
}

// EarnedIDs 用户已获得的成就定义ID集合
func (r *AchievementRepository) EarnedIDs(tx *gorm.DB, userID uint) (map[string]bool, error) {
	var ids []string
	err := tx.Model(&model.Achievement{}).Where("user_id = ?", userID).
		Pluck("achievement_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (r *AchievementRepository) Create(tx *gorm.DB, achievement *model.Achievement) error {
	return tx.Create(achievement).Error
}
