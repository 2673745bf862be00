package repository

import (
	"errors"
	"mathquest_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type GameSessionRepository struct {
	DB *gorm.DB
}

func NewGameSessionRepository(db *gorm.DB) *GameSessionRepository {
	return &GameSessionRepository{DB: db}
}

func (r *GameSessionRepository) FindOrCreate(userID uint, gameType string) (*model.GameSession, error) {
	var session model.GameSession
	err := r.DB.Where("user_id = ? AND game_type = ?", userID, gameType).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		session = model.GameSession{
			UserID:       userID,
			GameType:     gameType,
			LastPlayedAt: time.Now(),
		}
		if err := r.DB.Create(&session).Error; err != nil {
			return nil, err
		}
		return &session, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *GameSessionRepository) Update(session *model.GameSession) error {
	return r.DB.Save(session).Error
}
