package repository

import (
	"errors"
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByID(userID uint) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDTx 在给定事务中加载用户聚合（含成就，按获得顺序）
func (r *UserRepository) FindByIDTx(tx *gorm.DB, userID uint) (*model.User, error) {
	var user model.User
	err := tx.Preload("Achievements", func(db *gorm.DB) *gorm.DB {
		return db.Order("earned_at asc")
	}).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateAggregate 以乐观锁方式落库聚合状态（XP/等级/连续天数/最近活动日）。
// 版本号不匹配说明并发写入已发生，返回 ErrConcurrencyConflict，
// 调用方须回滚事务并从最新状态重试整个读-改-写流程。
func (r *UserRepository) UpdateAggregate(tx *gorm.DB, user *model.User) error {
	res := tx.Model(&model.User{}).
		Where("id = ? AND version = ?", user.ID, user.Version).
		Updates(map[string]interface{}{
			"xp":                 user.XP,
			"level":              user.Level,
			"streak_count":       user.StreakCount,
			"last_activity_date": user.LastActivityDate,
			"version":            user.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrConcurrencyConflict
	}
	user.Version++
	return nil
}

func (r *UserRepository) UpdateLastSeen(userID uint) error {
	return r.DB.Model(&model.User{}).Where("id = ?", userID).
		Update("last_seen", time.Now()).Error
}

func (r *UserRepository) UpdateLastLogin(userID uint) error {
	return r.DB.Model(&model.User{}).Where("id = ?", userID).
		Update("last_login", time.Now()).Error
}
