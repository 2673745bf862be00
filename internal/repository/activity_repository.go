package repository

import (
	"errors"
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type ActivityRepository struct {
	DB *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{DB: db}
}

// Create 追加事件日志；幂等键冲突映射为 ErrDuplicateActivity
func (r *ActivityRepository) Create(tx *gorm.DB, activity *model.Activity) error {
	err := tx.Create(activity).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrDuplicateActivity
	}
	return err
}

func (r *ActivityRepository) FindByIdempotencyKey(tx *gorm.DB, userID uint, key string) (*model.Activity, error) {
	var activity model.Activity
	err := tx.Where("user_id = ? AND idempotency_key = ?", userID, key).First(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// ActivityFilter 事件日志查询条件
type ActivityFilter struct {
	ActivityType model.ActivityType
	Topic        string
	Start        *time.Time
	End          *time.Time
	Limit        int
	Offset       int
}

func (r *ActivityRepository) FindByUser(userID uint, f ActivityFilter) ([]model.Activity, int64, error) {
	q := r.DB.Model(&model.Activity{}).Where("user_id = ?", userID)
	if f.ActivityType != "" {
		q = q.Where("activity_type = ?", f.ActivityType)
	}
	if f.Topic != "" {
		q = q.Where("topic = ?", f.Topic)
	}
	if f.Start != nil {
		q = q.Where("completed_at >= ?", f.Start)
	}
	if f.End != nil {
		q = q.Where("completed_at <= ?", f.End)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var activities []model.Activity
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	err := q.Order("completed_at desc").Limit(limit).Offset(f.Offset).Find(&activities).Error
	if err != nil {
		return nil, 0, err
	}
	return activities, total, nil
}

func (r *ActivityRepository) RecentByUser(userID uint, limit int) ([]model.Activity, error) {
	var activities []model.Activity
	err := r.DB.Where("user_id = ?", userID).
		Order("completed_at desc").Limit(limit).Find(&activities).Error
	return activities, err
}

// CompletedLessonIDs 用户已通过（lesson事件且得分>=70）的课程ID集合
func (r *ActivityRepository) CompletedLessonIDs(userID uint) (map[uint]bool, error) {
	var ids []uint
	err := r.DB.Model(&model.Activity{}).
		Where("user_id = ? AND activity_type = ? AND score >= ? AND lesson_id IS NOT NULL",
			userID, model.ActivityLesson, util.CompletionScore).
		Distinct().Pluck("lesson_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// TypeStat 按活动类型聚合的统计行
type TypeStat struct {
	ActivityType model.ActivityType `json:"activityType"`
	Count        int64              `json:"count"`
	TotalXP      int64              `json:"totalXp"`
	AvgScore     float64            `json:"avgScore"`
	TotalTime    int64              `json:"totalTimeSpent"`
}

func (r *ActivityRepository) StatsByType(userID uint, start, end *time.Time) ([]TypeStat, error) {
	q := r.DB.Model(&model.Activity{}).Where("user_id = ?", userID)
	if start != nil {
		q = q.Where("completed_at >= ?", start)
	}
	if end != nil {
		q = q.Where("completed_at <= ?", end)
	}

	var stats []TypeStat
	err := q.Select("activity_type, COUNT(*) AS count, COALESCE(SUM(xp_earned),0) AS total_xp, " +
		"COALESCE(AVG(score),0) AS avg_score, COALESCE(SUM(time_spent),0) AS total_time").
		Group("activity_type").Scan(&stats).Error
	return stats, err
}

// LeaderboardRow 排行榜聚合行，按窗口内 xp_earned 求和，
// 总分相同先注册的用户在前
type LeaderboardRow struct {
	UserID              uint    `json:"userId"`
	Name                string  `json:"name"`
	Level               int     `json:"level"`
	TotalXP             int64   `json:"totalXp"`
	ActivitiesCompleted int64   `json:"activitiesCompleted"`
	AvgScore            float64 `json:"avgScore"`
}

func (r *ActivityRepository) Leaderboard(since *time.Time, limit int) ([]LeaderboardRow, error) {
	q := r.DB.Model(&model.Activity{}).
		Select("activities.user_id AS user_id, users.name AS name, users.level AS level, "+
			"COALESCE(SUM(activities.xp_earned),0) AS total_xp, COUNT(*) AS activities_completed, "+
			"COALESCE(AVG(activities.score),0) AS avg_score").
		Joins("JOIN users ON users.id = activities.user_id").
		Group("activities.user_id, users.name, users.level, users.created_at").
		Order("total_xp DESC, users.created_at ASC")
	if since != nil {
		q = q.Where("activities.completed_at >= ?", since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []LeaderboardRow
	err := q.Scan(&rows).Error
	return rows, err
}
