package service

import (
	"errors"
	"math"
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
	"mathquest_backend/internal/util"
	"mathquest_backend/pkg/logger"
	"mathquest_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxConflictRetries 乐观锁冲突时整个读-改-写流程的最大重试次数
const maxConflictRetries = 3

// ProgressService 进度编排器：对每条事件依次完成
// 连续天数推进 → XP计算 → 事件落盘 → 聚合更新 → 成就评估，
// 全程单事务提交，聚合写入走乐观锁，冲突即整体重做
type ProgressService struct {
	DB              *gorm.DB
	UserRepo        *repository.UserRepository
	ActivityRepo    *repository.ActivityRepository
	StatRepo        *repository.TopicStatRepository
	AchievementRepo *repository.AchievementRepository
	Achievements    *AchievementService
	Lessons         *LessonService
	Calc            *XPCalculator
}

func NewProgressService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	activityRepo *repository.ActivityRepository,
	statRepo *repository.TopicStatRepository,
	achievementRepo *repository.AchievementRepository,
	achievements *AchievementService,
	lessons *LessonService,
	calc *XPCalculator,
) *ProgressService {
	return &ProgressService{
		DB:              db,
		UserRepo:        userRepo,
		ActivityRepo:    activityRepo,
		StatRepo:        statRepo,
		AchievementRepo: achievementRepo,
		Achievements:    achievements,
		Lessons:         lessons,
		Calc:            calc,
	}
}

// RecordActivityRequest 记录一次学习活动
type RecordActivityRequest struct {
	ActivityType   string                 `json:"activityType" binding:"required,oneof=practice lesson revision example"`
	Topic          string                 `json:"topic" binding:"required"`
	Subtopic       string                 `json:"subtopic"`
	LessonID       *uint                  `json:"lessonId"`
	Score          *float64               `json:"score"`
	TotalQuestions *int                   `json:"totalQuestions"`
	CorrectAnswers *int                   `json:"correctAnswers"`
	TimeSpent      *int                   `json:"timeSpent"`
	ExpectedTime   *int                   `json:"expectedTime"`
	Difficulty     string                 `json:"difficulty" binding:"omitempty,oneof=beginner intermediate advanced"`
	XPOverride     *int                   `json:"xpOverride"`
	IdempotencyKey *string                `json:"idempotencyKey"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// ProgressResult 事件处理结果
type ProgressResult struct {
	XPEarned        int                 `json:"xpEarned"`
	TotalXP         int                 `json:"totalXp"`
	Level           int                 `json:"level"`
	LeveledUp       bool                `json:"leveledUp"`
	XPForNextLevel  int                 `json:"xpForNextLevel"`
	NewAchievements []model.Achievement `json:"newAchievements"`
	StreakCount     int                 `json:"streakCount"`
	Mastery         string              `json:"mastery,omitempty"`
	Duplicate       bool                `json:"duplicate,omitempty"`
}

func validateActivity(req *RecordActivityRequest) error {
	if req.Score != nil && (*req.Score < 0 || *req.Score > 100) {
		return util.NewValidationError("score", "must be between 0 and 100")
	}
	if req.TimeSpent != nil && *req.TimeSpent < 0 {
		return util.NewValidationError("timeSpent", "cannot be negative")
	}
	if req.ExpectedTime != nil && *req.ExpectedTime < 0 {
		return util.NewValidationError("expectedTime", "cannot be negative")
	}
	if req.TotalQuestions != nil && *req.TotalQuestions < 0 {
		return util.NewValidationError("totalQuestions", "cannot be negative")
	}
	if req.CorrectAnswers != nil {
		if *req.CorrectAnswers < 0 {
			return util.NewValidationError("correctAnswers", "cannot be negative")
		}
		if req.TotalQuestions != nil && *req.CorrectAnswers > *req.TotalQuestions {
			return util.NewValidationError("correctAnswers", "cannot exceed totalQuestions")
		}
	}
	if req.XPOverride != nil && *req.XPOverride < 0 {
		return util.NewValidationError("xpOverride", "cannot be negative")
	}
	return nil
}

// derivedScore 显式分数优先；缺省时由答题数推导并取整
func derivedScore(req *RecordActivityRequest) *float64 {
	if req.Score != nil {
		return req.Score
	}
	if req.TotalQuestions != nil && req.CorrectAnswers != nil && *req.TotalQuestions > 0 {
		score := math.Round(float64(*req.CorrectAnswers) / float64(*req.TotalQuestions) * 100)
		return &score
	}
	return nil
}

// RecordActivity 应用一条活动事件。事件恰好作用于聚合一次：
// 相同幂等键的重投递返回已存储的结果而不重复计分；
// 同一用户的并发写入经版本号冲突检测整体重试。
func (s *ProgressService) RecordActivity(userID uint, req RecordActivityRequest) (*ProgressResult, error) {
	if err := validateActivity(&req); err != nil {
		return nil, err
	}

	var result *ProgressResult
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		result, lastErr = s.recordOnce(userID, req)
		if lastErr == nil {
			return result, nil
		}
		if errors.Is(lastErr, util.ErrConcurrencyConflict) || errors.Is(lastErr, util.ErrDuplicateActivity) {
			monitoring.ConcurrencyRetries.Inc()
			logger.Log.Warn("aggregate conflict, retrying",
				zap.Uint("userID", userID), zap.Int("attempt", attempt+1))
			continue
		}
		return nil, lastErr
	}
	return nil, lastErr
}

// recordOnce 单次读-改-写流程，全部落在一个事务里，失败即整体回滚
func (s *ProgressService) recordOnce(userID uint, req RecordActivityRequest) (*ProgressResult, error) {
	now := time.Now()
	var result *ProgressResult

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		user, err := s.UserRepo.FindByIDTx(tx, userID)
		if err != nil {
			return err
		}

		// 幂等：同一键的事件已在日志里，直接返回当时定格的结果
		if req.IdempotencyKey != nil {
			existing, err := s.ActivityRepo.FindByIdempotencyKey(tx, userID, *req.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				result = &ProgressResult{
					XPEarned:        existing.XPEarned,
					TotalXP:         user.XP,
					Level:           user.Level,
					XPForNextLevel:  user.XPForNextLevel(),
					NewAchievements: []model.Achievement{},
					StreakCount:     user.StreakCount,
					Mastery:         existing.MasteryLabel(),
					Duplicate:       true,
				}
				return nil
			}
		}

		UpdateStreak(user, now)

		activityType := model.ActivityType(req.ActivityType)
		score := derivedScore(&req)

		firstCompletion, err := s.StatRepo.HasCompletion(tx, userID, req.Topic, activityType)
		if err != nil {
			return err
		}
		firstCompletion = !firstCompletion

		difficulty := model.Difficulty(req.Difficulty)
		if difficulty == "" {
			difficulty = model.DifficultyBeginner
		}

		var xpEarned int
		if req.XPOverride != nil {
			// 增量保存等场景直接采用调用方给定的值
			xpEarned = *req.XPOverride
		} else {
			xpEarned = s.Calc.Compute(XPInput{
				ActivityType:    activityType,
				Score:           score,
				TimeSpent:       req.TimeSpent,
				ExpectedTime:    req.ExpectedTime,
				Difficulty:      difficulty,
				Streak:          user.StreakCount,
				FirstCompletion: firstCompletion,
			})
		}

		activity := &model.Activity{
			UserID:         userID,
			ActivityType:   activityType,
			Topic:          req.Topic,
			Subtopic:       req.Subtopic,
			LessonID:       req.LessonID,
			Score:          score,
			TotalQuestions: req.TotalQuestions,
			CorrectAnswers: req.CorrectAnswers,
			TimeSpent:      req.TimeSpent,
			ExpectedTime:   req.ExpectedTime,
			XPEarned:       xpEarned,
			Difficulty:     difficulty,
			CompletedAt:    now,
			IdempotencyKey: req.IdempotencyKey,
			Metadata:       req.Metadata,
		}
		if err := s.ActivityRepo.Create(tx, activity); err != nil {
			return err
		}
		if err := s.StatRepo.Apply(tx, activity); err != nil {
			return err
		}

		oldLevel := user.Level
		user.XP += xpEarned
		user.Level = user.CalculateLevel()
		leveledUp := user.Level > oldLevel

		// 基于刚并入的增量聚合构建评估快照
		snapshot, err := s.buildSnapshot(tx, userID)
		if err != nil {
			return err
		}
		earned, err := s.AchievementRepo.EarnedIDs(tx, userID)
		if err != nil {
			return err
		}

		newAchievements := s.Achievements.Evaluate(user, earned, snapshot, now)
		// 逐条应用：后一条成就的奖励以前一条加成后的XP/等级为基础
		for i := range newAchievements {
			if err := s.AchievementRepo.Create(tx, &newAchievements[i]); err != nil {
				return err
			}
			user.XP += newAchievements[i].XPAwarded
			user.Level = user.CalculateLevel()
			monitoring.AchievementsUnlocked.Inc()
			monitoring.XPAwarded.WithLabelValues("achievement").
				Add(float64(newAchievements[i].XPAwarded))
		}
		if user.Level > oldLevel {
			leveledUp = true
		}

		if err := s.UserRepo.UpdateAggregate(tx, user); err != nil {
			return err
		}

		monitoring.ActivitiesRecorded.WithLabelValues(string(activityType)).Inc()
		monitoring.XPAwarded.WithLabelValues("activity").Add(float64(xpEarned))

		result = &ProgressResult{
			XPEarned:        xpEarned,
			TotalXP:         user.XP,
			Level:           user.Level,
			LeveledUp:       leveledUp,
			XPForNextLevel:  user.XPForNextLevel(),
			NewAchievements: newAchievements,
			StreakCount:     user.StreakCount,
			Mastery:         activity.MasteryLabel(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildSnapshot 从增量聚合表构建成就评估快照（满分总数 + 各主题掌握度）
func (s *ProgressService) buildSnapshot(tx *gorm.DB, userID uint) (StatsSnapshot, error) {
	stats, err := s.StatRepo.ListByUser(tx, userID)
	if err != nil {
		return StatsSnapshot{}, err
	}

	perfect := 0
	byTopic := make(map[string][]model.TopicStat)
	for _, st := range stats {
		perfect += st.PerfectCount
		byTopic[st.Topic] = append(byTopic[st.Topic], st)
	}

	mastery := make(map[string]int, len(byTopic))
	for topic, topicStats := range byTopic {
		mastery[topic] = ComputeTopicMastery(topicStats)
	}

	return StatsSnapshot{PerfectScores: perfect, TopicMastery: mastery}, nil
}

// CompleteLessonRequest 完成课程请求
type CompleteLessonRequest struct {
	Score     *float64 `json:"score"`
	TimeSpent *int     `json:"timeSpent"`
}

// CompleteLesson 前置校验后按课程固定的 xpReward 记账（覆盖值路径）
func (s *ProgressService) CompleteLesson(userID, lessonID uint, req CompleteLessonRequest) (*ProgressResult, error) {
	lesson, err := s.Lessons.GetLesson(lessonID)
	if err != nil {
		return nil, err
	}
	if !lesson.IsActive {
		return nil, util.ErrLessonInactive
	}

	accessible, err := s.Lessons.CanAccess(lesson, userID)
	if err != nil {
		return nil, err
	}
	if !accessible {
		return nil, util.ErrPrerequisiteNotMet
	}

	score := req.Score
	if score == nil {
		full := 100.0
		score = &full
	}
	expected := lesson.EstimatedTime * 60

	return s.RecordActivity(userID, RecordActivityRequest{
		ActivityType: string(model.ActivityLesson),
		Topic:        lesson.Topic,
		Subtopic:     lesson.Subtopic,
		LessonID:     &lesson.ID,
		Score:        score,
		TimeSpent:    req.TimeSpent,
		ExpectedTime: &expected,
		Difficulty:   string(lesson.Difficulty),
		XPOverride:   &lesson.XPReward,
		Metadata: map[string]interface{}{
			"lessonTitle": lesson.Title,
		},
	})
}

// AwardBonusXP 管理员直接加XP，以 bonus 事件入日志保持可审计
func (s *ProgressService) AwardBonusXP(userID uint, amount int, reason string) (*ProgressResult, error) {
	if amount <= 0 {
		return nil, util.NewValidationError("amount", "must be positive")
	}

	var result *ProgressResult
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		result, lastErr = s.awardOnce(userID, amount, reason)
		if lastErr == nil {
			return result, nil
		}
		if errors.Is(lastErr, util.ErrConcurrencyConflict) {
			monitoring.ConcurrencyRetries.Inc()
			continue
		}
		return nil, lastErr
	}
	return nil, lastErr
}

func (s *ProgressService) awardOnce(userID uint, amount int, reason string) (*ProgressResult, error) {
	now := time.Now()
	var result *ProgressResult

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		user, err := s.UserRepo.FindByIDTx(tx, userID)
		if err != nil {
			return err
		}

		activity := &model.Activity{
			UserID:       userID,
			ActivityType: model.ActivityBonus,
			Topic:        "bonus",
			XPEarned:     amount,
			Difficulty:   model.DifficultyBeginner,
			CompletedAt:  now,
			Metadata:     map[string]interface{}{"reason": reason},
		}
		if err := s.ActivityRepo.Create(tx, activity); err != nil {
			return err
		}

		oldLevel := user.Level
		user.XP += amount
		user.Level = user.CalculateLevel()

		if err := s.UserRepo.UpdateAggregate(tx, user); err != nil {
			return err
		}

		monitoring.XPAwarded.WithLabelValues("bonus").Add(float64(amount))

		result = &ProgressResult{
			XPEarned:        amount,
			TotalXP:         user.XP,
			Level:           user.Level,
			LeveledUp:       user.Level > oldLevel,
			XPForNextLevel:  user.XPForNextLevel(),
			NewAchievements: []model.Achievement{},
			StreakCount:     user.StreakCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
