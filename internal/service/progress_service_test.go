package service

import (
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
	"mathquest_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordActivity_BasicFlow(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "alice")

	result, err := s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType: "practice",
		Topic:        "algebra",
		Score:        floatPtr(85),
	})
	require.NoError(t, err)

	// 5 * 1.1(分数档) * 1.5(首次完成) = 8.25 -> 8
	assert.Equal(t, 8, result.XPEarned)
	assert.Equal(t, 8, result.TotalXP)
	assert.Equal(t, 1, result.StreakCount)
	assert.Equal(t, 1, result.Level)
	assert.False(t, result.LeveledUp)
	assert.Empty(t, result.NewAchievements)
	assert.Equal(t, "proficient", result.Mastery)

	var stored model.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, 8, stored.XP)
	assert.Equal(t, 1, stored.StreakCount)
	assert.Equal(t, uint(1), stored.Version)
}

func TestRecordActivity_FirstCompletionOnlyOnce(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "bob")

	_, err := s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType: "practice",
		Topic:        "algebra",
		Score:        floatPtr(85),
	})
	require.NoError(t, err)

	second, err := s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType: "practice",
		Topic:        "algebra",
		Score:        floatPtr(75),
	})
	require.NoError(t, err)

	// 首次完成奖励不再生效：基础5，75分无分数档
	assert.Equal(t, 5, second.XPEarned)
	assert.Equal(t, 13, second.TotalXP)
}

func TestRecordActivity_ScoreDerivedFromAnswers(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "carol")

	result, err := s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType:   "practice",
		Topic:          "fractions",
		TotalQuestions: intPtr(10),
		CorrectAnswers: intPtr(9),
	})
	require.NoError(t, err)

	// 9/10 -> 90分档1.2；5 * 1.2 * 1.5 = 9
	assert.Equal(t, 9, result.XPEarned)
}

func TestRecordActivity_IdempotentRedelivery(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "dave")

	req := RecordActivityRequest{
		ActivityType:   "practice",
		Topic:          "algebra",
		Score:          floatPtr(85),
		IdempotencyKey: strPtr("evt-001"),
	}

	first, err := s.RecordActivity(user.ID, req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := s.RecordActivity(user.ID, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.XPEarned, second.XPEarned)
	assert.Equal(t, first.TotalXP, second.TotalXP)
	assert.Empty(t, second.NewAchievements)

	var count int64
	require.NoError(t, db.Model(&model.Activity{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var stored model.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, first.TotalXP, stored.XP)
}

func TestRecordActivity_AchievementChainAppliedSequentially(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "erin")

	result, err := s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType: "practice",
		Topic:        "misc",
		XPOverride:   intPtr(5000),
	})
	require.NoError(t, err)

	assert.Equal(t, 5000, result.XPEarned)
	assert.True(t, result.LeveledUp)
	require.Len(t, result.NewAchievements, 5)
	assert.Equal(t, "xp_100", result.NewAchievements[0].AchievementID)
	assert.Equal(t, "xp_5000", result.NewAchievements[3].AchievementID)
	assert.Equal(t, "level_5", result.NewAchievements[4].AchievementID)

	// 5000 + 10 + 25 + 50 + 100 + 50
	assert.Equal(t, 5235, result.TotalXP)
	assert.Equal(t, 8, result.Level)

	var stored model.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, 5235, stored.XP)
	assert.Equal(t, stored.CalculateLevel(), stored.Level)

	var achievementCount int64
	require.NoError(t, db.Model(&model.Achievement{}).Where("user_id = ?", user.ID).Count(&achievementCount).Error)
	assert.Equal(t, int64(5), achievementCount)
}

func TestRecordActivity_AchievementsNotReAwarded(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "frank")

	_, err := s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType: "practice",
		Topic:        "misc",
		XPOverride:   intPtr(150),
	})
	require.NoError(t, err)

	second, err := s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType: "practice",
		Topic:        "misc",
		XPOverride:   intPtr(10),
	})
	require.NoError(t, err)
	assert.Empty(t, second.NewAchievements)

	var count int64
	require.NoError(t, db.Model(&model.Achievement{}).
		Where("user_id = ? AND achievement_id = ?", user.ID, "xp_100").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordActivity_TopicMasteryAchievement(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "grace")

	result, err := s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType: "practice",
		Topic:        "fractions",
		Score:        floatPtr(100),
	})
	require.NoError(t, err)

	// 5 * 1.5(满分) * 1.5(首次) = 11.25 -> 11
	assert.Equal(t, 11, result.XPEarned)
	require.Len(t, result.NewAchievements, 1)
	assert.Equal(t, "master_fractions", result.NewAchievements[0].AchievementID)
	assert.Equal(t, 75, result.NewAchievements[0].XPAwarded)
	assert.Equal(t, 86, result.TotalXP)
}

func TestRecordActivity_Validation(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "henry")

	_, err := s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType: "practice",
		Topic:        "algebra",
		Score:        floatPtr(150),
	})
	var verr *util.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "score", verr.Field)

	_, err = s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType:   "practice",
		Topic:          "algebra",
		TotalQuestions: intPtr(5),
		CorrectAnswers: intPtr(8),
	})
	require.ErrorAs(t, err, &verr)
}

func TestRecordActivity_UserNotFound(t *testing.T) {
	s, _ := newTestProgress(t)
	_, err := s.RecordActivity(9999, RecordActivityRequest{
		ActivityType: "practice",
		Topic:        "algebra",
	})
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestCompleteLesson_PrerequisiteEnforced(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "iris")
	a := createLesson(t, db, "Counting", "arithmetic", model.DifficultyBeginner, 1)
	b := createLesson(t, db, "Addition", "arithmetic", model.DifficultyBeginner, 2, a)

	_, err := s.CompleteLesson(user.ID, b.ID, CompleteLessonRequest{})
	assert.ErrorIs(t, err, util.ErrPrerequisiteNotMet)

	first, err := s.CompleteLesson(user.ID, a.ID, CompleteLessonRequest{})
	require.NoError(t, err)
	// 课程完成按课程固定XP记账
	assert.Equal(t, a.XPReward, first.XPEarned)

	second, err := s.CompleteLesson(user.ID, b.ID, CompleteLessonRequest{Score: floatPtr(80)})
	require.NoError(t, err)
	assert.Equal(t, b.XPReward, second.XPEarned)
}

func TestCompleteLesson_NotFound(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "judy")

	_, err := s.CompleteLesson(user.ID, 424242, CompleteLessonRequest{})
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestAwardBonusXP(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "kate")

	result, err := s.AwardBonusXP(user.ID, 150, "contest prize")
	require.NoError(t, err)

	assert.Equal(t, 150, result.XPEarned)
	assert.Equal(t, 150, result.TotalXP)
	assert.Equal(t, 2, result.Level)
	assert.True(t, result.LeveledUp)
	// 管理员加分不触发成就评估
	assert.Empty(t, result.NewAchievements)

	var activity model.Activity
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&activity).Error)
	assert.Equal(t, model.ActivityBonus, activity.ActivityType)
	assert.Equal(t, 150, activity.XPEarned)

	_, err = s.AwardBonusXP(user.ID, 0, "nothing")
	var verr *util.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateAggregate_StaleVersionConflicts(t *testing.T) {
	_, db := newTestProgress(t)
	user := createTestUser(t, db, "leo")
	userRepo := repository.NewUserRepository(db)

	fresh, err := userRepo.FindByID(user.ID)
	require.NoError(t, err)

	stale := *fresh
	fresh.XP = 100
	require.NoError(t, userRepo.UpdateAggregate(db, fresh))

	stale.XP = 42
	err = userRepo.UpdateAggregate(db, &stale)
	assert.ErrorIs(t, err, util.ErrConcurrencyConflict)
}

func TestGetUserStats(t *testing.T) {
	s, db := newTestProgress(t)
	user := createTestUser(t, db, "mona")

	_, err := s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType: "practice",
		Topic:        "algebra",
		Score:        floatPtr(80),
	})
	require.NoError(t, err)
	_, err = s.RecordActivity(user.ID, RecordActivityRequest{
		ActivityType: "lesson",
		Topic:        "algebra",
		Score:        floatPtr(70),
	})
	require.NoError(t, err)

	stats, err := s.GetUserStats(user.ID)
	require.NoError(t, err)

	assert.Equal(t, user.ID, stats.UserID)
	assert.Positive(t, stats.XP)
	assert.Len(t, stats.ByType, 2)
	// (0.4*80 + 0.3*70) / 0.7 = 75.71 -> 76
	assert.Equal(t, 76, stats.TopicMastery["algebra"])
}

func TestRecordActivity_IdempotencyKeyScopedPerUser(t *testing.T) {
	s, db := newTestProgress(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	req := RecordActivityRequest{
		ActivityType:   "practice",
		Topic:          "algebra",
		Score:          floatPtr(85),
		IdempotencyKey: strPtr("shared-key-1"),
	}

	first, err := s.RecordActivity(alice.ID, req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	// 另一个用户沿用同一个键必须照常入账，而不是被去重拦截
	second, err := s.RecordActivity(bob.ID, req)
	require.NoError(t, err)
	assert.False(t, second.Duplicate)
	assert.Equal(t, first.XPEarned, second.XPEarned)

	// 同一用户重放同一个键仍然去重
	replay, err := s.RecordActivity(alice.ID, req)
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)

	var count int64
	require.NoError(t, db.Model(&model.Activity{}).
		Where("idempotency_key = ?", "shared-key-1").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
