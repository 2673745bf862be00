package service

import (
	"mathquest_backend/internal/config"
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
	"mathquest_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestGame(t *testing.T) (*GameService, *gorm.DB) {
	t.Helper()
	progress, db := newTestProgress(t)
	cfg := &config.Config{Game: *testGameConfig()}
	return NewGameService(
		repository.NewUserRepository(db),
		repository.NewGameSessionRepository(db),
		progress,
		cfg,
	), db
}

func TestCheckAccess(t *testing.T) {
	s, db := newTestGame(t)

	locked := createTestUser(t, db, "locked")
	require.NoError(t, db.Model(locked).Update("xp", 40).Error)

	access, err := s.CheckAccess(locked.ID)
	require.NoError(t, err)
	assert.False(t, access.Accessible)
	assert.Equal(t, 40, access.CurrentXP)
	assert.Equal(t, 100, access.RequiredXP)
	assert.Equal(t, 0, access.AvailableCoins)

	unlocked := createTestUser(t, db, "unlocked")
	require.NoError(t, db.Model(unlocked).Update("xp", 130).Error)

	access, err = s.CheckAccess(unlocked.ID)
	require.NoError(t, err)
	assert.True(t, access.Accessible)
	// 可用币 = XP - 门槛
	assert.Equal(t, 30, access.AvailableCoins)
}

func TestStartSession_BelowThreshold(t *testing.T) {
	s, db := newTestGame(t)
	user := createTestUser(t, db, "novice")

	_, err := s.StartSession(user.ID, "number_rush")
	assert.ErrorIs(t, err, util.ErrInsufficientXP)
}

func TestStartSession_SnapshotsXP(t *testing.T) {
	s, db := newTestGame(t)
	user := createTestUser(t, db, "player")
	require.NoError(t, db.Model(user).Update("xp", 250).Error)

	session, err := s.StartSession(user.ID, "number_rush")
	require.NoError(t, err)
	assert.Equal(t, "number_rush", session.GameType)
	assert.Equal(t, 250, session.LastXPSnapshot)
	assert.False(t, session.LastPlayedAt.IsZero())

	// 再次开启复用同一会话
	again, err := s.StartSession(user.ID, "number_rush")
	require.NoError(t, err)
	assert.Equal(t, session.ID, again.ID)
}

func TestRecordResult_FlowsIntoProgress(t *testing.T) {
	s, db := newTestGame(t)
	user := createTestUser(t, db, "gamer")
	require.NoError(t, db.Model(user).Update("xp", 200).Error)

	result, err := s.RecordResult(user.ID, GameResultRequest{
		GameType:  "number_rush",
		Score:     floatPtr(80),
		CoinsUsed: 15,
	})
	require.NoError(t, err)
	assert.Positive(t, result.XPEarned)
	// 200 XP 起步，首个事件还会解锁 xp_100 成就并入账其奖励
	require.Len(t, result.NewAchievements, 1)
	assert.Equal(t, "xp_100", result.NewAchievements[0].AchievementID)
	assert.Equal(t, 200+result.XPEarned+result.NewAchievements[0].XPAwarded, result.TotalXP)

	var activity model.Activity
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&activity).Error)
	assert.Equal(t, model.ActivityPractice, activity.ActivityType)
	assert.Equal(t, "game", activity.Topic)
	assert.Equal(t, "number_rush", activity.Subtopic)

	var session model.GameSession
	require.NoError(t, db.Where("user_id = ? AND game_type = ?", user.ID, "number_rush").First(&session).Error)
	assert.Equal(t, 15, session.TotalCoinsUsed)
}

func TestRecordResult_DuplicateSkipsCoinAccrual(t *testing.T) {
	s, db := newTestGame(t)
	user := createTestUser(t, db, "replayer")
	require.NoError(t, db.Model(user).Update("xp", 200).Error)

	req := GameResultRequest{
		GameType:       "fraction_frenzy",
		Score:          floatPtr(90),
		CoinsUsed:      10,
		IdempotencyKey: strPtr("game-round-1"),
	}

	first, err := s.RecordResult(user.ID, req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := s.RecordResult(user.ID, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.XPEarned, second.XPEarned)

	var session model.GameSession
	require.NoError(t, db.Where("user_id = ? AND game_type = ?", user.ID, "fraction_frenzy").First(&session).Error)
	assert.Equal(t, 10, session.TotalCoinsUsed)
}

func TestRecordResult_NegativeCoins(t *testing.T) {
	s, db := newTestGame(t)
	user := createTestUser(t, db, "cheater")
	require.NoError(t, db.Model(user).Update("xp", 200).Error)

	_, err := s.RecordResult(user.ID, GameResultRequest{GameType: "number_rush", CoinsUsed: -1})
	var vErr *util.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
