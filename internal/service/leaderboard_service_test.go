package service

import (
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
	"mathquest_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func stat(at model.ActivityType, attempts int, scoreSum float64) model.TopicStat {
	return model.TopicStat{ActivityType: at, Attempts: attempts, ScoreSum: scoreSum}
}

func TestComputeTopicMastery(t *testing.T) {
	tests := []struct {
		name  string
		stats []model.TopicStat
		want  int
	}{
		{
			name: "weighted across all four types",
			stats: []model.TopicStat{
				stat(model.ActivityPractice, 1, 90),
				stat(model.ActivityLesson, 1, 80),
				stat(model.ActivityRevision, 1, 70),
				stat(model.ActivityExample, 1, 60),
			},
			// 0.4*90 + 0.3*80 + 0.2*70 + 0.1*60 = 80
			want: 80,
		},
		{
			name: "weights renormalized over present types",
			stats: []model.TopicStat{
				stat(model.ActivityPractice, 1, 90),
				stat(model.ActivityLesson, 1, 80),
			},
			// (0.4*90 + 0.3*80) / 0.7 = 85.71 -> 86
			want: 86,
		},
		{
			name:  "single type equals its average",
			stats: []model.TopicStat{stat(model.ActivityExample, 2, 200)},
			want:  100,
		},
		{
			name:  "unknown type weighted 0.25",
			stats: []model.TopicStat{stat(model.ActivityType("quiz"), 1, 64)},
			want:  64,
		},
		{
			name:  "no attempts yields zero",
			stats: []model.TopicStat{stat(model.ActivityPractice, 0, 0)},
			want:  0,
		},
		{
			name:  "empty",
			stats: nil,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeTopicMastery(tt.stats))
		})
	}
}

func newTestLeaderboard(t *testing.T) (*LeaderboardService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	return NewLeaderboardService(
		repository.NewActivityRepository(db),
		repository.NewTopicStatRepository(db),
		nil, // 无缓存直接读库
		testGameConfig(),
	), db
}

func seedActivity(t *testing.T, db *gorm.DB, userID uint, xp int, completedAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&model.Activity{
		UserID:       userID,
		ActivityType: model.ActivityPractice,
		Topic:        "algebra",
		Score:        floatPtr(80),
		XPEarned:     xp,
		Difficulty:   model.DifficultyBeginner,
		CompletedAt:  completedAt,
	}).Error)
}

func TestGetLeaderboard_OrderAndTiebreak(t *testing.T) {
	s, db := newTestLeaderboard(t)

	older := createTestUser(t, db, "older")
	newer := createTestUser(t, db, "newer")
	top := createTestUser(t, db, "topscorer")
	// 并列分数时先注册者在前
	require.NoError(t, db.Model(older).Update("created_at", time.Now().Add(-48*time.Hour)).Error)
	require.NoError(t, db.Model(newer).Update("created_at", time.Now().Add(-1*time.Hour)).Error)

	now := time.Now()
	seedActivity(t, db, top.ID, 100, now)
	seedActivity(t, db, older.ID, 30, now)
	seedActivity(t, db, older.ID, 20, now)
	seedActivity(t, db, newer.ID, 50, now)

	entries, err := s.GetLeaderboard(util.PeriodAll, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, top.ID, entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, int64(100), entries[0].TotalXP)

	assert.Equal(t, older.ID, entries[1].UserID)
	assert.Equal(t, newer.ID, entries[2].UserID)
	assert.Equal(t, int64(50), entries[1].TotalXP)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestGetLeaderboard_PeriodWindow(t *testing.T) {
	s, db := newTestLeaderboard(t)

	active := createTestUser(t, db, "active")
	dormant := createTestUser(t, db, "dormant")

	seedActivity(t, db, active.ID, 40, time.Now())
	seedActivity(t, db, dormant.ID, 400, time.Now().AddDate(0, -2, 0))

	daily, err := s.GetLeaderboard(util.PeriodDaily, 10)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, active.ID, daily[0].UserID)

	all, err := s.GetLeaderboard(util.PeriodAll, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, dormant.ID, all[0].UserID)
}

func TestGetLeaderboard_LimitApplied(t *testing.T) {
	s, db := newTestLeaderboard(t)

	for i, name := range []string{"u1", "u2", "u3"} {
		u := createTestUser(t, db, name)
		seedActivity(t, db, u.ID, (i+1)*10, time.Now())
	}

	entries, err := s.GetLeaderboard(util.PeriodAll, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUserRank(t *testing.T) {
	s, db := newTestLeaderboard(t)

	first := createTestUser(t, db, "first")
	second := createTestUser(t, db, "second")
	outsider := createTestUser(t, db, "outsider")

	seedActivity(t, db, first.ID, 90, time.Now())
	seedActivity(t, db, second.ID, 40, time.Now())

	rank, err := s.UserRank(util.PeriodAll, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	rank, err = s.UserRank(util.PeriodAll, outsider.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rank)
}
