package service

import (
	"mathquest_backend/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int, hour int) time.Time {
	return time.Date(2026, time.March, d, hour, 0, 0, 0, time.UTC)
}

func TestUpdateStreak_FirstActivity(t *testing.T) {
	user := &model.User{}
	UpdateStreak(user, day(1, 10))

	assert.Equal(t, 1, user.StreakCount)
	require.NotNil(t, user.LastActivityDate)
	assert.Equal(t, day(1, 10), *user.LastActivityDate)
}

func TestUpdateStreak_ConsecutiveDays(t *testing.T) {
	user := &model.User{}
	UpdateStreak(user, day(1, 10))
	UpdateStreak(user, day(2, 9))
	UpdateStreak(user, day(3, 23))

	assert.Equal(t, 3, user.StreakCount)
}

func TestUpdateStreak_SameDayUnchanged(t *testing.T) {
	user := &model.User{}
	UpdateStreak(user, day(1, 8))
	UpdateStreak(user, day(1, 22))

	assert.Equal(t, 1, user.StreakCount)
	// 同一天不推进日期，次日活动仍按隔一天计
	assert.Equal(t, day(1, 8), *user.LastActivityDate)
}

func TestUpdateStreak_GapResets(t *testing.T) {
	user := &model.User{}
	UpdateStreak(user, day(1, 10))
	UpdateStreak(user, day(2, 10))
	assert.Equal(t, 2, user.StreakCount)

	UpdateStreak(user, day(5, 10))
	assert.Equal(t, 1, user.StreakCount)
	assert.Equal(t, day(5, 10), *user.LastActivityDate)
}

func TestUpdateStreak_CalendarDayNotDuration(t *testing.T) {
	// 23:50 到次日 00:10 相隔20分钟，但跨自然日仍算连续
	user := &model.User{}
	UpdateStreak(user, time.Date(2026, time.March, 1, 23, 50, 0, 0, time.UTC))
	UpdateStreak(user, time.Date(2026, time.March, 2, 0, 10, 0, 0, time.UTC))

	assert.Equal(t, 2, user.StreakCount)
}
