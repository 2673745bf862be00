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

func newTestLessonService(t *testing.T) (*LessonService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	return NewLessonService(
		repository.NewLessonRepository(db),
		repository.NewActivityRepository(db),
		repository.NewTopicStatRepository(db),
	), db
}

func createLesson(t *testing.T, db *gorm.DB, title, topic string, difficulty model.Difficulty, order int, prereqs ...*model.Lesson) *model.Lesson {
	t.Helper()
	lesson := &model.Lesson{
		Title:         title,
		Topic:         topic,
		Difficulty:    difficulty,
		XPReward:      10,
		Order:         order,
		EstimatedTime: 15,
		IsActive:      true,
	}
	require.NoError(t, db.Create(lesson).Error)
	for _, p := range prereqs {
		require.NoError(t, db.Model(lesson).Association("Prerequisites").Append(p))
	}
	return lesson
}

func completeLessonEvent(t *testing.T, db *gorm.DB, userID uint, lesson *model.Lesson, score float64) {
	t.Helper()
	require.NoError(t, db.Create(&model.Activity{
		UserID:       userID,
		ActivityType: model.ActivityLesson,
		Topic:        lesson.Topic,
		LessonID:     &lesson.ID,
		Score:        &score,
		XPEarned:     10,
		Difficulty:   lesson.Difficulty,
		CompletedAt:  time.Now(),
	}).Error)
}

func TestCanAccess_NoPrerequisites(t *testing.T) {
	s, db := newTestLessonService(t)
	user := createTestUser(t, db, "alice")
	a := createLesson(t, db, "Counting", "arithmetic", model.DifficultyBeginner, 1)

	access, err := s.CheckAccess(a.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, access.Accessible)
}

func TestCanAccess_LockedUntilPrerequisitePassed(t *testing.T) {
	s, db := newTestLessonService(t)
	user := createTestUser(t, db, "bob")
	a := createLesson(t, db, "Counting", "arithmetic", model.DifficultyBeginner, 1)
	b := createLesson(t, db, "Addition", "arithmetic", model.DifficultyBeginner, 2, a)

	access, err := s.CheckAccess(b.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, access.Accessible)

	// 低于通过线的事件不解锁
	completeLessonEvent(t, db, user.ID, a, 60)
	access, err = s.CheckAccess(b.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, access.Accessible)

	completeLessonEvent(t, db, user.ID, a, 85)
	access, err = s.CheckAccess(b.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, access.Accessible)
}

func TestCanAccess_AllPrerequisitesRequired(t *testing.T) {
	s, db := newTestLessonService(t)
	user := createTestUser(t, db, "carol")
	a := createLesson(t, db, "Counting", "arithmetic", model.DifficultyBeginner, 1)
	b := createLesson(t, db, "Addition", "arithmetic", model.DifficultyBeginner, 2)
	c := createLesson(t, db, "Multiplication", "arithmetic", model.DifficultyIntermediate, 3, a, b)

	completeLessonEvent(t, db, user.ID, a, 100)

	access, err := s.CheckAccess(c.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, access.Accessible)

	completeLessonEvent(t, db, user.ID, b, 90)
	access, err = s.CheckAccess(c.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, access.Accessible)
}

func TestLessonPath_PrerequisitesFirst(t *testing.T) {
	s, db := newTestLessonService(t)
	a := createLesson(t, db, "Counting", "arithmetic", model.DifficultyBeginner, 1)
	b := createLesson(t, db, "Addition", "arithmetic", model.DifficultyBeginner, 2, a)
	c := createLesson(t, db, "Multiplication", "arithmetic", model.DifficultyIntermediate, 3, b)

	path, err := s.LessonPath("arithmetic")
	require.NoError(t, err)
	require.Len(t, path, 3)

	position := make(map[uint]int)
	for i, l := range path {
		position[l.ID] = i
	}
	assert.Less(t, position[a.ID], position[b.ID])
	assert.Less(t, position[b.ID], position[c.ID])
}

func TestValidateGraph_DetectsCycle(t *testing.T) {
	s, db := newTestLessonService(t)
	a := createLesson(t, db, "A", "algebra", model.DifficultyBeginner, 1)
	b := createLesson(t, db, "B", "algebra", model.DifficultyBeginner, 2, a)
	require.NoError(t, db.Model(a).Association("Prerequisites").Append(b))

	err := s.ValidateGraph()
	require.Error(t, err)

	var cerr *util.CycleError
	require.ErrorAs(t, err, &cerr)
	assert.NotEmpty(t, cerr.LessonIDs)
	assert.Contains(t, cerr.Error(), "cycle")
}

func TestValidateGraph_DanglingPrerequisiteIgnored(t *testing.T) {
	s, db := newTestLessonService(t)
	a := createLesson(t, db, "A", "algebra", model.DifficultyBeginner, 1)
	b := createLesson(t, db, "B", "algebra", model.DifficultyBeginner, 2, a)
	// 删除前置后 b 留下悬挂引用
	require.NoError(t, db.Delete(a).Error)
	_ = b

	assert.NoError(t, s.ValidateGraph())
}

func TestRecommend_SkipsCompletedAndLocked(t *testing.T) {
	s, db := newTestLessonService(t)
	user := createTestUser(t, db, "dave")
	a := createLesson(t, db, "Counting", "arithmetic", model.DifficultyBeginner, 1)
	b := createLesson(t, db, "Addition", "arithmetic", model.DifficultyBeginner, 2, a)
	c := createLesson(t, db, "Multiplication", "arithmetic", model.DifficultyIntermediate, 3, b)

	completeLessonEvent(t, db, user.ID, a, 100)

	recs, err := s.Recommend(user.ID, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	// a 已完成、c 被 b 锁住，只剩 b
	assert.Equal(t, b.ID, recs[0].ID)
	_ = c
}

func TestRecommend_PrefersDifficultyProgression(t *testing.T) {
	s, db := newTestLessonService(t)
	user := createTestUser(t, db, "erin")
	a := createLesson(t, db, "Basics", "algebra", model.DifficultyBeginner, 1)
	next := createLesson(t, db, "Equations", "algebra", model.DifficultyIntermediate, 2)
	same := createLesson(t, db, "More Basics", "algebra", model.DifficultyBeginner, 3)

	// 通过聚合表体现已有 beginner lesson 记录
	statRepo := repository.NewTopicStatRepository(db)
	require.NoError(t, statRepo.Apply(db, &model.Activity{
		UserID:       user.ID,
		ActivityType: model.ActivityLesson,
		Topic:        "algebra",
		LessonID:     &a.ID,
		Score:        floatPtr(90),
		Difficulty:   model.DifficultyBeginner,
		CompletedAt:  time.Now(),
	}))
	completeLessonEvent(t, db, user.ID, a, 90)

	recs, err := s.Recommend(user.ID, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// beginner→intermediate 进阶优先于同难度延续
	assert.Equal(t, next.ID, recs[0].ID)
	assert.Equal(t, same.ID, recs[1].ID)
}
