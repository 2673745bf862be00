package service

import (
	"fmt"
	"mathquest_backend/internal/config"
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
	"mathquest_backend/pkg/logger"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB 每个测试一个独立的内存库；cache=shared 保证连接池内可见同一份数据
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Log = zap.NewNop()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Achievement{},
		&model.Activity{},
		&model.Lesson{},
		&model.TopicStat{},
		&model.GameSession{},
	))
	return db
}

func testGameConfig() *config.GameConfig {
	return &config.GameConfig{
		XPMultiplier:         1,
		StreakBonusThreshold: 5,
		LeaderboardCacheTTL:  60,
		MinGameXP:            100,
	}
}

// newTestProgress 组装完整的进度编排器及其依赖
func newTestProgress(t *testing.T) (*ProgressService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)

	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	statRepo := repository.NewTopicStatRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)
	lessonRepo := repository.NewLessonRepository(db)

	achievements := NewAchievementService(achievementRepo, userRepo)
	lessons := NewLessonService(lessonRepo, activityRepo, statRepo)
	calc := NewXPCalculator(testGameConfig())

	return NewProgressService(
		db, userRepo, activityRepo, statRepo, achievementRepo,
		achievements, lessons, calc,
	), db
}

func createTestUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "hashed",
		Role:     model.Student,
		Level:    1,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }

// 模型列定义不得依赖 MySQL 方言，sqlite 驱动也要能完整建表
func TestAutoMigratePortableSchema(t *testing.T) {
	db := setupTestDB(t)
	for _, table := range []string{
		"users", "achievements", "activities",
		"lessons", "topic_stats", "game_sessions",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
