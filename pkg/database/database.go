package database

import (
	"fmt"
	"log"
	"mathquest_backend/internal/config"
	"mathquest_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
		// 唯一键冲突需转换为 gorm.ErrDuplicatedKey 供幂等判定
		TranslateError: true,
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	err = db.AutoMigrate(
		&model.User{},
		&model.Achievement{},
		&model.Activity{},
		&model.Lesson{},
		&model.TopicStat{},
		&model.GameSession{},
	)
	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	// 默认课程：首次启动时插入一条浅显的入门课，方便前端联调
	var count int64
	db.Model(&model.Lesson{}).Count(&count)
	if count == 0 {
		seed := []model.Lesson{
			{Title: "Counting Basics", Topic: "arithmetic", Difficulty: model.DifficultyBeginner, XPReward: 10, Order: 1, EstimatedTime: 10, IsActive: true},
			{Title: "Addition", Topic: "arithmetic", Difficulty: model.DifficultyBeginner, XPReward: 10, Order: 2, EstimatedTime: 15, IsActive: true},
			{Title: "Subtraction", Topic: "arithmetic", Difficulty: model.DifficultyBeginner, XPReward: 10, Order: 3, EstimatedTime: 15, IsActive: true},
		}
		for i := range seed {
			db.Create(&seed[i])
		}
		// Addition 和 Subtraction 以 Counting Basics 为前置
		if len(seed) == 3 {
			db.Model(&seed[1]).Association("Prerequisites").Append(&seed[0])
			db.Model(&seed[2]).Association("Prerequisites").Append(&seed[0])
		}
	}

	return db, nil
}
