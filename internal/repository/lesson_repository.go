package repository

import (
	"errors"
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/util"

	"gorm.io/gorm"
)

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) FindByID(lessonID uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.Preload("Prerequisites").First(&lesson, lessonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// LessonFilter 课程列表查询条件
type LessonFilter struct {
	Topic      string
	Difficulty model.Difficulty
	ActiveOnly bool
}

func (r *LessonRepository) FindAll(f LessonFilter) ([]model.Lesson, error) {
	q := r.DB.Preload("Prerequisites")
	if f.Topic != "" {
		q = q.Where("topic = ?", f.Topic)
	}
	if f.Difficulty != "" {
		q = q.Where("difficulty = ?", f.Difficulty)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var lessons []model.Lesson
	err := q.Order("topic, lesson_order").Find(&lessons).Error
	return lessons, err
}

func (r *LessonRepository) FindByTopic(topic string) ([]model.Lesson, error) {
	return r.FindAll(LessonFilter{Topic: topic, ActiveOnly: true})
}

func (r *LessonRepository) Topics() ([]string, error) {
	var topics []string
	err := r.DB.Model(&model.Lesson{}).Where("is_active = ?", true).
		Distinct().Order("topic").Pluck("topic", &topics).Error
	return topics, err
}

func (r *LessonRepository) Create(lesson *model.Lesson) error {
	return r.DB.Create(lesson).Error
}

func (r *LessonRepository) Update(lesson *model.Lesson) error {
	return r.DB.Save(lesson).Error
}
