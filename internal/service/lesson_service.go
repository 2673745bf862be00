package service

import (
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
	"mathquest_backend/internal/util"
	"sort"
)

// LessonService 课程前置关系DAG上的操作：可达性检查、拓扑课程路径、推荐排序
type LessonService struct {
	LessonRepo   *repository.LessonRepository
	ActivityRepo *repository.ActivityRepository
	StatRepo     *repository.TopicStatRepository
}

func NewLessonService(
	lessonRepo *repository.LessonRepository,
	activityRepo *repository.ActivityRepository,
	statRepo *repository.TopicStatRepository,
) *LessonService {
	return &LessonService{
		LessonRepo:   lessonRepo,
		ActivityRepo: activityRepo,
		StatRepo:     statRepo,
	}
}

// LessonAccessibility 课程可达性结果
type LessonAccessibility struct {
	LessonID   uint `json:"lessonId"`
	Accessible bool `json:"accessible"`
}

// CanAccess 当且仅当每个直接前置课程都有该用户得分>=70的lesson事件时可访问；
// 无前置的课程恒可访问
func (s *LessonService) CanAccess(lesson *model.Lesson, userID uint) (bool, error) {
	if len(lesson.Prerequisites) == 0 {
		return true, nil
	}

	completed, err := s.ActivityRepo.CompletedLessonIDs(userID)
	if err != nil {
		return false, err
	}

	for _, prereq := range lesson.Prerequisites {
		if !completed[prereq.ID] {
			return false, nil
		}
	}
	return true, nil
}

func (s *LessonService) CheckAccess(lessonID, userID uint) (*LessonAccessibility, error) {
	lesson, err := s.LessonRepo.FindByID(lessonID)
	if err != nil {
		return nil, err
	}
	ok, err := s.CanAccess(lesson, userID)
	if err != nil {
		return nil, err
	}
	return &LessonAccessibility{LessonID: lessonID, Accessible: ok}, nil
}

// dfs 深度优先访问的着色状态
type dfsState int

const (
	unvisited dfsState = iota
	onStack
	done
)

// orderPath 前置优先地输出课程；图中缺失的前置ID按悬挂引用跳过，
// 课程经前置边可回到自身时返回 CycleError
func orderPath(lessons []model.Lesson) ([]model.Lesson, error) {
	byID := make(map[uint]*model.Lesson, len(lessons))
	for i := range lessons {
		byID[lessons[i].ID] = &lessons[i]
	}

	state := make(map[uint]dfsState, len(lessons))
	path := make([]model.Lesson, 0, len(lessons))
	var stack []uint

	var visit func(id uint) error
	visit = func(id uint) error {
		lesson, ok := byID[id]
		if !ok {
			// 悬挂引用不是环
			return nil
		}
		switch state[id] {
		case done:
			return nil
		case onStack:
			return cycleError(stack, id, byID)
		}

		state[id] = onStack
		stack = append(stack, id)
		for _, prereq := range lesson.Prerequisites {
			if err := visit(prereq.ID); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		path = append(path, *lesson)
		return nil
	}

	for i := range lessons {
		if err := visit(lessons[i].ID); err != nil {
			return nil, err
		}
	}
	return path, nil
}

// cycleError 从DFS栈中截取环上的课程
func cycleError(stack []uint, start uint, byID map[uint]*model.Lesson) *util.CycleError {
	cerr := &util.CycleError{}
	collecting := false
	for _, id := range stack {
		if id == start {
			collecting = true
		}
		if collecting {
			cerr.LessonIDs = append(cerr.LessonIDs, id)
			if l, ok := byID[id]; ok {
				cerr.Titles = append(cerr.Titles, l.Title)
			}
		}
	}
	cerr.LessonIDs = append(cerr.LessonIDs, start)
	if l, ok := byID[start]; ok {
		cerr.Titles = append(cerr.Titles, l.Title)
	}
	return cerr
}

// LessonPath 某主题下全部课程的前置优先顺序（课程不会出现在其任何前置之前）
func (s *LessonService) LessonPath(topic string) ([]model.Lesson, error) {
	lessons, err := s.LessonRepo.FindByTopic(topic)
	if err != nil {
		return nil, err
	}
	return orderPath(lessons)
}

// ValidateGraph 全图环检测，内容配置有环属于致命错误，启动时即报出
func (s *LessonService) ValidateGraph() error {
	lessons, err := s.LessonRepo.FindAll(repository.LessonFilter{})
	if err != nil {
		return err
	}
	_, err = orderPath(lessons)
	return err
}

func (s *LessonService) GetLesson(lessonID uint) (*model.Lesson, error) {
	return s.LessonRepo.FindByID(lessonID)
}

func (s *LessonService) GetLessons(f repository.LessonFilter) ([]model.Lesson, error) {
	return s.LessonRepo.FindAll(f)
}

func (s *LessonService) GetTopics() ([]string, error) {
	return s.LessonRepo.Topics()
}

// CreateLesson 新建课程并立即校验全图仍无环
func (s *LessonService) CreateLesson(lesson *model.Lesson) error {
	if err := s.LessonRepo.Create(lesson); err != nil {
		return err
	}
	return s.ValidateGraph()
}

func (s *LessonService) UpdateLesson(lesson *model.Lesson) error {
	return s.LessonRepo.Update(lesson)
}

// scoredLesson 推荐打分的中间结构
type scoredLesson struct {
	lesson    model.Lesson
	relevance int
}

// Recommend 在可访问且未完成的课程中按相关度排序取前N个：
// 主题均分>=80记+2、>=60记+1；难度恰好进阶一档 beginner→intermediate +3、
// intermediate→advanced +2、同难度延续 +1。相关度相同保持课程 Order 序。
func (s *LessonService) Recommend(userID uint, limit int) ([]model.Lesson, error) {
	if limit <= 0 {
		limit = 5
	}

	lessons, err := s.LessonRepo.FindAll(repository.LessonFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	completed, err := s.ActivityRepo.CompletedLessonIDs(userID)
	if err != nil {
		return nil, err
	}

	// 主题层面的均分与最近难度各取一次，循环内不再查库
	topicAvg := make(map[string]float64)
	lastDifficulty := make(map[string]model.Difficulty)
	seenTopic := make(map[string]bool)

	var candidates []scoredLesson
	for _, lesson := range lessons {
		if completed[lesson.ID] {
			continue
		}
		if !accessibleWith(completed, &lesson) {
			continue
		}

		if !seenTopic[lesson.Topic] {
			seenTopic[lesson.Topic] = true
			stats, err := s.StatRepo.ListByUserTopic(userID, lesson.Topic)
			if err != nil {
				return nil, err
			}
			var attempts int
			var sum float64
			for _, st := range stats {
				if st.ActivityType == model.ActivityLesson {
					attempts += st.Attempts
					sum += st.ScoreSum
				}
			}
			if attempts > 0 {
				topicAvg[lesson.Topic] = sum / float64(attempts)
			}
			d, err := s.StatRepo.LastLessonDifficulty(userID, lesson.Topic)
			if err != nil {
				return nil, err
			}
			lastDifficulty[lesson.Topic] = d
		}

		relevance := 0
		if avg, ok := topicAvg[lesson.Topic]; ok {
			if avg >= 80 {
				relevance += 2
			} else if avg >= 60 {
				relevance += 1
			}
		}
		switch last := lastDifficulty[lesson.Topic]; {
		case last == model.DifficultyBeginner && lesson.Difficulty == model.DifficultyIntermediate:
			relevance += 3
		case last == model.DifficultyIntermediate && lesson.Difficulty == model.DifficultyAdvanced:
			relevance += 2
		case last != "" && last == lesson.Difficulty:
			relevance += 1
		}

		candidates = append(candidates, scoredLesson{lesson: lesson, relevance: relevance})
	}

	// 稳定排序：相关度相同维持 FindAll 返回的 Order 序
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].relevance > candidates[j].relevance
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	result := make([]model.Lesson, len(candidates))
	for i, c := range candidates {
		result[i] = c.lesson
	}
	return result, nil
}

// accessibleWith 用已取好的完成集合做可达性判断，避免推荐循环中重复查询
func accessibleWith(completed map[uint]bool, lesson *model.Lesson) bool {
	for _, prereq := range lesson.Prerequisites {
		if !completed[prereq.ID] {
			return false
		}
	}
	return true
}
