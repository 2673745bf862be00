package service

import (
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
)

// UserStats 概览统计响应
type UserStats struct {
	UserID          uint                  `json:"userId"`
	Name            string                `json:"name"`
	XP              int                   `json:"xp"`
	Level           int                   `json:"level"`
	XPForNextLevel  int                   `json:"xpForNextLevel"`
	StreakCount     int                   `json:"streakCount"`
	AchievementsWon int                   `json:"achievementsWon"`
	ByType          []repository.TypeStat `json:"byType"`
	TopicMastery    map[string]int        `json:"topicMastery"`
}

func (s *ProgressService) GetUserStats(userID uint) (*UserStats, error) {
	user, err := s.UserRepo.FindByIDTx(s.DB, userID)
	if err != nil {
		return nil, err
	}

	byType, err := s.ActivityRepo.StatsByType(userID, nil, nil)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.buildSnapshot(s.DB, userID)
	if err != nil {
		return nil, err
	}

	return &UserStats{
		UserID:          user.ID,
		Name:            user.Name,
		XP:              user.XP,
		Level:           user.Level,
		XPForNextLevel:  user.XPForNextLevel(),
		StreakCount:     user.StreakCount,
		AchievementsWon: len(user.Achievements),
		ByType:          byType,
		TopicMastery:    snapshot.TopicMastery,
	}, nil
}

// TopicProgress 单主题的分活动类型进度
type TopicProgress struct {
	Topic    string            `json:"topic"`
	Mastery  int               `json:"mastery"`
	ByType   []model.TopicStat `json:"byType"`
	Attempts int               `json:"attempts"`
}

// DetailedProgress 详情响应：近期事件 + 各主题进度 + 成就
type DetailedProgress struct {
	Stats            *UserStats          `json:"stats"`
	Topics           []TopicProgress     `json:"topics"`
	RecentActivities []model.Activity    `json:"recentActivities"`
	Achievements     []model.Achievement `json:"achievements"`
}

func (s *ProgressService) GetDetailedProgress(userID uint) (*DetailedProgress, error) {
	stats, err := s.GetUserStats(userID)
	if err != nil {
		return nil, err
	}

	topicStats, err := s.StatRepo.ListByUser(s.DB, userID)
	if err != nil {
		return nil, err
	}
	byTopic := make(map[string][]model.TopicStat)
	var order []string
	for _, st := range topicStats {
		if _, seen := byTopic[st.Topic]; !seen {
			order = append(order, st.Topic)
		}
		byTopic[st.Topic] = append(byTopic[st.Topic], st)
	}

	topics := make([]TopicProgress, 0, len(order))
	for _, topic := range order {
		group := byTopic[topic]
		attempts := 0
		for _, st := range group {
			attempts += st.Attempts
		}
		topics = append(topics, TopicProgress{
			Topic:    topic,
			Mastery:  ComputeTopicMastery(group),
			ByType:   group,
			Attempts: attempts,
		})
	}

	recent, err := s.ActivityRepo.RecentByUser(userID, 20)
	if err != nil {
		return nil, err
	}

	achievements, err := s.AchievementRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}

	return &DetailedProgress{
		Stats:            stats,
		Topics:           topics,
		RecentActivities: recent,
		Achievements:     achievements,
	}, nil
}

// ActivityHistory 分页事件历史
type ActivityHistory struct {
	Activities []model.Activity `json:"activities"`
	Total      int64            `json:"total"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

func (s *ProgressService) GetActivityHistory(userID uint, f repository.ActivityFilter) (*ActivityHistory, error) {
	activities, total, err := s.ActivityRepo.FindByUser(userID, f)
	if err != nil {
		return nil, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	return &ActivityHistory{
		Activities: activities,
		Total:      total,
		Limit:      limit,
		Offset:     f.Offset,
	}, nil
}

// TopicBreakdown 单主题详情（按活动类型拆分 + 掌握度）
func (s *ProgressService) GetTopicProgress(userID uint, topic string) (*TopicProgress, error) {
	stats, err := s.StatRepo.ListByUserTopic(userID, topic)
	if err != nil {
		return nil, err
	}
	attempts := 0
	for _, st := range stats {
		attempts += st.Attempts
	}
	return &TopicProgress{
		Topic:    topic,
		Mastery:  ComputeTopicMastery(stats),
		ByType:   stats,
		Attempts: attempts,
	}, nil
}
