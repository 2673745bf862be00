package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mathquest_backend/internal/config"
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
	"mathquest_backend/internal/util"
	"mathquest_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 主题掌握度的活动类型权重；未列出的类型按 0.25 计
var masteryWeights = map[model.ActivityType]float64{
	model.ActivityPractice: 0.4,
	model.ActivityLesson:   0.3,
	model.ActivityRevision: 0.2,
	model.ActivityExample:  0.1,
}

// ComputeTopicMastery 主题掌握度 = 各活动类型均分的加权平均，
// 只对出现过的类型归一化权重，四舍五入为整数百分比
func ComputeTopicMastery(stats []model.TopicStat) int {
	var totalWeight, weightedScore float64
	for _, st := range stats {
		if st.Attempts == 0 {
			continue
		}
		weight, ok := masteryWeights[st.ActivityType]
		if !ok {
			weight = 0.25
		}
		totalWeight += weight
		weightedScore += st.AvgScore() * weight
	}
	if totalWeight == 0 {
		return 0
	}
	return int(math.Round(weightedScore / totalWeight))
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank                int     `json:"rank"`
	UserID              uint    `json:"userId"`
	Name                string  `json:"name"`
	Level               int     `json:"level"`
	TotalXP             int64   `json:"totalXp"`
	ActivitiesCompleted int64   `json:"activitiesCompleted"`
	AvgScore            float64 `json:"avgScore"`
}

// LeaderboardService 读侧聚合：主题掌握度与按时间窗的XP排行
type LeaderboardService struct {
	ActivityRepo *repository.ActivityRepository
	StatRepo     *repository.TopicStatRepository
	Redis        *redis.Client
	CacheTTL     time.Duration
}

func NewLeaderboardService(
	activityRepo *repository.ActivityRepository,
	statRepo *repository.TopicStatRepository,
	rdb *redis.Client,
	cfg *config.GameConfig,
) *LeaderboardService {
	return &LeaderboardService{
		ActivityRepo: activityRepo,
		StatRepo:     statRepo,
		Redis:        rdb,
		CacheTTL:     time.Duration(cfg.LeaderboardCacheTTL) * time.Second,
	}
}

// periodStart 周期窗口的起点；all 返回 nil 表示不过滤
func periodStart(period string, now time.Time) *time.Time {
	var start time.Time
	switch period {
	case util.PeriodDaily:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case util.PeriodWeekly:
		start = now.AddDate(0, 0, -7)
	case util.PeriodMonthly:
		start = now.AddDate(0, -1, 0)
	default:
		return nil
	}
	return &start
}

// TopicMastery 用户全部主题的掌握度
func (s *LeaderboardService) TopicMastery(userID uint) (map[string]int, error) {
	stats, err := s.StatRepo.ListByUser(s.StatRepo.DB, userID)
	if err != nil {
		return nil, err
	}

	byTopic := make(map[string][]model.TopicStat)
	for _, st := range stats {
		byTopic[st.Topic] = append(byTopic[st.Topic], st)
	}

	mastery := make(map[string]int, len(byTopic))
	for topic, topicStats := range byTopic {
		mastery[topic] = ComputeTopicMastery(topicStats)
	}
	return mastery, nil
}

// GetLeaderboard 周期排行榜，经Redis短TTL缓存；并列名次以先注册者在前
func (s *LeaderboardService) GetLeaderboard(period string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	cacheKey := fmt.Sprintf("leaderboard:%s:%d", period, limit)
	if s.Redis != nil {
		cached, err := s.Redis.Get(context.Background(), cacheKey).Result()
		if err == nil {
			var entries []LeaderboardEntry
			if jsonErr := json.Unmarshal([]byte(cached), &entries); jsonErr == nil {
				return entries, nil
			}
		}
	}

	rows, err := s.ActivityRepo.Leaderboard(periodStart(period, time.Now()), limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = LeaderboardEntry{
			Rank:                i + 1,
			UserID:              row.UserID,
			Name:                row.Name,
			Level:               row.Level,
			TotalXP:             row.TotalXP,
			ActivitiesCompleted: row.ActivitiesCompleted,
			AvgScore:            row.AvgScore,
		}
	}

	if s.Redis != nil {
		if data, jsonErr := json.Marshal(entries); jsonErr == nil {
			if err := s.Redis.Set(context.Background(), cacheKey, data, s.CacheTTL).Err(); err != nil {
				logger.Log.Warn("leaderboard cache write failed", zap.Error(err))
			}
		}
	}

	return entries, nil
}

// UserRank 用户在某周期排行榜中的名次，榜上无名返回 0
func (s *LeaderboardService) UserRank(period string, userID uint) (int, error) {
	rows, err := s.ActivityRepo.Leaderboard(periodStart(period, time.Now()), 0)
	if err != nil {
		return 0, err
	}
	for i, row := range rows {
		if row.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, nil
}
