package service

import (
	"fmt"
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
	"sort"
	"strings"
	"time"
)

// RuleKind 成就规则的判定维度
type RuleKind string

const (
	RuleXPThreshold     RuleKind = "xp_threshold"
	RuleStreakThreshold RuleKind = "streak_threshold"
	RuleLevelThreshold  RuleKind = "level_threshold"
)

// AchievementDefinition 声明式成就规则：规则是数据而非闭包，可序列化、可单测
type AchievementDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Kind        RuleKind `json:"kind"`
	Threshold   int      `json:"threshold"`
	XPReward    int      `json:"xpReward"`
}

// DefaultAchievements 静态成就目录
var DefaultAchievements = []AchievementDefinition{
	{ID: "streak_3", Name: "Consistent Learner", Description: "Complete activities 3 days in a row", Kind: RuleStreakThreshold, Threshold: 3, XPReward: 25},
	{ID: "streak_7", Name: "Week Warrior", Description: "Complete activities 7 days in a row", Kind: RuleStreakThreshold, Threshold: 7, XPReward: 50},
	{ID: "streak_30", Name: "Monthly Master", Description: "Complete activities 30 days in a row", Kind: RuleStreakThreshold, Threshold: 30, XPReward: 200},

	{ID: "xp_100", Name: "Beginner", Description: "Earn 100 XP", Kind: RuleXPThreshold, Threshold: 100, XPReward: 10},
	{ID: "xp_500", Name: "Intermediate", Description: "Earn 500 XP", Kind: RuleXPThreshold, Threshold: 500, XPReward: 25},
	{ID: "xp_1000", Name: "Advanced", Description: "Earn 1000 XP", Kind: RuleXPThreshold, Threshold: 1000, XPReward: 50},
	{ID: "xp_5000", Name: "Expert", Description: "Earn 5000 XP", Kind: RuleXPThreshold, Threshold: 5000, XPReward: 100},

	{ID: "level_5", Name: "Rising Star", Description: "Reach level 5", Kind: RuleLevelThreshold, Threshold: 5, XPReward: 50},
	{ID: "level_10", Name: "Math Enthusiast", Description: "Reach level 10", Kind: RuleLevelThreshold, Threshold: 10, XPReward: 100},
	{ID: "level_20", Name: "Math Master", Description: "Reach level 20", Kind: RuleLevelThreshold, Threshold: 20, XPReward: 200},
}

// perfectMilestones 满分次数里程碑，奖励XP等于里程碑数
var perfectMilestones = []int{10, 25, 50, 100}

const topicMasteryThreshold = 90

// StatsSnapshot 成就评估所需的派生统计快照
type StatsSnapshot struct {
	PerfectScores int
	TopicMastery  map[string]int
}

type AchievementService struct {
	AchievementRepo *repository.AchievementRepository
	UserRepo        *repository.UserRepository
	Definitions     []AchievementDefinition
}

func NewAchievementService(
	achievementRepo *repository.AchievementRepository,
	userRepo *repository.UserRepository,
) *AchievementService {
	return &AchievementService{
		AchievementRepo: achievementRepo,
		UserRepo:        userRepo,
		Definitions:     DefaultAchievements,
	}
}

func (d AchievementDefinition) met(user *model.User) bool {
	switch d.Kind {
	case RuleXPThreshold:
		return user.XP >= d.Threshold
	case RuleStreakThreshold:
		return user.StreakCount >= d.Threshold
	case RuleLevelThreshold:
		return user.Level >= d.Threshold
	default:
		return false
	}
}

// Evaluate 纯函数：对照已获得集合评估全部规则，只返回新产生的成就记录。
// 记录的落库与XP加成由调用方按顺序逐条完成。
// 静态目录之外还有两族动态规则：主题掌握度>=90 与满分次数里程碑。
func (s *AchievementService) Evaluate(user *model.User, earned map[string]bool, snap StatsSnapshot, now time.Time) []model.Achievement {
	var newRecords []model.Achievement

	for _, def := range s.Definitions {
		if earned[def.ID] {
			continue
		}
		if def.met(user) {
			newRecords = append(newRecords, model.Achievement{
				UserID:        user.ID,
				AchievementID: def.ID,
				Name:          def.Name,
				Description:   def.Description,
				XPAwarded:     def.XPReward,
				EarnedAt:      now,
			})
		}
	}

	// 主题掌握成就，按主题名排序保证评估顺序稳定
	topics := make([]string, 0, len(snap.TopicMastery))
	for topic := range snap.TopicMastery {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		id := "master_" + topic
		if earned[id] || snap.TopicMastery[topic] < topicMasteryThreshold {
			continue
		}
		newRecords = append(newRecords, model.Achievement{
			UserID:        user.ID,
			AchievementID: id,
			Name:          titleCase(topic) + " Master",
			Description:   fmt.Sprintf("Achieve 90%% mastery in %s", topic),
			XPAwarded:     75,
			EarnedAt:      now,
		})
	}

	for _, milestone := range perfectMilestones {
		id := fmt.Sprintf("perfect_%d", milestone)
		if earned[id] || snap.PerfectScores < milestone {
			continue
		}
		newRecords = append(newRecords, model.Achievement{
			UserID:        user.ID,
			AchievementID: id,
			Name:          fmt.Sprintf("Perfect %d", milestone),
			Description:   fmt.Sprintf("Get %d perfect scores", milestone),
			XPAwarded:     milestone,
			EarnedAt:      now,
		})
	}

	return newRecords
}

// AvailableAchievements 尚未获得的静态成就，供前端展示进度
func (s *AchievementService) AvailableAchievements(earned map[string]bool) []AchievementDefinition {
	available := make([]AchievementDefinition, 0, len(s.Definitions))
	for _, def := range s.Definitions {
		if !earned[def.ID] {
			available = append(available, def)
		}
	}
	return available
}

// UserAchievements 成就总览响应
type UserAchievements struct {
	TotalXP      int                     `json:"totalXp"`
	CurrentLevel int                     `json:"currentLevel"`
	NextLevelXP  int                     `json:"nextLevelXp"`
	StreakCount  int                     `json:"streakCount"`
	Badges       []model.Achievement     `json:"badges"`
	Available    []AchievementDefinition `json:"available"`
}

func (s *AchievementService) GetUserAchievements(userID uint) (*UserAchievements, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	badges, err := s.AchievementRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}

	earned := make(map[string]bool, len(badges))
	for _, b := range badges {
		earned[b.AchievementID] = true
	}

	return &UserAchievements{
		TotalXP:      user.XP,
		CurrentLevel: user.Level,
		NextLevelXP:  user.XPForNextLevel(),
		StreakCount:  user.StreakCount,
		Badges:       badges,
		Available:    s.AvailableAchievements(earned),
	}, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
