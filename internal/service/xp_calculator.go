package service

import (
	"mathquest_backend/internal/config"
	"mathquest_backend/internal/model"
)

// 各活动类型的基础XP
var baseXP = map[model.ActivityType]float64{
	model.ActivityPractice: 5,
	model.ActivityLesson:   10,
	model.ActivityRevision: 7,
	model.ActivityExample:  3,
}

var difficultyMultipliers = map[model.Difficulty]float64{
	model.DifficultyBeginner:     1,
	model.DifficultyIntermediate: 1.5,
	model.DifficultyAdvanced:     2,
}

// XPInput XP计算的完整输入，相同输入恒得相同输出
type XPInput struct {
	ActivityType    model.ActivityType
	Score           *float64
	TimeSpent       *int
	ExpectedTime    *int
	Difficulty      model.Difficulty
	Streak          int
	FirstCompletion bool
}

// XPCalculator 纯函数计算器；倍率按固定顺序相乘，结果才可复现：
// 基础XP → 全局倍率 → 分数奖励 → 时间奖励 → 连续奖励 → 难度 → 首次完成 → 取整
type XPCalculator struct {
	Multiplier      float64
	StreakThreshold int
}

func NewXPCalculator(cfg *config.GameConfig) *XPCalculator {
	c := &XPCalculator{}
	c.Reload(cfg)
	return c
}

// Reload 配置热更新入口
func (c *XPCalculator) Reload(cfg *config.GameConfig) {
	c.Multiplier = cfg.XPMultiplier
	c.StreakThreshold = cfg.StreakBonusThreshold
}

func (c *XPCalculator) Compute(in XPInput) int {
	xp, ok := baseXP[in.ActivityType]
	if !ok {
		xp = 5
	}

	multiplier := c.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	xp *= multiplier

	if in.Score != nil {
		switch score := *in.Score; {
		case score == 100:
			xp *= 1.5
		case score >= 90:
			xp *= 1.2
		case score >= 80:
			xp *= 1.1
		}
	}

	// 时间奖励仅在实际耗时与预期耗时都已知时生效
	if in.TimeSpent != nil && in.ExpectedTime != nil && *in.ExpectedTime > 0 {
		ratio := float64(*in.TimeSpent) / float64(*in.ExpectedTime)
		switch {
		case ratio < 0.5:
			xp *= 1.3
		case ratio < 0.75:
			xp *= 1.15
		case ratio < 1:
			xp *= 1.05
		}
	}

	threshold := c.StreakThreshold
	if threshold <= 0 {
		threshold = 5
	}
	if in.Streak >= threshold {
		// 超过阈值后每天 +2%，封顶 20%
		bonus := 0.02 * float64(in.Streak-threshold+1)
		if bonus > 0.2 {
			bonus = 0.2
		}
		xp *= 1 + bonus
	}

	if m, ok := difficultyMultipliers[in.Difficulty]; ok {
		xp *= m
	}

	if in.FirstCompletion {
		xp *= 1.5
	}

	if xp < 0 {
		return 0
	}
	return int(xp)
}
