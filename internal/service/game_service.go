package service

import (
	"mathquest_backend/internal/config"
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
	"mathquest_backend/internal/util"
	"time"
)

// GameService XP换游戏币：达到 MinGameXP 门槛后解锁小游戏，
// 可用币 = 当前XP - 门槛值，游玩结果回流为 practice 事件计分
type GameService struct {
	UserRepo    *repository.UserRepository
	SessionRepo *repository.GameSessionRepository
	Progress    *ProgressService
	Cfg         *config.Config
}

func NewGameService(
	userRepo *repository.UserRepository,
	sessionRepo *repository.GameSessionRepository,
	progress *ProgressService,
	cfg *config.Config,
) *GameService {
	return &GameService{
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		Progress:    progress,
		Cfg:         cfg,
	}
}

// GameAccess 游戏准入状态
type GameAccess struct {
	Accessible     bool `json:"accessible"`
	CurrentXP      int  `json:"currentXp"`
	RequiredXP     int  `json:"requiredXp"`
	AvailableCoins int  `json:"availableCoins"`
}

func (s *GameService) CheckAccess(userID uint) (*GameAccess, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	access := &GameAccess{
		CurrentXP:  user.XP,
		RequiredXP: s.Cfg.Game.MinGameXP,
	}
	if user.XP >= s.Cfg.Game.MinGameXP {
		access.Accessible = true
		access.AvailableCoins = user.XP - s.Cfg.Game.MinGameXP
	}
	return access, nil
}

// StartSession 校验门槛后开启会话并记录XP快照
func (s *GameService) StartSession(userID uint, gameType string) (*model.GameSession, error) {
	access, err := s.CheckAccess(userID)
	if err != nil {
		return nil, err
	}
	if !access.Accessible {
		return nil, util.ErrInsufficientXP
	}

	session, err := s.SessionRepo.FindOrCreate(userID, gameType)
	if err != nil {
		return nil, err
	}
	session.LastPlayedAt = time.Now()
	session.LastXPSnapshot = access.CurrentXP
	if err := s.SessionRepo.Update(session); err != nil {
		return nil, err
	}
	return session, nil
}

// GameResultRequest 一局游戏的结算请求
type GameResultRequest struct {
	GameType       string   `json:"gameType" binding:"required"`
	Score          *float64 `json:"score"`
	CoinsUsed      int      `json:"coinsUsed"`
	TimeSpent      *int     `json:"timeSpent"`
	IdempotencyKey *string  `json:"idempotencyKey"`
}

// RecordResult 游戏结算回流进度引擎：以 practice 事件入账，
// 主题固定为游戏类型，花费的币累计到会话
func (s *GameService) RecordResult(userID uint, req GameResultRequest) (*ProgressResult, error) {
	if req.CoinsUsed < 0 {
		return nil, util.NewValidationError("coinsUsed", "cannot be negative")
	}

	session, err := s.SessionRepo.FindOrCreate(userID, req.GameType)
	if err != nil {
		return nil, err
	}

	result, err := s.Progress.RecordActivity(userID, RecordActivityRequest{
		ActivityType:   string(model.ActivityPractice),
		Topic:          "game",
		Subtopic:       req.GameType,
		Score:          req.Score,
		TimeSpent:      req.TimeSpent,
		IdempotencyKey: req.IdempotencyKey,
		Metadata: map[string]interface{}{
			"gameType":  req.GameType,
			"coinsUsed": req.CoinsUsed,
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Duplicate {
		return result, nil
	}

	session.LastPlayedAt = time.Now()
	session.TotalCoinsUsed += req.CoinsUsed
	if err := s.SessionRepo.Update(session); err != nil {
		return nil, err
	}
	return result, nil
}
