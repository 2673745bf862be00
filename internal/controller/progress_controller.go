package controller

import (
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
	"mathquest_backend/internal/service"
	"mathquest_backend/internal/util"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService    *service.ProgressService
	LeaderboardService *service.LeaderboardService
	AchievementService *service.AchievementService
}

func NewProgressController(
	progressService *service.ProgressService,
	leaderboardService *service.LeaderboardService,
	achievementService *service.AchievementService,
) *ProgressController {
	return &ProgressController{
		ProgressService:    progressService,
		LeaderboardService: leaderboardService,
		AchievementService: achievementService,
	}
}

// RecordActivity godoc
// @Summary 记录学习活动
// @Description 记录一次学习活动并返回XP结算结果（支持幂等键重投递）
// @Tags 进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.RecordActivityRequest true "活动数据"
// @Success 200 {object} util.Response{data=service.ProgressResult} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Failure 409 {object} util.Response "并发冲突"
// @Router /api/progress/activity [post]
func (c *ProgressController) RecordActivity(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.RecordActivityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ProgressService.RecordActivity(claims.UserID, req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// GetUserStats godoc
// @Summary 获取用户统计概览
// @Description XP、等级、连续天数、分类型统计及各主题掌握度
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.UserStats} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/progress/stats [get]
func (c *ProgressController) GetUserStats(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	stats, err := c.ProgressService.GetUserStats(claims.UserID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, stats)
}

// GetDetailedProgress godoc
// @Summary 获取详细进度
// @Description 概览统计 + 各主题进度 + 近期事件 + 已获得成就
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.DetailedProgress} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/progress/detailed [get]
func (c *ProgressController) GetDetailedProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.ProgressService.GetDetailedProgress(claims.UserID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}

// GetActivityHistory godoc
// @Summary 分页查询活动历史
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   type query string false "活动类型"
// @Param   topic query string false "主题"
// @Param   start query string false "起始时间 RFC3339"
// @Param   end query string false "结束时间 RFC3339"
// @Param   limit query int false "每页条数，默认50"
// @Param   offset query int false "偏移量"
// @Success 200 {object} util.Response{data=service.ActivityHistory} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/progress/activities [get]
func (c *ProgressController) GetActivityHistory(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	filter := repository.ActivityFilter{
		ActivityType: model.ActivityType(ctx.Query("type")),
		Topic:        ctx.Query("topic"),
	}
	if v := ctx.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			util.BadRequest(ctx, "invalid start time")
			return
		}
		filter.Start = &t
	}
	if v := ctx.Query("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			util.BadRequest(ctx, "invalid end time")
			return
		}
		filter.End = &t
	}
	filter.Limit, _ = strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	history, err := c.ProgressService.GetActivityHistory(claims.UserID, filter)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, history)
}

// GetTopicProgress godoc
// @Summary 获取单主题进度
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   topic path string true "主题"
// @Success 200 {object} util.Response{data=service.TopicProgress} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/progress/topics/{topic} [get]
func (c *ProgressController) GetTopicProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.ProgressService.GetTopicProgress(claims.UserID, ctx.Param("topic"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}

// GetLeaderboard godoc
// @Summary 获取排行榜
// @Description 按时间窗口聚合XP的排行榜（daily/weekly/monthly/all）
// @Tags 进度
// @Produce  json
// @Param   period query string false "时间窗口，默认 all"
// @Param   limit query int false "条数，默认10"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "无效的时间窗口"
// @Router /api/progress/leaderboard [get]
func (c *ProgressController) GetLeaderboard(ctx *gin.Context) {
	period := ctx.DefaultQuery("period", util.PeriodAll)
	switch period {
	case util.PeriodDaily, util.PeriodWeekly, util.PeriodMonthly, util.PeriodAll:
	default:
		util.BadRequest(ctx, "invalid period")
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	entries, err := c.LeaderboardService.GetLeaderboard(period, limit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	resp := gin.H{"period": period, "entries": entries}
	// 登录用户顺带返回本人名次，匿名访问只给榜单
	if claims := util.GetUserFromContext(ctx); claims != nil {
		rank, err := c.LeaderboardService.UserRank(period, claims.UserID)
		if err != nil {
			handleServiceError(ctx, err)
			return
		}
		resp["myRank"] = rank
	}

	util.Success(ctx, resp)
}

// GetUserRank godoc
// @Summary 获取当前用户排名
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   period query string false "时间窗口，默认 all"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/progress/leaderboard/rank [get]
func (c *ProgressController) GetUserRank(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	period := ctx.DefaultQuery("period", util.PeriodAll)
	rank, err := c.LeaderboardService.UserRank(period, claims.UserID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"period": period, "rank": rank})
}

// GetAchievements godoc
// @Summary 获取成就
// @Description 已获得的成就与完整成就目录
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.UserAchievements} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/progress/achievements [get]
func (c *ProgressController) GetAchievements(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	achievements, err := c.AchievementService.GetUserAchievements(claims.UserID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, achievements)
}

// BonusXPRequest 管理员加XP请求
type BonusXPRequest struct {
	UserID uint   `json:"userId" binding:"required"`
	Amount int    `json:"amount" binding:"required,gt=0"`
	Reason string `json:"reason" binding:"required"`
}

// AwardBonusXP godoc
// @Summary 管理员直接授予XP
// @Tags 进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body BonusXPRequest true "授予信息"
// @Success 200 {object} util.Response{data=service.ProgressResult} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 403 {object} util.Response "权限不足"
// @Router /api/admin/bonus-xp [post]
func (c *ProgressController) AwardBonusXP(ctx *gin.Context) {
	var req BonusXPRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ProgressService.AwardBonusXP(req.UserID, req.Amount, req.Reason)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}
