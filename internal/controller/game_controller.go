package controller

import (
	"mathquest_backend/internal/service"
	"mathquest_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GameController struct {
	GameService *service.GameService
}

func NewGameController(gameService *service.GameService) *GameController {
	return &GameController{GameService: gameService}
}

// CheckAccess godoc
// @Summary 游戏准入检查
// @Description 返回是否达到XP门槛及可用游戏币数量
// @Tags 游戏
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.GameAccess} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/game/access [get]
func (c *GameController) CheckAccess(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	access, err := c.GameService.CheckAccess(claims.UserID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, access)
}

// StartSessionRequest 开启会话请求
type StartSessionRequest struct {
	GameType string `json:"gameType" binding:"required"`
}

// StartSession godoc
// @Summary 开启游戏会话
// @Tags 游戏
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body StartSessionRequest true "游戏类型"
// @Success 200 {object} util.Response{data=model.GameSession} "成功"
// @Failure 403 {object} util.Response "XP不足"
// @Router /api/game/session [post]
func (c *GameController) StartSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.GameService.StartSession(claims.UserID, req.GameType)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, session)
}

// RecordResult godoc
// @Summary 游戏结算
// @Description 一局游戏的结果回流进度引擎计分
// @Tags 游戏
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.GameResultRequest true "结算数据"
// @Success 200 {object} util.Response{data=service.ProgressResult} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/game/result [post]
func (c *GameController) RecordResult(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.GameResultRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.GameService.RecordResult(claims.UserID, req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}
