package controller

import (
	"fmt"
	"io"
	"mathquest_backend/internal/model"
	"mathquest_backend/internal/repository"
	"mathquest_backend/internal/service"
	"mathquest_backend/internal/util"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LessonController struct {
	LessonService   *service.LessonService
	ProgressService *service.ProgressService
	StorageService  *service.StorageService
}

func NewLessonController(
	lessonService *service.LessonService,
	progressService *service.ProgressService,
	storageService *service.StorageService,
) *LessonController {
	return &LessonController{
		LessonService:   lessonService,
		ProgressService: progressService,
		StorageService:  storageService,
	}
}

// GetLessons godoc
// @Summary 课程列表
// @Tags 课程
// @Produce  json
// @Param   topic query string false "主题"
// @Param   difficulty query string false "难度"
// @Success 200 {object} util.Response{data=[]model.Lesson} "成功"
// @Router /api/lessons [get]
func (c *LessonController) GetLessons(ctx *gin.Context) {
	filter := repository.LessonFilter{
		Topic:      ctx.Query("topic"),
		Difficulty: model.Difficulty(ctx.Query("difficulty")),
		ActiveOnly: true,
	}

	lessons, err := c.LessonService.GetLessons(filter)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, lessons)
}

// GetTopics godoc
// @Summary 主题列表
// @Tags 课程
// @Produce  json
// @Success 200 {object} util.Response{data=[]string} "成功"
// @Router /api/lessons/topics [get]
func (c *LessonController) GetTopics(ctx *gin.Context) {
	topics, err := c.LessonService.GetTopics()
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, topics)
}

// GetRecommendations godoc
// @Summary 推荐课程
// @Description 基于已完成课程、主题均分和难度递进的推荐
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param   limit query int false "条数，默认5"
// @Success 200 {object} util.Response{data=[]model.Lesson} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/lessons/recommendations [get]
func (c *LessonController) GetRecommendations(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "5"))
	lessons, err := c.LessonService.Recommend(claims.UserID, limit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, lessons)
}

// GetLesson godoc
// @Summary 课程详情与可达性
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/lessons/{id} [get]
func (c *LessonController) GetLesson(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	lessonID := util.MustParseUint(ctx.Param("id"))
	lesson, err := c.LessonService.GetLesson(lessonID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	accessible, err := c.LessonService.CanAccess(lesson, claims.UserID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"lesson":          lesson,
		"accessible":      accessible,
		"prerequisiteIds": lesson.PrerequisiteIDs(),
	})
}

// GetLessonPath godoc
// @Summary 主题课程路径
// @Description 按前置关系拓扑排序后的课程序列，前置在前
// @Tags 课程
// @Produce  json
// @Param   topic path string true "主题"
// @Success 200 {object} util.Response{data=[]model.Lesson} "成功"
// @Failure 500 {object} util.Response "前置关系存在环"
// @Router /api/lessons/topic/{topic}/path [get]
func (c *LessonController) GetLessonPath(ctx *gin.Context) {
	lessons, err := c.LessonService.LessonPath(ctx.Param("topic"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, lessons)
}

// CompleteLesson godoc
// @Summary 完成课程
// @Description 校验前置后按课程固定XP记账
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body service.CompleteLessonRequest true "完成数据"
// @Success 200 {object} util.Response{data=service.ProgressResult} "成功"
// @Failure 403 {object} util.Response "前置未完成"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/lessons/{id}/complete [post]
func (c *LessonController) CompleteLesson(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CompleteLessonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lessonID := util.MustParseUint(ctx.Param("id"))
	result, err := c.ProgressService.CompleteLesson(claims.UserID, lessonID, req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// CreateLessonRequest 新建课程请求
type CreateLessonRequest struct {
	Title           string   `json:"title" binding:"required"`
	Topic           string   `json:"topic" binding:"required"`
	Subtopic        string   `json:"subtopic"`
	Difficulty      string   `json:"difficulty" binding:"omitempty,oneof=beginner intermediate advanced"`
	Description     string   `json:"description"`
	Content         string   `json:"content"`
	XPReward        int      `json:"xpReward"`
	Order           int      `json:"order"`
	EstimatedTime   int      `json:"estimatedTime"`
	PrerequisiteIDs []uint   `json:"prerequisiteIds"`
}

// CreateLesson godoc
// @Summary 新建课程
// @Description 教师/管理员创建课程节点，保存后校验前置关系仍无环
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body CreateLessonRequest true "课程数据"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 500 {object} util.Response "前置关系成环"
// @Router /api/lessons [post]
func (c *LessonController) CreateLesson(ctx *gin.Context) {
	var req CreateLessonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	difficulty := model.Difficulty(req.Difficulty)
	if difficulty == "" {
		difficulty = model.DifficultyBeginner
	}
	xp := req.XPReward
	if xp <= 0 {
		xp = 10
	}
	estimated := req.EstimatedTime
	if estimated <= 0 {
		estimated = 15
	}

	lesson := &model.Lesson{
		Title:         req.Title,
		Topic:         req.Topic,
		Subtopic:      req.Subtopic,
		Difficulty:    difficulty,
		Description:   req.Description,
		Content:       req.Content,
		XPReward:      xp,
		Order:         req.Order,
		EstimatedTime: estimated,
		IsActive:      true,
	}
	for _, id := range req.PrerequisiteIDs {
		lesson.Prerequisites = append(lesson.Prerequisites, &model.Lesson{BaseModel: model.BaseModel{ID: id}})
	}

	if err := c.LessonService.CreateLesson(lesson); err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{"id": lesson.ID})
}

// UploadTemplate godoc
// @Summary 上传课程模板文件
// @Description 教师/管理员上传练习卷模板，存入对象存储
// @Tags 课程
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   file formData file true "模板文件"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 403 {object} util.Response "权限不足"
// @Router /api/lessons/{id}/template [post]
func (c *LessonController) UploadTemplate(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))
	lesson, err := c.LessonService.GetLesson(lessonID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	defer file.Close()

	filename := fmt.Sprintf("templates/%d/%s%s", lessonID, uuid.New().String(), filepath.Ext(header.Filename))
	url, err := c.StorageService.Upload(ctx.Request.Context(), filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	lesson.TemplatePath = filename
	if err := c.LessonService.UpdateLesson(lesson); err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"url": url, "path": filename})
}

// DownloadTemplate godoc
// @Summary 下载课程模板文件
// @Tags 课程
// @Produce  octet-stream
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {file} binary "模板内容"
// @Failure 404 {object} util.Response "课程或模板不存在"
// @Router /api/lessons/{id}/template [get]
func (c *LessonController) DownloadTemplate(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))
	lesson, err := c.LessonService.GetLesson(lessonID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	if lesson.TemplatePath == "" {
		util.NotFound(ctx)
		return
	}

	reader, err := c.StorageService.Fetch(ctx.Request.Context(), lesson.TemplatePath)
	if err != nil {
		util.NotFound(ctx)
		return
	}
	defer reader.Close()

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(lesson.TemplatePath)))
	ctx.Header("Content-Type", "application/octet-stream")
	io.Copy(ctx.Writer, reader)
}
