package app

import (
	"mathquest_backend/internal/config"
	"mathquest_backend/internal/middleware"
	"mathquest_backend/internal/model"
	"mathquest_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, repos, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		// 排行榜允许游客查看；带令牌访问时额外返回本人名次
		public.GET("/progress/leaderboard",
			middleware.TryAuthMiddleware(cfg), c.progress.GetLeaderboard)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)

	// 进度
	rg.POST("/progress/activity", c.progress.RecordActivity)
	rg.GET("/progress/stats", c.progress.GetUserStats)
	rg.GET("/progress/detailed", c.progress.GetDetailedProgress)
	rg.GET("/progress/activities", c.progress.GetActivityHistory)
	rg.GET("/progress/topics/:topic", c.progress.GetTopicProgress)
	rg.GET("/progress/achievements", c.progress.GetAchievements)
	rg.GET("/progress/leaderboard/rank", c.progress.GetUserRank)

	// 课程
	rg.GET("/lessons", c.lesson.GetLessons)
	rg.GET("/lessons/topics", c.lesson.GetTopics)
	rg.GET("/lessons/recommendations", c.lesson.GetRecommendations)
	rg.GET("/lessons/:id", c.lesson.GetLesson)
	rg.GET("/lessons/:id/template", c.lesson.DownloadTemplate)
	rg.GET("/lessons/topic/:topic/path", c.lesson.GetLessonPath)
	rg.POST("/lessons/:id/complete", c.lesson.CompleteLesson)

	// 游戏
	rg.GET("/game/access", c.game.CheckAccess)
	rg.POST("/game/session", c.game.StartSession)
	rg.POST("/game/result", c.game.RecordResult)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/lessons", c.lesson.CreateLesson)
		teacher.POST("/lessons/:id/template", c.lesson.UploadTemplate)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(
		middleware.AuthMiddleware(cfg),
		middleware.ActivityMiddleware(repos.user),
		middleware.RoleMiddleware(model.Admin),
	)
	{
		admin.POST("/bonus-xp", c.progress.AwardBonusXP)
	}
}
