package app

import (
	"context"
	"log"
	"mathquest_backend/internal/config"
	"mathquest_backend/internal/controller"
	"mathquest_backend/internal/repository"
	"mathquest_backend/internal/service"
	"mathquest_backend/pkg/configwatcher"
	"mathquest_backend/pkg/database"
	"mathquest_backend/pkg/logger"
	"mathquest_backend/pkg/monitoring"
	"mathquest_backend/pkg/security"
	"mathquest_backend/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user        *repository.UserRepository
	activity    *repository.ActivityRepository
	achievement *repository.AchievementRepository
	lesson      *repository.LessonRepository
	topicStat   *repository.TopicStatRepository
	gameSession *repository.GameSessionRepository
}

type services struct {
	auth        *service.AuthService
	storage     *service.StorageService
	achievement *service.AchievementService
	lesson      *service.LessonService
	leaderboard *service.LeaderboardService
	progress    *service.ProgressService
	game        *service.GameService
	calc        *service.XPCalculator
}

type controllers struct {
	auth     *controller.AuthController
	progress *controller.ProgressController
	lesson   *controller.LessonController
	game     *controller.GameController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		activity:    repository.NewActivityRepository(db),
		achievement: repository.NewAchievementRepository(db),
		lesson:      repository.NewLessonRepository(db),
		topicStat:   repository.NewTopicStatRepository(db),
		gameSession: repository.NewGameSessionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.achievement = service.NewAchievementService(repos.achievement, repos.user)
	s.lesson = service.NewLessonService(repos.lesson, repos.activity, repos.topicStat)
	s.leaderboard = service.NewLeaderboardService(repos.activity, repos.topicStat, rdb, &cfg.Game)

	s.calc = service.NewXPCalculator(&cfg.Game)
	calc := s.calc
	s.progress = service.NewProgressService(
		db,
		repos.user,
		repos.activity,
		repos.topicStat,
		repos.achievement,
		s.achievement,
		s.lesson,
		calc,
	)
	s.game = service.NewGameService(repos.user, repos.gameSession, s.progress, cfg)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth),
		progress: controller.NewProgressController(s.progress, s.leaderboard, s.achievement),
		lesson:   controller.NewLessonController(s.lesson, s.progress, s.storage),
		game:     controller.NewGameController(s.game),
		health:   controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	controllers := app.initControllers(services, db, rdb)

	// 前置关系成环属于内容配置错误，启动即失败
	if err := services.lesson.ValidateGraph(); err != nil {
		logger.Log.Fatal("lesson prerequisite graph is invalid", zap.Error(err))
	}

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("mathquest", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	// 配置热更新：XP倍率等引擎参数改动无需重启
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		services.calc.Reload(&newCfg.Game)
		logger.Log.Info("game config reloaded",
			zap.Float64("xpMultiplier", newCfg.Game.XPMultiplier),
			zap.Int("streakBonusThreshold", newCfg.Game.StreakBonusThreshold))
	})
	go configwatcher.WatchConfig("configs/config.yaml", func(newCfg *config.Config) {
		for _, cb := range app.configCallbacks {
			cb(newCfg)
		}
	})

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
