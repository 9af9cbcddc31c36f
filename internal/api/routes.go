package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"fitlog/internal/api/middleware"
	"fitlog/internal/auth"
	"fitlog/internal/config"
	"fitlog/internal/dashboard"
	"fitlog/internal/routines"
	"fitlog/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
) {
	authHandler := NewAuthHandler(
		db, authService, redisClient, logger,
		cfg.Auth.LoginRateLimitPerHour,
		cfg.Auth.LoginLockThreshold,
		cfg.Auth.LoginLockTTL,
		cfg.Auth.CookieDomain,
	)
	userHandler := NewUserHandler(db, logger)
	routineHandler := NewRoutineHandler(routines.NewService(db, asynqClient), logger)
	dashboardHandler := NewDashboardHandler(dashboard.NewService(db), logger)
	photoHandler := NewPhotoHandler(storageClient, logger, cfg.Clamd.Addr)
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.POST("/password", authMiddleware, authHandler.ChangePassword)
		}

		userGroup := v1.Group("/users")
		userGroup.Use(authMiddleware)
		{
			userGroup.GET("/me", userHandler.Me)
			userGroup.PATCH("/me", userHandler.UpdateMe)
		}

		routineGroup := v1.Group("/routines")
		routineGroup.Use(authMiddleware)
		{
			routineGroup.POST("", routineHandler.Create)
			routineGroup.GET("", routineHandler.List)
			routineGroup.GET("/:id/today", routineHandler.Today)
			routineGroup.PUT("/:id/today", routineHandler.SaveToday)
			routineGroup.GET("/:id/days/:date", routineHandler.DayByDate)
			routineGroup.PUT("/:id/days/:date", routineHandler.SaveDay)
			routineGroup.PATCH("/:id", routineHandler.Rename)
			routineGroup.DELETE("/:id", routineHandler.Delete)
		}

		dashboardGroup := v1.Group("/dashboard")
		dashboardGroup.Use(authMiddleware)
		{
			dashboardGroup.GET("/activities", dashboardHandler.Activities)
			dashboardGroup.GET("/achievements", dashboardHandler.Achievements)
		}

		photoGroup := v1.Group("/photos")
		photoGroup.Use(authMiddleware)
		{
			photoGroup.POST("", photoHandler.UploadPhoto)
			photoGroup.GET("", photoHandler.ListPhotos)
			photoGroup.DELETE("", photoHandler.DeletePhoto)
		}
	}
}
