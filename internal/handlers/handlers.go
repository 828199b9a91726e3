package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kdavid109/UpWake/internal/config"
	"github.com/kdavid109/UpWake/internal/livelist"
	"github.com/kdavid109/UpWake/internal/middleware"
	"github.com/kdavid109/UpWake/internal/models"
	"github.com/kdavid109/UpWake/internal/queue"
	"github.com/kdavid109/UpWake/internal/removal"
	"github.com/kdavid109/UpWake/internal/repository"
	"github.com/kdavid109/UpWake/internal/security"
	"github.com/kdavid109/UpWake/internal/service"
	"github.com/kdavid109/UpWake/internal/storage"
)

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	db           *pgxpool.Pool
	cache        *redis.Client
	store        *storage.ObjectStore
	hub          *livelist.Hub
	users        *repository.UserRepository
	sessions     *repository.SessionRepository
	objects      *repository.ObjectRepository
	alarms       *repository.AlarmRepository
	authService  *service.AuthService
	scanService  *service.ScanService
	alarmService *service.AlarmService
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	objectRepo := repository.NewObjectRepository(db)
	alarmRepo := repository.NewAlarmRepository(db)

	hub := livelist.NewHub(cache, log)
	producer := queue.NewProducer(cache, cfg.Redis.Stream)
	remover := removal.NewClient(cfg.Removal)

	auth := service.NewAuthService(userRepo, sessionRepo, cfg, log)
	scan := service.NewScanService(objectRepo, store, remover, producer, hub, cfg, log)
	alarm := service.NewAlarmService(alarmRepo, store, hub, cfg, log)

	return HandlerSet{
		log:          log,
		cfg:          cfg,
		db:           db,
		cache:        cache,
		store:        store,
		hub:          hub,
		users:        userRepo,
		sessions:     sessionRepo,
		objects:      objectRepo,
		alarms:       alarmRepo,
		authService:  auth,
		scanService:  scan,
		alarmService: alarm,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.cfg, h.users, h.sessions))
		protected.GET("/me", h.Me)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:deviceId", h.RevokeSession)
	}

	objects := v1.Group("/objects")
	objects.Use(middleware.Auth(h.cfg, h.users, h.sessions))
	objects.POST("", h.UploadObject)
	objects.GET("", h.ListObjects)
	objects.GET("/events", h.ObjectEvents)
	objects.DELETE("/:id", h.DeleteObject)

	alarms := v1.Group("/alarms")
	alarms.Use(middleware.Auth(h.cfg, h.users, h.sessions))
	alarms.POST("", h.CreateAlarm)
	alarms.GET("", h.ListAlarms)
	alarms.GET("/events", h.AlarmEvents)
	alarms.PUT("/:id", h.UpdateAlarm)
	alarms.PATCH("/:id/toggle", h.ToggleAlarm)
	alarms.DELETE("/:id", h.DeleteAlarm)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.cfg, h.users, h.sessions),
		middleware.RequireRoles(models.UserRoleAdmin),
	)
	admin.GET("/objects", h.AdminListObjects)
}

// currentUser pulls the authenticated user set by the auth middleware.
func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get("current_user")
	if !exists {
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	return user, ok
}

// currentClaims pulls the parsed access token claims set by the auth
// middleware.
func currentClaims(c *gin.Context) (security.AccessClaims, bool) {
	claimsVal, exists := c.Get("access_claims")
	if !exists {
		return security.AccessClaims{}, false
	}
	claims, ok := claimsVal.(security.AccessClaims)
	return claims, ok
}
