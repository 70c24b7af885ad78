package api

import (
	"context"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/videotube/account-service/internal/api/handler"
	"github.com/videotube/account-service/internal/api/middleware"
	"github.com/videotube/account-service/internal/core/ports"
	"github.com/videotube/account-service/internal/core/service"
	"github.com/videotube/account-service/internal/infrastructure/config"
	mongostore "github.com/videotube/account-service/internal/infrastructure/db/mongo"
	redisstore "github.com/videotube/account-service/internal/infrastructure/db/redis"
	"github.com/videotube/account-service/internal/infrastructure/queue"
)

// NewRouter builds and returns the Echo instance with all routes registered.
// ctx bounds the lifetime of the background asset cleanup workers.
func NewRouter(
	ctx context.Context,
	cfg *config.Config,
	db *mongo.Database,
	rdb *goredis.Client,
	assets ports.AssetStore,
	log zerolog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowCredentials: true,
	}))
	e.Use(echoprometheus.NewMiddleware("account"))

	// The JSON body limit does not apply to multipart upload routes.
	jsonBodyLimit := echomiddleware.BodyLimit(cfg.BodyLimit)

	// --- Dependencies ---
	userRepo := mongostore.NewUserRepository(db)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Error().Err(err).Msg("failed to ensure user indexes")
	}

	cleaner := queue.NewAssetCleaner(0, assets, log)
	cleaner.Start(ctx)

	tokens := service.NewTokenService(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	limiter := redisstore.NewLoginLimiter(rdb, cfg.Auth.MaxLoginFailures, cfg.Auth.LoginFailureWindow)
	userService := service.NewUserService(userRepo, tokens, assets, limiter, cleaner, log)

	userHandler := handler.NewUserHandler(userService)
	authRequired := middleware.Auth(tokens)

	// --- User routes ---
	users := e.Group("/api/v1/users")
	users.POST("/register", userHandler.Register)
	users.POST("/login", userHandler.Login, jsonBodyLimit)
	users.POST("/refresh-token", userHandler.RefreshToken, jsonBodyLimit)
	users.POST("/logout", userHandler.Logout, authRequired)
	users.POST("/change-password", userHandler.ChangePassword, authRequired, jsonBodyLimit)
	users.GET("/current-user", userHandler.CurrentUser, authRequired)
	users.PATCH("/update-account", userHandler.UpdateAccount, authRequired, jsonBodyLimit)
	users.PATCH("/update-avatar", userHandler.UpdateAvatar, authRequired)
	users.PATCH("/update-cover-image", userHandler.UpdateCoverImage, authRequired)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Operational endpoints ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)
	e.Static("/public", "public")

	return e
}
