package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/config"
	"github.com/noah-isme/tutorlink-api/internal/database"
	"github.com/noah-isme/tutorlink-api/internal/handler"
	"github.com/noah-isme/tutorlink-api/internal/middleware"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
	"github.com/noah-isme/tutorlink-api/internal/router"
	"github.com/noah-isme/tutorlink-api/internal/service"
	"github.com/noah-isme/tutorlink-api/pkg/payment"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := database.NewPool(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	db, err := pool.Ensure(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Tuition{},
		&models.Application{},
		&models.Payment{},
		&models.Notification{},
		&models.ActivityLog{},
		&models.Review{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, caching and cross-node notifications disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, notification fan-out limited to redis")
		natsConn = nil
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	var gateway payment.Gateway = payment.Disabled{}
	if cfg.StripeSecretKey != "" {
		stripeGateway, err := payment.NewStripeGateway(payment.StripeConfig{
			SecretKey: cfg.StripeSecretKey,
			Currency:  cfg.PaymentCurrency,
			Logger:    logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure stripe")
		}
		gateway = stripeGateway
	} else {
		logger.Warn().Msg("stripe secret key missing, payment confirmation is disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	tuitionRepo := repository.NewTuitionRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	acceptanceRepo := repository.NewAcceptanceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	cache := service.NewMarketplaceCache(redisClient, cfg.LatestCacheTTL, cfg.DashboardCacheTTL, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RealtimeChannel, natsConn, cfg.NotificationQueueSize, logger)
	notificationService.Start(ctx)

	activityService := service.NewActivityService(activityRepo, logger)
	authService := service.NewAuthService(userRepo, validate, cfg.JWTSecret, cfg.JWTTTL, logger)
	userService := service.NewUserService(userRepo, validate, logger)
	tuitionService := service.NewTuitionService(tuitionRepo, validate, cache, activityService, logger)
	applicationService := service.NewApplicationService(applicationRepo, tuitionRepo, userRepo, validate, notificationService, cache, logger)
	acceptanceService := service.NewAcceptanceService(service.AcceptanceDeps{
		Acceptances:  acceptanceRepo,
		Applications: applicationRepo,
		Tuitions:     tuitionRepo,
		Payments:     paymentRepo,
		Gateway:      gateway,
		Validator:    validate,
		Notifier:     notificationService,
		Cache:        cache,
		Activity:     activityService,
		Currency:     cfg.PaymentCurrency,
	}, logger)
	paymentService := service.NewPaymentService(paymentRepo, acceptanceService, validate, activityService, logger)
	adminService := service.NewAdminService(service.AdminDeps{
		Users:     userRepo,
		Tuitions:  tuitionRepo,
		Payments:  paymentRepo,
		Validator: validate,
		Notifier:  notificationService,
		Cache:     cache,
		Activity:  activityService,
	}, logger)
	dashboardService := service.NewStudentDashboardService(tuitionRepo, applicationRepo, paymentRepo, cache, logger)
	reviewService := service.NewReviewService(service.ReviewDeps{
		Reviews:      reviewRepo,
		Applications: applicationRepo,
		Users:        userRepo,
		Validator:    validate,
		Notifier:     notificationService,
		Activity:     activityService,
	}, logger)

	readiness := map[string]handler.Pinger{"database": pool}
	if redisClient != nil {
		readiness["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if natsConn != nil {
		readiness["nats"] = handler.PingFunc(func(context.Context) error {
			if natsConn.Status() != nats.CONNECTED {
				return nats.ErrConnectionClosed
			}
			return nil
		})
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
		ErrorHandler: handler.NewErrorHandler(logger, !cfg.IsProduction()),
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    !cfg.IsProduction(),
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:             handler.NewAuthHandler(authService, middleware.RateLimit("auth", cfg.LoginRateLimit, cfg.LoginRateWindow), logger),
		UserHandler:             handler.NewUserHandler(userService, logger),
		TuitionHandler:          handler.NewTuitionHandler(tuitionService, applicationService, logger),
		ApplicationHandler:      handler.NewApplicationHandler(applicationService, logger),
		PaymentHandler:          handler.NewPaymentHandler(acceptanceService, paymentService, logger),
		AdminHandler:            handler.NewAdminHandler(adminService, paymentService, activityService, logger),
		StudentDashboardHandler: handler.NewStudentDashboardHandler(dashboardService, logger),
		NotificationHandler:     handler.NewNotificationHandler(notificationService, logger, 30*time.Second),
		ReviewHandler:           handler.NewReviewHandler(reviewService, logger),
		Readiness:               handler.ReadinessCheck(readiness, logger),
		Guards: handler.Guards{
			Authenticate: middleware.JWTProtected(cfg.JWTSecret),
			Identify:     middleware.JWTOptional(cfg.JWTSecret),
			Account:      middleware.AccountGuard(authService, logger),
		},
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Str("env", cfg.AppEnv).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdown(app, pool, logger)
}

func shutdown(app *fiber.App, pool *database.Pool, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := pool.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close database pool")
	}

	logger.Info().Msg("server stopped")
}
