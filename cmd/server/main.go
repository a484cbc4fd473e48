package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-backend/internal/config"
	"github.com/ignatzorin/proposal-backend/internal/db"
	"github.com/ignatzorin/proposal-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/proposal-backend/internal/http/handlers"
	"github.com/ignatzorin/proposal-backend/internal/http/middleware"
	httpRouter "github.com/ignatzorin/proposal-backend/internal/http/router"
	"github.com/ignatzorin/proposal-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/proposal-backend/internal/interface/http/handler"
	"github.com/ignatzorin/proposal-backend/internal/logger"
	"github.com/ignatzorin/proposal-backend/internal/repository"
	"github.com/ignatzorin/proposal-backend/internal/service"
	"github.com/ignatzorin/proposal-backend/internal/storage"
	"github.com/ignatzorin/proposal-backend/internal/usecase/proposal"
	"github.com/ignatzorin/proposal-backend/internal/validation"
	"github.com/ignatzorin/proposal-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("main: ошибка загрузки конфигурации")
	}

	logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}
	log := logger.Get()

	if err := validation.RegisterBindings(); err != nil {
		log.WithError(err).Fatal("main: не удалось зарегистрировать валидаторы")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("main: ошибка подключения к базе")
	}
	defer safeClose(dbConn, log)

	if err := db.RunMigrations(ctx, dbConn, log); err != nil {
		log.WithError(err).Fatal("main: ошибка миграций")
	}

	attachmentStorage, err := storage.NewAttachmentStorage(cfg.StoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.WithError(err).Fatal("main: не удалось подготовить файловое хранилище")
	}

	rateLimitStore, err := middleware.NewRateLimitStore(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("main: не удалось подготовить хранилище rate limit")
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	attachmentRepo := repository.NewAttachmentRepository(dbConn)
	proposalStore := persistence.NewProposalRepositoryAdapter(dbConn)
	partyStore := persistence.NewUserRepositoryAdapter(dbConn)

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(userRepo, tokenManager, log)
	proposalService := proposal.NewService(proposalStore, partyStore, log)
	attachmentService := service.NewAttachmentService(proposalService, attachmentRepo, attachmentStorage, log)

	// Вебсокеты.
	hub := ws.NewHub(log)
	goroutine.NewRecoveryHandler(log).SafeGoWithContext(ctx, "ws-hub", hub.Run)

	// HTTP хэндлеры.
	handlers := httpRouter.Handlers{
		Auth:       httpHandlers.NewAuthHandler(authService),
		Proposal:   handler.NewProposalHandler(proposalService, hub, attachmentService),
		Attachment: httpHandlers.NewAttachmentHandler(attachmentService, attachmentStorage.MaxBytes()),
		WS:         httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins, log),
		Health:     httpHandlers.NewHealthHandler(dbConn),
	}
	if cfg.Google.Enabled() {
		google := service.NewGoogleOAuth(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
		handlers.Google = httpHandlers.NewGoogleHandler(google, authService, cfg.IsProduction(), log)
	} else {
		log.Info("main: вход через Google отключён (GOOGLE_CLIENT_ID не задан)")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewDBStatsCollector(dbConn.DB, "proposals"),
	)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, handlers, httpRouter.Deps{
		Tokens:         tokenManager,
		Metrics:        middleware.NewMetrics(registry),
		RateLimitStore: rateLimitStore,
		Log:            log,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	log.WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("main: сервер завершился с ошибкой")
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB, log logrus.FieldLogger) {
	if err := db.Close(); err != nil {
		log.WithError(err).Error("main: ошибка закрытия базы")
	}
}
