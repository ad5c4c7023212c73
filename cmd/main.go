package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/court-scoring/config"
	"github.com/Dosada05/court-scoring/db"
	"github.com/Dosada05/court-scoring/handlers"
	"github.com/Dosada05/court-scoring/live"
	"github.com/Dosada05/court-scoring/repositories"
	api "github.com/Dosada05/court-scoring/routes"
	"github.com/Dosada05/court-scoring/services"
	"github.com/Dosada05/court-scoring/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Хранилище фото протоколов (Cloudflare R2). Опционально: без него
	// судьи просто не смогут прикладывать фотографии.
	var uploader storage.FileUploader
	if cfg.ScoresheetStorageConfigured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("scoresheet photo storage is not configured, uploads disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	courtRepo := repositories.NewPostgresCourtRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	courtService := services.NewCourtService(
		dbConn,
		courtRepo,
		matchRepo,
		tournamentRepo,
		uploader,
		cfg.PublicBaseURL,
	)
	matchService := services.NewMatchService(
		dbConn,
		matchRepo,
		courtRepo,
		tournamentRepo,
		uploader,
		nil, // TeamLookup: внешнего сервиса профилей в этой инсталляции нет
		logger,
	)
	scoringService := services.NewScoringService(
		dbConn,
		matchRepo,
		courtRepo,
		uploader,
		wsHub,
		logger,
	)
	dashboardService := services.NewDashboardService(
		courtRepo,
		matchRepo,
		tournamentRepo,
		uploader,
	)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	setupHandler := handlers.NewSetupHandler(courtService, matchService, scoringService)
	courtHandler := handlers.NewCourtHandler(courtService, scoringService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, scoringService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		courtService,
		setupHandler,
		courtHandler,
		dashboardHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if err := server.Close(); err != nil {
				logger.Error("forced server close failed", slog.Any("error", err))
			}
		}
		logger.Info("server stopped")
	}
}
