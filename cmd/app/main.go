package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"points_bot/internal/api"
	"points_bot/internal/bot"
	"points_bot/internal/middleware"
	"points_bot/internal/repository"
	"points_bot/internal/service"
	"points_bot/pkg/auth"
	"points_bot/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := newBackend(ctx, cfg.Ledger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize ledger backend", zap.Error(err))
	}
	defer closeBackend()

	if cfg.RestoreBackup {
		restorer, ok := backend.(repository.Restorer)
		if !ok {
			zapLogger.Fatal("Ledger backend cannot restore backups", zap.String("driver", cfg.Ledger.Driver))
		}
		if err := restorer.RestoreBackup(ctx); err != nil {
			zapLogger.Fatal("Failed to restore ledger backup", zap.Error(err))
		}
		zapLogger.Info("Ledger restored from backup")
	}

	store := repository.NewStore(ctx, backend)

	botConfig := cfg.Bot()
	telegramAPI, err := bot.NewAPI(&botConfig)
	if err != nil {
		zapLogger.Fatal("Failed to initialize telegram bot", zap.Error(err))
	}

	serviceConfig := cfg.Service()
	renderer := bot.NewRenderer(botConfig.BotUsername, serviceConfig.Tasks)
	botNotifier := bot.NewNotifier(telegramAPI, renderer, cfg.Notifier())
	hub := api.NewHub()

	svc := service.NewService(store, service.Notifiers{botNotifier, hub}, serviceConfig, time.Now)
	router := service.NewRouter(svc)
	chatBot := bot.New(telegramAPI, router, renderer, botNotifier, botConfig)

	telegramAuth := auth.NewTelegramAuth(cfg.Telegram.BotToken)
	if cfg.Server.InsecureSkipInitData {
		telegramAuth = auth.NewInsecureTelegramAuth(cfg.Telegram.BotToken)
	}
	authorization := middleware.NewAuthorization(svc.Moderation)

	engine := gin.New()
	engine.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	engine.Use(cors.New(config))

	a := engine.Group("/api/v1")
	api.NewHealthRoutes(a, svc)
	api.NewUserRoutes(a, svc, telegramAuth)
	api.NewDailyRoutes(a, svc, telegramAuth)
	api.NewTaskRoutes(a, svc, telegramAuth)
	api.NewNoticeRoutes(a, hub, telegramAuth)
	api.NewAdminRoutes(a, svc, telegramAuth, authorization)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		zapLogger.Info("Starting server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		chatBot.Run(ctx)
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down server", zap.Error(err))
	}
	<-botDone

	if health := store.Health(); health.Divergent {
		zapLogger.Warn("Ledger was not persisted after the last change",
			zap.Int64("persist_failures", health.PersistFailures),
			zap.String("last_error", health.LastError))
	}
}

func newBackend(ctx context.Context, cfg LedgerConfig) (repository.Backend, func(), error) {
	switch cfg.Driver {
	case driverPostgres:
		backend, err := repository.NewPostgresBackend(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { backend.Close() }, nil
	default:
		return repository.NewFileBackend(cfg.Path, cfg.BackupPath), func() {}, nil
	}
}
