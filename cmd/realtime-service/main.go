package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ashare-sentinel/internal/condition"
	"ashare-sentinel/internal/feature"
	realtimeconfig "ashare-sentinel/internal/realtime/config"
	"ashare-sentinel/internal/realtime/delivery/consumer"
	"ashare-sentinel/internal/realtime/service"
	"ashare-sentinel/internal/repository"
	"ashare-sentinel/pkg/logger"
	"ashare-sentinel/pkg/postgres"
	"ashare-sentinel/pkg/redis"
	"ashare-sentinel/pkg/telegram"
	"ashare-sentinel/pkg/utils"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the realtime alert service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := realtimeconfig.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Realtime Service", zap.String("name", cfg.App.Name))

	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	stocksRepo := repository.NewStocksRepository(db.DB)
	barRepo := repository.NewDailyBarRepository(db.DB)
	intradayRepo := repository.NewIntradayBarRepository(db.DB)
	metricRepo := repository.NewMetricRepository(db.DB)
	alertRepo := repository.NewAlertRecordRepository(db.DB)

	store := feature.NewStore(barRepo, intradayRepo, metricRepo, cfg.Indicator,
		condition.MinBars(cfg.Conditions, cfg.Indicator))

	telegramNotifier, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram notifier", zap.Error(err))
	}
	sink := service.NewAlertNotifier(appLogger, alertRepo, telegramNotifier, cfg.Realtime.AlertRatePerSecond)

	feed := consumer.NewQuoteStreamConsumer(cfg, redisClient.Client, appLogger)
	orchestrator := service.NewOrchestrator(cfg, appLogger, store, stocksRepo, feed, sink)

	if err := orchestrator.PrepareSession(ctx, utils.TimeNowCST()); err != nil {
		appLogger.Fatal("Failed to prepare session", zap.Error(err))
	}
	if err := orchestrator.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start orchestrator", zap.Error(err))
	}

	scheduler := cron.New(cron.WithLocation(utils.LocationCST()))
	if _, err := scheduler.AddFunc(cfg.Realtime.SessionPrepareCron, func() {
		if err := orchestrator.PrepareSession(ctx, utils.TimeNowCST()); err != nil {
			appLogger.Error("Scheduled session prepare failed", logger.ErrorField(err))
		}
	}); err != nil {
		appLogger.Fatal("Invalid session_prepare_cron", zap.Error(err))
	}
	if _, err := scheduler.AddFunc(cfg.Realtime.MetricRefreshCron, func() {
		orchestrator.RefreshMetrics(ctx)
	}); err != nil {
		appLogger.Fatal("Invalid metric_refresh_cron", zap.Error(err))
	}
	scheduler.Start()

	appLogger.Info("Realtime service started. Waiting for quotes...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down realtime service...")
	scheduler.Stop()
	cancel()
	orchestrator.Stop()
	appLogger.Info("Realtime service stopped.")
}

func main() {
	rootCmd := &cobra.Command{Use: "realtime-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-realtime.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing realtime-service CLI: %s\n", err)
		os.Exit(1)
	}
}
