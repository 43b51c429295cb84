package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	backtestconfig "ashare-sentinel/internal/backtest/config"
	"ashare-sentinel/internal/backtest/service"
	"ashare-sentinel/internal/condition"
	"ashare-sentinel/internal/feature"
	"ashare-sentinel/internal/repository"
	"ashare-sentinel/pkg/logger"
	"ashare-sentinel/pkg/postgres"
	"ashare-sentinel/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	startDate  string
	endDate    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs a backtest over a date range",
	Run:   runBacktest,
}

func runBacktest(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cfg, err := backtestconfig.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if startDate != "" {
		cfg.Backtest.StartDate = startDate
	}
	if endDate != "" {
		cfg.Backtest.EndDate = endDate
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	start, err := time.ParseInLocation("2006-01-02", cfg.Backtest.StartDate, utils.LocationCST())
	if err != nil {
		appLogger.Fatal("Invalid start_date", zap.Error(err))
	}
	end, err := time.ParseInLocation("2006-01-02", cfg.Backtest.EndDate, utils.LocationCST())
	if err != nil {
		appLogger.Fatal("Invalid end_date", zap.Error(err))
	}
	if cfg.Backtest.RunID == "" {
		cfg.Backtest.RunID = fmt.Sprintf("run-%s", time.Now().Format("20060102-150405"))
	}

	appLogger.Info("Starting Backtest",
		zap.String("run_id", cfg.Backtest.RunID),
		zap.String("start", cfg.Backtest.StartDate),
		zap.String("end", cfg.Backtest.EndDate))

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

	stocksRepo := repository.NewStocksRepository(db.DB)
	barRepo := repository.NewDailyBarRepository(db.DB)
	intradayRepo := repository.NewIntradayBarRepository(db.DB)
	metricRepo := repository.NewMetricRepository(db.DB)
	calendarRepo := repository.NewTradingCalendarRepository(db.DB)
	hitRepo := repository.NewBacktestHitRepository(db.DB)

	store := feature.NewStore(barRepo, intradayRepo, metricRepo, cfg.Indicator,
		condition.MinBars(cfg.Conditions, cfg.Indicator))

	runner := service.NewRunner(cfg, appLogger, store, stocksRepo, barRepo, calendarRepo, hitRepo)
	report, err := runner.Run(ctx, start, end)
	if err != nil {
		appLogger.Fatal("Backtest failed", zap.Error(err))
	}

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		appLogger.Fatal("Failed to marshal report", zap.Error(err))
	}
	fmt.Println(string(output))
}

func main() {
	rootCmd := &cobra.Command{Use: "backtest-service"}

	runCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-backtest.yaml", "Path to the configuration file")
	runCmd.Flags().StringVar(&startDate, "start", "", "Start date (2006-01-02), overrides config")
	runCmd.Flags().StringVar(&endDate, "end", "", "End date (2006-01-02), overrides config")

	rootCmd.AddCommand(runCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing backtest-service CLI: %s\n", err)
		os.Exit(1)
	}
}
