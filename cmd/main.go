package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polartar/vtvl-app-sub002/internal/blockchain"
	"github.com/polartar/vtvl-app-sub002/internal/config"
	"github.com/polartar/vtvl-app-sub002/internal/events"
	"github.com/polartar/vtvl-app-sub002/internal/handler"
	"github.com/polartar/vtvl-app-sub002/internal/repository"
	"github.com/polartar/vtvl-app-sub002/internal/scheduler"
	"github.com/polartar/vtvl-app-sub002/internal/service"
	"github.com/polartar/vtvl-app-sub002/pkg/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	scheduleRepo := repository.NewScheduleRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	runRepo := repository.NewRunRepository(db)

	bus := events.NewBus()

	scheduleSvc := service.NewScheduleService(scheduleRepo, recipientRepo, bus)
	withdrawalSvc := service.NewWithdrawalService(scheduleRepo, recipientRepo, withdrawalRepo, blockRepo, bus)
	reconcileSvc := service.NewReconcileService(scheduleRepo, recipientRepo, runRepo, bus, &cfg.Reconcile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, chainCfg := range cfg.GetEnabledChains() {
		chainCfg := chainCfg
		client, err := blockchain.NewClient(&chainCfg)
		if err != nil {
			logger.Error("Failed to create blockchain client:", chainCfg.ID, err)
			continue
		}
		defer client.Close()

		reconcileSvc.RegisterClient(chainCfg.ID, client)
		go startChainListener(ctx, chainCfg, client, withdrawalSvc, blockRepo, scheduleRepo)
	}

	reconScheduler := scheduler.NewReconcileScheduler(reconcileSvc, scheduleRepo, cfg.Chains, cfg.Reconcile.Cron)
	if err := reconScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler:", err)
	}
	defer reconScheduler.Stop()

	router := setupHTTPRouter(scheduleSvc, withdrawalSvc, reconcileSvc, reconScheduler, cfg, scheduleRepo, recipientRepo, withdrawalRepo, bus)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}

func startChainListener(ctx context.Context, chainCfg config.ChainConfig, client *blockchain.Client, withdrawalSvc *service.WithdrawalService, blockRepo *repository.BlockRepository, scheduleRepo *repository.ScheduleRepository) {
	// 从数据库获取最后处理的区块号
	lastProcessedBlock, err := blockRepo.GetLastProcessed(ctx, chainCfg.ID)
	if err != nil {
		logger.Error("Failed to get last processed block:", err)
		return
	}

	// 如果数据库中没有记录，使用配置文件中的StartBlock
	startBlock := lastProcessedBlock
	if startBlock == 0 && chainCfg.StartBlock > 0 {
		startBlock = chainCfg.StartBlock
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":             chainCfg.ID,
		"start_block":          startBlock,
		"last_processed_block": lastProcessedBlock,
		"config_start_block":   chainCfg.StartBlock,
	}).Info("启动提现监听器")

	listener := blockchain.NewWithdrawalListener(&chainCfg, client, blockRepo, scheduleRepo)
	defer listener.Stop()
	go listener.Start(ctx, startBlock)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-listener.GetEventChannel():
			timestamp, err := client.GetBlockTimestamp(ctx, event.BlockNum)
			if err != nil {
				logger.Error("Failed to get block timestamp:", err)
				continue
			}

			if err := withdrawalSvc.ProcessWithdrawal(ctx, chainCfg.ID, event, timestamp); err != nil {
				logger.Error("Failed to process withdrawal:", err)
			}
		}
	}
}

func setupHTTPRouter(scheduleSvc *service.ScheduleService, withdrawalSvc *service.WithdrawalService, reconcileSvc *service.ReconcileService, reconScheduler *scheduler.ReconcileScheduler, cfg *config.Config, scheduleRepo *repository.ScheduleRepository, recipientRepo *repository.RecipientRepository, withdrawalRepo *repository.WithdrawalRepository, bus *events.Bus) http.Handler {
	router := http.NewServeMux()

	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	recipientHandler := handler.NewRecipientHandler(recipientRepo, withdrawalRepo)
	reconcileHandler := handler.NewReconcileHandler(reconcileSvc, reconScheduler)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalSvc)
	statsHandler := handler.NewStatsHandler(scheduleRepo, withdrawalRepo, bus, cfg.Chains)

	router.HandleFunc("/api/schedules", scheduleHandler.Schedules)
	router.HandleFunc("/api/schedules/", scheduleHandler.ScheduleDetail)
	router.HandleFunc("/api/recipients/", recipientHandler.GetPortfolio)
	router.HandleFunc("/api/reconcile/run", reconcileHandler.TriggerReconcile)
	router.HandleFunc("/api/reconcile/", reconcileHandler.GetSummary)
	router.HandleFunc("/api/withdrawals/recent", withdrawalHandler.GetRecent)
	router.HandleFunc("/api/stats", statsHandler.GetStats)
	router.HandleFunc("/health", handler.HandleHealth)

	return router
}
