package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/yuchilin/storeledger/internal/application/service"
	"github.com/yuchilin/storeledger/internal/config"
	"github.com/yuchilin/storeledger/internal/einvoice"
	"github.com/yuchilin/storeledger/internal/importer"
	"github.com/yuchilin/storeledger/internal/infrastructure/external/mof"
	"github.com/yuchilin/storeledger/internal/infrastructure/persistence/repository"
	"github.com/yuchilin/storeledger/internal/infrastructure/persistence/sqlite"
	httpiface "github.com/yuchilin/storeledger/internal/interfaces/http"
	"github.com/yuchilin/storeledger/pkg/database"
	"github.com/yuchilin/storeledger/pkg/utils"
)

func main() {
	// Local .env files override nothing already in the environment.
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting store ledger service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	txManager := sqlite.NewDB(db.DB, logger)
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	transactionRepo := repository.NewTransactionRepository(db.DB, logger)
	summaryRepo := repository.NewSummaryRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)

	verifier := mof.NewClient(mof.Config{
		Endpoint:   cfg.MOF.Endpoint,
		AppID:      cfg.MOF.AppID,
		APIKey:     cfg.MOF.APIKey,
		Timeout:    cfg.MOF.Timeout,
		MaxRetries: cfg.MOF.MaxRetries,
		Backoff:    cfg.MOF.Backoff,
	}, logger)

	svcLogger := &zapKVLogger{sugar: logger.Sugar()}

	// Import and reconciliation must serialize per date through the same
	// lock table.
	dateLocks := service.NewDateLocks()

	invoiceService := service.NewInvoiceService(
		invoiceRepo, verifier, einvoice.NewValidator(nil), txManager, svcLogger)
	importService := service.NewImportService(
		transactionRepo, txManager, importer.NewNormalizer(nil), dateLocks, svcLogger)
	reconcileService := service.NewReconcileService(
		transactionRepo, summaryRepo, auditRepo, txManager, dateLocks,
		service.ReconcileConfig{
			StartingFloat:  cfg.Reconcile.StartingFloatDecimal(),
			AlertThreshold: cfg.Reconcile.AlertThresholdDecimal(),
		},
		svcLogger, nil)

	server := httpiface.NewServer(httpiface.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, invoiceService, importService, reconcileService, svcLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}

// zapKVLogger adapts zap's sugared logger to the keysAndValues interfaces the
// service and http layers expect.
type zapKVLogger struct {
	sugar *zap.SugaredLogger
}

func (l *zapKVLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *zapKVLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *zapKVLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}
