package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bank/internal/app/accounts"
	"bank/internal/app/lending"
	"bank/internal/app/loginguard"
	"bank/internal/app/transfers"
	"bank/internal/auth"
	"bank/internal/config"
	api_http "bank/internal/handler/http/api"
	kafka_handler "bank/internal/handler/kafka"
	"bank/internal/infrastructure/database"
	kafka_infra "bank/internal/infrastructure/kafka"
	"bank/internal/outbox"
	"bank/internal/repository"
	"bank/internal/repository/memory"
	"bank/internal/util"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func ensureKafkaTopics(ctx context.Context, brokerURLs []string, topics []string, logger *zap.Logger) error {
	conn, err := kafka.DialContext(ctx, "tcp", brokerURLs[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker for admin operations: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfigs := make([]kafka.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}

	if err := controllerConn.CreateTopics(topicConfigs...); err != nil {
		if errors.Is(err, kafka.TopicAlreadyExists) {
			logger.Info("Kafka topics already exist, skipping creation", zap.Strings("topics", topics))
			return nil
		}
		return fmt.Errorf("failed to create Kafka topics: %w", err)
	}
	logger.Info("Kafka topics ensured", zap.Strings("topics", topics))
	return nil
}

func connectPostgres(cfg config.Config, logger *zap.Logger) (*sql.DB, error) {
	dbConfig := database.DBConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	const maxRetries = 10
	retryDelay := 5 * time.Second

	var err error
	for i := 0; i < maxRetries; i++ {
		var db *sql.DB
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			logger.Info("Connected to PostgreSQL")
			return db, nil
		}
		logger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_in", retryDelay),
			zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", maxRetries, err)
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, relying on environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync() //nolint:errcheck
	appLogger.Info("Bank service starting...", zap.String("storage_driver", cfg.StorageDriver))
	if cfg.FileWarning != nil {
		appLogger.Warn("Using environment values only", zap.Error(cfg.FileWarning))
	}

	clock := util.SystemClock{}
	ids := util.UUIDGenerator{}

	var store repository.Store
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store = memory.NewStore(memory.WithClock(clock))
		appLogger.Warn("Using in-memory storage; data is lost on exit")
	default:
		db, err := connectPostgres(cfg, appLogger)
		if err != nil {
			appLogger.Fatal("Database unavailable", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				appLogger.Error("Error closing database connection", zap.Error(err))
			} else {
				appLogger.Info("Database connection closed.")
			}
		}()

		if cfg.MigrationsEnabled {
			appLogger.Info("Running database migrations...")
			if err := database.RunMigrations(cfg.GetDBMigrationConnectionString(), appLogger); err != nil {
				appLogger.Fatal("Failed to run database migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(db, appLogger.With(zap.String("component", "PostgresStore")))
	}

	feeRate, err := cfg.FeeRate()
	if err != nil {
		appLogger.Fatal("Invalid loan fee rate", zap.Error(err))
	}

	services := api_http.Services{
		Accounts:  accounts.NewAccountService(store, util.RandomAccountNumberGenerator{}, ids, clock, appLogger),
		Transfers: transfers.NewTransferService(store, ids, clock, appLogger),
		Lending:   lending.NewLendingService(store, ids, clock, feeRate, appLogger),
		Guard:     loginguard.NewGuard(store, loginguard.NewBcryptCredentials(0), ids, clock, appLogger),
		Tokens:    auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL, clock),
	}
	appLogger.Info("Bank services initialized.")

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api_http.NewRouter(services, cfg.GetCORSAllowedOrigins(), appLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctxMain, cancelMain := context.WithCancel(context.Background())
	defer cancelMain()
	var wg sync.WaitGroup

	kafkaBrokers := cfg.GetKafkaBrokers()
	var auditConsumer kafka_infra.Consumer
	if len(kafkaBrokers) > 0 {
		ctx, cancel := context.WithTimeout(ctxMain, 10*time.Second)
		err = ensureKafkaTopics(ctx, kafkaBrokers, []string{cfg.KafkaLedgerEventsTopic}, appLogger)
		cancel()
		if err != nil {
			appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
		}

		kafkaProducer := kafka_infra.NewProducer(kafkaBrokers, appLogger.With(zap.String("component", "KafkaProducer")))
		defer func() {
			if err := kafkaProducer.Close(); err != nil {
				appLogger.Error("Error closing Kafka producer", zap.Error(err))
			} else {
				appLogger.Info("Kafka producer closed.")
			}
		}()

		outboxProcessor := outbox.NewProcessor(
			store,
			kafkaProducer,
			cfg.KafkaLedgerEventsTopic,
			cfg.OutboxBatchSize,
			cfg.OutboxPollInterval,
			cfg.OutboxPollTimeout,
			appLogger.With(zap.String("component", "OutboxProcessor")),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			outboxProcessor.Start(ctxMain)
		}()

		if cfg.KafkaAuditEnabled {
			auditConsumer = kafka_infra.NewConsumer(
				kafkaBrokers,
				cfg.KafkaAuditGroup,
				cfg.KafkaLedgerEventsTopic,
				appLogger.With(zap.String("component", "AuditConsumer")),
			)
			handler := kafka_handler.AuditMessageHandler(appLogger.With(zap.String("component", "AuditHandler")))
			wg.Add(1)
			go func() {
				defer wg.Done()
				appLogger.Info("Starting ledger audit consumer...")
				if err := auditConsumer.Start(ctxMain, handler); err != nil {
					appLogger.Error("Ledger audit consumer failed", zap.Error(err))
				}
				appLogger.Info("Ledger audit consumer stopped.")
			}()
		}
	} else {
		appLogger.Warn("KAFKA_BROKER_URL is empty; outbox messages stay pending")
	}

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("Shutting down application...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	cancelMain()
	if auditConsumer != nil {
		if err := auditConsumer.Close(); err != nil {
			appLogger.Error("Error closing ledger audit consumer", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		appLogger.Warn("Background workers did not stop before the shutdown deadline")
	}

	appLogger.Info("Application gracefully shut down.")
}
