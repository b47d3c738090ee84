package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/config"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/api"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/broker"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/redisclient"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/service"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/store"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/util"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting proveedor-tienda API")

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	backend, err := openBackend(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open record backend", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}

	var (
		locker      store.Locker
		idempotency service.IdempotencyStore = service.NewMemoryIdempotency(cfg.Redis.IdempotencyTTL)
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.LockTTL, cfg.Redis.IdempotencyTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

		locker = redisClient
		idempotency = redisClient
	}

	st := store.NewStore(backend, locker)
	defer st.Close()

	var seed *store.Seed
	if cfg.Storage.Seed {
		seed, err = service.DefaultSeed(time.Now())
		if err != nil {
			logger.Fatal("Failed to build seed data", zap.Error(err))
		}
	}
	if err := st.Init(context.Background(), seed); err != nil {
		logger.Fatal("Failed to initialize records", zap.Error(err))
	}
	logger.Info("Record store ready", zap.String("backend", cfg.Storage.Backend))

	var eventPublisher broker.Publisher = broker.NopPublisher{}
	var stockWorker *worker.StockAlertWorker

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSolicitudes)
		defer producer.Close()
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicSolicitudes))

		eventPublisher = broker.NewEventPublisher(producer)

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSolicitudes, cfg.Kafka.ConsumerGroup)
		stockWorker = worker.NewStockAlertWorker(consumer)
		go func() {
			if err := stockWorker.Start(workerCtx); err != nil {
				logger.Error("Stock alert worker error", zap.Error(err))
			}
		}()
	}

	catalog := service.NewCatalogService(st)
	directory := service.NewDirectoryService(st)
	ledger := service.NewLedgerService(st, eventPublisher, idempotency)
	engine := service.NewApprovalEngine(st, eventPublisher, cfg.Business.LowStockThreshold)
	stats := service.NewStatsService(st, cfg.Business.LowStockThreshold)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(catalog, directory, ledger, engine, stats, cfg.Auth)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if stockWorker != nil {
		stockWorker.Stop()
	}

	logger.Info("Server exited")
}

func openBackend(cfg config.StorageConfig) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return store.NewFileBackend(cfg.DataDir)
	case config.BackendPostgres:
		backend, err := store.NewPostgresBackend(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := backend.Migrate(ctx); err != nil {
			backend.Close()
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
