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

	"grocery-service/config"
	"grocery-service/internal/api"
	"grocery-service/internal/broker"
	"grocery-service/internal/models"
	"grocery-service/internal/redisclient"
	"grocery-service/internal/service"
	"grocery-service/internal/store"
	"grocery-service/internal/util"
	"grocery-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting grocery service")

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	if err := db.EnsureLoyaltyRules(ctx, models.LoyaltyRules{
		MinOrderCount: cfg.Business.LoyaltyMinOrders,
		Rate:          cfg.Business.LoyaltyRate,
	}); err != nil {
		log.Fatalf("Failed to seed loyalty rules: %v", err)
	}

	ready := map[string]api.Pinger{"database": db}

	// checkout runs without the duplicate-submission guard when redis is down
	var guard service.CheckoutGuard
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, checkout locks and idempotency disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		guard = redisClient
		ready["redis"] = redisClient
		logger.Info("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer)

	registry := service.NewRegistryService(db)
	services := api.Services{
		Catalog:  service.NewCatalogService(db),
		Carts:    service.NewCartService(db, registry, cfg.Business),
		Orders:   service.NewOrderService(db, registry, guard, eventPublisher, cfg.Business),
		Ratings:  service.NewRatingService(db),
		Registry: registry,
		Users:    service.NewUserService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Reports:  service.NewReportService(db),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	ledgerConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	ledgerWorker := worker.NewSalesLedgerWorker(ledgerConsumer, services.Reports)
	go func() {
		if err := ledgerWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Sales ledger worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(services, ready)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
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
	if err := ledgerWorker.Stop(); err != nil {
		logger.Error("Error stopping sales ledger worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
