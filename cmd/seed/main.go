package main

import (
	"context"
	"flag"
	"log"
	"os"

	"grocery-service/config"
	"grocery-service/internal/models"
	"grocery-service/internal/seed"
	"grocery-service/internal/service"
	"grocery-service/internal/store"
	"grocery-service/internal/util"

	"go.uber.org/zap"
)

func main() {
	path := flag.String("file", "cmd/seed/catalog.yaml", "seed file to load")
	flag.Parse()

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	file, err := os.Open(*path)
	if err != nil {
		log.Fatalf("Failed to open seed file: %v", err)
	}
	defer file.Close()

	doc, err := seed.Load(file)
	if err != nil {
		log.Fatalf("Failed to load seed file: %v", err)
	}

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

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

	sum, err := seed.Apply(ctx, seed.Services{
		Users:    service.NewUserService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Catalog:  service.NewCatalogService(db),
		Registry: service.NewRegistryService(db),
	}, doc)
	if err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}

	logger.Info("Seeding complete",
		zap.String("file", *path),
		zap.Int("users", sum.Users),
		zap.Int("products", sum.Products),
		zap.Int("coupons", sum.Coupons))
}
