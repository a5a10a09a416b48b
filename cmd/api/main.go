// cmd/api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/discount"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/domain/order"
	"github.com/your-org/storefront/internal/domain/payment"
	"github.com/your-org/storefront/internal/domain/shipping"
	"github.com/your-org/storefront/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront/internal/infrastructure/database/redis"
	"github.com/your-org/storefront/internal/interfaces/http"
	"github.com/your-org/storefront/internal/interfaces/http/routes"
	"github.com/your-org/storefront/internal/pkg/email"
	"github.com/your-org/storefront/internal/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog := logger.New(cfg)
	appLog.WithFields(map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Infof("Starting %s", cfg.App.Name)

	// Connect to database
	db, err := postgres.NewConnection(cfg)
	if err != nil {
		appLog.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	redisClient, err := redis.NewConnection(cfg)
	if err != nil {
		appLog.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	if err := db.Health(); err != nil {
		appLog.Fatalf("Database health check failed: %v", err)
	}
	if err := redisClient.Health(); err != nil {
		appLog.Fatalf("Redis health check failed: %v", err)
	}

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB())
	if err := migration.RunAutoMigrations(); err != nil {
		appLog.Fatalf("Database migration failed: %v", err)
	}
	if err := migration.CreateIndexes(); err != nil {
		appLog.Warnf("Index creation failed: %v", err)
	}

	// Build the service graph
	gormDB := db.GetDB()
	discounts := discount.NewService(gormDB)
	carts := cart.NewService(gormDB, cfg, discounts, appLog)
	inv := inventory.NewService(gormDB)
	gateway := payment.NewPaymobService(cfg, appLog)
	preps := order.NewPreparationStore(redisClient, cfg.Checkout.PreparationTTL)
	mailer := email.NewEmailService(cfg)
	shippingSvc := shipping.NewService(gormDB)
	orders := order.NewService(gormDB, cfg, carts, discounts, inv, gateway, preps, mailer, appLog)
	admin := order.NewAdminService(gormDB, cfg, inv, mailer, appLog)

	// Abandoned cart sweeper
	sweeper := cart.NewSweeper(gormDB, cfg, appLog)
	if err := sweeper.Start(); err != nil {
		appLog.Fatalf("Failed to start cart sweeper: %v", err)
	}
	defer sweeper.Stop()

	deps := &routes.Dependencies{
		Carts:    carts,
		Orders:   orders,
		Admin:    admin,
		Shipping: shippingSvc,
		Gateway:  gateway,
		Log:      appLog,
	}

	server := http.NewServer(cfg, db, redisClient, deps, appLog)

	go func() {
		if err := server.Start(); err != nil {
			appLog.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		appLog.Errorf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	appLog.Info("Server shutdown completed")
}
