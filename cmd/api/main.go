package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/replugit/opsgo/internal/config"
	"github.com/replugit/opsgo/internal/database"
	"github.com/replugit/opsgo/internal/events"
	"github.com/replugit/opsgo/internal/handlers"
	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/platform"
	"github.com/replugit/opsgo/internal/platform/walmartca"
	"github.com/replugit/opsgo/internal/services/customers"
	"github.com/replugit/opsgo/internal/services/inventory"
	"github.com/replugit/opsgo/internal/services/manifests"
	"github.com/replugit/opsgo/internal/services/orders"
	"github.com/replugit/opsgo/internal/services/platformsync"
	"github.com/replugit/opsgo/internal/services/qc"
	"github.com/replugit/opsgo/internal/services/receiving"
	"github.com/replugit/opsgo/internal/services/warranty"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// 2. Initialize database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-migrate schema
	log.Info("🚀 Synchronizing database schema...")
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Warnf("Migration warning: %v", err)
	} else {
		log.Info("✅ Schema synchronized successfully")
	}

	// 4. Wire application services
	customerSvc := customers.NewService(db.DB, log)
	orderSvc := orders.NewService(db.DB, log)
	inventorySvc := inventory.NewService(db.DB, log)
	warrantySvc := warranty.NewService(db.DB, log, cfg.Warranty)
	qcSvc := qc.NewService(db.DB, log, inventorySvc)
	receivingSvc := receiving.NewService(db.DB, log, qcSvc, inventorySvc)
	manifestSvc := manifests.NewService(db.DB, log)

	// Shipping an order starts warranty coverage
	orderSvc.SetWarrantyCreator(warrantySvc)

	// 5. Platform adapters
	registry := platform.NewRegistry()
	if cfg.Walmart.ClientID != "" {
		adapter := walmartca.NewAdapter(walmartca.Config{
			ClientID:     cfg.Walmart.ClientID,
			ClientSecret: cfg.Walmart.ClientSecret,
			BaseURL:      cfg.Walmart.BaseURL,
			ChannelType:  cfg.Walmart.ChannelType,
		}, log)
		if err := registry.Register(adapter); err != nil {
			log.Warnf("Failed to register Walmart CA adapter: %v", err)
		} else {
			log.Info("✅ Walmart CA adapter registered")
		}
	}

	syncSvc := platformsync.NewService(db.DB, log, registry,
		customerSvc, orderSvc, inventorySvc, platformsync.Config{
			Interval: cfg.Walmart.SyncInterval,
			Enabled:  cfg.Walmart.SyncEnabled,
		})
	syncSvc.Start()

	// 6. Warranty expiration sweep
	warrantySvc.Start()

	// 7. Events hub for dashboards
	hub := events.NewHub(log)
	go hub.Run()

	// 8. HTTP router
	router := handlers.NewRouter(db.DB, cfg, log, handlers.Services{
		Customers:  customerSvc,
		Orders:     orderSvc,
		Inventory:  inventorySvc,
		Receiving:  receivingSvc,
		Manifests:  manifestSvc,
		QC:         qcSvc,
		Warranties: warrantySvc,
	}, hub)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Infof("🚀 Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Infof("Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}

	syncSvc.Stop()
	warrantySvc.Stop()

	log.Info("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Errorf("Database close error: %v", err)
	}

	log.Info("✅ Shutdown complete")
}
