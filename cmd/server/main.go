package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/api"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/config"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/database"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/repository"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/scheduler"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/service"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/solver"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Apply schema migrations
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Printf("Connected to database: %s", cfg.Database.Path)

	// Create repositories
	entityRepo := repository.NewEntityRepository(db)
	cashFlowRepo := repository.NewCashFlowRepository(db)
	ownershipRepo := repository.NewOwnershipRepository(db)
	irrRepo := repository.NewIRRRepository(db)

	// Solver bounds from configuration
	solverOpts := solver.DefaultOptions()
	solverOpts.NewtonMaxIter = cfg.Engine.NewtonMaxIter
	solverOpts.BisectMaxIter = cfg.Engine.BisectMaxIter

	// Create services
	systemService := service.NewSystemService(db)
	cashFlowService := service.NewCashFlowService(cashFlowRepo)
	aggregationService := service.NewAggregationService(entityRepo, ownershipRepo, cashFlowService)
	coordinator := service.NewCoordinator(cfg.Engine.Workers)
	cacheService := service.NewCacheService(irrRepo, entityRepo, aggregationService, coordinator, solverOpts)
	cascadeService := service.NewCascadeService(entityRepo, irrRepo, cacheService, coordinator)
	irrService := service.NewIRRService(
		cacheService,
		cascadeService,
		aggregationService,
		irrRepo,
		solverOpts,
		time.Duration(cfg.Engine.ComputeWaitMS)*time.Millisecond,
	)

	// Start the refresh sweep scheduler
	sched := scheduler.New(irrRepo, cacheService)
	if err := sched.Start(cfg.Engine.RefreshCron); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Create router
	router := api.NewRouter(systemService, irrService, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
