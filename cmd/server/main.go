package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/itxfb/Cohere-sub000/internal/config"
	"github.com/itxfb/Cohere-sub000/internal/database"
	"github.com/itxfb/Cohere-sub000/internal/repository"
	"github.com/itxfb/Cohere-sub000/internal/routes"
	"github.com/itxfb/Cohere-sub000/internal/scheduler"
	"github.com/itxfb/Cohere-sub000/internal/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobRepo := repository.NewJobRepository(database.DB)
	releaseScheduler := scheduler.New(jobRepo, services.NewLogReleaseExecutor(), cfg.ReleasePollInterval)
	go releaseScheduler.Start(ctx)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	// Notification and calendar collaborators are deployment-specific;
	// running without them keeps bookings working with dispatch skipped.
	routes.RegisterRoutes(app, cfg, database.DB, nil, nil)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
