package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/config"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/database"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/routes"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/scheduler"
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

	svcs := routes.BuildServices(cfg, database.DB)

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.New(cfg.Location())
		registerJobs(sched, cfg, svcs)
		sched.Start()
		defer sched.Stop()
	}

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	routes.RegisterRoutes(app, cfg, database.DB, svcs, sched)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down")
		_ = app.Shutdown()
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, svcs *routes.Services) {
	jobs := []struct {
		name string
		spec string
		fn   scheduler.JobFunc
	}{
		{"session-expiry", cfg.ExpiryCron, func(ctx context.Context) error {
			_, err := svcs.Sweeps.ExpireOverdueSessions(ctx)
			return err
		}},
		{"session-completion", cfg.CompletionCron, func(ctx context.Context) error {
			_, err := svcs.Sweeps.CompleteOverrunSessions(ctx)
			return err
		}},
		{"reminder-24h", cfg.Reminder24Cron, func(ctx context.Context) error {
			_, err := svcs.Reminders.Run(ctx, 24)
			return err
		}},
		{"reminder-1h", cfg.Reminder1Cron, func(ctx context.Context) error {
			_, err := svcs.Reminders.Run(ctx, 1)
			return err
		}},
		{"enrollment-expiry", cfg.EnrollmentCron, func(ctx context.Context) error {
			_, err := svcs.Sweeps.InvalidateStaleEnrollments(ctx)
			return err
		}},
	}

	for _, j := range jobs {
		if err := sched.Register(j.name, j.spec, j.fn); err != nil {
			log.Fatalf("Failed to register job %s: %v", j.name, err)
		}
	}
}
