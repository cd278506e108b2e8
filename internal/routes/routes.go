package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/config"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/handlers"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/middleware"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/models"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/repository"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/scheduler"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/services"
)

// Services bundles the wired application services so main can hand the same
// instances to both the HTTP layer and the scheduler.
type Services struct {
	Sessions  *services.SessionService
	Sweeps    *services.SweepService
	Reminders *services.ReminderService
}

// BuildServices wires repositories and collaborators into the application
// services.
func BuildServices(cfg *config.Config, db *pgxpool.Pool) *Services {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	slotRepo := repository.NewTimeSlotRepository(db)
	classRepo := repository.NewClassRepository(db)

	var meetings services.MeetingProvider = services.NewZoomClient(
		cfg.ZoomAccountID,
		cfg.ZoomClientID,
		cfg.ZoomClientSecret,
	)
	var notifier services.Notifier = services.NewMailNotifier(
		cfg.MailAPIURL,
		cfg.MailAPIKey,
		cfg.MailFrom,
	)
	loc := cfg.Location()

	return &Services{
		Sessions:  services.NewSessionService(db, sessionRepo, paymentRepo, slotRepo, userRepo, meetings, notifier),
		Sweeps:    services.NewSweepService(sessionRepo, paymentRepo, classRepo, userRepo, notifier, loc),
		Reminders: services.NewReminderService(sessionRepo, classRepo, userRepo, meetings, notifier, loc),
	}
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, svcs *Services, sched *scheduler.Scheduler) {
	userRepo := repository.NewUserRepository(db)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	sessionHandler := handlers.NewSessionHandler(svcs.Sessions)
	opsHandler := handlers.NewOpsHandler(svcs.Sweeps, svcs.Reminders, sched)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	sessions := authProtected.Group("/sessions")
	sessions.Post("", sessionHandler.Book)
	sessions.Get("", sessionHandler.List)
	sessions.Get("/:id", sessionHandler.Get)
	sessions.Post("/:id/start", sessionHandler.Start)
	sessions.Post("/:id/complete", sessionHandler.Complete)
	sessions.Post("/:id/cancel", sessionHandler.Cancel)
	sessions.Put("/:id/status", sessionHandler.UpdateStatus)

	ops := authProtected.Group("/ops", middleware.RequireRole(models.RoleAdmin))
	ops.Post("/sweeps/expiry", opsHandler.RunExpirySweep)
	ops.Post("/sweeps/completion", opsHandler.RunCompletionSweep)
	ops.Post("/sweeps/enrollments", opsHandler.RunEnrollmentSweep)
	ops.Post("/reminders/:hours", opsHandler.TriggerReminder)
	ops.Get("/scheduler", opsHandler.SchedulerStatus)
}
