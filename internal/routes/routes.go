package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itxfb/Cohere-sub000/internal/config"
	"github.com/itxfb/Cohere-sub000/internal/handlers"
	"github.com/itxfb/Cohere-sub000/internal/middleware"
	"github.com/itxfb/Cohere-sub000/internal/repository"
	"github.com/itxfb/Cohere-sub000/internal/services"
)

// RegisterRoutes wires the booking surface. The notifier and calendar
// mirror are deployment-provided collaborators; a nil collaborator makes
// the dispatcher skip that channel.
func RegisterRoutes(
	app *fiber.App,
	cfg *config.Config,
	db *pgxpool.Pool,
	notifier services.BookingNotifier,
	calendar services.CalendarMirror,
) {
	contributionRepo := repository.NewContributionRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	jobRepo := repository.NewJobRepository(db)

	dispatcher := services.NewDispatcher(notifier, calendar, contributionRepo)
	releaseScheduler := services.NewQueueReleaseScheduler(jobRepo)
	bookingService := services.NewBookingService(
		contributionRepo,
		purchaseRepo,
		services.NewLedgerPaymentResolver(),
		releaseScheduler,
		dispatcher,
		cfg.EscrowReleaseDelay,
		cfg.AffiliateReleaseDelay,
	)
	rescheduleService := services.NewRescheduleService(contributionRepo, dispatcher, cfg.SessionOffset)
	availabilityService := services.NewAvailabilityService(contributionRepo, cfg.SessionOffset)

	bookingHandler := handlers.NewBookingHandler(bookingService, rescheduleService, availabilityService)

	api := app.Group("/api")
	protected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	contributions := protected.Group("/contributions")
	contributions.Post("/:id/book", bookingHandler.BookSessionTimes)
	contributions.Post("/:id/revoke", bookingHandler.RevokeBooking)
	contributions.Post("/:id/reschedule", bookingHandler.Reschedule)
	contributions.Post("/:id/complete", bookingHandler.SetClassAsCompleted)
	contributions.Post("/:id/self-paced/complete", bookingHandler.SetSelfPacedClassAsCompleted)
	contributions.Put("/:id/availability", bookingHandler.ReplaceAvailability)
	contributions.Get("/:id/open-slots", bookingHandler.ListOpenSlots)
}
