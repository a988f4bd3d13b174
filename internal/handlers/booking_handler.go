package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/itxfb/Cohere-sub000/internal/models"
	"github.com/itxfb/Cohere-sub000/internal/services"
)

type bookingApplicationService interface {
	BookSessionTimes(ctx context.Context, clientID int64, contributionID int64, requests []services.SlotRequest) (*services.BookingResult, error)
	RevokeBooking(ctx context.Context, contributionID int64, sessionTimeID string, clientID int64) error
	SetClassAsCompleted(ctx context.Context, actorID int64, contributionID int64, sessionTimeID string) ([]int64, error)
	SetSelfPacedClassAsCompleted(ctx context.Context, contributionID int64, sessionTimeID string, clientID int64) (int, error)
}

type rescheduleApplicationService interface {
	Reschedule(ctx context.Context, input services.RescheduleInput) error
}

type availabilityApplicationService interface {
	ReplaceAvailability(ctx context.Context, actorID int64, contributionID int64, windows []models.TimeRange) (*models.Contribution, error)
	ListOpenSlots(ctx context.Context, contributionID int64) ([]models.AvailabilityTime, error)
}

type BookingHandler struct {
	booking      bookingApplicationService
	reschedule   rescheduleApplicationService
	availability availabilityApplicationService
}

func NewBookingHandler(
	booking *services.BookingService,
	reschedule *services.RescheduleService,
	availability *services.AvailabilityService,
) *BookingHandler {
	return &BookingHandler{
		booking:      booking,
		reschedule:   reschedule,
		availability: availability,
	}
}

type bookSessionTimesRequest struct {
	Slots []services.SlotRequest `json:"slots"`
}

type revokeBookingRequest struct {
	SessionTimeID string `json:"session_time_id"`
	ClientID      int64  `json:"client_id"`
}

type rescheduleRequest struct {
	BookedTimeID         string `json:"booked_time_id"`
	TargetAvailabilityID string `json:"target_availability_id"`
	Notes                string `json:"notes"`
}

type completeClassRequest struct {
	SessionTimeID string `json:"session_time_id"`
}

type replaceAvailabilityRequest struct {
	Windows []availabilityWindow `json:"windows"`
}

type availabilityWindow struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *BookingHandler) BookSessionTimes(c *fiber.Ctx) error {
	actorID, role, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != "client" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	contributionID, err := parseContributionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid contribution id"})
	}

	var req bookSessionTimesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if len(req.Slots) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "slots must not be empty"})
	}

	result, err := h.booking.BookSessionTimes(c.Context(), actorID, contributionID, req.Slots)
	if err != nil {
		return mapBookingError(c, err)
	}
	return c.JSON(fiber.Map{"result": result})
}

func (h *BookingHandler) RevokeBooking(c *fiber.Ctx) error {
	actorID, role, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	contributionID, err := parseContributionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid contribution id"})
	}

	var req revokeBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.SessionTimeID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_time_id is required"})
	}

	clientID := actorID
	if role == "coach" && req.ClientID > 0 {
		clientID = req.ClientID
	}

	if err := h.booking.RevokeBooking(c.Context(), contributionID, req.SessionTimeID, clientID); err != nil {
		return mapBookingError(c, err)
	}
	return c.JSON(fiber.Map{"revoked": true})
}

func (h *BookingHandler) Reschedule(c *fiber.Ctx) error {
	actorID, role, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	contributionID, err := parseContributionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid contribution id"})
	}

	var req rescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.BookedTimeID) == "" || strings.TrimSpace(req.TargetAvailabilityID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "booked_time_id and target_availability_id are required",
		})
	}

	actorRole := services.ActorRoleClient
	if role == "coach" {
		actorRole = services.ActorRoleCoach
	}

	err = h.reschedule.Reschedule(c.Context(), services.RescheduleInput{
		ContributionID:       contributionID,
		BookedTimeID:         req.BookedTimeID,
		TargetAvailabilityID: req.TargetAvailabilityID,
		Notes:                strings.TrimSpace(req.Notes),
		ActorID:              actorID,
		ActorRole:            actorRole,
	})
	if err != nil {
		return mapBookingError(c, err)
	}
	return c.JSON(fiber.Map{"rescheduled": true})
}

func (h *BookingHandler) SetClassAsCompleted(c *fiber.Ctx) error {
	actorID, role, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != "coach" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	contributionID, err := parseContributionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid contribution id"})
	}

	var req completeClassRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.SessionTimeID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_time_id is required"})
	}

	affected, err := h.booking.SetClassAsCompleted(c.Context(), actorID, contributionID, req.SessionTimeID)
	if err != nil {
		return mapBookingError(c, err)
	}
	return c.JSON(fiber.Map{"affected_client_ids": affected})
}

func (h *BookingHandler) SetSelfPacedClassAsCompleted(c *fiber.Ctx) error {
	actorID, role, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != "client" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	contributionID, err := parseContributionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid contribution id"})
	}

	var req completeClassRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.SessionTimeID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_time_id is required"})
	}

	percent, err := h.booking.SetSelfPacedClassAsCompleted(c.Context(), contributionID, req.SessionTimeID, actorID)
	if err != nil {
		return mapBookingError(c, err)
	}
	return c.JSON(fiber.Map{"progress_percent": percent})
}

func (h *BookingHandler) ReplaceAvailability(c *fiber.Ctx) error {
	actorID, role, err := parseActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != "coach" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	contributionID, err := parseContributionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid contribution id"})
	}

	var req replaceAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	windows := make([]models.TimeRange, 0, len(req.Windows))
	for _, window := range req.Windows {
		start, err := time.Parse(time.RFC3339, strings.TrimSpace(window.StartTime))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "start_time must be a valid RFC3339 timestamp",
			})
		}
		end, err := time.Parse(time.RFC3339, strings.TrimSpace(window.EndTime))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "end_time must be a valid RFC3339 timestamp",
			})
		}
		windows = append(windows, models.TimeRange{StartTime: start, EndTime: end})
	}

	contribution, err := h.availability.ReplaceAvailability(c.Context(), actorID, contributionID, windows)
	if err != nil {
		return mapBookingError(c, err)
	}
	return c.JSON(fiber.Map{"contribution": contribution})
}

func (h *BookingHandler) ListOpenSlots(c *fiber.Ctx) error {
	if _, _, err := parseActor(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	contributionID, err := parseContributionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid contribution id"})
	}

	slots, err := h.availability.ListOpenSlots(c.Context(), contributionID)
	if err != nil {
		return mapBookingError(c, err)
	}
	return c.JSON(fiber.Map{"open_slots": slots})
}

func parseActor(c *fiber.Ctx) (int64, string, error) {
	rawID, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, "", errors.New("missing user id claim")
	}
	actorID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || actorID <= 0 {
		return 0, "", errors.New("invalid user id claim")
	}
	role, ok := c.Locals("role").(string)
	if !ok || role == "" {
		return 0, "", errors.New("missing role claim")
	}
	return actorID, role, nil
}

func parseContributionID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func mapBookingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrContributionNotFound),
		errors.Is(err, models.ErrSlotNotFound),
		errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrPurchaseRequired):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Conflicting update, please retry"})
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, models.ErrAlreadyCompleted):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
