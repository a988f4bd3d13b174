package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

// clientRescheduleCutoff is how far before the slot start a client may
// still move their own booking.
const clientRescheduleCutoff = 24 * time.Hour

const (
	ActorRoleCoach  = "coach"
	ActorRoleClient = "client"
)

type rescheduleDispatcher interface {
	Rescheduled(ctx context.Context, contribution *models.Contribution, booked models.BookedTime, notes string)
}

type RescheduleInput struct {
	ContributionID       int64
	BookedTimeID         string
	TargetAvailabilityID string
	Notes                string
	ActorID              int64
	ActorRole            string
}

// RescheduleService moves a confirmed one-to-one booking between
// availability windows as a single persisted transition.
type RescheduleService struct {
	contributionRepo contributionStore
	dispatcher       rescheduleDispatcher
	sessionOffset    time.Duration
	now              func() time.Time
}

func NewRescheduleService(
	contributionRepo contributionStore,
	dispatcher rescheduleDispatcher,
	sessionOffset time.Duration,
) *RescheduleService {
	return &RescheduleService{
		contributionRepo: contributionRepo,
		dispatcher:       dispatcher,
		sessionOffset:    sessionOffset,
		now:              time.Now,
	}
}

func (s *RescheduleService) Reschedule(ctx context.Context, input RescheduleInput) error {
	contribution, err := s.contributionRepo.GetByID(ctx, input.ContributionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrContributionNotFound
		}
		return err
	}
	if contribution.Type != models.ContributionOneToOne {
		return fmt.Errorf("%w: contribution has no one-to-one calendar", ErrInvalidInput)
	}

	_, booked := contribution.FindBookedTime(input.BookedTimeID)
	if booked == nil {
		return fmt.Errorf("%w: booking not found", ErrContributionNotFound)
	}

	now := s.now().UTC()
	if err := s.checkActor(contribution, booked, input, now); err != nil {
		return err
	}

	if booked.ParticipantID == 0 {
		return fmt.Errorf("%w: slot has no participant to reschedule", ErrValidation)
	}
	if booked.IsCompleted {
		return fmt.Errorf("%w: slot is already completed", ErrValidation)
	}

	// Destination must still be among the freshly computed open slots;
	// stale ids from an out-of-date listing are rejected here.
	var destination *models.AvailabilityTime
	for _, slot := range openSlots(contribution, now, s.sessionOffset) {
		if slot.ID == input.TargetAvailabilityID {
			copied := slot
			destination = &copied
			break
		}
	}
	if destination == nil {
		return fmt.Errorf("%w: selected slot is no longer available", ErrValidation)
	}

	if err := contribution.MoveBookedTime(input.BookedTimeID, *destination); err != nil {
		switch {
		case errors.Is(err, models.ErrBookingNotFound):
			return fmt.Errorf("%w: booking not found", ErrContributionNotFound)
		case errors.Is(err, models.ErrSlotBooked):
			return fmt.Errorf("%w: selected slot is no longer available", ErrValidation)
		}
		return err
	}

	if err := s.contributionRepo.Save(ctx, contribution); err != nil {
		if isVersionConflict(err) {
			return ErrConflict
		}
		return err
	}

	if s.dispatcher != nil {
		_, moved := contribution.FindBookedTime(input.BookedTimeID)
		if moved != nil {
			movedCopy := *moved
			go func() {
				dctx, cancel := dispatchContext(ctx)
				defer cancel()
				s.dispatcher.Rescheduled(dctx, contribution, movedCopy, input.Notes)
			}()
		}
	}
	return nil
}

func (s *RescheduleService) checkActor(
	contribution *models.Contribution,
	booked *models.BookedTime,
	input RescheduleInput,
	now time.Time,
) error {
	switch input.ActorRole {
	case ActorRoleCoach:
		if !contribution.IsOwnedBy(input.ActorID) {
			return ErrForbidden
		}
		return nil
	case ActorRoleClient:
		if booked.ParticipantID != input.ActorID {
			return ErrForbidden
		}
		if booked.IsCompleted {
			return fmt.Errorf("%w: slot is already completed", ErrValidation)
		}
		if !booked.StartTime.UTC().After(now.Add(clientRescheduleCutoff)) {
			return fmt.Errorf(
				"%w: sessions starting within 24 hours can no longer be rescheduled",
				ErrValidation,
			)
		}
		return nil
	default:
		return ErrForbidden
	}
}
