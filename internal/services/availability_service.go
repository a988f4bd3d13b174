package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

type contributionLister interface {
	contributionStore
	ListByCoach(ctx context.Context, coachID int64) ([]models.Contribution, error)
}

// AvailabilityService owns the write-time validation of one-to-one
// availability windows and the open-slot view both the listing endpoint
// and the rescheduler read from.
type AvailabilityService struct {
	contributionRepo contributionLister
	sessionOffset    time.Duration
	now              func() time.Time
}

func NewAvailabilityService(
	contributionRepo contributionLister,
	sessionOffset time.Duration,
) *AvailabilityService {
	return &AvailabilityService{
		contributionRepo: contributionRepo,
		sessionOffset:    sessionOffset,
		now:              time.Now,
	}
}

// ReplaceAvailability swaps a one-to-one contribution's open windows for a
// new set. The new windows are checked against each other and against the
// closure of the coach's busy windows across all their contributions; any
// overlap aborts the whole write. Windows still holding bookings are kept.
func (s *AvailabilityService) ReplaceAvailability(
	ctx context.Context,
	actorID int64,
	contributionID int64,
	windows []models.TimeRange,
) (*models.Contribution, error) {
	contribution, err := s.contributionRepo.GetByID(ctx, contributionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContributionNotFound
		}
		return nil, err
	}
	if contribution.Type != models.ContributionOneToOne {
		return nil, fmt.Errorf("%w: contribution has no availability calendar", ErrInvalidInput)
	}
	if !contribution.IsOwnedBy(actorID) {
		return nil, ErrForbidden
	}
	for _, window := range windows {
		if !window.EndTime.After(window.StartTime) {
			return nil, fmt.Errorf("%w: window %s ends before it starts", ErrValidation, window)
		}
	}

	closure, err := s.busyClosure(ctx, contribution)
	if err != nil {
		return nil, err
	}
	if a, b, conflict := models.FirstConflict(windows, closure); conflict {
		return nil, fmt.Errorf("%w: window %s overlaps %s", ErrValidation, a, b)
	}

	kept := make([]models.AvailabilityTime, 0, len(windows))
	for i := range contribution.AvailabilityTimes {
		if len(contribution.AvailabilityTimes[i].BookedTimes) > 0 {
			kept = append(kept, contribution.AvailabilityTimes[i])
		}
	}
	for _, window := range windows {
		kept = append(kept, models.AvailabilityTime{
			ID:        uuid.NewString(),
			StartTime: window.StartTime.UTC(),
			EndTime:   window.EndTime.UTC(),
		})
	}
	contribution.AvailabilityTimes = kept

	if err := s.contributionRepo.Save(ctx, contribution); err != nil {
		if isVersionConflict(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return contribution, nil
}

// OpenSlots returns the contribution's currently bookable windows: no
// booking attached and starting far enough in the future per the session
// offset rule, computed in UTC.
func (s *AvailabilityService) OpenSlots(contribution *models.Contribution) []models.AvailabilityTime {
	return openSlots(contribution, s.now().UTC(), s.sessionOffset)
}

// ListOpenSlots loads a one-to-one contribution and computes its open
// windows fresh.
func (s *AvailabilityService) ListOpenSlots(
	ctx context.Context,
	contributionID int64,
) ([]models.AvailabilityTime, error) {
	contribution, err := s.contributionRepo.GetByID(ctx, contributionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContributionNotFound
		}
		return nil, err
	}
	if contribution.Type != models.ContributionOneToOne {
		return nil, fmt.Errorf("%w: contribution has no availability calendar", ErrInvalidInput)
	}
	return s.OpenSlots(contribution), nil
}

func openSlots(
	contribution *models.Contribution,
	now time.Time,
	offset time.Duration,
) []models.AvailabilityTime {
	horizon := now.Add(offset)
	open := make([]models.AvailabilityTime, 0, len(contribution.AvailabilityTimes))
	for i := range contribution.AvailabilityTimes {
		slot := &contribution.AvailabilityTimes[i]
		if len(slot.BookedTimes) > 0 {
			continue
		}
		if !slot.StartTime.UTC().After(horizon) {
			continue
		}
		open = append(open, *slot)
	}
	return open
}

// busyClosure gathers every window the coach already occupies, excluding
// unbooked windows of the contribution being rewritten.
func (s *AvailabilityService) busyClosure(
	ctx context.Context,
	target *models.Contribution,
) ([]models.TimeRange, error) {
	contributions, err := s.contributionRepo.ListByCoach(ctx, target.CoachID)
	if err != nil {
		return nil, err
	}

	var closure []models.TimeRange
	for i := range contributions {
		c := &contributions[i]
		if c.ID == target.ID {
			for j := range c.AvailabilityTimes {
				if len(c.AvailabilityTimes[j].BookedTimes) > 0 {
					closure = append(closure, c.AvailabilityTimes[j].Range())
				}
			}
			continue
		}
		closure = append(closure, c.BusyRanges()...)
	}
	return closure, nil
}
