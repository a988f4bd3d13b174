package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/itxfb/Cohere-sub000/internal/models"
	"github.com/itxfb/Cohere-sub000/internal/repository"
)

var (
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrContributionNotFound = errors.New("contribution not found")
	ErrPurchaseRequired     = errors.New("purchase required")
	ErrValidation           = errors.New("validation failed")
)

type contributionStore interface {
	GetByID(ctx context.Context, contributionID int64) (*models.Contribution, error)
	Save(ctx context.Context, contribution *models.Contribution) error
}

type purchaseStore interface {
	GetByContributionAndClient(ctx context.Context, contributionID, clientID int64) (*models.Purchase, error)
	SaveBookedClassIDs(ctx context.Context, paymentID int64, bookedClassIDs []string) error
}

type bookingDispatcher interface {
	BookingConfirmed(ctx context.Context, contribution *models.Contribution, clientID int64, slotIDs []string)
	BookingRevoked(ctx context.Context, contribution *models.Contribution, clientID int64, slotID string)
}

type BookingService struct {
	contributionRepo contributionStore
	purchaseRepo     purchaseStore
	resolver         PaymentStatusResolver
	scheduler        ReleaseScheduler
	dispatcher       bookingDispatcher
	escrowDelay      time.Duration
	affiliateDelay   time.Duration
}

func NewBookingService(
	contributionRepo contributionStore,
	purchaseRepo purchaseStore,
	resolver PaymentStatusResolver,
	scheduler ReleaseScheduler,
	dispatcher bookingDispatcher,
	escrowDelay time.Duration,
	affiliateDelay time.Duration,
) *BookingService {
	return &BookingService{
		contributionRepo: contributionRepo,
		purchaseRepo:     purchaseRepo,
		resolver:         resolver,
		scheduler:        scheduler,
		dispatcher:       dispatcher,
		escrowDelay:      escrowDelay,
		affiliateDelay:   affiliateDelay,
	}
}

type SlotRequest struct {
	SessionID     string `json:"session_id"`
	SessionTimeID string `json:"session_time_id"`
}

type RejectedSlot struct {
	SessionID     string `json:"session_id"`
	SessionTimeID string `json:"session_time_id"`
	Reason        string `json:"reason"`
}

// BookingResult reports a batch outcome. The call as a whole succeeds even
// when individual slots were rejected; callers must inspect Rejected.
type BookingResult struct {
	BookedSlotIDs []string       `json:"booked_slot_ids"`
	Rejected      []RejectedSlot `json:"rejected"`
}

// BookSessionTimes assigns a client to the requested course slots. Every
// pair is evaluated independently; the aggregate is saved once after the
// whole batch and the purchase ledger is synchronized afterwards.
func (s *BookingService) BookSessionTimes(
	ctx context.Context,
	clientID int64,
	contributionID int64,
	requests []SlotRequest,
) (*BookingResult, error) {
	if clientID <= 0 || len(requests) == 0 {
		return nil, ErrInvalidInput
	}

	contribution, err := s.loadContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	if contribution.Type != models.ContributionCourse {
		return nil, fmt.Errorf("%w: contribution has no bookable session times", ErrInvalidInput)
	}

	purchase, err := s.requirePaidPurchase(ctx, contributionID, clientID)
	if err != nil {
		return nil, err
	}

	result := &BookingResult{
		BookedSlotIDs: make([]string, 0, len(requests)),
		Rejected:      make([]RejectedSlot, 0),
	}
	for _, request := range requests {
		if err := contribution.BookParticipant(request.SessionID, request.SessionTimeID, clientID); err != nil {
			result.Rejected = append(result.Rejected, RejectedSlot{
				SessionID:     request.SessionID,
				SessionTimeID: request.SessionTimeID,
				Reason:        err.Error(),
			})
			continue
		}
		result.BookedSlotIDs = append(result.BookedSlotIDs, request.SessionTimeID)
	}

	if len(result.BookedSlotIDs) == 0 {
		return result, nil
	}

	if err := s.saveContribution(ctx, contribution); err != nil {
		return nil, err
	}
	if err := s.syncLedger(ctx, purchase, result.BookedSlotIDs, nil); err != nil {
		return nil, fmt.Errorf("sync purchase ledger: %w", err)
	}

	if s.dispatcher != nil {
		booked := result.BookedSlotIDs
		go func() {
			dctx, cancel := dispatchContext(ctx)
			defer cancel()
			s.dispatcher.BookingConfirmed(dctx, contribution, clientID, booked)
		}()
	}
	return result, nil
}

// RevokeBooking removes a client from a slot and scrubs the slot from every
// payment ledger where it appears. Revoking an absent booking is a no-op.
func (s *BookingService) RevokeBooking(
	ctx context.Context,
	contributionID int64,
	sessionTimeID string,
	clientID int64,
) error {
	contribution, err := s.loadContribution(ctx, contributionID)
	if err != nil {
		return err
	}

	removed := contribution.RemoveParticipant(sessionTimeID, clientID)
	if removed {
		if err := s.saveContribution(ctx, contribution); err != nil {
			return err
		}
	}

	purchase, err := s.purchaseRepo.GetByContributionAndClient(ctx, contributionID, clientID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
	} else if err := s.syncLedger(ctx, purchase, nil, []string{sessionTimeID}); err != nil {
		return fmt.Errorf("sync purchase ledger: %w", err)
	}

	if removed && s.dispatcher != nil {
		go func() {
			dctx, cancel := dispatchContext(ctx)
			defer cancel()
			s.dispatcher.BookingRevoked(dctx, contribution, clientID, sessionTimeID)
		}()
	}
	return nil
}

// SetClassAsCompleted marks a live slot completed and returns its roster.
//
// Funds release is scheduled only when the first session (in declared
// order) transitions to fully completed, and the jobs then carry the full
// roster currently booked anywhere in the contribution, not just the slot
// that triggered the transition. That asymmetry is business policy.
func (s *BookingService) SetClassAsCompleted(
	ctx context.Context,
	actorID int64,
	contributionID int64,
	sessionTimeID string,
) ([]int64, error) {
	contribution, err := s.loadContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	if !contribution.IsOwnedBy(actorID) {
		return nil, ErrForbidden
	}

	firstDoneBefore := contribution.FirstSessionCompleted()
	roster, err := contribution.CompleteSessionTime(sessionTimeID)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyCompleted) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, err
	}

	if err := s.saveContribution(ctx, contribution); err != nil {
		return nil, err
	}

	if !firstDoneBefore && contribution.FirstSessionCompleted() {
		s.scheduleReleases(ctx, contribution, sessionTimeID)
	}
	return roster, nil
}

// SetSelfPacedClassAsCompleted records a client's completion of prerecorded
// content and returns the recomputed progress percentage. Idempotent.
func (s *BookingService) SetSelfPacedClassAsCompleted(
	ctx context.Context,
	contributionID int64,
	sessionTimeID string,
	clientID int64,
) (int, error) {
	contribution, err := s.loadContribution(ctx, contributionID)
	if err != nil {
		return 0, err
	}

	changed, err := contribution.CompleteSelfPaced(sessionTimeID, clientID)
	if err != nil {
		return 0, err
	}
	if changed {
		if err := s.saveContribution(ctx, contribution); err != nil {
			return 0, err
		}
	}
	return contribution.ProgressPercent(clientID), nil
}

func (s *BookingService) scheduleReleases(
	ctx context.Context,
	contribution *models.Contribution,
	sessionTimeID string,
) {
	if s.scheduler == nil {
		return
	}
	roster := contribution.CollectRoster()
	releases := []struct {
		kind  models.JobKind
		delay time.Duration
	}{
		{models.JobKindEscrowRelease, s.escrowDelay},
		{models.JobKindAffiliateRelease, s.affiliateDelay},
	}
	for _, release := range releases {
		err := s.scheduler.Schedule(ctx, release.delay, release.kind, contribution.ID, sessionTimeID, roster)
		if err != nil {
			log.Printf(
				"release enqueue failed: kind=%s contribution=%d slot=%s err=%v",
				release.kind, contribution.ID, sessionTimeID, err,
			)
		}
	}
}

// syncLedger applies set additions and removals to every covering payment
// of the purchase, writing only the payments that actually changed. The
// write is re-driveable: replaying it after a crash converges on the same
// ledger.
func (s *BookingService) syncLedger(
	ctx context.Context,
	purchase *models.Purchase,
	addSlotIDs []string,
	removeSlotIDs []string,
) error {
	for i := range purchase.Payments {
		payment := &purchase.Payments[i]
		changed := false
		if payment.Status.CoversBooking() {
			for _, slotID := range addSlotIDs {
				changed = payment.AddBookedClass(slotID) || changed
			}
		}
		for _, slotID := range removeSlotIDs {
			changed = payment.RemoveBookedClass(slotID) || changed
		}
		if !changed {
			continue
		}
		if err := s.purchaseRepo.SaveBookedClassIDs(ctx, payment.ID, payment.BookedClassIDs); err != nil {
			return err
		}
	}
	return nil
}

func (s *BookingService) loadContribution(
	ctx context.Context,
	contributionID int64,
) (*models.Contribution, error) {
	contribution, err := s.contributionRepo.GetByID(ctx, contributionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContributionNotFound
		}
		return nil, err
	}
	return contribution, nil
}

func (s *BookingService) saveContribution(
	ctx context.Context,
	contribution *models.Contribution,
) error {
	if err := s.contributionRepo.Save(ctx, contribution); err != nil {
		if isVersionConflict(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func isVersionConflict(err error) bool {
	return errors.Is(err, repository.ErrVersionConflict)
}

func (s *BookingService) requirePaidPurchase(
	ctx context.Context,
	contributionID int64,
	clientID int64,
) (*models.Purchase, error) {
	purchase, err := s.purchaseRepo.GetByContributionAndClient(ctx, contributionID, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPurchaseRequired
		}
		return nil, err
	}

	status, err := s.resolver.ResolveActualStatus(ctx, purchase)
	if err != nil {
		return nil, fmt.Errorf("resolve payment status: %w", err)
	}
	if !status.CoversBooking() {
		return nil, ErrPurchaseRequired
	}
	return purchase, nil
}
