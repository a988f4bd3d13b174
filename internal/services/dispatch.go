package services

import (
	"context"
	"log"
	"time"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

// BookingNotifier delivers booking-related messages. Implementations live
// in the notification platform; calls are fire-and-forget and failures are
// the dispatcher's to log, never the booking engine's to surface.
type BookingNotifier interface {
	SendBookingConfirmation(ctx context.Context, clientID int64, contribution *models.Contribution, slotIDs []string, withICSAttachment bool) error
	SendReschedulingNotice(ctx context.Context, recipientID int64, contribution *models.Contribution, booked models.BookedTime, notes string) error
	SendSessionDeletedNotice(ctx context.Context, recipientIDs []int64, contribution *models.Contribution, slotID string) error
}

// CalendarMirror maintains external-calendar events for booked slots.
type CalendarMirror interface {
	CreateOrUpdateEvent(ctx context.Context, account string, contribution *models.Contribution, slot models.TimeRange, participantIDs []int64, existingEventID string) (string, error)
	DeleteEvent(ctx context.Context, account string, eventID string) (bool, error)
}

type eventInfoWriter interface {
	AttachEventInfo(ctx context.Context, contributionID int64, sessionTimeID string, info models.EventInfo) error
	AttachBookedEventInfo(ctx context.Context, contributionID int64, bookedTimeID string, info models.EventInfo) error
}

// Dispatcher runs the best-effort side effects of a booking mutation after
// the aggregate is durably saved. Every failure is logged with correlation
// ids and swallowed; by the time a dispatch method runs, the operation it
// follows has already succeeded.
type Dispatcher struct {
	notifier      BookingNotifier
	calendar      CalendarMirror
	contributions eventInfoWriter
}

func NewDispatcher(
	notifier BookingNotifier,
	calendar CalendarMirror,
	contributions eventInfoWriter,
) *Dispatcher {
	return &Dispatcher{
		notifier:      notifier,
		calendar:      calendar,
		contributions: contributions,
	}
}

// BookingConfirmed mirrors the booked slots to the configured external
// calendar, or falls back to a confirmation email with an ICS attachment
// when no mirror account is configured.
func (d *Dispatcher) BookingConfirmed(
	ctx context.Context,
	contribution *models.Contribution,
	clientID int64,
	slotIDs []string,
) {
	if contribution.CalendarAccount == "" {
		if d.notifier == nil {
			return
		}
		if err := d.notifier.SendBookingConfirmation(ctx, clientID, contribution, slotIDs, true); err != nil {
			log.Printf(
				"booking confirmation failed: contribution=%d client=%d err=%v",
				contribution.ID, clientID, err,
			)
		}
		return
	}

	if d.calendar == nil {
		return
	}
	for _, slotID := range slotIDs {
		_, slot := contribution.FindSessionTime(slotID)
		if slot == nil {
			continue
		}
		existing := ""
		for _, info := range slot.EventInfos {
			if info.CalendarAccount == contribution.CalendarAccount && info.ParticipantID == 0 {
				existing = info.EventID
				break
			}
		}
		eventID, err := d.calendar.CreateOrUpdateEvent(
			ctx,
			contribution.CalendarAccount,
			contribution,
			models.TimeRange{StartTime: slot.StartTime, EndTime: slot.EndTime},
			slot.EffectiveParticipants(),
			existing,
		)
		if err != nil {
			log.Printf(
				"calendar event upsert failed: contribution=%d slot=%s client=%d err=%v",
				contribution.ID, slotID, clientID, err,
			)
			continue
		}
		err = d.contributions.AttachEventInfo(ctx, contribution.ID, slotID, models.EventInfo{
			EventID:         eventID,
			CalendarAccount: contribution.CalendarAccount,
		})
		if err != nil {
			log.Printf(
				"calendar event id persist failed: contribution=%d slot=%s event=%s err=%v",
				contribution.ID, slotID, eventID, err,
			)
		}
	}
}

// BookingRevoked deletes the client-specific calendar event when one exists
// under the contribution's currently configured account. A missing or
// mismatched event is a silent no-op.
func (d *Dispatcher) BookingRevoked(
	ctx context.Context,
	contribution *models.Contribution,
	clientID int64,
	slotID string,
) {
	if d.calendar == nil || contribution.CalendarAccount == "" {
		return
	}
	_, slot := contribution.FindSessionTime(slotID)
	if slot == nil {
		return
	}
	for _, info := range slot.EventInfos {
		if info.ParticipantID != clientID || info.CalendarAccount != contribution.CalendarAccount {
			continue
		}
		if _, err := d.calendar.DeleteEvent(ctx, info.CalendarAccount, info.EventID); err != nil {
			log.Printf(
				"calendar event delete failed: contribution=%d slot=%s client=%d event=%s err=%v",
				contribution.ID, slotID, clientID, info.EventID, err,
			)
		}
		return
	}
}

// Rescheduled notifies both parties of a one-to-one reschedule and updates
// the mirrored calendar event when an account is configured.
func (d *Dispatcher) Rescheduled(
	ctx context.Context,
	contribution *models.Contribution,
	booked models.BookedTime,
	notes string,
) {
	if d.notifier != nil {
		for _, recipientID := range []int64{booked.ParticipantID, contribution.CoachID} {
			if err := d.notifier.SendReschedulingNotice(ctx, recipientID, contribution, booked, notes); err != nil {
				log.Printf(
					"rescheduling notice failed: contribution=%d booked_time=%s recipient=%d err=%v",
					contribution.ID, booked.ID, recipientID, err,
				)
			}
		}
	}

	if d.calendar == nil || contribution.CalendarAccount == "" {
		return
	}
	existing := ""
	if booked.EventInfo != nil && booked.EventInfo.CalendarAccount == contribution.CalendarAccount {
		existing = booked.EventInfo.EventID
	}
	eventID, err := d.calendar.CreateOrUpdateEvent(
		ctx,
		contribution.CalendarAccount,
		contribution,
		models.TimeRange{StartTime: booked.StartTime, EndTime: booked.EndTime},
		[]int64{booked.ParticipantID},
		existing,
	)
	if err != nil {
		log.Printf(
			"calendar event upsert failed: contribution=%d booked_time=%s err=%v",
			contribution.ID, booked.ID, err,
		)
		return
	}
	err = d.contributions.AttachBookedEventInfo(ctx, contribution.ID, booked.ID, models.EventInfo{
		EventID:         eventID,
		CalendarAccount: contribution.CalendarAccount,
		ParticipantID:   booked.ParticipantID,
	})
	if err != nil {
		log.Printf(
			"calendar event id persist failed: contribution=%d booked_time=%s event=%s err=%v",
			contribution.ID, booked.ID, eventID, err,
		)
	}
}

// dispatchTimeout bounds a post-commit dispatch so a stuck collaborator
// cannot pin goroutines forever.
const dispatchTimeout = 30 * time.Second

func dispatchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
}
