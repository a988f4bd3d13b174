package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

type stubNotifier struct {
	confirmations []int64
	icsFlags      []bool
	notices       []int64
	err           error
}

func (n *stubNotifier) SendBookingConfirmation(
	_ context.Context,
	clientID int64,
	_ *models.Contribution,
	_ []string,
	withICSAttachment bool,
) error {
	n.confirmations = append(n.confirmations, clientID)
	n.icsFlags = append(n.icsFlags, withICSAttachment)
	return n.err
}

func (n *stubNotifier) SendReschedulingNotice(
	_ context.Context,
	recipientID int64,
	_ *models.Contribution,
	_ models.BookedTime,
	_ string,
) error {
	n.notices = append(n.notices, recipientID)
	return n.err
}

func (n *stubNotifier) SendSessionDeletedNotice(
	_ context.Context,
	_ []int64,
	_ *models.Contribution,
	_ string,
) error {
	return n.err
}

type upsertCall struct {
	account  string
	existing string
}

type stubCalendar struct {
	upserts   []upsertCall
	deletes   []string
	eventID   string
	upsertErr error
}

func (c *stubCalendar) CreateOrUpdateEvent(
	_ context.Context,
	account string,
	_ *models.Contribution,
	_ models.TimeRange,
	_ []int64,
	existingEventID string,
) (string, error) {
	c.upserts = append(c.upserts, upsertCall{account: account, existing: existingEventID})
	if c.upsertErr != nil {
		return "", c.upsertErr
	}
	return c.eventID, nil
}

func (c *stubCalendar) DeleteEvent(_ context.Context, _ string, eventID string) (bool, error) {
	c.deletes = append(c.deletes, eventID)
	return true, nil
}

type stubEventInfoWriter struct {
	slotInfos   map[string]models.EventInfo
	bookedInfos map[string]models.EventInfo
}

func newStubEventInfoWriter() *stubEventInfoWriter {
	return &stubEventInfoWriter{
		slotInfos:   make(map[string]models.EventInfo),
		bookedInfos: make(map[string]models.EventInfo),
	}
}

func (w *stubEventInfoWriter) AttachEventInfo(
	_ context.Context,
	_ int64,
	sessionTimeID string,
	info models.EventInfo,
) error {
	w.slotInfos[sessionTimeID] = info
	return nil
}

func (w *stubEventInfoWriter) AttachBookedEventInfo(
	_ context.Context,
	_ int64,
	bookedTimeID string,
	info models.EventInfo,
) error {
	w.bookedInfos[bookedTimeID] = info
	return nil
}

func TestBookingConfirmedFallsBackToICSEmail(t *testing.T) {
	notifier := &stubNotifier{}
	calendar := &stubCalendar{}
	dispatcher := NewDispatcher(notifier, calendar, newStubEventInfoWriter())

	contribution := courseContribution(2)
	dispatcher.BookingConfirmed(context.Background(), contribution, 100, []string{"st1"})

	if len(notifier.confirmations) != 1 || notifier.confirmations[0] != 100 {
		t.Fatalf("Expected one confirmation to client 100, got %v", notifier.confirmations)
	}
	if !notifier.icsFlags[0] {
		t.Errorf("Expected the ICS attachment flag when no calendar account is configured")
	}
	if len(calendar.upserts) != 0 {
		t.Errorf("Expected no calendar call without an account, got %v", calendar.upserts)
	}
}

func TestBookingConfirmedMirrorsToCalendarAndPersistsEventID(t *testing.T) {
	calendar := &stubCalendar{eventID: "evt-1"}
	writer := newStubEventInfoWriter()
	dispatcher := NewDispatcher(&stubNotifier{}, calendar, writer)

	contribution := courseContribution(2)
	contribution.CalendarAccount = "coach@calendar"
	dispatcher.BookingConfirmed(context.Background(), contribution, 100, []string{"st1"})

	if len(calendar.upserts) != 1 || calendar.upserts[0].account != "coach@calendar" {
		t.Fatalf("Expected one upsert on the configured account, got %v", calendar.upserts)
	}
	info, ok := writer.slotInfos["st1"]
	if !ok || info.EventID != "evt-1" {
		t.Fatalf("Expected the event id persisted on st1, got %+v", writer.slotInfos)
	}
}

func TestBookingConfirmedReusesExistingEvent(t *testing.T) {
	calendar := &stubCalendar{eventID: "evt-1"}
	dispatcher := NewDispatcher(nil, calendar, newStubEventInfoWriter())

	contribution := courseContribution(2)
	contribution.CalendarAccount = "coach@calendar"
	contribution.Sessions[0].SessionTimes[0].EventInfos = []models.EventInfo{
		{EventID: "evt-0", CalendarAccount: "coach@calendar"},
	}
	dispatcher.BookingConfirmed(context.Background(), contribution, 100, []string{"st1"})

	if len(calendar.upserts) != 1 || calendar.upserts[0].existing != "evt-0" {
		t.Fatalf("Expected the upsert to carry the existing event id, got %v", calendar.upserts)
	}
}

func TestBookingConfirmedSwallowsCollaboratorFailure(t *testing.T) {
	calendar := &stubCalendar{upsertErr: errors.New("calendar unavailable")}
	dispatcher := NewDispatcher(nil, calendar, newStubEventInfoWriter())

	contribution := courseContribution(2)
	contribution.CalendarAccount = "coach@calendar"
	// Must not panic or surface the error.
	dispatcher.BookingConfirmed(context.Background(), contribution, 100, []string{"st1"})
}

func TestBookingRevokedDeletesClientEvent(t *testing.T) {
	calendar := &stubCalendar{}
	dispatcher := NewDispatcher(nil, calendar, newStubEventInfoWriter())

	contribution := courseContribution(2)
	contribution.CalendarAccount = "coach@calendar"
	contribution.Sessions[0].SessionTimes[0].EventInfos = []models.EventInfo{
		{EventID: "evt-other", CalendarAccount: "coach@calendar", ParticipantID: 101},
		{EventID: "evt-mine", CalendarAccount: "coach@calendar", ParticipantID: 100},
	}
	dispatcher.BookingRevoked(context.Background(), contribution, 100, "st1")

	if len(calendar.deletes) != 1 || calendar.deletes[0] != "evt-mine" {
		t.Fatalf("Expected only the client's event deleted, got %v", calendar.deletes)
	}
}

func TestBookingRevokedIgnoresMismatchedAccount(t *testing.T) {
	calendar := &stubCalendar{}
	dispatcher := NewDispatcher(nil, calendar, newStubEventInfoWriter())

	contribution := courseContribution(2)
	contribution.CalendarAccount = "coach@calendar"
	contribution.Sessions[0].SessionTimes[0].EventInfos = []models.EventInfo{
		{EventID: "evt-old", CalendarAccount: "old@calendar", ParticipantID: 100},
	}
	dispatcher.BookingRevoked(context.Background(), contribution, 100, "st1")

	if len(calendar.deletes) != 0 {
		t.Fatalf("Expected no delete for a stale account, got %v", calendar.deletes)
	}
}

func TestRescheduledNotifiesBothParties(t *testing.T) {
	notifier := &stubNotifier{}
	calendar := &stubCalendar{eventID: "evt-2"}
	writer := newStubEventInfoWriter()
	dispatcher := NewDispatcher(notifier, calendar, writer)

	start := time.Date(2030, 5, 3, 9, 0, 0, 0, time.UTC)
	contribution := oneToOneWithBooking(start)
	contribution.CalendarAccount = "coach@calendar"
	booked := contribution.AvailabilityTimes[0].BookedTimes[0]

	dispatcher.Rescheduled(context.Background(), contribution, booked, "moved")

	if len(notifier.notices) != 2 {
		t.Fatalf("Expected notices to the client and the coach, got %v", notifier.notices)
	}
	if notifier.notices[0] != 100 || notifier.notices[1] != 7 {
		t.Errorf("Expected recipients [100 7], got %v", notifier.notices)
	}
	info, ok := writer.bookedInfos["bt1"]
	if !ok || info.EventID != "evt-2" || info.ParticipantID != 100 {
		t.Fatalf("Expected the event id persisted on bt1, got %+v", writer.bookedInfos)
	}
}

func TestDispatcherToleratesNilCollaborators(t *testing.T) {
	dispatcher := NewDispatcher(nil, nil, nil)
	contribution := courseContribution(2)

	dispatcher.BookingConfirmed(context.Background(), contribution, 100, []string{"st1"})
	dispatcher.BookingRevoked(context.Background(), contribution, 100, "st1")
	dispatcher.Rescheduled(context.Background(), contribution, models.BookedTime{ID: "bt1"}, "")
}
