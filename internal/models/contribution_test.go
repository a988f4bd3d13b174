package models

import (
	"errors"
	"testing"
	"time"
)

func courseWithOneSlot(maxParticipants int) *Contribution {
	return &Contribution{
		ID:      1,
		CoachID: 7,
		Type:    ContributionCourse,
		Sessions: []Session{
			{
				ID:                    "s1",
				MaxParticipantsNumber: maxParticipants,
				SessionTimes: []SessionTime{
					{
						ID:        "st1",
						StartTime: time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC),
						EndTime:   time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC),
					},
				},
			},
		},
	}
}

func TestBookParticipantEnforcesCapacity(t *testing.T) {
	contribution := courseWithOneSlot(2)

	if err := contribution.BookParticipant("s1", "st1", 100); err != nil {
		t.Fatalf("Booking client A: %v", err)
	}
	if err := contribution.BookParticipant("s1", "st1", 101); err != nil {
		t.Fatalf("Booking client B: %v", err)
	}

	err := contribution.BookParticipant("s1", "st1", 102)
	if !errors.Is(err, ErrSlotFull) {
		t.Fatalf("Expected ErrSlotFull for client C, got %v", err)
	}

	got := contribution.Sessions[0].SessionTimes[0].ParticipantIDs
	if len(got) != 2 || got[0] != 100 || got[1] != 101 {
		t.Errorf("Expected participants [100 101], got %v", got)
	}
}

func TestBookParticipantRejectsDuplicateInCapacityLimitedSlot(t *testing.T) {
	contribution := courseWithOneSlot(5)
	if err := contribution.BookParticipant("s1", "st1", 100); err != nil {
		t.Fatalf("First booking: %v", err)
	}
	if err := contribution.BookParticipant("s1", "st1", 100); !errors.Is(err, ErrAlreadyBooked) {
		t.Fatalf("Expected ErrAlreadyBooked, got %v", err)
	}
}

func TestBookParticipantIgnoresCapacityForPrerecorded(t *testing.T) {
	contribution := courseWithOneSlot(1)
	contribution.Sessions[0].IsPrerecorded = true

	for clientID := int64(100); clientID < 105; clientID++ {
		if err := contribution.BookParticipant("s1", "st1", clientID); err != nil {
			t.Fatalf("Booking client %d: %v", clientID, err)
		}
	}
	// Duplicate add is an idempotent no-op outside the capacity-limited case.
	if err := contribution.BookParticipant("s1", "st1", 100); err != nil {
		t.Fatalf("Duplicate prerecorded booking: %v", err)
	}
	if got := len(contribution.Sessions[0].SessionTimes[0].ParticipantIDs); got != 5 {
		t.Errorf("Expected 5 participants, got %d", got)
	}
}

func TestBookParticipantUnknownSlot(t *testing.T) {
	contribution := courseWithOneSlot(2)
	if err := contribution.BookParticipant("s1", "nope", 100); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("Expected ErrSlotNotFound, got %v", err)
	}
	if err := contribution.BookParticipant("nope", "st1", 100); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("Expected ErrSlotNotFound for unknown session, got %v", err)
	}
}

func TestRemoveParticipantIsIdempotent(t *testing.T) {
	contribution := courseWithOneSlot(2)
	if err := contribution.BookParticipant("s1", "st1", 100); err != nil {
		t.Fatalf("Booking: %v", err)
	}

	if !contribution.RemoveParticipant("st1", 100) {
		t.Fatalf("Expected first removal to report a change")
	}
	if contribution.RemoveParticipant("st1", 100) {
		t.Fatalf("Expected second removal to be a no-op")
	}
	if got := contribution.Sessions[0].SessionTimes[0].ParticipantIDs; len(got) != 0 {
		t.Errorf("Expected empty participants, got %v", got)
	}
}

func TestCompleteSessionTimeIsMonotonic(t *testing.T) {
	contribution := courseWithOneSlot(2)
	if err := contribution.BookParticipant("s1", "st1", 100); err != nil {
		t.Fatalf("Booking: %v", err)
	}

	roster, err := contribution.CompleteSessionTime("st1")
	if err != nil {
		t.Fatalf("CompleteSessionTime: %v", err)
	}
	if len(roster) != 1 || roster[0] != 100 {
		t.Errorf("Expected roster [100], got %v", roster)
	}
	if !contribution.Sessions[0].IsCompleted {
		t.Errorf("Expected the session to be marked completed")
	}

	if _, err := contribution.CompleteSessionTime("st1"); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("Expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestCompleteSessionTimeLeavesSessionOpenWithRemainingSlots(t *testing.T) {
	contribution := courseWithOneSlot(2)
	contribution.Sessions[0].SessionTimes = append(contribution.Sessions[0].SessionTimes, SessionTime{ID: "st2"})

	if _, err := contribution.CompleteSessionTime("st1"); err != nil {
		t.Fatalf("CompleteSessionTime: %v", err)
	}
	if contribution.Sessions[0].IsCompleted {
		t.Errorf("Expected session to stay open while st2 is incomplete")
	}
}

func TestCompleteSelfPacedIsIdempotent(t *testing.T) {
	contribution := courseWithOneSlot(2)
	contribution.Sessions[0].IsPrerecorded = true

	changed, err := contribution.CompleteSelfPaced("st1", 100)
	if err != nil || !changed {
		t.Fatalf("Expected first completion to change, got changed=%v err=%v", changed, err)
	}
	changed, err = contribution.CompleteSelfPaced("st1", 100)
	if err != nil || changed {
		t.Fatalf("Expected second completion to be a no-op, got changed=%v err=%v", changed, err)
	}
}

func TestProgressPercent(t *testing.T) {
	contribution := &Contribution{
		Type: ContributionCourse,
		Sessions: []Session{
			{ID: "s1", IsPrerecorded: true, SessionTimes: []SessionTime{
				{ID: "st1", CompletedSelfPacedParticipantIDs: []int64{100}},
				{ID: "st2"},
			}},
			{ID: "s2", IsPrerecorded: true, SessionTimes: []SessionTime{
				{ID: "st3"},
			}},
			{ID: "s3"},
		},
	}

	// Session 1: 1/2 complete; session 2: 0/1; session 3 has no slots and
	// does not qualify. (0.5 + 0) / 2 = 25%.
	if got := contribution.ProgressPercent(100); got != 25 {
		t.Errorf("Expected 25, got %d", got)
	}
	if got := contribution.ProgressPercent(999); got != 0 {
		t.Errorf("Expected 0 for a client with no completions, got %d", got)
	}

	contribution.Sessions[1].SessionTimes[0].IsCompleted = true
	// (0.5 + 1) / 2 = 75%.
	if got := contribution.ProgressPercent(100); got != 75 {
		t.Errorf("Expected 75, got %d", got)
	}
}

func TestProgressPercentRoundsUp(t *testing.T) {
	contribution := &Contribution{
		Type: ContributionCourse,
		Sessions: []Session{
			{ID: "s1", SessionTimes: []SessionTime{
				{ID: "st1", CompletedSelfPacedParticipantIDs: []int64{100}},
				{ID: "st2"},
				{ID: "st3"},
			}},
		},
	}
	// 1/3 = 33.33..., rounded up.
	if got := contribution.ProgressPercent(100); got != 34 {
		t.Errorf("Expected 34, got %d", got)
	}
}

func TestCollectRosterIsDistinctAndSorted(t *testing.T) {
	contribution := &Contribution{
		Type: ContributionCourse,
		Sessions: []Session{
			{ID: "s1", SessionTimes: []SessionTime{
				{ID: "st1", ParticipantIDs: []int64{102, 100}},
			}},
			{ID: "s2", SessionTimes: []SessionTime{
				{ID: "st2", ParticipantIDs: []int64{101, 100}},
			}},
		},
	}

	roster := contribution.CollectRoster()
	want := []int64{100, 101, 102}
	if len(roster) != len(want) {
		t.Fatalf("Expected roster %v, got %v", want, roster)
	}
	for i := range want {
		if roster[i] != want[i] {
			t.Fatalf("Expected roster %v, got %v", want, roster)
		}
	}
}

func TestEffectiveParticipantsUnionsPodRoster(t *testing.T) {
	slot := SessionTime{
		ParticipantIDs:    []int64{100, 101},
		PodID:             "pod-1",
		PodParticipantIDs: []int64{101, 200},
	}
	got := slot.EffectiveParticipants()
	if len(got) != 3 {
		t.Fatalf("Expected 3 effective participants, got %v", got)
	}
}

func oneToOneContribution() *Contribution {
	day := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	return &Contribution{
		ID:      2,
		CoachID: 7,
		Type:    ContributionOneToOne,
		AvailabilityTimes: []AvailabilityTime{
			{
				ID:        "x",
				StartTime: day.Add(9 * time.Hour),
				EndTime:   day.Add(10 * time.Hour),
				BookedTimes: []BookedTime{
					{ID: "bt1", ParticipantID: 100, StartTime: day.Add(9 * time.Hour), EndTime: day.Add(10 * time.Hour)},
				},
			},
			{
				ID:        "y",
				StartTime: day.Add(14 * time.Hour),
				EndTime:   day.Add(15 * time.Hour),
			},
		},
	}
}

func TestMoveBookedTimeSwapsSlots(t *testing.T) {
	contribution := oneToOneContribution()
	destination := contribution.AvailabilityTimes[1]

	if err := contribution.MoveBookedTime("bt1", destination); err != nil {
		t.Fatalf("MoveBookedTime: %v", err)
	}

	if contribution.FindAvailability("x") != nil {
		t.Errorf("Expected the emptied source window to be removed")
	}
	dest := contribution.FindAvailability("y")
	if dest == nil {
		t.Fatalf("Expected the destination window to be retained")
	}
	if len(dest.BookedTimes) != 1 || dest.BookedTimes[0].ID != "bt1" {
		t.Fatalf("Expected bt1 attached to the destination, got %+v", dest.BookedTimes)
	}
	moved := dest.BookedTimes[0]
	if !moved.StartTime.Equal(dest.StartTime) || !moved.EndTime.Equal(dest.EndTime) {
		t.Errorf("Expected booking bounds to match the destination window")
	}
}

func TestMoveBookedTimeAddsMissingDestination(t *testing.T) {
	contribution := oneToOneContribution()
	day := time.Date(2030, 5, 2, 0, 0, 0, 0, time.UTC)
	destination := AvailabilityTime{
		ID:        "z",
		StartTime: day.Add(11 * time.Hour),
		EndTime:   day.Add(12 * time.Hour),
	}

	if err := contribution.MoveBookedTime("bt1", destination); err != nil {
		t.Fatalf("MoveBookedTime: %v", err)
	}
	dest := contribution.FindAvailability("z")
	if dest == nil || len(dest.BookedTimes) != 1 {
		t.Fatalf("Expected the new destination to be adopted with the booking")
	}
}

func TestMoveBookedTimeRejectsOccupiedDestination(t *testing.T) {
	contribution := oneToOneContribution()
	contribution.AvailabilityTimes[1].BookedTimes = []BookedTime{{ID: "bt2", ParticipantID: 200}}

	err := contribution.MoveBookedTime("bt1", contribution.AvailabilityTimes[1])
	if !errors.Is(err, ErrSlotBooked) {
		t.Fatalf("Expected ErrSlotBooked, got %v", err)
	}
}

func TestMoveBookedTimeKeepsSourceWithOtherBookings(t *testing.T) {
	contribution := oneToOneContribution()
	contribution.AvailabilityTimes[0].BookedTimes = append(
		contribution.AvailabilityTimes[0].BookedTimes,
		BookedTime{ID: "bt2", ParticipantID: 200},
	)

	if err := contribution.MoveBookedTime("bt1", contribution.AvailabilityTimes[1]); err != nil {
		t.Fatalf("MoveBookedTime: %v", err)
	}
	source := contribution.FindAvailability("x")
	if source == nil {
		t.Fatalf("Expected the source window to survive while bt2 remains")
	}
	if len(source.BookedTimes) != 1 || source.BookedTimes[0].ID != "bt2" {
		t.Errorf("Expected only bt2 left on the source, got %+v", source.BookedTimes)
	}
}

func TestAttachEventInfoReplacesMatchingAccount(t *testing.T) {
	contribution := courseWithOneSlot(2)

	if !contribution.AttachEventInfo("st1", EventInfo{EventID: "ev1", CalendarAccount: "coach@cal"}) {
		t.Fatalf("Expected attach to succeed")
	}
	if !contribution.AttachEventInfo("st1", EventInfo{EventID: "ev2", CalendarAccount: "coach@cal"}) {
		t.Fatalf("Expected replace to succeed")
	}

	infos := contribution.Sessions[0].SessionTimes[0].EventInfos
	if len(infos) != 1 || infos[0].EventID != "ev2" {
		t.Errorf("Expected a single replaced event info, got %+v", infos)
	}
}
