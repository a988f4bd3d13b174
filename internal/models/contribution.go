package models

import (
	"errors"
	"math"
	"sort"
	"time"
)

type ContributionType string

const (
	ContributionCourse   ContributionType = "course"
	ContributionOneToOne ContributionType = "one_to_one"
)

type ContributionStatus string

const (
	StatusDraft     ContributionStatus = "draft"
	StatusInReview  ContributionStatus = "in_review"
	StatusInSandbox ContributionStatus = "in_sandbox"
	StatusRevised   ContributionStatus = "revised"
	StatusApproved  ContributionStatus = "approved"
	StatusRejected  ContributionStatus = "rejected"
	StatusCompleted ContributionStatus = "completed"
)

var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrSlotFull         = errors.New("slot has reached its participant limit")
	ErrAlreadyBooked    = errors.New("client is already booked into this slot")
	ErrAlreadyCompleted = errors.New("slot is already completed")
	ErrSlotBooked       = errors.New("slot already holds a booking")
)

// EventInfo records one external-calendar invite mirrored for a slot,
// keyed by the calendar account it was created under.
type EventInfo struct {
	EventID         string `json:"event_id"`
	CalendarAccount string `json:"calendar_account"`
	ParticipantID   int64  `json:"participant_id,omitempty"`
}

// SessionTime is the bookable unit of a course contribution.
type SessionTime struct {
	ID                               string      `json:"id"`
	StartTime                        time.Time   `json:"start_time"`
	EndTime                          time.Time   `json:"end_time"`
	ParticipantIDs                   []int64     `json:"participant_ids"`
	IsCompleted                      bool        `json:"is_completed"`
	CompletedSelfPacedParticipantIDs []int64     `json:"completed_self_paced_participant_ids"`
	UsersWhoViewedRecording          []int64     `json:"users_who_viewed_recording"`
	PodID                            string      `json:"pod_id,omitempty"`
	PodParticipantIDs                []int64     `json:"pod_participant_ids,omitempty"`
	EventInfos                       []EventInfo `json:"event_infos,omitempty"`
}

// EffectiveParticipants unions the pod roster into the direct participant
// list. Pod members are display-only and never count against capacity.
func (st *SessionTime) EffectiveParticipants() []int64 {
	if st.PodID == "" || len(st.PodParticipantIDs) == 0 {
		return st.ParticipantIDs
	}
	return unionIDs(st.ParticipantIDs, st.PodParticipantIDs)
}

type Session struct {
	ID                    string        `json:"id"`
	Title                 string        `json:"title"`
	IsPrerecorded         bool          `json:"is_prerecorded"`
	MaxParticipantsNumber int           `json:"max_participants_number"`
	IsCompleted           bool          `json:"is_completed"`
	SessionTimes          []SessionTime `json:"session_times"`
}

// capacityLimited reports whether the session enforces the participant cap:
// only live sessions with a single occurrence carry one.
func (s *Session) capacityLimited() bool {
	return !s.IsPrerecorded && len(s.SessionTimes) == 1
}

// BookedTime is a confirmed one-to-one reservation. Its bounds are copied
// from the availability window at booking time and move with reschedules.
type BookedTime struct {
	ID            string     `json:"id"`
	ParticipantID int64      `json:"participant_id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	IsCompleted   bool       `json:"is_completed"`
	EventInfo     *EventInfo `json:"event_info,omitempty"`
}

// AvailabilityTime is a coach-declared open one-to-one window.
type AvailabilityTime struct {
	ID          string       `json:"id"`
	StartTime   time.Time    `json:"start_time"`
	EndTime     time.Time    `json:"end_time"`
	BookedTimes []BookedTime `json:"booked_times,omitempty"`
}

func (a *AvailabilityTime) Range() TimeRange {
	return TimeRange{StartTime: a.StartTime, EndTime: a.EndTime}
}

// Contribution is the aggregate root for a coach offering. Exactly one of
// Sessions (course) or AvailabilityTimes (one-to-one) is populated,
// discriminated by Type.
type Contribution struct {
	ID                int64              `json:"id"`
	CoachID           int64              `json:"coach_id"`
	Title             string             `json:"title"`
	Type              ContributionType   `json:"type"`
	Status            ContributionStatus `json:"status"`
	Partners          []int64            `json:"partners"`
	CalendarAccount   string             `json:"calendar_account"`
	Sessions          []Session          `json:"sessions"`
	AvailabilityTimes []AvailabilityTime `json:"availability_times"`
	Version           int64              `json:"version"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// IsOwnedBy reports whether userID is the coach or an assigned partner.
func (c *Contribution) IsOwnedBy(userID int64) bool {
	if c.CoachID == userID {
		return true
	}
	return containsID(c.Partners, userID)
}

func (c *Contribution) FindSession(sessionID string) *Session {
	for i := range c.Sessions {
		if c.Sessions[i].ID == sessionID {
			return &c.Sessions[i]
		}
	}
	return nil
}

// FindSessionTime locates a slot and its owning session anywhere in the
// course schedule.
func (c *Contribution) FindSessionTime(sessionTimeID string) (*Session, *SessionTime) {
	for i := range c.Sessions {
		for j := range c.Sessions[i].SessionTimes {
			if c.Sessions[i].SessionTimes[j].ID == sessionTimeID {
				return &c.Sessions[i], &c.Sessions[i].SessionTimes[j]
			}
		}
	}
	return nil, nil
}

// BookParticipant assigns a client to a course slot. Capacity and duplicate
// checks apply only to capacity-limited sessions; for everything else the
// assignment is idempotent.
func (c *Contribution) BookParticipant(sessionID, sessionTimeID string, clientID int64) error {
	session := c.FindSession(sessionID)
	if session == nil {
		return ErrSlotNotFound
	}

	var slot *SessionTime
	for i := range session.SessionTimes {
		if session.SessionTimes[i].ID == sessionTimeID {
			slot = &session.SessionTimes[i]
			break
		}
	}
	if slot == nil {
		return ErrSlotNotFound
	}

	present := containsID(slot.ParticipantIDs, clientID)
	if session.capacityLimited() {
		if present {
			return ErrAlreadyBooked
		}
		if len(slot.ParticipantIDs) >= session.MaxParticipantsNumber {
			return ErrSlotFull
		}
	}
	if !present {
		slot.ParticipantIDs = append(slot.ParticipantIDs, clientID)
	}
	return nil
}

// RemoveParticipant takes a client out of a course slot. Removing an absent
// client is a no-op, not an error.
func (c *Contribution) RemoveParticipant(sessionTimeID string, clientID int64) bool {
	_, slot := c.FindSessionTime(sessionTimeID)
	if slot == nil {
		return false
	}
	for i, id := range slot.ParticipantIDs {
		if id == clientID {
			slot.ParticipantIDs = append(slot.ParticipantIDs[:i], slot.ParticipantIDs[i+1:]...)
			return true
		}
	}
	return false
}

// CompleteSessionTime marks a live slot completed and recomputes the owning
// session's completion. Completion is monotonic: an already-completed slot
// is rejected. Returns the slot's direct participant roster.
func (c *Contribution) CompleteSessionTime(sessionTimeID string) ([]int64, error) {
	session, slot := c.FindSessionTime(sessionTimeID)
	if slot == nil {
		return nil, ErrSlotNotFound
	}
	if slot.IsCompleted {
		return nil, ErrAlreadyCompleted
	}

	slot.IsCompleted = true

	done := true
	for i := range session.SessionTimes {
		if !session.SessionTimes[i].IsCompleted {
			done = false
			break
		}
	}
	session.IsCompleted = done

	roster := make([]int64, len(slot.ParticipantIDs))
	copy(roster, slot.ParticipantIDs)
	return roster, nil
}

// CompleteSelfPaced records a per-client completion of prerecorded content.
// Idempotent; reports whether the aggregate changed.
func (c *Contribution) CompleteSelfPaced(sessionTimeID string, clientID int64) (bool, error) {
	_, slot := c.FindSessionTime(sessionTimeID)
	if slot == nil {
		return false, ErrSlotNotFound
	}
	if containsID(slot.CompletedSelfPacedParticipantIDs, clientID) {
		return false, nil
	}
	slot.CompletedSelfPacedParticipantIDs = append(slot.CompletedSelfPacedParticipantIDs, clientID)
	return true, nil
}

// ProgressPercent computes a client's completion percentage across the
// course: each session contributes 1/len(session times) per slot the client
// has completed, averaged over all sessions with at least one slot and
// rounded up to an integer percent.
func (c *Contribution) ProgressPercent(clientID int64) int {
	qualifying := 0
	total := 0.0
	for i := range c.Sessions {
		session := &c.Sessions[i]
		if len(session.SessionTimes) == 0 {
			continue
		}
		qualifying++
		completed := 0
		for j := range session.SessionTimes {
			slot := &session.SessionTimes[j]
			if slot.IsCompleted || containsID(slot.CompletedSelfPacedParticipantIDs, clientID) {
				completed++
			}
		}
		total += float64(completed) / float64(len(session.SessionTimes))
	}
	if qualifying == 0 {
		return 0
	}
	return int(math.Ceil(total / float64(qualifying) * 100))
}

// FirstSessionCompleted reports whether the first session in declared order
// has fully completed. This is the escrow-release trigger condition.
func (c *Contribution) FirstSessionCompleted() bool {
	if len(c.Sessions) == 0 {
		return false
	}
	return c.Sessions[0].IsCompleted
}

// CollectRoster returns the distinct set of clients currently booked into
// any slot of the contribution, sorted for deterministic payloads.
func (c *Contribution) CollectRoster() []int64 {
	seen := make(map[int64]struct{})
	for i := range c.Sessions {
		for j := range c.Sessions[i].SessionTimes {
			for _, id := range c.Sessions[i].SessionTimes[j].ParticipantIDs {
				seen[id] = struct{}{}
			}
		}
	}
	roster := make([]int64, 0, len(seen))
	for id := range seen {
		roster = append(roster, id)
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i] < roster[j] })
	return roster
}

func (c *Contribution) FindAvailability(availabilityID string) *AvailabilityTime {
	for i := range c.AvailabilityTimes {
		if c.AvailabilityTimes[i].ID == availabilityID {
			return &c.AvailabilityTimes[i]
		}
	}
	return nil
}

// FindBookedTime locates a one-to-one booking and the window holding it.
func (c *Contribution) FindBookedTime(bookedTimeID string) (*AvailabilityTime, *BookedTime) {
	for i := range c.AvailabilityTimes {
		for j := range c.AvailabilityTimes[i].BookedTimes {
			if c.AvailabilityTimes[i].BookedTimes[j].ID == bookedTimeID {
				return &c.AvailabilityTimes[i], &c.AvailabilityTimes[i].BookedTimes[j]
			}
		}
	}
	return nil, nil
}

// MoveBookedTime performs the one-to-one reschedule swap in one transition:
// the booking leaves its source window, adopts the destination window's
// bounds, the emptied source window is dropped, and a destination that is
// not yet part of the availability list is added. The destination must not
// already hold a booking.
func (c *Contribution) MoveBookedTime(bookedTimeID string, destination AvailabilityTime) error {
	source, booked := c.FindBookedTime(bookedTimeID)
	if booked == nil {
		return ErrBookingNotFound
	}

	dest := c.FindAvailability(destination.ID)
	if dest == nil {
		c.AvailabilityTimes = append(c.AvailabilityTimes, AvailabilityTime{
			ID:        destination.ID,
			StartTime: destination.StartTime,
			EndTime:   destination.EndTime,
		})
		dest = &c.AvailabilityTimes[len(c.AvailabilityTimes)-1]
		source, booked = c.FindBookedTime(bookedTimeID)
	}
	if len(dest.BookedTimes) > 0 {
		return ErrSlotBooked
	}

	moved := *booked
	moved.StartTime = dest.StartTime
	moved.EndTime = dest.EndTime

	for i := range source.BookedTimes {
		if source.BookedTimes[i].ID == bookedTimeID {
			source.BookedTimes = append(source.BookedTimes[:i], source.BookedTimes[i+1:]...)
			break
		}
	}
	emptiedID := ""
	if len(source.BookedTimes) == 0 {
		emptiedID = source.ID
	}

	dest = c.FindAvailability(destination.ID)
	dest.BookedTimes = append(dest.BookedTimes, moved)

	if emptiedID != "" {
		for i := range c.AvailabilityTimes {
			if c.AvailabilityTimes[i].ID == emptiedID {
				c.AvailabilityTimes = append(c.AvailabilityTimes[:i], c.AvailabilityTimes[i+1:]...)
				break
			}
		}
	}
	return nil
}

// AttachEventInfo records an external-calendar event id on a course slot,
// replacing any previous event for the same account and participant.
func (c *Contribution) AttachEventInfo(sessionTimeID string, info EventInfo) bool {
	_, slot := c.FindSessionTime(sessionTimeID)
	if slot == nil {
		return false
	}
	for i := range slot.EventInfos {
		if slot.EventInfos[i].CalendarAccount == info.CalendarAccount &&
			slot.EventInfos[i].ParticipantID == info.ParticipantID {
			slot.EventInfos[i] = info
			return true
		}
	}
	slot.EventInfos = append(slot.EventInfos, info)
	return true
}

// AttachBookedEventInfo records an external-calendar event id on a
// one-to-one booking.
func (c *Contribution) AttachBookedEventInfo(bookedTimeID string, info EventInfo) bool {
	_, booked := c.FindBookedTime(bookedTimeID)
	if booked == nil {
		return false
	}
	booked.EventInfo = &info
	return true
}

// BusyRanges returns every window this contribution occupies on the coach's
// calendar, regardless of schedule shape.
func (c *Contribution) BusyRanges() []TimeRange {
	var ranges []TimeRange
	for i := range c.Sessions {
		for j := range c.Sessions[i].SessionTimes {
			slot := &c.Sessions[i].SessionTimes[j]
			ranges = append(ranges, TimeRange{StartTime: slot.StartTime, EndTime: slot.EndTime})
		}
	}
	for i := range c.AvailabilityTimes {
		ranges = append(ranges, c.AvailabilityTimes[i].Range())
	}
	return ranges
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func unionIDs(a, b []int64) []int64 {
	out := make([]int64, 0, len(a)+len(b))
	seen := make(map[int64]struct{}, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
