package models

import (
	"fmt"
	"time"
)

// TimeRange is a half-open-by-convention coach busy window. Two ranges that
// only touch at an endpoint do not conflict.
type TimeRange struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%s - %s", r.StartTime.Format(time.RFC3339), r.EndTime.Format(time.RFC3339))
}

// Overlaps reports whether two busy windows conflict. A range never
// conflicts with an identical range.
func Overlaps(x, y TimeRange) bool {
	if x.StartTime.Equal(y.StartTime) && x.EndTime.Equal(y.EndTime) {
		return false
	}

	crossesFromBehind := y.StartTime.Before(x.EndTime) && y.EndTime.After(x.StartTime)
	crossesInto := x.StartTime.Before(y.StartTime) && x.EndTime.After(y.StartTime)
	nested := within(x, y) || within(y, x)

	return crossesFromBehind || crossesInto || nested
}

func within(inner, outer TimeRange) bool {
	return !inner.StartTime.Before(outer.StartTime) && !inner.EndTime.After(outer.EndTime)
}

// FirstConflict scans candidate windows against an already-accepted closure
// and against each other. It returns the first conflicting pair found, so a
// caller can abort the whole write with a concrete reason.
func FirstConflict(candidates []TimeRange, closure []TimeRange) (TimeRange, TimeRange, bool) {
	for i, candidate := range candidates {
		for _, busy := range closure {
			if Overlaps(candidate, busy) {
				return candidate, busy, true
			}
		}
		for _, other := range candidates[i+1:] {
			if Overlaps(candidate, other) {
				return candidate, other, true
			}
		}
	}
	return TimeRange{}, TimeRange{}, false
}
