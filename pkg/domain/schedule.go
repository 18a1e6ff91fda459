package domain

import (
	"fmt"
	"time"
)

// Task duration bounds in inclusive days. A one-day task starts and ends on
// the same date.
const (
	MinTaskDurationDays = 1
	MaxTaskDurationDays = 365
)

// DateRange is an inclusive [Start, End] date window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether End is on or after Start.
func (r DateRange) Valid() bool {
	return !r.End.Before(r.Start)
}

// Days returns the inclusive day count of the range. Same-day ranges count as
// one day. Timestamps are truncated to calendar days in UTC first.
func (r DateRange) Days() int {
	start := truncateDay(r.Start)
	end := truncateDay(r.End)
	return int(end.Sub(start)/(24*time.Hour)) + 1
}

// Contains reports whether other falls entirely inside the range. Endpoints
// are compared at calendar-day precision in UTC, like Days.
func (r DateRange) Contains(other DateRange) bool {
	return !truncateDay(other.Start).Before(truncateDay(r.Start)) && !truncateDay(other.End).After(truncateDay(r.End))
}

// Overlaps applies the inclusive interval test at calendar-day precision: the
// ranges share at least one day when a.Start <= b.End and a.End >= b.Start.
// Intra-day timestamps on either endpoint still count the whole day.
func (r DateRange) Overlaps(other DateRange) bool {
	return !truncateDay(r.Start).After(truncateDay(other.End)) && !truncateDay(r.End).Before(truncateDay(other.Start))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateTask checks a candidate task against structural constraints and
// against the existing tasks on the same factory. All violations are
// collected rather than short-circuited so callers can surface every problem
// at once. The function never mutates anything; existing tasks belonging to
// other factories and cancelled tasks are skipped, as is the candidate's own
// id (so re-validating a moved task does not conflict with itself).
func ValidateTask(candidate Task, projectWindow *DateRange, existing []Task) Result {
	var res Result
	window := candidate.Window()

	if !window.Valid() {
		res.Violations = append(res.Violations, Violation{
			Rule:     "task_window",
			Code:     CodeInvalidRange,
			Severity: SeverityBlock,
			Message:  fmt.Sprintf("task end %s precedes start %s", candidate.EndDate.Format(time.DateOnly), candidate.StartDate.Format(time.DateOnly)),
			Entity:   EntityTask,
			EntityID: string(candidate.ID),
		})
		return res
	}

	if d := window.Days(); d < MinTaskDurationDays || d > MaxTaskDurationDays {
		res.Violations = append(res.Violations, Violation{
			Rule:     "task_window",
			Code:     CodeDurationOutOfBounds,
			Severity: SeverityBlock,
			Message:  fmt.Sprintf("task duration %d days outside allowed [%d, %d]", d, MinTaskDurationDays, MaxTaskDurationDays),
			Entity:   EntityTask,
			EntityID: string(candidate.ID),
		})
	}

	if projectWindow != nil && !projectWindow.Contains(window) {
		res.Violations = append(res.Violations, Violation{
			Rule:     "task_window",
			Code:     CodeOutOfProjectBounds,
			Severity: SeverityBlock,
			Message: fmt.Sprintf("task window [%s, %s] escapes project window [%s, %s]",
				candidate.StartDate.Format(time.DateOnly), candidate.EndDate.Format(time.DateOnly),
				projectWindow.Start.Format(time.DateOnly), projectWindow.End.Format(time.DateOnly)),
			Entity:   EntityTask,
			EntityID: string(candidate.ID),
		})
	}

	if !candidate.BlocksOverlap() {
		return res
	}
	for _, other := range existing {
		if other.ID == candidate.ID || other.FactoryID != candidate.FactoryID || !other.BlocksOverlap() {
			continue
		}
		if window.Overlaps(other.Window()) {
			res.Violations = append(res.Violations, Violation{
				Rule:       "factory_overlap",
				Code:       CodeOverlapConflict,
				Severity:   SeverityBlock,
				Message:    fmt.Sprintf("factory %s already runs task %s in the requested window", candidate.FactoryID, other.ID),
				Entity:     EntityTask,
				EntityID:   string(candidate.ID),
				ConflictID: string(other.ID),
			})
		}
	}
	return res
}
