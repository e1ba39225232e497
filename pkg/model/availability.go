package model

import (
	"fmt"
	"time"

	"tutorbook/pkg/calendar"
)

type Recurrence string

const (
	RecurrenceNone   Recurrence = "NONE"
	RecurrenceWeekly Recurrence = "WEEKLY"
)

var weekdays = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// AvailabilityWindow is a block of time a tutor offers for sessions, either
// once on Date or every week on DayOfWeek. Clock fields are wall-clock HH:MM
// in TimeZone.
type AvailabilityWindow struct {
	ID         string     `json:"id,omitempty" bson:"_id,omitempty"`
	TutorID    string     `json:"tutor_id" bson:"tutor_id" validate:"required,max=64"`
	Recurrence Recurrence `json:"recurrence" bson:"recurrence" validate:"required,oneof=NONE WEEKLY"`
	DayOfWeek  string     `json:"day_of_week,omitempty" bson:"day_of_week,omitempty" validate:"required_if=Recurrence WEEKLY,omitempty,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	Date       string     `json:"date,omitempty" bson:"date,omitempty" validate:"required_if=Recurrence NONE,omitempty,datetime=2006-01-02"`
	StartTime  string     `json:"start_time" bson:"start_time" validate:"required,clock"`
	EndTime    string     `json:"end_time" bson:"end_time" validate:"required,clock"`
	TimeZone   string     `json:"time_zone,omitempty" bson:"time_zone" validate:"omitempty,timezone"`
	ValidFrom  *time.Time `json:"valid_from,omitempty" bson:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty" bson:"valid_until,omitempty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
}

func (w *AvailabilityWindow) Location() (*time.Location, error) {
	if w.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(w.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", w.TimeZone, err)
	}
	return loc, nil
}

// Rule converts the stored window into the recurrence rule used for
// expansion and conflict checks.
func (w *AvailabilityWindow) Rule() (calendar.Rule, error) {
	loc, err := w.Location()
	if err != nil {
		return calendar.Rule{}, err
	}
	start, err := calendar.ParseClock(w.StartTime)
	if err != nil {
		return calendar.Rule{}, err
	}
	end, err := calendar.ParseClock(w.EndTime)
	if err != nil {
		return calendar.Rule{}, err
	}

	rule := calendar.Rule{
		Weekly:   w.Recurrence == RecurrenceWeekly,
		Start:    start,
		End:      end,
		Location: loc,
	}
	if w.ValidFrom != nil {
		rule.ValidFrom = *w.ValidFrom
	}
	if w.ValidUntil != nil {
		rule.ValidUntil = *w.ValidUntil
	}

	switch w.Recurrence {
	case RecurrenceWeekly:
		day, ok := weekdays[w.DayOfWeek]
		if !ok {
			return calendar.Rule{}, fmt.Errorf("invalid day_of_week %q", w.DayOfWeek)
		}
		rule.Weekday = day
	case RecurrenceNone:
		date, err := calendar.ParseDate(w.Date, loc)
		if err != nil {
			return calendar.Rule{}, err
		}
		rule.Date = date
	default:
		return calendar.Rule{}, fmt.Errorf("invalid recurrence %q", w.Recurrence)
	}

	if err := rule.Validate(); err != nil {
		return calendar.Rule{}, err
	}
	return rule, nil
}
