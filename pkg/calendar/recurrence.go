package calendar

import (
	"errors"
	"time"
)

// conflictHorizon bounds how far ahead two open-ended weekly rules in
// different time zones are compared. A year plus a week covers every DST shift.
const conflictHorizon = 371 * 24 * time.Hour

// Rule describes when a window of availability occurs, either once on Date or
// every week on Weekday between ValidFrom and ValidUntil (both inclusive days,
// zero meaning unbounded).
type Rule struct {
	Weekly     bool
	Weekday    time.Weekday
	Date       time.Time
	Start      Clock
	End        Clock
	ValidFrom  time.Time
	ValidUntil time.Time
	Location   *time.Location
}

func (r Rule) Validate() error {
	if !r.Start.Before(r.End) {
		return errors.New("start time must be before end time")
	}
	if r.End.Minutes() > minutesPerDay {
		return errors.New("end time must not be after 24:00")
	}
	if !r.Weekly && r.Date.IsZero() {
		return errors.New("one-time rule requires a date")
	}
	if r.Weekly && (r.Weekday < time.Sunday || r.Weekday > time.Saturday) {
		return errors.New("weekly rule requires a weekday")
	}
	if !r.ValidFrom.IsZero() && !r.ValidUntil.IsZero() && r.validUntilDay().Before(r.validFromDay()) {
		return errors.New("valid_until must not be before valid_from")
	}
	return nil
}

func (r Rule) loc() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

func (r Rule) validFromDay() time.Time {
	if r.ValidFrom.IsZero() {
		return time.Time{}
	}
	return StartOfDay(r.ValidFrom, r.loc())
}

func (r Rule) validUntilDay() time.Time {
	if r.ValidUntil.IsZero() {
		return time.Time{}
	}
	return StartOfDay(r.ValidUntil, r.loc())
}

// activeOn reports whether a weekly rule produces an occurrence on day, which
// must be a local midnight in the rule's location.
func (r Rule) activeOn(day time.Time) bool {
	if day.Weekday() != r.Weekday {
		return false
	}
	if from := r.validFromDay(); !from.IsZero() && day.Before(from) {
		return false
	}
	if until := r.validUntilDay(); !until.IsZero() && day.After(until) {
		return false
	}
	return true
}

func (r Rule) occurrence(day time.Time) Interval {
	return Interval{Start: r.Start.On(day, r.loc()), End: r.End.On(day, r.loc())}
}

// Expand materializes the rule into the concrete intervals it produces inside
// [from, to), clipped to that range, sorted and in UTC. The same rule and range
// always yield the same result.
func Expand(r Rule, from, to time.Time) []Interval {
	out := []Interval{}
	if !from.Before(to) || !r.Start.Before(r.End) {
		return out
	}
	bounds := Interval{Start: from, End: to}
	loc := r.loc()

	if !r.Weekly {
		if iv, ok := r.occurrence(StartOfDay(r.Date, loc)).Intersect(bounds); ok {
			out = append(out, iv.UTC())
		}
		return out
	}

	// Start one day early so an occurrence straddling from is still clipped in.
	last := StartOfDay(to, loc)
	for day := StartOfDay(from, loc).AddDate(0, 0, -1); !day.After(last); day = day.AddDate(0, 0, 1) {
		if !r.activeOn(day) {
			continue
		}
		if iv, ok := r.occurrence(day).Intersect(bounds); ok {
			out = append(out, iv.UTC())
		}
	}
	return out
}

// ExpandAll materializes every rule over [from, to) and merges the result.
func ExpandAll(rules []Rule, from, to time.Time) []Interval {
	var all []Interval
	for _, r := range rules {
		all = append(all, Expand(r, from, to)...)
	}
	return Merge(all)
}

// Conflicts reports whether a and b can ever produce overlapping occurrences.
// Rules sharing a location are compared analytically. Rules in different
// locations are materialized over their common validity span, bounded by
// conflictHorizon starting at anchor when a rule is open-ended.
func Conflicts(a, b Rule, anchor time.Time) bool {
	if a.loc().String() != b.loc().String() {
		span, ok := commonSpan(a, b, anchor)
		if !ok {
			return false
		}
		return AnyOverlap(Expand(a, span.Start, span.End), Expand(b, span.Start, span.End))
	}

	if !(a.Start.Before(b.End) && b.Start.Before(a.End)) {
		return false
	}

	switch {
	case a.Weekly && b.Weekly:
		return a.Weekday == b.Weekday && validityOverlaps(a, b)
	case a.Weekly:
		return a.activeOn(StartOfDay(b.Date, a.loc()))
	case b.Weekly:
		return b.activeOn(StartOfDay(a.Date, b.loc()))
	default:
		return sameDay(a.Date.In(a.loc()), b.Date.In(b.loc()))
	}
}

func validityOverlaps(a, b Rule) bool {
	aFrom, aUntil := a.validFromDay(), a.validUntilDay()
	bFrom, bUntil := b.validFromDay(), b.validUntilDay()
	if !aUntil.IsZero() && !bFrom.IsZero() && aUntil.Before(bFrom) {
		return false
	}
	if !bUntil.IsZero() && !aFrom.IsZero() && bUntil.Before(aFrom) {
		return false
	}
	return true
}

func (r Rule) span(anchor time.Time) Interval {
	if !r.Weekly {
		day := StartOfDay(r.Date, r.loc())
		return Interval{Start: day.AddDate(0, 0, -1), End: day.AddDate(0, 0, 2)}
	}
	start := anchor
	if from := r.validFromDay(); !from.IsZero() {
		start = from.AddDate(0, 0, -1)
	}
	end := start.Add(conflictHorizon)
	if until := r.validUntilDay(); !until.IsZero() {
		end = until.AddDate(0, 0, 2)
	}
	return Interval{Start: start, End: end}
}

func commonSpan(a, b Rule, anchor time.Time) (Interval, bool) {
	return a.span(anchor).Intersect(b.span(anchor))
}
