// Package calendar holds the time arithmetic behind availability and booking
// checks: half-open intervals, wall-clock times and weekly recurrence
// expansion. Everything here is pure; no function reads the current time.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrEmptyInterval = errors.New("interval start must be before end")

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if !iv.Valid() {
		return Interval{}, fmt.Errorf("%w: [%s, %s)", ErrEmptyInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return iv, nil
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps uses the half-open test, so touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

func (i Interval) Intersect(o Interval) (Interval, bool) {
	start := i.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := i.End
	if o.End.Before(end) {
		end = o.End
	}
	out := Interval{Start: start, End: end}
	return out, out.Valid()
}

func (i Interval) UTC() Interval {
	return Interval{Start: i.Start.UTC(), End: i.End.UTC()}
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}

// Merge sorts the intervals and coalesces any that overlap or touch. Invalid
// intervals are dropped. The input slice is not modified.
func Merge(intervals []Interval) []Interval {
	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Valid() {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return []Interval{}
	}
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].Start.Equal(sorted[b].Start) {
			return sorted[a].End.Before(sorted[b].End)
		}
		return sorted[a].Start.Before(sorted[b].Start)
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Covered reports whether target lies entirely inside the union of intervals.
func Covered(union []Interval, target Interval) bool {
	if !target.Valid() {
		return false
	}
	for _, iv := range Merge(union) {
		if iv.Contains(target) {
			return true
		}
	}
	return false
}

// AnyOverlap reports whether any interval of a overlaps any interval of b.
// Both inputs must be sorted by start, as Expand and Merge return them.
func AnyOverlap(a, b []Interval) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Overlaps(b[j]) {
			return true
		}
		if a[i].End.After(b[j].End) {
			j++
		} else {
			i++
		}
	}
	return false
}
