// Package scheduling computes same-day slots on a fixed grid inside opening hours.
// All times are minutes from local midnight.
package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"salon/internal/domain"
	"salon/internal/models"
)

// Hours is the opening window [Open, Close) and the grid step.
type Hours struct {
	Open  int
	Close int
	Step  int
}

// DefaultHours is 10:00 to 21:00 on a 30 minute grid.
func DefaultHours() Hours {
	return Hours{Open: 10 * 60, Close: 21 * 60, Step: 30}
}

// ParseHours builds Hours from "HH:MM" strings.
func ParseHours(open, close string, step int) (Hours, error) {
	o, err := ParseClock(open)
	if err != nil {
		return Hours{}, fmt.Errorf("open: %w", err)
	}
	c, err := ParseClock(close)
	if err != nil {
		return Hours{}, fmt.Errorf("close: %w", err)
	}
	if c <= o {
		return Hours{}, fmt.Errorf("%w: close %s is not after open %s", domain.ErrInvalidInput, close, open)
	}
	if step <= 0 {
		return Hours{}, fmt.Errorf("%w: step must be positive", domain.ErrInvalidInput)
	}
	return Hours{Open: o, Close: c, Step: step}, nil
}

// Interval is the half-open range [Start, End).
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether [start, start+duration) intersects iv.
func (iv Interval) Overlaps(start, duration int) bool {
	return start < iv.End && start+duration > iv.Start
}

// ParseClock parses "HH:MM" into minutes from midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: bad time %q", domain.ErrInvalidInput, s)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: bad time %q", domain.ErrInvalidInput, s)
	}
	return h*60 + m, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// MinutesOf returns t's minutes from midnight in t's location.
func MinutesOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// FirstCandidate is the earliest start considered for today: the next full
// hour after now, never before opening.
func FirstCandidate(nowMinutes int, h Hours) int {
	next := (nowMinutes + 59) / 60 * 60
	if next < h.Open {
		return h.Open
	}
	return next
}

// NextSlot returns the first start on the grid from FirstCandidate whose
// [start, start+duration) fits before closing and overlaps nothing busy.
// The grid stays anchored at the candidate even when bookings start off-grid.
func NextSlot(nowMinutes, duration int, busy []Interval, h Hours) (int, error) {
	if duration <= 0 {
		return 0, fmt.Errorf("%w: duration must be positive", domain.ErrInvalidInput)
	}
	for cand := FirstCandidate(nowMinutes, h); cand+duration <= h.Close; cand += h.Step {
		if !overlapsAny(cand, duration, busy) {
			return cand, nil
		}
	}
	return 0, domain.ErrNoAvailability
}

// FreeSlots lists every grid start from `from` that fits.
func FreeSlots(from, duration int, busy []Interval, h Hours) []int {
	if duration <= 0 {
		return nil
	}
	if from < h.Open {
		from = h.Open
	}
	var out []int
	for cand := from; cand+duration <= h.Close; cand += h.Step {
		if !overlapsAny(cand, duration, busy) {
			out = append(out, cand)
		}
	}
	return out
}

// GridStart returns the first grid point at or after from, anchored at Open.
func (h Hours) GridStart(from int) int {
	if from <= h.Open {
		return h.Open
	}
	off := (from - h.Open + h.Step - 1) / h.Step * h.Step
	return h.Open + off
}

// Occupied converts bookings (blocks included) into busy intervals.
func Occupied(bookings []*models.Booking) ([]Interval, error) {
	busy := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		start, err := ParseClock(b.Time)
		if err != nil {
			return nil, fmt.Errorf("booking %d: %w", b.ID, err)
		}
		busy = append(busy, Interval{Start: start, End: start + b.DurationMinutes})
	}
	return busy, nil
}

func overlapsAny(start, duration int, busy []Interval) bool {
	for _, iv := range busy {
		if iv.Overlaps(start, duration) {
			return true
		}
	}
	return false
}
