// Package availability turns a doctor's weekly schedule into bookable slots.
package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
)

// SlotLength is the granularity of bookable slots.
const SlotLength = 30 * time.Minute

// DateLayout is the YYYY-MM-DD form dates travel in.
const DateLayout = "2006-01-02"

// Weekly is a doctor's recurring availability: the weekdays they see
// patients and the working hours [StartHour:00, EndHour:00).
type Weekly struct {
	Days      []time.Weekday
	StartHour int
	EndHour   int
}

// Has reports whether day is a working day.
func (w Weekly) Has(day time.Weekday) bool {
	for _, d := range w.Days {
		if d == day {
			return true
		}
	}
	return false
}

// FromDoctor parses available_days and available_hours. ok is false when
// the doctor carries no availability data at all.
func FromDoctor(d model.Doctor) (w Weekly, ok bool) {
	if len(d.AvailableDays) == 0 && strings.TrimSpace(d.AvailableHours) == "" {
		return Weekly{}, false
	}
	for _, name := range d.AvailableDays {
		if day, found := ParseWeekday(name); found {
			w.Days = append(w.Days, day)
		}
	}
	w.StartHour, w.EndHour = ParseHours(d.AvailableHours)
	return w, true
}

// ParseWeekday accepts English weekday names in any case.
func ParseWeekday(name string) (time.Weekday, bool) {
	name = strings.TrimSpace(name)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d, true
		}
	}
	return time.Sunday, false
}

// ParseHours reads "09:00-17:00". Only the hours count. Unparsable input
// yields 0,0 which produces no slots.
func ParseHours(s string) (start, end int) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return 0, 0
	}
	start, okStart := hourOf(parts[0])
	end, okEnd := hourOf(parts[1])
	if !okStart || !okEnd {
		return 0, 0
	}
	return start, end
}

func hourOf(hhmm string) (int, bool) {
	h, _, _ := strings.Cut(strings.TrimSpace(hhmm), ":")
	n, err := strconv.Atoi(h)
	if err != nil || n < 0 || n > 24 {
		return 0, false
	}
	return n, true
}

// ComputeSlots lists the slot start times the doctor offers on date, in
// ascending order. A weekday the doctor does not work returns an
// Unavailable error; an empty hour range returns no slots and no error.
func ComputeSlots(d model.Doctor, date time.Time) ([]string, error) {
	w, ok := FromDoctor(d)
	if !ok {
		return []string{}, nil
	}
	day := date.Weekday()
	if len(w.Days) == 0 || !w.Has(day) {
		return nil, errs.Unavailable(fmt.Sprintf("doctor not available on %s", day)).
			Arg("doctor", d.ID)
	}
	return Slots(w.StartHour, w.EndHour), nil
}

// Slots enumerates every 30-minute boundary in [start:00, end:00).
func Slots(startHour, endHour int) []string {
	if startHour >= endHour {
		return []string{}
	}
	out := make([]string, 0, (endHour-startHour)*2)
	for m := startHour * 60; m < endHour*60; m += int(SlotLength / time.Minute) {
		out = append(out, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return out
}

// Window is the range of calendar dates open for booking.
type Window struct {
	Months int
	Loc    *time.Location
}

// Bounds returns the first and last bookable dates relative to now.
func (w Window) Bounds(now time.Time) (first, last time.Time) {
	loc := w.location()
	n := now.In(loc)
	first = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	last = first.AddDate(0, w.Months, 0)
	return first, last
}

// Check rejects dates before today or after today plus the window.
func (w Window) Check(date, now time.Time) error {
	first, last := w.Bounds(now)
	d := DateOnly(date, w.location())
	if d.Before(first) {
		return errs.Validation("Please choose a date from today onwards").Arg("date", d.Format(DateLayout))
	}
	if d.After(last) {
		return errs.Validation(fmt.Sprintf("Appointments can be booked at most %d months ahead", w.Months)).
			Arg("date", d.Format(DateLayout))
	}
	return nil
}

func (w Window) location() *time.Location {
	if w.Loc == nil {
		return time.Local
	}
	return w.Loc
}

// DateOnly keeps the calendar date of t as seen in loc, at midnight.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate reads a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, errs.Validation("Please enter a date as YYYY-MM-DD").Arg("date", s).Wrap(err)
	}
	return t, nil
}

// Combine joins a calendar date and an HH:MM slot into one instant in loc.
func Combine(date time.Time, slot string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	hm, err := time.Parse("15:04", slot)
	if err != nil {
		return time.Time{}, errs.Validation("invalid time slot").Arg("slot", slot).Wrap(err)
	}
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, hm.Hour(), hm.Minute(), 0, 0, loc), nil
}
