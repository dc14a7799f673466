// Package doctors holds the doctor directory and the weekly availability
// model that bookable slots are derived from.
package doctors

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SlotMinutes is the fixed appointment length. Availability windows must
// decompose into whole slots.
const SlotMinutes = 60

// Weekday is a lowercase three-letter day tag ("mon".."sun").
type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"
)

// WeekOrder lists the days in calendar order, Monday first.
var WeekOrder = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var validDays = map[Weekday]struct{}{
	Monday: {}, Tuesday: {}, Wednesday: {}, Thursday: {}, Friday: {}, Saturday: {}, Sunday: {},
}

// ParseWeekday normalizes a day tag, returning false for unknown values.
func ParseWeekday(s string) (Weekday, bool) {
	day := Weekday(strings.ToLower(strings.TrimSpace(s)))
	_, ok := validDays[day]
	return day, ok
}

// WeekdayOf maps a calendar date to its day tag.
func WeekdayOf(t time.Time) Weekday {
	switch t.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// Clock is a time of day in minutes since midnight. It marshals as "HH:MM".
type Clock int

// ParseClock parses "HH:MM" (seconds tolerated and ignored).
func ParseClock(s string) (Clock, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("time %q must be in HH:MM format", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("time %q must be in HH:MM format", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("time %q must be in HH:MM format", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q is out of range", s)
	}
	return Clock(h*60 + m), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// OnHour reports whether the clock sits on an exact hour boundary.
func (c Clock) OnHour() bool { return int(c)%60 == 0 }

// MarshalJSON renders the clock as "HH:MM".
func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "HH:MM".
func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AvailabilityWindow is a doctor's recurring weekly bookable period: a set of
// active weekdays and one contiguous daily window on hour boundaries.
type AvailabilityWindow struct {
	Days  []Weekday `json:"availability_days"`
	Start Clock     `json:"availability_start"`
	End   Clock     `json:"availability_end"`
}

// NormalizeDays lowercases, deduplicates and orders day tags Monday-first.
// Unknown tags are rejected.
func NormalizeDays(raw []string) ([]Weekday, error) {
	seen := make(map[Weekday]struct{}, len(raw))
	for _, item := range raw {
		if strings.TrimSpace(item) == "" {
			continue
		}
		day, ok := ParseWeekday(item)
		if !ok {
			return nil, fmt.Errorf("invalid availability_days value: %q", item)
		}
		seen[day] = struct{}{}
	}
	out := make([]Weekday, 0, len(seen))
	for _, day := range WeekOrder {
		if _, ok := seen[day]; ok {
			out = append(out, day)
		}
	}
	return out, nil
}

// Validate enforces the window invariants: known day tags, start < end, both
// ends on the hour, and a span that is a positive whole multiple of one slot.
func (w AvailabilityWindow) Validate() error {
	for _, day := range w.Days {
		if _, ok := validDays[day]; !ok {
			return fmt.Errorf("invalid availability_days value: %q", day)
		}
	}
	if w.Start < 0 || w.Start >= 24*60 || w.End < 0 || w.End > 24*60 {
		return fmt.Errorf("availability window is out of range")
	}
	if !w.Start.OnHour() || !w.End.OnHour() {
		return fmt.Errorf("availability times must be on the hour for %d-minute slots", SlotMinutes)
	}
	if w.Start >= w.End {
		return fmt.Errorf("availability_start must be before availability_end")
	}
	if span := int(w.End - w.Start); span < SlotMinutes || span%SlotMinutes != 0 {
		return fmt.Errorf("availability window must align to %d-minute slots", SlotMinutes)
	}
	return nil
}

// OpenOn reports whether the window covers the given weekday.
func (w AvailabilityWindow) OpenOn(day Weekday) bool {
	for _, d := range w.Days {
		if d == day {
			return true
		}
	}
	return false
}

// SlotTimes returns the ordered hourly slot start times inside [Start, End).
func (w AvailabilityWindow) SlotTimes() []Clock {
	if w.Start >= w.End {
		return nil
	}
	slots := make([]Clock, 0, int(w.End-w.Start)/SlotMinutes)
	for t := w.Start; t < w.End; t += SlotMinutes {
		slots = append(slots, t)
	}
	return slots
}

// Weekly renders the window as a mon..sun map of "HH:MM-HH:MM" ranges, the
// shape the availability endpoint has always served.
func (w AvailabilityWindow) Weekly() map[Weekday][]string {
	span := fmt.Sprintf("%s-%s", w.Start, w.End)
	weekly := make(map[Weekday][]string, len(WeekOrder))
	for _, day := range WeekOrder {
		if w.OpenOn(day) {
			weekly[day] = []string{span}
		} else {
			weekly[day] = []string{}
		}
	}
	return weekly
}

// Doctor is a bookable practitioner. Inactive doctors accept no new bookings
// but keep their history.
type Doctor struct {
	ID        int64              `json:"id"`
	FullName  string             `json:"full_name"`
	Specialty string             `json:"specialty"`
	Email     string             `json:"email"`
	Phone     string             `json:"phone,omitempty"`
	IsActive  bool               `json:"is_active"`
	Window    AvailabilityWindow `json:"-"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// MarshalJSON flattens the availability window into the doctor object.
func (d Doctor) MarshalJSON() ([]byte, error) {
	type alias Doctor
	return json.Marshal(struct {
		alias
		Days  []Weekday `json:"availability_days"`
		Start Clock     `json:"availability_start"`
		End   Clock     `json:"availability_end"`
	}{
		alias: alias(d),
		Days:  daysOrEmpty(d.Window.Days),
		Start: d.Window.Start,
		End:   d.Window.End,
	})
}

// UnmarshalJSON restores the flattened window fields.
func (d *Doctor) UnmarshalJSON(data []byte) error {
	type alias Doctor
	aux := struct {
		*alias
		Days  []Weekday `json:"availability_days"`
		Start Clock     `json:"availability_start"`
		End   Clock     `json:"availability_end"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Window = AvailabilityWindow{Days: aux.Days, Start: aux.Start, End: aux.End}
	return nil
}

// PublicDoctor is the patient-facing projection of a doctor.
type PublicDoctor struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Specialty string    `json:"specialty"`
	Days      []Weekday `json:"availability_days"`
	Start     Clock     `json:"availability_start"`
	End       Clock     `json:"availability_end"`
}

// Public strips contact and lifecycle fields for unauthenticated callers.
func (d *Doctor) Public() PublicDoctor {
	return PublicDoctor{
		ID:        d.ID,
		FullName:  d.FullName,
		Specialty: d.Specialty,
		Days:      daysOrEmpty(d.Window.Days),
		Start:     d.Window.Start,
		End:       d.Window.End,
	}
}

// SlotTimesOn answers the availability question for a concrete date: the
// ordered hourly starts, or nothing if the doctor is inactive or the date's
// weekday is not active.
func (d *Doctor) SlotTimesOn(date time.Time) []Clock {
	if d == nil || !d.IsActive {
		return nil
	}
	if !d.Window.OpenOn(WeekdayOf(date)) {
		return nil
	}
	return d.Window.SlotTimes()
}

func daysOrEmpty(days []Weekday) []Weekday {
	if days == nil {
		return []Weekday{}
	}
	return days
}

// SortDays orders a day set Monday-first in place and returns it.
func SortDays(days []Weekday) []Weekday {
	rank := make(map[Weekday]int, len(WeekOrder))
	for i, d := range WeekOrder {
		rank[d] = i
	}
	sort.Slice(days, func(i, j int) bool { return rank[days[i]] < rank[days[j]] })
	return days
}
