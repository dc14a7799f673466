package appointments

import (
	"sort"
	"time"

	"github.com/medconnect/scheduling-api/internal/doctors"
)

// SlotList answers the slot question for one doctor on one date.
type SlotList struct {
	DoctorID  int64    `json:"doctor_id"`
	Date      string   `json:"date"`
	Available []string `json:"available"`
	Booked    []string `json:"booked"`
}

// DeriveSlots computes the bookable times: the doctor's hourly window starts
// on that date minus every time that still occupies a slot. Booked times are
// normalized so "09:00:00" blocks the "09:00" candidate.
func DeriveSlots(doc *doctors.Doctor, date time.Time, booked []string) SlotList {
	taken := make(map[string]struct{}, len(booked))
	normalized := make([]string, 0, len(booked))
	for _, raw := range booked {
		clock, err := doctors.ParseClock(raw)
		if err != nil {
			continue
		}
		key := clock.String()
		if _, seen := taken[key]; seen {
			continue
		}
		taken[key] = struct{}{}
		normalized = append(normalized, key)
	}
	sort.Strings(normalized)

	var available []string
	for _, slot := range doc.SlotTimesOn(date) {
		if _, ok := taken[slot.String()]; ok {
			continue
		}
		available = append(available, slot.String())
	}
	if available == nil {
		available = []string{}
	}

	return SlotList{
		DoctorID:  doc.ID,
		Date:      date.Format(DateLayout),
		Available: available,
		Booked:    normalized,
	}
}
