package appointments

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medconnect/scheduling-api/internal/identity"
)

// InMemoryStore is a map-backed Store for tests and local runs. It enforces
// the same slot-occupancy rule as the Postgres repository.
type InMemoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*Appointment
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1, rows: make(map[int64]*Appointment)}
}

func (s *InMemoryStore) Get(ctx context.Context, id int64) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *appt
	return &clone, nil
}

func (s *InMemoryStore) List(ctx context.Context, f ListFilter) ([]*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Appointment, 0, len(s.rows))
	for _, appt := range s.rows {
		if f.DoctorID > 0 && appt.DoctorID != f.DoctorID {
			continue
		}
		if f.PatientEmail != "" && !strings.EqualFold(appt.PatientEmail, f.PatientEmail) {
			continue
		}
		if f.Status != "" && appt.Status != f.Status {
			continue
		}
		if f.FromDate != "" && appt.Date < f.FromDate {
			continue
		}
		if f.ToDate != "" && appt.Date > f.ToDate {
			continue
		}
		clone := *appt
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *InMemoryStore) BookedTimes(ctx context.Context, doctorID int64, date string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var times []string
	for _, appt := range s.rows {
		if appt.DoctorID == doctorID && appt.Date == date && appt.Status.Occupies() {
			times = append(times, appt.Time)
		}
	}
	sort.Strings(times)
	return times, nil
}

func (s *InMemoryStore) CreateBooked(ctx context.Context, appt *Appointment) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rows {
		if existing.DoctorID == appt.DoctorID && existing.Date == appt.Date &&
			existing.Time == appt.Time && existing.Status.Occupies() {
			return nil, ErrSlotTaken
		}
	}

	clone := *appt
	clone.ID = s.nextID
	s.nextID++
	clone.Status = StatusBooked
	now := time.Now().UTC()
	clone.CreatedAt = now
	clone.UpdatedAt = now
	s.rows[clone.ID] = &clone
	result := clone
	return &result, nil
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, id int64, to Status, changedBy identity.Role) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	appt.Status = to
	appt.UpdatedAt = time.Now().UTC()
	clone := *appt
	return &clone, nil
}

var _ Store = (*InMemoryStore)(nil)
