package appointments

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/medconnect/scheduling-api/internal/doctors"
	"github.com/medconnect/scheduling-api/internal/identity"
	"github.com/medconnect/scheduling-api/internal/observability/metrics"
	"github.com/medconnect/scheduling-api/pkg/logging"
)

// Store persists appointments. *Repository implements it against Postgres;
// InMemoryStore backs tests.
type Store interface {
	Get(ctx context.Context, id int64) (*Appointment, error)
	List(ctx context.Context, f ListFilter) ([]*Appointment, error)
	BookedTimes(ctx context.Context, doctorID int64, date string) ([]string, error)
	CreateBooked(ctx context.Context, appt *Appointment) (*Appointment, error)
	UpdateStatus(ctx context.Context, id int64, to Status, changedBy identity.Role) (*Appointment, error)
}

// Delivery is the notification outcome surfaced in booking and transition
// responses. A failed delivery never fails the request it rode on.
type Delivery struct {
	Sent  bool   `json:"sent"`
	SID   string `json:"sid,omitempty"`
	Error string `json:"error,omitempty"`
}

// NotSent is the delivery outcome when no notification was attempted.
func NotSent() Delivery { return Delivery{Sent: false, Error: "not_sent"} }

// Notifier sends patient notifications after a committed change.
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt *Appointment) Delivery
	AppointmentStatusChanged(ctx context.Context, appt *Appointment, previous Status) Delivery
}

// BookRequest is the patient booking payload.
type BookRequest struct {
	DoctorID     int64  `json:"doctor_id"`
	DoctorName   string `json:"doctor"`
	Specialty    string `json:"specialty"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	PatientName  string `json:"name"`
	PatientEmail string `json:"email"`
	PatientPhone string `json:"phone"`
}

// BookResult pairs the stored appointment with the notification outcome.
type BookResult struct {
	Appointment *Appointment `json:"appointment"`
	SMS         Delivery     `json:"sms"`
}

// Service coordinates slot derivation, booking and status transitions.
type Service struct {
	store   Store
	doctors doctors.Repository
	notify  Notifier
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewService creates the scheduling service. The doctors repository must be
// the uncached one: booking decisions read the source of truth.
func NewService(store Store, docs doctors.Repository, notify Notifier, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:   store,
		doctors: docs,
		notify:  notify,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("medconnect/appointments"),
	}
}

// Slots derives available and booked times for a doctor on a date. An
// inactive doctor or a closed weekday yields an empty available list.
func (s *Service) Slots(ctx context.Context, doctorID int64, dateRaw string) (*SlotList, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.slots")
	defer span.End()

	if doctorID <= 0 {
		return nil, Invalidf("doctor_id must be a positive integer")
	}
	date, err := ParseDate(dateRaw)
	if err != nil {
		return nil, Invalidf("date must be in YYYY-MM-DD format")
	}

	doc, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	booked, err := s.store.BookedTimes(ctx, doctorID, date.Format(DateLayout))
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSlotQueryLatency(time.Since(started).Seconds())

	list := DeriveSlots(doc, date, booked)
	return &list, nil
}

// Book validates and atomically claims a slot for a patient, then fires the
// confirmation SMS. The SMS outcome rides back in the result; its failure is
// not a booking failure.
func (s *Service) Book(ctx context.Context, actor identity.Actor, req BookRequest) (*BookResult, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.book")
	defer span.End()

	if actor.Role != identity.RolePatient {
		return nil, ErrForbidden
	}

	req.DoctorName = strings.TrimSpace(req.DoctorName)
	req.Specialty = strings.TrimSpace(req.Specialty)
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PatientEmail = strings.ToLower(strings.TrimSpace(req.PatientEmail))
	req.PatientPhone = strings.TrimSpace(req.PatientPhone)

	if req.DoctorID <= 0 || req.DoctorName == "" || req.Specialty == "" ||
		req.Date == "" || req.Time == "" ||
		req.PatientName == "" || req.PatientEmail == "" || req.PatientPhone == "" {
		s.metrics.ObserveBooking(metrics.OutcomeRejected)
		return nil, Invalidf("Missing required fields")
	}

	// Patients book for themselves only.
	if actor.Email != "" && !strings.EqualFold(actor.Email, req.PatientEmail) {
		return nil, ErrForbidden
	}

	date, err := ParseDate(req.Date)
	if err != nil {
		s.metrics.ObserveBooking(metrics.OutcomeRejected)
		return nil, Invalidf("date must be in YYYY-MM-DD format")
	}
	clock, err := doctors.ParseClock(req.Time)
	if err != nil {
		s.metrics.ObserveBooking(metrics.OutcomeRejected)
		return nil, Invalidf("time must be in HH:MM format")
	}

	doc, err := s.doctors.Get(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, doctors.ErrNotFound) {
			s.metrics.ObserveBooking(metrics.OutcomeRejected)
			return nil, Invalidf("Invalid doctor_id: %d", req.DoctorID)
		}
		return nil, err
	}
	if !doc.IsActive {
		s.metrics.ObserveBooking(metrics.OutcomeRejected)
		return nil, Invalidf("Invalid doctor_id: %d", req.DoctorID)
	}
	if !strings.EqualFold(req.DoctorName, doc.FullName) {
		s.metrics.ObserveBooking(metrics.OutcomeRejected)
		return nil, Invalidf("doctor_id does not match selected doctor name")
	}
	if !slotLegitimate(doc, date, clock) {
		s.metrics.ObserveBooking(metrics.OutcomeRejected)
		return nil, Invalidf("time is outside the doctor's availability")
	}

	appt := &Appointment{
		DoctorID:     doc.ID,
		DoctorName:   doc.FullName,
		Specialty:    doc.Specialty,
		Date:         date.Format(DateLayout),
		Time:         clock.String(),
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
		Status:       StatusBooked,
	}
	created, err := s.store.CreateBooked(ctx, appt)
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			s.metrics.ObserveBooking(metrics.OutcomeConflict)
		} else {
			s.metrics.ObserveBooking(metrics.OutcomeError)
		}
		return nil, err
	}
	s.metrics.ObserveBooking(metrics.OutcomeBooked)
	s.logger.Info("appointment booked",
		"appointment_id", created.ID, "doctor_id", created.DoctorID,
		"date", created.Date, "time", created.Time)

	delivery := NotSent()
	if s.notify != nil {
		delivery = s.notify.AppointmentBooked(ctx, created)
	}
	s.metrics.ObserveNotification("appointment_booked", delivery.Sent)

	return &BookResult{Appointment: created, SMS: delivery}, nil
}

// SetStatus moves an appointment through the lifecycle, honoring the
// role-based transition table. Patients touch only their own appointments.
// A same-status request persists but notifies nobody.
func (s *Service) SetStatus(ctx context.Context, actor identity.Actor, id int64, statusRaw string) (*BookResult, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.set_status")
	defer span.End()

	to, ok := ParseStatus(statusRaw)
	if !ok {
		return nil, Invalidf("Invalid status")
	}

	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.Role == identity.RolePatient && !strings.EqualFold(actor.Email, appt.PatientEmail) {
		return nil, ErrForbidden
	}
	// Doctors manage their own schedule only.
	if actor.Role == identity.RoleDoctor && appt.DoctorID != actor.DoctorID {
		return nil, ErrForbidden
	}
	if !CanTransition(actor.Role, appt.Status, to) {
		return nil, ErrForbidden
	}

	previous := appt.Status
	updated, err := s.store.UpdateStatus(ctx, id, to, actor.Role)
	if err != nil {
		return nil, err
	}

	delivery := NotSent()
	if updated.Status != previous {
		s.metrics.ObserveTransition(string(previous), string(updated.Status))
		s.logger.Info("appointment status changed",
			"appointment_id", updated.ID, "from", previous, "to", updated.Status,
			"changed_by", actor.Role)
		if s.notify != nil {
			delivery = s.notify.AppointmentStatusChanged(ctx, updated, previous)
		}
		s.metrics.ObserveNotification("status_changed", delivery.Sent)
	}

	return &BookResult{Appointment: updated, SMS: delivery}, nil
}

// List returns appointments visible to the actor. Patients see their own,
// doctors their schedule; admins see everything the filter allows.
func (s *Service) List(ctx context.Context, actor identity.Actor, f ListFilter) ([]*Appointment, error) {
	switch actor.Role {
	case identity.RolePatient:
		f.PatientEmail = actor.Email
	case identity.RoleDoctor:
		if actor.DoctorID > 0 {
			f.DoctorID = actor.DoctorID
		}
	case identity.RoleAdmin:
		// unrestricted
	default:
		return nil, ErrForbidden
	}
	return s.store.List(ctx, f)
}

// ExportCSV streams appointments matching the filter as CSV, newest first by
// calendar order.
func (s *Service) ExportCSV(ctx context.Context, f ListFilter, w io.Writer) error {
	appts, err := s.store.List(ctx, f)
	if err != nil {
		return err
	}
	sort.Slice(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.Time != b.Time {
			return a.Time > b.Time
		}
		return a.ID > b.ID
	})

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"id", "date", "time",
		"patient_name", "patient_email", "patient_phone",
		"doctor_name", "doctor_id", "specialty", "status",
	}); err != nil {
		return err
	}
	for _, appt := range appts {
		if err := cw.Write([]string{
			strconv.FormatInt(appt.ID, 10), appt.Date, appt.Time,
			appt.PatientName, appt.PatientEmail, appt.PatientPhone,
			appt.DoctorName, strconv.FormatInt(appt.DoctorID, 10),
			appt.Specialty, string(appt.Status),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func slotLegitimate(doc *doctors.Doctor, date time.Time, clock doctors.Clock) bool {
	for _, slot := range doc.SlotTimesOn(date) {
		if slot == clock {
			return true
		}
	}
	return false
}
