package appointments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/medconnect/scheduling-api/internal/doctors"
	"github.com/medconnect/scheduling-api/internal/identity"
)

type stubNotifier struct {
	booked  int
	changed int
}

func (s *stubNotifier) AppointmentBooked(ctx context.Context, appt *Appointment) Delivery {
	s.booked++
	return Delivery{Sent: true, SID: "SM123"}
}

func (s *stubNotifier) AppointmentStatusChanged(ctx context.Context, appt *Appointment, previous Status) Delivery {
	s.changed++
	return Delivery{Sent: true, SID: "SM124"}
}

func newFixture(t *testing.T) (*Service, *stubNotifier, *doctors.Doctor) {
	t.Helper()
	docs := doctors.NewInMemoryRepository()
	doc, err := docs.Create(context.Background(), &doctors.Doctor{
		FullName:  "Dr Amina Benali",
		Email:     "amina@medconnect.test",
		Specialty: "Cardiology",
		IsActive:  true,
		Window: doctors.AvailabilityWindow{
			Days:  []doctors.Weekday{doctors.Monday},
			Start: 540,
			End:   720,
		},
	})
	if err != nil {
		t.Fatalf("seed doctor: %v", err)
	}
	notifier := &stubNotifier{}
	svc := NewService(NewInMemoryStore(), docs, notifier, nil, nil)
	return svc, notifier, doc
}

func patientActor() identity.Actor {
	return identity.Actor{Role: identity.RolePatient, Email: "pat@medconnect.test"}
}

func bookRequest(doc *doctors.Doctor) BookRequest {
	return BookRequest{
		DoctorID:     doc.ID,
		DoctorName:   doc.FullName,
		Specialty:    doc.Specialty,
		Date:         "2026-09-07", // a Monday
		Time:         "09:00",
		PatientName:  "Pat Doe",
		PatientEmail: "pat@medconnect.test",
		PatientPhone: "+15550001111",
	}
}

func TestBookSuccess(t *testing.T) {
	svc, notifier, doc := newFixture(t)

	result, err := svc.Book(context.Background(), patientActor(), bookRequest(doc))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if result.Appointment.Status != StatusBooked {
		t.Fatalf("expected booked status, got %s", result.Appointment.Status)
	}
	if result.Appointment.DoctorName != "Dr Amina Benali" || result.Appointment.Specialty != "Cardiology" {
		t.Fatalf("snapshot fields wrong: %+v", result.Appointment)
	}
	if !result.SMS.Sent || result.SMS.SID != "SM123" {
		t.Fatalf("expected sms delivery outcome, got %+v", result.SMS)
	}
	if notifier.booked != 1 {
		t.Fatalf("expected one booking notification, got %d", notifier.booked)
	}
}

func TestBookConflictAndCancelFreesSlot(t *testing.T) {
	svc, _, doc := newFixture(t)
	ctx := context.Background()

	first, err := svc.Book(ctx, patientActor(), bookRequest(doc))
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}

	rival := identity.Actor{Role: identity.RolePatient, Email: "other@medconnect.test"}
	rivalReq := bookRequest(doc)
	rivalReq.PatientEmail = "other@medconnect.test"
	if _, err := svc.Book(ctx, rival, rivalReq); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	if _, err := svc.SetStatus(ctx, patientActor(), first.Appointment.ID, "cancelled"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := svc.Book(ctx, rival, rivalReq); err != nil {
		t.Fatalf("expected cancelled slot to be rebookable, got %v", err)
	}
}

func TestBookRejectsMismatchedEmail(t *testing.T) {
	svc, _, doc := newFixture(t)

	req := bookRequest(doc)
	req.PatientEmail = "someoneelse@medconnect.test"
	if _, err := svc.Book(context.Background(), patientActor(), req); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestBookRequiresPatientRole(t *testing.T) {
	svc, _, doc := newFixture(t)

	admin := identity.Actor{Role: identity.RoleAdmin, Email: "admin@medconnect.test"}
	if _, err := svc.Book(context.Background(), admin, bookRequest(doc)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for admin booking, got %v", err)
	}
}

func TestBookValidation(t *testing.T) {
	svc, _, doc := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*BookRequest)
	}{
		{"missing name", func(r *BookRequest) { r.PatientName = "" }},
		{"bad date", func(r *BookRequest) { r.Date = "07-09-2026" }},
		{"bad time", func(r *BookRequest) { r.Time = "morning" }},
		{"doctor name mismatch", func(r *BookRequest) { r.DoctorName = "Dr Someone Else" }},
		{"outside availability", func(r *BookRequest) { r.Time = "15:00" }},
		{"closed day", func(r *BookRequest) { r.Date = "2026-09-08" }},
		{"half hour", func(r *BookRequest) { r.Time = "09:30" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := bookRequest(doc)
			tt.mutate(&req)
			if _, err := svc.Book(ctx, patientActor(), req); !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestBookInactiveDoctor(t *testing.T) {
	svc, _, doc := newFixture(t)
	ctx := context.Background()

	if _, err := svc.doctors.SetActive(ctx, doc.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Book(ctx, patientActor(), bookRequest(doc)); !IsValidation(err) {
		t.Fatalf("expected validation error for inactive doctor, got %v", err)
	}
}

func TestSetStatusPatientRules(t *testing.T) {
	svc, notifier, doc := newFixture(t)
	ctx := context.Background()

	booked, err := svc.Book(ctx, patientActor(), bookRequest(doc))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	id := booked.Appointment.ID

	// Patients cannot confirm.
	if _, err := svc.SetStatus(ctx, patientActor(), id, "confirmed"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for patient confirm, got %v", err)
	}

	// Another patient cannot touch this appointment at all.
	stranger := identity.Actor{Role: identity.RolePatient, Email: "other@medconnect.test"}
	if _, err := svc.SetStatus(ctx, stranger, id, "cancelled"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign patient, got %v", err)
	}

	// The owner cancels.
	result, err := svc.SetStatus(ctx, patientActor(), id, "cancelled")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.Appointment.Status != StatusCancelled || !result.SMS.Sent {
		t.Fatalf("unexpected result: %+v", result)
	}
	if notifier.changed != 1 {
		t.Fatalf("expected one status notification, got %d", notifier.changed)
	}

	// Repeating the cancel is a no-op and notifies nobody.
	noop, err := svc.SetStatus(ctx, patientActor(), id, "cancelled")
	if err != nil {
		t.Fatalf("noop cancel: %v", err)
	}
	if noop.SMS.Sent || noop.SMS.Error != "not_sent" {
		t.Fatalf("expected not_sent delivery on no-op, got %+v", noop.SMS)
	}
	if notifier.changed != 1 {
		t.Fatalf("no-op must not notify, got %d", notifier.changed)
	}
}

func TestSetStatusStaffFlow(t *testing.T) {
	svc, _, doc := newFixture(t)
	ctx := context.Background()

	booked, err := svc.Book(ctx, patientActor(), bookRequest(doc))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	id := booked.Appointment.ID

	doctor := identity.Actor{Role: identity.RoleDoctor, Email: "amina@medconnect.test", DoctorID: doc.ID}
	if _, err := svc.SetStatus(ctx, doctor, id, "confirmed"); err != nil {
		t.Fatalf("doctor confirm: %v", err)
	}

	admin := identity.Actor{Role: identity.RoleAdmin, Email: "admin@medconnect.test"}
	result, err := svc.SetStatus(ctx, admin, id, "completed")
	if err != nil {
		t.Fatalf("admin complete: %v", err)
	}
	if result.Appointment.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", result.Appointment.Status)
	}

	if _, err := svc.SetStatus(ctx, admin, id, "archived"); !IsValidation(err) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}

	if _, err := svc.SetStatus(ctx, admin, 999, "cancelled"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStatusDoctorOwnScheduleOnly(t *testing.T) {
	svc, _, doc := newFixture(t)
	ctx := context.Background()

	booked, err := svc.Book(ctx, patientActor(), bookRequest(doc))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	id := booked.Appointment.ID

	// A doctor cannot transition another doctor's appointment.
	rival := identity.Actor{Role: identity.RoleDoctor, Email: "rival@medconnect.test", DoctorID: doc.ID + 1}
	if _, err := svc.SetStatus(ctx, rival, id, "completed"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign doctor, got %v", err)
	}
	if got, err := svc.store.Get(ctx, id); err != nil || got.Status != StatusBooked {
		t.Fatalf("appointment must be untouched, got %+v err=%v", got, err)
	}

	// The owning doctor can.
	owner := identity.Actor{Role: identity.RoleDoctor, Email: "amina@medconnect.test", DoctorID: doc.ID}
	result, err := svc.SetStatus(ctx, owner, id, "completed")
	if err != nil {
		t.Fatalf("owning doctor complete: %v", err)
	}
	if result.Appointment.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", result.Appointment.Status)
	}
}

func TestConcurrentBookingSingleWinner(t *testing.T) {
	svc, _, doc := newFixture(t)
	ctx := context.Background()

	const rivals = 16
	results := make(chan error, rivals)
	var wg sync.WaitGroup
	for i := 0; i < rivals; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("patient%d@medconnect.test", i)
			actor := identity.Actor{Role: identity.RolePatient, Email: email}
			req := bookRequest(doc)
			req.PatientEmail = email
			_, err := svc.Book(ctx, actor, req)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != rivals-1 {
		t.Fatalf("expected 1 win and %d conflicts, got %d/%d", rivals-1, wins, conflicts)
	}

	slots, err := svc.Slots(ctx, doc.ID, "2026-09-07")
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots.Booked) != 1 || slots.Booked[0] != "09:00" {
		t.Fatalf("expected exactly one held slot, got %v", slots.Booked)
	}
}

func TestListRoleScoping(t *testing.T) {
	svc, _, doc := newFixture(t)
	ctx := context.Background()

	if _, err := svc.Book(ctx, patientActor(), bookRequest(doc)); err != nil {
		t.Fatalf("book: %v", err)
	}
	other := identity.Actor{Role: identity.RolePatient, Email: "other@medconnect.test"}
	otherReq := bookRequest(doc)
	otherReq.PatientEmail = "other@medconnect.test"
	otherReq.Time = "10:00"
	if _, err := svc.Book(ctx, other, otherReq); err != nil {
		t.Fatalf("second book: %v", err)
	}

	own, err := svc.List(ctx, patientActor(), ListFilter{})
	if err != nil {
		t.Fatalf("patient list: %v", err)
	}
	if len(own) != 1 || own[0].PatientEmail != "pat@medconnect.test" {
		t.Fatalf("patient scope leaked: %+v", own)
	}

	doctor := identity.Actor{Role: identity.RoleDoctor, DoctorID: doc.ID}
	schedule, err := svc.List(ctx, doctor, ListFilter{})
	if err != nil {
		t.Fatalf("doctor list: %v", err)
	}
	if len(schedule) != 2 {
		t.Fatalf("expected full schedule for doctor, got %d", len(schedule))
	}

	admin := identity.Actor{Role: identity.RoleAdmin}
	all, err := svc.List(ctx, admin, ListFilter{Status: StatusBooked})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 booked appointments, got %d", len(all))
	}
}

func TestExportCSV(t *testing.T) {
	svc, _, doc := newFixture(t)
	ctx := context.Background()

	req := bookRequest(doc)
	if _, err := svc.Book(ctx, patientActor(), req); err != nil {
		t.Fatalf("book: %v", err)
	}
	later := bookRequest(doc)
	later.Time = "11:00"
	if _, err := svc.Book(ctx, patientActor(), later); err != nil {
		t.Fatalf("second book: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.ExportCSV(ctx, ListFilter{}, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	wantHeader := "id,date,time,patient_name,patient_email,patient_phone,doctor_name,doctor_id,specialty,status"
	if lines[0] != wantHeader {
		t.Fatalf("header = %q, want %q", lines[0], wantHeader)
	}
	// Later time first.
	if !strings.Contains(lines[1], "11:00") || !strings.Contains(lines[2], "09:00") {
		t.Fatalf("rows not ordered newest first: %v", lines[1:])
	}
}
