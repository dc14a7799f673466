package notify

import (
	"context"
	"fmt"

	"github.com/medconnect/scheduling-api/internal/appointments"
	"github.com/medconnect/scheduling-api/internal/doctors"
	"github.com/medconnect/scheduling-api/pkg/logging"
)

// Service turns scheduling facts into patient SMS and doctor email. Failures
// are logged and surfaced as delivery outcomes, never as request errors.
type Service struct {
	sms    SMSSender
	email  EmailSender
	logger *logging.Logger
}

// NewService creates a notification service. Either sender may be nil.
func NewService(sms SMSSender, email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{sms: sms, email: email, logger: logger}
}

// AppointmentBooked texts the patient their confirmation.
func (s *Service) AppointmentBooked(ctx context.Context, appt *appointments.Appointment) appointments.Delivery {
	body := fmt.Sprintf("MedConnect: Appointment confirmed with %s on %s at %s.",
		appt.DoctorName, appt.Date, appt.Time)
	return s.sendSMS(ctx, appt.PatientPhone, body)
}

// AppointmentStatusChanged texts the patient about the new status.
func (s *Service) AppointmentStatusChanged(ctx context.Context, appt *appointments.Appointment, previous appointments.Status) appointments.Delivery {
	body := fmt.Sprintf("MedConnect: Your appointment with %s on %s at %s is now %s.",
		appt.DoctorName, appt.Date, appt.Time, appt.Status)
	return s.sendSMS(ctx, appt.PatientPhone, body)
}

// DoctorWelcome emails a newly created doctor. Best-effort.
func (s *Service) DoctorWelcome(ctx context.Context, email, fullName string) {
	if s.email == nil {
		return
	}
	msg := EmailMessage{
		To:      email,
		ToName:  fullName,
		Subject: "Welcome to MedConnect",
		Body: fmt.Sprintf(`Hello %s,

Your MedConnect practitioner profile is live. Patients can now see your
availability and book appointments with you.

— MedConnect`, fullName),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: welcome email failed", "error", err, "to", email)
		return
	}
	s.logger.Info("notify: welcome email sent", "to", email)
}

func (s *Service) sendSMS(ctx context.Context, to, body string) appointments.Delivery {
	if s.sms == nil || to == "" {
		return appointments.NotSent()
	}
	result, err := s.sms.SendSMS(ctx, to, body)
	if err != nil {
		s.logger.Error("notify: sms failed", "error", err, "to", to)
		return appointments.Delivery{Sent: false, Error: err.Error()}
	}
	return appointments.Delivery{Sent: true, SID: result.SID}
}

var (
	_ appointments.Notifier   = (*Service)(nil)
	_ doctors.WelcomeNotifier = (*Service)(nil)
)
