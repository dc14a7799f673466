package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/medconnect/scheduling-api/internal/api/respond"
	"github.com/medconnect/scheduling-api/internal/doctors"
	"github.com/medconnect/scheduling-api/internal/identity"
	"github.com/medconnect/scheduling-api/pkg/logging"
)

// Handler handles HTTP requests for appointments.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Slots handles GET /api/appointments/slots?doctor_id=&date=.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}

	doctorRaw := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	dateRaw := strings.TrimSpace(r.URL.Query().Get("date"))
	if doctorRaw == "" || dateRaw == "" {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "doctor_id and date are required")
		return
	}
	doctorID, err := strconv.ParseInt(doctorRaw, 10, 64)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "doctor_id must be an integer")
		return
	}

	list, err := h.svc.Slots(r.Context(), doctorID, dateRaw)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// Create handles POST /api/appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "Invalid request body")
		return
	}

	result, err := h.svc.Book(r.Context(), actor, req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, result)
}

// List handles GET /api/appointments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, err.Error())
		return
	}

	appts, err := h.svc.List(r.Context(), actor, filter)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"count": len(appts), "items": appts})
}

// UpdateStatus handles PATCH /api/appointments/{appointmentID}.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "appointmentID"), 10, 64)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "appointment id must be an integer")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "Invalid request body")
		return
	}

	result, err := h.svc.SetStatus(r.Context(), actor, id, req.Status)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

// ExportCSV handles GET /api/admin/appointments/export.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		respond.Error(w, http.StatusForbidden, respond.CodeForbidden, "Forbidden")
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=appointments-export.csv")
	if err := h.svc.ExportCSV(r.Context(), filter, w); err != nil {
		h.logger.Error("appointments: csv export failed", "error", err)
	}
}

func filterFromQuery(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		PatientEmail: strings.TrimSpace(q.Get("email")),
		FromDate:     strings.TrimSpace(q.Get("from")),
		ToDate:       strings.TrimSpace(q.Get("to")),
	}
	if raw := strings.TrimSpace(q.Get("doctor_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return ListFilter{}, errors.New("doctor_id must be an integer")
		}
		filter.DoctorID = id
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			return ListFilter{}, errors.New("Invalid status")
		}
		filter.Status = status
	}
	return filter, nil
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "Unauthorized")
		return identity.Actor{}, false
	}
	return actor, true
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "Appointment not found")
	case errors.Is(err, doctors.ErrNotFound):
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "Doctor not found")
	case errors.Is(err, ErrSlotTaken):
		respond.Error(w, http.StatusConflict, respond.CodeConflict, "Selected slot is no longer available")
	case errors.Is(err, ErrForbidden):
		respond.Error(w, http.StatusForbidden, respond.CodeForbidden, "Forbidden")
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, doctors.ErrStoreUnavailable):
		respond.Error(w, http.StatusServiceUnavailable, respond.CodeStoreUnavailable, "Store temporarily unavailable, retry later")
	case IsValidation(err):
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, err.Error())
	default:
		h.logger.Error("appointments: request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, "Internal error")
	}
}
