package doctors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/medconnect/scheduling-api/internal/api/respond"
	"github.com/medconnect/scheduling-api/pkg/logging"
)

// WelcomeNotifier sends the account email when an administrator creates a
// doctor. Best-effort; a nil notifier disables it.
type WelcomeNotifier interface {
	DoctorWelcome(ctx context.Context, email, fullName string)
}

// Handler handles HTTP requests for the doctor directory.
type Handler struct {
	repo   Repository
	notify WelcomeNotifier
	logger *logging.Logger
}

// NewHandler creates a doctors handler.
func NewHandler(repo Repository, notify WelcomeNotifier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, notify: notify, logger: logger}
}

// ListPublic handles GET /api/doctors.
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Specialty:  strings.TrimSpace(r.URL.Query().Get("specialty")),
		ActiveOnly: true,
	}
	docs, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	items := make([]PublicDoctor, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Public())
	}
	respond.JSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

// GetPublic handles GET /api/doctors/{doctorID}.
func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	if !doc.IsActive {
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "Doctor not found")
		return
	}
	respond.JSON(w, http.StatusOK, doc.Public())
}

// GetAvailability handles GET /api/doctors/{doctorID}/availability.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"doctor_id": doc.ID,
		"weekly":    doc.Window.Weekly(),
	})
}

type availabilityUpdate struct {
	Days  []string `json:"availability_days"`
	Start string   `json:"availability_start"`
	End   string   `json:"availability_end"`
}

// PutAvailability handles PUT /api/doctors/{doctorID}/availability. It
// updates the persisted window directly: there is no secondary in-memory
// schedule for it to disagree with.
func (h *Handler) PutAvailability(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}

	var req availabilityUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "Invalid request body")
		return
	}

	window, err := windowFromRequest(req.Days, req.Start, req.End)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, err.Error())
		return
	}
	doc.Window = *window

	updated, err := h.repo.Update(r.Context(), doc)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.logger.Info("doctor availability updated", "doctor_id", updated.ID)
	respond.JSON(w, http.StatusOK, map[string]any{
		"doctor_id": updated.ID,
		"weekly":    updated.Window.Weekly(),
	})
}

// AdminList handles GET /api/admin/doctors.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	docs, err := h.repo.List(r.Context(), ListFilter{})
	if err != nil {
		h.writeErr(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, docs)
}

// AdminGet handles GET /api/admin/doctors/{doctorID}.
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	respond.JSON(w, http.StatusOK, doc)
}

type createDoctorRequest struct {
	FullName  string   `json:"full_name"`
	Email     string   `json:"email"`
	Specialty string   `json:"specialty"`
	Phone     string   `json:"phone"`
	IsActive  *bool    `json:"is_active"`
	Days      []string `json:"availability_days"`
	Start     string   `json:"availability_start"`
	End       string   `json:"availability_end"`
}

// AdminCreate handles POST /api/admin/doctors.
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	var req createDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "Invalid request body")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Specialty = strings.TrimSpace(req.Specialty)
	switch {
	case req.FullName == "":
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "full_name is required")
		return
	case req.Email == "":
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "email is required")
		return
	case req.Specialty == "":
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "specialty is required")
		return
	}

	window, err := windowFromRequest(req.Days, req.Start, req.End)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, err.Error())
		return
	}

	taken, err := h.repo.EmailInUse(r.Context(), req.Email, 0)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if taken {
		respond.Error(w, http.StatusConflict, respond.CodeConflict, "email must be unique")
		return
	}

	doc := &Doctor{
		FullName:  req.FullName,
		Email:     req.Email,
		Specialty: req.Specialty,
		Phone:     strings.TrimSpace(req.Phone),
		IsActive:  req.IsActive == nil || *req.IsActive,
		Window:    *window,
	}
	created, err := h.repo.Create(r.Context(), doc)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	if h.notify != nil {
		h.notify.DoctorWelcome(r.Context(), created.Email, created.FullName)
	}

	h.logger.Info("doctor created", "doctor_id", created.ID, "specialty", created.Specialty)
	respond.JSON(w, http.StatusCreated, created)
}

type updateDoctorRequest struct {
	FullName  *string   `json:"full_name"`
	Email     *string   `json:"email"`
	Specialty *string   `json:"specialty"`
	Phone     *string   `json:"phone"`
	IsActive  *bool     `json:"is_active"`
	Days      *[]string `json:"availability_days"`
	Start     *string   `json:"availability_start"`
	End       *string   `json:"availability_end"`
}

// AdminUpdate handles PATCH /api/admin/doctors/{doctorID}. Partial update:
// absent fields keep their stored values; the merged window is re-validated.
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}

	var req updateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "Invalid request body")
		return
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "full_name cannot be empty")
			return
		}
		doc.FullName = name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email == "" {
			respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "email cannot be empty")
			return
		}
		if !strings.EqualFold(email, doc.Email) {
			taken, err := h.repo.EmailInUse(r.Context(), email, doc.ID)
			if err != nil {
				h.writeErr(w, err)
				return
			}
			if taken {
				respond.Error(w, http.StatusConflict, respond.CodeConflict, "email must be unique")
				return
			}
		}
		doc.Email = email
	}
	if req.Specialty != nil {
		spec := strings.TrimSpace(*req.Specialty)
		if spec == "" {
			respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "specialty cannot be empty")
			return
		}
		doc.Specialty = spec
	}
	if req.Phone != nil {
		doc.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.IsActive != nil {
		doc.IsActive = *req.IsActive
	}

	if req.Days != nil {
		days, err := NormalizeDays(*req.Days)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, respond.CodeValidation, err.Error())
			return
		}
		doc.Window.Days = days
	}
	if req.Start != nil {
		start, err := ParseClock(*req.Start)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "availability_start must be in HH:MM format")
			return
		}
		doc.Window.Start = start
	}
	if req.End != nil {
		end, err := ParseClock(*req.End)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "availability_end must be in HH:MM format")
			return
		}
		doc.Window.End = end
	}
	if err := doc.Window.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, err.Error())
		return
	}

	updated, err := h.repo.Update(r.Context(), doc)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.logger.Info("doctor updated", "doctor_id", updated.ID)
	respond.JSON(w, http.StatusOK, updated)
}

// AdminSetStatus handles PATCH /api/admin/doctors/{doctorID}/status.
func (h *Handler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := doctorID(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "doctor_id must be an integer")
		return
	}

	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "is_active must be a boolean")
		return
	}

	updated, err := h.repo.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.logger.Info("doctor status changed", "doctor_id", updated.ID, "is_active", updated.IsActive)
	respond.JSON(w, http.StatusOK, updated)
}

func windowFromRequest(rawDays []string, start, end string) (*AvailabilityWindow, error) {
	if rawDays == nil {
		return nil, Invalidf("availability_days is required")
	}
	days, err := NormalizeDays(rawDays)
	if err != nil {
		return nil, Invalidf("%s", err.Error())
	}
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return nil, Invalidf("availability_start and availability_end are required")
	}
	startClock, err := ParseClock(start)
	if err != nil {
		return nil, Invalidf("availability_start must be in HH:MM format")
	}
	endClock, err := ParseClock(end)
	if err != nil {
		return nil, Invalidf("availability_end must be in HH:MM format")
	}
	window := AvailabilityWindow{Days: days, Start: startClock, End: endClock}
	if err := window.Validate(); err != nil {
		return nil, Invalidf("%s", err.Error())
	}
	return &window, nil
}

func doctorID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "doctorID"), 10, 64)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Doctor, bool) {
	id, err := doctorID(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "doctor_id must be an integer")
		return nil, false
	}
	doc, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return nil, false
	}
	return doc, true
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "Doctor not found")
	case errors.Is(err, ErrEmailTaken):
		respond.Error(w, http.StatusConflict, respond.CodeConflict, "email must be unique")
	case errors.Is(err, ErrStoreUnavailable):
		respond.Error(w, http.StatusServiceUnavailable, respond.CodeStoreUnavailable, "Store temporarily unavailable, retry later")
	case IsValidation(err):
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, err.Error())
	default:
		h.logger.Error("doctors: request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, "Internal error")
	}
}
