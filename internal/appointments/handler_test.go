package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/medconnect/scheduling-api/internal/doctors"
	"github.com/medconnect/scheduling-api/internal/identity"
)

// actorHeaders lets tests pick the caller per request.
func testActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := identity.ParseRole(r.Header.Get("X-Test-Role"))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		actor := identity.Actor{Role: role, Email: r.Header.Get("X-Test-Email")}
		next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
	})
}

func newHandlerFixture(t *testing.T) (*chi.Mux, *doctors.Doctor) {
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

	svc := NewService(NewInMemoryStore(), docs, &stubNotifier{}, nil, nil)
	h := NewHandler(svc, nil)

	r := chi.NewRouter()
	r.Use(testActorMiddleware)
	r.Get("/api/appointments/slots", h.Slots)
	r.Get("/api/appointments", h.List)
	r.Post("/api/appointments", h.Create)
	r.Patch("/api/appointments/{appointmentID}", h.UpdateStatus)
	r.Get("/api/admin/appointments/export", h.ExportCSV)
	return r, doc
}

func request(t *testing.T, router http.Handler, method, path, role, email string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	if role != "" {
		req.Header.Set("X-Test-Role", role)
		req.Header.Set("X-Test-Email", email)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func bookPayload(doc *doctors.Doctor) map[string]any {
	return map[string]any{
		"doctor_id": doc.ID,
		"doctor":    doc.FullName,
		"specialty": doc.Specialty,
		"date":      "2026-09-07",
		"time":      "09:00",
		"name":      "Pat Doe",
		"email":     "pat@medconnect.test",
		"phone":     "+15550001111",
	}
}

func TestSlotsRequiresAuth(t *testing.T) {
	router, doc := newHandlerFixture(t)
	w := request(t, router, http.MethodGet, fmt.Sprintf("/api/appointments/slots?doctor_id=%d&date=2026-09-07", doc.ID), "", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSlotsEndpoint(t *testing.T) {
	router, doc := newHandlerFixture(t)

	if w := request(t, router, http.MethodPost, "/api/appointments", "patient", "pat@medconnect.test", bookPayload(doc)); w.Code != http.StatusCreated {
		t.Fatalf("seed booking failed: %d %s", w.Code, w.Body.String())
	}

	w := request(t, router, http.MethodGet, fmt.Sprintf("/api/appointments/slots?doctor_id=%d&date=2026-09-07", doc.ID), "patient", "pat@medconnect.test", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data SlotList `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data.Booked) != 1 || resp.Data.Booked[0] != "09:00" {
		t.Fatalf("booked = %v", resp.Data.Booked)
	}
	if len(resp.Data.Available) != 2 || resp.Data.Available[0] != "10:00" {
		t.Fatalf("available = %v", resp.Data.Available)
	}
}

func TestSlotsValidation(t *testing.T) {
	router, _ := newHandlerFixture(t)

	w := request(t, router, http.MethodGet, "/api/appointments/slots?date=2026-09-07", "patient", "pat@medconnect.test", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing doctor_id, got %d", w.Code)
	}

	w = request(t, router, http.MethodGet, "/api/appointments/slots?doctor_id=abc&date=2026-09-07", "patient", "pat@medconnect.test", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer doctor_id, got %d", w.Code)
	}

	w = request(t, router, http.MethodGet, "/api/appointments/slots?doctor_id=999&date=2026-09-07", "patient", "pat@medconnect.test", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown doctor, got %d", w.Code)
	}
}

func TestCreateEndpoint(t *testing.T) {
	router, doc := newHandlerFixture(t)

	w := request(t, router, http.MethodPost, "/api/appointments", "patient", "pat@medconnect.test", bookPayload(doc))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool       `json:"success"`
		Data    BookResult `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Data.Appointment.ID == 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !resp.Data.SMS.Sent || resp.Data.SMS.SID != "SM123" {
		t.Fatalf("expected sms outcome in envelope, got %+v", resp.Data.SMS)
	}

	// Same slot again conflicts.
	w = request(t, router, http.MethodPost, "/api/appointments", "patient", "pat@medconnect.test", bookPayload(doc))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", w.Code, w.Body.String())
	}
}

func TestUpdateStatusEndpoint(t *testing.T) {
	router, doc := newHandlerFixture(t)

	w := request(t, router, http.MethodPost, "/api/appointments", "patient", "pat@medconnect.test", bookPayload(doc))
	var created struct {
		Data BookResult `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	path := fmt.Sprintf("/api/appointments/%d", created.Data.Appointment.ID)

	w = request(t, router, http.MethodPatch, path, "patient", "pat@medconnect.test", map[string]any{"status": "confirmed"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patient confirm, got %d", w.Code)
	}

	w = request(t, router, http.MethodPatch, path, "patient", "pat@medconnect.test", map[string]any{"status": "cancelled"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}

	w = request(t, router, http.MethodPatch, path, "admin", "admin@medconnect.test", map[string]any{"status": "nonsense"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status, got %d", w.Code)
	}

	w = request(t, router, http.MethodPatch, "/api/appointments/999", "admin", "admin@medconnect.test", map[string]any{"status": "cancelled"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	router, doc := newHandlerFixture(t)

	if w := request(t, router, http.MethodPost, "/api/appointments", "patient", "pat@medconnect.test", bookPayload(doc)); w.Code != http.StatusCreated {
		t.Fatalf("seed booking failed: %d", w.Code)
	}

	w := request(t, router, http.MethodGet, "/api/admin/appointments/export", "patient", "pat@medconnect.test", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}

	w = request(t, router, http.MethodGet, "/api/admin/appointments/export", "admin", "admin@medconnect.test", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if body := w.Body.String(); !bytes.Contains([]byte(body), []byte("Dr Amina Benali")) {
		t.Fatalf("csv missing row: %s", body)
	}
}

func TestListEndpointScoping(t *testing.T) {
	router, doc := newHandlerFixture(t)

	if w := request(t, router, http.MethodPost, "/api/appointments", "patient", "pat@medconnect.test", bookPayload(doc)); w.Code != http.StatusCreated {
		t.Fatalf("seed booking failed: %d", w.Code)
	}

	w := request(t, router, http.MethodGet, "/api/appointments", "patient", "other@medconnect.test", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Count != 0 {
		t.Fatalf("foreign patient should see nothing, got %d", resp.Data.Count)
	}
}
