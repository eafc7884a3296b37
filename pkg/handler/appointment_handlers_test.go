package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frontdesk/frontdesk/pkg/db"
	"github.com/frontdesk/frontdesk/pkg/models"
	"github.com/frontdesk/frontdesk/pkg/service"
	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.AppointmentService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	appointments := service.NewAppointmentService(gdb)
	availability := service.NewAvailabilityService(appointments, 48)
	h := NewAppointmentHandler(appointments, availability, 10)

	router := gin.New()
	router.GET("/confirmation/:id", h.Confirmation)
	api := router.Group("/api/appointments")
	api.GET("", h.List)
	api.POST("", h.Create)
	api.GET("/available", h.Available)
	api.GET(":id", h.Get)
	api.PUT(":id", h.Update)
	api.DELETE(":id", h.Delete)
	return router, appointments
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAppointment(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/appointments",
		`{"firstName":"Ada","lastName":"Lovelace","date":"2026-09-01T14:00:00Z","numberOfPeople":2}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body)
	}

	var created models.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == 0 || created.FirstName != "Ada" {
		t.Fatalf("created = %+v", created)
	}
}

func TestCreateAppointment_Validation(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing first name", `{"lastName":"Lovelace","date":"2026-09-01T14:00:00Z","numberOfPeople":2}`},
		{"missing date", `{"firstName":"Ada","lastName":"Lovelace","numberOfPeople":2}`},
		{"party too large", `{"firstName":"Ada","lastName":"Lovelace","date":"2026-09-01T14:00:00Z","numberOfPeople":11}`},
		{"malformed json", `{"firstName":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/appointments", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body)
			}
		})
	}
}

func TestGetAppointment_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/appointments/999", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestListAppointments(t *testing.T) {
	router, appointments := newTestRouter(t)

	for i := 0; i < 2; i++ {
		if _, err := appointments.Create(&models.Appointment{
			FirstName: "Ada", LastName: "Lovelace",
			Date:           time.Date(2026, 9, 1+i, 14, 0, 0, 0, time.UTC),
			NumberOfPeople: 2,
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/api/appointments", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got []models.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestUpdateAppointment(t *testing.T) {
	router, appointments := newTestRouter(t)

	created, err := appointments.Create(&models.Appointment{
		FirstName: "Ada", LastName: "Lovelace",
		Date:           time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
		NumberOfPeople: 2,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/appointments/%d", created.ID),
		`{"firstName":"Grace","lastName":"Hopper","date":"2026-09-02T10:00:00Z","numberOfPeople":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}

	var updated models.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.FirstName != "Grace" || updated.NumberOfPeople != 3 {
		t.Fatalf("updated = %+v", updated)
	}
}

func TestUpdateAppointment_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPut, "/api/appointments/999",
		`{"firstName":"Grace","lastName":"Hopper","date":"2026-09-02T10:00:00Z","numberOfPeople":3}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDeleteAppointment(t *testing.T) {
	router, appointments := newTestRouter(t)

	created, err := appointments.Create(&models.Appointment{
		FirstName: "Ada", LastName: "Lovelace",
		Date:           time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
		NumberOfPeople: 2,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/appointments/%d", created.ID), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/appointments/%d", created.ID), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestAvailable_FreeSlot(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/appointments/available?date=2026-09-01T14:00:00Z", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	var resp models.AvailabilityResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.IsAvailable {
		t.Fatalf("IsAvailable = false, want true")
	}
	// A free slot echoes the requested instant.
	if resp.NextAvailableTime != "2026-09-01T14:00:00Z" {
		t.Fatalf("NextAvailableTime = %q, want requested instant echoed", resp.NextAvailableTime)
	}
}

func TestAvailable_BookedSlotReportsNext(t *testing.T) {
	router, appointments := newTestRouter(t)

	booked := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	if _, err := appointments.Create(&models.Appointment{
		FirstName: "Ada", LastName: "Lovelace", Date: booked, NumberOfPeople: 2,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/appointments/available?date=2026-09-01T14:30:00Z", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	var resp models.AvailabilityResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IsAvailable {
		t.Fatalf("IsAvailable = true, want false")
	}
	next, err := time.Parse(time.RFC3339, resp.NextAvailableTime)
	if err != nil {
		t.Fatalf("parse NextAvailableTime %q: %v", resp.NextAvailableTime, err)
	}
	if !next.Equal(booked.Add(time.Hour).Add(30 * time.Minute)) {
		t.Fatalf("NextAvailableTime = %v, want 15:30", next)
	}
}

func TestAvailable_BadDate(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/appointments/available?date=tomorrow", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestConfirmation(t *testing.T) {
	router, appointments := newTestRouter(t)

	created, err := appointments.Create(&models.Appointment{
		FirstName: "Ada", LastName: "Lovelace",
		Date:           time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
		NumberOfPeople: 2,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w := doJSON(t, router, http.MethodGet, fmt.Sprintf("/confirmation/%d", created.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q, want text/html", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, "Ada Lovelace") {
		t.Fatalf("confirmation body missing customer name: %s", body)
	}
}

func TestConfirmation_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/confirmation/999", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
