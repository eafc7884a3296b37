// HTTP handlers for the appointment API
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/frontdesk/frontdesk/pkg/models"
	"github.com/frontdesk/frontdesk/pkg/service"
	"github.com/frontdesk/frontdesk/pkg/utils"
	"github.com/gin-gonic/gin"
)

// AppointmentHandler serves the appointment CRUD and availability endpoints.
// The same surface backs both direct API clients and the model's function
// calls, so validation lives here once.
type AppointmentHandler struct {
	appointments *service.AppointmentService
	availability *service.AvailabilityService
	maxPartySize int
	logger       *slog.Logger
}

func NewAppointmentHandler(appointments *service.AppointmentService, availability *service.AvailabilityService, maxPartySize int) *AppointmentHandler {
	return &AppointmentHandler{
		appointments: appointments,
		availability: availability,
		maxPartySize: maxPartySize,
		logger:       utils.GetLogger(),
	}
}

// List handles GET /api/appointments
func (h *AppointmentHandler) List(c *gin.Context) {
	appointments, err := h.appointments.List()
	if err != nil {
		h.logger.Error("Failed to list appointments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list appointments"})
		return
	}
	c.JSON(http.StatusOK, appointments)
}

// Get handles GET /api/appointments/:id
func (h *AppointmentHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment id"})
		return
	}
	appt, err := h.appointments.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrAppointmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
			return
		}
		h.logger.Error("Failed to get appointment", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get appointment"})
		return
	}
	c.JSON(http.StatusOK, appt)
}

// Create handles POST /api/appointments
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req models.AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := h.validate(&req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	appt, err := h.appointments.Create(&models.Appointment{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Date:           req.Date,
		NumberOfPeople: req.NumberOfPeople,
	})
	if err != nil {
		h.logger.Error("Failed to create appointment", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create appointment"})
		return
	}
	c.JSON(http.StatusCreated, appt)
}

// Update handles PUT /api/appointments/:id
func (h *AppointmentHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment id"})
		return
	}
	var req models.AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := h.validate(&req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	appt, err := h.appointments.Update(id, &models.Appointment{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Date:           req.Date,
		NumberOfPeople: req.NumberOfPeople,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAppointmentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		case errors.Is(err, service.ErrAppointmentConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "appointment was modified concurrently"})
		default:
			h.logger.Error("Failed to update appointment", "error", err, "id", id)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update appointment"})
		}
		return
	}
	c.JSON(http.StatusOK, appt)
}

// Delete handles DELETE /api/appointments/:id
func (h *AppointmentHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment id"})
		return
	}
	if err := h.appointments.Delete(id); err != nil {
		if errors.Is(err, service.ErrAppointmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
			return
		}
		h.logger.Error("Failed to delete appointment", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete appointment"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Available handles GET /api/appointments/available?date=...
func (h *AppointmentHandler) Available(c *gin.Context) {
	raw := c.Query("date")
	when, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be RFC 3339"})
		return
	}

	available, err := h.availability.IsAvailable(when)
	if err != nil {
		h.logger.Error("Failed to check availability", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check availability"})
		return
	}

	// A free slot echoes the requested instant as the next available time.
	resp := models.AvailabilityResponse{
		IsAvailable:       available,
		NextAvailableTime: when.Format(time.RFC3339),
	}
	if !available {
		resp.NextAvailableTime = ""
		next, err := h.availability.NextAvailableSlot(when)
		if err != nil {
			if errors.Is(err, service.ErrNoAvailability) {
				c.JSON(http.StatusOK, resp)
				return
			}
			h.logger.Error("Failed to find next available slot", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check availability"})
			return
		}
		resp.NextAvailableTime = next.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// Confirmation handles GET /confirmation/:id, the page behind the HTML link
// the assistant hands to the user after booking.
func (h *AppointmentHandler) Confirmation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid appointment id")
		return
	}
	appt, err := h.appointments.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrAppointmentNotFound) {
			c.String(http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("Failed to load confirmation", "error", err, "id", id)
		c.String(http.StatusInternalServerError, "failed to load appointment")
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK,
		"<html><body><h1>Appointment Confirmed</h1>"+
			"<p>%s %s, party of %d</p><p>%s</p>"+
			"<p>Confirmation number: %d</p></body></html>",
		appt.FirstName, appt.LastName, appt.NumberOfPeople,
		appt.Date.Format("Monday, January 2, 2006 at 3:04 PM"), appt.ID)
}

func (h *AppointmentHandler) validate(req *models.AppointmentRequest) string {
	if req.NumberOfPeople < 1 {
		return "numberOfPeople must be at least 1"
	}
	if req.NumberOfPeople > h.maxPartySize {
		return fmt.Sprintf("numberOfPeople must not exceed %d", h.maxPartySize)
	}
	return ""
}
