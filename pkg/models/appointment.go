// API types for the appointment endpoints
package models

import (
	"time"

	"github.com/frontdesk/frontdesk/pkg/db"
)

// ========== Type aliases for database types ==========
// These allow other packages to use models.Appointment instead of db.Appointment.

type Appointment = db.Appointment
type TranscriptEntry = db.TranscriptEntry

// AppointmentRequest is the create/update payload for an appointment.
type AppointmentRequest struct {
	FirstName      string    `json:"firstName" binding:"required"`
	LastName       string    `json:"lastName" binding:"required"`
	Date           time.Time `json:"date" binding:"required"`
	NumberOfPeople int       `json:"numberOfPeople" binding:"required"`
}

// AvailabilityResponse is the payload of the availability check endpoint.
// Field names are part of the function-calling contract: the availability
// tool returns this JSON verbatim to the model.
type AvailabilityResponse struct {
	IsAvailable       bool   `json:"isAvailable"`
	NextAvailableTime string `json:"nextAvailableTime"`
}
