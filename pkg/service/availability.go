// Availability engine - hour-granularity slot availability over the store
package service

import (
	"errors"
	"time"
)

// ErrNoAvailability is returned when no free slot exists within the
// configured lookahead window.
var ErrNoAvailability = errors.New("no available slot within lookahead window")

// AvailabilityService answers slot-availability questions. It is read-only
// over the appointment store: a slot is taken iff an existing appointment
// shares the same calendar date and the same hour of day.
type AvailabilityService struct {
	appointments      *AppointmentService
	maxLookaheadHours int
}

// NewAvailabilityService creates an availability service. maxLookaheadHours
// bounds the next-slot search so a fully booked calendar cannot cause an
// unbounded walk.
func NewAvailabilityService(appointments *AppointmentService, maxLookaheadHours int) *AvailabilityService {
	if maxLookaheadHours < 1 {
		maxLookaheadHours = 1
	}
	return &AvailabilityService{
		appointments:      appointments,
		maxLookaheadHours: maxLookaheadHours,
	}
}

// IsAvailable reports whether the hour slot containing t is free.
func (s *AvailabilityService) IsAvailable(t time.Time) (bool, error) {
	booked, err := s.bookedHours()
	if err != nil {
		return false, err
	}
	_, taken := booked[hourKey(t)]
	return !taken, nil
}

// NextAvailableSlot returns the earliest instant t' >= t (stepping one hour
// at a time) whose slot is free. If t itself is free it is returned as-is.
func (s *AvailabilityService) NextAvailableSlot(t time.Time) (time.Time, error) {
	booked, err := s.bookedHours()
	if err != nil {
		return time.Time{}, err
	}

	candidate := t
	for i := 0; i <= s.maxLookaheadHours; i++ {
		if _, taken := booked[hourKey(candidate)]; !taken {
			return candidate, nil
		}
		candidate = candidate.Add(time.Hour)
	}
	return time.Time{}, ErrNoAvailability
}

// bookedHours snapshots the occupied hour slots from the store.
func (s *AvailabilityService) bookedHours() (map[string]struct{}, error) {
	appointments, err := s.appointments.List()
	if err != nil {
		return nil, err
	}
	booked := make(map[string]struct{}, len(appointments))
	for _, appt := range appointments {
		booked[hourKey(appt.Date)] = struct{}{}
	}
	return booked, nil
}

// hourKey collapses an instant to its calendar date + hour bucket, in UTC so
// the comparison is independent of the caller's location.
func hourKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15")
}
