// Appointment store service - CRUD over the persisted appointment records
package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/frontdesk/frontdesk/pkg/models"
	"github.com/frontdesk/frontdesk/pkg/utils"
	"gorm.io/gorm"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAppointmentConflict = errors.New("appointment was modified concurrently")
)

// AppointmentService handles appointment persistence. Mutations are
// immediately visible to subsequent reads; updates never upsert.
type AppointmentService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewAppointmentService creates a new appointment service.
func NewAppointmentService(gdb *gorm.DB) *AppointmentService {
	return &AppointmentService{
		db:     gdb,
		logger: utils.GetLogger(),
	}
}

// Create persists a new appointment and returns it with the assigned id.
func (s *AppointmentService) Create(appt *models.Appointment) (*models.Appointment, error) {
	appt.ID = 0
	appt.Version = 1
	if err := s.db.Create(appt).Error; err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	s.logger.Info("Appointment created", "id", appt.ID, "date", appt.Date)
	return appt, nil
}

// Get retrieves an appointment by id.
func (s *AppointmentService) Get(id int64) (*models.Appointment, error) {
	var appt models.Appointment
	if err := s.db.First(&appt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &appt, nil
}

// List returns all appointments ordered by date.
func (s *AppointmentService) List() ([]models.Appointment, error) {
	var appointments []models.Appointment
	if err := s.db.Order("date ASC").Find(&appointments).Error; err != nil {
		return nil, err
	}
	return appointments, nil
}

// Update replaces the mutable fields of an existing appointment. The id must
// reference an existing record; there are no upsert semantics. Concurrent
// edits of the same record are serialized by the version check: the losing
// writer gets ErrAppointmentConflict.
func (s *AppointmentService) Update(id int64, appt *models.Appointment) (*models.Appointment, error) {
	var updated models.Appointment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var current models.Appointment
		if err := tx.First(&current, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAppointmentNotFound
			}
			return err
		}

		res := tx.Model(&models.Appointment{}).
			Where("id = ? AND version = ?", id, current.Version).
			Updates(map[string]interface{}{
				"first_name":       appt.FirstName,
				"last_name":        appt.LastName,
				"date":             appt.Date,
				"number_of_people": appt.NumberOfPeople,
				"version":          current.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAppointmentConflict
		}

		return tx.First(&updated, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Appointment updated", "id", id, "date", updated.Date)
	return &updated, nil
}

// Delete removes an appointment by id.
func (s *AppointmentService) Delete(id int64) error {
	res := s.db.Delete(&models.Appointment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAppointmentNotFound
	}
	s.logger.Info("Appointment deleted", "id", id)
	return nil
}
