// Database models for appointments
package db

import "time"

// Appointment represents a booked appointment slot.
// Version supports optimistic concurrency on updates: two concurrent edits
// to the same record cannot both succeed; the loser observes a conflict.
type Appointment struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	FirstName      string    `json:"firstName" gorm:"size:100;not null"`
	LastName       string    `json:"lastName" gorm:"size:100;not null"`
	Date           time.Time `json:"date" gorm:"index;not null"`
	NumberOfPeople int       `json:"numberOfPeople" gorm:"not null"`
	Version        int       `json:"-" gorm:"default:1"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}
