package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DisputeStatusOpen     = "open"
	DisputeStatusResolved = "resolved"
)

type Dispute struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BookingID  uuid.UUID `gorm:"not null" json:"booking_id"`
	CustomerID uuid.UUID `gorm:"not null" json:"customer_id"`
	Reason     string    `gorm:"type:text;not null" json:"reason"`
	Status     string    `gorm:"size:20;not null;default:'open'" json:"status"`
	AdminNotes *string   `gorm:"type:text" json:"admin_notes"`

	Booking  Booking `gorm:"foreignkey:BookingID" json:"booking,omitempty"`
	Customer User    `gorm:"foreignkey:CustomerID" json:"customer,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
