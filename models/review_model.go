package models

import (
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BookingID  uuid.UUID `gorm:"not null;unique" json:"booking_id"`
	CustomerID uuid.UUID `gorm:"not null" json:"customer_id"`
	VendorID   uuid.UUID `gorm:"not null" json:"vendor_id"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment"`

	Booking  Booking `gorm:"foreignkey:BookingID" json:"booking,omitempty"`
	Customer User    `gorm:"foreignkey:CustomerID" json:"customer,omitempty"`
	Vendor   User    `gorm:"foreignkey:VendorID" json:"vendor,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
