package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BookingStatusPending          = "pending"
	BookingStatusConfirmed        = "confirmed"
	BookingStatusScheduled        = "scheduled"
	BookingStatusInProgress       = "in_progress"
	BookingStatusServiceCompleted = "service_completed"
	BookingStatusUserConfirmed    = "user_confirmed"
	BookingStatusCancelled        = "cancelled"
	BookingStatusDisputed         = "disputed"
)

const (
	VendorStatusPending  = "pending"
	VendorStatusAccepted = "accepted"
	VendorStatusRejected = "rejected"
)

type Booking struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CustomerID      uuid.UUID `gorm:"not null" json:"customer_id"`
	VendorServiceID uuid.UUID `gorm:"not null" json:"vendor_service_id"`

	// ScheduledDate/ScheduledTime are stored as the customer submitted them
	// ("2006-01-02" and "15:04"). The scheduler parses them on each run and
	// skips bookings it cannot parse.
	ScheduledDate string `gorm:"size:10" json:"scheduled_date"`
	ScheduledTime string `gorm:"size:5" json:"scheduled_time"`

	Status       string  `gorm:"size:20;not null;default:'pending'" json:"status"`
	VendorStatus string  `gorm:"size:20;not null;default:'pending'" json:"vendor_status"`
	Notes        *string `gorm:"type:text" json:"notes"`

	Customer      User          `gorm:"foreignkey:CustomerID" json:"customer,omitempty"`
	VendorService VendorService `gorm:"foreignkey:VendorServiceID" json:"vendor_service,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduledInstant combines ScheduledDate and ScheduledTime in the given
// location. It fails if either field is empty or malformed.
func (b *Booking) ScheduledInstant(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", b.ScheduledDate+" "+b.ScheduledTime, loc)
}
