package models

import (
	"time"

	"github.com/google/uuid"
)

type VendorService struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	VendorID    uuid.UUID `gorm:"not null" json:"vendor_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description *string   `gorm:"type:text" json:"description"`
	Category    *string   `gorm:"size:100" json:"category"`
	Price       float64   `gorm:"type:numeric(10,2);not null" json:"price"`
	Currency    string    `gorm:"size:3;not null;default:'INR'" json:"currency"`
	Active      bool      `gorm:"default:true" json:"active"`

	Vendor User `gorm:"foreignkey:VendorID" json:"vendor,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
