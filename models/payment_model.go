package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusSuccess  = "success"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

const (
	PayoutStatusPending    = "pending"
	PayoutStatusInProgress = "in_progress"
	PayoutStatusPaid       = "paid"
	PayoutStatusFailed     = "failed"
)

type Payment struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BookingID uuid.UUID `gorm:"not null;unique" json:"booking_id"`

	TotalAmount  float64 `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	PlatformFee  float64 `gorm:"type:numeric(10,2);not null" json:"platform_fee"`
	VendorAmount float64 `gorm:"type:numeric(10,2);not null" json:"vendor_amount"`
	Currency     string  `gorm:"size:3;not null;default:'INR'" json:"currency"`

	Gateway        string  `gorm:"size:20;not null" json:"gateway"`
	GatewayOrderID *string `gorm:"size:255" json:"gateway_order_id"`
	GatewayTxnID   *string `gorm:"size:255;unique" json:"gateway_txn_id"`

	Status             string  `gorm:"size:20;not null;default:'pending'" json:"status"`
	VendorPayoutStatus string  `gorm:"size:20;not null;default:'pending'" json:"vendor_payout_status"`
	VendorPayoutID     *string `gorm:"size:255" json:"vendor_payout_id"`

	Booking Booking `gorm:"foreignkey:BookingID" json:"booking,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
