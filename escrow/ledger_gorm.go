package escrow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mehulsinha73/servicelink/models"
)

// GormLedger implements Ledger on top of the Postgres database.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) BookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := l.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (l *GormLedger) PaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := l.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (l *GormLedger) PaymentByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := l.db.WithContext(ctx).First(&payment, "booking_id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMissingPayment
		}
		return nil, err
	}
	return &payment, nil
}

func (l *GormLedger) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := l.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (l *GormLedger) VendorForService(ctx context.Context, serviceID uuid.UUID) (*models.User, error) {
	var service models.VendorService
	if err := l.db.WithContext(ctx).First(&service, "id = ?", serviceID).Error; err != nil {
		return nil, err
	}
	var vendor models.User
	if err := l.db.WithContext(ctx).First(&vendor, "id = ?", service.VendorID).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (l *GormLedger) CreatePaymentConfirmBooking(ctx context.Context, payment *models.Payment) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&booking, "id = ?", payment.BookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.Payment{}).Where("booking_id = ?", payment.BookingID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrPaymentExists
		}

		// A capture may only confirm a booking still awaiting one. Without
		// this check a late webhook retry would resurrect a booking the
		// scheduler already expired.
		if booking.Status != models.BookingStatusPending && booking.Status != models.BookingStatusScheduled {
			return ErrInvalidState
		}

		// Payment is written before the booking status so a partial failure
		// leaves a capture record the next call can reconcile against.
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Booking{}).
			Where("id = ? AND status IN ?", payment.BookingID,
				[]string{models.BookingStatusPending, models.BookingStatusScheduled}).
			Update("status", models.BookingStatusConfirmed).Error
	})
}

func (l *GormLedger) TransitionBooking(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error) {
	res := l.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

func (l *GormLedger) AppendBookingNote(ctx context.Context, id uuid.UUID, note string) error {
	return l.db.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id).
		Update("notes", gorm.Expr("COALESCE(notes, '') || ?", note)).Error
}

func (l *GormLedger) SetVendorResponse(ctx context.Context, id uuid.UUID, from []string, vendorStatus, bookingStatus string) (bool, error) {
	res := l.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"vendor_status": vendorStatus,
			"status":        bookingStatus,
		})
	return res.RowsAffected > 0, res.Error
}

func (l *GormLedger) ClaimVendorPayout(ctx context.Context, paymentID uuid.UUID, from []string) (bool, error) {
	res := l.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ? AND vendor_payout_status IN ?", paymentID, models.PaymentStatusSuccess, from).
		Update("vendor_payout_status", models.PayoutStatusInProgress)
	return res.RowsAffected > 0, res.Error
}

func (l *GormLedger) SettleVendorPayout(ctx context.Context, paymentID uuid.UUID, status string, payoutID *string) error {
	return l.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND vendor_payout_status = ?", paymentID, models.PayoutStatusInProgress).
		Updates(map[string]interface{}{
			"vendor_payout_status": status,
			"vendor_payout_id":     payoutID,
		}).Error
}

func (l *GormLedger) CreateReview(ctx context.Context, review *models.Review) error {
	return l.db.WithContext(ctx).Create(review).Error
}

func (l *GormLedger) OpenDispute(ctx context.Context, dispute *models.Dispute, fromStatus string) (bool, error) {
	claimed := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, "booking_id = ?", dispute.BookingID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil && payment.VendorPayoutStatus != models.PayoutStatusPending {
			return ErrPayoutCommitted
		}

		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", dispute.BookingID, fromStatus).
			Update("status", models.BookingStatusDisputed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true
		return tx.Create(dispute).Error
	})
	return claimed, err
}

func (l *GormLedger) DueBookings(ctx context.Context, statuses []string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := l.db.WithContext(ctx).
		Where("status IN ? AND vendor_status = ?", statuses, models.VendorStatusAccepted).
		Where("scheduled_date <> '' AND scheduled_time <> ''").
		Find(&bookings).Error
	return bookings, err
}
