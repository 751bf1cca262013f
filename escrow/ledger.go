package escrow

import (
	"context"

	"github.com/google/uuid"

	"github.com/mehulsinha73/servicelink/models"
)

// Ledger is the persistent record of bookings, payments, reviews and
// disputes. Every status transition the orchestrator or the scheduler
// performs goes through a conditional update here: the write succeeds only
// if the row is still in the expected pre-transition state, so two
// concurrent callers can never both win the same transition.
type Ledger interface {
	BookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	PaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	PaymentByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// VendorForService resolves the vendor user behind a catalog listing.
	VendorForService(ctx context.Context, serviceID uuid.UUID) (*models.User, error)

	// CreatePaymentConfirmBooking atomically records a captured payment and
	// moves its booking to confirmed. Returns ErrPaymentExists if the
	// booking already has a payment, and ErrInvalidState when the booking
	// is past the point where a capture may confirm it (cancelled, disputed
	// or already underway).
	CreatePaymentConfirmBooking(ctx context.Context, payment *models.Payment) error

	// TransitionBooking moves a booking from one of the given statuses to
	// the target status. Reports false when the booking was no longer in
	// any of the expected statuses.
	TransitionBooking(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error)

	// AppendBookingNote appends an audit line to the booking's notes.
	AppendBookingNote(ctx context.Context, id uuid.UUID, note string) error

	// SetVendorResponse records the vendor's accept/reject decision, moving
	// the booking from one of the given statuses in the same conditional
	// write. Reports false when the booking was no longer in any of them.
	SetVendorResponse(ctx context.Context, id uuid.UUID, from []string, vendorStatus, bookingStatus string) (bool, error)

	// ClaimVendorPayout flips vendor_payout_status to in_progress, but only
	// while the payment is successful and the payout status is one of the
	// given values. Exactly one concurrent caller can win the claim.
	ClaimVendorPayout(ctx context.Context, paymentID uuid.UUID, from []string) (bool, error)

	// SettleVendorPayout resolves an in-progress claim to paid or failed.
	SettleVendorPayout(ctx context.Context, paymentID uuid.UUID, status string, payoutID *string) error

	CreateReview(ctx context.Context, review *models.Review) error

	// OpenDispute records a dispute and moves the booking from fromStatus to
	// disputed in one transaction. It fails with ErrPayoutCommitted when the
	// booking's payment has already left the pending payout state, and
	// reports false when the booking status check lost a race.
	OpenDispute(ctx context.Context, dispute *models.Dispute, fromStatus string) (bool, error)

	// DueBookings lists vendor-accepted bookings in the given statuses that
	// carry a scheduled date and time, for the transition scheduler.
	DueBookings(ctx context.Context, statuses []string) ([]models.Booking, error)
}
