// Package escrowtest provides in-memory collaborators for exercising the
// escrow orchestrator and the transition scheduler without a database or a
// live gateway.
package escrowtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mehulsinha73/servicelink/escrow"
	"github.com/mehulsinha73/servicelink/models"
)

// MemoryLedger implements escrow.Ledger over maps. All transitions honor
// the same conditional-update semantics as the Postgres ledger, so races
// between concurrent callers behave the same way.
type MemoryLedger struct {
	mu sync.Mutex

	Bookings map[uuid.UUID]*models.Booking
	Payments map[uuid.UUID]*models.Payment
	Users    map[uuid.UUID]*models.User
	Services map[uuid.UUID]*models.VendorService
	Reviews  []*models.Review
	Disputes []*models.Dispute

	DueBookingsCalls int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		Bookings: make(map[uuid.UUID]*models.Booking),
		Payments: make(map[uuid.UUID]*models.Payment),
		Users:    make(map[uuid.UUID]*models.User),
		Services: make(map[uuid.UUID]*models.VendorService),
	}
}

func (l *MemoryLedger) BookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	booking, ok := l.Bookings[id]
	if !ok {
		return nil, escrow.ErrBookingNotFound
	}
	copied := *booking
	return &copied, nil
}

func (l *MemoryLedger) PaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	payment, ok := l.Payments[id]
	if !ok {
		return nil, escrow.ErrPaymentNotFound
	}
	copied := *payment
	return &copied, nil
}

func (l *MemoryLedger) PaymentByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, payment := range l.Payments {
		if payment.BookingID == bookingID {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, escrow.ErrMissingPayment
}

func (l *MemoryLedger) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	user, ok := l.Users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	copied := *user
	return &copied, nil
}

func (l *MemoryLedger) VendorForService(ctx context.Context, serviceID uuid.UUID) (*models.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	service, ok := l.Services[serviceID]
	if !ok {
		return nil, errors.New("service not found")
	}
	vendor, ok := l.Users[service.VendorID]
	if !ok {
		return nil, errors.New("vendor not found")
	}
	copied := *vendor
	return &copied, nil
}

func (l *MemoryLedger) CreatePaymentConfirmBooking(ctx context.Context, payment *models.Payment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	booking, ok := l.Bookings[payment.BookingID]
	if !ok {
		return escrow.ErrBookingNotFound
	}
	for _, existing := range l.Payments {
		if existing.BookingID == payment.BookingID {
			return escrow.ErrPaymentExists
		}
	}
	if booking.Status != models.BookingStatusPending && booking.Status != models.BookingStatusScheduled {
		return escrow.ErrInvalidState
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	copied := *payment
	l.Payments[payment.ID] = &copied
	booking.Status = models.BookingStatusConfirmed
	return nil
}

func (l *MemoryLedger) TransitionBooking(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	booking, ok := l.Bookings[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if booking.Status == status {
			booking.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (l *MemoryLedger) AppendBookingNote(ctx context.Context, id uuid.UUID, note string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	booking, ok := l.Bookings[id]
	if !ok {
		return escrow.ErrBookingNotFound
	}
	if booking.Notes == nil {
		booking.Notes = &note
		return nil
	}
	appended := *booking.Notes + note
	booking.Notes = &appended
	return nil
}

func (l *MemoryLedger) SetVendorResponse(ctx context.Context, id uuid.UUID, from []string, vendorStatus, bookingStatus string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	booking, ok := l.Bookings[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if booking.Status == status {
			booking.VendorStatus = vendorStatus
			booking.Status = bookingStatus
			return true, nil
		}
	}
	return false, nil
}

func (l *MemoryLedger) ClaimVendorPayout(ctx context.Context, paymentID uuid.UUID, from []string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	payment, ok := l.Payments[paymentID]
	if !ok || payment.Status != models.PaymentStatusSuccess {
		return false, nil
	}
	for _, status := range from {
		if payment.VendorPayoutStatus == status {
			payment.VendorPayoutStatus = models.PayoutStatusInProgress
			return true, nil
		}
	}
	return false, nil
}

func (l *MemoryLedger) SettleVendorPayout(ctx context.Context, paymentID uuid.UUID, status string, payoutID *string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	payment, ok := l.Payments[paymentID]
	if !ok || payment.VendorPayoutStatus != models.PayoutStatusInProgress {
		return nil
	}
	payment.VendorPayoutStatus = status
	payment.VendorPayoutID = payoutID
	return nil
}

func (l *MemoryLedger) CreateReview(ctx context.Context, review *models.Review) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	copied := *review
	l.Reviews = append(l.Reviews, &copied)
	return nil
}

func (l *MemoryLedger) OpenDispute(ctx context.Context, dispute *models.Dispute, fromStatus string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, payment := range l.Payments {
		if payment.BookingID == dispute.BookingID && payment.VendorPayoutStatus != models.PayoutStatusPending {
			return false, escrow.ErrPayoutCommitted
		}
	}
	booking, ok := l.Bookings[dispute.BookingID]
	if !ok || booking.Status != fromStatus {
		return false, nil
	}
	booking.Status = models.BookingStatusDisputed
	if dispute.ID == uuid.Nil {
		dispute.ID = uuid.New()
	}
	copied := *dispute
	l.Disputes = append(l.Disputes, &copied)
	return true, nil
}

func (l *MemoryLedger) DueBookings(ctx context.Context, statuses []string) ([]models.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.DueBookingsCalls++
	var due []models.Booking
	for _, booking := range l.Bookings {
		if booking.VendorStatus != models.VendorStatusAccepted {
			continue
		}
		if booking.ScheduledDate == "" || booking.ScheduledTime == "" {
			continue
		}
		for _, status := range statuses {
			if booking.Status == status {
				due = append(due, *booking)
				break
			}
		}
	}
	return due, nil
}

// PayoutCall records one gateway payout invocation.
type PayoutCall struct {
	AmountMinor int64
	Currency    string
	Destination string
	Reference   string
}

// RecordingGateway implements payments.Gateway and records every call.
type RecordingGateway struct {
	mu sync.Mutex

	GatewayName string
	ChargeID    string
	PayoutID    string
	PayoutErr   error
	PayoutDelay time.Duration

	ChargeCalls []string
	PayoutCalls []PayoutCall
}

func (g *RecordingGateway) Name() string {
	if g.GatewayName == "" {
		return "razorpay"
	}
	return g.GatewayName
}

func (g *RecordingGateway) Charge(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ChargeCalls = append(g.ChargeCalls, receipt)
	return g.ChargeID, nil
}

func (g *RecordingGateway) Payout(ctx context.Context, amountMinor int64, currency, destination, reference string) (string, error) {
	g.mu.Lock()
	g.PayoutCalls = append(g.PayoutCalls, PayoutCall{
		AmountMinor: amountMinor,
		Currency:    currency,
		Destination: destination,
		Reference:   reference,
	})
	g.mu.Unlock()

	if g.PayoutDelay > 0 {
		time.Sleep(g.PayoutDelay)
	}
	if g.PayoutErr != nil {
		return "", g.PayoutErr
	}
	return g.PayoutID, nil
}

func (g *RecordingGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return true
}

func (g *RecordingGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return true
}

// PayoutCallCount reports how many times the gateway was asked to pay out.
func (g *RecordingGateway) PayoutCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.PayoutCalls)
}

// RecordingNotifier implements notifications.Notifier and records every
// delivered message.
type RecordingNotifier struct {
	mu       sync.Mutex
	Messages []NotifierMessage
}

type NotifierMessage struct {
	UserID  uuid.UUID
	Email   string
	Subject string
}

func (n *RecordingNotifier) Notify(ctx context.Context, user models.User, subject, htmlBody string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, NotifierMessage{UserID: user.ID, Email: user.Email, Subject: subject})
	return nil
}

// MessageCount reports how many notifications were delivered.
func (n *RecordingNotifier) MessageCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Messages)
}
