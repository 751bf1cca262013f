package payments

import (
	"context"
	"fmt"

	"github.com/razorpay/razorpay-go"
	razorpayutils "github.com/razorpay/razorpay-go/utils"

	config "github.com/mehulsinha73/servicelink/configs"
)

// RazorpayGateway implements Gateway on the Razorpay SDK. Charges go
// through Orders, vendor payouts through Route transfers to the vendor's
// linked account.
type RazorpayGateway struct {
	client        *razorpay.Client
	keySecret     string
	webhookSecret string
}

func NewRazorpayGateway() *RazorpayGateway {
	keyID := config.Config("RAZORPAY_KEY_ID")
	keySecret := config.Config("RAZORPAY_KEY_SECRET")
	return &RazorpayGateway{
		client:        razorpay.NewClient(keyID, keySecret),
		keySecret:     keySecret,
		webhookSecret: config.Config("RAZORPAY_WEBHOOK_SECRET"),
	}
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

func (g *RazorpayGateway) Charge(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	order, err := g.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay order create failed: %w", err)
	}
	orderID, ok := order["id"].(string)
	if !ok {
		return "", fmt.Errorf("razorpay order response missing id: %v", order)
	}
	return orderID, nil
}

func (g *RazorpayGateway) Payout(ctx context.Context, amountMinor int64, currency, destination, reference string) (string, error) {
	data := map[string]interface{}{
		"account":  destination,
		"amount":   amountMinor,
		"currency": currency,
		"notes": map[string]interface{}{
			"payment_ref": reference,
		},
	}
	transfer, err := callWithContext(ctx, func() (map[string]interface{}, error) {
		return g.client.Transfer.Create(data, nil)
	})
	if err != nil {
		return "", fmt.Errorf("razorpay transfer create failed: %w", err)
	}
	transferID, ok := transfer["id"].(string)
	if !ok {
		return "", fmt.Errorf("razorpay transfer response missing id: %v", transfer)
	}
	return transferID, nil
}

// callWithContext runs an SDK call in its own goroutine and abandons it when
// the context expires. The SDK takes no context, and an abandoned call may
// still have reached Razorpay, so expiry surfaces as ErrOutcomeUnknown.
func callWithContext(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%v: %w", ctx.Err(), ErrOutcomeUnknown)
	case res := <-done:
		return res.body, res.err
	}
}

func (g *RazorpayGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return razorpayutils.VerifyWebhookSignature(string(body), signature, g.webhookSecret)
}

func (g *RazorpayGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	return razorpayutils.VerifyPaymentSignature(params, signature, g.keySecret)
}
