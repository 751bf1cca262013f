package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/mehulsinha73/servicelink/configs"
)

const stripeAPIBase = "https://api.stripe.com/v1"

// StripeGateway implements Gateway against the Stripe-style REST API:
// payment intents for charges and transfers for vendor payouts.
type StripeGateway struct {
	secretKey     string
	webhookSecret string
	client        *http.Client
}

func NewStripeGateway() *StripeGateway {
	return &StripeGateway{
		secretKey:     config.Config("STRIPE_SECRET_KEY"),
		webhookSecret: config.Config("STRIPE_WEBHOOK_SECRET"),
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

type stripeObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *StripeGateway) Charge(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("metadata[receipt]", receipt)

	intent, err := g.post(ctx, "/payment_intents", form)
	if err != nil {
		return "", fmt.Errorf("stripe payment intent create failed: %w", err)
	}
	return intent.ID, nil
}

func (g *StripeGateway) Payout(ctx context.Context, amountMinor int64, currency, destination, reference string) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("destination", destination)
	form.Set("transfer_group", reference)

	transfer, err := g.post(ctx, "/transfers", form)
	if err != nil {
		return "", fmt.Errorf("stripe transfer failed: %w", err)
	}
	return transfer.ID, nil
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values) (*stripeObject, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", stripeAPIBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		// The request may have reached Stripe before the failure.
		return nil, fmt.Errorf("%v: %w", err, ErrOutcomeUnknown)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %v: %w", err, ErrOutcomeUnknown)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		log.Printf("Stripe API %s returned %d: %s", path, resp.StatusCode, string(respBody))
		return nil, fmt.Errorf("stripe returned status %d: %w", resp.StatusCode, ErrOutcomeUnknown)
	}
	if resp.StatusCode != http.StatusOK {
		var failed stripeObject
		if err := json.Unmarshal(respBody, &failed); err == nil && failed.Error != nil {
			return nil, errors.New(failed.Error.Message)
		}
		return nil, fmt.Errorf("stripe returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var obj stripeObject
	if err := json.Unmarshal(respBody, &obj); err != nil {
		return nil, fmt.Errorf("unmarshal response: %v", err)
	}
	return &obj, nil
}

func (g *StripeGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return verifyHMAC(body, signature, g.webhookSecret)
}

func (g *StripeGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return verifyHMAC([]byte(orderID+"|"+paymentID), signature, g.secretKey)
}

// verifyHMAC compares a hex-encoded HMAC-SHA256 signature over the payload
// in constant time.
func verifyHMAC(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
