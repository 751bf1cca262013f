package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signHex(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestStripeVerifyWebhookSignature(t *testing.T) {
	gateway := &StripeGateway{webhookSecret: "whsec_test_secret"}
	body := []byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)

	assert.True(t, gateway.VerifyWebhookSignature(body, signHex(body, "whsec_test_secret")))
	assert.False(t, gateway.VerifyWebhookSignature(body, signHex(body, "whsec_wrong_secret")))
	assert.False(t, gateway.VerifyWebhookSignature(body, "not-a-signature"))
	assert.False(t, gateway.VerifyWebhookSignature(body, ""))

	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = '2'
	assert.False(t, gateway.VerifyWebhookSignature(tampered, signHex(body, "whsec_test_secret")))
}

func TestStripeVerifyCheckoutSignature(t *testing.T) {
	gateway := &StripeGateway{secretKey: "sk_test_secret"}

	valid := signHex([]byte("order_1|pay_1"), "sk_test_secret")
	assert.True(t, gateway.VerifyCheckoutSignature("order_1", "pay_1", valid))
	assert.False(t, gateway.VerifyCheckoutSignature("order_1", "pay_2", valid))
	assert.False(t, gateway.VerifyCheckoutSignature("order_2", "pay_1", valid))
}

func TestStripeGatewayName(t *testing.T) {
	assert.Equal(t, "stripe", (&StripeGateway{}).Name())
}
