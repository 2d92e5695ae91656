package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/6R1M5L07H/shopcore/configs"
)

var ErrSignatureInvalid = errors.New("signature invalid")

// WebhookVerifier checks the gateway's HMAC-SHA256 signature over the raw
// request body. A missing signature is the same as a wrong one.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHex string) error
	Sign(payload []byte) string
}

type hmacVerifier struct {
	secret []byte
}

func NewWebhookVerifier(cfg configs.Config) (WebhookVerifier, error) {
	if cfg.Webhook.SecretB64 == "" {
		return nil, errors.New("missing webhook.secret_b64url")
	}
	secret, err := base64.RawURLEncoding.DecodeString(cfg.Webhook.SecretB64)
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	if len(secret) < 16 {
		return nil, fmt.Errorf("webhook secret too short: %d bytes", len(secret))
	}
	return &hmacVerifier{secret: secret}, nil
}

// NewWebhookVerifierFromKey builds a verifier from a raw key; used by tests
// and by callers that manage key material themselves.
func NewWebhookVerifierFromKey(secret []byte) WebhookVerifier {
	return &hmacVerifier{secret: secret}
}

func (v *hmacVerifier) Verify(payload []byte, signatureHex string) error {
	if signatureHex == "" {
		return ErrSignatureInvalid
	}
	got, err := hex.DecodeString(signatureHex)
	if err != nil {
		return ErrSignatureInvalid
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrSignatureInvalid
	}
	return nil
}

func (v *hmacVerifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
