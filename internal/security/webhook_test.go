package security

import (
	"testing"

	"github.com/6R1M5L07H/shopcore/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewWebhookVerifierFromKey([]byte("0123456789abcdef"))
	payload := []byte(`{"order_id":"o1"}`)

	assert.NoError(t, v.Verify(payload, v.Sign(payload)))
	assert.ErrorIs(t, v.Verify([]byte(`tampered`), v.Sign(payload)), ErrSignatureInvalid)
	assert.ErrorIs(t, v.Verify(payload, ""), ErrSignatureInvalid)
	assert.ErrorIs(t, v.Verify(payload, "zzzz"), ErrSignatureInvalid)
}

func TestVerifierFromConfig(t *testing.T) {
	var cfg configs.Config
	cfg.Webhook.SecretB64 = "c2hvcGNvcmUtd2ViaG9vay1zZWNyZXQ" // 24 bytes decoded

	v, err := NewWebhookVerifier(cfg)
	require.NoError(t, err)
	payload := []byte("x")
	assert.NoError(t, v.Verify(payload, v.Sign(payload)))

	cfg.Webhook.SecretB64 = "c2hvcnQ" // "short", below the floor
	_, err = NewWebhookVerifier(cfg)
	assert.Error(t, err)

	cfg.Webhook.SecretB64 = ""
	_, err = NewWebhookVerifier(cfg)
	assert.Error(t, err)
}
