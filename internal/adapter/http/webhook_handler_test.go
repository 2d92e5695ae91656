package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func postWebhook(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewWebhookHandler(nil)
	r.POST("/v1/webhooks/payment", h.HandlePayment)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsUnknownFields(t *testing.T) {
	w := postWebhook(t, `{"order_id":"o1","tx_hash":"h","amount":"0.001","currency":"BTC","surprise":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsMissingFields(t *testing.T) {
	w := postWebhook(t, `{"order_id":"o1","amount":"0.001","currency":"BTC"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_fields")
}

func TestWebhookRejectsNonDecimalAmount(t *testing.T) {
	w := postWebhook(t, `{"order_id":"o1","tx_hash":"h","amount":"lots","currency":"BTC"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad_amount")
}

func TestWebhookRejectsNumericAmount(t *testing.T) {
	// Amounts travel as strings so precision never leaks through float64.
	w := postWebhook(t, `{"order_id":"o1","tx_hash":"h","amount":0.001,"currency":"BTC"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	w := postWebhook(t, `{"order_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
