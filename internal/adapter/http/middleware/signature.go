package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/6R1M5L07H/shopcore/internal/logging"
	"github.com/6R1M5L07H/shopcore/internal/security"
	"github.com/gin-gonic/gin"
)

const signatureHeader = "X-Webhook-Signature"

// SignatureVerify rejects any webhook request without a valid HMAC signature
// over the raw body. Missing and invalid signatures are indistinguishable to
// the caller: both are 403 with no partial effect.
type SignatureVerify struct {
	verifier security.WebhookVerifier
	maxBody  int64
}

func NewSignatureVerify(verifier security.WebhookVerifier, maxBody int64) *SignatureVerify {
	if maxBody <= 0 {
		maxBody = 16 * 1024
	}
	return &SignatureVerify{verifier: verifier, maxBody: maxBody}
}

func (sv *SignatureVerify) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > sv.maxBody {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "payload_too_large"})
			return
		}
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, sv.maxBody+1))
		c.Request.Body.Close()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}
		if int64(len(raw)) > sv.maxBody {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "payload_too_large"})
			return
		}

		if err := sv.verifier.Verify(raw, c.GetHeader(signatureHeader)); err != nil {
			logging.From(c).Warn("webhook signature rejected", "remote", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "signature_invalid"})
			return
		}

		// Hand the verified raw bytes to the handler.
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		c.Request.ContentLength = int64(len(raw))
		c.Next()
	}
}
