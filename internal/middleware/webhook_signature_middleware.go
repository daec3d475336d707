package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"marketpulse/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "X-Webhook-Signature"

// WebhookSignatureMiddleware verifies the HMAC-SHA256 signature the runner
// computes over the raw request body. Skipped entirely when no secret is
// configured. The body is re-buffered so downstream binding still works.
func WebhookSignatureMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unreadable body", "INVALID_REQUEST"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		provided := strings.TrimPrefix(c.GetHeader(signatureHeader), "sha256=")
		if !verifySignature(secret, body, provided) {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("invalid signature", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func verifySignature(secret string, body []byte, provided string) bool {
	if provided == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(provided))
}
