package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ginko-backend/billing"
	"ginko-backend/types"
)

// maxWebhookBody caps inbound webhook payloads; Stripe events are far
// smaller than this.
const maxWebhookBody = 1 << 16

// StripeWebhook handles POST /api/v1/webhooks/stripe
// Signature failures return 400 so the provider stops retrying; apply
// failures return 500 so it retries. Duplicate deliveries are
// acknowledged with 200.
func StripeWebhook(c *gin.Context) {
	if Webhook == nil {
		Error(c, http.StatusServiceUnavailable, types.CodeServiceUnavailable, "billing not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "unreadable payload")
		return
	}

	err = Webhook.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, billing.ErrBadSignature) {
		Error(c, http.StatusBadRequest, types.CodeAuthInvalid, "webhook signature verification failed")
		return
	}
	if err != nil {
		Error(c, http.StatusInternalServerError, types.CodeInternalError, "webhook processing failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
