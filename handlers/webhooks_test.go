package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ginko-backend/billing"
	"ginko-backend/types"
)

func TestStripeWebhook_NotConfigured(t *testing.T) {
	resetDeps()
	r := noRoute(http.MethodPost, "/webhooks/stripe", StripeWebhook)

	w := doJSON(t, r, http.MethodPost, "/webhooks/stripe", map[string]interface{}{"type": "invoice.payment_succeeded"})

	assertStatus(t, w, http.StatusServiceUnavailable)
	if code := errorCode(t, w); code != types.CodeServiceUnavailable {
		t.Errorf("error code = %q, expected %q", code, types.CodeServiceUnavailable)
	}
}

func TestStripeWebhook_BadSignature(t *testing.T) {
	resetDeps()
	Webhook = &fakeWebhookProcessor{
		process: func(context.Context, []byte, string) error {
			return fmt.Errorf("%w: mismatch", billing.ErrBadSignature)
		},
	}
	r := noRoute(http.MethodPost, "/webhooks/stripe", StripeWebhook)

	w := doJSON(t, r, http.MethodPost, "/webhooks/stripe", map[string]interface{}{"type": "x"})

	// 400 tells the provider to stop retrying a forged or stale payload.
	assertStatus(t, w, http.StatusBadRequest)
	if code := errorCode(t, w); code != types.CodeAuthInvalid {
		t.Errorf("error code = %q, expected %q", code, types.CodeAuthInvalid)
	}
}

func TestStripeWebhook_ApplyFailure(t *testing.T) {
	resetDeps()
	Webhook = &fakeWebhookProcessor{
		process: func(context.Context, []byte, string) error {
			return errors.New("db write failed")
		},
	}
	r := noRoute(http.MethodPost, "/webhooks/stripe", StripeWebhook)

	w := doJSON(t, r, http.MethodPost, "/webhooks/stripe", map[string]interface{}{"type": "x"})

	// 500 keeps the provider retrying until the write lands.
	assertStatus(t, w, http.StatusInternalServerError)
	if code := errorCode(t, w); code != types.CodeInternalError {
		t.Errorf("error code = %q, expected %q", code, types.CodeInternalError)
	}
}

func TestStripeWebhook_PassesPayloadAndSignature(t *testing.T) {
	resetDeps()
	var gotPayload []byte
	var gotSig string
	Webhook = &fakeWebhookProcessor{
		process: func(_ context.Context, payload []byte, signature string) error {
			gotPayload = payload
			gotSig = signature
			return nil
		},
	}
	r := noRoute(http.MethodPost, "/webhooks/stripe", StripeWebhook)

	raw := `{"type":"invoice.payment_succeeded"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(raw))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assertStatus(t, w, http.StatusOK)
	if string(gotPayload) != raw {
		t.Errorf("payload = %s, expected the raw body", gotPayload)
	}
	if gotSig != "t=1,v1=abc" {
		t.Errorf("signature = %q, expected the Stripe-Signature header", gotSig)
	}
	body := decodeJSON(t, w)
	if body["received"] != true {
		t.Errorf("body = %v, expected received=true", body)
	}
}
