package billing

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ginko-backend/store"
	"ginko-backend/types"
)

const testWebhookSecret = "whsec_test_1234567890"

// signedHeader builds a Stripe-Signature header the verifier accepts
// for payload.
func signedHeader(payload []byte) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

// stripeEvent wraps one API object in the provider's event envelope.
// The api_version must match what this SDK pins or verification
// rejects the event.
func stripeEvent(id, eventType string, created int64, object map[string]interface{}) []byte {
	payload, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"api_version": "2023-10-16",
		"created":     created,
		"type":        eventType,
		"data":        map[string]interface{}{"object": object},
	})
	if err != nil {
		panic(err)
	}
	return payload
}

func activeSubscriptionObject(seats int) map[string]interface{} {
	return map[string]interface{}{
		"id":       "sub_123",
		"object":   "subscription",
		"customer": "cus_9",
		"status":   "active",
		"items": map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"id": "si_1", "object": "subscription_item", "quantity": seats},
			},
		},
	}
}

// recordingStore captures every state write the dispatcher makes.
type recordingStore struct {
	org    types.Organization
	orgErr error

	duplicate bool
	auditErr  error
	applyErr  error

	audits     []types.BillingEvent
	linked     []string
	updates    []string
	downgraded []string
	failures   []time.Time
	successes  []time.Time
}

func (s *recordingStore) OrganizationByStripeCustomer(context.Context, string) (types.Organization, error) {
	if s.orgErr != nil {
		return types.Organization{}, s.orgErr
	}
	return s.org, nil
}

func (s *recordingStore) LinkCheckout(_ context.Context, orgID, customerID, subscriptionID string) error {
	s.linked = append(s.linked, fmt.Sprintf("%s/%s/%s", orgID, customerID, subscriptionID))
	return s.applyErr
}

func (s *recordingStore) ApplySubscriptionUpdate(_ context.Context, orgID, subscriptionID, status string, seats int) error {
	s.updates = append(s.updates, fmt.Sprintf("%s/%s/%s/%d", orgID, subscriptionID, status, seats))
	return s.applyErr
}

func (s *recordingStore) DowngradeToFree(_ context.Context, orgID string) error {
	s.downgraded = append(s.downgraded, orgID)
	return s.applyErr
}

func (s *recordingStore) RecordPaymentFailure(_ context.Context, _ string, failedAt time.Time) error {
	s.failures = append(s.failures, failedAt)
	return s.applyErr
}

func (s *recordingStore) RecordPaymentSuccess(_ context.Context, _ string, paidAt time.Time) error {
	s.successes = append(s.successes, paidAt)
	return s.applyErr
}

func (s *recordingStore) InsertBillingEvent(_ context.Context, ev types.BillingEvent) (bool, error) {
	if s.auditErr != nil {
		return false, s.auditErr
	}
	if s.duplicate {
		return false, nil
	}
	s.audits = append(s.audits, ev)
	return true, nil
}

var _ Store = (*recordingStore)(nil)

func billedOrg() types.Organization {
	return types.Organization{ID: "org-1", PlanTier: types.PlanTeam, StripeCustomerID: "cus_9"}
}

func newTestProcessor(st Store) *Processor {
	return &Processor{Store: st, WebhookSecret: testWebhookSecret}
}

func TestProcess_RejectsBadSignature(t *testing.T) {
	st := &recordingStore{org: billedOrg()}
	p := newTestProcessor(st)
	payload := stripeEvent("evt_1", "customer.subscription.updated", 1750000000, activeSubscriptionObject(5))
	forged := fmt.Sprintf("t=%d,v1=%s", time.Now().Unix(), "deadbeef")

	err := p.Process(context.Background(), payload, forged)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.Empty(t, st.audits, "an unverified payload must leave no trace")
	assert.Empty(t, st.updates)
}

func TestProcess_SubscriptionUpdated(t *testing.T) {
	st := &recordingStore{org: billedOrg()}
	p := newTestProcessor(st)
	payload := stripeEvent("evt_1", "customer.subscription.updated", 1750000000, activeSubscriptionObject(5))

	err := p.Process(context.Background(), payload, signedHeader(payload))

	require.NoError(t, err)
	assert.Equal(t, []string{"org-1/sub_123/active/5"}, st.updates, "status and seat quantity come from the event")
	require.Len(t, st.audits, 1)
	assert.Equal(t, "evt_1", st.audits[0].StripeEventID)
	assert.Equal(t, "customer.subscription.updated", st.audits[0].EventType)
	assert.Equal(t, "org-1", st.audits[0].OrganizationID)
	assert.NotEmpty(t, st.audits[0].Payload, "the audit row keeps the raw object for replay")
}

func TestProcess_SubscriptionDeleted(t *testing.T) {
	st := &recordingStore{org: billedOrg()}
	p := newTestProcessor(st)
	object := map[string]interface{}{
		"id": "sub_123", "object": "subscription", "customer": "cus_9", "status": "canceled",
	}
	payload := stripeEvent("evt_2", "customer.subscription.deleted", 1750000000, object)

	err := p.Process(context.Background(), payload, signedHeader(payload))

	require.NoError(t, err)
	assert.Equal(t, []string{"org-1"}, st.downgraded)
}

func TestProcess_PaymentFailed(t *testing.T) {
	st := &recordingStore{org: billedOrg()}
	p := newTestProcessor(st)
	created := int64(1750000000)
	object := map[string]interface{}{"id": "in_1", "object": "invoice", "customer": "cus_9"}
	payload := stripeEvent("evt_3", "invoice.payment_failed", created, object)

	err := p.Process(context.Background(), payload, signedHeader(payload))

	require.NoError(t, err)
	require.Len(t, st.failures, 1)
	assert.True(t, st.failures[0].Equal(time.Unix(created, 0)), "failure is stamped with the provider's event time")
}

func TestProcess_PaymentSucceeded(t *testing.T) {
	st := &recordingStore{org: billedOrg()}
	p := newTestProcessor(st)
	object := map[string]interface{}{"id": "in_2", "object": "invoice", "customer": "cus_9"}
	payload := stripeEvent("evt_4", "invoice.payment_succeeded", 1750000000, object)

	err := p.Process(context.Background(), payload, signedHeader(payload))

	require.NoError(t, err)
	assert.Len(t, st.successes, 1)
}

func TestProcess_CheckoutCompletedUsesMetadata(t *testing.T) {
	// orgErr proves the metadata path never falls back to a customer
	// lookup.
	st := &recordingStore{orgErr: errors.New("lookup must not run")}
	p := newTestProcessor(st)
	object := map[string]interface{}{
		"id":           "cs_1",
		"object":       "checkout.session",
		"customer":     "cus_9",
		"subscription": "sub_123",
		"metadata":     map[string]string{"organizationId": "org-42"},
	}
	payload := stripeEvent("evt_5", "checkout.session.completed", 1750000000, object)

	err := p.Process(context.Background(), payload, signedHeader(payload))

	require.NoError(t, err)
	assert.Equal(t, []string{"org-42/cus_9/sub_123"}, st.linked)
}

func TestProcess_CheckoutCompletedFallsBackToCustomer(t *testing.T) {
	st := &recordingStore{org: billedOrg()}
	p := newTestProcessor(st)
	object := map[string]interface{}{
		"id":           "cs_2",
		"object":       "checkout.session",
		"customer":     "cus_9",
		"subscription": "sub_123",
	}
	payload := stripeEvent("evt_6", "checkout.session.completed", 1750000000, object)

	err := p.Process(context.Background(), payload, signedHeader(payload))

	require.NoError(t, err)
	assert.Equal(t, []string{"org-1/cus_9/sub_123"}, st.linked)
}

func TestProcess_UnknownCustomerIsAcknowledged(t *testing.T) {
	st := &recordingStore{orgErr: store.ErrOrganizationNotFound}
	p := newTestProcessor(st)
	payload := stripeEvent("evt_7", "customer.subscription.updated", 1750000000, activeSubscriptionObject(5))

	err := p.Process(context.Background(), payload, signedHeader(payload))

	require.NoError(t, err, "retrying will never resolve a customer this deployment does not know")
	assert.Empty(t, st.updates)
	require.Len(t, st.audits, 1, "the delivery still lands in the audit log")
	assert.Empty(t, st.audits[0].OrganizationID)
}

func TestProcess_UnhandledTypeIsAcknowledged(t *testing.T) {
	st := &recordingStore{org: billedOrg()}
	p := newTestProcessor(st)
	object := map[string]interface{}{"id": "cus_9", "object": "customer"}
	payload := stripeEvent("evt_8", "customer.created", 1750000000, object)

	err := p.Process(context.Background(), payload, signedHeader(payload))

	require.NoError(t, err)
	assert.Empty(t, st.updates)
	assert.Empty(t, st.linked)
	assert.Len(t, st.audits, 1)
}

func TestProcess_ApplyFailureAsksForRetry(t *testing.T) {
	st := &recordingStore{org: billedOrg(), applyErr: errors.New("pg down")}
	p := newTestProcessor(st)
	payload := stripeEvent("evt_9", "customer.subscription.updated", 1750000000, activeSubscriptionObject(5))

	err := p.Process(context.Background(), payload, signedHeader(payload))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply customer.subscription.updated")
}

func TestProcess_DuplicateDeliveryIsAcknowledged(t *testing.T) {
	st := &recordingStore{org: billedOrg(), duplicate: true, applyErr: errors.New("pg down")}
	p := newTestProcessor(st)
	payload := stripeEvent("evt_10", "customer.subscription.updated", 1750000000, activeSubscriptionObject(5))

	err := p.Process(context.Background(), payload, signedHeader(payload))

	require.NoError(t, err, "a delivery already in the audit log never errors back to the provider")
}

func TestProcess_AuditFailureDoesNotBlockApply(t *testing.T) {
	st := &recordingStore{org: billedOrg(), auditErr: errors.New("pg down")}
	p := newTestProcessor(st)
	payload := stripeEvent("evt_11", "customer.subscription.updated", 1750000000, activeSubscriptionObject(5))

	err := p.Process(context.Background(), payload, signedHeader(payload))

	require.NoError(t, err, "losing an audit row must not bounce a successfully applied event")
	assert.Len(t, st.updates, 1)
}
