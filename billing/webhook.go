// Package billing reconciles the relational billing state with Stripe:
// inbound webhooks flow through Processor, outbound seat updates through
// SeatSyncer. Both sides treat Stripe as the source of truth for
// subscription state and the local store as the source of truth for
// membership.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"ginko-backend/store"
	"ginko-backend/types"
)

// ErrBadSignature marks a webhook whose signature did not verify. The
// handler maps it to 400 so the provider does not retry a forged or
// misconfigured delivery.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Store is the slice of the relational store the webhook dispatcher
// needs.
type Store interface {
	OrganizationByStripeCustomer(ctx context.Context, customerID string) (types.Organization, error)
	LinkCheckout(ctx context.Context, orgID, customerID, subscriptionID string) error
	ApplySubscriptionUpdate(ctx context.Context, orgID, subscriptionID, status string, seats int) error
	DowngradeToFree(ctx context.Context, orgID string) error
	RecordPaymentFailure(ctx context.Context, orgID string, failedAt time.Time) error
	RecordPaymentSuccess(ctx context.Context, orgID string, paidAt time.Time) error
	InsertBillingEvent(ctx context.Context, ev types.BillingEvent) (bool, error)
}

// Processor verifies and dispatches inbound Stripe webhooks.
type Processor struct {
	Store         Store
	WebhookSecret string
}

// Process verifies the payload signature, applies the state change the
// event describes, and records the delivery in an audit log keyed by
// stripe event id. The returned error is nil whenever the provider
// should stop retrying: a delivery already present in the audit log is
// acknowledged even when this attempt's apply failed, since every
// subscription event carries absolute state.
func (p *Processor) Process(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, p.WebhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	eventType := string(event.Type)
	orgID, applyErr := p.dispatch(ctx, eventType, event)

	inserted, auditErr := p.Store.InsertBillingEvent(ctx, types.BillingEvent{
		OrganizationID: orgID,
		StripeEventID:  event.ID,
		EventType:      eventType,
		Payload:        string(event.Data.Raw),
	})
	if auditErr != nil {
		log.Printf("Stripe webhook: audit write failed for %s (%s): %v", event.ID, eventType, auditErr)
	} else if !inserted {
		log.Printf("Stripe webhook: duplicate delivery of %s (%s), acknowledged", event.ID, eventType)
		return nil
	}

	if applyErr != nil {
		return fmt.Errorf("apply %s: %w", eventType, applyErr)
	}
	return nil
}

// dispatch routes one verified event. It returns the organization the
// event resolved to (for the audit row) and any error applying it.
func (p *Processor) dispatch(ctx context.Context, eventType string, event stripe.Event) (string, error) {
	switch eventType {
	case "customer.subscription.updated":
		return p.applySubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return p.applySubscriptionDeleted(ctx, event)
	case "invoice.payment_failed":
		return p.applyPaymentFailed(ctx, event)
	case "invoice.payment_succeeded":
		return p.applyPaymentSucceeded(ctx, event)
	case "checkout.session.completed":
		return p.applyCheckoutCompleted(ctx, event)
	default:
		log.Printf("Stripe webhook: ignoring unhandled event type %s", eventType)
		return "", nil
	}
}

func (p *Processor) applySubscriptionUpdated(ctx context.Context, event stripe.Event) (string, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return "", fmt.Errorf("parse subscription: %w", err)
	}
	org, ok, err := p.orgForCustomer(ctx, customerID(sub.Customer), event.ID)
	if !ok || err != nil {
		return "", err
	}

	seats := subscriptionQuantity(&sub)
	if err := p.Store.ApplySubscriptionUpdate(ctx, org.ID, sub.ID, string(sub.Status), seats); err != nil {
		return org.ID, err
	}
	log.Printf("Stripe webhook: org %s subscription %s now %s with %d seats", org.ID, sub.ID, sub.Status, seats)
	return org.ID, nil
}

func (p *Processor) applySubscriptionDeleted(ctx context.Context, event stripe.Event) (string, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return "", fmt.Errorf("parse subscription: %w", err)
	}
	org, ok, err := p.orgForCustomer(ctx, customerID(sub.Customer), event.ID)
	if !ok || err != nil {
		return "", err
	}
	if err := p.Store.DowngradeToFree(ctx, org.ID); err != nil {
		return org.ID, err
	}
	log.Printf("Stripe webhook: org %s downgraded to free tier", org.ID)
	return org.ID, nil
}

func (p *Processor) applyPaymentFailed(ctx context.Context, event stripe.Event) (string, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return "", fmt.Errorf("parse invoice: %w", err)
	}
	org, ok, err := p.orgForCustomer(ctx, customerID(inv.Customer), event.ID)
	if !ok || err != nil {
		return "", err
	}
	if err := p.Store.RecordPaymentFailure(ctx, org.ID, time.Unix(event.Created, 0)); err != nil {
		return org.ID, err
	}
	log.Printf("Stripe webhook: org %s payment failed on invoice %s", org.ID, inv.ID)
	return org.ID, nil
}

func (p *Processor) applyPaymentSucceeded(ctx context.Context, event stripe.Event) (string, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return "", fmt.Errorf("parse invoice: %w", err)
	}
	org, ok, err := p.orgForCustomer(ctx, customerID(inv.Customer), event.ID)
	if !ok || err != nil {
		return "", err
	}
	if err := p.Store.RecordPaymentSuccess(ctx, org.ID, time.Unix(event.Created, 0)); err != nil {
		return org.ID, err
	}
	return org.ID, nil
}

// applyCheckoutCompleted links the minted customer/subscription pair to
// an organization, preferring the explicit metadata.organizationId the
// checkout session was created with and falling back to a customer-id
// lookup for sessions minted before metadata was attached.
func (p *Processor) applyCheckoutCompleted(ctx context.Context, event stripe.Event) (string, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return "", fmt.Errorf("parse checkout session: %w", err)
	}
	custID := customerID(session.Customer)
	subID := ""
	if session.Subscription != nil {
		subID = session.Subscription.ID
	}

	orgID := session.Metadata["organizationId"]
	if orgID == "" {
		org, ok, err := p.orgForCustomer(ctx, custID, event.ID)
		if !ok || err != nil {
			return "", err
		}
		orgID = org.ID
	}
	if err := p.Store.LinkCheckout(ctx, orgID, custID, subID); err != nil {
		return orgID, err
	}
	log.Printf("Stripe webhook: org %s linked to customer %s subscription %s", orgID, custID, subID)
	return orgID, nil
}

// orgForCustomer resolves the organization for a customer id. An
// unknown customer is logged and acknowledged (ok=false, nil error) so
// the provider stops retrying deliveries this deployment will never
// resolve.
func (p *Processor) orgForCustomer(ctx context.Context, custID, eventID string) (types.Organization, bool, error) {
	if custID == "" {
		log.Printf("Stripe webhook: event %s carries no customer, skipping", eventID)
		return types.Organization{}, false, nil
	}
	org, err := p.Store.OrganizationByStripeCustomer(ctx, custID)
	if errors.Is(err, store.ErrOrganizationNotFound) {
		log.Printf("Stripe webhook: no organization for customer %s (event %s), skipping", custID, eventID)
		return types.Organization{}, false, nil
	}
	if err != nil {
		return types.Organization{}, false, err
	}
	return org, true, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// subscriptionQuantity reads the seat quantity off the subscription's
// first item. Ginko subscriptions carry exactly one priced item.
func subscriptionQuantity(sub *stripe.Subscription) int {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return 0
	}
	return int(sub.Items.Data[0].Quantity)
}
