package billing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/subscription"

	"ginko-backend/store"
	"ginko-backend/types"
)

// SeatStore is the slice of the relational store seat sync reads and
// writes.
type SeatStore interface {
	OrganizationForTeam(ctx context.Context, teamID string) (types.Organization, error)
	OrgSeatCount(ctx context.Context, orgID string) (int, error)
	UpdateSeatCount(ctx context.Context, orgID string, seats int) error
}

// SubscriptionAPI abstracts the two Stripe subscription calls seat sync
// makes, so tests can run against a fake.
type SubscriptionAPI interface {
	Get(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	Update(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type stripeSubscriptionAPI struct{}

func (stripeSubscriptionAPI) Get(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return subscription.Get(id, params)
}

func (stripeSubscriptionAPI) Update(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return subscription.Update(id, params)
}

// SeatSyncer pushes membership-derived seat counts to the provider.
// Callers treat every error as non-fatal: a failed sync never rolls
// back the membership change that triggered it.
type SeatSyncer struct {
	Store         SeatStore
	Subscriptions SubscriptionAPI
}

// NewSeatSyncer builds a syncer against the live Stripe API.
func NewSeatSyncer(st SeatStore) *SeatSyncer {
	return &SeatSyncer{Store: st, Subscriptions: stripeSubscriptionAPI{}}
}

// SeatUpdate describes the provider call a seat diff requires.
type SeatUpdate struct {
	Needed            bool
	Quantity          int
	ProrationBehavior string
}

// PlanSeatUpdate compares the provider's recorded quantity with the
// membership-derived seat count. Additions bill immediately; removals
// keep the current period's quantity and settle at period end.
func PlanSeatUpdate(currentQuantity, seats int) SeatUpdate {
	if seats == currentQuantity {
		return SeatUpdate{}
	}
	behavior := "none"
	if seats > currentQuantity {
		behavior = "create_prorations"
	}
	return SeatUpdate{Needed: true, Quantity: seats, ProrationBehavior: behavior}
}

// SyncTeam reconciles the seat count for the organization a team bills
// under. Teams without an organization or without a paid subscription
// are skipped.
func (s *SeatSyncer) SyncTeam(ctx context.Context, teamID string) error {
	org, err := s.Store.OrganizationForTeam(ctx, teamID)
	if errors.Is(err, store.ErrOrganizationNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve organization: %w", err)
	}
	if org.PlanTier != types.PlanTeam || org.StripeSubscriptionID == "" {
		return nil
	}

	seats, err := s.Store.OrgSeatCount(ctx, org.ID)
	if err != nil {
		return fmt.Errorf("count seats: %w", err)
	}

	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	sub, err := s.Subscriptions.Get(org.StripeSubscriptionID, getParams)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", org.StripeSubscriptionID, err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return fmt.Errorf("subscription %s has no items", org.StripeSubscriptionID)
	}

	item := sub.Items.Data[0]
	plan := PlanSeatUpdate(int(item.Quantity), seats)
	if !plan.Needed {
		return nil
	}

	updateParams := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{{
			ID:       stripe.String(item.ID),
			Quantity: stripe.Int64(int64(plan.Quantity)),
		}},
		ProrationBehavior: stripe.String(plan.ProrationBehavior),
	}
	updateParams.Context = ctx
	if _, err := s.Subscriptions.Update(org.StripeSubscriptionID, updateParams); err != nil {
		return fmt.Errorf("update subscription %s: %w", org.StripeSubscriptionID, err)
	}

	if err := s.Store.UpdateSeatCount(ctx, org.ID, plan.Quantity); err != nil {
		log.Printf("Billing: seat count pushed to Stripe but local update failed for org %s: %v", org.ID, err)
	}
	log.Printf("Billing: org %s seats %d -> %d (%s)", org.ID, item.Quantity, plan.Quantity, plan.ProrationBehavior)
	return nil
}
