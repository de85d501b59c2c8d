package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v76"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ginko-backend/store"
	"ginko-backend/types"
)

type fakeSeatStore struct {
	org     types.Organization
	orgErr  error
	seats   int
	seatErr error

	localWrites []int
	localErr    error
}

func (f *fakeSeatStore) OrganizationForTeam(context.Context, string) (types.Organization, error) {
	if f.orgErr != nil {
		return types.Organization{}, f.orgErr
	}
	return f.org, nil
}

func (f *fakeSeatStore) OrgSeatCount(context.Context, string) (int, error) {
	return f.seats, f.seatErr
}

func (f *fakeSeatStore) UpdateSeatCount(_ context.Context, _ string, seats int) error {
	f.localWrites = append(f.localWrites, seats)
	return f.localErr
}

type fakeSubscriptionAPI struct {
	sub       *stripe.Subscription
	getErr    error
	updates   []*stripe.SubscriptionParams
	updateErr error
}

func (f *fakeSubscriptionAPI) Get(string, *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.sub, nil
}

func (f *fakeSubscriptionAPI) Update(_ string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	f.updates = append(f.updates, params)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.sub, nil
}

func subscriptionWithItem(itemID string, quantity int64) *stripe.Subscription {
	return &stripe.Subscription{
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{ID: itemID, Quantity: quantity}},
		},
	}
}

func paidOrg() types.Organization {
	return types.Organization{
		ID:                   "org-1",
		PlanTier:             types.PlanTeam,
		StripeSubscriptionID: "sub_123",
	}
}

func TestPlanSeatUpdate(t *testing.T) {
	tests := []struct {
		name            string
		currentQuantity int
		seats           int
		expected        SeatUpdate
	}{
		{
			name:            "no change",
			currentQuantity: 3,
			seats:           3,
			expected:        SeatUpdate{},
		},
		{
			name:            "seat added bills immediately",
			currentQuantity: 3,
			seats:           5,
			expected:        SeatUpdate{Needed: true, Quantity: 5, ProrationBehavior: "create_prorations"},
		},
		{
			name:            "seat removed settles at period end",
			currentQuantity: 5,
			seats:           3,
			expected:        SeatUpdate{Needed: true, Quantity: 3, ProrationBehavior: "none"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PlanSeatUpdate(tt.currentQuantity, tt.seats))
		})
	}
}

func TestSyncTeam_PushesSeatIncrease(t *testing.T) {
	st := &fakeSeatStore{org: paidOrg(), seats: 5}
	api := &fakeSubscriptionAPI{sub: subscriptionWithItem("si_1", 3)}
	s := &SeatSyncer{Store: st, Subscriptions: api}

	err := s.SyncTeam(context.Background(), "team-1")

	require.NoError(t, err)
	require.Len(t, api.updates, 1, "an increased membership count must reach Stripe")
	params := api.updates[0]
	require.Len(t, params.Items, 1)
	assert.Equal(t, "si_1", stripe.StringValue(params.Items[0].ID), "update must target the subscription's priced item")
	assert.Equal(t, int64(5), stripe.Int64Value(params.Items[0].Quantity))
	assert.Equal(t, "create_prorations", stripe.StringValue(params.ProrationBehavior), "additions bill immediately")
	assert.Equal(t, []int{5}, st.localWrites, "the local seat count mirrors what was pushed")
}

func TestSyncTeam_SeatDecreaseSkipsProration(t *testing.T) {
	st := &fakeSeatStore{org: paidOrg(), seats: 2}
	api := &fakeSubscriptionAPI{sub: subscriptionWithItem("si_1", 5)}
	s := &SeatSyncer{Store: st, Subscriptions: api}

	err := s.SyncTeam(context.Background(), "team-1")

	require.NoError(t, err)
	require.Len(t, api.updates, 1)
	assert.Equal(t, int64(2), stripe.Int64Value(api.updates[0].Items[0].Quantity))
	assert.Equal(t, "none", stripe.StringValue(api.updates[0].ProrationBehavior), "removals keep the current period's charge")
}

func TestSyncTeam_NoChangeMakesNoCall(t *testing.T) {
	st := &fakeSeatStore{org: paidOrg(), seats: 3}
	api := &fakeSubscriptionAPI{sub: subscriptionWithItem("si_1", 3)}
	s := &SeatSyncer{Store: st, Subscriptions: api}

	err := s.SyncTeam(context.Background(), "team-1")

	require.NoError(t, err)
	assert.Empty(t, api.updates, "matching quantities must not touch Stripe")
	assert.Empty(t, st.localWrites)
}

func TestSyncTeam_SkipsTeamWithoutOrganization(t *testing.T) {
	st := &fakeSeatStore{orgErr: store.ErrOrganizationNotFound}
	api := &fakeSubscriptionAPI{}
	s := &SeatSyncer{Store: st, Subscriptions: api}

	err := s.SyncTeam(context.Background(), "team-1")

	require.NoError(t, err, "teams that do not bill anywhere are not an error")
	assert.Empty(t, api.updates)
}

func TestSyncTeam_SkipsUnpaidPlans(t *testing.T) {
	tests := []struct {
		name string
		org  types.Organization
	}{
		{
			name: "free tier",
			org:  types.Organization{ID: "org-1", PlanTier: types.PlanFree},
		},
		{
			name: "paid tier before checkout completes",
			org:  types.Organization{ID: "org-1", PlanTier: types.PlanTeam},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeSubscriptionAPI{}
			s := &SeatSyncer{Store: &fakeSeatStore{org: tt.org, seats: 9}, Subscriptions: api}

			err := s.SyncTeam(context.Background(), "team-1")

			require.NoError(t, err)
			assert.Empty(t, api.updates)
		})
	}
}

func TestSyncTeam_SubscriptionWithoutItems(t *testing.T) {
	st := &fakeSeatStore{org: paidOrg(), seats: 5}
	s := &SeatSyncer{Store: st, Subscriptions: &fakeSubscriptionAPI{sub: &stripe.Subscription{}}}

	err := s.SyncTeam(context.Background(), "team-1")

	assert.Error(t, err, "a paid subscription without a priced item is a billing misconfiguration")
}

func TestSyncTeam_ProviderFailureSurfaces(t *testing.T) {
	st := &fakeSeatStore{org: paidOrg(), seats: 5}
	api := &fakeSubscriptionAPI{sub: subscriptionWithItem("si_1", 3), updateErr: errors.New("stripe is down")}
	s := &SeatSyncer{Store: st, Subscriptions: api}

	err := s.SyncTeam(context.Background(), "team-1")

	require.Error(t, err)
	assert.Empty(t, st.localWrites, "the local count must not advance past Stripe")
}

func TestSyncTeam_LocalWriteFailureIsNotFatal(t *testing.T) {
	st := &fakeSeatStore{org: paidOrg(), seats: 5, localErr: errors.New("pg down")}
	api := &fakeSubscriptionAPI{sub: subscriptionWithItem("si_1", 3)}
	s := &SeatSyncer{Store: st, Subscriptions: api}

	err := s.SyncTeam(context.Background(), "team-1")

	require.NoError(t, err, "Stripe already has the new quantity, the sync succeeded")
	assert.Len(t, api.updates, 1)
}
