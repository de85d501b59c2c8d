package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ginko-backend/types"
)

const orgColumns = `id::text, COALESCE(name, ''), COALESCE(stripe_customer_id, ''),
	COALESCE(stripe_subscription_id, ''), COALESCE(subscription_status, ''),
	plan_tier, seat_count, COALESCE(payment_status, ''), payment_attempt_count,
	last_payment_at, payment_failed_at, created_at, updated_at`

func (s *Store) scanOrganization(ctx context.Context, query string, args ...any) (types.Organization, error) {
	var org types.Organization
	var planTier string
	var lastPaymentAt, paymentFailedAt *time.Time
	var createdAt, updatedAt time.Time
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&org.ID, &org.Name, &org.StripeCustomerID, &org.StripeSubscriptionID,
		&org.SubscriptionStatus, &planTier, &org.SeatCount, &org.PaymentStatus,
		&org.PaymentAttemptCount, &lastPaymentAt, &paymentFailedAt, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Organization{}, ErrOrganizationNotFound
	}
	if err != nil {
		return types.Organization{}, fmt.Errorf("query organization: %w", err)
	}
	org.PlanTier = types.PlanTier(planTier)
	org.LastPaymentAt = fmtTime(lastPaymentAt)
	org.PaymentFailedAt = fmtTime(paymentFailedAt)
	org.CreatedAt = fmtTime(&createdAt)
	org.UpdatedAt = fmtTime(&updatedAt)
	return org, nil
}

// OrganizationByStripeCustomer maps a Stripe customer id back to the
// organization it belongs to.
func (s *Store) OrganizationByStripeCustomer(ctx context.Context, customerID string) (types.Organization, error) {
	return s.scanOrganization(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE stripe_customer_id = $1`, customerID)
}

// OrganizationForTeam resolves the org a team bills under, or
// ErrOrganizationNotFound when the team has none linked.
func (s *Store) OrganizationForTeam(ctx context.Context, teamID string) (types.Organization, error) {
	return s.scanOrganization(ctx, `
		SELECT `+orgColumns+` FROM organizations o
		JOIN teams t ON t.organization_id = o.id
		WHERE t.id = $1`, teamID)
}

// LinkCheckout records the Stripe identifiers minted by a completed
// checkout session and moves the organization to the team plan.
func (s *Store) LinkCheckout(ctx context.Context, orgID, customerID, subscriptionID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE organizations
		SET stripe_customer_id = $2, stripe_subscription_id = $3,
			plan_tier = $4, subscription_status = 'active', updated_at = now()
		WHERE id = $1`, orgID, customerID, subscriptionID, string(types.PlanTeam))
	if err != nil {
		return fmt.Errorf("link checkout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// ApplySubscriptionUpdate mirrors the provider's view of the
// subscription onto the organization row. A past_due or canceled
// subscription also shadows the payment status.
func (s *Store) ApplySubscriptionUpdate(ctx context.Context, orgID, subscriptionID, status string, seats int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE organizations
		SET stripe_subscription_id = $2, subscription_status = $3, seat_count = $4,
			payment_status = CASE WHEN $3 IN ('past_due', 'canceled') THEN $3 ELSE payment_status END,
			updated_at = now()
		WHERE id = $1`, orgID, subscriptionID, status, seats)
	if err != nil {
		return fmt.Errorf("apply subscription update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// DowngradeToFree returns the organization to the free tier after its
// subscription is deleted. Memberships stay intact; only the plan and
// the seat ceiling shrink.
func (s *Store) DowngradeToFree(ctx context.Context, orgID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE organizations
		SET plan_tier = $2, seat_count = $3, stripe_subscription_id = NULL,
			subscription_status = 'canceled', updated_at = now()
		WHERE id = $1`, orgID, string(types.PlanFree), types.FreeTierSeats)
	if err != nil {
		return fmt.Errorf("downgrade organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// RecordPaymentFailure bumps the failed-attempt counter and flags the
// organization past due.
func (s *Store) RecordPaymentFailure(ctx context.Context, orgID string, failedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE organizations
		SET payment_status = 'past_due', payment_attempt_count = payment_attempt_count + 1,
			payment_failed_at = $2, updated_at = now()
		WHERE id = $1`, orgID, failedAt.UTC())
	if err != nil {
		return fmt.Errorf("record payment failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// RecordPaymentSuccess clears any failure state and stamps the payment.
func (s *Store) RecordPaymentSuccess(ctx context.Context, orgID string, paidAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE organizations
		SET payment_status = 'active', payment_attempt_count = 0,
			payment_failed_at = NULL, last_payment_at = $2, updated_at = now()
		WHERE id = $1`, orgID, paidAt.UTC())
	if err != nil {
		return fmt.Errorf("record payment success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// OrgSeatCount counts distinct members across every team billed under
// the organization. A user on two teams occupies one seat.
func (s *Store) OrgSeatCount(ctx context.Context, orgID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT tm.user_id)
		FROM team_members tm
		JOIN teams t ON t.id = tm.team_id
		WHERE t.organization_id = $1`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count org seats: %w", err)
	}
	return n, nil
}

// UpdateSeatCount stores the seat count pushed to the provider.
func (s *Store) UpdateSeatCount(ctx context.Context, orgID string, seats int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE organizations SET seat_count = $2, updated_at = now() WHERE id = $1`,
		orgID, seats)
	if err != nil {
		return fmt.Errorf("update seat count: %w", err)
	}
	return nil
}
