package store

import (
	"context"
	"fmt"

	"ginko-backend/types"
)

// InsertBillingEvent appends one row to the webhook audit log. The
// unique stripe_event_id makes provider retries collapse: a duplicate
// returns (false, nil) so the caller can acknowledge without reapplying
// side effects.
func (s *Store) InsertBillingEvent(ctx context.Context, ev types.BillingEvent) (bool, error) {
	var orgID any
	if ev.OrganizationID != "" {
		orgID = ev.OrganizationID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO billing_events (organization_id, stripe_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)`,
		orgID, ev.StripeEventID, ev.EventType, ev.Payload)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert billing event: %w", err)
	}
	return true, nil
}
