package types

// PlanTier values.
type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanTeam PlanTier = "team"
)

// FreeTierSeats is the seat count an organization falls back to when its
// subscription is deleted.
const FreeTierSeats = 2

// Organization is the relational billing anchor for a set of teams.
type Organization struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name,omitempty"`
	StripeCustomerID     string   `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string   `json:"stripe_subscription_id,omitempty"`
	SubscriptionStatus   string   `json:"subscription_status,omitempty"`
	PlanTier             PlanTier `json:"plan_tier"`
	SeatCount            int      `json:"seat_count"`
	PaymentStatus        string   `json:"payment_status,omitempty"`
	PaymentAttemptCount  int      `json:"payment_attempt_count"`
	LastPaymentAt        string   `json:"last_payment_at,omitempty"`
	PaymentFailedAt      string   `json:"payment_failed_at,omitempty"`
	CreatedAt            string   `json:"created_at,omitempty"`
	UpdatedAt            string   `json:"updated_at,omitempty"`
}

// BillingEvent is one row of the webhook audit log. StripeEventID is
// unique so provider retries collapse into a single row.
type BillingEvent struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id,omitempty"`
	StripeEventID  string `json:"stripe_event_id"`
	EventType      string `json:"event_type"`
	Payload        string `json:"payload,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}
