package models

import "time"

// Internal subscription statuses. External billing statuses are normalized to
// this closed set once, at the webhook intake boundary.
const (
	SubscriptionStatusActive   = "ACTIVE"
	SubscriptionStatusCanceled = "CANCELED"
	SubscriptionStatusPastDue  = "PAST_DUE"
	SubscriptionStatusUnpaid   = "UNPAID"
	SubscriptionStatusExpired  = "EXPIRED"
)

// Subscription records a user's enrollment in a plan for one plan period.
// Plan changes close the current row and open a new one, so historical rows
// stay queryable; the current row is the latest by start date.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uint       `gorm:"not null;index:idx_subscriptions_user_start,priority:1" json:"user_id"`
	PlanID               string     `gorm:"type:varchar(50);not null;default:'free';index" json:"plan_id"`
	Status               string     `gorm:"type:varchar(32);not null;default:'ACTIVE';index:idx_subscriptions_status_end,priority:1" json:"status"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);default:'';index" json:"stripe_subscription_id,omitempty"`
	StripeCustomerID     string     `gorm:"type:varchar(191);default:'';index" json:"stripe_customer_id,omitempty"`
	StripePriceID        string     `gorm:"type:varchar(191);default:''" json:"stripe_price_id,omitempty"`
	StartDate            time.Time  `gorm:"type:date;not null;index:idx_subscriptions_user_start,priority:2,sort:desc" json:"start_date"`
	EndDate              *time.Time `gorm:"type:date;default:null;index:idx_subscriptions_status_end,priority:2" json:"end_date,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsValidSubscriptionStatus reports whether status is one of the internal statuses.
func IsValidSubscriptionStatus(status string) bool {
	switch status {
	case SubscriptionStatusActive, SubscriptionStatusCanceled, SubscriptionStatusPastDue,
		SubscriptionStatusUnpaid, SubscriptionStatusExpired:
		return true
	default:
		return false
	}
}

// IsActive reports whether the subscription is in the ACTIVE status.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}
