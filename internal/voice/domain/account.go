package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is the billing/quota view of a platform user. The wider user entity
// (profile, auth) is owned elsewhere; the quota gate and the reconciliation
// sweep own the lifecycle of the subscription fields below.
type Account struct {
	ID                    uuid.UUID  `json:"id"`
	Email                 string     `json:"email"`
	Roles                 []string   `json:"roles"`
	FreeNumberQuota       int        `json:"free_number_quota"`
	PaidNumberQuota       int        `json:"paid_number_quota"`
	BillingCustomerID     string     `json:"billing_customer_id,omitempty"`
	SubscriptionID        *string    `json:"subscription_id,omitempty"`
	SubscriptionInvalidAt *time.Time `json:"subscription_invalid_at,omitempty"`
	SubscriptionWarnedAt  *time.Time `json:"subscription_warned_at,omitempty"`
	StorageBytesUsed      int64      `json:"storage_bytes_used"`
}

// NumberQuota is the total number of active voice numbers the account may hold.
func (a *Account) NumberQuota() int {
	return a.FreeNumberQuota + a.PaidNumberQuota
}

// HasAnyRole reports whether the account's role set intersects allowed.
func (a *Account) HasAnyRole(allowed []string) bool {
	for _, r := range a.Roles {
		for _, want := range allowed {
			if r == want {
				return true
			}
		}
	}
	return false
}
