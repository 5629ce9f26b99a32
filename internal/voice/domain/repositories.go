package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PhoneNumberRepository persists purchased voice numbers. "Active" always
// means released_at IS NULL.
type PhoneNumberRepository interface {
	Create(ctx context.Context, n *PhoneNumber) error
	Update(ctx context.Context, n *PhoneNumber) error
	// GetByID returns the number owned by accountID, released or not.
	// Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id, accountID uuid.UUID) (*PhoneNumber, error)
	// FindActiveByNumber returns the non-released number matching the E.164
	// string. Returns ErrNotFound if absent.
	FindActiveByNumber(ctx context.Context, number string) (*PhoneNumber, error)
	// FindActiveByNumberWithOwner is FindActiveByNumber joined with the
	// owning account, in a single query. The IVR router answers live call
	// webhooks with exactly this one read.
	FindActiveByNumberWithOwner(ctx context.Context, number string) (*PhoneNumber, *Account, error)
	// ListActiveByAccount returns the account's non-released numbers ordered
	// by creation time ascending.
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*PhoneNumber, error)
	CountActiveByAccount(ctx context.Context, accountID uuid.UUID) (int, error)
	// CountLifetimeByAccount counts all numbers ever created for the account,
	// released included.
	CountLifetimeByAccount(ctx context.Context, accountID uuid.UUID) (int, error)
	// ListStale returns up to limit non-released numbers with a non-null
	// owner whose checked_at is null or older than cutoff, stalest first.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*PhoneNumber, error)
	// MarkChecked stamps checked_at on every active number of the account.
	MarkChecked(ctx context.Context, accountID uuid.UUID, at time.Time) error
}

// PhoneCallRepository persists completed calls.
type PhoneCallRepository interface {
	Create(ctx context.Context, c *PhoneCall) error
	// GetByProviderSID returns the call for a provider call identifier.
	// Returns ErrNotFound if absent.
	GetByProviderSID(ctx context.Context, sid string) (*PhoneCall, error)
	ListByPhoneNumber(ctx context.Context, phoneNumberID uuid.UUID, limit int) ([]*PhoneCall, error)
	SetRecordingFile(ctx context.Context, callID, fileID uuid.UUID) error
}

// AccountRepository reads and writes the billing/quota fields of accounts.
type AccountRepository interface {
	// GetByID returns ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// UpdateBilling persists quota counters, the billing customer and
	// subscription references, and both grace-period checkpoints.
	UpdateBilling(ctx context.Context, a *Account) error
	// AddStorageUsage bumps the aggregate storage counter. Non-transactional
	// increment; eventual consistency accepted.
	AddStorageUsage(ctx context.Context, id uuid.UUID, delta int64) error
}
