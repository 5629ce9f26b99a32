package domain

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// AvailableNumber is one purchasable candidate from the telephony provider.
type AvailableNumber struct {
	Number       string `json:"number"`
	FriendlyName string `json:"friendly_name"`
	Region       string `json:"region"`
}

// CallInfo is the provider's authoritative record of a call, re-fetched by
// SID so webhook payloads are never trusted on their own.
type CallInfo struct {
	SID           string
	Status        string
	From          string
	FromFormatted string
	To            string
	ToFormatted   string
	StartedAt     time.Time
	EndedAt       time.Time
}

// TelephonyPort abstracts the telephony provider. All calls are synchronous
// with no built-in retry; the provider's own webhook redelivery covers
// transient failures on the event paths.
type TelephonyPort interface {
	SearchAvailable(ctx context.Context, areaCode string) ([]AvailableNumber, error)
	// IsAvailable re-verifies a number is still purchasable, defending
	// against stale client-side search results.
	IsAvailable(ctx context.Context, number string) (bool, error)
	// PurchaseNumber buys the number and returns the provider-assigned SID
	// and human-formatted display string.
	PurchaseNumber(ctx context.Context, number string) (sid, friendlyName string, err error)
	// ConfigureWebhooks points the purchased number's voice and call-status
	// callbacks at this platform.
	ConfigureWebhooks(ctx context.Context, sid, voiceURL, statusURL string) error
	ReleaseNumber(ctx context.Context, sid string) error
	GetCall(ctx context.Context, callSID string) (*CallInfo, error)
	// OpenRecording opens an authenticated streaming read of a recording.
	// The caller owns closing the stream.
	OpenRecording(ctx context.Context, recordingURL string) (io.ReadCloser, error)
}

// Price is a billing product price.
type Price struct {
	ID        string
	Recurring bool
}

// SubscriptionItem is one line item on a subscription.
type SubscriptionItem struct {
	ID       string
	PriceID  string
	Quantity int
}

// Subscription is the provider's view of a customer subscription.
type Subscription struct {
	ID     string
	Status string // "active", "past_due", "canceled", ...
	Items  []SubscriptionItem
}

const SubscriptionStatusActive = "active"

// ItemForPrice returns the line item carrying priceID, or nil.
func (s *Subscription) ItemForPrice(priceID string) *SubscriptionItem {
	for i := range s.Items {
		if s.Items[i].PriceID == priceID {
			return &s.Items[i]
		}
	}
	return nil
}

// BillingPort abstracts the billing provider.
type BillingPort interface {
	GetPrice(ctx context.Context, priceRef string) (*Price, error)
	// EnsureCustomer resolves or creates the billing customer for the
	// account and returns its id.
	EnsureCustomer(ctx context.Context, a *Account) (customerID string, err error)
	// ResolvePaymentMethod tries, in order: the explicit id, the customer's
	// default invoice method, the default funding source, the most recently
	// attached card. Returns ErrNoPaymentMethod when none resolves.
	ResolvePaymentMethod(ctx context.Context, customerID, explicitID string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (*Subscription, error)
	// AddSubscriptionItem adds a quantity-1 line item for priceID to an
	// existing subscription with invoice-now proration.
	AddSubscriptionItem(ctx context.Context, subscriptionID, priceID string) (*Subscription, error)
	// SetItemQuantity updates a line item's quantity. prorate selects
	// invoice-now proration versus none.
	SetItemQuantity(ctx context.Context, subscriptionID, itemID string, quantity int, prorate bool) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	// ChargeOnce creates and immediately confirms a one-time payment,
	// returning the provider's payment status (e.g. "succeeded").
	ChargeOnce(ctx context.Context, customerID, priceID, paymentMethodID string) (status string, err error)
	// SubscriptionStatus reports the live status of a subscription. Callers
	// treat lookup failure as inactive.
	SubscriptionStatus(ctx context.Context, subscriptionID string) (string, error)
}

// StoragePort is the contract with the collaborator storage subsystem:
// create a file from a live byte stream and report its final size. Storage
// internals stay on the other side of this interface.
type StoragePort interface {
	// EnsureFolder lazily finds or creates a named folder for the account.
	EnsureFolder(ctx context.Context, accountID uuid.UUID, name string) (folderID uuid.UUID, err error)
	// CreateFile registers a file record with provisional size zero.
	CreateFile(ctx context.Context, accountID, folderID uuid.UUID, name string) (fileID uuid.UUID, err error)
	// Upload pipes r into the object store without full buffering.
	Upload(ctx context.Context, fileID uuid.UUID, r io.Reader) error
	// Stat returns the final stored object size.
	Stat(ctx context.Context, fileID uuid.UUID) (int64, error)
	// PatchSize records the final size on the file record.
	PatchSize(ctx context.Context, fileID uuid.UUID, size int64) error
}

// Notifier delivers grace-period notices to account owners.
type Notifier interface {
	// SubscriptionWarning tells the owner they will lose access soon.
	SubscriptionWarning(ctx context.Context, a *Account) error
	// SubscriptionTerminated tells the owner paid resources were reclaimed.
	SubscriptionTerminated(ctx context.Context, a *Account) error
}
