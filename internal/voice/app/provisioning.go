package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

// NumberSpec carries the user-supplied shape of a number on acquire/update.
type NumberSpec struct {
	Title            string
	Number           string
	Extensions       []domain.Extension
	RecordCalls      bool
	GreetingMode     domain.GreetingMode
	GreetingAudioURL string
	GreetingText     string
	// PriceRef, when set on acquire, asks the gate to grow paid quota first.
	PriceRef         string
	PaymentMethodRef string
}

// ProvisioningConfig is the policy surface of the provisioning service.
type ProvisioningConfig struct {
	// LifetimeNumberCeiling caps numbers ever created per account, released
	// included, regardless of paid quota.
	LifetimeNumberCeiling int
	// PublicBaseURL is the externally reachable root for webhook callbacks.
	PublicBaseURL string
	// NumberPriceID is the recurring price backing one paid number unit.
	NumberPriceID string
}

// ProvisioningService validates, purchases, updates, and releases voice
// numbers, consulting the quota gate for paid units.
//
// Quota checks are intentionally unserialized across requests: two concurrent
// acquires can both pass before either persists. Numbers are a low-volume,
// revocable resource; the small overshoot is accepted.
type ProvisioningService struct {
	numbers   domain.PhoneNumberRepository
	accounts  domain.AccountRepository
	telephony domain.TelephonyPort
	gate      *QuotaGate
	cfg       ProvisioningConfig
	logger    *slog.Logger
}

func NewProvisioningService(
	numbers domain.PhoneNumberRepository,
	accounts domain.AccountRepository,
	telephony domain.TelephonyPort,
	gate *QuotaGate,
	cfg ProvisioningConfig,
	logger *slog.Logger,
) *ProvisioningService {
	return &ProvisioningService{
		numbers:   numbers,
		accounts:  accounts,
		telephony: telephony,
		gate:      gate,
		cfg:       cfg,
		logger:    logger.With("component", "provisioning"),
	}
}

func validateSpec(spec NumberSpec, requireNumber bool) error {
	if spec.Title == "" {
		return fmt.Errorf("%w: title must not be empty", domain.ErrValidation)
	}
	if len(spec.Extensions) < domain.MinExtensions || len(spec.Extensions) > domain.MaxExtensions {
		return fmt.Errorf("%w: between %d and %d extensions required", domain.ErrValidation, domain.MinExtensions, domain.MaxExtensions)
	}
	for i, ext := range spec.Extensions {
		if !domain.ValidE164(ext.ForwardTo) {
			return fmt.Errorf("%w: extension %d forwarding number is not E.164", domain.ErrValidation, i+1)
		}
	}
	if requireNumber && !domain.ValidE164(spec.Number) {
		return fmt.Errorf("%w: requested number is not E.164", domain.ErrValidation)
	}
	switch spec.GreetingMode {
	case domain.GreetingModeAudio:
		if spec.GreetingAudioURL == "" {
			return fmt.Errorf("%w: audio greeting requires an audio URL", domain.ErrValidation)
		}
	case domain.GreetingModeText, "":
		// text greeting may be empty; the router synthesizes a default
	default:
		return fmt.Errorf("%w: unknown greeting mode %q", domain.ErrValidation, spec.GreetingMode)
	}
	return nil
}

// Acquire validates the spec, enforces quota and the lifetime ceiling,
// purchases the number, persists it, and configures provider webhooks.
// Webhook configuration is best effort: a failure there leaves the record in
// status provisioning_incomplete rather than rolling back the purchase.
func (s *ProvisioningService) Acquire(ctx context.Context, accountID uuid.UUID, spec NumberSpec) (*domain.PhoneNumber, error) {
	if err := validateSpec(spec, true); err != nil {
		return nil, err
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	available, err := s.telephony.IsAvailable(ctx, spec.Number)
	if err != nil {
		s.logger.ErrorContext(ctx, "availability check failed", "error", err, "number", spec.Number)
		return nil, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}
	if !available {
		return nil, fmt.Errorf("%w: number %s is no longer available", domain.ErrValidation, spec.Number)
	}

	lifetime, err := s.numbers.CountLifetimeByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if lifetime >= s.cfg.LifetimeNumberCeiling {
		return nil, domain.ErrLifetimeCeiling
	}

	if spec.PriceRef != "" {
		if err := s.gate.GrantUnit(ctx, acct, spec.PriceRef, spec.PaymentMethodRef); err != nil {
			return nil, err
		}
	}

	active, err := s.numbers.CountActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if active >= acct.NumberQuota() {
		return nil, domain.ErrQuotaExceeded
	}

	sid, friendlyName, err := s.telephony.PurchaseNumber(ctx, spec.Number)
	if err != nil {
		s.logger.ErrorContext(ctx, "number purchase failed", "error", err, "number", spec.Number)
		return nil, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}

	now := time.Now().UTC()
	n := &domain.PhoneNumber{
		ID:               uuid.New(),
		AccountID:        accountID,
		ProviderSID:      sid,
		Title:            spec.Title,
		Number:           spec.Number,
		FriendlyName:     friendlyName,
		Extensions:       spec.Extensions,
		RecordCalls:      spec.RecordCalls,
		GreetingMode:     spec.GreetingMode,
		GreetingAudioURL: spec.GreetingAudioURL,
		GreetingText:     spec.GreetingText,
		Status:           domain.NumberStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if n.GreetingMode == "" {
		n.GreetingMode = domain.GreetingModeText
	}
	if err := s.numbers.Create(ctx, n); err != nil {
		return nil, err
	}

	voiceURL := s.cfg.PublicBaseURL + "/webhooks/voice"
	statusURL := s.cfg.PublicBaseURL + "/webhooks/voice/status"
	if err := s.telephony.ConfigureWebhooks(ctx, sid, voiceURL, statusURL); err != nil {
		s.logger.WarnContext(ctx, "webhook configuration failed, number left provisioning_incomplete",
			"error", err, "phone_number_id", n.ID, "provider_sid", sid)
		n.Status = domain.NumberStatusProvisioningIncomplete
		n.UpdatedAt = time.Now().UTC()
		if uerr := s.numbers.Update(ctx, n); uerr != nil {
			s.logger.ErrorContext(ctx, "failed to persist provisioning_incomplete status", "error", uerr, "phone_number_id", n.ID)
		}
	}

	s.logger.InfoContext(ctx, "number acquired",
		"phone_number_id", n.ID, "account_id", accountID, "number", n.Number, "status", n.Status)
	return n, nil
}

// Update replaces title, extensions, record flag, and greeting atomically.
// The provider-side number resource is never touched.
func (s *ProvisioningService) Update(ctx context.Context, accountID, id uuid.UUID, spec NumberSpec) (*domain.PhoneNumber, error) {
	if err := validateSpec(spec, false); err != nil {
		return nil, err
	}

	n, err := s.numbers.GetByID(ctx, id, accountID)
	if err != nil {
		return nil, err
	}
	if n.Released() {
		return nil, domain.ErrNotFound
	}

	n.Title = spec.Title
	n.Extensions = spec.Extensions
	n.RecordCalls = spec.RecordCalls
	n.GreetingMode = spec.GreetingMode
	if n.GreetingMode == "" {
		n.GreetingMode = domain.GreetingModeText
	}
	n.GreetingAudioURL = spec.GreetingAudioURL
	n.GreetingText = spec.GreetingText
	n.UpdatedAt = time.Now().UTC()

	if err := s.numbers.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Release retires a number: the provider resource is deregistered, released_at
// is set (never unset again), and a paid subscription attributable to numbers
// gives back one unit.
func (s *ProvisioningService) Release(ctx context.Context, accountID, id uuid.UUID) error {
	n, err := s.numbers.GetByID(ctx, id, accountID)
	if err != nil {
		return err
	}
	if n.Released() {
		return domain.ErrNotFound
	}

	if err := s.telephony.ReleaseNumber(ctx, n.ProviderSID); err != nil {
		s.logger.ErrorContext(ctx, "provider release failed", "error", err, "phone_number_id", n.ID)
		return fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}

	now := time.Now().UTC()
	n.ReleasedAt = &now
	n.UpdatedAt = now
	if err := s.numbers.Update(ctx, n); err != nil {
		return err
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.SubscriptionID != nil {
		if err := s.gate.ReleaseUnit(ctx, acct, s.cfg.NumberPriceID); err != nil {
			s.logger.ErrorContext(ctx, "paid unit release failed", "error", err, "account_id", accountID)
			return err
		}
	}

	s.logger.InfoContext(ctx, "number released", "phone_number_id", n.ID, "account_id", accountID)
	return nil
}

// Get returns one of the account's numbers, released or not.
func (s *ProvisioningService) Get(ctx context.Context, accountID, id uuid.UUID) (*domain.PhoneNumber, error) {
	return s.numbers.GetByID(ctx, id, accountID)
}

// List returns the account's active numbers, oldest first.
func (s *ProvisioningService) List(ctx context.Context, accountID uuid.UUID) ([]*domain.PhoneNumber, error) {
	return s.numbers.ListActiveByAccount(ctx, accountID)
}

// SearchAvailable proxies the provider's purchasable-number search.
func (s *ProvisioningService) SearchAvailable(ctx context.Context, areaCode string) ([]domain.AvailableNumber, error) {
	candidates, err := s.telephony.SearchAvailable(ctx, areaCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}
	return candidates, nil
}
