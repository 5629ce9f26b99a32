package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

// SweepConfig is the policy surface of the reconciliation sweep.
type SweepConfig struct {
	BatchSize int
	// FreshnessWindow is how long a checked_at stamp stays fresh.
	FreshnessWindow time.Duration
	// WarnAfter is the grace period between marking a subscription invalid
	// and sending the losing-access warning.
	WarnAfter time.Duration
	// ReclaimAfter is the period between the warning and final reclamation.
	ReclaimAfter time.Duration
	AllowedRoles []string
}

// DefaultSweepConfig matches the platform's standing grace-period policy.
func DefaultSweepConfig(batchSize int, allowedRoles []string) SweepConfig {
	return SweepConfig{
		BatchSize:       batchSize,
		FreshnessWindow: 72 * time.Hour,
		WarnAfter:       14 * 24 * time.Hour,
		ReclaimAfter:    7 * 24 * time.Hour,
		AllowedRoles:    allowedRoles,
	}
}

// ReconciliationService walks stale phone numbers and reconciles each owner's
// access against their billing status through the grace-period state machine.
// It is invoked externally on a schedule and never self-schedules. Owners are
// processed sequentially with per-owner failure isolation, and every
// processed owner's active numbers get a fresh checked_at regardless of
// branch so re-evaluation is guaranteed.
//
// Escalation steps fire on elapsed >= threshold, with the checkpoint
// timestamps doubling as one-shot flags: a set subscription_warned_at blocks
// re-warning, and the final step clears both checkpoints. A sweep delayed
// past a boundary still escalates on its next run.
type ReconciliationService struct {
	numbers   domain.PhoneNumberRepository
	accounts  domain.AccountRepository
	telephony domain.TelephonyPort
	billing   domain.BillingPort
	notifier  domain.Notifier
	cfg       SweepConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewReconciliationService(
	numbers domain.PhoneNumberRepository,
	accounts domain.AccountRepository,
	telephony domain.TelephonyPort,
	billing domain.BillingPort,
	notifier domain.Notifier,
	cfg SweepConfig,
	logger *slog.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		numbers:   numbers,
		accounts:  accounts,
		telephony: telephony,
		billing:   billing,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With("component", "reconciliation"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one sweep invocation and reports how many owners it processed.
// A failure against one owner is logged and does not halt the batch.
func (s *ReconciliationService) Run(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(sweepDurationHist)
	defer timer.ObserveDuration()

	cutoff := s.now().Add(-s.cfg.FreshnessWindow)
	stale, err := s.numbers.ListStale(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		s.logger.InfoContext(ctx, "no stale numbers to reconcile")
		return 0, nil
	}

	// Group by owner preserving staleness order; each owner loads once.
	order := make([]uuid.UUID, 0, len(stale))
	seen := make(map[uuid.UUID]bool, len(stale))
	for _, n := range stale {
		if !seen[n.AccountID] {
			seen[n.AccountID] = true
			order = append(order, n.AccountID)
		}
	}

	processed := 0
	for _, accountID := range order {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := s.reconcileOwner(ctx, accountID); err != nil {
			sweepOwnersCounter.WithLabelValues("error").Inc()
			s.logger.ErrorContext(ctx, "owner reconciliation failed", "account_id", accountID, "error", err)
			continue
		}
		processed++
	}

	s.logger.InfoContext(ctx, "sweep complete", "owners_processed", processed, "stale_numbers", len(stale))
	return processed, nil
}

func (s *ReconciliationService) reconcileOwner(ctx context.Context, accountID uuid.UUID) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if s.ownerValid(ctx, acct) {
		if acct.SubscriptionInvalidAt != nil || acct.SubscriptionWarnedAt != nil {
			acct.SubscriptionInvalidAt = nil
			acct.SubscriptionWarnedAt = nil
			if err := s.accounts.UpdateBilling(ctx, acct); err != nil {
				return err
			}
		}
		sweepOwnersCounter.WithLabelValues("valid").Inc()
		return s.numbers.MarkChecked(ctx, accountID, s.now())
	}

	active, err := s.numbers.ListActiveByAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if len(active) <= acct.FreeNumberQuota {
		// Nothing beyond the free tier is at risk; leave checkpoints alone.
		sweepOwnersCounter.WithLabelValues("skipped").Inc()
		return s.numbers.MarkChecked(ctx, accountID, s.now())
	}

	now := s.now()
	switch {
	case acct.SubscriptionInvalidAt == nil:
		acct.SubscriptionInvalidAt = &now
		if err := s.accounts.UpdateBilling(ctx, acct); err != nil {
			return err
		}
		sweepOwnersCounter.WithLabelValues("marked_invalid").Inc()
		s.logger.InfoContext(ctx, "owner marked invalid, grace period started", "account_id", accountID)

	case acct.SubscriptionWarnedAt == nil && now.Sub(*acct.SubscriptionInvalidAt) >= s.cfg.WarnAfter:
		if err := s.notifier.SubscriptionWarning(ctx, acct); err != nil {
			s.logger.WarnContext(ctx, "failed to send losing-access warning", "account_id", accountID, "error", err)
		}
		acct.SubscriptionWarnedAt = &now
		if err := s.accounts.UpdateBilling(ctx, acct); err != nil {
			return err
		}
		sweepOwnersCounter.WithLabelValues("warned").Inc()
		s.logger.InfoContext(ctx, "owner warned of upcoming reclamation", "account_id", accountID)

	case acct.SubscriptionWarnedAt != nil && now.Sub(*acct.SubscriptionWarnedAt) >= s.cfg.ReclaimAfter:
		if err := s.reclaim(ctx, acct, active, now); err != nil {
			return err
		}
		sweepOwnersCounter.WithLabelValues("reclaimed").Inc()

	default:
		sweepOwnersCounter.WithLabelValues("skipped").Inc()
	}

	return s.numbers.MarkChecked(ctx, accountID, s.now())
}

// ownerValid classifies the owner. Invalid means: role set outside the
// operating allowlist, or a subscription reference whose live status is not
// active. A billing lookup failure counts as inactive.
func (s *ReconciliationService) ownerValid(ctx context.Context, acct *domain.Account) bool {
	if !acct.HasAnyRole(s.cfg.AllowedRoles) {
		return false
	}
	if acct.SubscriptionID == nil {
		return true
	}
	status, err := s.billing.SubscriptionStatus(ctx, *acct.SubscriptionID)
	if err != nil {
		s.logger.WarnContext(ctx, "subscription status lookup failed, treating as inactive",
			"account_id", acct.ID, "subscription_id", *acct.SubscriptionID, "error", err)
		return false
	}
	return status == domain.SubscriptionStatusActive
}

// reclaim is the final escalation step: notify, cancel the subscription,
// clear billing state, and release every active number beyond the free-quota
// cutoff. Numbers are kept by creation order: the oldest FreeNumberQuota
// survive, the rest are released and deregistered.
func (s *ReconciliationService) reclaim(ctx context.Context, acct *domain.Account, active []*domain.PhoneNumber, now time.Time) error {
	if err := s.notifier.SubscriptionTerminated(ctx, acct); err != nil {
		s.logger.WarnContext(ctx, "failed to send termination notice", "account_id", acct.ID, "error", err)
	}

	if acct.SubscriptionID != nil {
		if err := s.billing.CancelSubscription(ctx, *acct.SubscriptionID); err != nil {
			s.logger.WarnContext(ctx, "failed to cancel subscription during reclamation",
				"account_id", acct.ID, "subscription_id", *acct.SubscriptionID, "error", err)
		}
	}
	acct.SubscriptionID = nil
	acct.PaidNumberQuota = 0
	acct.SubscriptionInvalidAt = nil
	acct.SubscriptionWarnedAt = nil
	if err := s.accounts.UpdateBilling(ctx, acct); err != nil {
		return err
	}

	// active arrives ordered by creation time ascending.
	for i, n := range active {
		if i < acct.FreeNumberQuota {
			continue
		}
		if err := s.telephony.ReleaseNumber(ctx, n.ProviderSID); err != nil {
			s.logger.WarnContext(ctx, "provider deregistration failed during reclamation",
				"phone_number_id", n.ID, "error", err)
		}
		released := now
		n.ReleasedAt = &released
		n.UpdatedAt = now
		if err := s.numbers.Update(ctx, n); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist number release during reclamation",
				"phone_number_id", n.ID, "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "number reclaimed", "phone_number_id", n.ID, "account_id", acct.ID)
	}
	return nil
}
