package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

// QuotaGate decides whether an account may add one more paid voice number and
// performs the billing side effects. The local paid-quota counter is only
// incremented after the billing provider has confirmed an active subscription
// or a succeeded payment; a failed charge is never retried here because a
// re-attempt risks double billing.
type QuotaGate struct {
	accounts domain.AccountRepository
	billing  domain.BillingPort
	logger   *slog.Logger
}

func NewQuotaGate(accounts domain.AccountRepository, billing domain.BillingPort, logger *slog.Logger) *QuotaGate {
	return &QuotaGate{
		accounts: accounts,
		billing:  billing,
		logger:   logger.With("component", "quota_gate"),
	}
}

// GrantUnit grows the account's paid quota by one unit of the priced
// resource. Provider errors come back wrapped in domain.ErrPayment with the
// provider's message intact, so interactive callers can show it inline.
func (g *QuotaGate) GrantUnit(ctx context.Context, acct *domain.Account, priceRef, paymentMethodRef string) error {
	price, err := g.billing.GetPrice(ctx, priceRef)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to resolve price", "error", err, "price_ref", priceRef)
		return fmt.Errorf("%w: %v", domain.ErrPayment, err)
	}

	customerID, err := g.billing.EnsureCustomer(ctx, acct)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to resolve billing customer", "error", err, "account_id", acct.ID)
		return fmt.Errorf("%w: %v", domain.ErrPayment, err)
	}
	if acct.BillingCustomerID != customerID {
		acct.BillingCustomerID = customerID
		if err := g.accounts.UpdateBilling(ctx, acct); err != nil {
			return fmt.Errorf("persist billing customer: %w", err)
		}
	}

	paymentMethodID, err := g.billing.ResolvePaymentMethod(ctx, customerID, paymentMethodRef)
	if err != nil {
		g.logger.WarnContext(ctx, "no usable payment method", "error", err, "account_id", acct.ID)
		return err
	}

	if price.Recurring {
		sub, err := g.grantRecurring(ctx, acct, customerID, price.ID, paymentMethodID)
		if err != nil {
			return err
		}
		acct.SubscriptionID = &sub.ID
	} else {
		status, err := g.billing.ChargeOnce(ctx, customerID, price.ID, paymentMethodID)
		if err != nil {
			g.logger.ErrorContext(ctx, "one-time charge failed", "error", err, "account_id", acct.ID)
			return fmt.Errorf("%w: %v", domain.ErrPayment, err)
		}
		if status != "succeeded" {
			return fmt.Errorf("%w: payment status %q", domain.ErrPayment, status)
		}
	}

	acct.PaidNumberQuota++
	if err := g.accounts.UpdateBilling(ctx, acct); err != nil {
		return fmt.Errorf("persist paid quota: %w", err)
	}
	g.logger.InfoContext(ctx, "paid unit granted", "account_id", acct.ID, "paid_quota", acct.PaidNumberQuota)
	return nil
}

func (g *QuotaGate) grantRecurring(ctx context.Context, acct *domain.Account, customerID, priceID, paymentMethodID string) (*domain.Subscription, error) {
	var sub *domain.Subscription
	var err error

	if acct.SubscriptionID != nil {
		sub, err = g.billing.GetSubscription(ctx, *acct.SubscriptionID)
		if err != nil {
			g.logger.ErrorContext(ctx, "failed to load existing subscription", "error", err, "subscription_id", *acct.SubscriptionID)
			return nil, fmt.Errorf("%w: %v", domain.ErrPayment, err)
		}
	}

	switch {
	case sub == nil:
		sub, err = g.billing.CreateSubscription(ctx, customerID, priceID, paymentMethodID)
	case sub.ItemForPrice(priceID) != nil:
		item := sub.ItemForPrice(priceID)
		sub, err = g.billing.SetItemQuantity(ctx, sub.ID, item.ID, item.Quantity+1, true)
	default:
		sub, err = g.billing.AddSubscriptionItem(ctx, sub.ID, priceID)
	}
	if err != nil {
		g.logger.ErrorContext(ctx, "subscription update failed", "error", err, "account_id", acct.ID)
		return nil, fmt.Errorf("%w: %v", domain.ErrPayment, err)
	}
	if sub.Status != domain.SubscriptionStatusActive {
		return nil, fmt.Errorf("%w: subscription status %q", domain.ErrPayment, sub.Status)
	}
	return sub, nil
}

// ReleaseUnit gives back one paid unit: the line item's quantity is
// decremented without proration, and a subscription that would drop to zero
// is cancelled along with the local subscription reference and paid quota.
func (g *QuotaGate) ReleaseUnit(ctx context.Context, acct *domain.Account, priceRef string) error {
	if acct.SubscriptionID == nil {
		return nil
	}

	sub, err := g.billing.GetSubscription(ctx, *acct.SubscriptionID)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to load subscription for release", "error", err, "subscription_id", *acct.SubscriptionID)
		return fmt.Errorf("%w: %v", domain.ErrPayment, err)
	}

	item := sub.ItemForPrice(priceRef)
	if item == nil || item.Quantity <= 1 {
		if err := g.billing.CancelSubscription(ctx, sub.ID); err != nil {
			g.logger.ErrorContext(ctx, "failed to cancel subscription", "error", err, "subscription_id", sub.ID)
			return fmt.Errorf("%w: %v", domain.ErrPayment, err)
		}
		acct.SubscriptionID = nil
		acct.PaidNumberQuota = 0
	} else {
		if _, err := g.billing.SetItemQuantity(ctx, sub.ID, item.ID, item.Quantity-1, false); err != nil {
			g.logger.ErrorContext(ctx, "failed to decrement subscription item", "error", err, "subscription_id", sub.ID)
			return fmt.Errorf("%w: %v", domain.ErrPayment, err)
		}
		if acct.PaidNumberQuota > 0 {
			acct.PaidNumberQuota--
		}
	}

	if err := g.accounts.UpdateBilling(ctx, acct); err != nil {
		return fmt.Errorf("persist paid quota: %w", err)
	}
	g.logger.InfoContext(ctx, "paid unit released", "account_id", acct.ID, "paid_quota", acct.PaidNumberQuota)
	return nil
}
