// Package notify delivers grace-period notices by publishing e-mail events
// to NATS; a downstream mailer service consumes them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/voxgate/voxgate/internal/platform/messagebroker"
	"github.com/voxgate/voxgate/internal/voice/domain"
)

const emailSubject = "notifications.email.send"

type emailEvent struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Template  string `json:"template"`
}

type NATSNotifier struct {
	nats   *messagebroker.NATSClient
	logger *slog.Logger
}

func NewNATSNotifier(nc *messagebroker.NATSClient, logger *slog.Logger) *NATSNotifier {
	return &NATSNotifier{
		nats:   nc,
		logger: logger.With("adapter", "notifier"),
	}
}

func (n *NATSNotifier) publish(ctx context.Context, a *domain.Account, template string) error {
	data, err := json.Marshal(emailEvent{
		AccountID: a.ID.String(),
		Email:     a.Email,
		Template:  template,
	})
	if err != nil {
		return fmt.Errorf("encode notification event: %w", err)
	}
	if err := n.nats.Publish(ctx, emailSubject, data); err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "notification published", "account_id", a.ID, "template", template)
	return nil
}

func (n *NATSNotifier) SubscriptionWarning(ctx context.Context, a *domain.Account) error {
	return n.publish(ctx, a, "voice_subscription_warning")
}

func (n *NATSNotifier) SubscriptionTerminated(ctx context.Context, a *domain.Account) error {
	return n.publish(ctx, a, "voice_subscription_terminated")
}
