package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

type PgAccountRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgAccountRepository(db *pgxpool.Pool, logger *slog.Logger) *PgAccountRepository {
	return &PgAccountRepository{db: db, logger: logger}
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, email, roles, free_number_quota, paid_number_quota,
		       billing_customer_id, subscription_id, subscription_invalid_at,
		       subscription_warned_at, storage_bytes_used
		FROM accounts WHERE id = $1
	`
	var a domain.Account
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Email, &a.Roles, &a.FreeNumberQuota, &a.PaidNumberQuota,
		&a.BillingCustomerID, &a.SubscriptionID, &a.SubscriptionInvalidAt,
		&a.SubscriptionWarnedAt, &a.StorageBytesUsed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// UpdateBilling persists only the fields the gate and the sweep own.
func (r *PgAccountRepository) UpdateBilling(ctx context.Context, a *domain.Account) error {
	query := `
		UPDATE accounts SET
			free_number_quota = $2, paid_number_quota = $3,
			billing_customer_id = $4, subscription_id = $5,
			subscription_invalid_at = $6, subscription_warned_at = $7
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		a.ID, a.FreeNumberQuota, a.PaidNumberQuota,
		a.BillingCustomerID, a.SubscriptionID,
		a.SubscriptionInvalidAt, a.SubscriptionWarnedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgAccountRepository) AddStorageUsage(ctx context.Context, id uuid.UUID, delta int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE accounts SET storage_bytes_used = storage_bytes_used + $2 WHERE id = $1`,
		id, delta)
	return err
}
