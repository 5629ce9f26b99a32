package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

const phoneNumberColumns = `id, account_id, provider_sid, title, number, friendly_name,
	extensions, record_calls, greeting_mode, greeting_audio_url, greeting_text,
	status, checked_at, released_at, created_at, updated_at`

type PgPhoneNumberRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgPhoneNumberRepository(db *pgxpool.Pool, logger *slog.Logger) *PgPhoneNumberRepository {
	return &PgPhoneNumberRepository{db: db, logger: logger}
}

func scanPhoneNumber(row pgx.Row) (*domain.PhoneNumber, error) {
	var n domain.PhoneNumber
	var extensions []byte
	err := row.Scan(
		&n.ID, &n.AccountID, &n.ProviderSID, &n.Title, &n.Number, &n.FriendlyName,
		&extensions, &n.RecordCalls, &n.GreetingMode, &n.GreetingAudioURL, &n.GreetingText,
		&n.Status, &n.CheckedAt, &n.ReleasedAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(extensions, &n.Extensions); err != nil {
		return nil, fmt.Errorf("decode extensions: %w", err)
	}
	return &n, nil
}

func (r *PgPhoneNumberRepository) Create(ctx context.Context, n *domain.PhoneNumber) error {
	extensions, err := json.Marshal(n.Extensions)
	if err != nil {
		return fmt.Errorf("encode extensions: %w", err)
	}
	query := `
		INSERT INTO phone_numbers (
			id, account_id, provider_sid, title, number, friendly_name,
			extensions, record_calls, greeting_mode, greeting_audio_url, greeting_text,
			status, checked_at, released_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.db.Exec(ctx, query,
		n.ID, n.AccountID, n.ProviderSID, n.Title, n.Number, n.FriendlyName,
		extensions, n.RecordCalls, n.GreetingMode, n.GreetingAudioURL, n.GreetingText,
		n.Status, n.CheckedAt, n.ReleasedAt, n.CreatedAt, n.UpdatedAt,
	)
	return err
}

func (r *PgPhoneNumberRepository) Update(ctx context.Context, n *domain.PhoneNumber) error {
	extensions, err := json.Marshal(n.Extensions)
	if err != nil {
		return fmt.Errorf("encode extensions: %w", err)
	}
	query := `
		UPDATE phone_numbers SET
			title = $2, extensions = $3, record_calls = $4, greeting_mode = $5,
			greeting_audio_url = $6, greeting_text = $7, status = $8,
			checked_at = $9, released_at = $10, updated_at = $11
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		n.ID, n.Title, extensions, n.RecordCalls, n.GreetingMode,
		n.GreetingAudioURL, n.GreetingText, n.Status,
		n.CheckedAt, n.ReleasedAt, n.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgPhoneNumberRepository) GetByID(ctx context.Context, id, accountID uuid.UUID) (*domain.PhoneNumber, error) {
	query := `SELECT ` + phoneNumberColumns + ` FROM phone_numbers WHERE id = $1 AND account_id = $2`
	n, err := scanPhoneNumber(r.db.QueryRow(ctx, query, id, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func (r *PgPhoneNumberRepository) FindActiveByNumber(ctx context.Context, number string) (*domain.PhoneNumber, error) {
	query := `SELECT ` + phoneNumberColumns + ` FROM phone_numbers
		WHERE number = $1 AND released_at IS NULL LIMIT 1`
	n, err := scanPhoneNumber(r.db.QueryRow(ctx, query, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// FindActiveByNumberWithOwner joins the owning account in the same query so
// the IVR webhook path stays at exactly one read.
func (r *PgPhoneNumberRepository) FindActiveByNumberWithOwner(ctx context.Context, number string) (*domain.PhoneNumber, *domain.Account, error) {
	query := `
		SELECT n.id, n.account_id, n.provider_sid, n.title, n.number, n.friendly_name,
		       n.extensions, n.record_calls, n.greeting_mode, n.greeting_audio_url, n.greeting_text,
		       n.status, n.checked_at, n.released_at, n.created_at, n.updated_at,
		       a.id, a.email, a.roles, a.free_number_quota, a.paid_number_quota,
		       a.billing_customer_id, a.subscription_id, a.subscription_invalid_at,
		       a.subscription_warned_at, a.storage_bytes_used
		FROM phone_numbers n
		JOIN accounts a ON a.id = n.account_id
		WHERE n.number = $1 AND n.released_at IS NULL
		LIMIT 1
	`
	var n domain.PhoneNumber
	var a domain.Account
	var extensions []byte
	err := r.db.QueryRow(ctx, query, number).Scan(
		&n.ID, &n.AccountID, &n.ProviderSID, &n.Title, &n.Number, &n.FriendlyName,
		&extensions, &n.RecordCalls, &n.GreetingMode, &n.GreetingAudioURL, &n.GreetingText,
		&n.Status, &n.CheckedAt, &n.ReleasedAt, &n.CreatedAt, &n.UpdatedAt,
		&a.ID, &a.Email, &a.Roles, &a.FreeNumberQuota, &a.PaidNumberQuota,
		&a.BillingCustomerID, &a.SubscriptionID, &a.SubscriptionInvalidAt,
		&a.SubscriptionWarnedAt, &a.StorageBytesUsed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, err
	}
	if err := json.Unmarshal(extensions, &n.Extensions); err != nil {
		return nil, nil, fmt.Errorf("decode extensions: %w", err)
	}
	return &n, &a, nil
}

func (r *PgPhoneNumberRepository) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.PhoneNumber, error) {
	query := `SELECT ` + phoneNumberColumns + ` FROM phone_numbers
		WHERE account_id = $1 AND released_at IS NULL
		ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []*domain.PhoneNumber
	for rows.Next() {
		n, err := scanPhoneNumber(rows)
		if err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

func (r *PgPhoneNumberRepository) CountActiveByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM phone_numbers WHERE account_id = $1 AND released_at IS NULL`,
		accountID).Scan(&count)
	return count, err
}

func (r *PgPhoneNumberRepository) CountLifetimeByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM phone_numbers WHERE account_id = $1`,
		accountID).Scan(&count)
	return count, err
}

func (r *PgPhoneNumberRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PhoneNumber, error) {
	query := `SELECT ` + phoneNumberColumns + ` FROM phone_numbers
		WHERE released_at IS NULL
		  AND account_id IS NOT NULL
		  AND (checked_at IS NULL OR checked_at < $1)
		ORDER BY checked_at ASC NULLS FIRST
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []*domain.PhoneNumber
	for rows.Next() {
		n, err := scanPhoneNumber(rows)
		if err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

func (r *PgPhoneNumberRepository) MarkChecked(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE phone_numbers SET checked_at = $2 WHERE account_id = $1 AND released_at IS NULL`,
		accountID, at)
	return err
}
