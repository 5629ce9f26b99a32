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

const phoneCallColumns = `id, account_id, phone_number_id, provider_call_sid,
	from_number, from_formatted, to_number, to_formatted,
	started_at, ended_at, duration_secs, recording_file_id, created_at`

type PgPhoneCallRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgPhoneCallRepository(db *pgxpool.Pool, logger *slog.Logger) *PgPhoneCallRepository {
	return &PgPhoneCallRepository{db: db, logger: logger}
}

func scanPhoneCall(row pgx.Row) (*domain.PhoneCall, error) {
	var c domain.PhoneCall
	err := row.Scan(
		&c.ID, &c.AccountID, &c.PhoneNumberID, &c.ProviderCallSID,
		&c.From, &c.FromFormatted, &c.To, &c.ToFormatted,
		&c.StartedAt, &c.EndedAt, &c.DurationSecs, &c.RecordingFileID, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgPhoneCallRepository) Create(ctx context.Context, c *domain.PhoneCall) error {
	query := `
		INSERT INTO phone_calls (
			id, account_id, phone_number_id, provider_call_sid,
			from_number, from_formatted, to_number, to_formatted,
			started_at, ended_at, duration_secs, recording_file_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.AccountID, c.PhoneNumberID, c.ProviderCallSID,
		c.From, c.FromFormatted, c.To, c.ToFormatted,
		c.StartedAt, c.EndedAt, c.DurationSecs, c.RecordingFileID, c.CreatedAt,
	)
	return err
}

func (r *PgPhoneCallRepository) GetByProviderSID(ctx context.Context, sid string) (*domain.PhoneCall, error) {
	query := `SELECT ` + phoneCallColumns + ` FROM phone_calls WHERE provider_call_sid = $1 LIMIT 1`
	c, err := scanPhoneCall(r.db.QueryRow(ctx, query, sid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *PgPhoneCallRepository) ListByPhoneNumber(ctx context.Context, phoneNumberID uuid.UUID, limit int) ([]*domain.PhoneCall, error) {
	query := `SELECT ` + phoneCallColumns + ` FROM phone_calls
		WHERE phone_number_id = $1
		ORDER BY started_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, phoneNumberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []*domain.PhoneCall
	for rows.Next() {
		c, err := scanPhoneCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

func (r *PgPhoneCallRepository) SetRecordingFile(ctx context.Context, callID, fileID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE phone_calls SET recording_file_id = $2 WHERE id = $1`,
		callID, fileID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
