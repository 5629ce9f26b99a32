package http_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errStub = errors.New("not stubbed")

// stubNumbersRepo implements domain.PhoneNumberRepository with overridable
// function fields; unset methods fail loudly.
type stubNumbersRepo struct {
	findActiveWithOwner func(ctx context.Context, number string) (*domain.PhoneNumber, *domain.Account, error)
	getByID             func(ctx context.Context, id, accountID uuid.UUID) (*domain.PhoneNumber, error)
	listActive          func(ctx context.Context, accountID uuid.UUID) ([]*domain.PhoneNumber, error)
}

func (s *stubNumbersRepo) Create(context.Context, *domain.PhoneNumber) error { return errStub }
func (s *stubNumbersRepo) Update(context.Context, *domain.PhoneNumber) error { return errStub }

func (s *stubNumbersRepo) GetByID(ctx context.Context, id, accountID uuid.UUID) (*domain.PhoneNumber, error) {
	if s.getByID == nil {
		return nil, errStub
	}
	return s.getByID(ctx, id, accountID)
}

func (s *stubNumbersRepo) FindActiveByNumber(context.Context, string) (*domain.PhoneNumber, error) {
	return nil, errStub
}

func (s *stubNumbersRepo) FindActiveByNumberWithOwner(ctx context.Context, number string) (*domain.PhoneNumber, *domain.Account, error) {
	if s.findActiveWithOwner == nil {
		return nil, nil, errStub
	}
	return s.findActiveWithOwner(ctx, number)
}

func (s *stubNumbersRepo) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.PhoneNumber, error) {
	if s.listActive == nil {
		return nil, errStub
	}
	return s.listActive(ctx, accountID)
}

func (s *stubNumbersRepo) CountActiveByAccount(context.Context, uuid.UUID) (int, error) {
	return 0, errStub
}

func (s *stubNumbersRepo) CountLifetimeByAccount(context.Context, uuid.UUID) (int, error) {
	return 0, errStub
}

func (s *stubNumbersRepo) ListStale(context.Context, time.Time, int) ([]*domain.PhoneNumber, error) {
	return nil, errStub
}

func (s *stubNumbersRepo) MarkChecked(context.Context, uuid.UUID, time.Time) error { return errStub }

type stubCallsRepo struct {
	listByNumber func(ctx context.Context, phoneNumberID uuid.UUID, limit int) ([]*domain.PhoneCall, error)
}

func (s *stubCallsRepo) Create(context.Context, *domain.PhoneCall) error { return errStub }

func (s *stubCallsRepo) GetByProviderSID(context.Context, string) (*domain.PhoneCall, error) {
	return nil, errStub
}

func (s *stubCallsRepo) ListByPhoneNumber(ctx context.Context, phoneNumberID uuid.UUID, limit int) ([]*domain.PhoneCall, error) {
	if s.listByNumber == nil {
		return nil, errStub
	}
	return s.listByNumber(ctx, phoneNumberID, limit)
}

func (s *stubCallsRepo) SetRecordingFile(context.Context, uuid.UUID, uuid.UUID) error {
	return errStub
}

type stubAccountsRepo struct {
	getByID func(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

func (s *stubAccountsRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if s.getByID == nil {
		return nil, errStub
	}
	return s.getByID(ctx, id)
}

func (s *stubAccountsRepo) UpdateBilling(context.Context, *domain.Account) error { return errStub }

func (s *stubAccountsRepo) AddStorageUsage(context.Context, uuid.UUID, int64) error { return errStub }

type stubTelephony struct {
	getCall func(ctx context.Context, callSID string) (*domain.CallInfo, error)
}

func (s *stubTelephony) SearchAvailable(context.Context, string) ([]domain.AvailableNumber, error) {
	return nil, errStub
}

func (s *stubTelephony) IsAvailable(context.Context, string) (bool, error) { return false, errStub }

func (s *stubTelephony) PurchaseNumber(context.Context, string) (string, string, error) {
	return "", "", errStub
}

func (s *stubTelephony) ConfigureWebhooks(context.Context, string, string, string) error {
	return errStub
}

func (s *stubTelephony) ReleaseNumber(context.Context, string) error { return errStub }

func (s *stubTelephony) GetCall(ctx context.Context, callSID string) (*domain.CallInfo, error) {
	if s.getCall == nil {
		return nil, errStub
	}
	return s.getCall(ctx, callSID)
}

func (s *stubTelephony) OpenRecording(context.Context, string) (io.ReadCloser, error) {
	return nil, errStub
}

type stubStorage struct{}

func (stubStorage) EnsureFolder(context.Context, uuid.UUID, string) (uuid.UUID, error) {
	return uuid.Nil, errStub
}

func (stubStorage) CreateFile(context.Context, uuid.UUID, uuid.UUID, string) (uuid.UUID, error) {
	return uuid.Nil, errStub
}

func (stubStorage) Upload(context.Context, uuid.UUID, io.Reader) error { return errStub }

func (stubStorage) Stat(context.Context, uuid.UUID) (int64, error) { return 0, errStub }

func (stubStorage) PatchSize(context.Context, uuid.UUID, int64) error { return errStub }
