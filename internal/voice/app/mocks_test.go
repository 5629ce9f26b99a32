package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- Repository mocks ---

type MockPhoneNumberRepository struct {
	mock.Mock
}

func (m *MockPhoneNumberRepository) Create(ctx context.Context, n *domain.PhoneNumber) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockPhoneNumberRepository) Update(ctx context.Context, n *domain.PhoneNumber) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockPhoneNumberRepository) GetByID(ctx context.Context, id, accountID uuid.UUID) (*domain.PhoneNumber, error) {
	args := m.Called(ctx, id, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PhoneNumber), args.Error(1)
}

func (m *MockPhoneNumberRepository) FindActiveByNumber(ctx context.Context, number string) (*domain.PhoneNumber, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PhoneNumber), args.Error(1)
}

func (m *MockPhoneNumberRepository) FindActiveByNumberWithOwner(ctx context.Context, number string) (*domain.PhoneNumber, *domain.Account, error) {
	args := m.Called(ctx, number)
	var n *domain.PhoneNumber
	var a *domain.Account
	if args.Get(0) != nil {
		n = args.Get(0).(*domain.PhoneNumber)
	}
	if args.Get(1) != nil {
		a = args.Get(1).(*domain.Account)
	}
	return n, a, args.Error(2)
}

func (m *MockPhoneNumberRepository) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.PhoneNumber, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PhoneNumber), args.Error(1)
}

func (m *MockPhoneNumberRepository) CountActiveByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	args := m.Called(ctx, accountID)
	return args.Int(0), args.Error(1)
}

func (m *MockPhoneNumberRepository) CountLifetimeByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	args := m.Called(ctx, accountID)
	return args.Int(0), args.Error(1)
}

func (m *MockPhoneNumberRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PhoneNumber, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PhoneNumber), args.Error(1)
}

func (m *MockPhoneNumberRepository) MarkChecked(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, accountID, at)
	return args.Error(0)
}

type MockPhoneCallRepository struct {
	mock.Mock
}

func (m *MockPhoneCallRepository) Create(ctx context.Context, c *domain.PhoneCall) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockPhoneCallRepository) GetByProviderSID(ctx context.Context, sid string) (*domain.PhoneCall, error) {
	args := m.Called(ctx, sid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PhoneCall), args.Error(1)
}

func (m *MockPhoneCallRepository) ListByPhoneNumber(ctx context.Context, phoneNumberID uuid.UUID, limit int) ([]*domain.PhoneCall, error) {
	args := m.Called(ctx, phoneNumberID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PhoneCall), args.Error(1)
}

func (m *MockPhoneCallRepository) SetRecordingFile(ctx context.Context, callID, fileID uuid.UUID) error {
	args := m.Called(ctx, callID, fileID)
	return args.Error(0)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdateBilling(ctx context.Context, a *domain.Account) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAccountRepository) AddStorageUsage(ctx context.Context, id uuid.UUID, delta int64) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

// --- Port mocks ---

type MockTelephonyPort struct {
	mock.Mock
}

func (m *MockTelephonyPort) SearchAvailable(ctx context.Context, areaCode string) ([]domain.AvailableNumber, error) {
	args := m.Called(ctx, areaCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AvailableNumber), args.Error(1)
}

func (m *MockTelephonyPort) IsAvailable(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockTelephonyPort) PurchaseNumber(ctx context.Context, number string) (string, string, error) {
	args := m.Called(ctx, number)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockTelephonyPort) ConfigureWebhooks(ctx context.Context, sid, voiceURL, statusURL string) error {
	args := m.Called(ctx, sid, voiceURL, statusURL)
	return args.Error(0)
}

func (m *MockTelephonyPort) ReleaseNumber(ctx context.Context, sid string) error {
	args := m.Called(ctx, sid)
	return args.Error(0)
}

func (m *MockTelephonyPort) GetCall(ctx context.Context, callSID string) (*domain.CallInfo, error) {
	args := m.Called(ctx, callSID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallInfo), args.Error(1)
}

func (m *MockTelephonyPort) OpenRecording(ctx context.Context, recordingURL string) (io.ReadCloser, error) {
	args := m.Called(ctx, recordingURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

type MockBillingPort struct {
	mock.Mock
}

func (m *MockBillingPort) GetPrice(ctx context.Context, priceRef string) (*domain.Price, error) {
	args := m.Called(ctx, priceRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Price), args.Error(1)
}

func (m *MockBillingPort) EnsureCustomer(ctx context.Context, a *domain.Account) (string, error) {
	args := m.Called(ctx, a)
	return args.String(0), args.Error(1)
}

func (m *MockBillingPort) ResolvePaymentMethod(ctx context.Context, customerID, explicitID string) (string, error) {
	args := m.Called(ctx, customerID, explicitID)
	return args.String(0), args.Error(1)
}

func (m *MockBillingPort) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *MockBillingPort) CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (*domain.Subscription, error) {
	args := m.Called(ctx, customerID, priceID, paymentMethodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *MockBillingPort) AddSubscriptionItem(ctx context.Context, subscriptionID, priceID string) (*domain.Subscription, error) {
	args := m.Called(ctx, subscriptionID, priceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *MockBillingPort) SetItemQuantity(ctx context.Context, subscriptionID, itemID string, quantity int, prorate bool) (*domain.Subscription, error) {
	args := m.Called(ctx, subscriptionID, itemID, quantity, prorate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *MockBillingPort) CancelSubscription(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *MockBillingPort) ChargeOnce(ctx context.Context, customerID, priceID, paymentMethodID string) (string, error) {
	args := m.Called(ctx, customerID, priceID, paymentMethodID)
	return args.String(0), args.Error(1)
}

func (m *MockBillingPort) SubscriptionStatus(ctx context.Context, subscriptionID string) (string, error) {
	args := m.Called(ctx, subscriptionID)
	return args.String(0), args.Error(1)
}

type MockStoragePort struct {
	mock.Mock
}

func (m *MockStoragePort) EnsureFolder(ctx context.Context, accountID uuid.UUID, name string) (uuid.UUID, error) {
	args := m.Called(ctx, accountID, name)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockStoragePort) CreateFile(ctx context.Context, accountID, folderID uuid.UUID, name string) (uuid.UUID, error) {
	args := m.Called(ctx, accountID, folderID, name)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockStoragePort) Upload(ctx context.Context, fileID uuid.UUID, r io.Reader) error {
	args := m.Called(ctx, fileID, r)
	return args.Error(0)
}

func (m *MockStoragePort) Stat(ctx context.Context, fileID uuid.UUID) (int64, error) {
	args := m.Called(ctx, fileID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStoragePort) PatchSize(ctx context.Context, fileID uuid.UUID, size int64) error {
	args := m.Called(ctx, fileID, size)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SubscriptionWarning(ctx context.Context, a *domain.Account) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockNotifier) SubscriptionTerminated(ctx context.Context, a *domain.Account) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}
