package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

func validNumberSpec() NumberSpec {
	return NumberSpec{
		Title:  "Acme Plumbing",
		Number: "+15551234567",
		Extensions: []domain.Extension{
			{Title: "Sales", ForwardTo: "+15550000001"},
			{Title: "Support", ForwardTo: "+15550000002"},
		},
	}
}

func newProvisioningFixture() (*ProvisioningService, *MockPhoneNumberRepository, *MockAccountRepository, *MockTelephonyPort, *MockBillingPort) {
	numbers := new(MockPhoneNumberRepository)
	accounts := new(MockAccountRepository)
	telephony := new(MockTelephonyPort)
	billing := new(MockBillingPort)
	gate := NewQuotaGate(accounts, billing, testLogger())
	cfg := ProvisioningConfig{
		LifetimeNumberCeiling: 20,
		PublicBaseURL:         "https://voice.example.com",
		NumberPriceID:         testPriceID,
	}
	svc := NewProvisioningService(numbers, accounts, telephony, gate, cfg, testLogger())
	return svc, numbers, accounts, telephony, billing
}

func TestAcquire_HappyPath(t *testing.T) {
	svc, numbers, accounts, telephony, _ := newProvisioningFixture()

	acct := grantFixtureAccount()
	spec := validNumberSpec()

	accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
	telephony.On("IsAvailable", mock.Anything, spec.Number).Return(true, nil)
	numbers.On("CountLifetimeByAccount", mock.Anything, acct.ID).Return(0, nil)
	numbers.On("CountActiveByAccount", mock.Anything, acct.ID).Return(0, nil)
	telephony.On("PurchaseNumber", mock.Anything, spec.Number).Return("PN123", "(555) 123-4567", nil)
	numbers.On("Create", mock.Anything, mock.AnythingOfType("*domain.PhoneNumber")).Return(nil)
	telephony.On("ConfigureWebhooks", mock.Anything, "PN123",
		"https://voice.example.com/webhooks/voice",
		"https://voice.example.com/webhooks/voice/status").Return(nil)

	n, err := svc.Acquire(context.Background(), acct.ID, spec)

	require.NoError(t, err)
	assert.Equal(t, domain.NumberStatusActive, n.Status)
	assert.Equal(t, "PN123", n.ProviderSID)
	assert.Equal(t, "(555) 123-4567", n.FriendlyName)
	assert.Equal(t, domain.GreetingModeText, n.GreetingMode)
	telephony.AssertExpectations(t)
	numbers.AssertExpectations(t)
}

func TestAcquire_WebhookConfigFailureLeavesIncomplete(t *testing.T) {
	svc, numbers, accounts, telephony, _ := newProvisioningFixture()

	acct := grantFixtureAccount()
	spec := validNumberSpec()

	accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
	telephony.On("IsAvailable", mock.Anything, spec.Number).Return(true, nil)
	numbers.On("CountLifetimeByAccount", mock.Anything, acct.ID).Return(0, nil)
	numbers.On("CountActiveByAccount", mock.Anything, acct.ID).Return(0, nil)
	telephony.On("PurchaseNumber", mock.Anything, spec.Number).Return("PN123", "", nil)
	numbers.On("Create", mock.Anything, mock.AnythingOfType("*domain.PhoneNumber")).Return(nil)
	telephony.On("ConfigureWebhooks", mock.Anything, "PN123", mock.Anything, mock.Anything).
		Return(errors.New("provider timeout"))
	numbers.On("Update", mock.Anything, mock.AnythingOfType("*domain.PhoneNumber")).Return(nil)

	n, err := svc.Acquire(context.Background(), acct.ID, spec)

	require.NoError(t, err)
	assert.Equal(t, domain.NumberStatusProvisioningIncomplete, n.Status)
	numbers.AssertCalled(t, "Update", mock.Anything, n)
}

func TestAcquire_ValidationRejectsBeforeProvider(t *testing.T) {
	svc, _, _, telephony, _ := newProvisioningFixture()

	testCases := []struct {
		name   string
		mutate func(*NumberSpec)
	}{
		{"empty title", func(s *NumberSpec) { s.Title = "" }},
		{"no extensions", func(s *NumberSpec) { s.Extensions = nil }},
		{"too many extensions", func(s *NumberSpec) {
			s.Extensions = make([]domain.Extension, 10)
			for i := range s.Extensions {
				s.Extensions[i] = domain.Extension{ForwardTo: "+15550000001"}
			}
		}},
		{"bad forwarding number", func(s *NumberSpec) { s.Extensions[0].ForwardTo = "555-0001" }},
		{"bad requested number", func(s *NumberSpec) { s.Number = "not-a-number" }},
		{"audio greeting without URL", func(s *NumberSpec) { s.GreetingMode = domain.GreetingModeAudio }},
		{"unknown greeting mode", func(s *NumberSpec) { s.GreetingMode = "video" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			spec := validNumberSpec()
			tc.mutate(&spec)

			_, err := svc.Acquire(context.Background(), uuid.New(), spec)

			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	telephony.AssertNotCalled(t, "PurchaseNumber", mock.Anything, mock.Anything)
}

func TestAcquire_NumberNoLongerAvailable(t *testing.T) {
	svc, _, accounts, telephony, _ := newProvisioningFixture()

	acct := grantFixtureAccount()
	spec := validNumberSpec()

	accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
	telephony.On("IsAvailable", mock.Anything, spec.Number).Return(false, nil)

	_, err := svc.Acquire(context.Background(), acct.ID, spec)

	require.ErrorIs(t, err, domain.ErrValidation)
	telephony.AssertNotCalled(t, "PurchaseNumber", mock.Anything, mock.Anything)
}

func TestAcquire_LifetimeCeiling(t *testing.T) {
	svc, numbers, accounts, telephony, _ := newProvisioningFixture()

	acct := grantFixtureAccount()
	spec := validNumberSpec()

	accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
	telephony.On("IsAvailable", mock.Anything, spec.Number).Return(true, nil)
	numbers.On("CountLifetimeByAccount", mock.Anything, acct.ID).Return(20, nil)

	_, err := svc.Acquire(context.Background(), acct.ID, spec)

	require.ErrorIs(t, err, domain.ErrLifetimeCeiling)
	telephony.AssertNotCalled(t, "PurchaseNumber", mock.Anything, mock.Anything)
}

func TestAcquire_QuotaExceeded(t *testing.T) {
	svc, numbers, accounts, telephony, _ := newProvisioningFixture()

	acct := grantFixtureAccount() // one free unit, no paid quota
	spec := validNumberSpec()

	accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
	telephony.On("IsAvailable", mock.Anything, spec.Number).Return(true, nil)
	numbers.On("CountLifetimeByAccount", mock.Anything, acct.ID).Return(1, nil)
	numbers.On("CountActiveByAccount", mock.Anything, acct.ID).Return(1, nil)

	_, err := svc.Acquire(context.Background(), acct.ID, spec)

	require.ErrorIs(t, err, domain.ErrQuotaExceeded)
	telephony.AssertNotCalled(t, "PurchaseNumber", mock.Anything, mock.Anything)
}

func TestAcquire_PaidUnitGrantedBeforeQuotaCheck(t *testing.T) {
	svc, numbers, accounts, telephony, billing := newProvisioningFixture()

	acct := grantFixtureAccount()
	spec := validNumberSpec()
	spec.PriceRef = "price_once"

	accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
	telephony.On("IsAvailable", mock.Anything, spec.Number).Return(true, nil)
	numbers.On("CountLifetimeByAccount", mock.Anything, acct.ID).Return(1, nil)
	billing.On("GetPrice", mock.Anything, "price_once").
		Return(&domain.Price{ID: "price_once", Recurring: false}, nil)
	billing.On("EnsureCustomer", mock.Anything, acct).Return(testCustomerID, nil)
	billing.On("ResolvePaymentMethod", mock.Anything, testCustomerID, "").Return("pm_1", nil)
	billing.On("ChargeOnce", mock.Anything, testCustomerID, "price_once", "pm_1").Return("succeeded", nil)
	accounts.On("UpdateBilling", mock.Anything, acct).Return(nil)
	// One active number fits once the paid unit lands on top of the free one.
	numbers.On("CountActiveByAccount", mock.Anything, acct.ID).Return(1, nil)
	telephony.On("PurchaseNumber", mock.Anything, spec.Number).Return("PN123", "", nil)
	numbers.On("Create", mock.Anything, mock.AnythingOfType("*domain.PhoneNumber")).Return(nil)
	telephony.On("ConfigureWebhooks", mock.Anything, "PN123", mock.Anything, mock.Anything).Return(nil)

	n, err := svc.Acquire(context.Background(), acct.ID, spec)

	require.NoError(t, err)
	assert.Equal(t, 1, acct.PaidNumberQuota)
	assert.Equal(t, domain.NumberStatusActive, n.Status)
}

func TestUpdate_NeverTouchesProvider(t *testing.T) {
	svc, numbers, _, telephony, _ := newProvisioningFixture()

	acct := grantFixtureAccount()
	existing := &domain.PhoneNumber{
		ID:          uuid.New(),
		AccountID:   acct.ID,
		ProviderSID: "PN123",
		Title:       "Old Title",
		Number:      "+15551234567",
		Extensions:  []domain.Extension{{ForwardTo: "+15550000009"}},
		Status:      domain.NumberStatusActive,
	}

	spec := validNumberSpec()
	spec.Title = "New Title"
	spec.RecordCalls = true

	numbers.On("GetByID", mock.Anything, existing.ID, acct.ID).Return(existing, nil)
	numbers.On("Update", mock.Anything, existing).Return(nil)

	n, err := svc.Update(context.Background(), acct.ID, existing.ID, spec)

	require.NoError(t, err)
	assert.Equal(t, "New Title", n.Title)
	assert.True(t, n.RecordCalls)
	assert.Len(t, n.Extensions, 2)
	telephony.AssertNotCalled(t, "ConfigureWebhooks", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	telephony.AssertNotCalled(t, "PurchaseNumber", mock.Anything, mock.Anything)
}

func TestRelease_SetsReleasedAtAndGivesBackPaidUnit(t *testing.T) {
	svc, numbers, accounts, telephony, billing := newProvisioningFixture()

	acct := grantFixtureAccount()
	subID := "sub_456"
	acct.SubscriptionID = &subID
	acct.PaidNumberQuota = 2

	existing := &domain.PhoneNumber{
		ID:          uuid.New(),
		AccountID:   acct.ID,
		ProviderSID: "PN123",
		Status:      domain.NumberStatusActive,
	}

	numbers.On("GetByID", mock.Anything, existing.ID, acct.ID).Return(existing, nil)
	telephony.On("ReleaseNumber", mock.Anything, "PN123").Return(nil)
	numbers.On("Update", mock.Anything, existing).Return(nil)
	accounts.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
	billing.On("GetSubscription", mock.Anything, subID).Return(&domain.Subscription{
		ID:     subID,
		Status: domain.SubscriptionStatusActive,
		Items:  []domain.SubscriptionItem{{ID: "si_1", PriceID: testPriceID, Quantity: 2}},
	}, nil)
	billing.On("SetItemQuantity", mock.Anything, subID, "si_1", 1, false).
		Return(&domain.Subscription{ID: subID, Status: domain.SubscriptionStatusActive}, nil)
	accounts.On("UpdateBilling", mock.Anything, acct).Return(nil)

	err := svc.Release(context.Background(), acct.ID, existing.ID)

	require.NoError(t, err)
	require.NotNil(t, existing.ReleasedAt)
	assert.Equal(t, 1, acct.PaidNumberQuota)
}

func TestRelease_AlreadyReleased(t *testing.T) {
	svc, numbers, _, telephony, _ := newProvisioningFixture()

	acct := grantFixtureAccount()
	released := &domain.PhoneNumber{ID: uuid.New(), AccountID: acct.ID, ProviderSID: "PN123"}
	at := released.CreatedAt
	released.ReleasedAt = &at

	numbers.On("GetByID", mock.Anything, released.ID, acct.ID).Return(released, nil)

	err := svc.Release(context.Background(), acct.ID, released.ID)

	require.ErrorIs(t, err, domain.ErrNotFound)
	telephony.AssertNotCalled(t, "ReleaseNumber", mock.Anything, mock.Anything)
}

func TestRelease_ProviderFailureAborts(t *testing.T) {
	svc, numbers, _, telephony, _ := newProvisioningFixture()

	acct := grantFixtureAccount()
	existing := &domain.PhoneNumber{ID: uuid.New(), AccountID: acct.ID, ProviderSID: "PN123"}

	numbers.On("GetByID", mock.Anything, existing.ID, acct.ID).Return(existing, nil)
	telephony.On("ReleaseNumber", mock.Anything, "PN123").Return(errors.New("provider down"))

	err := svc.Release(context.Background(), acct.ID, existing.ID)

	require.ErrorIs(t, err, domain.ErrProvider)
	assert.Nil(t, existing.ReleasedAt)
	numbers.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}
