package customerrisk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ngbank/aml-compliance/internal/apperr"
	"github.com/ngbank/aml-compliance/internal/audit"
	"github.com/ngbank/aml-compliance/internal/crypto"
	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/store"
)

type fakeCustomerStore struct {
	byID map[uuid.UUID]*domain.Customer
}

func newFakeCustomerStore() *fakeCustomerStore {
	return &fakeCustomerStore{byID: map[uuid.UUID]*domain.Customer{}}
}

func (f *fakeCustomerStore) Create(ctx context.Context, c *domain.Customer) error {
	f.byID[c.ID] = c
	return nil
}
func (f *fakeCustomerStore) Update(ctx context.Context, c *domain.Customer) error {
	f.byID[c.ID] = c
	return nil
}
func (f *fakeCustomerStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("customer_not_found", "not found")
	}
	return c, nil
}
func (f *fakeCustomerStore) GetByCustomerID(ctx context.Context, customerID string) (*domain.Customer, error) {
	for _, c := range f.byID {
		if c.CustomerID == customerID {
			return c, nil
		}
	}
	return nil, apperr.NotFound("customer_not_found", "not found")
}
func (f *fakeCustomerStore) List(ctx context.Context, filter store.CustomerFilter) ([]*domain.Customer, int64, error) {
	var out []*domain.Customer
	for _, c := range f.byID {
		if filter.RiskCategory != nil && c.RiskCategory != *filter.RiskCategory {
			continue
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

type fakeTransactionStore struct {
	txns []*domain.Transaction
}

func (f *fakeTransactionStore) Create(ctx context.Context, t *domain.Transaction) error { return nil }
func (f *fakeTransactionStore) Update(ctx context.Context, t *domain.Transaction) error { return nil }
func (f *fakeTransactionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return nil, apperr.NotFound("txn_not_found", "not found")
}
func (f *fakeTransactionStore) GetByReference(ctx context.Context, ref string) (*domain.Transaction, error) {
	return nil, apperr.NotFound("txn_not_found", "not found")
}
func (f *fakeTransactionStore) ListByCustomerSince(ctx context.Context, customerID uuid.UUID, since time.Time) ([]*domain.Transaction, error) {
	return f.txns, nil
}
func (f *fakeTransactionStore) List(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, int64, error) {
	return f.txns, int64(len(f.txns)), nil
}

type fakeAlertStore struct {
	alerts []*domain.Alert
}

func (f *fakeAlertStore) Create(ctx context.Context, a *domain.Alert) error { return nil }
func (f *fakeAlertStore) Update(ctx context.Context, a *domain.Alert) error { return nil }
func (f *fakeAlertStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	return nil, apperr.NotFound("alert_not_found", "not found")
}
func (f *fakeAlertStore) GetByAlertID(ctx context.Context, alertID string) (*domain.Alert, error) {
	return nil, apperr.NotFound("alert_not_found", "not found")
}
func (f *fakeAlertStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Alert, error) {
	return f.alerts, nil
}
func (f *fakeAlertStore) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Alert, error) {
	return nil, nil
}
func (f *fakeAlertStore) List(ctx context.Context, filter store.AlertFilter) ([]*domain.Alert, int64, error) {
	return f.alerts, int64(len(f.alerts)), nil
}

func testSink(t *testing.T) *audit.Sink {
	t.Helper()
	enc, err := crypto.NewFieldEncryptor(
		[]string{"MDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAwMDAwMDA="},
		1,
		"MTExMTExMTExMTExMTExMTExMTExMTExMTExMTExMTE=",
	)
	require.NoError(t, err)
	return audit.NewSink(&noopAuditLogStore{}, nil, enc, zap.NewNop())
}

type noopAuditLogStore struct{}

func (*noopAuditLogStore) Create(ctx context.Context, e *domain.AuditLog) error { return nil }
func (*noopAuditLogStore) Search(ctx context.Context, filter domain.AuditLogFilter) (*domain.AuditLogPage, error) {
	return &domain.AuditLogPage{}, nil
}
func (*noopAuditLogStore) GetLastSignature(ctx context.Context) (string, error) { return "", nil }
func (*noopAuditLogStore) CountByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	return 0, nil
}
func (*noopAuditLogStore) CountSuspiciousSince(ctx context.Context, since time.Time) (int64, error) {
	return 0, nil
}

func TestCalculateInitialRiskScoreTable(t *testing.T) {
	cases := []struct {
		name         string
		nationality  string
		accountTypes []string
		want         float64
	}{
		{"baseline", "NG", nil, 10},
		{"sanctioned", "IR", nil, 50},
		{"one high risk account", "NG", []string{"business"}, 25},
		{"two high risk accounts", "NG", []string{"business", "trust"}, 40},
		{"capped at 100", "IR", []string{"business", "corporate", "trust", "business"}, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateInitialRiskScore(tc.nationality, tc.accountTypes)
			assert.True(t, got.Equal(decimal.NewFromFloat(tc.want)), "got %s want %v", got, tc.want)
		})
	}
}

func TestOnboardPersistsCustomerWithInitialScore(t *testing.T) {
	customers := newFakeCustomerStore()
	svc := NewService(customers, &fakeTransactionStore{}, &fakeAlertStore{}, testSink(t))

	c, err := svc.Onboard(context.Background(), uuid.New(), OnboardInput{
		FirstName:   "Ada",
		LastName:    "Okoye",
		Nationality: "IR",
	})
	require.NoError(t, err)
	assert.True(t, c.RiskScore.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, domain.RiskCategoryMedium, c.RiskCategory)

	stored, err := customers.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, stored.ID)
}

func TestCalculateDynamicRiskScoreTiers(t *testing.T) {
	base := &domain.Customer{RiskScore: decimal.Zero}

	highVolume := []*domain.Transaction{{Money: domain.NGN(decimal.NewFromInt(11_000_000))}}
	assert.True(t, CalculateDynamicRiskScore(base, highVolume, nil).Equal(decimal.NewFromInt(20)))

	midVolume := []*domain.Transaction{{Money: domain.NGN(decimal.NewFromInt(6_000_000))}}
	assert.True(t, CalculateDynamicRiskScore(base, midVolume, nil).Equal(decimal.NewFromInt(10)))

	manyAlerts := make([]*domain.Alert, 11)
	for i := range manyAlerts {
		manyAlerts[i] = &domain.Alert{}
	}
	assert.True(t, CalculateDynamicRiskScore(base, nil, manyAlerts).Equal(decimal.NewFromInt(25)))

	cashHeavy := []*domain.Transaction{
		{Money: domain.NGN(decimal.NewFromInt(1000)), CashTransaction: true},
		{Money: domain.NGN(decimal.NewFromInt(1000)), CashTransaction: true},
		{Money: domain.NGN(decimal.NewFromInt(1000)), CashTransaction: false},
	}
	assert.True(t, CalculateDynamicRiskScore(base, cashHeavy, nil).Equal(decimal.NewFromInt(20)))
}

func TestRefreshRiskScoreUpdatesCustomer(t *testing.T) {
	customers := newFakeCustomerStore()
	c := domain.NewCustomer(uuid.New())
	c.ApplyRiskScore(decimal.NewFromInt(10))
	require.NoError(t, customers.Create(context.Background(), c))

	txns := &fakeTransactionStore{txns: []*domain.Transaction{
		{Money: domain.NGN(decimal.NewFromInt(12_000_000))},
	}}
	svc := NewService(customers, txns, &fakeAlertStore{}, testSink(t))

	refreshed, err := svc.RefreshRiskScore(context.Background(), uuid.New(), c.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.RiskScore.Equal(decimal.NewFromInt(30)))
	require.NotNil(t, refreshed.LastRiskAssessment)
}

func TestScreenForSanctionsBumpsScoreOnHit(t *testing.T) {
	customers := newFakeCustomerStore()
	c := domain.NewCustomer(uuid.New())
	c.Nationality = "KP"
	c.ApplyRiskScore(decimal.NewFromInt(10))
	require.NoError(t, customers.Create(context.Background(), c))

	svc := NewService(customers, &fakeTransactionStore{}, &fakeAlertStore{}, testSink(t))
	result, err := svc.ScreenForSanctions(context.Background(), uuid.New(), c.ID)
	require.NoError(t, err)

	assert.True(t, result.SanctionsHit)
	stored, err := customers.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, stored.RiskScore.Equal(decimal.NewFromInt(40)))
	assert.True(t, stored.RequiresEnhancedDD)
	assert.True(t, stored.SanctionsChecked)
}

func TestScreenForSanctionsNoHitLeavesScoreUnchanged(t *testing.T) {
	customers := newFakeCustomerStore()
	c := domain.NewCustomer(uuid.New())
	c.Nationality = "NG"
	c.ApplyRiskScore(decimal.NewFromInt(10))
	require.NoError(t, customers.Create(context.Background(), c))

	svc := NewService(customers, &fakeTransactionStore{}, &fakeAlertStore{}, testSink(t))
	result, err := svc.ScreenForSanctions(context.Background(), uuid.New(), c.ID)
	require.NoError(t, err)

	assert.False(t, result.SanctionsHit)
	assert.False(t, result.PEPHit)
	stored, err := customers.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, stored.RiskScore.Equal(decimal.NewFromInt(10)))
	assert.False(t, stored.RequiresEnhancedDD)
}

func TestGetDailyLimitByRisk(t *testing.T) {
	assert.True(t, GetDailyLimitByRisk(domain.RiskCategoryLow).Equal(decimal.NewFromInt(5_000_000)))
	assert.True(t, GetDailyLimitByRisk(domain.RiskCategoryMedium).Equal(decimal.NewFromInt(2_000_000)))
	assert.True(t, GetDailyLimitByRisk(domain.RiskCategoryHigh).Equal(decimal.NewFromInt(500_000)))
}

func TestGetHighRiskCustomersFiltersByCategory(t *testing.T) {
	customers := newFakeCustomerStore()
	high := domain.NewCustomer(uuid.New())
	high.ApplyRiskScore(decimal.NewFromInt(80))
	low := domain.NewCustomer(uuid.New())
	low.ApplyRiskScore(decimal.NewFromInt(10))
	require.NoError(t, customers.Create(context.Background(), high))
	require.NoError(t, customers.Create(context.Background(), low))

	svc := NewService(customers, &fakeTransactionStore{}, &fakeAlertStore{}, testSink(t))
	out, err := svc.GetHighRiskCustomers(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, high.ID, out[0].ID)
}
