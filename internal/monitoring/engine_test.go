package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

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
		return nil, assertNotFound()
	}
	return c, nil
}
func (f *fakeCustomerStore) GetByCustomerID(ctx context.Context, customerID string) (*domain.Customer, error) {
	for _, c := range f.byID {
		if c.CustomerID == customerID {
			return c, nil
		}
	}
	return nil, assertNotFound()
}
func (f *fakeCustomerStore) List(ctx context.Context, filter store.CustomerFilter) ([]*domain.Customer, int64, error) {
	var out []*domain.Customer
	for _, c := range f.byID {
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

type fakeTransactionStore struct {
	byID    map[uuid.UUID]*domain.Transaction
	created []*domain.Transaction
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{byID: map[uuid.UUID]*domain.Transaction{}}
}

func (f *fakeTransactionStore) Create(ctx context.Context, t *domain.Transaction) error {
	f.byID[t.ID] = t
	f.created = append(f.created, t)
	return nil
}
func (f *fakeTransactionStore) Update(ctx context.Context, t *domain.Transaction) error {
	f.byID[t.ID] = t
	return nil
}
func (f *fakeTransactionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, assertNotFound()
	}
	return t, nil
}
func (f *fakeTransactionStore) GetByReference(ctx context.Context, ref string) (*domain.Transaction, error) {
	for _, t := range f.byID {
		if t.ReferenceNumber == ref {
			return t, nil
		}
	}
	return nil, assertNotFound()
}
func (f *fakeTransactionStore) ListByCustomerSince(ctx context.Context, customerID uuid.UUID, since time.Time) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, t := range f.byID {
		if t.CustomerID == customerID && !t.TransactionDate.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}
func (f *fakeTransactionStore) List(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, int64, error) {
	var out []*domain.Transaction
	for _, t := range f.byID {
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

type fakeRuleStore struct {
	active []*domain.Rule
}

func (f *fakeRuleStore) Create(ctx context.Context, r *domain.Rule) error { return nil }
func (f *fakeRuleStore) Update(ctx context.Context, r *domain.Rule, expectedUpdatedAt time.Time) error {
	return nil
}
func (f *fakeRuleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	return nil, assertNotFound()
}
func (f *fakeRuleStore) GetByCode(ctx context.Context, ruleCode string) (*domain.Rule, error) {
	return nil, assertNotFound()
}
func (f *fakeRuleStore) ListActive(ctx context.Context) ([]*domain.Rule, error) { return f.active, nil }
func (f *fakeRuleStore) List(ctx context.Context, filter store.RuleFilter) ([]*domain.Rule, int64, error) {
	return f.active, int64(len(f.active)), nil
}

type fakeAlertStore struct {
	created []*domain.Alert
}

func (f *fakeAlertStore) Create(ctx context.Context, a *domain.Alert) error {
	f.created = append(f.created, a)
	return nil
}
func (f *fakeAlertStore) Update(ctx context.Context, a *domain.Alert) error { return nil }
func (f *fakeAlertStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	return nil, assertNotFound()
}
func (f *fakeAlertStore) GetByAlertID(ctx context.Context, alertID string) (*domain.Alert, error) {
	return nil, assertNotFound()
}
func (f *fakeAlertStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Alert, error) {
	return nil, nil
}
func (f *fakeAlertStore) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Alert, error) {
	return nil, nil
}
func (f *fakeAlertStore) List(ctx context.Context, filter store.AlertFilter) ([]*domain.Alert, int64, error) {
	return f.created, int64(len(f.created)), nil
}

type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func assertNotFound() error {
	return errNotFound
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "not found" }

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

func amountThresholdRule() *domain.Rule {
	return &domain.Rule{
		ID:       uuid.New(),
		RuleName: "High Value Transaction",
		RuleCode: "TEST-AMT-001",
		RuleType: "transaction_monitoring",
		Status:   domain.RuleStatusActive,
		Conditions: map[domain.Predicate]bool{
			domain.PredicateAmountThreshold: true,
		},
		Thresholds:    domain.RuleThresholds{domain.ThresholdAmount: 1_000_000},
		RiskWeight:    2.0,
		SeverityLevel: "high",
	}
}

func TestProcessTransactionTriggersAmountThresholdAlert(t *testing.T) {
	customers := newFakeCustomerStore()
	txns := newFakeTransactionStore()
	alerts := &fakeAlertStore{}
	rules := &fakeRuleStore{active: []*domain.Rule{amountThresholdRule()}}

	customer := domain.NewCustomer(uuid.New())
	customer.ID = uuid.New()
	require.NoError(t, customers.Create(context.Background(), customer))

	engine := NewEngine(customers, txns, rules, alerts, nil, testSink(t), fakeTxManager{}, nil)
	engine.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }

	tx, generated, err := engine.ProcessTransaction(context.Background(), uuid.New(), ProcessInput{
		TransactionID:   "TXN-1",
		CustomerID:      customer.ID,
		TransactionType: "transfer",
		Money:           domain.NGN(decimal.NewFromInt(2_000_000)),
		HomeCountry:     "NG",
	})

	require.NoError(t, err)
	assert.Len(t, generated, 1)
	assert.True(t, tx.RiskFlags[domain.FlagAmountThreshold])
	assert.True(t, tx.AmountThresholdFlag)
	assert.Len(t, alerts.created, 1)
	assert.Equal(t, domain.DetectionRuleBased, alerts.created[0].DetectionMethod)
}

func TestProcessTransactionNoTriggerBelowThreshold(t *testing.T) {
	customers := newFakeCustomerStore()
	txns := newFakeTransactionStore()
	alerts := &fakeAlertStore{}
	rules := &fakeRuleStore{active: []*domain.Rule{amountThresholdRule()}}

	customer := domain.NewCustomer(uuid.New())
	customer.ID = uuid.New()
	require.NoError(t, customers.Create(context.Background(), customer))

	engine := NewEngine(customers, txns, rules, alerts, nil, testSink(t), fakeTxManager{}, nil)
	engine.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }

	tx, generated, err := engine.ProcessTransaction(context.Background(), uuid.New(), ProcessInput{
		TransactionID:   "TXN-2",
		CustomerID:      customer.ID,
		TransactionType: "transfer",
		Money:           domain.NGN(decimal.NewFromInt(1_000)),
		HomeCountry:     "NG",
	})

	require.NoError(t, err)
	assert.Empty(t, generated)
	assert.False(t, tx.IsSuspicious)
}

func TestCrossBorderSanctionedCountryAddsBonus(t *testing.T) {
	customers := newFakeCustomerStore()
	txns := newFakeTransactionStore()
	alerts := &fakeAlertStore{}
	rule := &domain.Rule{
		ID:       uuid.New(),
		RuleName: "Cross Border",
		RuleCode: "TEST-CB-001",
		RuleType: "transaction_monitoring",
		Status:   domain.RuleStatusActive,
		Conditions: map[domain.Predicate]bool{
			domain.PredicateCrossBorder: true,
		},
		RiskWeight: 1.0,
	}
	rules := &fakeRuleStore{active: []*domain.Rule{rule}}

	customer := domain.NewCustomer(uuid.New())
	customer.ID = uuid.New()
	require.NoError(t, customers.Create(context.Background(), customer))

	engine := NewEngine(customers, txns, rules, alerts, nil, testSink(t), fakeTxManager{}, nil)
	engine.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }

	tx, generated, err := engine.ProcessTransaction(context.Background(), uuid.New(), ProcessInput{
		TransactionID:      "TXN-3",
		CustomerID:         customer.ID,
		TransactionType:    "transfer",
		Money:              domain.NGN(decimal.NewFromInt(10_000)),
		HomeCountry:        "NG",
		BeneficiaryCountry: "IR",
	})

	require.NoError(t, err)
	assert.True(t, tx.RiskFlags[domain.FlagCrossBorder])
	assert.Len(t, generated, 1, "sanctioned destination bonus must make cross_border alert-required")
}

func TestGetSuspiciousTransactionsFiltersFlaggedOnly(t *testing.T) {
	customers := newFakeCustomerStore()
	txns := newFakeTransactionStore()
	alerts := &fakeAlertStore{}
	rules := &fakeRuleStore{}
	engine := NewEngine(customers, txns, rules, alerts, nil, testSink(t), fakeTxManager{}, nil)
	engine.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }

	suspicious := &domain.Transaction{
		ID:              uuid.New(),
		IsSuspicious:    true,
		Status:          domain.TransactionCompleted,
		TransactionDate: engine.now().Add(-time.Hour),
	}
	clean := &domain.Transaction{
		ID:              uuid.New(),
		IsSuspicious:    false,
		Status:          domain.TransactionCompleted,
		TransactionDate: engine.now().Add(-time.Hour),
	}
	require.NoError(t, txns.Create(context.Background(), suspicious))
	require.NoError(t, txns.Create(context.Background(), clean))

	out, err := engine.GetSuspiciousTransactions(context.Background(), 7, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, suspicious.ID, out[0].ID)
}
