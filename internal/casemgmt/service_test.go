package casemgmt

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
	"github.com/ngbank/aml-compliance/internal/metrics"
	"github.com/ngbank/aml-compliance/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeCaseStore struct {
	byID     map[uuid.UUID]*domain.Case
	byNumber map[string]*domain.Case
	overdue  []*domain.Case
	seq      int
}

func newFakeCaseStore() *fakeCaseStore {
	return &fakeCaseStore{byID: map[uuid.UUID]*domain.Case{}, byNumber: map[string]*domain.Case{}}
}

func (f *fakeCaseStore) Create(ctx context.Context, c *domain.Case) error {
	f.byID[c.ID] = c
	f.byNumber[c.CaseNumber] = c
	return nil
}
func (f *fakeCaseStore) Update(ctx context.Context, c *domain.Case, expectedUpdatedAt time.Time) error {
	f.byID[c.ID] = c
	return nil
}
func (f *fakeCaseStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("case_not_found", "not found")
	}
	return c, nil
}
func (f *fakeCaseStore) GetByCaseNumber(ctx context.Context, caseNumber string) (*domain.Case, error) {
	c, ok := f.byNumber[caseNumber]
	if !ok {
		return nil, apperr.NotFound("case_not_found", "not found")
	}
	return c, nil
}
func (f *fakeCaseStore) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Case, error) {
	return f.overdue, nil
}
func (f *fakeCaseStore) List(ctx context.Context, filter store.CaseFilter) ([]*domain.Case, int64, error) {
	var out []*domain.Case
	for _, c := range f.byID {
		if filter.AssignedTo != nil && c.AssignedTo != *filter.AssignedTo {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}
func (f *fakeCaseStore) NextCaseSequence(ctx context.Context, year int, month int) (int, error) {
	f.seq++
	return f.seq, nil
}

type fakeAlertStore struct {
	byID map[uuid.UUID]*domain.Alert
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{byID: map[uuid.UUID]*domain.Alert{}}
}

func (f *fakeAlertStore) Create(ctx context.Context, a *domain.Alert) error {
	f.byID[a.ID] = a
	return nil
}
func (f *fakeAlertStore) Update(ctx context.Context, a *domain.Alert) error {
	f.byID[a.ID] = a
	return nil
}
func (f *fakeAlertStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("alert_not_found", "not found")
	}
	return a, nil
}
func (f *fakeAlertStore) GetByAlertID(ctx context.Context, alertID string) (*domain.Alert, error) {
	return nil, apperr.NotFound("alert_not_found", "not found")
}
func (f *fakeAlertStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Alert, error) {
	return nil, nil
}
func (f *fakeAlertStore) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Alert, error) {
	return nil, nil
}
func (f *fakeAlertStore) List(ctx context.Context, filter store.AlertFilter) ([]*domain.Alert, int64, error) {
	var out []*domain.Alert
	for _, a := range f.byID {
		out = append(out, a)
	}
	return out, int64(len(out)), nil
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

func testMetrics() *metrics.CaseWorkflow {
	return metrics.NewCaseWorkflow(prometheus.NewRegistry())
}

func seedAlert(t *testing.T, alerts *fakeAlertStore, customerID uuid.UUID, score float64) *domain.Alert {
	t.Helper()
	a := domain.NewAlert(customerID, "ALERT-"+uuid.New().String()[:8])
	a.RiskScore = decimal.NewFromFloat(score)
	require.NoError(t, alerts.Create(context.Background(), a))
	return a
}

func TestCreateFromAlertsDerivesRiskAndEscalates(t *testing.T) {
	cases := newFakeCaseStore()
	alerts := newFakeAlertStore()
	svc := NewService(cases, alerts, testSink(t), testMetrics())

	customerA := uuid.New()
	customerB := uuid.New()
	a1 := seedAlert(t, alerts, customerA, 85)
	a2 := seedAlert(t, alerts, customerB, 30)

	c, err := svc.CreateFromAlerts(context.Background(), uuid.New(), CreateFromAlertsInput{
		AlertIDs: []uuid.UUID{a1.ID, a2.ID},
		CaseType: "fraud_review",
		Title:    "Linked suspicious activity",
		Priority: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.CaseRiskCritical, c.RiskLevel)
	assert.Equal(t, customerA, c.CustomerID)
	assert.Equal(t, []uuid.UUID{customerB}, c.RelatedCustomers)
	assert.Contains(t, c.CaseNumber, "CASE-")
	require.NotNil(t, c.SLADeadline)

	updated1, err := alerts.GetByID(context.Background(), a1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusEscalated, updated1.Status)
	assert.Equal(t, c.ID, *updated1.CaseID)
}

func TestCreateFromAlertsRequiresAtLeastOne(t *testing.T) {
	svc := NewService(newFakeCaseStore(), newFakeAlertStore(), testSink(t), testMetrics())
	_, err := svc.CreateFromAlerts(context.Background(), uuid.New(), CreateFromAlertsInput{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUpdateStatusStampsStageTimestampsOnce(t *testing.T) {
	cases := newFakeCaseStore()
	alerts := newFakeAlertStore()
	svc := NewService(cases, alerts, testSink(t), testMetrics())

	a := seedAlert(t, alerts, uuid.New(), 50)
	c, err := svc.CreateFromAlerts(context.Background(), uuid.New(), CreateFromAlertsInput{
		AlertIDs: []uuid.UUID{a.ID},
		CaseType: "fraud_review",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), uuid.New(), c.ID, domain.CaseStatusInvestigating, "starting review")
	require.NoError(t, err)
	require.NotNil(t, updated.InvestigationStartedAt)
	firstStamp := *updated.InvestigationStartedAt

	again, err := svc.UpdateStatus(context.Background(), uuid.New(), c.ID, domain.CaseStatusInvestigating, "")
	require.NoError(t, err)
	assert.Equal(t, firstStamp, *again.InvestigationStartedAt)
}

func TestCloseFansOutToAlertsIdempotently(t *testing.T) {
	cases := newFakeCaseStore()
	alerts := newFakeAlertStore()
	svc := NewService(cases, alerts, testSink(t), testMetrics())

	customer := uuid.New()
	a1 := seedAlert(t, alerts, customer, 40)
	a2 := seedAlert(t, alerts, customer, 45)

	c, err := svc.CreateFromAlerts(context.Background(), uuid.New(), CreateFromAlertsInput{
		AlertIDs: []uuid.UUID{a1.ID, a2.ID},
		CaseType: "fraud_review",
	})
	require.NoError(t, err)

	closed, err := svc.Close(context.Background(), uuid.New(), c.ID, "confirmed_sar", "filed", "escalate", []string{"file_sar"})
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusClosed, closed.Status)

	updated1, err := alerts.GetByID(context.Background(), a1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusClosed, updated1.Status)
	assert.Equal(t, "escalate", updated1.Resolution)

	// Closing an already-closed case must tolerate alerts already resolved.
	_, err = svc.Close(context.Background(), uuid.New(), c.ID, "confirmed_sar", "filed", "escalate", []string{"file_sar"})
	require.NoError(t, err)
}

func TestOverdueMarksSLABreachedOnce(t *testing.T) {
	cases := newFakeCaseStore()
	c := &domain.Case{ID: uuid.New(), CaseNumber: "CASE-202601-0001"}
	cases.overdue = []*domain.Case{c}

	svc := NewService(cases, newFakeAlertStore(), testSink(t), testMetrics())
	out, err := svc.Overdue(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].SLABreached)
}

func TestAssignUpdatesAssignee(t *testing.T) {
	cases := newFakeCaseStore()
	alerts := newFakeAlertStore()
	svc := NewService(cases, alerts, testSink(t), testMetrics())

	a := seedAlert(t, alerts, uuid.New(), 50)
	c, err := svc.CreateFromAlerts(context.Background(), uuid.New(), CreateFromAlertsInput{
		AlertIDs: []uuid.UUID{a.ID},
		CaseType: "fraud_review",
	})
	require.NoError(t, err)

	newAssignee := uuid.New()
	updated, err := svc.Assign(context.Background(), uuid.New(), c.ID, newAssignee, "reassigning for coverage")
	require.NoError(t, err)
	assert.Equal(t, newAssignee, updated.AssignedTo)
}
