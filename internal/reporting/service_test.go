package reporting

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
	"github.com/ngbank/aml-compliance/internal/config"
	"github.com/ngbank/aml-compliance/internal/crypto"
	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/store"
)

type fakeReportStore struct {
	byID map[uuid.UUID]*domain.Report
	seq  int
	stats store.ReportStatistics
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{byID: map[uuid.UUID]*domain.Report{}}
}

func (f *fakeReportStore) Create(ctx context.Context, r *domain.Report) error {
	f.byID[r.ID] = r
	return nil
}
func (f *fakeReportStore) Update(ctx context.Context, r *domain.Report, expectedUpdatedAt time.Time) error {
	f.byID[r.ID] = r
	return nil
}
func (f *fakeReportStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("report_not_found", "not found")
	}
	return r, nil
}
func (f *fakeReportStore) GetByReportNumber(ctx context.Context, reportNumber string) (*domain.Report, error) {
	for _, r := range f.byID {
		if r.ReportNumber == reportNumber {
			return r, nil
		}
	}
	return nil, apperr.NotFound("report_not_found", "not found")
}
func (f *fakeReportStore) List(ctx context.Context, filter store.ReportFilter) ([]*domain.Report, int64, error) {
	var out []*domain.Report
	for _, r := range f.byID {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}
func (f *fakeReportStore) NextReportSequence(ctx context.Context, reportType domain.ReportType, year int, month int) (int, error) {
	f.seq++
	return f.seq, nil
}
func (f *fakeReportStore) Statistics(ctx context.Context, from, to time.Time) (store.ReportStatistics, error) {
	return f.stats, nil
}

type fakeCaseStore struct {
	byID map[uuid.UUID]*domain.Case
}

func newFakeCaseStore() *fakeCaseStore {
	return &fakeCaseStore{byID: map[uuid.UUID]*domain.Case{}}
}

func (f *fakeCaseStore) Create(ctx context.Context, c *domain.Case) error { f.byID[c.ID] = c; return nil }
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
	return nil, apperr.NotFound("case_not_found", "not found")
}
func (f *fakeCaseStore) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Case, error) {
	return nil, nil
}
func (f *fakeCaseStore) List(ctx context.Context, filter store.CaseFilter) ([]*domain.Case, int64, error) {
	return nil, 0, nil
}
func (f *fakeCaseStore) NextCaseSequence(ctx context.Context, year int, month int) (int, error) {
	return 1, nil
}

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
	return nil, apperr.NotFound("customer_not_found", "not found")
}
func (f *fakeCustomerStore) List(ctx context.Context, filter store.CustomerFilter) ([]*domain.Customer, int64, error) {
	return nil, 0, nil
}

type fakeTransactionStore struct {
	byID map[uuid.UUID]*domain.Transaction
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{byID: map[uuid.UUID]*domain.Transaction{}}
}

func (f *fakeTransactionStore) Create(ctx context.Context, t *domain.Transaction) error {
	f.byID[t.ID] = t
	return nil
}
func (f *fakeTransactionStore) Update(ctx context.Context, t *domain.Transaction) error {
	f.byID[t.ID] = t
	return nil
}
func (f *fakeTransactionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("txn_not_found", "not found")
	}
	return t, nil
}
func (f *fakeTransactionStore) GetByReference(ctx context.Context, ref string) (*domain.Transaction, error) {
	return nil, apperr.NotFound("txn_not_found", "not found")
}
func (f *fakeTransactionStore) ListByCustomerSince(ctx context.Context, customerID uuid.UUID, since time.Time) ([]*domain.Transaction, error) {
	return nil, nil
}
func (f *fakeTransactionStore) List(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, int64, error) {
	return nil, 0, nil
}

type fakeAlertStore struct{}

func (fakeAlertStore) Create(ctx context.Context, a *domain.Alert) error { return nil }
func (fakeAlertStore) Update(ctx context.Context, a *domain.Alert) error { return nil }
func (fakeAlertStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	return nil, apperr.NotFound("alert_not_found", "not found")
}
func (fakeAlertStore) GetByAlertID(ctx context.Context, alertID string) (*domain.Alert, error) {
	return nil, apperr.NotFound("alert_not_found", "not found")
}
func (fakeAlertStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Alert, error) {
	return nil, nil
}
func (fakeAlertStore) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Alert, error) {
	return nil, nil
}
func (fakeAlertStore) List(ctx context.Context, filter store.AlertFilter) ([]*domain.Alert, int64, error) {
	return nil, 0, nil
}

type fakeArchiver struct {
	calls  int
	lastID string
	fail   bool
}

func (f *fakeArchiver) StoreReportBundle(ctx context.Context, reportNumber string, export any) error {
	f.calls++
	f.lastID = reportNumber
	if f.fail {
		return assertErr
	}
	return nil
}

var assertErr = apperr.Dependency("archive_unreachable", context.DeadlineExceeded)

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

func newTestService(reports *fakeReportStore, cases *fakeCaseStore, customers *fakeCustomerStore, txns *fakeTransactionStore, archive Archiver, t *testing.T) *Service {
	return NewService(reports, cases, customers, txns, fakeAlertStore{}, archive, testSink(t), config.ComplianceConfig{InstitutionName: "Niger Gateway Bank"})
}

func seedCaseWithTransactions(t *testing.T, cases *fakeCaseStore, customers *fakeCustomerStore, txns *fakeTransactionStore) *domain.Case {
	t.Helper()
	customer := domain.NewCustomer(uuid.New())
	customer.FirstName = "Chinedu"
	customer.LastName = "Eze"
	require.NoError(t, customers.Create(context.Background(), customer))

	tx := &domain.Transaction{ID: uuid.New(), Money: domain.NGN(decimal.NewFromInt(6_000_000)), IsSuspicious: true}
	tx.DeriveSystemFields()
	require.NoError(t, txns.Create(context.Background(), tx))

	c := &domain.Case{
		ID:             uuid.New(),
		CaseNumber:     "CASE-202601-0001",
		CustomerID:     customer.ID,
		TransactionIDs: []uuid.UUID{tx.ID},
	}
	require.NoError(t, cases.Create(context.Background(), c))
	return c
}

func TestCreateSTRSnapshotsSubjectAndTotals(t *testing.T) {
	reports := newFakeReportStore()
	cases := newFakeCaseStore()
	customers := newFakeCustomerStore()
	txns := newFakeTransactionStore()
	svc := newTestService(reports, cases, customers, txns, &fakeArchiver{}, t)

	c := seedCaseWithTransactions(t, cases, customers, txns)

	r, err := svc.CreateSTR(context.Background(), uuid.New(), CreateSTRInput{
		CaseID:                 c.ID,
		Narrative:              "Structuring pattern observed",
		SuspiciousActivityType: "structuring",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ReportTypeSTR, r.ReportType)
	assert.True(t, r.TotalAmount.Equal(decimal.NewFromInt(6_000_000)))
	assert.Equal(t, "Chinedu Eze", r.SubjectInformation.FullName)
	assert.Contains(t, r.ReportNumber, "STR-")

	updatedCase, err := cases.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, updatedCase.STRRequired)
}

func TestCreateCTRFiltersToEligibleTransactions(t *testing.T) {
	reports := newFakeReportStore()
	cases := newFakeCaseStore()
	customers := newFakeCustomerStore()
	txns := newFakeTransactionStore()
	svc := newTestService(reports, cases, customers, txns, &fakeArchiver{}, t)

	customer := domain.NewCustomer(uuid.New())
	require.NoError(t, customers.Create(context.Background(), customer))

	above := &domain.Transaction{ID: uuid.New(), Money: domain.NGN(decimal.NewFromInt(6_000_000))}
	above.DeriveSystemFields()
	below := &domain.Transaction{ID: uuid.New(), Money: domain.NGN(decimal.NewFromInt(1_000))}
	below.DeriveSystemFields()
	require.NoError(t, txns.Create(context.Background(), above))
	require.NoError(t, txns.Create(context.Background(), below))

	r, err := svc.CreateCTR(context.Background(), uuid.New(), CreateCTRInput{
		CustomerID:     customer.ID,
		TransactionIDs: []uuid.UUID{above.ID, below.ID},
	})
	require.NoError(t, err)
	assert.True(t, r.TotalAmount.Equal(decimal.NewFromInt(6_000_000)))
}

func TestCreateCTRRequiresEligibleTransactions(t *testing.T) {
	reports := newFakeReportStore()
	cases := newFakeCaseStore()
	customers := newFakeCustomerStore()
	txns := newFakeTransactionStore()
	svc := newTestService(reports, cases, customers, txns, &fakeArchiver{}, t)

	customer := domain.NewCustomer(uuid.New())
	require.NoError(t, customers.Create(context.Background(), customer))
	below := &domain.Transaction{ID: uuid.New(), Money: domain.NGN(decimal.NewFromInt(1_000))}
	below.DeriveSystemFields()
	require.NoError(t, txns.Create(context.Background(), below))

	_, err := svc.CreateCTR(context.Background(), uuid.New(), CreateCTRInput{
		CustomerID:     customer.ID,
		TransactionIDs: []uuid.UUID{below.ID},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestFileRequiresApproval(t *testing.T) {
	reports := newFakeReportStore()
	cases := newFakeCaseStore()
	customers := newFakeCustomerStore()
	txns := newFakeTransactionStore()
	svc := newTestService(reports, cases, customers, txns, &fakeArchiver{}, t)

	c := seedCaseWithTransactions(t, cases, customers, txns)
	r, err := svc.CreateSTR(context.Background(), uuid.New(), CreateSTRInput{CaseID: c.ID, SuspiciousActivityType: "structuring"})
	require.NoError(t, err)

	_, err = svc.File(context.Background(), uuid.New(), r.ID, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindState, apperr.KindOf(err))
}

func TestFilePropagatesSTRReferenceToCase(t *testing.T) {
	reports := newFakeReportStore()
	cases := newFakeCaseStore()
	customers := newFakeCustomerStore()
	txns := newFakeTransactionStore()
	archive := &fakeArchiver{}
	svc := newTestService(reports, cases, customers, txns, archive, t)

	c := seedCaseWithTransactions(t, cases, customers, txns)
	r, err := svc.CreateSTR(context.Background(), uuid.New(), CreateSTRInput{CaseID: c.ID, SuspiciousActivityType: "structuring"})
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), uuid.New(), r.ID, "looks good", true)
	require.NoError(t, err)

	filed, err := svc.File(context.Background(), uuid.New(), r.ID, "electronic")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusFiled, filed.Status)
	assert.Equal(t, 1, archive.calls)
	assert.Equal(t, filed.ReportNumber, archive.lastID)

	updatedCase, err := cases.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, updatedCase.STRFiled)
	assert.Equal(t, filed.FilingReference, updatedCase.STRReference)
}

func TestFileWrapsArchiveFailureAsDependency(t *testing.T) {
	reports := newFakeReportStore()
	cases := newFakeCaseStore()
	customers := newFakeCustomerStore()
	txns := newFakeTransactionStore()
	archive := &fakeArchiver{fail: true}
	svc := newTestService(reports, cases, customers, txns, archive, t)

	c := seedCaseWithTransactions(t, cases, customers, txns)
	r, err := svc.CreateSTR(context.Background(), uuid.New(), CreateSTRInput{CaseID: c.ID, SuspiciousActivityType: "structuring"})
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), uuid.New(), r.ID, "ok", true)
	require.NoError(t, err)

	_, err = svc.File(context.Background(), uuid.New(), r.ID, "electronic")
	require.Error(t, err)
	assert.Equal(t, apperr.KindDependency, apperr.KindOf(err))
}

func TestPendingReportsCollectsAcrossStatuses(t *testing.T) {
	reports := newFakeReportStore()
	cases := newFakeCaseStore()
	customers := newFakeCustomerStore()
	txns := newFakeTransactionStore()
	svc := newTestService(reports, cases, customers, txns, &fakeArchiver{}, t)

	c := seedCaseWithTransactions(t, cases, customers, txns)
	_, err := svc.CreateSTR(context.Background(), uuid.New(), CreateSTRInput{CaseID: c.ID, SuspiciousActivityType: "structuring"})
	require.NoError(t, err)

	pending, err := svc.PendingReports(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
