// Package store declares the persistence contracts every service in this
// module depends on. It deliberately says nothing about Postgres,
// Elasticsearch, or any other backend — concrete implementations live
// under internal/repository/*. Splitting the contract from the driver
// lets the Monitoring Engine, Rule Registry, and the rest be exercised
// against an in-memory fake in tests without pulling in pgx.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ngbank/aml-compliance/internal/domain"
)

// CustomerStore is the persistence contract for the Customer entity family.
type CustomerStore interface {
	Create(ctx context.Context, c *domain.Customer) error
	Update(ctx context.Context, c *domain.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	GetByCustomerID(ctx context.Context, customerID string) (*domain.Customer, error)
	List(ctx context.Context, filter CustomerFilter) ([]*domain.Customer, int64, error)
}

type CustomerFilter struct {
	RiskCategory *domain.RiskCategory
	KYCStatus    *domain.KYCStatus
	Nationality  *string
	PEPStatus    *bool
	Limit        int
	Offset       int
}

// TransactionStore is the persistence contract for the Transaction entity.
type TransactionStore interface {
	Create(ctx context.Context, t *domain.Transaction) error
	Update(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByReference(ctx context.Context, ref string) (*domain.Transaction, error)
	// ListByCustomerSince supports the Monitoring Engine's velocity and
	// structuring predicates (§4.4), which need every completed
	// transaction for a customer within a rolling window.
	ListByCustomerSince(ctx context.Context, customerID uuid.UUID, since time.Time) ([]*domain.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, int64, error)
}

type TransactionFilter struct {
	CustomerID *uuid.UUID
	Status     *domain.TransactionStatus
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// RuleStore is the persistence contract for the Rule Registry (§4.3).
type RuleStore interface {
	Create(ctx context.Context, r *domain.Rule) error
	// Update persists r, requiring the row's updated_at still match
	// expectedUpdatedAt (the value read back by the caller's prior GetByID)
	// so a concurrent writer's change can't be silently overwritten.
	// Returns a KindConflict error when the row exists but has moved on.
	Update(ctx context.Context, r *domain.Rule, expectedUpdatedAt time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Rule, error)
	GetByCode(ctx context.Context, ruleCode string) (*domain.Rule, error)
	// ListActive returns every rule with status=active, in no particular
	// order; the Monitoring Engine applies PredicateEvaluationOrder
	// within each rule, not across rules.
	ListActive(ctx context.Context) ([]*domain.Rule, error)
	List(ctx context.Context, filter RuleFilter) ([]*domain.Rule, int64, error)
}

type RuleFilter struct {
	Status   *domain.RuleStatus
	Category *string
	Limit    int
	Offset   int
}

// AlertStore is the persistence contract for the Alert entity family.
type AlertStore interface {
	Create(ctx context.Context, a *domain.Alert) error
	Update(ctx context.Context, a *domain.Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error)
	GetByAlertID(ctx context.Context, alertID string) (*domain.Alert, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Alert, error)
	// ListOverdue returns open/investigating alerts whose sla_deadline has
	// passed and sla_breached is still false. No service operation calls
	// it; the overdue scan (§4.6) covers cases only.
	ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Alert, error)
	List(ctx context.Context, filter AlertFilter) ([]*domain.Alert, int64, error)
}

type AlertFilter struct {
	CustomerID *uuid.UUID
	Status     *domain.AlertStatus
	Severity   *domain.AlertSeverity
	CaseID     *uuid.UUID
	Limit      int
	Offset     int
}

// CaseStore is the persistence contract for the Case Workflow (§4.6).
type CaseStore interface {
	Create(ctx context.Context, c *domain.Case) error
	// Update persists c, requiring the row's updated_at still match
	// expectedUpdatedAt; see RuleStore.Update.
	Update(ctx context.Context, c *domain.Case, expectedUpdatedAt time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Case, error)
	GetByCaseNumber(ctx context.Context, caseNumber string) (*domain.Case, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Case, error)
	List(ctx context.Context, filter CaseFilter) ([]*domain.Case, int64, error)
	// NextCaseSequence returns the next sequence number for CASE-YYYYMM-NNNN
	// within the given year/month, serialised via a row lock so concurrent
	// case creation never collides on a case number (§6).
	NextCaseSequence(ctx context.Context, year int, month int) (int, error)
}

type CaseFilter struct {
	AssignedTo *uuid.UUID
	Status     *domain.CaseStatus
	RiskLevel  *domain.CaseRiskLevel
	Limit      int
	Offset     int
}

// ReportStore is the persistence contract for the Reporting Service (§4.7).
type ReportStore interface {
	Create(ctx context.Context, r *domain.Report) error
	// Update persists r, requiring the row's updated_at still match
	// expectedUpdatedAt; see RuleStore.Update.
	Update(ctx context.Context, r *domain.Report, expectedUpdatedAt time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error)
	GetByReportNumber(ctx context.Context, reportNumber string) (*domain.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]*domain.Report, int64, error)
	// NextReportSequence returns the next sequence number for
	// {STR|CTR|SAR}-YYYYMM-NNNN, scoped per report type per month (§6).
	NextReportSequence(ctx context.Context, reportType domain.ReportType, year int, month int) (int, error)
	// Statistics aggregates filed/draft counts for the reporting
	// statistics operation (§4.7).
	Statistics(ctx context.Context, from, to time.Time) (ReportStatistics, error)
}

type ReportFilter struct {
	ReportType *domain.ReportType
	Status     *domain.ReportStatus
	CustomerID *uuid.UUID
	Limit      int
	Offset     int
}

type ReportStatistics struct {
	TotalReports  int64
	FiledReports  int64
	DraftReports  int64
	STRCount      int64
	CTRCount      int64
	SARCount      int64
}

// AuditLogStore is the persistence contract for the append-only audit log
// (§4.1, §4.8). No Update or Delete method is declared: the Audit Sink and
// Audit & Forensics components only ever insert and read.
type AuditLogStore interface {
	Create(ctx context.Context, e *domain.AuditLog) error
	Search(ctx context.Context, filter domain.AuditLogFilter) (*domain.AuditLogPage, error)
	GetLastSignature(ctx context.Context) (string, error)
	// CountByUserSince and CountSuspiciousSince support the Audit &
	// Forensics suspicious-pattern detectors (§4.8).
	CountByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	CountSuspiciousSince(ctx context.Context, since time.Time) (int64, error)
}
