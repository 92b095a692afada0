// Package reporting implements the Reporting Service (§4.7): STR/CTR
// authoring from case or transaction context, review, filing with the
// NFIU export envelope, archival of the filed bundle, and compliance
// statistics. Grounded on the distilled source's reporting_service.py.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ngbank/aml-compliance/internal/apperr"
	"github.com/ngbank/aml-compliance/internal/audit"
	"github.com/ngbank/aml-compliance/internal/config"
	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/store"
)

// Archiver persists a filed report's NFIU export bundle for regulator
// re-delivery; narrowed to what the Reporting Service needs so tests can
// fake it without an S3 client.
type Archiver interface {
	StoreReportBundle(ctx context.Context, reportNumber string, export any) error
}

type Service struct {
	reports     store.ReportStore
	cases       store.CaseStore
	customers   store.CustomerStore
	txns        store.TransactionStore
	alerts      store.AlertStore
	archive     Archiver
	sink        *audit.Sink
	institution string
	now         func() time.Time
}

func NewService(reports store.ReportStore, cases store.CaseStore, customers store.CustomerStore, txns store.TransactionStore, alerts store.AlertStore, archive Archiver, sink *audit.Sink, compliance config.ComplianceConfig) *Service {
	return &Service{
		reports:     reports,
		cases:       cases,
		customers:   customers,
		txns:        txns,
		alerts:      alerts,
		archive:     archive,
		sink:        sink,
		institution: compliance.InstitutionName,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type CreateSTRInput struct {
	CaseID                 uuid.UUID
	Narrative              string
	SuspiciousActivityType string
	ActivityDescription    string
	TimelineOfEvents       string
	IncidentDateFrom       time.Time
	IncidentDateTo         time.Time
}

// CreateSTR authors a Suspicious Transaction Report from an investigated
// case, snapshotting the customer's subject information and totalling the
// case's transactions, mirroring create_str_report.
func (s *Service) CreateSTR(ctx context.Context, actor uuid.UUID, in CreateSTRInput) (*domain.Report, error) {
	c, err := s.cases.GetByID(ctx, in.CaseID)
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.GetByID(ctx, c.CustomerID)
	if err != nil {
		return nil, err
	}

	var transactions []*domain.Transaction
	total := decimal.Zero
	for _, txnID := range c.TransactionIDs {
		t, err := s.txns.GetByID(ctx, txnID)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
		total = total.Add(t.Money.Amount)
	}

	reportNumber, err := s.nextReportNumber(ctx, domain.ReportTypeSTR)
	if err != nil {
		return nil, err
	}

	subject := subjectInformationFor(customer)

	now := s.now()
	r := &domain.Report{
		ID:                     uuid.New(),
		ReportNumber:           reportNumber,
		ReportType:             domain.ReportTypeSTR,
		ReportCategory:         "suspicious_transaction",
		CaseID:                 &in.CaseID,
		CustomerID:             c.CustomerID,
		RelatedCustomers:       c.RelatedCustomers,
		TransactionIDs:         c.TransactionIDs,
		AlertIDs:               c.AlertIDs,
		Title:                  fmt.Sprintf("Suspicious Transaction Report - %s %s", customer.FirstName, customer.LastName),
		Narrative:              in.Narrative,
		Summary:                fmt.Sprintf("STR filed for %s involving %d transactions totaling %s NGN", in.SuspiciousActivityType, len(transactions), total.StringFixed(2)),
		SuspiciousActivityType: in.SuspiciousActivityType,
		ActivityDescription:    in.ActivityDescription,
		TimelineOfEvents:       in.TimelineOfEvents,
		TotalAmount:            total,
		Currency:               "NGN",
		SubjectInformation:     subject,
		EvidenceSummary:        evidenceSummary(c, transactions),
		InvestigationNotes:     notesText(c),
		Status:                 domain.ReportStatusDraft,
		PreparedBy:             actor,
		IncidentDateFrom:       in.IncidentDateFrom,
		IncidentDateTo:         in.IncidentDateTo,
		DetectionDate:          now,
		ExportFormat:           domain.ExportJSON,
		CreatedAt:              now,
		UpdatedAt:              now,
		CreatedBy:              actor,
	}

	if err := s.reports.Create(ctx, r); err != nil {
		return nil, err
	}

	caseExpectedUpdatedAt := c.UpdatedAt
	c.STRRequired = true
	c.STRFiled = false
	c.UpdatedAt = now
	if err := s.cases.Update(ctx, c, caseExpectedUpdatedAt); err != nil {
		return nil, err
	}

	if err := s.emit(ctx, actor, "str_report_created", "create", r.ID,
		fmt.Sprintf("STR report %s created for case %s", r.ReportNumber, c.CaseNumber),
		map[string]any{"case_id": in.CaseID, "total_amount": total.String()}); err != nil {
		return nil, err
	}

	return r, nil
}

type CreateCTRInput struct {
	CustomerID            uuid.UUID
	TransactionIDs        []uuid.UUID
	ReportingPeriodStart  time.Time
	ReportingPeriodEnd    time.Time
}

// CreateCTR authors a Currency Transaction Report over the subset of the
// given transactions that crossed the CTR threshold, mirroring
// create_ctr_report.
func (s *Service) CreateCTR(ctx context.Context, actor uuid.UUID, in CreateCTRInput) (*domain.Report, error) {
	customer, err := s.customers.GetByID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	var eligible []*domain.Transaction
	total := decimal.Zero
	for _, txnID := range in.TransactionIDs {
		t, err := s.txns.GetByID(ctx, txnID)
		if err != nil {
			return nil, err
		}
		if !t.AboveCTRThreshold {
			continue
		}
		eligible = append(eligible, t)
		total = total.Add(t.Money.Amount)
	}
	if len(eligible) == 0 {
		return nil, apperr.Validation("no_ctr_eligible_transactions", "no CTR-eligible transactions found")
	}

	reportNumber, err := s.nextReportNumber(ctx, domain.ReportTypeCTR)
	if err != nil {
		return nil, err
	}

	subject := subjectInformationFor(customer)

	now := s.now()
	r := &domain.Report{
		ID:                     uuid.New(),
		ReportNumber:           reportNumber,
		ReportType:             domain.ReportTypeCTR,
		ReportCategory:         "currency_transaction",
		CustomerID:             in.CustomerID,
		TransactionIDs:         in.TransactionIDs,
		Title:                  fmt.Sprintf("Currency Transaction Report - %s %s", customer.FirstName, customer.LastName),
		Narrative:              fmt.Sprintf("Currency transactions above reporting threshold for period %s to %s", in.ReportingPeriodStart.Format("2006-01-02"), in.ReportingPeriodEnd.Format("2006-01-02")),
		Summary:                fmt.Sprintf("CTR for %d transactions totaling %s NGN", len(eligible), total.StringFixed(2)),
		SuspiciousActivityType: "currency_transaction",
		ActivityDescription:    "Large currency transactions requiring regulatory reporting",
		TimelineOfEvents:       fmt.Sprintf("Transactions occurred between %s and %s", in.ReportingPeriodStart.Format("2006-01-02"), in.ReportingPeriodEnd.Format("2006-01-02")),
		TotalAmount:            total,
		Currency:               "NGN",
		SubjectInformation:     subject,
		Status:                 domain.ReportStatusDraft,
		PreparedBy:             actor,
		IncidentDateFrom:       in.ReportingPeriodStart,
		IncidentDateTo:         in.ReportingPeriodEnd,
		DetectionDate:          now,
		FilingRequirement:      "mandatory",
		ExportFormat:           domain.ExportJSON,
		CreatedAt:              now,
		UpdatedAt:              now,
		CreatedBy:              actor,
	}

	if err := s.reports.Create(ctx, r); err != nil {
		return nil, err
	}

	if err := s.emit(ctx, actor, "ctr_report_created", "create", r.ID,
		fmt.Sprintf("CTR report %s created for customer %s", r.ReportNumber, customer.CustomerID),
		map[string]any{"customer_id": in.CustomerID, "total_amount": total.String(), "transaction_count": len(eligible)}); err != nil {
		return nil, err
	}

	return r, nil
}

// Review records a QA decision on a draft report, mirroring review_report.
func (s *Service) Review(ctx context.Context, actor uuid.UUID, reportID uuid.UUID, notes string, approved bool) (*domain.Report, error) {
	r, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	expectedUpdatedAt := r.UpdatedAt
	if approved {
		r.Status = domain.ReportStatusApproved
		r.ApprovedBy = &actor
	} else {
		r.Status = domain.ReportStatusReview
	}
	r.ReviewedBy = &actor
	r.QAReviewed = true
	r.QAApproved = approved
	r.UpdatedAt = s.now()

	if err := s.reports.Update(ctx, r, expectedUpdatedAt); err != nil {
		return nil, err
	}

	decision := "Rejected"
	if approved {
		decision = "Approved"
	}
	if err := s.emit(ctx, actor, "report_reviewed", "review", r.ID,
		fmt.Sprintf("Report %s reviewed - %s", r.ReportNumber, decision),
		map[string]any{"approved": approved, "review_notes": notes}); err != nil {
		return nil, err
	}

	return r, nil
}

// File submits an approved report to the regulator, stamping the NFIU
// filing reference, generating the export envelope, archiving the
// bundle, and (for STR) propagating the reference back to the case,
// mirroring file_report_with_authorities.
func (s *Service) File(ctx context.Context, actor uuid.UUID, reportID uuid.UUID, filingMethod string) (*domain.Report, error) {
	r, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !r.QAApproved {
		return nil, apperr.State("not_approved", "report must be approved before filing")
	}
	if filingMethod == "" {
		filingMethod = "electronic"
	}

	expectedUpdatedAt := r.UpdatedAt
	now := s.now()
	export := s.buildNFIUExport(r, now)

	filingReference := fmt.Sprintf("NFIU-%s-%s", now.Format("20060102"), uuid.New().String()[:8])

	r.Filed = true
	r.FilingDate = &now
	r.FilingMethod = filingMethod
	r.FilingReference = filingReference
	r.FiledBy = &actor
	r.Status = domain.ReportStatusFiled
	r.ExportData = export
	r.UpdatedAt = now

	if err := s.reports.Update(ctx, r, expectedUpdatedAt); err != nil {
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.StoreReportBundle(ctx, r.ReportNumber, export); err != nil {
			return nil, apperr.Dependency("archive_store_failed", err)
		}
	}

	if r.CaseID != nil && r.ReportType == domain.ReportTypeSTR {
		c, err := s.cases.GetByID(ctx, *r.CaseID)
		if err == nil {
			caseExpectedUpdatedAt := c.UpdatedAt
			c.STRFiled = true
			c.STRReference = filingReference
			c.STRFiledDate = &now
			c.UpdatedAt = now
			if err := s.cases.Update(ctx, c, caseExpectedUpdatedAt); err != nil {
				return nil, err
			}
		}
	}

	if err := s.emit(ctx, actor, "report_filed", "file", r.ID,
		fmt.Sprintf("Report %s filed with %s", r.ReportNumber, r.RegulatoryAuthority),
		map[string]any{"filing_reference": filingReference, "filing_method": filingMethod}); err != nil {
		return nil, err
	}

	return r, nil
}

// buildNFIUExport constructs the fixed-shape export envelope §6 requires,
// mirroring generate_nfiu_export_data. filing_institution is configured
// rather than the distilled source's hard-coded literal.
func (s *Service) buildNFIUExport(r *domain.Report, now time.Time) *domain.NFIUExport {
	return &domain.NFIUExport{
		ReportHeader: domain.ReportHeader{
			ReportNumber:      r.ReportNumber,
			ReportType:        r.ReportType,
			FilingInstitution: s.institution,
			FilingDate:        now,
			ReportingPeriod:   domain.ReportingPeriod{From: r.IncidentDateFrom, To: r.IncidentDateTo},
		},
		SubjectInformation: r.SubjectInformation,
		TransactionDetails: domain.TransactionDetails{
			TransactionCount: len(r.TransactionIDs),
			TotalAmount:      r.TotalAmount,
			Currency:         r.Currency,
		},
		Narrative: r.Narrative,
		SuspiciousActivity: domain.SuspiciousActivity{
			Type:        r.SuspiciousActivityType,
			Description: r.ActivityDescription,
		},
		ComplianceOfficer: domain.ComplianceOfficer{
			PreparedBy: r.PreparedBy.String(),
			ReviewedBy: uuidOrEmpty(r.ReviewedBy),
			ApprovedBy: uuidOrEmpty(r.ApprovedBy),
		},
	}
}

// PendingReports returns draft/review/approved reports not yet filed,
// optionally scoped to a report type, mirroring get_pending_reports.
func (s *Service) PendingReports(ctx context.Context, actor uuid.UUID, reportType *domain.ReportType) ([]*domain.Report, error) {
	var collected []*domain.Report
	for _, status := range []domain.ReportStatus{domain.ReportStatusDraft, domain.ReportStatusReview, domain.ReportStatusApproved} {
		st := status
		reports, _, err := s.reports.List(ctx, store.ReportFilter{ReportType: reportType, Status: &st, Limit: 1000})
		if err != nil {
			return nil, err
		}
		collected = append(collected, reports...)
	}

	if err := s.emit(ctx, actor, "pending_reports_accessed", "view", uuid.Nil,
		fmt.Sprintf("Accessed %d pending reports", len(collected)), nil); err != nil {
		return nil, err
	}

	return collected, nil
}

// Statistics aggregates filing counts and category breakdowns for a
// reporting period, mirroring generate_compliance_statistics.
func (s *Service) Statistics(ctx context.Context, actor uuid.UUID, from, to time.Time) (store.ReportStatistics, error) {
	stats, err := s.reports.Statistics(ctx, from, to)
	if err != nil {
		return store.ReportStatistics{}, err
	}

	if err := s.emit(ctx, actor, "compliance_statistics_generated", "generate", uuid.Nil,
		fmt.Sprintf("Compliance statistics generated for period %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		map[string]any{"total_reports": stats.TotalReports, "filed_reports": stats.FiledReports}); err != nil {
		return store.ReportStatistics{}, err
	}

	return stats, nil
}

func (s *Service) nextReportNumber(ctx context.Context, reportType domain.ReportType) (string, error) {
	now := s.now()
	year, month, _ := now.Date()
	seq, err := s.reports.NextReportSequence(ctx, reportType, year, int(month))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d%02d-%04d", reportType, year, int(month), seq), nil
}

func subjectInformationFor(c *domain.Customer) domain.SubjectInformation {
	return domain.SubjectInformation{
		CustomerID:     c.CustomerID,
		FullName:       fmt.Sprintf("%s %s", c.FirstName, c.LastName),
		Nationality:    c.Nationality,
		RiskCategory:   string(c.RiskCategory),
		PEPStatus:      c.PEPStatus,
		AccountNumbers: c.AccountNumbers,
	}
}

func evidenceSummary(c *domain.Case, transactions []*domain.Transaction) string {
	total := decimal.Zero
	suspicious := 0
	for _, t := range transactions {
		total = total.Add(t.Money.Amount)
		if t.IsSuspicious {
			suspicious++
		}
	}

	summary := fmt.Sprintf("Analysis of %d transactions; total transaction amount: %s NGN", len(transactions), total.StringFixed(2))
	if suspicious > 0 {
		summary += fmt.Sprintf("; %d transactions flagged as suspicious", suspicious)
	}
	if len(c.EvidenceCollected) > 0 {
		summary += fmt.Sprintf("; %d pieces of additional evidence collected", len(c.EvidenceCollected))
	}
	if len(c.InterviewsConducted) > 0 {
		summary += fmt.Sprintf("; %d customer interviews conducted", len(c.InterviewsConducted))
	}
	return summary
}

func notesText(c *domain.Case) string {
	var text string
	for _, n := range c.Notes {
		text += fmt.Sprintf("[%s] %s\n", n.Timestamp.Format(time.RFC3339), n.Text)
	}
	return text
}

func uuidOrEmpty(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func (s *Service) emit(ctx context.Context, actor uuid.UUID, eventType, action string, resourceID uuid.UUID, description string, details map[string]any) error {
	log := domain.NewAuditLog(domain.CategoryReporting, action)
	log.EventType = eventType
	log.UserID = &actor
	log.ResourceType = "report"
	log.ResourceID = resourceID.String()
	log.Description = description
	log.Details = details
	log.RegulatorySignificance = true
	return s.sink.Emit(ctx, log)
}
