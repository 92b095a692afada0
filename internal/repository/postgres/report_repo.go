package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ngbank/aml-compliance/internal/apperr"
	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/store"
	"github.com/ngbank/aml-compliance/internal/store/query"
)

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func (r *ReportRepository) Create(ctx context.Context, rep *domain.Report) error {
	const q = `
		INSERT INTO reports (
			id, report_number, report_type, report_category,
			case_id, customer_id, related_customers, transaction_ids, alert_ids,
			title, narrative, summary,
			regulatory_authority, filing_requirement,
			suspicious_activity_type, activity_description, timeline_of_events, total_amount, currency,
			subject_information,
			evidence_summary, investigation_notes,
			status, prepared_by, reviewed_by, approved_by,
			incident_date_from, incident_date_to, detection_date,
			filed, filing_date, filing_method, filing_reference, filed_by,
			acknowledged, acknowledgment_date, acknowledgment_reference,
			qa_reviewed, qa_approved, legal_reviewed,
			export_format, export_data,
			retention_period,
			created_at, updated_at, created_by
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,$9,
			$10,$11,$12,
			$13,$14,
			$15,$16,$17,$18,$19,
			$20,
			$21,$22,
			$23,$24,$25,$26,
			$27,$28,$29,
			$30,$31,$32,$33,$34,
			$35,$36,$37,
			$38,$39,$40,
			$41,$42,
			$43,
			$44,$45,$46
		)
	`
	_, err := querierFrom(ctx, r.pool).Exec(ctx, q,
		rep.ID, rep.ReportNumber, rep.ReportType, rep.ReportCategory,
		rep.CaseID, rep.CustomerID, rep.RelatedCustomers, rep.TransactionIDs, rep.AlertIDs,
		rep.Title, rep.Narrative, rep.Summary,
		rep.RegulatoryAuthority, rep.FilingRequirement,
		rep.SuspiciousActivityType, rep.ActivityDescription, rep.TimelineOfEvents, rep.TotalAmount, rep.Currency,
		rep.SubjectInformation,
		rep.EvidenceSummary, rep.InvestigationNotes,
		rep.Status, rep.PreparedBy, rep.ReviewedBy, rep.ApprovedBy,
		rep.IncidentDateFrom, rep.IncidentDateTo, rep.DetectionDate,
		rep.Filed, rep.FilingDate, rep.FilingMethod, rep.FilingReference, rep.FiledBy,
		rep.Acknowledged, rep.AcknowledgmentDate, rep.AcknowledgmentReference,
		rep.QAReviewed, rep.QAApproved, rep.LegalReviewed,
		rep.ExportFormat, rep.ExportData,
		rep.RetentionPeriod,
		rep.CreatedAt, rep.UpdatedAt, rep.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Update persists rep, requiring the stored row's updated_at still equal
// expectedUpdatedAt; see RuleRepository.Update for the stale-write
// rationale.
func (r *ReportRepository) Update(ctx context.Context, rep *domain.Report, expectedUpdatedAt time.Time) error {
	const q = `
		UPDATE reports SET
			narrative=$2, summary=$3,
			activity_description=$4, timeline_of_events=$5,
			evidence_summary=$6, investigation_notes=$7,
			status=$8, reviewed_by=$9, approved_by=$10,
			filed=$11, filing_date=$12, filing_method=$13, filing_reference=$14, filed_by=$15,
			acknowledged=$16, acknowledgment_date=$17, acknowledgment_reference=$18,
			qa_reviewed=$19, qa_approved=$20, legal_reviewed=$21,
			export_format=$22, export_data=$23, updated_at=$24
		WHERE id = $1 AND updated_at = $25
	`
	querier := querierFrom(ctx, r.pool)
	tag, err := querier.Exec(ctx, q,
		rep.ID, rep.Narrative, rep.Summary,
		rep.ActivityDescription, rep.TimelineOfEvents,
		rep.EvidenceSummary, rep.InvestigationNotes,
		rep.Status, rep.ReviewedBy, rep.ApprovedBy,
		rep.Filed, rep.FilingDate, rep.FilingMethod, rep.FilingReference, rep.FiledBy,
		rep.Acknowledged, rep.AcknowledgmentDate, rep.AcknowledgmentReference,
		rep.QAReviewed, rep.QAApproved, rep.LegalReviewed,
		rep.ExportFormat, rep.ExportData, rep.UpdatedAt,
		expectedUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, existsErr := existsByID(ctx, querier, "reports", rep.ID)
		if existsErr != nil {
			return fmt.Errorf("check report existence: %w", existsErr)
		}
		if exists {
			return apperr.Conflict("stale_write", "report was modified by another request; reload and retry")
		}
		return apperr.NotFound("report_not_found", "report does not exist")
	}
	return nil
}

const reportColumns = `
	id, report_number, report_type, report_category,
	case_id, customer_id, related_customers, transaction_ids, alert_ids,
	title, narrative, summary,
	regulatory_authority, filing_requirement,
	suspicious_activity_type, activity_description, timeline_of_events, total_amount, currency,
	subject_information,
	evidence_summary, investigation_notes,
	status, prepared_by, reviewed_by, approved_by,
	incident_date_from, incident_date_to, detection_date,
	filed, filing_date, filing_method, filing_reference, filed_by,
	acknowledged, acknowledgment_date, acknowledgment_reference,
	qa_reviewed, qa_approved, legal_reviewed,
	export_format, export_data,
	retention_period,
	created_at, updated_at, created_by
`

func scanReport(row pgx.Row) (*domain.Report, error) {
	var rep domain.Report
	err := row.Scan(
		&rep.ID, &rep.ReportNumber, &rep.ReportType, &rep.ReportCategory,
		&rep.CaseID, &rep.CustomerID, &rep.RelatedCustomers, &rep.TransactionIDs, &rep.AlertIDs,
		&rep.Title, &rep.Narrative, &rep.Summary,
		&rep.RegulatoryAuthority, &rep.FilingRequirement,
		&rep.SuspiciousActivityType, &rep.ActivityDescription, &rep.TimelineOfEvents, &rep.TotalAmount, &rep.Currency,
		&rep.SubjectInformation,
		&rep.EvidenceSummary, &rep.InvestigationNotes,
		&rep.Status, &rep.PreparedBy, &rep.ReviewedBy, &rep.ApprovedBy,
		&rep.IncidentDateFrom, &rep.IncidentDateTo, &rep.DetectionDate,
		&rep.Filed, &rep.FilingDate, &rep.FilingMethod, &rep.FilingReference, &rep.FiledBy,
		&rep.Acknowledged, &rep.AcknowledgmentDate, &rep.AcknowledgmentReference,
		&rep.QAReviewed, &rep.QAApproved, &rep.LegalReviewed,
		&rep.ExportFormat, &rep.ExportData,
		&rep.RetentionPeriod,
		&rep.CreatedAt, &rep.UpdatedAt, &rep.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("report_not_found", "report does not exist")
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return &rep, nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	q := fmt.Sprintf("SELECT %s FROM reports WHERE id = $1", reportColumns)
	return scanReport(querierFrom(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *ReportRepository) GetByReportNumber(ctx context.Context, reportNumber string) (*domain.Report, error) {
	q := fmt.Sprintf("SELECT %s FROM reports WHERE report_number = $1", reportColumns)
	return scanReport(querierFrom(ctx, r.pool).QueryRow(ctx, q, reportNumber))
}

func (r *ReportRepository) List(ctx context.Context, filter store.ReportFilter) ([]*domain.Report, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	b := query.New()
	b.AddIf(filter.ReportType != nil, "report_type", query.OpEqual, filter.ReportType).
		AddIf(filter.Status != nil, "status", query.OpEqual, filter.Status).
		AddIf(filter.CustomerID != nil, "customer_id", query.OpEqual, filter.CustomerID)
	where, args := b.Render()

	var total int64
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM reports WHERE %s", where)
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	idx := b.NextIndex()
	listQ := fmt.Sprintf("SELECT %s FROM reports WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		reportColumns, where, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querierFrom(ctx, r.pool).Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []*domain.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rep)
	}
	return out, total, nil
}

// NextReportSequence issues the next {STR|CTR|SAR}-YYYYMM sequence number
// under a row lock on report_sequences, scoped per report type per month
// (§6).
func (r *ReportRepository) NextReportSequence(ctx context.Context, reportType domain.ReportType, year int, month int) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin sequence tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var seq int
	err = tx.QueryRow(ctx, `
		INSERT INTO report_sequences (report_type, year, month, next_value)
		VALUES ($1, $2, $3, 2)
		ON CONFLICT (report_type, year, month) DO UPDATE SET next_value = report_sequences.next_value + 1
		RETURNING next_value - 1
	`, reportType, year, month).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("advance report sequence: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit sequence tx: %w", err)
	}
	return seq, nil
}

func (r *ReportRepository) Statistics(ctx context.Context, from, to time.Time) (store.ReportStatistics, error) {
	const q = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE filed = TRUE),
			COUNT(*) FILTER (WHERE status = 'draft'),
			COUNT(*) FILTER (WHERE report_type = 'STR'),
			COUNT(*) FILTER (WHERE report_type = 'CTR'),
			COUNT(*) FILTER (WHERE report_type = 'SAR')
		FROM reports
		WHERE created_at >= $1 AND created_at <= $2
	`
	var stats store.ReportStatistics
	err := querierFrom(ctx, r.pool).QueryRow(ctx, q, from, to).Scan(
		&stats.TotalReports, &stats.FiledReports, &stats.DraftReports,
		&stats.STRCount, &stats.CTRCount, &stats.SARCount,
	)
	if err != nil {
		return store.ReportStatistics{}, fmt.Errorf("report statistics: %w", err)
	}
	return stats, nil
}
