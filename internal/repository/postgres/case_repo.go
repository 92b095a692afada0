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

type CaseRepository struct {
	pool *pgxpool.Pool
}

func NewCaseRepository(pool *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{pool: pool}
}

func (r *CaseRepository) Create(ctx context.Context, c *domain.Case) error {
	const q = `
		INSERT INTO cases (
			id, case_number, case_type, case_category,
			customer_id, related_customers, alert_ids, transaction_ids,
			title, description, summary,
			priority, risk_level,
			status, investigation_stage,
			assigned_to, reviewer, approver, team_members,
			opened_at, assigned_at, investigation_started_at, review_started_at, closed_at,
			sla_deadline, sla_extended, sla_extension_reason, sla_breached,
			notes, evidence_collected, interviews_conducted,
			findings, recommendations, decision, actions_taken,
			str_required, str_filed, str_reference, str_filed_date,
			ctr_required, ctr_filed, ctr_reference, ctr_filed_date,
			qa_reviewed, qa_approved,
			closure_reason, closure_notes, closed_by,
			created_at, updated_at, created_by
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,
			$9,$10,$11,
			$12,$13,
			$14,$15,
			$16,$17,$18,$19,
			$20,$21,$22,$23,$24,
			$25,$26,$27,$28,
			$29,$30,$31,
			$32,$33,$34,$35,
			$36,$37,$38,$39,
			$40,$41,$42,$43,
			$44,$45,
			$46,$47,$48,
			$49,$50,$51
		)
	`
	_, err := querierFrom(ctx, r.pool).Exec(ctx, q,
		c.ID, c.CaseNumber, c.CaseType, c.CaseCategory,
		c.CustomerID, c.RelatedCustomers, c.AlertIDs, c.TransactionIDs,
		c.Title, c.Description, c.Summary,
		c.Priority, c.RiskLevel,
		c.Status, c.InvestigationStage,
		c.AssignedTo, c.Reviewer, c.Approver, c.TeamMembers,
		c.OpenedAt, c.AssignedAt, c.InvestigationStartedAt, c.ReviewStartedAt, c.ClosedAt,
		c.SLADeadline, c.SLAExtended, c.SLAExtensionReason, c.SLABreached,
		c.Notes, c.EvidenceCollected, c.InterviewsConducted,
		c.Findings, c.Recommendations, c.Decision, c.ActionsTaken,
		c.STRRequired, c.STRFiled, c.STRReference, c.STRFiledDate,
		c.CTRRequired, c.CTRFiled, c.CTRReference, c.CTRFiledDate,
		c.QAReviewed, c.QAApproved,
		c.ClosureReason, c.ClosureNotes, c.ClosedBy,
		c.CreatedAt, c.UpdatedAt, c.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

// Update persists c, requiring the stored row's updated_at still equal
// expectedUpdatedAt; see RuleRepository.Update for the stale-write
// rationale.
func (r *CaseRepository) Update(ctx context.Context, c *domain.Case, expectedUpdatedAt time.Time) error {
	const q = `
		UPDATE cases SET
			alert_ids=$2, transaction_ids=$3, related_customers=$4,
			summary=$5, risk_level=$6,
			status=$7, investigation_stage=$8,
			assigned_to=$9, reviewer=$10, approver=$11, team_members=$12,
			assigned_at=$13, investigation_started_at=$14, review_started_at=$15, closed_at=$16,
			sla_extended=$17, sla_extension_reason=$18, sla_breached=$19,
			notes=$20, evidence_collected=$21, interviews_conducted=$22,
			findings=$23, recommendations=$24, decision=$25, actions_taken=$26,
			str_filed=$27, str_reference=$28, str_filed_date=$29,
			ctr_filed=$30, ctr_reference=$31, ctr_filed_date=$32,
			qa_reviewed=$33, qa_approved=$34,
			closure_reason=$35, closure_notes=$36, closed_by=$37, updated_at=$38
		WHERE id = $1 AND updated_at = $39
	`
	querier := querierFrom(ctx, r.pool)
	tag, err := querier.Exec(ctx, q,
		c.ID, c.AlertIDs, c.TransactionIDs, c.RelatedCustomers,
		c.Summary, c.RiskLevel,
		c.Status, c.InvestigationStage,
		c.AssignedTo, c.Reviewer, c.Approver, c.TeamMembers,
		c.AssignedAt, c.InvestigationStartedAt, c.ReviewStartedAt, c.ClosedAt,
		c.SLAExtended, c.SLAExtensionReason, c.SLABreached,
		c.Notes, c.EvidenceCollected, c.InterviewsConducted,
		c.Findings, c.Recommendations, c.Decision, c.ActionsTaken,
		c.STRFiled, c.STRReference, c.STRFiledDate,
		c.CTRFiled, c.CTRReference, c.CTRFiledDate,
		c.QAReviewed, c.QAApproved,
		c.ClosureReason, c.ClosureNotes, c.ClosedBy, c.UpdatedAt,
		expectedUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, existsErr := existsByID(ctx, querier, "cases", c.ID)
		if existsErr != nil {
			return fmt.Errorf("check case existence: %w", existsErr)
		}
		if exists {
			return apperr.Conflict("stale_write", "case was modified by another request; reload and retry")
		}
		return apperr.NotFound("case_not_found", "case does not exist")
	}
	return nil
}

const caseColumns = `
	id, case_number, case_type, case_category,
	customer_id, related_customers, alert_ids, transaction_ids,
	title, description, summary,
	priority, risk_level,
	status, investigation_stage,
	assigned_to, reviewer, approver, team_members,
	opened_at, assigned_at, investigation_started_at, review_started_at, closed_at,
	sla_deadline, sla_extended, sla_extension_reason, sla_breached,
	notes, evidence_collected, interviews_conducted,
	findings, recommendations, decision, actions_taken,
	str_required, str_filed, str_reference, str_filed_date,
	ctr_required, ctr_filed, ctr_reference, ctr_filed_date,
	qa_reviewed, qa_approved,
	closure_reason, closure_notes, closed_by,
	created_at, updated_at, created_by
`

func scanCase(row pgx.Row) (*domain.Case, error) {
	var c domain.Case
	err := row.Scan(
		&c.ID, &c.CaseNumber, &c.CaseType, &c.CaseCategory,
		&c.CustomerID, &c.RelatedCustomers, &c.AlertIDs, &c.TransactionIDs,
		&c.Title, &c.Description, &c.Summary,
		&c.Priority, &c.RiskLevel,
		&c.Status, &c.InvestigationStage,
		&c.AssignedTo, &c.Reviewer, &c.Approver, &c.TeamMembers,
		&c.OpenedAt, &c.AssignedAt, &c.InvestigationStartedAt, &c.ReviewStartedAt, &c.ClosedAt,
		&c.SLADeadline, &c.SLAExtended, &c.SLAExtensionReason, &c.SLABreached,
		&c.Notes, &c.EvidenceCollected, &c.InterviewsConducted,
		&c.Findings, &c.Recommendations, &c.Decision, &c.ActionsTaken,
		&c.STRRequired, &c.STRFiled, &c.STRReference, &c.STRFiledDate,
		&c.CTRRequired, &c.CTRFiled, &c.CTRReference, &c.CTRFiledDate,
		&c.QAReviewed, &c.QAApproved,
		&c.ClosureReason, &c.ClosureNotes, &c.ClosedBy,
		&c.CreatedAt, &c.UpdatedAt, &c.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("case_not_found", "case does not exist")
		}
		return nil, fmt.Errorf("scan case: %w", err)
	}
	return &c, nil
}

func (r *CaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	q := fmt.Sprintf("SELECT %s FROM cases WHERE id = $1", caseColumns)
	return scanCase(querierFrom(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *CaseRepository) GetByCaseNumber(ctx context.Context, caseNumber string) (*domain.Case, error) {
	q := fmt.Sprintf("SELECT %s FROM cases WHERE case_number = $1", caseColumns)
	return scanCase(querierFrom(ctx, r.pool).QueryRow(ctx, q, caseNumber))
}

func (r *CaseRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Case, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM cases
		WHERE sla_deadline IS NOT NULL AND sla_deadline < $1 AND sla_breached = FALSE AND status != 'closed'
	`, caseColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, q, asOf)
	if err != nil {
		return nil, fmt.Errorf("query overdue cases: %w", err)
	}
	defer rows.Close()
	return collectCases(rows)
}

func (r *CaseRepository) List(ctx context.Context, filter store.CaseFilter) ([]*domain.Case, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	b := query.New()
	b.AddIf(filter.AssignedTo != nil, "assigned_to", query.OpEqual, filter.AssignedTo).
		AddIf(filter.Status != nil, "status", query.OpEqual, filter.Status).
		AddIf(filter.RiskLevel != nil, "risk_level", query.OpEqual, filter.RiskLevel)
	where, args := b.Render()

	var total int64
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM cases WHERE %s", where)
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}

	idx := b.NextIndex()
	listQ := fmt.Sprintf("SELECT %s FROM cases WHERE %s ORDER BY opened_at DESC LIMIT $%d OFFSET $%d",
		caseColumns, where, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querierFrom(ctx, r.pool).Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	out, err := collectCases(rows)
	return out, total, err
}

func collectCases(rows pgx.Rows) ([]*domain.Case, error) {
	var out []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// NextCaseSequence issues the next CASE-YYYYMM sequence number under a row
// lock on case_sequences so concurrent case creation in the same month
// never produces a duplicate case_number (§6).
func (r *CaseRepository) NextCaseSequence(ctx context.Context, year int, month int) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin sequence tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var seq int
	err = tx.QueryRow(ctx, `
		INSERT INTO case_sequences (year, month, next_value)
		VALUES ($1, $2, 2)
		ON CONFLICT (year, month) DO UPDATE SET next_value = case_sequences.next_value + 1
		RETURNING next_value - 1
	`, year, month).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("advance case sequence: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit sequence tx: %w", err)
	}
	return seq, nil
}
