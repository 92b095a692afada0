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

type AlertRepository struct {
	pool *pgxpool.Pool
}

func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool}
}

func (r *AlertRepository) Create(ctx context.Context, a *domain.Alert) error {
	const q = `
		INSERT INTO alerts (
			id, alert_id, alert_type, alert_category, customer_id, transaction_id, rule_id,
			title, description, severity, priority,
			risk_score, risk_factors, triggered_rules, threshold_values, pattern_matched,
			status, assigned_to, investigation_notes,
			case_id, escalation_level,
			triggered_at, acknowledged_at, investigated_at, resolved_at,
			resolution, resolution_notes, resolved_by,
			sla_deadline, sla_breached, regulatory_significance,
			detection_method, model_version, confidence_score,
			created_at, updated_at, created_by
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,
			$8,$9,$10,$11,
			$12,$13,$14,$15,$16,
			$17,$18,$19,
			$20,$21,
			$22,$23,$24,$25,
			$26,$27,$28,
			$29,$30,$31,
			$32,$33,$34,
			$35,$36,$37
		)
	`
	_, err := querierFrom(ctx, r.pool).Exec(ctx, q,
		a.ID, a.AlertID, a.AlertType, a.Category, a.CustomerID, a.TransactionID, a.RuleID,
		a.Title, a.Description, a.Severity, a.Priority,
		a.RiskScore, a.RiskFactors, a.TriggeredRules, a.ThresholdValues, a.PatternMatched,
		a.Status, a.AssignedTo, a.InvestigationNotes,
		a.CaseID, a.EscalationLevel,
		a.TriggeredAt, a.AcknowledgedAt, a.InvestigatedAt, a.ResolvedAt,
		a.Resolution, a.ResolutionNotes, a.ResolvedBy,
		a.SLADeadline, a.SLABreached, a.RegulatorySignificance,
		a.DetectionMethod, a.ModelVersion, a.ConfidenceScore,
		a.CreatedAt, a.UpdatedAt, a.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) Update(ctx context.Context, a *domain.Alert) error {
	const q = `
		UPDATE alerts SET
			status=$2, assigned_to=$3, investigation_notes=$4,
			case_id=$5, escalation_level=$6,
			acknowledged_at=$7, investigated_at=$8, resolved_at=$9,
			resolution=$10, resolution_notes=$11, resolved_by=$12,
			sla_breached=$13, updated_at=$14
		WHERE id = $1
	`
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, q,
		a.ID, a.Status, a.AssignedTo, a.InvestigationNotes,
		a.CaseID, a.EscalationLevel,
		a.AcknowledgedAt, a.InvestigatedAt, a.ResolvedAt,
		a.Resolution, a.ResolutionNotes, a.ResolvedBy,
		a.SLABreached, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("alert_not_found", "alert does not exist")
	}
	return nil
}

const alertColumns = `
	id, alert_id, alert_type, alert_category, customer_id, transaction_id, rule_id,
	title, description, severity, priority,
	risk_score, risk_factors, triggered_rules, threshold_values, pattern_matched,
	status, assigned_to, investigation_notes,
	case_id, escalation_level,
	triggered_at, acknowledged_at, investigated_at, resolved_at,
	resolution, resolution_notes, resolved_by,
	sla_deadline, sla_breached, regulatory_significance,
	detection_method, model_version, confidence_score,
	created_at, updated_at, created_by
`

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	err := row.Scan(
		&a.ID, &a.AlertID, &a.AlertType, &a.Category, &a.CustomerID, &a.TransactionID, &a.RuleID,
		&a.Title, &a.Description, &a.Severity, &a.Priority,
		&a.RiskScore, &a.RiskFactors, &a.TriggeredRules, &a.ThresholdValues, &a.PatternMatched,
		&a.Status, &a.AssignedTo, &a.InvestigationNotes,
		&a.CaseID, &a.EscalationLevel,
		&a.TriggeredAt, &a.AcknowledgedAt, &a.InvestigatedAt, &a.ResolvedAt,
		&a.Resolution, &a.ResolutionNotes, &a.ResolvedBy,
		&a.SLADeadline, &a.SLABreached, &a.RegulatorySignificance,
		&a.DetectionMethod, &a.ModelVersion, &a.ConfidenceScore,
		&a.CreatedAt, &a.UpdatedAt, &a.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("alert_not_found", "alert does not exist")
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	return &a, nil
}

func (r *AlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	q := fmt.Sprintf("SELECT %s FROM alerts WHERE id = $1", alertColumns)
	return scanAlert(querierFrom(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *AlertRepository) GetByAlertID(ctx context.Context, alertID string) (*domain.Alert, error) {
	q := fmt.Sprintf("SELECT %s FROM alerts WHERE alert_id = $1", alertColumns)
	return scanAlert(querierFrom(ctx, r.pool).QueryRow(ctx, q, alertID))
}

func (r *AlertRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Alert, error) {
	q := fmt.Sprintf("SELECT %s FROM alerts WHERE customer_id = $1 ORDER BY triggered_at DESC", alertColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, q, customerID)
	if err != nil {
		return nil, fmt.Errorf("query alerts by customer: %w", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

func (r *AlertRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Alert, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM alerts
		WHERE sla_deadline IS NOT NULL AND sla_deadline < $1 AND sla_breached = FALSE
			AND status IN ('open', 'investigating')
	`, alertColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, q, asOf)
	if err != nil {
		return nil, fmt.Errorf("query overdue alerts: %w", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

func (r *AlertRepository) List(ctx context.Context, filter store.AlertFilter) ([]*domain.Alert, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	b := query.New()
	b.AddIf(filter.CustomerID != nil, "customer_id", query.OpEqual, filter.CustomerID).
		AddIf(filter.Status != nil, "status", query.OpEqual, filter.Status).
		AddIf(filter.Severity != nil, "severity", query.OpEqual, filter.Severity).
		AddIf(filter.CaseID != nil, "case_id", query.OpEqual, filter.CaseID)
	where, args := b.Render()

	var total int64
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM alerts WHERE %s", where)
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	idx := b.NextIndex()
	listQ := fmt.Sprintf("SELECT %s FROM alerts WHERE %s ORDER BY triggered_at DESC LIMIT $%d OFFSET $%d",
		alertColumns, where, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querierFrom(ctx, r.pool).Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	out, err := collectAlerts(rows)
	return out, total, err
}

func collectAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	var out []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
