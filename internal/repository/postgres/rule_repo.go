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

type RuleRepository struct {
	pool *pgxpool.Pool
}

func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

func (r *RuleRepository) Create(ctx context.Context, ru *domain.Rule) error {
	const q = `
		INSERT INTO rules (
			id, rule_name, rule_code, rule_type, category,
			description, business_justification, regulatory_reference,
			conditions, thresholds, parameters,
			applies_to, customer_segments, transaction_types, channels,
			risk_weight, severity_level, alert_priority,
			status, version, effective_date, expiry_date,
			test_results, false_positive_rate, effectiveness_score, last_tested,
			cooling_period, max_alerts_per_day,
			total_triggers, true_positives, false_positives, alerts_generated, cases_created, strs_filed,
			tuning_required, created_at, updated_at, created_by
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,
			$9,$10,$11,
			$12,$13,$14,$15,
			$16,$17,$18,
			$19,$20,$21,$22,
			$23,$24,$25,$26,
			$27,$28,
			$29,$30,$31,$32,$33,$34,
			$35,$36,$37,$38
		)
	`
	_, err := querierFrom(ctx, r.pool).Exec(ctx, q,
		ru.ID, ru.RuleName, ru.RuleCode, ru.RuleType, ru.Category,
		ru.Description, ru.BusinessJustification, ru.RegulatoryReference,
		ru.Conditions, ru.Thresholds, ru.Parameters,
		ru.AppliesTo, ru.CustomerSegments, ru.TransactionTypes, ru.Channels,
		ru.RiskWeight, ru.SeverityLevel, ru.AlertPriority,
		ru.Status, ru.Version, ru.EffectiveDate, ru.ExpiryDate,
		ru.TestResults, ru.FalsePositiveRate, ru.EffectivenessScore, ru.LastTested,
		ru.CoolingPeriod, ru.MaxAlertsPerDay,
		ru.TotalTriggers, ru.TruePositives, ru.FalsePositives, ru.AlertsGenerated, ru.CasesCreated, ru.STRsFiled,
		ru.TuningRequired, ru.CreatedAt, ru.UpdatedAt, ru.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// Update persists ru, requiring the stored row's updated_at still equal
// expectedUpdatedAt — the value the caller read via GetByID before
// mutating ru. A concurrent writer that already landed a change moves
// updated_at on, so the predicate matches zero rows and Update reports a
// stale-write Conflict instead of silently clobbering that change.
func (r *RuleRepository) Update(ctx context.Context, ru *domain.Rule, expectedUpdatedAt time.Time) error {
	const q = `
		UPDATE rules SET
			description=$2, business_justification=$3,
			conditions=$4, thresholds=$5, parameters=$6,
			risk_weight=$7, severity_level=$8, alert_priority=$9,
			status=$10, version=$11, effective_date=$12, expiry_date=$13,
			test_results=$14, false_positive_rate=$15, effectiveness_score=$16, last_tested=$17,
			cooling_period=$18, max_alerts_per_day=$19,
			total_triggers=$20, true_positives=$21, false_positives=$22, alerts_generated=$23,
			cases_created=$24, strs_filed=$25, tuning_required=$26, updated_at=$27
		WHERE id = $1 AND updated_at = $28
	`
	querier := querierFrom(ctx, r.pool)
	tag, err := querier.Exec(ctx, q,
		ru.ID, ru.Description, ru.BusinessJustification,
		ru.Conditions, ru.Thresholds, ru.Parameters,
		ru.RiskWeight, ru.SeverityLevel, ru.AlertPriority,
		ru.Status, ru.Version, ru.EffectiveDate, ru.ExpiryDate,
		ru.TestResults, ru.FalsePositiveRate, ru.EffectivenessScore, ru.LastTested,
		ru.CoolingPeriod, ru.MaxAlertsPerDay,
		ru.TotalTriggers, ru.TruePositives, ru.FalsePositives, ru.AlertsGenerated,
		ru.CasesCreated, ru.STRsFiled, ru.TuningRequired, ru.UpdatedAt,
		expectedUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, existsErr := existsByID(ctx, querier, "rules", ru.ID)
		if existsErr != nil {
			return fmt.Errorf("check rule existence: %w", existsErr)
		}
		if exists {
			return apperr.Conflict("stale_write", "rule was modified by another request; reload and retry")
		}
		return apperr.NotFound("rule_not_found", "rule does not exist")
	}
	return nil
}

const ruleColumns = `
	id, rule_name, rule_code, rule_type, category,
	description, business_justification, regulatory_reference,
	conditions, thresholds, parameters,
	applies_to, customer_segments, transaction_types, channels,
	risk_weight, severity_level, alert_priority,
	status, version, effective_date, expiry_date,
	test_results, false_positive_rate, effectiveness_score, last_tested,
	cooling_period, max_alerts_per_day,
	total_triggers, true_positives, false_positives, alerts_generated, cases_created, strs_filed,
	tuning_required, created_at, updated_at, created_by
`

func scanRule(row pgx.Row) (*domain.Rule, error) {
	var ru domain.Rule
	err := row.Scan(
		&ru.ID, &ru.RuleName, &ru.RuleCode, &ru.RuleType, &ru.Category,
		&ru.Description, &ru.BusinessJustification, &ru.RegulatoryReference,
		&ru.Conditions, &ru.Thresholds, &ru.Parameters,
		&ru.AppliesTo, &ru.CustomerSegments, &ru.TransactionTypes, &ru.Channels,
		&ru.RiskWeight, &ru.SeverityLevel, &ru.AlertPriority,
		&ru.Status, &ru.Version, &ru.EffectiveDate, &ru.ExpiryDate,
		&ru.TestResults, &ru.FalsePositiveRate, &ru.EffectivenessScore, &ru.LastTested,
		&ru.CoolingPeriod, &ru.MaxAlertsPerDay,
		&ru.TotalTriggers, &ru.TruePositives, &ru.FalsePositives, &ru.AlertsGenerated, &ru.CasesCreated, &ru.STRsFiled,
		&ru.TuningRequired, &ru.CreatedAt, &ru.UpdatedAt, &ru.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("rule_not_found", "rule does not exist")
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	return &ru, nil
}

func (r *RuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	q := fmt.Sprintf("SELECT %s FROM rules WHERE id = $1", ruleColumns)
	return scanRule(querierFrom(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *RuleRepository) GetByCode(ctx context.Context, ruleCode string) (*domain.Rule, error) {
	q := fmt.Sprintf("SELECT %s FROM rules WHERE rule_code = $1", ruleColumns)
	return scanRule(querierFrom(ctx, r.pool).QueryRow(ctx, q, ruleCode))
}

func (r *RuleRepository) ListActive(ctx context.Context) ([]*domain.Rule, error) {
	q := fmt.Sprintf("SELECT %s FROM rules WHERE status = $1", ruleColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, q, domain.RuleStatusActive)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		ru, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ru)
	}
	return out, nil
}

func (r *RuleRepository) List(ctx context.Context, filter store.RuleFilter) ([]*domain.Rule, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	b := query.New()
	b.AddIf(filter.Status != nil, "status", query.OpEqual, filter.Status).
		AddIf(filter.Category != nil, "category", query.OpEqual, filter.Category)
	where, args := b.Render()

	var total int64
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM rules WHERE %s", where)
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rules: %w", err)
	}

	idx := b.NextIndex()
	listQ := fmt.Sprintf("SELECT %s FROM rules WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		ruleColumns, where, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querierFrom(ctx, r.pool).Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		ru, err := scanRule(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ru)
	}
	return out, total, nil
}
