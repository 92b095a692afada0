package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/store/query"
)

// AuditRepository implements store.AuditLogStore. It is append-only: no
// Update or Delete statement is ever issued against audit_logs.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Create(ctx context.Context, e *domain.AuditLog) error {
	const q = `
		INSERT INTO audit_logs (
			id, event_id, event_type, event_category, user_id, user_email, user_role,
			impersonated_by, action, resource_type, resource_id, resource_identifier,
			description, details, ip_address, user_agent, session_id, request_id,
			correlation_id, old_values, new_values, changed_fields, risk_score,
			suspicious_activity, regulatory_significance, retention_period,
			data_classification, status, error_message, error_code,
			digital_signature, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23,
			$24, $25, $26,
			$27, $28, $29, $30,
			$31, $32
		)
	`
	_, err := querierFrom(ctx, r.pool).Exec(ctx, q,
		e.ID, e.EventID, e.EventType, e.EventCategory, e.UserID, e.UserEmail, e.UserRole,
		e.ImpersonatedBy, e.Action, e.ResourceType, e.ResourceID, e.ResourceIdentifier,
		e.Description, e.Details, e.IPAddress, e.UserAgent, e.SessionID, e.RequestID,
		e.CorrelationID, e.OldValues, e.NewValues, e.ChangedFields, e.RiskScore,
		e.SuspiciousActivity, e.RegulatorySignificance, e.RetentionPeriod,
		e.DataClassification, e.Status, e.ErrorMessage, e.ErrorCode,
		e.DigitalSignature, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *AuditRepository) Search(ctx context.Context, filter domain.AuditLogFilter) (*domain.AuditLogPage, error) {
	filter.WithDefaults()

	b := query.New()
	b.AddIf(filter.StartTime != nil, "timestamp", query.OpGreaterEqual, filter.StartTime).
		AddIf(filter.EndTime != nil, "timestamp", query.OpLessEqual, filter.EndTime).
		AddIf(filter.EventType != nil, "event_type", query.OpEqual, filter.EventType).
		AddIf(filter.EventCategory != nil, "event_category", query.OpEqual, filter.EventCategory).
		AddIf(filter.UserID != nil, "user_id", query.OpEqual, filter.UserID).
		AddIf(filter.ResourceType != nil, "resource_type", query.OpEqual, filter.ResourceType).
		AddIf(filter.ResourceID != nil, "resource_id", query.OpEqual, filter.ResourceID).
		AddIf(filter.Action != nil, "action", query.OpEqual, filter.Action)

	where, args := b.Render()

	var total int64
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM audit_logs WHERE %s", where)
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	idx := b.NextIndex()
	listQ := fmt.Sprintf(`
		SELECT id, event_id, event_type, event_category, user_id, user_email, user_role,
			impersonated_by, action, resource_type, resource_id, resource_identifier,
			description, details, ip_address, user_agent, session_id, request_id,
			correlation_id, old_values, new_values, changed_fields, risk_score,
			suspicious_activity, regulatory_significance, retention_period,
			data_classification, status, error_message, error_code,
			digital_signature, timestamp, reviewed, reviewed_by, review_date, review_notes
		FROM audit_logs
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT $%d OFFSET $%d
	`, where, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querierFrom(ctx, r.pool).Query(ctx, listQ, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog
		if err := rows.Scan(
			&e.ID, &e.EventID, &e.EventType, &e.EventCategory, &e.UserID, &e.UserEmail, &e.UserRole,
			&e.ImpersonatedBy, &e.Action, &e.ResourceType, &e.ResourceID, &e.ResourceIdentifier,
			&e.Description, &e.Details, &e.IPAddress, &e.UserAgent, &e.SessionID, &e.RequestID,
			&e.CorrelationID, &e.OldValues, &e.NewValues, &e.ChangedFields, &e.RiskScore,
			&e.SuspiciousActivity, &e.RegulatorySignificance, &e.RetentionPeriod,
			&e.DataClassification, &e.Status, &e.ErrorMessage, &e.ErrorCode,
			&e.DigitalSignature, &e.Timestamp, &e.Reviewed, &e.ReviewedBy, &e.ReviewDate, &e.ReviewNotes,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		entries = append(entries, &e)
	}

	return &domain.AuditLogPage{
		Entries:    entries,
		TotalCount: total,
		HasMore:    total > int64(filter.Offset+filter.Limit),
	}, nil
}

func (r *AuditRepository) GetLastSignature(ctx context.Context) (string, error) {
	const q = `SELECT digital_signature FROM audit_logs ORDER BY timestamp DESC LIMIT 1`
	var sig string
	err := querierFrom(ctx, r.pool).QueryRow(ctx, q).Scan(&sig)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return sig, nil
}

func (r *AuditRepository) CountByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	const q = `SELECT COUNT(*) FROM audit_logs WHERE user_id = $1 AND timestamp >= $2`
	var count int64
	err := querierFrom(ctx, r.pool).QueryRow(ctx, q, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit logs by user: %w", err)
	}
	return count, nil
}

func (r *AuditRepository) CountSuspiciousSince(ctx context.Context, since time.Time) (int64, error) {
	const q = `SELECT COUNT(*) FROM audit_logs WHERE suspicious_activity = TRUE AND timestamp >= $1`
	var count int64
	err := querierFrom(ctx, r.pool).QueryRow(ctx, q, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count suspicious audit logs: %w", err)
	}
	return count, nil
}
