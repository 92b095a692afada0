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

type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	const q = `
		INSERT INTO transactions (
			id, transaction_id, reference_number, batch_id,
			transaction_type, transaction_method, channel, amount, currency,
			customer_id, account_number, beneficiary_name, beneficiary_account,
			beneficiary_bank, beneficiary_country, home_country,
			description, purpose_code, location,
			transaction_date, value_date, processing_date,
			status, failure_reason,
			risk_score, risk_flags,
			is_suspicious, alert_count, structuring_indicator, velocity_flag,
			amount_threshold_flag, unusual_pattern_flag,
			above_ctr_threshold, cross_border, cash_transaction,
			created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,$9,
			$10,$11,$12,$13,
			$14,$15,$16,
			$17,$18,$19,
			$20,$21,$22,
			$23,$24,
			$25,$26,
			$27,$28,$29,$30,
			$31,$32,
			$33,$34,$35,
			$36,$37
		)
	`
	_, err := querierFrom(ctx, r.pool).Exec(ctx, q,
		t.ID, t.TransactionID, t.ReferenceNumber, t.BatchID,
		t.TransactionType, t.TransactionMethod, t.Channel, t.Money.Amount, t.Money.Currency,
		t.CustomerID, t.AccountNumber, t.BeneficiaryName, t.BeneficiaryAccount,
		t.BeneficiaryBank, t.BeneficiaryCountry, t.HomeCountry,
		t.Description, t.PurposeCode, t.Location,
		t.TransactionDate, t.ValueDate, t.ProcessingDate,
		t.Status, t.FailureReason,
		t.RiskScore, t.RiskFlags,
		t.IsSuspicious, t.AlertCount, t.StructuringIndicator, t.VelocityFlag,
		t.AmountThresholdFlag, t.UnusualPatternFlag,
		t.AboveCTRThreshold, t.CrossBorder, t.CashTransaction,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	const q = `
		UPDATE transactions SET
			status=$2, failure_reason=$3, risk_score=$4, risk_flags=$5,
			is_suspicious=$6, alert_count=$7, structuring_indicator=$8, velocity_flag=$9,
			amount_threshold_flag=$10, unusual_pattern_flag=$11, updated_at=$12
		WHERE id = $1
	`
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, q,
		t.ID, t.Status, t.FailureReason, t.RiskScore, t.RiskFlags,
		t.IsSuspicious, t.AlertCount, t.StructuringIndicator, t.VelocityFlag,
		t.AmountThresholdFlag, t.UnusualPatternFlag, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("transaction_not_found", "transaction does not exist")
	}
	return nil
}

const transactionColumns = `
	id, transaction_id, reference_number, batch_id,
	transaction_type, transaction_method, channel, amount, currency,
	customer_id, account_number, beneficiary_name, beneficiary_account,
	beneficiary_bank, beneficiary_country, home_country,
	description, purpose_code, location,
	transaction_date, value_date, processing_date,
	status, failure_reason,
	risk_score, risk_flags,
	is_suspicious, alert_count, structuring_indicator, velocity_flag,
	amount_threshold_flag, unusual_pattern_flag,
	above_ctr_threshold, cross_border, cash_transaction,
	created_at, updated_at
`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.TransactionID, &t.ReferenceNumber, &t.BatchID,
		&t.TransactionType, &t.TransactionMethod, &t.Channel, &t.Money.Amount, &t.Money.Currency,
		&t.CustomerID, &t.AccountNumber, &t.BeneficiaryName, &t.BeneficiaryAccount,
		&t.BeneficiaryBank, &t.BeneficiaryCountry, &t.HomeCountry,
		&t.Description, &t.PurposeCode, &t.Location,
		&t.TransactionDate, &t.ValueDate, &t.ProcessingDate,
		&t.Status, &t.FailureReason,
		&t.RiskScore, &t.RiskFlags,
		&t.IsSuspicious, &t.AlertCount, &t.StructuringIndicator, &t.VelocityFlag,
		&t.AmountThresholdFlag, &t.UnusualPatternFlag,
		&t.AboveCTRThreshold, &t.CrossBorder, &t.CashTransaction,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("transaction_not_found", "transaction does not exist")
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &t, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	q := fmt.Sprintf("SELECT %s FROM transactions WHERE id = $1", transactionColumns)
	return scanTransaction(querierFrom(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *TransactionRepository) GetByReference(ctx context.Context, ref string) (*domain.Transaction, error) {
	q := fmt.Sprintf("SELECT %s FROM transactions WHERE reference_number = $1", transactionColumns)
	return scanTransaction(querierFrom(ctx, r.pool).QueryRow(ctx, q, ref))
}

// ListByCustomerSince loads every transaction for customerID whose
// transaction_date falls on or after since, ordered oldest-first so the
// Monitoring Engine's velocity and structuring detectors can walk them in
// chronological order.
func (r *TransactionRepository) ListByCustomerSince(ctx context.Context, customerID uuid.UUID, since time.Time) ([]*domain.Transaction, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE customer_id = $1 AND transaction_date >= $2 AND status = 'completed'
		ORDER BY transaction_date ASC
	`, transactionColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, q, customerID, since)
	if err != nil {
		return nil, fmt.Errorf("query transactions by customer: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *TransactionRepository) List(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	b := query.New()
	b.AddIf(filter.CustomerID != nil, "customer_id", query.OpEqual, filter.CustomerID).
		AddIf(filter.Status != nil, "status", query.OpEqual, filter.Status).
		AddIf(filter.From != nil, "transaction_date", query.OpGreaterEqual, filter.From).
		AddIf(filter.To != nil, "transaction_date", query.OpLessEqual, filter.To)
	where, args := b.Render()

	var total int64
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM transactions WHERE %s", where)
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	idx := b.NextIndex()
	listQ := fmt.Sprintf("SELECT %s FROM transactions WHERE %s ORDER BY transaction_date DESC LIMIT $%d OFFSET $%d",
		transactionColumns, where, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querierFrom(ctx, r.pool).Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, nil
}
