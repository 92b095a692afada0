package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ngbank/aml-compliance/internal/apperr"
	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/store"
	"github.com/ngbank/aml-compliance/internal/store/query"
)

type CustomerRepository struct {
	pool *pgxpool.Pool
}

func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	const q = `
		INSERT INTO customers (
			id, first_name, last_name, email, phone, date_of_birth, nationality,
			customer_id, bvn, nin, kyc_status, kyc_level,
			address_line1, address_line2, city, state, country, postal_code,
			risk_score, risk_category, pep_status, sanctions_checked, last_risk_assessment,
			account_numbers, account_types, account_opening_date, customer_since,
			suspicious_activity_count, last_transaction_date, average_monthly_turnover,
			is_blacklisted, blacklist_reason, requires_enhanced_dd,
			created_at, updated_at, created_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23,
			$24, $25, $26, $27,
			$28, $29, $30,
			$31, $32, $33,
			$34, $35, $36
		)
	`
	_, err := querierFrom(ctx, r.pool).Exec(ctx, q,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.DateOfBirth, c.Nationality,
		c.CustomerID, c.BVN, c.NIN, c.KYCStatus, c.KYCLevel,
		c.AddressLine1, c.AddressLine2, c.City, c.State, c.Country, c.PostalCode,
		c.RiskScore, c.RiskCategory, c.PEPStatus, c.SanctionsChecked, c.LastRiskAssessment,
		c.AccountNumbers, c.AccountTypes, c.AccountOpeningDate, c.CustomerSince,
		c.SuspiciousActivityCount, c.LastTransactionDate, c.AverageMonthlyTurnover,
		c.IsBlacklisted, c.BlacklistReason, c.RequiresEnhancedDD,
		c.CreatedAt, c.UpdatedAt, c.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *CustomerRepository) Update(ctx context.Context, c *domain.Customer) error {
	const q = `
		UPDATE customers SET
			first_name=$2, last_name=$3, email=$4, phone=$5, nationality=$6,
			kyc_status=$7, kyc_level=$8,
			address_line1=$9, address_line2=$10, city=$11, state=$12, country=$13, postal_code=$14,
			risk_score=$15, risk_category=$16, pep_status=$17, sanctions_checked=$18, last_risk_assessment=$19,
			account_numbers=$20, account_types=$21,
			suspicious_activity_count=$22, last_transaction_date=$23, average_monthly_turnover=$24,
			is_blacklisted=$25, blacklist_reason=$26, requires_enhanced_dd=$27, updated_at=$28
		WHERE id = $1
	`
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, q,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Nationality,
		c.KYCStatus, c.KYCLevel,
		c.AddressLine1, c.AddressLine2, c.City, c.State, c.Country, c.PostalCode,
		c.RiskScore, c.RiskCategory, c.PEPStatus, c.SanctionsChecked, c.LastRiskAssessment,
		c.AccountNumbers, c.AccountTypes,
		c.SuspiciousActivityCount, c.LastTransactionDate, c.AverageMonthlyTurnover,
		c.IsBlacklisted, c.BlacklistReason, c.RequiresEnhancedDD, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("customer_not_found", "customer does not exist")
	}
	return nil
}

const customerColumns = `
	id, first_name, last_name, email, phone, date_of_birth, nationality,
	customer_id, bvn, nin, kyc_status, kyc_level,
	address_line1, address_line2, city, state, country, postal_code,
	risk_score, risk_category, pep_status, sanctions_checked, last_risk_assessment,
	account_numbers, account_types, account_opening_date, customer_since,
	suspicious_activity_count, last_transaction_date, average_monthly_turnover,
	is_blacklisted, blacklist_reason, requires_enhanced_dd,
	created_at, updated_at, created_by
`

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.DateOfBirth, &c.Nationality,
		&c.CustomerID, &c.BVN, &c.NIN, &c.KYCStatus, &c.KYCLevel,
		&c.AddressLine1, &c.AddressLine2, &c.City, &c.State, &c.Country, &c.PostalCode,
		&c.RiskScore, &c.RiskCategory, &c.PEPStatus, &c.SanctionsChecked, &c.LastRiskAssessment,
		&c.AccountNumbers, &c.AccountTypes, &c.AccountOpeningDate, &c.CustomerSince,
		&c.SuspiciousActivityCount, &c.LastTransactionDate, &c.AverageMonthlyTurnover,
		&c.IsBlacklisted, &c.BlacklistReason, &c.RequiresEnhancedDD,
		&c.CreatedAt, &c.UpdatedAt, &c.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("customer_not_found", "customer does not exist")
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return &c, nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	q := fmt.Sprintf("SELECT %s FROM customers WHERE id = $1", customerColumns)
	return scanCustomer(querierFrom(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *CustomerRepository) GetByCustomerID(ctx context.Context, customerID string) (*domain.Customer, error) {
	q := fmt.Sprintf("SELECT %s FROM customers WHERE customer_id = $1", customerColumns)
	return scanCustomer(querierFrom(ctx, r.pool).QueryRow(ctx, q, customerID))
}

func (r *CustomerRepository) List(ctx context.Context, filter store.CustomerFilter) ([]*domain.Customer, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	b := query.New()
	b.AddIf(filter.RiskCategory != nil, "risk_category", query.OpEqual, filter.RiskCategory).
		AddIf(filter.KYCStatus != nil, "kyc_status", query.OpEqual, filter.KYCStatus).
		AddIf(filter.Nationality != nil, "nationality", query.OpEqual, filter.Nationality).
		AddIf(filter.PEPStatus != nil, "pep_status", query.OpEqual, filter.PEPStatus)
	where, args := b.Render()

	var total int64
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM customers WHERE %s", where)
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	idx := b.NextIndex()
	listQ := fmt.Sprintf("SELECT %s FROM customers WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		customerColumns, where, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querierFrom(ctx, r.pool).Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var out []*domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, nil
}
