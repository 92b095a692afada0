package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusVerified KYCStatus = "verified"
	KYCStatusRejected KYCStatus = "rejected"
)

type KYCLevel string

const (
	KYCLevelTier1 KYCLevel = "tier1"
	KYCLevelTier2 KYCLevel = "tier2"
	KYCLevelTier3 KYCLevel = "tier3"
)

type RiskCategory string

const (
	RiskCategoryLow    RiskCategory = "low"
	RiskCategoryMedium RiskCategory = "medium"
	RiskCategoryHigh   RiskCategory = "high"
)

// RiskCategoryFor is the pure function from risk_score to risk_category
// required by the Customer invariant in §3: >=70 high, >=40 medium, else low.
func RiskCategoryFor(score decimal.Decimal) RiskCategory {
	switch {
	case score.GreaterThanOrEqual(decimal.NewFromInt(70)):
		return RiskCategoryHigh
	case score.GreaterThanOrEqual(decimal.NewFromInt(40)):
		return RiskCategoryMedium
	default:
		return RiskCategoryLow
	}
}

// SanctionedNationalities is the fixed four-country set used by the
// Customer Risk Service's initial score computation (§4.5) and by the
// Monitoring Engine's cross_border predicate (§4.4). Kept as a single
// source of truth so the two components never drift apart.
var SanctionedNationalities = map[string]bool{
	"AF": true,
	"IR": true,
	"KP": true,
	"SY": true,
}

// HighRiskAccountTypes contribute +15 each to the initial risk score (§4.5).
var HighRiskAccountTypes = map[string]bool{
	"business":  true,
	"corporate": true,
	"trust":     true,
}

type Customer struct {
	ID uuid.UUID `json:"id"`

	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Nationality string    `json:"nationality"`

	CustomerID string    `json:"customer_id"`
	BVN        string    `json:"bvn,omitempty"`
	NIN        string    `json:"nin,omitempty"`
	KYCStatus  KYCStatus `json:"kyc_status"`
	KYCLevel   KYCLevel  `json:"kyc_level"`

	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	PostalCode   string `json:"postal_code,omitempty"`

	RiskScore          decimal.Decimal `json:"risk_score"`
	RiskCategory       RiskCategory    `json:"risk_category"`
	PEPStatus          bool            `json:"pep_status"`
	SanctionsChecked   bool            `json:"sanctions_checked"`
	LastRiskAssessment *time.Time      `json:"last_risk_assessment,omitempty"`

	AccountNumbers    []string  `json:"account_numbers"`
	AccountTypes      []string  `json:"account_types"`
	AccountOpeningDate time.Time `json:"account_opening_date"`
	CustomerSince      time.Time `json:"customer_since"`

	SuspiciousActivityCount int             `json:"suspicious_activity_count"`
	LastTransactionDate     *time.Time      `json:"last_transaction_date,omitempty"`
	AverageMonthlyTurnover  decimal.Decimal `json:"average_monthly_turnover"`

	IsBlacklisted     bool   `json:"is_blacklisted"`
	BlacklistReason   string `json:"blacklist_reason,omitempty"`
	RequiresEnhancedDD bool  `json:"requires_enhanced_dd"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy uuid.UUID `json:"created_by"`
}

// NewCustomer builds a Customer with system-derived defaults. CustomerSince
// is pinned to creation time, resolving the spec's Open Question the same
// way the distilled source's create_customer does.
func NewCustomer(createdBy uuid.UUID) *Customer {
	now := time.Now().UTC()
	return &Customer{
		ID:                     uuid.New(),
		KYCStatus:              KYCStatusPending,
		KYCLevel:               KYCLevelTier1,
		RiskScore:              decimal.Zero,
		RiskCategory:           RiskCategoryLow,
		AverageMonthlyTurnover: decimal.Zero,
		CustomerSince:          now,
		CreatedAt:              now,
		UpdatedAt:              now,
		CreatedBy:              createdBy,
	}
}

// ApplyRiskScore sets RiskScore and recomputes the derived RiskCategory,
// keeping the invariant in §3 mechanically true rather than relying on
// every call site to remember it.
func (c *Customer) ApplyRiskScore(score decimal.Decimal) {
	c.RiskScore = score
	c.RiskCategory = RiskCategoryFor(score)
}

func (c *Customer) HasHighRiskAccountType() int {
	n := 0
	for _, t := range c.AccountTypes {
		if HighRiskAccountTypes[t] {
			n++
		}
	}
	return n
}
