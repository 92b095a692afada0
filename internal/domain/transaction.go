package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionReversed  TransactionStatus = "reversed"
)

// CTRThreshold is the Currency Transaction Report threshold (§6): any
// transaction at or above this amount must carry above_ctr_threshold=true.
var CTRThreshold = decimal.NewFromInt(5_000_000)

// RiskFlags is the keyed map of indicator -> triggered, preserved as an
// open map at the storage boundary (§9 "dynamic field maps") while the
// Monitoring Engine works with named constants internally.
type RiskFlags map[string]bool

const (
	FlagVelocity      = "velocity"
	FlagStructuring   = "structuring"
	FlagAmountThreshold = "amount_threshold"
	FlagCrossBorder   = "cross_border"
	FlagCashMonitoring = "cash_monitoring"
	FlagCustomerRisk  = "customer_risk"
	FlagPEP           = "pep"
	FlagUnusualTime   = "unusual_time"
	FlagRoundAmount   = "round_amount"
	FlagUnusualAmount = "unusual_amount"
)

type Transaction struct {
	ID uuid.UUID `json:"id"`

	TransactionID   string `json:"transaction_id"`
	ReferenceNumber string `json:"reference_number"`
	BatchID         string `json:"batch_id,omitempty"`

	TransactionType   string `json:"transaction_type"`
	TransactionMethod string `json:"transaction_method"`
	Channel           string `json:"channel"`
	Money             Money  `json:"money"`

	CustomerID         uuid.UUID `json:"customer_id"`
	AccountNumber      string    `json:"account_number"`
	BeneficiaryName    string    `json:"beneficiary_name,omitempty"`
	BeneficiaryAccount string    `json:"beneficiary_account,omitempty"`
	BeneficiaryBank    string    `json:"beneficiary_bank,omitempty"`
	BeneficiaryCountry string    `json:"beneficiary_country,omitempty"`
	HomeCountry        string    `json:"home_country"`

	Description string `json:"description"`
	PurposeCode string `json:"purpose_code,omitempty"`
	Location    string `json:"location,omitempty"`

	TransactionDate time.Time `json:"transaction_date"`
	ValueDate       time.Time `json:"value_date"`
	ProcessingDate  time.Time `json:"processing_date"`

	Status        TransactionStatus `json:"status"`
	FailureReason string            `json:"failure_reason,omitempty"`

	RiskScore decimal.Decimal `json:"risk_score"`
	RiskFlags RiskFlags       `json:"risk_flags"`

	IsSuspicious        bool `json:"is_suspicious"`
	AlertCount          int  `json:"alert_count"`
	StructuringIndicator bool `json:"structuring_indicator"`
	VelocityFlag        bool `json:"velocity_flag"`
	AmountThresholdFlag bool `json:"amount_threshold_flag"`
	UnusualPatternFlag  bool `json:"unusual_pattern_flag"`

	AboveCTRThreshold bool `json:"above_ctr_threshold"`
	CrossBorder       bool `json:"cross_border"`
	CashTransaction   bool `json:"cash_transaction"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeriveSystemFields computes the three derived regulatory booleans per
// the Transaction invariants in §3 and must be called exactly once, before
// the Monitoring Engine evaluates any rule against this row.
func (t *Transaction) DeriveSystemFields() {
	t.AboveCTRThreshold = t.Money.Amount.GreaterThanOrEqual(CTRThreshold)
	t.CrossBorder = t.BeneficiaryCountry != "" && t.BeneficiaryCountry != t.HomeCountry
	if t.RiskFlags == nil {
		t.RiskFlags = RiskFlags{}
	}
}

// ApplyRiskScore clamps score to [0,100] and recomputes is_suspicious per
// the invariant is_suspicious <-> risk_score >= 60.
func (t *Transaction) ApplyRiskScore(score decimal.Decimal) {
	t.RiskScore = ClampScore(score)
	t.IsSuspicious = t.RiskScore.GreaterThanOrEqual(decimal.NewFromInt(60))
}

// ClampScore bounds a risk score contribution sum to the [0,100] scale
// shared by Customer, Transaction, and Alert risk scores.
func ClampScore(score decimal.Decimal) decimal.Decimal {
	if score.IsNegative() {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	if score.GreaterThan(hundred) {
		return hundred
	}
	return score
}
