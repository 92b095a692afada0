package domain

import (
	"time"

	"github.com/google/uuid"
)

type RuleStatus string

const (
	RuleStatusDraft      RuleStatus = "draft"
	RuleStatusTesting    RuleStatus = "testing"
	RuleStatusActive     RuleStatus = "active"
	RuleStatusInactive   RuleStatus = "inactive"
	RuleStatusDeprecated RuleStatus = "deprecated"
)

// Predicate names the named conditions a Rule may enable, in the fixed
// evaluation order required by §4.4 step 3.
type Predicate string

const (
	PredicateAmountThreshold    Predicate = "amount_threshold"
	PredicateVelocityCheck      Predicate = "velocity_check"
	PredicateStructuringDetect  Predicate = "structuring_detection"
	PredicateCrossBorder        Predicate = "cross_border"
	PredicateCashMonitoring     Predicate = "cash_monitoring"
	PredicateCustomerRisk       Predicate = "customer_risk"
	PredicatePEPMonitoring      Predicate = "pep_monitoring"
	PredicateHighRiskCountry    Predicate = "high_risk_country"
)

// PredicateEvaluationOrder is the fixed order §4.4 step 3 requires.
var PredicateEvaluationOrder = []Predicate{
	PredicateAmountThreshold,
	PredicateVelocityCheck,
	PredicateStructuringDetect,
	PredicateCrossBorder,
	PredicateCashMonitoring,
	PredicateCustomerRisk,
}

type RuleThresholds map[string]float64

const (
	ThresholdAmount      = "amount"
	ThresholdCashAmount  = "cash_amount"
)

// DefaultAmountThreshold and DefaultCashThreshold are the §6 defaults used
// when a rule does not override them in its Thresholds map.
const (
	DefaultAmountThreshold = 1_000_000
	DefaultCashThreshold   = 500_000
)

func (t RuleThresholds) AmountOrDefault() float64 {
	if v, ok := t[ThresholdAmount]; ok {
		return v
	}
	return DefaultAmountThreshold
}

func (t RuleThresholds) CashAmountOrDefault() float64 {
	if v, ok := t[ThresholdCashAmount]; ok {
		return v
	}
	return DefaultCashThreshold
}

type RuleTestResults struct {
	TriggerRate       float64 `json:"trigger_rate"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	Precision         float64 `json:"precision"`
	Effectiveness     float64 `json:"effectiveness"`
	SampleSize        int     `json:"sample_size"`
}

type Rule struct {
	ID uuid.UUID `json:"id"`

	RuleName string `json:"rule_name"`
	RuleCode string `json:"rule_code"`
	RuleType string `json:"rule_type"`
	Category string `json:"category"`

	Description          string `json:"description"`
	BusinessJustification string `json:"business_justification"`
	RegulatoryReference  string `json:"regulatory_reference,omitempty"`

	Conditions map[Predicate]bool `json:"conditions"`
	Thresholds RuleThresholds     `json:"thresholds"`
	Parameters map[string]any     `json:"parameters,omitempty"`

	AppliesTo         string   `json:"applies_to"`
	CustomerSegments  []string `json:"customer_segments"`
	TransactionTypes  []string `json:"transaction_types"`
	Channels          []string `json:"channels"`

	RiskWeight    float64 `json:"risk_weight"`
	SeverityLevel string  `json:"severity_level"`
	AlertPriority int     `json:"alert_priority"`

	Status        RuleStatus `json:"status"`
	Version       string     `json:"version"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`

	TestResults       *RuleTestResults `json:"test_results,omitempty"`
	FalsePositiveRate *float64         `json:"false_positive_rate,omitempty"`
	EffectivenessScore *float64        `json:"effectiveness_score,omitempty"`
	LastTested        *time.Time       `json:"last_tested,omitempty"`

	// CoolingPeriod and MaxAlertsPerDay are carried on the type for
	// schema forward-compatibility with the distilled source but are not
	// enforced by any predicate in this revision (see DESIGN.md).
	CoolingPeriod  *int `json:"cooling_period,omitempty"`
	MaxAlertsPerDay *int `json:"max_alerts_per_day,omitempty"`

	TotalTriggers  int `json:"total_triggers"`
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	AlertsGenerated int `json:"alerts_generated"`
	CasesCreated   int `json:"cases_created"`
	STRsFiled      int `json:"strs_filed"`

	TuningRequired bool `json:"tuning_required"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy uuid.UUID `json:"created_by"`
}

func (r *Rule) ConditionEnabled(p Predicate) bool {
	if r.Conditions == nil {
		return false
	}
	return r.Conditions[p]
}
