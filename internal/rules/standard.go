package rules

import (
	"context"

	"github.com/google/uuid"

	"github.com/ngbank/aml-compliance/internal/apperr"
	"github.com/ngbank/aml-compliance/internal/domain"
)

// StandardCBNRules is the seed set SeedStandardRules installs, mirroring
// create_standard_cbn_rules; nothing in cmd/server calls it at start-up. Thresholds are expressed in naira, matching the §6 constants
// rather than the distilled source's hard-coded cent-denominated literals.
var StandardCBNRules = []CreateRuleInput{
	{
		RuleName:              "High Value Cash Transaction",
		RuleCode:              "CBN-CASH-001",
		RuleType:              "transaction_monitoring",
		Category:              "aml",
		Description:           "Monitor cash transactions above CBN reporting threshold",
		BusinessJustification: "CBN requires reporting of cash transactions above 5M NGN",
		RegulatoryReference:   "CBN AML/CFT Guidelines Section 4.2",
		Conditions: map[domain.Predicate]bool{
			domain.PredicateAmountThreshold: true,
			domain.PredicateCashMonitoring:  true,
		},
		Thresholds:       domain.RuleThresholds{domain.ThresholdAmount: 5_000_000, domain.ThresholdCashAmount: 5_000_000},
		TransactionTypes: []string{"deposit", "withdrawal"},
		RiskWeight:       1.5,
		SeverityLevel:    "high",
		AlertPriority:    2,
	},
	{
		RuleName:              "Rapid Transaction Velocity",
		RuleCode:              "CBN-VEL-001",
		RuleType:              "transaction_monitoring",
		Category:              "aml",
		Description:           "Detect rapid succession of transactions indicating possible structuring",
		BusinessJustification: "High frequency transactions may indicate structuring to avoid reporting",
		RegulatoryReference:   "CBN AML/CFT Guidelines Section 3.1",
		Conditions: map[domain.Predicate]bool{
			domain.PredicateVelocityCheck:     true,
			domain.PredicateStructuringDetect: true,
		},
		Thresholds:    domain.RuleThresholds{"transaction_count_24h": 50, "amount_24h": 10_000_000},
		RiskWeight:    1.2,
		SeverityLevel: "medium",
		AlertPriority: 3,
	},
	{
		RuleName:              "Cross-Border High Risk Country",
		RuleCode:              "CBN-CB-001",
		RuleType:              "transaction_monitoring",
		Category:              "aml",
		Description:           "Monitor transactions to/from high-risk countries",
		BusinessJustification: "Transactions with high-risk jurisdictions require enhanced monitoring",
		RegulatoryReference:   "CBN AML/CFT Guidelines Section 5.3",
		Conditions: map[domain.Predicate]bool{
			domain.PredicateCrossBorder:     true,
			domain.PredicateHighRiskCountry: true,
		},
		Thresholds:    domain.RuleThresholds{domain.ThresholdAmount: 1_000_000},
		RiskWeight:    2.0,
		SeverityLevel: "high",
		AlertPriority: 1,
	},
	{
		RuleName:              "PEP Transaction Monitoring",
		RuleCode:              "CBN-PEP-001",
		RuleType:              "transaction_monitoring",
		Category:              "aml",
		Description:           "Enhanced monitoring of Politically Exposed Persons",
		BusinessJustification: "PEPs require enhanced due diligence and monitoring",
		RegulatoryReference:   "CBN AML/CFT Guidelines Section 6.1",
		Conditions: map[domain.Predicate]bool{
			domain.PredicateCustomerRisk:  true,
			domain.PredicatePEPMonitoring: true,
		},
		Thresholds:    domain.RuleThresholds{domain.ThresholdAmount: 500_000},
		AppliesTo:     "individuals",
		RiskWeight:    1.8,
		SeverityLevel: "high",
		AlertPriority: 2,
	},
}

// SeedStandardRules installs the CBN rule set, skipping any rule code
// that already exists rather than failing the whole batch — mirroring
// create_standard_cbn_rules's tolerant loop.
func (r *Registry) SeedStandardRules(ctx context.Context, actor uuid.UUID) ([]*domain.Rule, error) {
	var created []*domain.Rule
	for _, in := range StandardCBNRules {
		rule, err := r.Create(ctx, actor, in)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindConflict {
				continue
			}
			return created, err
		}
		created = append(created, rule)
	}

	if err := r.emit(ctx, actor, "standard_rules_created", "create", uuid.Nil,
		"Created standard CBN-compliant AML rules", map[string]any{"count": len(created)}, nil, nil); err != nil {
		return created, err
	}

	return created, nil
}
