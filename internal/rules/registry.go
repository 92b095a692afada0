// Package rules implements the Rule Registry (§4.3): creation, historical
// back-testing, activation lifecycle, threshold tuning, performance
// review, and the standard CBN rule set. Grounded on the distilled
// source's rules_engine.py.
package rules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ngbank/aml-compliance/internal/apperr"
	"github.com/ngbank/aml-compliance/internal/audit"
	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/store"
)

// SnapshotInvalidator is the narrow capability the Registry needs from
// the Monitoring Engine's rule cache (§5): whenever a rule's active set
// could have changed, the cached snapshot must be dropped so the next
// monitoring pass reads through to the Store instead of a stale list.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context)
}

type Registry struct {
	rules store.RuleStore
	txns  store.TransactionStore
	sink  *audit.Sink
	cache SnapshotInvalidator
}

func NewRegistry(rules store.RuleStore, txns store.TransactionStore, sink *audit.Sink, cache SnapshotInvalidator) *Registry {
	return &Registry{rules: rules, txns: txns, sink: sink, cache: cache}
}

func (r *Registry) invalidateCache(ctx context.Context) {
	if r.cache != nil {
		r.cache.Invalidate(ctx)
	}
}

type CreateRuleInput struct {
	RuleName              string
	RuleCode              string
	RuleType              string
	Category              string
	Description           string
	BusinessJustification string
	RegulatoryReference   string
	Conditions            map[domain.Predicate]bool
	Thresholds            domain.RuleThresholds
	AppliesTo             string
	CustomerSegments      []string
	TransactionTypes      []string
	Channels              []string
	RiskWeight            float64
	SeverityLevel         string
	AlertPriority         int
}

// Create validates rule_code uniqueness and inserts a new rule in draft
// status, mirroring create_aml_rule.
func (r *Registry) Create(ctx context.Context, actor uuid.UUID, in CreateRuleInput) (*domain.Rule, error) {
	if _, err := r.rules.GetByCode(ctx, in.RuleCode); err == nil {
		return nil, apperr.Conflict("rule_code_exists", fmt.Sprintf("rule code %s already exists", in.RuleCode))
	} else if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}

	appliesTo := in.AppliesTo
	if appliesTo == "" {
		appliesTo = "all"
	}

	now := time.Now().UTC()
	rule := &domain.Rule{
		ID:                    uuid.New(),
		RuleName:              in.RuleName,
		RuleCode:              in.RuleCode,
		RuleType:              in.RuleType,
		Category:              in.Category,
		Description:           in.Description,
		BusinessJustification: in.BusinessJustification,
		RegulatoryReference:   in.RegulatoryReference,
		Conditions:            in.Conditions,
		Thresholds:            in.Thresholds,
		AppliesTo:             appliesTo,
		CustomerSegments:      in.CustomerSegments,
		TransactionTypes:      in.TransactionTypes,
		Channels:              in.Channels,
		RiskWeight:            in.RiskWeight,
		SeverityLevel:         in.SeverityLevel,
		AlertPriority:         in.AlertPriority,
		Status:                domain.RuleStatusDraft,
		Version:               "1.0",
		CreatedAt:             now,
		UpdatedAt:             now,
		CreatedBy:             actor,
	}

	if err := r.rules.Create(ctx, rule); err != nil {
		return nil, err
	}

	if err := r.emit(ctx, actor, "rule_created", "create", rule.ID,
		fmt.Sprintf("AML rule %s (%s) created", rule.RuleName, rule.RuleCode),
		map[string]any{"rule_type": rule.RuleType, "category": rule.Category}, nil, nil); err != nil {
		return nil, err
	}

	return rule, nil
}

// Activate requires the rule to have been tested at least once and not
// already be active, per the distilled source's activate_rule.
func (r *Registry) Activate(ctx context.Context, actor uuid.UUID, ruleID uuid.UUID) (*domain.Rule, error) {
	rule, err := r.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.Status == domain.RuleStatusActive {
		return nil, apperr.State("rule_already_active", "rule is already active")
	}
	if rule.LastTested == nil {
		return nil, apperr.State("rule_not_tested", "rule must be tested before activation")
	}

	oldStatus := rule.Status
	expectedUpdatedAt := rule.UpdatedAt
	now := time.Now().UTC()
	rule.Status = domain.RuleStatusActive
	rule.EffectiveDate = &now
	rule.UpdatedAt = now

	if err := r.rules.Update(ctx, rule, expectedUpdatedAt); err != nil {
		return nil, err
	}
	r.invalidateCache(ctx)

	if err := r.emit(ctx, actor, "rule_activated", "activate", rule.ID,
		fmt.Sprintf("Rule %s activated for production monitoring", rule.RuleName),
		nil, map[string]any{"status": oldStatus}, map[string]any{"status": rule.Status}); err != nil {
		return nil, err
	}

	return rule, nil
}

// Deactivate requires the rule currently be active, per deactivate_rule.
func (r *Registry) Deactivate(ctx context.Context, actor uuid.UUID, ruleID uuid.UUID, reason string) (*domain.Rule, error) {
	rule, err := r.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.Status != domain.RuleStatusActive {
		return nil, apperr.State("rule_not_active", "rule is not currently active")
	}

	oldStatus := rule.Status
	expectedUpdatedAt := rule.UpdatedAt
	rule.Status = domain.RuleStatusInactive
	rule.UpdatedAt = time.Now().UTC()

	if err := r.rules.Update(ctx, rule, expectedUpdatedAt); err != nil {
		return nil, err
	}
	r.invalidateCache(ctx)

	if err := r.emit(ctx, actor, "rule_deactivated", "deactivate", rule.ID,
		fmt.Sprintf("Rule %s deactivated. Reason: %s", rule.RuleName, reason),
		map[string]any{"deactivation_reason": reason},
		map[string]any{"status": oldStatus}, map[string]any{"status": rule.Status}); err != nil {
		return nil, err
	}

	return rule, nil
}

// UpdateThresholds bumps the rule's version and clears tuning_required,
// per update_rule_thresholds.
func (r *Registry) UpdateThresholds(ctx context.Context, actor uuid.UUID, ruleID uuid.UUID, newThresholds domain.RuleThresholds, reason string) (*domain.Rule, error) {
	rule, err := r.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	oldThresholds := rule.Thresholds
	expectedUpdatedAt := rule.UpdatedAt
	rule.Thresholds = newThresholds
	rule.Version = IncrementVersion(rule.Version)
	rule.TuningRequired = false
	rule.UpdatedAt = time.Now().UTC()

	if err := r.rules.Update(ctx, rule, expectedUpdatedAt); err != nil {
		return nil, err
	}
	r.invalidateCache(ctx)

	if err := r.emit(ctx, actor, "rule_thresholds_updated", "update", rule.ID,
		fmt.Sprintf("Rule %s thresholds updated. Reason: %s", rule.RuleName, reason),
		map[string]any{"update_reason": reason},
		map[string]any{"thresholds": oldThresholds}, map[string]any{"thresholds": rule.Thresholds}); err != nil {
		return nil, err
	}

	return rule, nil
}

// IncrementVersion bumps the minor component of an "M.n" version string,
// falling back to "1.1" for anything it can't parse — mirroring the
// distilled source's increment_version.
func IncrementVersion(current string) string {
	parts := strings.SplitN(current, ".", 2)
	if len(parts) != 2 {
		return "1.1"
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return "1.1"
	}
	return fmt.Sprintf("%s.%d", parts[0], minor+1)
}

// TestResult is the outcome of back-testing a rule against historical
// transactions, mirroring test_rule_against_historical_data.
type TestResult struct {
	TestPeriodDays   int
	TotalTransactions int
	TotalTriggers    int
	TruePositives    int
	FalsePositives   int
	TriggerRate      float64
	FalsePositiveRate float64
	Precision        float64
	EffectivenessScore float64
}

// TestAgainstHistory runs evaluate, the caller's stand-in for the rule's
// conditions, over up to 1000 of the most recent transactions dated within
// the test window, using the already-recorded is_suspicious flag as the
// true-positive heuristic — identical to the distilled source's
// simplification. Transactions of every status are included, and the
// rule's scope (customer segments, transaction types, channels) is not
// applied.
func (r *Registry) TestAgainstHistory(ctx context.Context, actor uuid.UUID, ruleID uuid.UUID, testPeriodDays int, evaluate func(*domain.Transaction) bool) (*TestResult, error) {
	rule, err := r.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().AddDate(0, 0, -testPeriodDays)
	txns, _, err := r.txns.List(ctx, store.TransactionFilter{From: &since, Limit: 1000})
	if err != nil {
		return nil, err
	}

	var totalTriggers, truePositives, falsePositives int
	for _, t := range txns {
		if !evaluate(t) {
			continue
		}
		totalTriggers++
		if t.IsSuspicious {
			truePositives++
		} else {
			falsePositives++
		}
	}

	result := &TestResult{
		TestPeriodDays:    testPeriodDays,
		TotalTransactions: len(txns),
	}
	result.TotalTriggers = totalTriggers
	result.TruePositives = truePositives
	result.FalsePositives = falsePositives
	if len(txns) > 0 {
		result.TriggerRate = round2(float64(totalTriggers) / float64(len(txns)) * 100)
	}
	if totalTriggers > 0 {
		result.FalsePositiveRate = round2(float64(falsePositives) / float64(totalTriggers) * 100)
		result.Precision = round3(float64(truePositives) / float64(totalTriggers))
	}
	result.EffectivenessScore = round3(result.Precision * (1 - result.FalsePositiveRate/100))

	expectedUpdatedAt := rule.UpdatedAt
	now := time.Now().UTC()
	rule.TestResults = &domain.RuleTestResults{
		TriggerRate:       result.TriggerRate,
		FalsePositiveRate: result.FalsePositiveRate,
		Precision:         result.Precision,
		Effectiveness:     result.EffectivenessScore,
		SampleSize:        len(txns),
	}
	fpr := result.FalsePositiveRate
	eff := result.EffectivenessScore
	rule.FalsePositiveRate = &fpr
	rule.EffectivenessScore = &eff
	rule.LastTested = &now
	rule.UpdatedAt = now

	if err := r.rules.Update(ctx, rule, expectedUpdatedAt); err != nil {
		return nil, err
	}

	if err := r.emit(ctx, actor, "rule_tested", "test", rule.ID,
		fmt.Sprintf("Rule %s tested against %d historical transactions", rule.RuleName, len(txns)),
		map[string]any{
			"total_triggers":  totalTriggers,
			"true_positives":  truePositives,
			"false_positives": falsePositives,
		}, nil, nil); err != nil {
		return nil, err
	}

	return result, nil
}

// PerformanceMetrics summarises a rule's real-world alert output over a
// period, mirroring get_rule_performance_metrics. requires_tuning uses
// the same thresholds as the distilled source: false positive rate above
// 70% or escalation rate below 10%.
type PerformanceMetrics struct {
	TotalAlerts       int
	FalsePositives    int
	ResolvedAlerts    int
	EscalatedAlerts   int
	FalsePositiveRate float64
	EscalationRate    float64
	ResolutionRate    float64
	RequiresTuning    bool
}

func ComputePerformance(totalAlerts, falsePositives, resolvedAlerts, escalatedAlerts int) PerformanceMetrics {
	m := PerformanceMetrics{
		TotalAlerts:     totalAlerts,
		FalsePositives:  falsePositives,
		ResolvedAlerts:  resolvedAlerts,
		EscalatedAlerts: escalatedAlerts,
	}
	if totalAlerts > 0 {
		m.FalsePositiveRate = round2(float64(falsePositives) / float64(totalAlerts) * 100)
		m.EscalationRate = round2(float64(escalatedAlerts) / float64(totalAlerts) * 100)
		m.ResolutionRate = round2(float64(resolvedAlerts) / float64(totalAlerts) * 100)
	}
	m.RequiresTuning = m.FalsePositiveRate > 70 || m.EscalationRate < 10
	return m
}

func (r *Registry) ListActive(ctx context.Context) ([]*domain.Rule, error) {
	return r.rules.ListActive(ctx)
}

// emit persists the audit trail for a rule-lifecycle action. Its error is
// fatal to the enclosing operation (§4.1): the caller's primary write has
// already landed, so a ledger failure here must still surface rather than
// be swallowed, even though nothing short of a future compensating action
// can undo the already-committed rule update.
func (r *Registry) emit(ctx context.Context, actor uuid.UUID, eventType, action string, resourceID uuid.UUID, description string, details, oldValues, newValues map[string]any) error {
	log := domain.NewAuditLog(domain.CategoryRulesManagement, action)
	log.EventType = eventType
	log.UserID = &actor
	log.ResourceType = "rule"
	log.ResourceID = resourceID.String()
	log.Description = description
	log.Details = details
	log.OldValues = oldValues
	log.NewValues = newValues
	log.RegulatorySignificance = true
	return r.sink.Emit(ctx, log)
}

func round2(f float64) float64 { return float64(int(f*100+0.5)) / 100 }
func round3(f float64) float64 { return float64(int(f*1000+0.5)) / 1000 }
