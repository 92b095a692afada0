// Package monitoring implements the Monitoring Engine (§4.4): real-time
// transaction ingestion, the six rule predicates in fixed evaluation
// order, the three pattern detectors, and alert emission. Grounded on the
// distilled source's transaction_monitoring.py.
package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ngbank/aml-compliance/internal/audit"
	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/metrics"
	"github.com/ngbank/aml-compliance/internal/store"
)

// RuleCache reads the derived, non-authoritative snapshot of active rules
// (§5); a cache miss or error always falls through to the Store.
type RuleCache interface {
	GetActiveRules(ctx context.Context) ([]*domain.Rule, bool)
	SetActiveRules(ctx context.Context, rules []*domain.Rule)
}

// TxManager runs fn inside a single backing-store transaction, so the
// transaction row, every alert it generates, and the audit trail commit or
// roll back together (§5: "a reader never sees a transaction without its
// alerts or vice versa"). Declared locally, rather than importing the
// concrete postgres package, so Engine keeps depending only on interfaces.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Engine struct {
	customers store.CustomerStore
	txns      store.TransactionStore
	rules     store.RuleStore
	alerts    store.AlertStore
	cache     RuleCache
	sink      *audit.Sink
	tx        TxManager
	metrics   *metrics.Monitoring
	now       func() time.Time
}

func NewEngine(customers store.CustomerStore, txns store.TransactionStore, rules store.RuleStore, alerts store.AlertStore, cache RuleCache, sink *audit.Sink, tx TxManager, m *metrics.Monitoring) *Engine {
	return &Engine{
		customers: customers,
		txns:      txns,
		rules:     rules,
		alerts:    alerts,
		cache:     cache,
		sink:      sink,
		tx:        tx,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type ProcessInput struct {
	TransactionID      string
	CustomerID         uuid.UUID
	TransactionType    string
	TransactionMethod  string
	Channel            string
	Money              domain.Money
	AccountNumber      string
	BeneficiaryName    string
	BeneficiaryAccount string
	BeneficiaryBank    string
	BeneficiaryCountry string
	HomeCountry        string
	Description        string
	Location           string
}

// ProcessTransaction is the single entry point for transaction ingestion:
// it builds the Transaction row, runs the full monitoring pass against
// it, persists the transaction and every generated alert, and emits the
// audit trail — all before returning, so a caller never observes a
// transaction whose monitoring outcome hasn't been committed (§4.4's
// atomic-commit requirement).
func (e *Engine) ProcessTransaction(ctx context.Context, actor uuid.UUID, in ProcessInput) (*domain.Transaction, []*domain.Alert, error) {
	if in.HomeCountry == "" {
		in.HomeCountry = "NG"
	}

	if e.metrics != nil {
		start := e.now()
		defer func() {
			e.metrics.PassDuration.Observe(e.now().Sub(start).Seconds())
		}()
		e.metrics.TransactionsProcessed.Inc()
	}

	now := e.now()
	t := &domain.Transaction{
		ID:                 uuid.New(),
		TransactionID:      in.TransactionID,
		ReferenceNumber:    fmt.Sprintf("REF-%s-%s", now.Format("20060102"), uuid.New().String()[:8]),
		TransactionType:    in.TransactionType,
		TransactionMethod:  in.TransactionMethod,
		Channel:            in.Channel,
		Money:              in.Money,
		CustomerID:         in.CustomerID,
		AccountNumber:      in.AccountNumber,
		BeneficiaryName:    in.BeneficiaryName,
		BeneficiaryAccount: in.BeneficiaryAccount,
		BeneficiaryBank:    in.BeneficiaryBank,
		BeneficiaryCountry: in.BeneficiaryCountry,
		HomeCountry:        in.HomeCountry,
		Description:        in.Description,
		Location:           in.Location,
		TransactionDate:    now,
		ValueDate:          now,
		ProcessingDate:     now,
		Status:             domain.TransactionCompleted,
		CashTransaction:    in.TransactionMethod == "cash" || in.TransactionMethod == "atm_withdrawal",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	t.DeriveSystemFields()

	customer, err := e.customers.GetByID(ctx, in.CustomerID)
	if err != nil {
		return nil, nil, err
	}

	result, err := e.runMonitoring(ctx, t, customer)
	if err != nil {
		return nil, nil, err
	}

	t.ApplyRiskScore(result.RiskScore)
	t.RiskFlags = result.RiskFlags
	t.AlertCount = len(result.AlertsGenerated)
	t.StructuringIndicator = result.RiskFlags[domain.FlagStructuring]
	t.VelocityFlag = result.RiskFlags[domain.FlagVelocity]
	t.AmountThresholdFlag = result.RiskFlags[domain.FlagAmountThreshold]
	t.UnusualPatternFlag = result.RiskFlags[domain.FlagUnusualAmount]

	var alerts []*domain.Alert
	err = e.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := e.txns.Create(ctx, t); err != nil {
			return err
		}

		for _, ad := range result.AlertsGenerated {
			a := domain.NewAlert(t.CustomerID, fmt.Sprintf("TXN-%s-%s", now.Format("20060102"), uuid.New().String()[:8]))
			a.AlertType = "transaction_monitoring"
			a.Category = "aml"
			a.TransactionID = &t.ID
			a.RuleID = ad.RuleID
			a.Title = fmt.Sprintf("Suspicious Transaction: %s", ad.RuleName)
			a.Description = fmt.Sprintf("Transaction %s triggered AML rule: %s", t.TransactionID, ad.RuleName)
			a.Severity = domain.AlertSeverity(ad.Severity)
			a.RiskScore = decimal.NewFromFloat(ad.RiskScore)
			a.TriggeredRules = []string{ad.RuleName}
			a.ThresholdValues = ad.ThresholdValues
			a.DetectionMethod = domain.DetectionRuleBased
			a.RegulatorySignificance = true

			if err := e.alerts.Create(ctx, a); err != nil {
				return err
			}
			alerts = append(alerts, a)
			if e.metrics != nil {
				e.metrics.AlertsGenerated.WithLabelValues(string(a.Severity)).Inc()
			}

			if err := e.emitAlert(ctx, actor, a, t); err != nil {
				return err
			}
		}

		return e.emitTransaction(ctx, actor, t, result)
	})
	if err != nil {
		return nil, nil, err
	}

	return t, alerts, nil
}

// ruleResult is one rule's contribution to a monitoring pass.
type ruleResult struct {
	Triggered       bool
	RiskContribution float64
	AlertRequired   bool
	ThresholdValues map[string]float64
	Flags           map[string]bool
}

type alertDraft struct {
	RuleID          *uuid.UUID
	RuleName        string
	RiskScore       float64
	ThresholdValues map[string]float64
	Severity        string
}

type monitoringResult struct {
	RiskScore      decimal.Decimal
	RiskFlags      domain.RiskFlags
	AlertsGenerated []alertDraft
}

// runMonitoring applies every active transaction_monitoring rule's
// enabled predicates in PredicateEvaluationOrder, then the three pattern
// detectors, accumulating risk_score and risk_flags exactly as
// perform_aml_monitoring does.
func (e *Engine) runMonitoring(ctx context.Context, t *domain.Transaction, customer *domain.Customer) (*monitoringResult, error) {
	activeRules, err := e.activeRules(ctx)
	if err != nil {
		return nil, err
	}

	riskScore := 0.0
	flags := domain.RiskFlags{}
	var drafts []alertDraft

	for _, rule := range activeRules {
		if rule.RuleType != "transaction_monitoring" {
			continue
		}
		rr, err := e.applyRule(ctx, t, customer, rule)
		if err != nil {
			return nil, err
		}
		if !rr.Triggered {
			continue
		}
		riskScore += rr.RiskContribution
		for k, v := range rr.Flags {
			flags[k] = flags[k] || v
			if v && e.metrics != nil {
				e.metrics.RuleTriggered.WithLabelValues(k).Inc()
			}
		}
		if rr.AlertRequired {
			rid := rule.ID
			drafts = append(drafts, alertDraft{
				RuleID:          &rid,
				RuleName:        rule.RuleName,
				RiskScore:       rr.RiskContribution,
				ThresholdValues: rr.ThresholdValues,
				Severity:        rule.SeverityLevel,
			})
		}
	}

	pattern, err := e.detectPatterns(ctx, t, customer)
	if err != nil {
		return nil, err
	}
	riskScore += pattern.RiskContribution
	for k, v := range pattern.Flags {
		flags[k] = v
	}
	drafts = append(drafts, pattern.Alerts...)

	return &monitoringResult{
		RiskScore:       domain.ClampScore(decimal.NewFromFloat(riskScore)),
		RiskFlags:       flags,
		AlertsGenerated: drafts,
	}, nil
}

// applyRule evaluates one rule's enabled predicates against t/customer in
// the fixed PredicateEvaluationOrder (§4.4 step 3). cross_border assigns
// its base contribution then ADDS the sanctioned-country bonus rather
// than overwriting it, and customer_risk contributes additively for both
// risk_category=high and pep_status (a deliberate divergence from the
// distilled source's if/elif, recorded in DESIGN.md).
func (e *Engine) applyRule(ctx context.Context, t *domain.Transaction, customer *domain.Customer, rule *domain.Rule) (ruleResult, error) {
	result := ruleResult{ThresholdValues: map[string]float64{}, Flags: map[string]bool{}}

	if rule.ConditionEnabled(domain.PredicateAmountThreshold) {
		threshold := rule.Thresholds.AmountOrDefault()
		if t.Money.Amount.GreaterThanOrEqual(decimal.NewFromFloat(threshold)) {
			result.Triggered = true
			result.RiskContribution = rule.RiskWeight * 20.0
			result.AlertRequired = true
			result.ThresholdValues["amount"] = threshold
			result.Flags[domain.FlagAmountThreshold] = true
		}
	}

	if rule.ConditionEnabled(domain.PredicateVelocityCheck) {
		exceeded, count, total, err := e.checkVelocity(ctx, customer.ID)
		if err != nil {
			return result, err
		}
		if exceeded {
			result.Triggered = true
			result.RiskContribution = rule.RiskWeight * 15.0
			result.AlertRequired = true
			result.ThresholdValues["velocity_count"] = float64(count)
			result.ThresholdValues["velocity_total"] = total
			result.Flags[domain.FlagVelocity] = true
		}
	}

	if rule.ConditionEnabled(domain.PredicateStructuringDetect) {
		likely, count, total, err := e.detectStructuring(ctx, customer.ID)
		if err != nil {
			return result, err
		}
		if likely {
			result.Triggered = true
			result.RiskContribution = rule.RiskWeight * 25.0
			result.AlertRequired = true
			result.ThresholdValues["structuring_count"] = float64(count)
			result.ThresholdValues["structuring_total"] = total
			result.Flags[domain.FlagStructuring] = true
		}
	}

	if rule.ConditionEnabled(domain.PredicateCrossBorder) && t.CrossBorder {
		result.Triggered = true
		result.RiskContribution = rule.RiskWeight * 10.0
		result.Flags[domain.FlagCrossBorder] = true
		if domain.SanctionedNationalities[t.BeneficiaryCountry] {
			result.RiskContribution += rule.RiskWeight * 20.0
			result.AlertRequired = true
		}
	}

	if rule.ConditionEnabled(domain.PredicateCashMonitoring) && t.CashTransaction {
		cashThreshold := rule.Thresholds.CashAmountOrDefault()
		if t.Money.Amount.GreaterThanOrEqual(decimal.NewFromFloat(cashThreshold)) {
			result.Triggered = true
			result.RiskContribution = rule.RiskWeight * 15.0
			result.AlertRequired = true
			result.Flags[domain.FlagCashMonitoring] = true
		}
	}

	if rule.ConditionEnabled(domain.PredicateCustomerRisk) {
		if customer.RiskCategory == domain.RiskCategoryHigh {
			result.Triggered = true
			result.RiskContribution += rule.RiskWeight * 10.0
			result.Flags[domain.FlagCustomerRisk] = true
		}
		if customer.PEPStatus {
			result.Triggered = true
			result.RiskContribution += rule.RiskWeight * 15.0
			result.AlertRequired = true
			result.Flags[domain.FlagPEP] = true
		}
	}

	return result, nil
}

const velocityWindow = 24 * time.Hour

func (e *Engine) checkVelocity(ctx context.Context, customerID uuid.UUID) (exceeded bool, count int, total float64, err error) {
	since := e.now().Add(-velocityWindow)
	txns, err := e.txns.ListByCustomerSince(ctx, customerID, since)
	if err != nil {
		return false, 0, 0, err
	}
	sum := decimal.Zero
	for _, t := range txns {
		sum = sum.Add(t.Money.Amount)
	}
	totalF, _ := sum.Float64()
	countThreshold := 50
	amountThreshold := 10_000_000.0
	return len(txns) >= countThreshold || totalF >= amountThreshold, len(txns), totalF, nil
}

// detectStructuring looks for 3+ transactions in the last 24 hours whose
// individual amounts sit in [0.8x, 0.99x] the CTR threshold and whose sum
// would have cleared it, per detect_structuring.
func (e *Engine) detectStructuring(ctx context.Context, customerID uuid.UUID) (likely bool, count int, total float64, err error) {
	since := e.now().Add(-24 * time.Hour)
	txns, err := e.txns.ListByCustomerSince(ctx, customerID, since)
	if err != nil {
		return false, 0, 0, err
	}

	ctr := domain.CTRThreshold
	low := ctr.Mul(decimal.NewFromFloat(0.8))
	high := ctr.Mul(decimal.NewFromFloat(0.99))

	var matched []*domain.Transaction
	sum := decimal.Zero
	for _, t := range txns {
		if t.Money.Amount.GreaterThanOrEqual(low) && t.Money.Amount.LessThanOrEqual(high) {
			matched = append(matched, t)
			sum = sum.Add(t.Money.Amount)
		}
	}

	totalF, _ := sum.Float64()
	likely = len(matched) >= 3 && sum.GreaterThan(ctr)
	return likely, len(matched), totalF, nil
}

type patternResult struct {
	RiskContribution float64
	Flags            map[string]bool
	Alerts           []alertDraft
}

// detectPatterns runs the three always-on pattern detectors (unusual
// time, round amount, unusual-vs-average amount) per
// detect_transaction_patterns.
func (e *Engine) detectPatterns(ctx context.Context, t *domain.Transaction, customer *domain.Customer) (patternResult, error) {
	result := patternResult{Flags: map[string]bool{}}

	hour := t.TransactionDate.Hour()
	if hour < 6 || hour > 22 {
		result.RiskContribution += 5.0
		result.Flags[domain.FlagUnusualTime] = true
	}

	million := decimal.NewFromInt(1_000_000)
	if t.Money.Amount.GreaterThanOrEqual(million) && t.Money.Amount.Mod(million).IsZero() {
		result.RiskContribution += 8.0
		result.Flags[domain.FlagRoundAmount] = true
	}

	since := e.now().AddDate(0, 0, -30)
	recent, err := e.txns.ListByCustomerSince(ctx, customer.ID, since)
	if err != nil {
		return result, err
	}
	if len(recent) > 0 {
		sum := decimal.Zero
		for _, r := range recent {
			sum = sum.Add(r.Money.Amount)
		}
		avg := sum.Div(decimal.NewFromInt(int64(len(recent))))
		if !avg.IsZero() && t.Money.Amount.GreaterThan(avg.Mul(decimal.NewFromInt(10))) {
			result.RiskContribution += 15.0
			result.Flags[domain.FlagUnusualAmount] = true
			result.Alerts = append(result.Alerts, alertDraft{
				RuleName:  "Unusual Amount Pattern",
				RiskScore: 15.0,
				Severity:  "medium",
			})
		}
	}

	return result, nil
}

// activeRules reads the derived Redis snapshot first (§5); any cache miss
// or error falls back to the Store, which remains authoritative.
func (e *Engine) activeRules(ctx context.Context) ([]*domain.Rule, error) {
	if e.cache != nil {
		if cached, ok := e.cache.GetActiveRules(ctx); ok {
			return cached, nil
		}
	}
	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.SetActiveRules(ctx, rules)
	}
	return rules, nil
}

// emitTransaction records the processed-transaction audit event. A sink
// failure is returned so the caller's enclosing transaction rolls back
// (§4.1: audit-write failure is fatal to the enclosing operation).
func (e *Engine) emitTransaction(ctx context.Context, actor uuid.UUID, t *domain.Transaction, result *monitoringResult) error {
	log := domain.NewAuditLog(domain.CategoryTransactionMonitor, "create")
	log.EventType = "transaction_processed"
	log.UserID = &actor
	log.ResourceType = "transaction"
	log.ResourceID = t.ID.String()
	log.Description = fmt.Sprintf("Transaction %s processed for amount %s %s", t.TransactionID, t.Money.Amount.String(), t.Money.Currency)
	score, _ := result.RiskScore.Float64()
	log.RiskScore = &score
	log.SuspiciousActivity = t.IsSuspicious
	log.RegulatorySignificance = true
	return e.sink.Emit(ctx, log)
}

func (e *Engine) emitAlert(ctx context.Context, actor uuid.UUID, a *domain.Alert, t *domain.Transaction) error {
	log := domain.NewAuditLog(domain.CategoryTransactionMonitor, "create")
	log.EventType = "alert_generated"
	log.UserID = &actor
	log.ResourceType = "alert"
	log.ResourceID = a.ID.String()
	log.Description = fmt.Sprintf("Alert generated for transaction %s", t.TransactionID)
	log.RegulatorySignificance = true
	return e.sink.Emit(ctx, log)
}

// GetSuspiciousTransactions retrieves flagged transactions for review,
// mirroring get_suspicious_transactions.
func (e *Engine) GetSuspiciousTransactions(ctx context.Context, days, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	from := e.now().AddDate(0, 0, -days)
	status := domain.TransactionCompleted
	txns, _, err := e.txns.List(ctx, store.TransactionFilter{From: &from, Status: &status, Limit: limit})
	if err != nil {
		return nil, err
	}

	suspicious := make([]*domain.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.IsSuspicious {
			suspicious = append(suspicious, t)
		}
	}
	if len(suspicious) > limit {
		suspicious = suspicious[:limit]
	}
	return suspicious, nil
}
