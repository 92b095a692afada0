// Package customerrisk implements the Customer Risk Service (§4.5):
// onboarding, initial and dynamic risk scoring, sanctions/PEP screening,
// and risk-tiered daily transaction limits. Grounded on the distilled
// source's customer_service.py.
package customerrisk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ngbank/aml-compliance/internal/audit"
	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/store"
)

type Service struct {
	customers store.CustomerStore
	txns      store.TransactionStore
	alerts    store.AlertStore
	sink      *audit.Sink
	now       func() time.Time
}

func NewService(customers store.CustomerStore, txns store.TransactionStore, alerts store.AlertStore, sink *audit.Sink) *Service {
	return &Service{customers: customers, txns: txns, alerts: alerts, sink: sink, now: func() time.Time { return time.Now().UTC() }}
}

type OnboardInput struct {
	FirstName          string
	LastName           string
	Email              string
	Phone              string
	DateOfBirth        time.Time
	Nationality        string
	CustomerID         string
	BVN                string
	NIN                string
	AddressLine1       string
	AddressLine2       string
	City               string
	State              string
	Country            string
	PostalCode         string
	AccountNumbers     []string
	AccountTypes       []string
	AccountOpeningDate time.Time
}

// Onboard creates a customer record with its initial risk assessment,
// mirroring create_customer.
func (s *Service) Onboard(ctx context.Context, actor uuid.UUID, in OnboardInput) (*domain.Customer, error) {
	c := domain.NewCustomer(actor)
	c.FirstName = in.FirstName
	c.LastName = in.LastName
	c.Email = in.Email
	c.Phone = in.Phone
	c.DateOfBirth = in.DateOfBirth
	c.Nationality = in.Nationality
	c.CustomerID = in.CustomerID
	c.BVN = in.BVN
	c.NIN = in.NIN
	c.AddressLine1 = in.AddressLine1
	c.AddressLine2 = in.AddressLine2
	c.City = in.City
	c.State = in.State
	c.Country = in.Country
	c.PostalCode = in.PostalCode
	c.AccountNumbers = in.AccountNumbers
	c.AccountTypes = in.AccountTypes
	c.AccountOpeningDate = in.AccountOpeningDate

	c.ApplyRiskScore(CalculateInitialRiskScore(in.Nationality, in.AccountTypes))

	if err := s.customers.Create(ctx, c); err != nil {
		return nil, err
	}

	if err := s.emit(ctx, actor, "customer_created", "create", c.ID,
		fmt.Sprintf("Customer %s %s created", c.FirstName, c.LastName), nil, nil, nil); err != nil {
		return nil, err
	}

	return c, nil
}

// CalculateInitialRiskScore is the pure function onboarding uses to seed a
// new customer's risk score, mirroring calculate_initial_risk_score.
func CalculateInitialRiskScore(nationality string, accountTypes []string) decimal.Decimal {
	score := 10.0
	if domain.SanctionedNationalities[nationality] {
		score += 40.0
	}
	for _, t := range accountTypes {
		if domain.HighRiskAccountTypes[t] {
			score += 15.0
		}
	}
	if score > 100.0 {
		score = 100.0
	}
	return decimal.NewFromFloat(score)
}

// RefreshRiskScore recomputes a customer's risk score from their last 90
// days of transactions and alerts, mirroring update_customer_risk_score.
func (s *Service) RefreshRiskScore(ctx context.Context, actor uuid.UUID, customerID uuid.UUID) (*domain.Customer, error) {
	c, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	since := s.now().AddDate(0, 0, -90)
	txns, err := s.txns.ListByCustomerSince(ctx, customerID, since)
	if err != nil {
		return nil, err
	}
	alerts, err := s.alerts.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	recentAlerts := make([]*domain.Alert, 0, len(alerts))
	for _, a := range alerts {
		if !a.TriggeredAt.Before(since) {
			recentAlerts = append(recentAlerts, a)
		}
	}

	oldScore := c.RiskScore
	newScore := CalculateDynamicRiskScore(c, txns, recentAlerts)

	c.ApplyRiskScore(newScore)
	now := s.now()
	c.LastRiskAssessment = &now
	c.UpdatedAt = now

	if err := s.customers.Update(ctx, c); err != nil {
		return nil, err
	}

	if err := s.emit(ctx, actor, "risk_score_updated", "update", c.ID,
		fmt.Sprintf("Risk score updated from %s to %s", oldScore.String(), newScore.String()),
		map[string]any{"risk_score": oldScore.String()}, map[string]any{"risk_score": newScore.String()}, nil); err != nil {
		return nil, err
	}

	return c, nil
}

// CalculateDynamicRiskScore folds transaction volume, frequency, alert
// history, and cash ratio into a customer's existing score, mirroring
// calculate_dynamic_risk_score.
func CalculateDynamicRiskScore(c *domain.Customer, txns []*domain.Transaction, alerts []*domain.Alert) decimal.Decimal {
	score, _ := c.RiskScore.Float64()

	totalAmount := decimal.Zero
	cashCount := 0
	for _, t := range txns {
		totalAmount = totalAmount.Add(t.Money.Amount)
		if t.CashTransaction {
			cashCount++
		}
	}
	totalF, _ := totalAmount.Float64()

	switch {
	case totalF > 10_000_000:
		score += 20.0
	case totalF > 5_000_000:
		score += 10.0
	}

	switch {
	case len(txns) > 1000:
		score += 15.0
	case len(txns) > 500:
		score += 8.0
	}

	switch {
	case len(alerts) > 10:
		score += 25.0
	case len(alerts) > 5:
		score += 15.0
	case len(alerts) > 0:
		score += 5.0
	}

	if len(txns) > 0 && float64(cashCount)/float64(len(txns)) > 0.5 {
		score += 20.0
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return decimal.NewFromFloat(score)
}

// GetHighRiskCustomers retrieves customers flagged high-risk for periodic
// review, mirroring get_high_risk_customers.
func (s *Service) GetHighRiskCustomers(ctx context.Context, actor uuid.UUID, limit int) ([]*domain.Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	high := domain.RiskCategoryHigh
	customers, _, err := s.customers.List(ctx, store.CustomerFilter{RiskCategory: &high, Limit: limit})
	if err != nil {
		return nil, err
	}

	if err := s.emit(ctx, actor, "high_risk_customers_accessed", "view", uuid.Nil,
		fmt.Sprintf("Accessed %d high-risk customers", len(customers)), nil, nil, nil); err != nil {
		return nil, err
	}

	return customers, nil
}

// ScreeningResult is the outcome of a sanctions/PEP/watchlist screening
// pass, mirroring perform_sanctions_screening's screening_results dict.
type ScreeningResult struct {
	SanctionsHit    bool
	PEPHit          bool
	WatchlistHit    bool
	ScreeningDate   time.Time
	ConfidenceScore float64
	SourcesChecked  []string
}

// ScreenForSanctions performs sanctions/PEP screening against the
// customer's nationality, mirroring perform_sanctions_screening. A real
// deployment would call out to OFAC/EFCC/PEP watchlist APIs (SPEC_FULL.md
// §4.5 places that lookup behind an external boundary and fixes only the
// result envelope); absent that integration this
// checks the same fixed sanctioned-nationality set the Monitoring
// Engine's cross_border predicate uses, which is a deterministic stand-in
// rather than a live screening feed.
func (s *Service) ScreenForSanctions(ctx context.Context, actor uuid.UUID, customerID uuid.UUID) (*ScreeningResult, error) {
	c, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	result := &ScreeningResult{
		SanctionsHit:    domain.SanctionedNationalities[c.Nationality],
		PEPHit:          c.PEPStatus,
		WatchlistHit:    false,
		ScreeningDate:   s.now(),
		ConfidenceScore: 0.95,
		SourcesChecked:  []string{"UN", "OFAC", "EFCC", "PEP_LIST"},
	}

	c.SanctionsChecked = true
	c.PEPStatus = result.PEPHit
	c.UpdatedAt = s.now()

	if result.SanctionsHit || result.PEPHit {
		score := c.RiskScore.Add(decimal.NewFromInt(30))
		c.ApplyRiskScore(domain.ClampScore(score))
		c.RequiresEnhancedDD = true
	}

	if err := s.customers.Update(ctx, c); err != nil {
		return nil, err
	}

	if err := s.emit(ctx, actor, "sanctions_screening", "screening", c.ID,
		fmt.Sprintf("Sanctions screening performed for %s %s", c.FirstName, c.LastName),
		nil, nil, map[string]any{
			"sanctions_hit": result.SanctionsHit,
			"pep_hit":       result.PEPHit,
			"watchlist_hit": result.WatchlistHit,
		}); err != nil {
		return nil, err
	}

	return result, nil
}

// dailyLimitsByRiskCategory holds the per-category daily transaction cap
// in naira, adapted from the teacher's kyc.go GetDailyLimitByRisk helper.
var dailyLimitsByRiskCategory = map[domain.RiskCategory]decimal.Decimal{
	domain.RiskCategoryLow:    decimal.NewFromInt(5_000_000),
	domain.RiskCategoryMedium: decimal.NewFromInt(2_000_000),
	domain.RiskCategoryHigh:   decimal.NewFromInt(500_000),
}

// GetDailyLimitByRisk returns the daily transaction ceiling for a
// customer's current risk category, adapted from the teacher's KYC tier
// limit helper into a risk-category-keyed limit (see DESIGN.md's note on
// the teacher's kyc.go).
func GetDailyLimitByRisk(category domain.RiskCategory) decimal.Decimal {
	if limit, ok := dailyLimitsByRiskCategory[category]; ok {
		return limit
	}
	return dailyLimitsByRiskCategory[domain.RiskCategoryMedium]
}

func (s *Service) emit(ctx context.Context, actor uuid.UUID, eventType, action string, resourceID uuid.UUID, description string, oldValues, newValues, details map[string]any) error {
	log := domain.NewAuditLog(domain.CategoryCustomerManagement, action)
	log.EventType = eventType
	log.UserID = &actor
	log.ResourceType = "customer"
	log.ResourceID = resourceID.String()
	log.Description = description
	log.Details = details
	log.OldValues = oldValues
	log.NewValues = newValues
	log.RegulatorySignificance = true
	return s.sink.Emit(ctx, log)
}
