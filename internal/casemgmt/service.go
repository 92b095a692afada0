// Package casemgmt implements the Case Workflow (§4.6): opening a case
// from a set of alerts, assignment, status transitions, evidence and
// interview capture, closure with fan-out to the underlying alerts, and
// the overdue SLA scan. Grounded on the distilled source's
// case_management.py.
package casemgmt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ngbank/aml-compliance/internal/apperr"
	"github.com/ngbank/aml-compliance/internal/audit"
	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/metrics"
	"github.com/ngbank/aml-compliance/internal/store"
)

type Service struct {
	cases   store.CaseStore
	alerts  store.AlertStore
	sink    *audit.Sink
	metrics *metrics.CaseWorkflow
	now     func() time.Time
}

func NewService(cases store.CaseStore, alerts store.AlertStore, sink *audit.Sink, m *metrics.CaseWorkflow) *Service {
	return &Service{cases: cases, alerts: alerts, sink: sink, metrics: m, now: func() time.Time { return time.Now().UTC() }}
}

type CreateFromAlertsInput struct {
	AlertIDs    []uuid.UUID
	CaseType    string
	Title       string
	Description string
	Priority    int
}

// CreateFromAlerts opens an investigation case spanning one or more
// alerts, assigns it to the requesting investigator, derives its risk
// level from the alert set, and escalates every referenced alert to
// point at the new case — mirroring create_case_from_alerts.
func (s *Service) CreateFromAlerts(ctx context.Context, actor uuid.UUID, in CreateFromAlertsInput) (*domain.Case, error) {
	if len(in.AlertIDs) == 0 {
		return nil, apperr.Validation("no_alerts", "at least one alert is required to open a case")
	}

	var alerts []*domain.Alert
	customerSet := map[uuid.UUID]bool{}
	var customerOrder []uuid.UUID
	var transactionIDs []uuid.UUID

	for _, alertID := range in.AlertIDs {
		a, err := s.alerts.GetByID(ctx, alertID)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
		if !customerSet[a.CustomerID] {
			customerSet[a.CustomerID] = true
			customerOrder = append(customerOrder, a.CustomerID)
		}
		if a.TransactionID != nil {
			transactionIDs = append(transactionIDs, *a.TransactionID)
		}
	}

	primaryCustomer := customerOrder[0]
	relatedCustomers := customerOrder[1:]

	priority := in.Priority
	if priority == 0 {
		priority = 3
	}

	now := s.now()
	year, month, _ := now.Date()
	seq, err := s.cases.NextCaseSequence(ctx, year, int(month))
	if err != nil {
		return nil, err
	}
	caseNumber := fmt.Sprintf("CASE-%04d%02d-%04d", year, int(month), seq)

	maxScore := 0.0
	for _, a := range alerts {
		score, _ := a.RiskScore.Float64()
		if score > maxScore {
			maxScore = score
		}
	}

	c := &domain.Case{
		ID:                 uuid.New(),
		CaseNumber:         caseNumber,
		CaseType:           in.CaseType,
		CaseCategory:       "aml",
		CustomerID:         primaryCustomer,
		RelatedCustomers:   relatedCustomers,
		AlertIDs:           in.AlertIDs,
		TransactionIDs:     transactionIDs,
		Title:              in.Title,
		Description:        in.Description,
		Priority:           priority,
		RiskLevel:          domain.RiskLevelFor(maxScore, len(alerts)),
		Status:             domain.CaseStatusOpen,
		InvestigationStage: "intake",
		AssignedTo:         actor,
		OpenedAt:           now,
		CreatedAt:          now,
		UpdatedAt:          now,
		CreatedBy:          actor,
	}
	assignedAt := now
	c.AssignedAt = &assignedAt
	deadline := domain.SLADeadlineFor(now, priority, in.CaseType)
	c.SLADeadline = &deadline
	c.Notes = []domain.CaseNote{{Text: "Case created from alerts. Investigation pending.", Author: actor, Timestamp: now}}

	if err := s.cases.Create(ctx, c); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CasesCreated.Inc()
	}

	for _, a := range alerts {
		a.CaseID = &c.ID
		a.Status = domain.AlertStatusEscalated
		a.UpdatedAt = now
		if err := s.alerts.Update(ctx, a); err != nil {
			return nil, err
		}
	}

	if err := s.emit(ctx, actor, "case_created", "create", c.ID,
		fmt.Sprintf("Case %s created from %d alerts", c.CaseNumber, len(in.AlertIDs)),
		map[string]any{"alert_ids": in.AlertIDs}, nil, nil); err != nil {
		return nil, err
	}

	return c, nil
}

// Assign reassigns a case to a different investigator, mirroring
// assign_case.
func (s *Service) Assign(ctx context.Context, actor uuid.UUID, caseID uuid.UUID, assignedTo uuid.UUID, notes string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	oldAssignee := c.AssignedTo
	expectedUpdatedAt := c.UpdatedAt

	now := s.now()
	c.AssignedTo = assignedTo
	c.AssignedAt = &now
	c.UpdatedAt = now
	if notes != "" {
		c.Notes = append(c.Notes, domain.CaseNote{Text: fmt.Sprintf("Assignment change: %s", notes), Author: actor, Timestamp: now})
	}

	if err := s.cases.Update(ctx, c, expectedUpdatedAt); err != nil {
		return nil, err
	}

	if err := s.emit(ctx, actor, "case_assigned", "update", c.ID,
		fmt.Sprintf("Case %s reassigned", c.CaseNumber),
		map[string]any{"assigned_to": oldAssignee}, map[string]any{"assigned_to": assignedTo}, nil); err != nil {
		return nil, err
	}

	return c, nil
}

// UpdateStatus transitions a case's status, stamping the stage-specific
// timestamp the new status first reaches, mirroring update_case_status.
func (s *Service) UpdateStatus(ctx context.Context, actor uuid.UUID, caseID uuid.UUID, newStatus domain.CaseStatus, notes string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	oldStatus := c.Status
	expectedUpdatedAt := c.UpdatedAt

	now := s.now()
	c.Status = newStatus
	c.UpdatedAt = now

	switch newStatus {
	case domain.CaseStatusInvestigating:
		if c.InvestigationStartedAt == nil {
			c.InvestigationStartedAt = &now
		}
	case domain.CaseStatusPendingReview:
		if c.ReviewStartedAt == nil {
			c.ReviewStartedAt = &now
		}
	case domain.CaseStatusClosed:
		if c.ClosedAt == nil {
			c.ClosedAt = &now
			c.ClosedBy = &actor
		}
	}

	if notes != "" {
		c.Notes = append(c.Notes, domain.CaseNote{Text: fmt.Sprintf("Status changed to %s: %s", newStatus, notes), Author: actor, Timestamp: now})
	}

	if err := s.cases.Update(ctx, c, expectedUpdatedAt); err != nil {
		return nil, err
	}

	if err := s.emit(ctx, actor, "case_status_updated", "update", c.ID,
		fmt.Sprintf("Case %s status changed from %s to %s", c.CaseNumber, oldStatus, newStatus),
		map[string]any{"status": oldStatus}, map[string]any{"status": newStatus}, nil); err != nil {
		return nil, err
	}

	return c, nil
}

// AddEvidence appends an evidence item to a case's investigation record,
// mirroring add_case_evidence.
func (s *Service) AddEvidence(ctx context.Context, actor uuid.UUID, caseID uuid.UUID, evidenceType, description string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	expectedUpdatedAt := c.UpdatedAt
	now := s.now()
	item := domain.EvidenceItem{Key: evidenceType, Description: description, AddedBy: actor, AddedAt: now}
	c.EvidenceCollected = append(c.EvidenceCollected, item)
	c.UpdatedAt = now
	c.Notes = append(c.Notes, domain.CaseNote{Text: fmt.Sprintf("Evidence added: %s - %s", evidenceType, description), Author: actor, Timestamp: now})

	if err := s.cases.Update(ctx, c, expectedUpdatedAt); err != nil {
		return nil, err
	}

	if err := s.emit(ctx, actor, "case_evidence_added", "update", c.ID,
		fmt.Sprintf("Evidence added to case %s: %s", c.CaseNumber, evidenceType), nil, nil,
		map[string]any{"type": evidenceType, "description": description}); err != nil {
		return nil, err
	}

	return c, nil
}

// ConductInterview records a customer interview for a case, mirroring
// conduct_customer_interview.
func (s *Service) ConductInterview(ctx context.Context, actor uuid.UUID, caseID uuid.UUID, customerID uuid.UUID, method, notes, outcome string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	expectedUpdatedAt := c.UpdatedAt
	now := s.now()
	interview := domain.Interview{Subject: customerID.String(), Notes: fmt.Sprintf("method=%s outcome=%s notes=%s", method, outcome, notes), Conductor: actor, ConductedAt: now}
	c.InterviewsConducted = append(c.InterviewsConducted, interview)
	c.UpdatedAt = now
	c.Notes = append(c.Notes, domain.CaseNote{Text: fmt.Sprintf("Customer interview conducted via %s. Outcome: %s", method, outcome), Author: actor, Timestamp: now})

	if err := s.cases.Update(ctx, c, expectedUpdatedAt); err != nil {
		return nil, err
	}

	if err := s.emit(ctx, actor, "customer_interview", "interview", c.ID,
		fmt.Sprintf("Customer interview conducted for case %s", c.CaseNumber), nil, nil,
		map[string]any{"method": method, "outcome": outcome}); err != nil {
		return nil, err
	}

	return c, nil
}

// Close closes a case with a final decision and propagates resolution to
// every alert the case covers — idempotent fan-out, same as close_case.
func (s *Service) Close(ctx context.Context, actor uuid.UUID, caseID uuid.UUID, closureReason, closureNotes, decision string, actionsTaken []string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	expectedUpdatedAt := c.UpdatedAt
	now := s.now()
	c.Status = domain.CaseStatusClosed
	c.ClosedAt = &now
	c.ClosedBy = &actor
	c.ClosureReason = closureReason
	c.ClosureNotes = closureNotes
	c.Decision = decision
	c.ActionsTaken = actionsTaken
	c.UpdatedAt = now
	c.Notes = append(c.Notes, domain.CaseNote{Text: fmt.Sprintf("Case closed. Decision: %s. Reason: %s", decision, closureReason), Author: actor, Timestamp: now})

	if err := s.cases.Update(ctx, c, expectedUpdatedAt); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CasesClosed.WithLabelValues(closureReason).Inc()
	}

	for _, alertID := range c.AlertIDs {
		a, err := s.alerts.GetByID(ctx, alertID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				continue
			}
			return nil, err
		}
		if a.Status == domain.AlertStatusClosed {
			continue
		}
		a.Status = domain.AlertStatusClosed
		a.ResolvedAt = &now
		a.ResolvedBy = &actor
		a.Resolution = decision
		a.ResolutionNotes = closureNotes
		a.UpdatedAt = now
		if err := s.alerts.Update(ctx, a); err != nil {
			return nil, err
		}
	}

	if err := s.emit(ctx, actor, "case_closed", "close", c.ID,
		fmt.Sprintf("Case %s closed with decision: %s", c.CaseNumber, decision),
		nil, nil, map[string]any{
			"closure_reason": closureReason,
			"decision":       decision,
			"actions_taken":  actionsTaken,
		}); err != nil {
		return nil, err
	}

	return c, nil
}

// AssignedCases returns cases assigned to actor, optionally filtered by
// status, mirroring get_assigned_cases.
func (s *Service) AssignedCases(ctx context.Context, actor uuid.UUID, status *domain.CaseStatus) ([]*domain.Case, error) {
	cases, _, err := s.cases.List(ctx, store.CaseFilter{AssignedTo: &actor, Status: status, Limit: 1000})
	if err != nil {
		return nil, err
	}

	if err := s.emit(ctx, actor, "assigned_cases_accessed", "view", uuid.Nil,
		fmt.Sprintf("Accessed %d assigned cases", len(cases)), nil, nil, nil); err != nil {
		return nil, err
	}

	return cases, nil
}

// Overdue returns cases past their SLA deadline that are not yet closed,
// marking each one's sla_breached flag on the way out — mirroring
// get_overdue_cases.
func (s *Service) Overdue(ctx context.Context, actor uuid.UUID) ([]*domain.Case, error) {
	cases, err := s.cases.ListOverdue(ctx, s.now())
	if err != nil {
		return nil, err
	}

	for _, c := range cases {
		if !c.SLABreached {
			expectedUpdatedAt := c.UpdatedAt
			c.SLABreached = true
			c.UpdatedAt = s.now()
			if err := s.cases.Update(ctx, c, expectedUpdatedAt); err != nil {
				return nil, err
			}
			if s.metrics != nil {
				s.metrics.SLABreaches.Inc()
			}
		}
	}

	if err := s.emit(ctx, actor, "overdue_cases_accessed", "view", uuid.Nil,
		fmt.Sprintf("Accessed %d overdue cases", len(cases)), nil, nil, nil); err != nil {
		return nil, err
	}

	return cases, nil
}

func (s *Service) emit(ctx context.Context, actor uuid.UUID, eventType, action string, resourceID uuid.UUID, description string, oldValues, newValues, details map[string]any) error {
	log := domain.NewAuditLog(domain.CategoryCaseManagement, action)
	log.EventType = eventType
	log.UserID = &actor
	log.ResourceType = "case"
	log.ResourceID = resourceID.String()
	log.Description = description
	log.Details = details
	log.OldValues = oldValues
	log.NewValues = newValues
	log.RegulatorySignificance = true
	return s.sink.Emit(ctx, log)
}
