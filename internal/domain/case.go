package domain

import (
	"time"

	"github.com/google/uuid"
)

type CaseStatus string

const (
	CaseStatusOpen          CaseStatus = "open"
	CaseStatusInvestigating CaseStatus = "investigating"
	CaseStatusPendingReview CaseStatus = "pending_review"
	CaseStatusEscalated     CaseStatus = "escalated"
	CaseStatusClosed        CaseStatus = "closed"
)

type CaseRiskLevel string

const (
	CaseRiskLow      CaseRiskLevel = "low"
	CaseRiskMedium   CaseRiskLevel = "medium"
	CaseRiskHigh     CaseRiskLevel = "high"
	CaseRiskCritical CaseRiskLevel = "critical"
)

// EvidenceItem is one entry of Case.EvidenceCollected, appended by
// add_evidence with a monotonic timestamp and the acting principal (§4.6).
type EvidenceItem struct {
	Key         string    `json:"key"`
	Description string    `json:"description"`
	AddedBy     uuid.UUID `json:"added_by"`
	AddedAt     time.Time `json:"added_at"`
}

type Interview struct {
	Subject   string    `json:"subject"`
	Notes     string    `json:"notes"`
	Conductor uuid.UUID `json:"conductor"`
	ConductedAt time.Time `json:"conducted_at"`
}

type CaseNote struct {
	Text      string    `json:"text"`
	Author    uuid.UUID `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

type Case struct {
	ID uuid.UUID `json:"id"`

	CaseNumber string `json:"case_number"`
	CaseType   string `json:"case_type"`
	CaseCategory string `json:"case_category"`

	CustomerID       uuid.UUID   `json:"customer_id"`
	RelatedCustomers []uuid.UUID `json:"related_customers"`
	AlertIDs         []uuid.UUID `json:"alert_ids"`
	TransactionIDs   []uuid.UUID `json:"transaction_ids"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Summary     string `json:"summary,omitempty"`

	Priority   int           `json:"priority"`
	RiskLevel  CaseRiskLevel `json:"risk_level"`

	Status             CaseStatus `json:"status"`
	InvestigationStage string     `json:"investigation_stage"`

	AssignedTo  uuid.UUID   `json:"assigned_to"`
	Reviewer    *uuid.UUID  `json:"reviewer,omitempty"`
	Approver    *uuid.UUID  `json:"approver,omitempty"`
	TeamMembers []uuid.UUID `json:"team_members"`

	OpenedAt               time.Time  `json:"opened_at"`
	AssignedAt             *time.Time `json:"assigned_at,omitempty"`
	InvestigationStartedAt *time.Time `json:"investigation_started_at,omitempty"`
	ReviewStartedAt        *time.Time `json:"review_started_at,omitempty"`
	ClosedAt               *time.Time `json:"closed_at,omitempty"`

	SLADeadline        *time.Time `json:"sla_deadline,omitempty"`
	SLAExtended        bool       `json:"sla_extended"`
	SLAExtensionReason string     `json:"sla_extension_reason,omitempty"`
	SLABreached        bool       `json:"sla_breached"`

	Notes              []CaseNote     `json:"notes"`
	EvidenceCollected  []EvidenceItem `json:"evidence_collected"`
	InterviewsConducted []Interview   `json:"interviews_conducted"`

	Findings       string `json:"findings,omitempty"`
	Recommendations string `json:"recommendations,omitempty"`
	Decision       string `json:"decision,omitempty"`
	ActionsTaken   []string `json:"actions_taken"`

	STRRequired  bool   `json:"str_required"`
	STRFiled     bool   `json:"str_filed"`
	STRReference string `json:"str_reference,omitempty"`
	STRFiledDate *time.Time `json:"str_filed_date,omitempty"`

	CTRRequired  bool   `json:"ctr_required"`
	CTRFiled     bool   `json:"ctr_filed"`
	CTRReference string `json:"ctr_reference,omitempty"`
	CTRFiledDate *time.Time `json:"ctr_filed_date,omitempty"`

	QAReviewed bool `json:"qa_reviewed"`
	QAApproved bool `json:"qa_approved"`

	ClosureReason string     `json:"closure_reason,omitempty"`
	ClosureNotes  string     `json:"closure_notes,omitempty"`
	ClosedBy      *uuid.UUID `json:"closed_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy uuid.UUID `json:"created_by"`
}

// SLAHoursByPriority is the base SLA window per §4.6.
var SLAHoursByPriority = map[int]int{
	1: 4,
	2: 24,
	3: 72,
	4: 168,
	5: 336,
}

// HalvedSLACaseTypes are the case types whose SLA is halved (floor 4h).
var HalvedSLACaseTypes = map[string]bool{
	"sanctions_investigation": true,
	"terrorism_financing":     true,
}

// SLADeadlineFor computes the deadline for a case opened "from" with the
// given priority and case type, per §4.6's SLA rule.
func SLADeadlineFor(from time.Time, priority int, caseType string) time.Time {
	hours, ok := SLAHoursByPriority[priority]
	if !ok {
		hours = SLAHoursByPriority[3]
	}
	if HalvedSLACaseTypes[caseType] {
		hours = hours / 2
		if hours < 4 {
			hours = 4
		}
	}
	return from.Add(time.Duration(hours) * time.Hour)
}

// RiskLevelFor computes a case's risk_level from the max alert risk score
// and alert count in the group, per §4.6.
func RiskLevelFor(maxAlertScore float64, alertCount int) CaseRiskLevel {
	switch {
	case maxAlertScore >= 80 || alertCount >= 5:
		return CaseRiskCritical
	case maxAlertScore >= 60 || alertCount >= 3:
		return CaseRiskHigh
	case maxAlertScore >= 40 || alertCount >= 2:
		return CaseRiskMedium
	default:
		return CaseRiskLow
	}
}
