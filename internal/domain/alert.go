package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AlertStatus string

const (
	AlertStatusOpen          AlertStatus = "open"
	AlertStatusInvestigating AlertStatus = "investigating"
	AlertStatusEscalated     AlertStatus = "escalated"
	AlertStatusClosed        AlertStatus = "closed"
	AlertStatusFalsePositive AlertStatus = "false_positive"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

type DetectionMethod string

const (
	DetectionRuleBased    DetectionMethod = "rule_based"
	DetectionMLModel      DetectionMethod = "ml_model"
	DetectionManual       DetectionMethod = "manual"
	DetectionExternalFeed DetectionMethod = "external_feed"
)

type Alert struct {
	ID uuid.UUID `json:"id"`

	AlertID    string     `json:"alert_id"`
	AlertType  string     `json:"alert_type"`
	Category   string     `json:"alert_category"`
	CustomerID uuid.UUID  `json:"customer_id"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	RuleID     *uuid.UUID `json:"rule_id,omitempty"`

	Title       string        `json:"title"`
	Description string        `json:"description"`
	Severity    AlertSeverity `json:"severity"`
	Priority    int           `json:"priority"`

	RiskScore       decimal.Decimal    `json:"risk_score"`
	RiskFactors     []string           `json:"risk_factors"`
	TriggeredRules  []string           `json:"triggered_rules"`
	ThresholdValues map[string]float64 `json:"threshold_values"`
	PatternMatched  string             `json:"pattern_matched,omitempty"`

	Status              AlertStatus `json:"status"`
	AssignedTo          *uuid.UUID  `json:"assigned_to,omitempty"`
	InvestigationNotes  string      `json:"investigation_notes,omitempty"`

	CaseID          *uuid.UUID `json:"case_id,omitempty"`
	EscalationLevel int        `json:"escalation_level"`

	TriggeredAt    time.Time  `json:"triggered_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	InvestigatedAt *time.Time `json:"investigated_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	Resolution      string     `json:"resolution,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	ResolvedBy      *uuid.UUID `json:"resolved_by,omitempty"`

	SLADeadline *time.Time `json:"sla_deadline,omitempty"`
	SLABreached bool       `json:"sla_breached"`

	RegulatorySignificance bool `json:"regulatory_significance"`

	DetectionMethod DetectionMethod `json:"detection_method"`
	ModelVersion    string          `json:"model_version,omitempty"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
}

// NewAlert builds an Alert with the system defaults common to every
// alert synthesised by the Monitoring Engine (§4.4 step 7).
func NewAlert(customerID uuid.UUID, alertID string) *Alert {
	now := time.Now().UTC()
	return &Alert{
		ID:              uuid.New(),
		AlertID:         alertID,
		CustomerID:      customerID,
		Status:          AlertStatusOpen,
		EscalationLevel: 1,
		Priority:        3,
		TriggeredAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
