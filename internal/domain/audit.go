package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventCategory is the fixed enumeration §4.1 requires every emitted
// event to carry.
type EventCategory string

const (
	CategoryAuthentication     EventCategory = "authentication"
	CategoryTransactionMonitor EventCategory = "transaction_monitoring"
	CategoryCustomerManagement EventCategory = "customer_management"
	CategoryCaseManagement     EventCategory = "case_management"
	CategoryReporting          EventCategory = "reporting"
	CategoryRulesManagement    EventCategory = "rules_management"
	CategoryAuditManagement    EventCategory = "audit_management"
	CategorySystem             EventCategory = "system"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
	AuditStatusPartial AuditStatus = "partial"
	AuditStatusTimeout AuditStatus = "timeout"
)

type DataClassification string

const (
	DataPublic       DataClassification = "public"
	DataInternal     DataClassification = "internal"
	DataConfidential DataClassification = "confidential"
	DataRestricted   DataClassification = "restricted"
)

// DefaultRetentionYears is the minimum audit retention required by §6.
const DefaultRetentionYears = 5

// AuditLog is immutable after write, save for the review-metadata fields
// called out in its §3 invariant. Every other component constructs one of
// these through the Audit Sink (§4.1) rather than writing it directly.
type AuditLog struct {
	ID uuid.UUID `json:"id"`

	EventID       string        `json:"event_id"`
	EventType     string        `json:"event_type"`
	EventCategory EventCategory `json:"event_category"`

	UserID          *uuid.UUID `json:"user_id,omitempty"`
	UserEmail       string     `json:"user_email,omitempty"`
	UserRole        string     `json:"user_role,omitempty"`
	ImpersonatedBy  *uuid.UUID `json:"impersonated_by,omitempty"`

	Action           string     `json:"action"`
	ResourceType     string     `json:"resource_type"`
	ResourceID       string     `json:"resource_id"`
	ResourceIdentifier string   `json:"resource_identifier,omitempty"`

	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`

	IPAddress   string `json:"ip_address,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`

	OldValues     map[string]any `json:"old_values,omitempty"`
	NewValues     map[string]any `json:"new_values,omitempty"`
	ChangedFields []string       `json:"changed_fields,omitempty"`

	RiskScore          *float64 `json:"risk_score,omitempty"`
	SuspiciousActivity bool     `json:"suspicious_activity"`

	RegulatorySignificance bool               `json:"regulatory_significance"`
	RetentionPeriod        int                `json:"retention_period"`
	DataClassification     DataClassification `json:"data_classification"`

	Status       AuditStatus `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	ErrorCode    string      `json:"error_code,omitempty"`

	DigitalSignature string `json:"digital_signature"`

	Timestamp time.Time `json:"timestamp"`

	Reviewed     bool       `json:"reviewed"`
	ReviewedBy   *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewDate   *time.Time `json:"review_date,omitempty"`
	ReviewNotes  string     `json:"review_notes,omitempty"`
}

// NewAuditLog constructs a new immutable row with system defaults; callers
// fill in Action/ResourceType/ResourceID/Description before handing it to
// the Audit Sink's Emit.
func NewAuditLog(category EventCategory, action string) *AuditLog {
	now := time.Now().UTC()
	return &AuditLog{
		ID:                 uuid.New(),
		EventID:            uuid.New().String(),
		EventCategory:      category,
		Action:             action,
		Status:             AuditStatusSuccess,
		RetentionPeriod:    DefaultRetentionYears,
		DataClassification: DataInternal,
		Timestamp:          now,
	}
}

// AuditLogFilter is the closed set of filters §4.8 allows over the audit log.
type AuditLogFilter struct {
	StartTime    *time.Time
	EndTime      *time.Time
	EventType    *string
	EventCategory *EventCategory
	UserID       *uuid.UUID
	ResourceType *string
	ResourceID   *string
	Action       *string
	Limit        int
	Offset       int
}

// DefaultSearchLimit is the bound applied when a caller does not specify one.
const DefaultSearchLimit = 100

func (f *AuditLogFilter) WithDefaults() {
	if f.Limit <= 0 {
		f.Limit = DefaultSearchLimit
	}
}

type AuditLogPage struct {
	Entries    []*AuditLog `json:"entries"`
	TotalCount int64       `json:"total_count"`
	HasMore    bool        `json:"has_more"`
}
