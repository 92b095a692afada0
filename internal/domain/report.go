package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReportType string

const (
	ReportTypeSTR ReportType = "STR"
	ReportTypeCTR ReportType = "CTR"
	ReportTypeSAR ReportType = "SAR"
)

type ReportStatus string

const (
	ReportStatusDraft    ReportStatus = "draft"
	ReportStatusReview   ReportStatus = "review"
	ReportStatusApproved ReportStatus = "approved"
	ReportStatusFiled    ReportStatus = "filed"
	ReportStatusAcknowledged ReportStatus = "acknowledged"
)

type ExportFormat string

const (
	ExportXML  ExportFormat = "XML"
	ExportPDF  ExportFormat = "PDF"
	ExportJSON ExportFormat = "JSON"
)

// SubjectInformation is the flattened customer snapshot taken at report
// creation time (§3 "Report owns its subject_information snapshot").
type SubjectInformation struct {
	CustomerID   string `json:"customer_id"`
	FullName     string `json:"full_name"`
	Nationality  string `json:"nationality"`
	RiskCategory string `json:"risk_category"`
	PEPStatus    bool   `json:"pep_status"`
	AccountNumbers []string `json:"account_numbers"`
}

// ReportingPeriod is the from/to window the NFIU envelope's report_header
// carries (§6).
type ReportingPeriod struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type ReportHeader struct {
	ReportNumber      string          `json:"report_number"`
	ReportType        ReportType      `json:"report_type"`
	FilingInstitution string          `json:"filing_institution"`
	FilingDate        time.Time       `json:"filing_date"`
	ReportingPeriod   ReportingPeriod `json:"reporting_period"`
}

type TransactionDetails struct {
	TransactionCount int             `json:"transaction_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
}

type SuspiciousActivity struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type ComplianceOfficer struct {
	PreparedBy string `json:"prepared_by"`
	ReviewedBy string `json:"reviewed_by"`
	ApprovedBy string `json:"approved_by"`
}

// NFIUExport is the exact envelope shape required by §6, grounded on the
// distilled source's generate_nfiu_export_data.
type NFIUExport struct {
	ReportHeader       ReportHeader       `json:"report_header"`
	SubjectInformation SubjectInformation `json:"subject_information"`
	TransactionDetails TransactionDetails `json:"transaction_details"`
	Narrative          string             `json:"narrative"`
	SuspiciousActivity SuspiciousActivity `json:"suspicious_activity"`
	ComplianceOfficer  ComplianceOfficer  `json:"compliance_officer"`
}

type Report struct {
	ID uuid.UUID `json:"id"`

	ReportNumber   string     `json:"report_number"`
	ReportType     ReportType `json:"report_type"`
	ReportCategory string     `json:"report_category"`

	CaseID           *uuid.UUID  `json:"case_id,omitempty"`
	CustomerID       uuid.UUID   `json:"customer_id"`
	RelatedCustomers []uuid.UUID `json:"related_customers"`
	TransactionIDs   []uuid.UUID `json:"transaction_ids"`
	AlertIDs         []uuid.UUID `json:"alert_ids"`

	Title     string `json:"title"`
	Narrative string `json:"narrative"`
	Summary   string `json:"summary"`

	RegulatoryAuthority string `json:"regulatory_authority"`
	FilingRequirement   string `json:"filing_requirement"`

	SuspiciousActivityType string    `json:"suspicious_activity_type"`
	ActivityDescription    string    `json:"activity_description"`
	TimelineOfEvents       string    `json:"timeline_of_events"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	Currency               string    `json:"currency"`

	SubjectInformation SubjectInformation `json:"subject_information"`

	EvidenceSummary    string `json:"evidence_summary"`
	InvestigationNotes string `json:"investigation_notes"`

	Status     ReportStatus `json:"status"`
	PreparedBy uuid.UUID    `json:"prepared_by"`
	ReviewedBy *uuid.UUID   `json:"reviewed_by,omitempty"`
	ApprovedBy *uuid.UUID   `json:"approved_by,omitempty"`

	IncidentDateFrom time.Time `json:"incident_date_from"`
	IncidentDateTo   time.Time `json:"incident_date_to"`
	DetectionDate    time.Time `json:"detection_date"`

	Filed           bool       `json:"filed"`
	FilingDate      *time.Time `json:"filing_date,omitempty"`
	FilingMethod    string     `json:"filing_method,omitempty"`
	FilingReference string     `json:"filing_reference,omitempty"`
	FiledBy         *uuid.UUID `json:"filed_by,omitempty"`

	Acknowledged            bool       `json:"acknowledged"`
	AcknowledgmentDate      *time.Time `json:"acknowledgment_date,omitempty"`
	AcknowledgmentReference string     `json:"acknowledgment_reference,omitempty"`

	QAReviewed   bool `json:"qa_reviewed"`
	QAApproved   bool `json:"qa_approved"`
	LegalReviewed bool `json:"legal_reviewed"`

	ExportFormat ExportFormat `json:"export_format"`
	ExportData   *NFIUExport  `json:"export_data,omitempty"`

	RetentionPeriod int `json:"retention_period"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy uuid.UUID `json:"created_by"`
}
