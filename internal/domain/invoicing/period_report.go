package invoicing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportType identifies the regulator report
type ReportType string

const (
	ReportTypeSales     ReportType = "607"
	ReportTypePurchases ReportType = "606"
)

// IsValid checks if the report type is known
func (t ReportType) IsValid() bool {
	return t == ReportTypeSales || t == ReportTypePurchases
}

// ParseReportType accepts "607"/"606" or "sales"/"purchases"
func ParseReportType(s string) (ReportType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "607", "sales":
		return ReportTypeSales, nil
	case "606", "purchases":
		return ReportTypePurchases, nil
	}
	return "", invalidInput("unknown report type %q", s)
}

// ReportStatus is the filing lifecycle of a period report
type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "draft"
	ReportStatusSubmitted ReportStatus = "submitted"
	ReportStatusAccepted  ReportStatus = "accepted"
	ReportStatusRejected  ReportStatus = "rejected"
)

// ReportGroup is the per-document-type subtotal of a report
type ReportGroup struct {
	DocumentType DocumentType    `json:"document_type"`
	Code         string          `json:"code"`
	Records      int             `json:"records"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
}

// ReportFigures are the computed contents of a report, independent of filing state
type ReportFigures struct {
	Period       Period
	ReportType   ReportType
	Currency     valueobject.Currency
	Groups       []ReportGroup
	TotalRecords int
	TotalAmount  decimal.Decimal
	TotalTax     decimal.Decimal
}

// ComputeChecksum hashes a canonical rendering of the figures. Equal inputs give equal checksums.
func (f ReportFigures) ComputeChecksum() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%d|%s|%s\n", f.Period, f.ReportType, f.Currency, f.TotalRecords,
		f.TotalAmount.StringFixed(2), f.TotalTax.StringFixed(2))
	for _, g := range f.Groups {
		fmt.Fprintf(&b, "%s|%d|%s|%s\n", g.DocumentType, g.Records, g.TotalAmount.StringFixed(2), g.TaxAmount.StringFixed(2))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// PeriodReport is the stored 606/607 summary for one tenant and month
type PeriodReport struct {
	shared.TenantAggregateRoot
	ReportFigures
	Status              ReportStatus
	GeneratedAt         time.Time
	Checksum            string
	SubmittedAt         *time.Time
	SubmittedBy         *uuid.UUID
	SubmissionReference string
	ReviewedAt          *time.Time
	RejectionReason     string
	ArchiveKey          string
}

// NewPeriodReport creates a draft report holding figures
func NewPeriodReport(tenantID uuid.UUID, figures ReportFigures, now time.Time) (*PeriodReport, error) {
	if !figures.ReportType.IsValid() {
		return nil, invalidInput("unknown report type %q", figures.ReportType)
	}
	if figures.Period.IsZero() {
		return nil, errorf(ErrInvalidPeriod, "report period is required")
	}
	r := &PeriodReport{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Status:              ReportStatusDraft,
	}
	r.apply(figures, now)
	return r, nil
}

// IsLocked reports whether the report has been filed and may no longer change
func (r *PeriodReport) IsLocked() bool {
	return r.Status == ReportStatusSubmitted || r.Status == ReportStatusAccepted
}

func (r *PeriodReport) apply(figures ReportFigures, now time.Time) {
	r.ReportFigures = figures
	r.Checksum = figures.ComputeChecksum()
	r.GeneratedAt = now
	r.AddDomainEvent(NewPeriodReportGeneratedEvent(r))
}

// Regenerate overwrites a draft (or rejected) report with freshly computed figures.
// A rejected report goes back to draft. A draft whose checksum is unchanged keeps its
// generation time and version, and Regenerate reports false.
func (r *PeriodReport) Regenerate(figures ReportFigures, now time.Time) (bool, error) {
	if r.IsLocked() {
		return false, errorf(ErrReportLocked, "%s report for %s is %s", r.ReportType, r.Period, r.Status)
	}
	if figures.Period != r.Period || figures.ReportType != r.ReportType {
		return false, invalidInput("figures are for %s/%s, report is %s/%s", figures.ReportType, figures.Period, r.ReportType, r.Period)
	}
	if r.Status == ReportStatusDraft && figures.ComputeChecksum() == r.Checksum {
		return false, nil
	}
	if r.Status == ReportStatusRejected {
		r.Status = ReportStatusDraft
		r.ReviewedAt = nil
		r.RejectionReason = ""
		r.SubmittedAt = nil
		r.SubmittedBy = nil
		r.SubmissionReference = ""
		r.ArchiveKey = ""
	}
	r.apply(figures, now)
	r.Touch()
	return true, nil
}

// Submit files the report with the regulator
func (r *PeriodReport) Submit(by *uuid.UUID, reference string, now time.Time) error {
	if r.Status != ReportStatusDraft {
		return errorf(ErrInvalidTransition, "cannot submit a %s report", r.Status)
	}
	r.Status = ReportStatusSubmitted
	r.SubmittedAt = &now
	r.SubmittedBy = by
	r.SubmissionReference = strings.TrimSpace(reference)
	r.Touch()
	r.AddDomainEvent(NewPeriodReportSubmittedEvent(r))
	return nil
}

// Accept records the regulator's acceptance
func (r *PeriodReport) Accept(now time.Time) error {
	if r.Status != ReportStatusSubmitted {
		return errorf(ErrInvalidTransition, "cannot accept a %s report", r.Status)
	}
	r.Status = ReportStatusAccepted
	r.ReviewedAt = &now
	r.Touch()
	return nil
}

// Reject records the regulator's rejection; the report may then be regenerated
func (r *PeriodReport) Reject(reason string, now time.Time) error {
	if r.Status != ReportStatusSubmitted {
		return errorf(ErrInvalidTransition, "cannot reject a %s report", r.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return invalidInput("rejection reason is required")
	}
	r.Status = ReportStatusRejected
	r.ReviewedAt = &now
	r.RejectionReason = reason
	r.Touch()
	return nil
}

// SetArchiveKey records where the submitted snapshot was stored
func (r *PeriodReport) SetArchiveKey(key string) {
	r.ArchiveKey = key
}
