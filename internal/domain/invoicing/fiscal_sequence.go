package invoicing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	// DefaultPadWidth is the zero-padding used when a sequence does not set one
	DefaultPadWidth = 8
	// MaxPrefixLength and MaxFiscalNumberLength match the stored column widths
	MaxPrefixLength       = 10
	MaxFiscalNumberLength = 19
)

// FiscalSequence is an authorized range of fiscal numbers for one document type.
// CurrentNumber is the last number issued; a fresh range starts at StartNumber-1.
type FiscalSequence struct {
	shared.TenantAggregateRoot
	DocumentType   DocumentType
	Prefix         string
	StartNumber    int64
	EndNumber      int64
	CurrentNumber  int64
	PadWidth       int
	ExpirationDate time.Time
	IsActive       bool
	AlertThreshold int64
	Description    string
}

// NewFiscalSequence validates and creates an active sequence
func NewFiscalSequence(tenantID uuid.UUID, documentType DocumentType, prefix string, start, end int64, padWidth int, expiration time.Time, alertThreshold int64) (*FiscalSequence, error) {
	prefix = strings.TrimSpace(prefix)
	if !documentType.IsValid() {
		return nil, invalidInput("unknown fiscal document type %q", documentType)
	}
	if prefix == "" {
		return nil, invalidInput("sequence prefix cannot be empty")
	}
	if len(prefix) > MaxPrefixLength {
		return nil, invalidInput("sequence prefix cannot exceed %d characters", MaxPrefixLength)
	}
	if start < 1 {
		return nil, invalidInput("start number must be at least 1")
	}
	if end < start {
		return nil, invalidInput("end number %d is before start number %d", end, start)
	}
	if padWidth == 0 {
		padWidth = DefaultPadWidth
	}
	if padWidth < 1 || padWidth > 18 {
		return nil, invalidInput("pad width must be between 1 and 18")
	}
	if len(prefix)+padWidth > MaxFiscalNumberLength {
		return nil, invalidInput("prefix %q with %d digits exceeds the %d character fiscal number", prefix, padWidth, MaxFiscalNumberLength)
	}
	if len(strconv.FormatInt(end, 10)) > padWidth {
		return nil, invalidInput("end number %d does not fit in %d digits", end, padWidth)
	}
	if expiration.IsZero() {
		return nil, invalidInput("expiration date is required")
	}
	if alertThreshold < 0 {
		return nil, invalidInput("alert threshold cannot be negative")
	}

	return &FiscalSequence{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DocumentType:        documentType,
		Prefix:              prefix,
		StartNumber:         start,
		EndNumber:           end,
		CurrentNumber:       start - 1,
		PadWidth:            padWidth,
		ExpirationDate:      expiration,
		IsActive:            true,
		AlertThreshold:      alertThreshold,
	}, nil
}

// IsExpired reports whether the range's validity ended before now
func (s *FiscalSequence) IsExpired(now time.Time) bool {
	return s.ExpirationDate.Before(now)
}

// IsExhausted reports whether every number in the range has been issued
func (s *FiscalSequence) IsExhausted() bool {
	return s.CurrentNumber >= s.EndNumber
}

// Remaining returns how many numbers are left
func (s *FiscalSequence) Remaining() int64 {
	if s.IsExhausted() {
		return 0
	}
	return s.EndNumber - s.CurrentNumber
}

// Issued returns how many numbers have been handed out
func (s *FiscalSequence) Issued() int64 {
	return s.CurrentNumber - s.StartNumber + 1
}

// IsRunningLow reports whether remaining numbers reached the alert threshold
func (s *FiscalSequence) IsRunningLow() bool {
	return s.AlertThreshold > 0 && s.Remaining() <= s.AlertThreshold
}

// NextNumber returns the number the next allocation would take, failing fast on
// inactive, expired or exhausted ranges. It does not advance the sequence.
func (s *FiscalSequence) NextNumber(now time.Time) (int64, error) {
	if !s.IsActive {
		return 0, errorf(ErrNoSequenceConfigured, "sequence %s is inactive", s.Prefix)
	}
	if s.IsExpired(now) {
		return 0, errorf(ErrSequenceExpired, "sequence %s expired on %s", s.Prefix, s.ExpirationDate.Format(time.DateOnly))
	}
	if s.IsExhausted() {
		return 0, errorf(ErrSequenceExhausted, "sequence %s reached %d", s.Prefix, s.EndNumber)
	}
	return s.CurrentNumber + 1, nil
}

// Advance records that number has been issued
func (s *FiscalSequence) Advance(number int64) {
	s.CurrentNumber = number
	s.Version++
	s.Touch()
}

// Format renders number as the printed fiscal number, e.g. E31 + 00000156
func (s *FiscalSequence) Format(number int64) string {
	width := s.PadWidth
	if width <= 0 {
		width = DefaultPadWidth
	}
	return fmt.Sprintf("%s%0*d", s.Prefix, width, number)
}

// Deactivate takes the range out of service; numbers already issued stay valid
func (s *FiscalSequence) Deactivate() {
	s.IsActive = false
	s.Touch()
}
