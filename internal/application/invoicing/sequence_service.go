package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SequenceService manages the authorized fiscal number ranges of a tenant
type SequenceService struct {
	sequenceRepo invoicing.FiscalSequenceRepository
	txScope      TransactionScope
	logger       *zap.Logger
	now          Clock
}

// NewSequenceService creates a new SequenceService
func NewSequenceService(sequenceRepo invoicing.FiscalSequenceRepository, txScope TransactionScope, logger *zap.Logger) *SequenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SequenceService{
		sequenceRepo: sequenceRepo,
		txScope:      txScope,
		logger:       logger.Named("sequence_service"),
		now:          time.Now,
	}
}

// WithClock replaces the time source
func (s *SequenceService) WithClock(clock Clock) *SequenceService {
	s.now = clock
	return s
}

// Register stores a new range and retires the previously active range of the
// same document type, so at most one range per type is ever active.
func (s *SequenceService) Register(ctx context.Context, tenantID uuid.UUID, in RegisterSequenceInput) (*SequenceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sequence", "register",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrDocumentType, in.DocumentType,
	)
	defer span.End()

	docType, err := invoicing.ParseDocumentType(in.DocumentType)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	seq, err := invoicing.NewFiscalSequence(tenantID, docType, in.Prefix, in.StartNumber, in.EndNumber,
		in.PadWidth, in.ExpirationDate, in.AlertThreshold)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	seq.Description = in.Description
	if seq.IsExpired(s.now()) {
		err := shared.NewDomainError(invoicing.ErrSequenceExpired.Code, "cannot register a range that has already expired")
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.SequenceRepo().DeactivateByType(ctx, tenantID, docType); err != nil {
			return fmt.Errorf("failed to retire previous sequence: %w", err)
		}
		return repos.SequenceRepo().Save(ctx, seq)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Fiscal sequence registered",
		zap.String("tenant_id", tenantID.String()),
		zap.String("sequence_id", seq.ID.String()),
		zap.String("document_type", string(docType)),
		zap.String("prefix", seq.Prefix),
		zap.Int64("start", seq.StartNumber),
		zap.Int64("end", seq.EndNumber),
	)
	resp := ToSequenceResponse(seq, s.now())
	return &resp, nil
}

// Deactivate takes a range out of service
func (s *SequenceService) Deactivate(ctx context.Context, tenantID, sequenceID uuid.UUID) (*SequenceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sequence", "deactivate",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrSequenceID, sequenceID.String(),
	)
	defer span.End()

	seq, err := s.sequenceRepo.FindByIDForTenant(ctx, tenantID, sequenceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !seq.IsActive {
		resp := ToSequenceResponse(seq, s.now())
		return &resp, nil
	}
	seq.Deactivate()
	if err := s.sequenceRepo.Save(ctx, seq); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save sequence: %w", err)
	}

	s.logger.Info("Fiscal sequence deactivated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("sequence_id", seq.ID.String()),
		zap.Int64("issued", seq.Issued()),
	)
	resp := ToSequenceResponse(seq, s.now())
	return &resp, nil
}

// List returns the tenant's ranges
func (s *SequenceService) List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]SequenceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sequence", "list", telemetry.AttrTenantID, tenantID.String())
	defer span.End()

	seqs, err := s.sequenceRepo.FindAllForTenant(ctx, tenantID, activeOnly)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}
	now := s.now()
	return lo.Map(seqs, func(seq invoicing.FiscalSequence, _ int) SequenceResponse {
		return ToSequenceResponse(&seq, now)
	}), nil
}

// GetStatus returns one range with its remaining, expired and exhausted flags
func (s *SequenceService) GetStatus(ctx context.Context, tenantID, sequenceID uuid.UUID) (*SequenceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sequence", "get_status",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrSequenceID, sequenceID.String(),
	)
	defer span.End()

	seq, err := s.sequenceRepo.FindByIDForTenant(ctx, tenantID, sequenceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToSequenceResponse(seq, s.now())
	return &resp, nil
}

// GetActiveStatus returns the active range for a document type
func (s *SequenceService) GetActiveStatus(ctx context.Context, tenantID uuid.UUID, documentType string) (*SequenceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sequence", "get_active_status",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrDocumentType, documentType,
	)
	defer span.End()

	docType, err := invoicing.ParseDocumentType(documentType)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	seq, err := s.sequenceRepo.FindActive(ctx, tenantID, docType)
	if err != nil {
		err = notFoundAs(err, invoicing.ErrNoSequenceConfigured, "no active fiscal sequence for %s", docType)
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToSequenceResponse(seq, s.now())
	return &resp, nil
}
