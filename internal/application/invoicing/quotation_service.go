package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// QuotationService handles quotations and their conversion into invoice drafts
type QuotationService struct {
	quotationRepo invoicing.QuotationRepository
	txScope       TransactionScope
	publisher     shared.EventPublisher
	settings      Settings
	logger        *zap.Logger
	now           Clock
}

// NewQuotationService creates a new QuotationService
func NewQuotationService(
	quotationRepo invoicing.QuotationRepository,
	txScope TransactionScope,
	publisher shared.EventPublisher,
	settings Settings,
	logger *zap.Logger,
) *QuotationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotationService{
		quotationRepo: quotationRepo,
		txScope:       txScope,
		publisher:     publisher,
		settings:      settings.withDefaults(),
		logger:        logger.Named("quotation_service"),
		now:           time.Now,
	}
}

// WithClock replaces the time source
func (s *QuotationService) WithClock(clock Clock) *QuotationService {
	s.now = clock
	return s
}

// Create stores a new draft quotation
func (s *QuotationService) Create(ctx context.Context, tenantID uuid.UUID, in CreateQuotationInput) (*QuotationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quotation", "create", telemetry.AttrTenantID, tenantID.String())
	defer span.End()

	docType, err := parseDocumentType(in.DocumentType)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	currency, err := s.settings.currencyOrDefault(in.Currency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	lines, err := toLineInputs(currency, in.Lines)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	number, err := s.quotationRepo.NextQuotationNumber(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to generate quotation number: %w", err)
	}

	taxRate := s.settings.taxRateOrDefault(in.TaxRate)
	q, err := invoicing.NewQuotation(tenantID, number, docType, currency, in.Customer.toDomain(), taxRate, in.ValidUntil)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := q.Update(q.Customer, lines, taxRate, in.ValidUntil, strings.TrimSpace(in.Notes)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if in.CreatedBy != nil {
		q.SetCreatedBy(*in.CreatedBy)
	}
	if err := s.quotationRepo.Save(ctx, q); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save quotation: %w", err)
	}

	s.logger.Info("Quotation created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("quotation_id", q.ID.String()),
		zap.String("quotation_number", q.QuotationNumber),
	)
	resp := ToQuotationResponse(q, s.now())
	return &resp, nil
}

// Update replaces the content of a draft quotation
func (s *QuotationService) Update(ctx context.Context, tenantID, quotationID uuid.UUID, in UpdateQuotationInput) (*QuotationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quotation", "update", telemetry.AttrTenantID, tenantID.String())
	defer span.End()

	q, err := s.quotationRepo.FindByIDForTenant(ctx, tenantID, quotationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	lines, err := toLineInputs(q.Currency, in.Lines)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	taxRate := q.TaxRate
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}
	if err := q.Update(in.Customer.toDomain(), lines, taxRate, in.ValidUntil, strings.TrimSpace(in.Notes)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.quotationRepo.Save(ctx, q); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save quotation: %w", err)
	}
	resp := ToQuotationResponse(q, s.now())
	return &resp, nil
}

// Send marks a draft quotation as sent to the customer
func (s *QuotationService) Send(ctx context.Context, tenantID, quotationID uuid.UUID) (*QuotationResponse, error) {
	return s.transition(ctx, "send", tenantID, quotationID, func(q *invoicing.Quotation, now time.Time) error {
		return q.Send(now)
	})
}

// Accept records the customer's acceptance
func (s *QuotationService) Accept(ctx context.Context, tenantID, quotationID uuid.UUID) (*QuotationResponse, error) {
	return s.transition(ctx, "accept", tenantID, quotationID, func(q *invoicing.Quotation, now time.Time) error {
		return q.Accept(now)
	})
}

// Reject records the customer's rejection
func (s *QuotationService) Reject(ctx context.Context, tenantID, quotationID uuid.UUID, reason string) (*QuotationResponse, error) {
	return s.transition(ctx, "reject", tenantID, quotationID, func(q *invoicing.Quotation, now time.Time) error {
		return q.Reject(reason, now)
	})
}

func (s *QuotationService) transition(ctx context.Context, action string, tenantID, quotationID uuid.UUID, apply func(*invoicing.Quotation, time.Time) error) (*QuotationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quotation", action,
		telemetry.AttrTenantID, tenantID.String(),
		"quotation_id", quotationID.String(),
	)
	defer span.End()

	q, err := s.quotationRepo.FindByIDForTenant(ctx, tenantID, quotationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	now := s.now()
	if err := apply(q, now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.quotationRepo.SaveWithLock(ctx, q); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Quotation "+action,
		zap.String("tenant_id", tenantID.String()),
		zap.String("quotation_id", q.ID.String()),
		zap.String("stage", string(q.Stage)),
	)
	resp := ToQuotationResponse(q, now)
	return &resp, nil
}

// Convert creates an invoice draft from the quotation and links the two in one
// transaction. A quotation converts at most once.
func (s *QuotationService) Convert(ctx context.Context, tenantID, quotationID uuid.UUID, createdBy *uuid.UUID) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quotation", "convert",
		telemetry.AttrTenantID, tenantID.String(),
		"quotation_id", quotationID.String(),
	)
	defer span.End()

	now := s.now()
	var (
		q   *invoicing.Quotation
		inv *invoicing.Invoice
	)
	convert := func(repos TransactionalRepositories) error {
		var err error
		if q, err = repos.QuotationRepo().FindByIDForTenant(ctx, tenantID, quotationID); err != nil {
			return err
		}
		if q.IsConverted() {
			return shared.NewDomainError(invoicing.ErrQuotationAlreadyConverted.Code,
				fmt.Sprintf("quotation %s was converted already", q.QuotationNumber))
		}
		number, err := repos.InvoiceRepo().NextInvoiceNumber(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to generate invoice number: %w", err)
		}
		if inv, err = q.ToInvoice(number, now); err != nil {
			return err
		}
		if createdBy != nil {
			inv.SetCreatedBy(*createdBy)
		}
		if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		if err := q.MarkConverted(inv.ID, now); err != nil {
			return err
		}
		return repos.QuotationRepo().SaveWithLock(ctx, q)
	}
	err := s.txScope.Execute(ctx, convert)
	for attempt := 2; errors.Is(err, shared.ErrAlreadyExists) && attempt <= documentNumberAttempts; attempt++ {
		// a concurrent create took the invoice number; the rolled back transaction runs again
		s.logger.Warn("Invoice number taken during conversion, retrying",
			zap.String("tenant_id", tenantID.String()),
			zap.String("quotation_id", quotationID.String()),
		)
		err = s.txScope.Execute(ctx, convert)
	}
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		// a concurrent conversion committed first
		if current, ferr := s.quotationRepo.FindByIDForTenant(ctx, tenantID, quotationID); ferr == nil && current.IsConverted() {
			err = shared.NewDomainError(invoicing.ErrQuotationAlreadyConverted.Code,
				fmt.Sprintf("quotation %s was converted already", current.QuotationNumber))
		}
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishAfterCommit(ctx, s.publisher, s.logger, nil, inv, q)
	s.logger.Info("Quotation converted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("quotation_id", q.ID.String()),
		zap.String("invoice_id", inv.ID.String()),
	)
	resp := ToInvoiceResponse(inv, now)
	return &resp, nil
}

// GetByID returns one quotation
func (s *QuotationService) GetByID(ctx context.Context, tenantID, quotationID uuid.UUID) (*QuotationResponse, error) {
	q, err := s.quotationRepo.FindByIDForTenant(ctx, tenantID, quotationID)
	if err != nil {
		return nil, err
	}
	resp := ToQuotationResponse(q, s.now())
	return &resp, nil
}

// List returns one page of quotations
func (s *QuotationService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[QuotationResponse], error) {
	quotations, total, err := s.quotationRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotations: %w", err)
	}
	now := s.now()
	items := lo.Map(quotations, func(q invoicing.Quotation, _ int) QuotationResponse {
		return ToQuotationResponse(&q, now)
	})
	page := newPage(items, total, filter)
	return &page, nil
}
