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

// documentNumberAttempts bounds how often a draft number is read again after a unique-key clash
const documentNumberAttempts = 2

// InvoiceService handles the invoice lifecycle from draft to cancellation
type InvoiceService struct {
	invoiceRepo invoicing.InvoiceRepository
	txScope     TransactionScope
	allocator   *SequenceAllocator
	publisher   shared.EventPublisher
	metrics     *telemetry.InvoicingMetrics
	settings    Settings
	logger      *zap.Logger
	now         Clock
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo invoicing.InvoiceRepository,
	txScope TransactionScope,
	allocator *SequenceAllocator,
	publisher shared.EventPublisher,
	metrics *telemetry.InvoicingMetrics,
	settings Settings,
	logger *zap.Logger,
) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		txScope:     txScope,
		allocator:   allocator,
		publisher:   publisher,
		metrics:     metrics,
		settings:    settings.withDefaults(),
		logger:      logger.Named("invoice_service"),
		now:         time.Now,
	}
}

// WithClock replaces the time source
func (s *InvoiceService) WithClock(clock Clock) *InvoiceService {
	s.now = clock
	return s
}

// Preview prices lines with the document calculator without storing anything
func (s *InvoiceService) Preview(ctx context.Context, in PreviewInput) (*PreviewResponse, error) {
	_, span := telemetry.StartServiceSpan(ctx, "invoice", "preview")
	defer span.End()

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
	taxRate := s.settings.taxRateOrDefault(in.TaxRate)
	totals, err := invoicing.ComputeDocumentTotals(currency, lines, taxRate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := &PreviewResponse{
		TotalsResponse: TotalsResponse{
			Currency:       currency,
			TaxRate:        taxRate,
			Subtotal:       totals.Subtotal,
			DiscountAmount: totals.DiscountTotal,
			TaxAmount:      totals.TaxAmount,
			Total:          totals.Total,
		},
		Lines: make([]LineItemResponse, 0, len(lines)),
	}
	for i, l := range lines {
		amount, err := invoicing.ComputeLineTotal(l.Quantity, l.UnitPrice, l.Discount, l.DiscountType)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		resp.Lines = append(resp.Lines, LineItemResponse{
			Position:     i + 1,
			Description:  l.Description,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice.Amount(),
			Discount:     l.Discount,
			DiscountType: string(l.DiscountType),
			LineTotal:    amount.Amount(),
		})
	}
	return resp, nil
}

// Create stores a new draft invoice
func (s *InvoiceService) Create(ctx context.Context, tenantID uuid.UUID, in CreateInvoiceInput) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create", telemetry.AttrTenantID, tenantID.String())
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

	taxRate := s.settings.taxRateOrDefault(in.TaxRate)
	build := func(number string) (*invoicing.Invoice, error) {
		inv, err := invoicing.NewInvoice(tenantID, number, docType, currency, in.Customer.toDomain(), taxRate)
		if err != nil {
			return nil, err
		}
		if err := inv.SetLines(lines, taxRate); err != nil {
			return nil, err
		}
		if in.ExchangeRate != nil {
			if err := inv.SetExchangeRate(*in.ExchangeRate); err != nil {
				return nil, err
			}
		}
		if err := inv.SetDueDate(in.DueDate); err != nil {
			return nil, err
		}
		inv.Notes = strings.TrimSpace(in.Notes)
		if in.CreatedBy != nil {
			inv.SetCreatedBy(*in.CreatedBy)
		}
		return inv, nil
	}

	var inv *invoicing.Invoice
	for attempt := 1; ; attempt++ {
		number, err := s.invoiceRepo.NextInvoiceNumber(ctx, tenantID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to generate invoice number: %w", err)
		}
		if inv, err = build(number); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		err = s.invoiceRepo.Save(ctx, inv)
		if err == nil {
			break
		}
		// a concurrent create took the number; read the next one once more
		if errors.Is(err, shared.ErrAlreadyExists) && attempt < documentNumberAttempts {
			s.logger.Warn("Invoice number taken, retrying",
				zap.String("tenant_id", tenantID.String()),
				zap.String("invoice_number", number),
			)
			continue
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	publishAfterCommit(ctx, s.publisher, s.logger, nil, inv)

	s.logger.Info("Invoice draft created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("document_type", string(docType)),
	)
	telemetry.SetAttributes(span, telemetry.AttrInvoiceID, inv.ID.String())

	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// UpdateDraft edits a draft. Drafts are last-write-wins.
func (s *InvoiceService) UpdateDraft(ctx context.Context, tenantID, invoiceID uuid.UUID, in UpdateInvoiceInput) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "update_draft",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrInvoiceID, invoiceID.String(),
	)
	defer span.End()

	inv, err := s.load(ctx, s.invoiceRepo, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !inv.IsDraft() {
		err := shared.NewDomainError(invoicing.ErrInvalidTransition.Code, fmt.Sprintf("invoice %s is no longer a draft", inv.InvoiceNumber))
		telemetry.RecordError(span, err)
		return nil, err
	}

	if in.Customer != nil {
		if err := inv.SetCustomer(in.Customer.toDomain()); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}
	if in.Lines != nil || in.TaxRate != nil {
		lines := inv.Inputs()
		if in.Lines != nil {
			if lines, err = toLineInputs(inv.Currency, in.Lines); err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
		}
		taxRate := inv.TaxRate
		if in.TaxRate != nil {
			taxRate = *in.TaxRate
		}
		if err := inv.SetLines(lines, taxRate); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}
	if in.ExchangeRate != nil {
		if err := inv.SetExchangeRate(*in.ExchangeRate); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}
	if in.DueDate != nil {
		if err := inv.SetDueDate(in.DueDate); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}
	if in.Notes != nil {
		if err := inv.SetNotes(strings.TrimSpace(*in.Notes)); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// Finalize allocates a fiscal number and issues the invoice. The number is
// consumed in the same transaction that stores the invoice.
func (s *InvoiceService) Finalize(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "finalize",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrInvoiceID, invoiceID.String(),
	)
	defer span.End()

	var (
		inv   *invoicing.Invoice
		alloc *Allocation
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		if inv, err = s.load(ctx, repos.InvoiceRepo(), tenantID, invoiceID); err != nil {
			return err
		}
		if err := inv.CanFinalize(); err != nil {
			return err
		}
		if alloc, err = s.allocator.AllocateWith(ctx, repos.SequenceRepo(), tenantID, inv.DocumentType); err != nil {
			return err
		}
		if err := inv.Finalize(alloc.FiscalNumberAssignment, s.now(), s.settings.DefaultDueDays); err != nil {
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("Invoice finalize failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("invoice_id", invoiceID.String()),
			zap.String("code", shared.CodeOf(err)),
			zap.Error(err),
		)
		return nil, err
	}

	publishAfterCommit(ctx, s.publisher, s.logger, alloc.Events, inv)
	s.metrics.RecordInvoiceFinalized(ctx, tenantID, string(inv.DocumentType))

	s.logger.Info("Invoice finalized",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("fiscal_number", inv.FiscalNumber),
		zap.String("sequence_id", alloc.SequenceID.String()),
		zap.Int64("remaining", alloc.Remaining),
	)
	telemetry.SetAttributes(span, telemetry.AttrFiscalNumber, inv.FiscalNumber)

	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// Cancel cancels an unpaid invoice. The fiscal number is never released.
func (s *InvoiceService) Cancel(ctx context.Context, tenantID, invoiceID uuid.UUID, reason string) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "cancel",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrInvoiceID, invoiceID.String(),
	)
	defer span.End()

	inv, err := s.load(ctx, s.invoiceRepo, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := inv.Cancel(reason, s.now()); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishAfterCommit(ctx, s.publisher, s.logger, nil, inv)
	s.metrics.RecordInvoiceCancelled(ctx, tenantID)
	s.logger.Info("Invoice cancelled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("fiscal_number", inv.FiscalNumber),
		zap.String("reason", inv.CancelReason),
	)

	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// GetByID returns one invoice, cancelled ones included
func (s *InvoiceService) GetByID(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "get",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrInvoiceID, invoiceID.String(),
	)
	defer span.End()

	inv, err := s.load(ctx, s.invoiceRepo, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// List returns one page of invoices
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, in InvoiceListInput) (*shared.Paginated[InvoiceResponse], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "list", telemetry.AttrTenantID, tenantID.String())
	defer span.End()

	now := s.now()
	filter := invoicing.InvoiceFilter{
		Filter:     in.Filter,
		CustomerID: in.CustomerID,
		IssuedFrom: in.IssuedFrom,
		IssuedTo:   in.IssuedTo,
		Now:        now,
	}
	if in.Status != "" {
		status := invoicing.InvoiceStatus(in.Status)
		if !status.IsValid() {
			err := invalidInput("unknown invoice status %q", in.Status)
			telemetry.RecordError(span, err)
			return nil, err
		}
		filter.Status = status
	}
	if in.DocumentType != "" {
		docType, err := invoicing.ParseDocumentType(in.DocumentType)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		filter.DocumentType = docType
	}

	invoices, total, err := s.invoiceRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	items := lo.Map(invoices, func(inv invoicing.Invoice, _ int) InvoiceResponse {
		return ToInvoiceResponse(&inv, now)
	})
	page := newPage(items, total, in.Filter)
	return &page, nil
}

func (s *InvoiceService) load(ctx context.Context, repo invoicing.InvoiceRepository, tenantID, invoiceID uuid.UUID) (*invoicing.Invoice, error) {
	inv, err := repo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, notFoundAs(err, invoicing.ErrInvoiceNotFound, "invoice %s not found", invoiceID)
	}
	return inv, nil
}
