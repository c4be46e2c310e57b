package invoicing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/clinicerp/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SupplierBillService records the fiscal documents received from suppliers
type SupplierBillService struct {
	billRepo invoicing.SupplierBillRepository
	settings Settings
	logger   *zap.Logger
	now      Clock
}

// NewSupplierBillService creates a new SupplierBillService
func NewSupplierBillService(billRepo invoicing.SupplierBillRepository, settings Settings, logger *zap.Logger) *SupplierBillService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupplierBillService{
		billRepo: billRepo,
		settings: settings.withDefaults(),
		logger:   logger.Named("supplier_bill_service"),
		now:      time.Now,
	}
}

// WithClock replaces the time source
func (s *SupplierBillService) WithClock(clock Clock) *SupplierBillService {
	s.now = clock
	return s
}

// Register records a received bill. The same supplier fiscal number cannot be
// recorded twice.
func (s *SupplierBillService) Register(ctx context.Context, tenantID uuid.UUID, in RegisterSupplierBillInput) (*SupplierBillResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "supplier_bill", "register", telemetry.AttrTenantID, tenantID.String())
	defer span.End()

	docType := invoicing.DocumentTypeCreditFiscal
	if in.DocumentType != "" {
		var err error
		if docType, err = invoicing.ParseDocumentType(in.DocumentType); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}
	currency, err := s.settings.currencyOrDefault(in.Currency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	subtotal, err := valueobject.NewMoney(in.Subtotal, currency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	tax, err := valueobject.NewMoney(in.TaxAmount, currency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	rate := decimal.Zero
	if in.ExchangeRate != nil {
		rate = *in.ExchangeRate
	}

	bill, err := invoicing.NewSupplierBill(tenantID, invoicing.SupplierBillInput{
		SupplierName:  in.SupplierName,
		SupplierTaxID: in.SupplierTaxID,
		FiscalNumber:  in.FiscalNumber,
		DocumentType:  docType,
		ExpenseType:   invoicing.ExpenseType(strings.TrimSpace(in.ExpenseType)),
		Subtotal:      subtotal,
		TaxAmount:     tax,
		ExchangeRate:  rate,
		IssueDate:     in.IssueDate,
		Notes:         strings.TrimSpace(in.Notes),
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if in.CreatedBy != nil {
		bill.SetCreatedBy(*in.CreatedBy)
	}

	exists, err := s.billRepo.ExistsByFiscalNumber(ctx, tenantID, bill.SupplierTaxID, bill.FiscalNumber)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check supplier bill: %w", err)
	}
	if exists {
		err := shared.NewDomainError(shared.ErrAlreadyExists.Code,
			fmt.Sprintf("bill %s from %s is already recorded", bill.FiscalNumber, bill.SupplierTaxID))
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.billRepo.Save(ctx, bill); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save supplier bill: %w", err)
	}

	s.logger.Info("Supplier bill registered",
		zap.String("tenant_id", tenantID.String()),
		zap.String("bill_id", bill.ID.String()),
		zap.String("fiscal_number", bill.FiscalNumber),
		zap.String("total", bill.Total.StringFixed(2)),
	)
	resp := ToSupplierBillResponse(bill)
	return &resp, nil
}

// Cancel voids a bill so it drops out of the purchases report
func (s *SupplierBillService) Cancel(ctx context.Context, tenantID, billID uuid.UUID, reason string) (*SupplierBillResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "supplier_bill", "cancel", telemetry.AttrTenantID, tenantID.String())
	defer span.End()

	bill, err := s.billRepo.FindByIDForTenant(ctx, tenantID, billID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := bill.Cancel(reason, s.now()); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.billRepo.Save(ctx, bill); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save supplier bill: %w", err)
	}
	s.logger.Info("Supplier bill cancelled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("bill_id", bill.ID.String()),
		zap.String("reason", bill.CancelReason),
	)
	resp := ToSupplierBillResponse(bill)
	return &resp, nil
}

// GetByID returns one bill
func (s *SupplierBillService) GetByID(ctx context.Context, tenantID, billID uuid.UUID) (*SupplierBillResponse, error) {
	bill, err := s.billRepo.FindByIDForTenant(ctx, tenantID, billID)
	if err != nil {
		return nil, err
	}
	resp := ToSupplierBillResponse(bill)
	return &resp, nil
}

// List returns one page of bills
func (s *SupplierBillService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[SupplierBillResponse], error) {
	bills, total, err := s.billRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier bills: %w", err)
	}
	items := lo.Map(bills, func(b invoicing.SupplierBill, _ int) SupplierBillResponse {
		return ToSupplierBillResponse(&b)
	})
	page := newPage(items, total, filter)
	return &page, nil
}
