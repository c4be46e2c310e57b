package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/clinicerp/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ReportArchive stores the snapshot of a submitted report
type ReportArchive interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// ReportService builds and files the 606/607 period reports
type ReportService struct {
	reportRepo invoicing.PeriodReportRepository
	txScope    TransactionScope
	archive    ReportArchive
	publisher  shared.EventPublisher
	metrics    *telemetry.InvoicingMetrics
	settings   Settings
	logger     *zap.Logger
	now        Clock
}

// NewReportService creates a new ReportService. archive may be nil, in which
// case submitted reports are not snapshotted.
func NewReportService(
	reportRepo invoicing.PeriodReportRepository,
	txScope TransactionScope,
	archive ReportArchive,
	publisher shared.EventPublisher,
	metrics *telemetry.InvoicingMetrics,
	settings Settings,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		reportRepo: reportRepo,
		txScope:    txScope,
		archive:    archive,
		publisher:  publisher,
		metrics:    metrics,
		settings:   settings.withDefaults(),
		logger:     logger.Named("report_service"),
		now:        time.Now,
	}
}

// WithClock replaces the time source
func (s *ReportService) WithClock(clock Clock) *ReportService {
	s.now = clock
	return s
}

// Generate computes the report for a period and stores it as a draft. An
// existing draft or rejected report is overwritten; a filed one is locked.
func (s *ReportService) Generate(ctx context.Context, tenantID uuid.UUID, periodKey, reportType string) (*ReportResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "generate",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrPeriod, periodKey,
		telemetry.AttrReportType, reportType,
	)
	defer span.End()

	period, err := invoicing.ParsePeriod(periodKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	rtype, err := invoicing.ParseReportType(reportType)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	var report *invoicing.PeriodReport
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		docs, err := s.collect(ctx, repos, tenantID, period, rtype)
		if err != nil {
			return err
		}
		figures, err := invoicing.AggregateDocuments(period, rtype, valueobject.DefaultCurrency, s.settings.Location, docs)
		if err != nil {
			return err
		}

		existing, err := repos.ReportRepo().FindByPeriod(ctx, tenantID, period, rtype)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			if report, err = invoicing.NewPeriodReport(tenantID, figures, now); err != nil {
				return err
			}
			return repos.ReportRepo().Save(ctx, report)
		case err != nil:
			return fmt.Errorf("failed to load report: %w", err)
		}
		report = existing
		changed, err := report.Regenerate(figures, now)
		if err != nil || !changed {
			return err
		}
		return repos.ReportRepo().SaveWithLock(ctx, report)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishAfterCommit(ctx, s.publisher, s.logger, nil, report)
	s.metrics.RecordReportGenerated(ctx, tenantID, string(rtype))
	s.logger.Info("Period report generated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("period", period.String()),
		zap.String("report_type", string(rtype)),
		zap.Int("records", report.TotalRecords),
		zap.String("checksum", report.Checksum),
	)

	resp := ToReportResponse(report)
	return &resp, nil
}

func (s *ReportService) collect(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, period invoicing.Period, rtype invoicing.ReportType) ([]invoicing.FiscalDocument, error) {
	from, to := period.Start(s.settings.Location), period.End(s.settings.Location)
	switch rtype {
	case invoicing.ReportTypeSales:
		invoices, err := repos.InvoiceRepo().FindIssuedBetween(ctx, tenantID, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to load invoices: %w", err)
		}
		return lo.Map(invoices, func(inv invoicing.Invoice, _ int) invoicing.FiscalDocument {
			return inv.FiscalDocument()
		}), nil
	default:
		bills, err := repos.SupplierBillRepo().FindIssuedBetween(ctx, tenantID, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to load supplier bills: %w", err)
		}
		return lo.Map(bills, func(b invoicing.SupplierBill, _ int) invoicing.FiscalDocument {
			return b.FiscalDocument()
		}), nil
	}
}

// Submit files a draft report and archives its snapshot
func (s *ReportService) Submit(ctx context.Context, tenantID, reportID uuid.UUID, submittedBy *uuid.UUID, reference string) (*ReportResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "submit", telemetry.AttrTenantID, tenantID.String())
	defer span.End()

	report, err := s.reportRepo.FindByIDForTenant(ctx, tenantID, reportID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	now := s.now()
	if err := report.Submit(submittedBy, reference, now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if s.archive != nil {
		key, err := s.archiveSnapshot(ctx, report)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		report.SetArchiveKey(key)
	}
	if err := s.reportRepo.SaveWithLock(ctx, report); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishAfterCommit(ctx, s.publisher, s.logger, nil, report)
	s.logger.Info("Period report submitted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("report_id", report.ID.String()),
		zap.String("period", report.Period.String()),
		zap.String("report_type", string(report.ReportType)),
		zap.String("archive_key", report.ArchiveKey),
	)
	resp := ToReportResponse(report)
	return &resp, nil
}

func (s *ReportService) archiveSnapshot(ctx context.Context, report *invoicing.PeriodReport) (string, error) {
	body, err := json.MarshalIndent(ToReportResponse(report), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report snapshot: %w", err)
	}
	key := fmt.Sprintf("reports/%s/%s/%s-%s.json", report.TenantID, report.Period, report.ReportType, report.Checksum[:12])
	if err := s.archive.Upload(ctx, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("failed to archive report snapshot: %w", err)
	}
	return key, nil
}

// Accept records the regulator's acceptance
func (s *ReportService) Accept(ctx context.Context, tenantID, reportID uuid.UUID) (*ReportResponse, error) {
	return s.review(ctx, "accept", tenantID, reportID, func(r *invoicing.PeriodReport, now time.Time) error {
		return r.Accept(now)
	})
}

// Reject records the regulator's rejection; the report can then be regenerated
func (s *ReportService) Reject(ctx context.Context, tenantID, reportID uuid.UUID, reason string) (*ReportResponse, error) {
	return s.review(ctx, "reject", tenantID, reportID, func(r *invoicing.PeriodReport, now time.Time) error {
		return r.Reject(reason, now)
	})
}

func (s *ReportService) review(ctx context.Context, action string, tenantID, reportID uuid.UUID, apply func(*invoicing.PeriodReport, time.Time) error) (*ReportResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", action, telemetry.AttrTenantID, tenantID.String())
	defer span.End()

	report, err := s.reportRepo.FindByIDForTenant(ctx, tenantID, reportID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := apply(report, s.now()); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.reportRepo.SaveWithLock(ctx, report); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Period report reviewed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("report_id", report.ID.String()),
		zap.String("status", string(report.Status)),
	)
	resp := ToReportResponse(report)
	return &resp, nil
}

// GetByID returns one report
func (s *ReportService) GetByID(ctx context.Context, tenantID, reportID uuid.UUID) (*ReportResponse, error) {
	report, err := s.reportRepo.FindByIDForTenant(ctx, tenantID, reportID)
	if err != nil {
		return nil, err
	}
	resp := ToReportResponse(report)
	return &resp, nil
}

// List returns one page of reports
func (s *ReportService) List(ctx context.Context, tenantID uuid.UUID, filter invoicing.ReportFilter) (*shared.Paginated[ReportResponse], error) {
	reports, total, err := s.reportRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	items := lo.Map(reports, func(r invoicing.PeriodReport, _ int) ReportResponse {
		return ToReportResponse(&r)
	})
	page := newPage(items, total, filter.Filter)
	return &page, nil
}

// TaxBalance returns tax collected minus tax paid for a period. It reads the
// stored reports and never persists the result.
func (s *ReportService) TaxBalance(ctx context.Context, tenantID uuid.UUID, periodKey string) (*TaxBalanceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "tax_balance",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrPeriod, periodKey,
	)
	defer span.End()

	period, err := invoicing.ParsePeriod(periodKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	sales, err := s.reportRepo.FindByPeriod(ctx, tenantID, period, invoicing.ReportTypeSales)
	if err != nil {
		err = notFoundAs(err, shared.ErrNotFound, "no %s report for %s", invoicing.ReportTypeSales, period)
		telemetry.RecordError(span, err)
		return nil, err
	}
	purchases, err := s.reportRepo.FindByPeriod(ctx, tenantID, period, invoicing.ReportTypePurchases)
	if err != nil {
		err = notFoundAs(err, shared.ErrNotFound, "no %s report for %s", invoicing.ReportTypePurchases, period)
		telemetry.RecordError(span, err)
		return nil, err
	}

	balance, err := invoicing.ComputeTaxBalance(sales.ReportFigures, purchases.ReportFigures)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	salesID, purchasesID := sales.ID, purchases.ID
	return &TaxBalanceResponse{
		Period:       balance.Period.String(),
		TaxCollected: money(balance.TaxCollected, balance.Currency),
		TaxPaid:      money(balance.TaxPaid, balance.Currency),
		Balance:      money(balance.Balance, balance.Currency),
		SalesReport:  &salesID,
		BuyReport:    &purchasesID,
	}, nil
}

// CloseMonth generates the draft 606 and 607 of period for a tenant. Locked
// reports are left untouched.
func (s *ReportService) CloseMonth(ctx context.Context, tenantID uuid.UUID, period invoicing.Period) error {
	var errs []error
	for _, rtype := range []invoicing.ReportType{invoicing.ReportTypeSales, invoicing.ReportTypePurchases} {
		if _, err := s.Generate(ctx, tenantID, period.String(), string(rtype)); err != nil {
			if errors.Is(err, invoicing.ErrReportLocked) {
				s.logger.Debug("Report already filed, skipping close",
					zap.String("tenant_id", tenantID.String()),
					zap.String("period", period.String()),
					zap.String("report_type", string(rtype)),
				)
				continue
			}
			errs = append(errs, fmt.Errorf("%s report: %w", rtype, err))
		}
	}
	return errors.Join(errs...)
}
