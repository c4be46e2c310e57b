package telemetry

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrKeyTenantID     = attribute.Key("tenant_id")
	AttrKeyDocumentType = attribute.Key("document_type")
	AttrKeyMethod       = attribute.Key("method")
	AttrKeyOutcome      = attribute.Key("outcome")
	AttrKeyReportType   = attribute.Key("report_type")
)

// InvoicingMetrics are the business counters of the invoicing service
type InvoicingMetrics struct {
	invoicesFinalized  metric.Int64Counter
	invoicesCancelled  metric.Int64Counter
	paymentsApplied    metric.Int64Counter
	paymentAmountCents metric.Int64Counter
	allocationRetries  metric.Int64Counter
	allocationFailures metric.Int64Counter
	sequenceRemaining  metric.Int64Gauge
	reportsGenerated   metric.Int64Counter
}

// NewInvoicingMetrics registers the instruments on meter
func NewInvoicingMetrics(meter metric.Meter) (*InvoicingMetrics, error) {
	m := &InvoicingMetrics{}
	var err error
	if m.invoicesFinalized, err = meter.Int64Counter("invoicing_invoices_finalized_total",
		metric.WithDescription("Invoices finalized with a fiscal number"), metric.WithUnit("{invoices}")); err != nil {
		return nil, err
	}
	if m.invoicesCancelled, err = meter.Int64Counter("invoicing_invoices_cancelled_total",
		metric.WithDescription("Invoices cancelled"), metric.WithUnit("{invoices}")); err != nil {
		return nil, err
	}
	if m.paymentsApplied, err = meter.Int64Counter("invoicing_payments_total",
		metric.WithDescription("Payment ledger entries by outcome"), metric.WithUnit("{payments}")); err != nil {
		return nil, err
	}
	if m.paymentAmountCents, err = meter.Int64Counter("invoicing_payment_amount_total",
		metric.WithDescription("Applied payment amount in minor units"), metric.WithUnit("{cents}")); err != nil {
		return nil, err
	}
	if m.allocationRetries, err = meter.Int64Counter("invoicing_sequence_allocation_retries_total",
		metric.WithDescription("Lost compare-and-swap rounds on fiscal sequences"), metric.WithUnit("{retries}")); err != nil {
		return nil, err
	}
	if m.allocationFailures, err = meter.Int64Counter("invoicing_sequence_allocation_failures_total",
		metric.WithDescription("Fiscal number allocations that failed"), metric.WithUnit("{allocations}")); err != nil {
		return nil, err
	}
	if m.sequenceRemaining, err = meter.Int64Gauge("invoicing_sequence_remaining",
		metric.WithDescription("Fiscal numbers left in the active sequence"), metric.WithUnit("{numbers}")); err != nil {
		return nil, err
	}
	if m.reportsGenerated, err = meter.Int64Counter("invoicing_reports_generated_total",
		metric.WithDescription("Period reports generated"), metric.WithUnit("{reports}")); err != nil {
		return nil, err
	}
	return m, nil
}

func tenantAttr(tenantID uuid.UUID) attribute.KeyValue {
	return AttrKeyTenantID.String(tenantID.String())
}

// RecordInvoiceFinalized counts a finalized invoice
func (m *InvoicingMetrics) RecordInvoiceFinalized(ctx context.Context, tenantID uuid.UUID, documentType string) {
	if m == nil {
		return
	}
	m.invoicesFinalized.Add(ctx, 1, metric.WithAttributes(tenantAttr(tenantID), AttrKeyDocumentType.String(documentType)))
}

// RecordInvoiceCancelled counts a cancelled invoice
func (m *InvoicingMetrics) RecordInvoiceCancelled(ctx context.Context, tenantID uuid.UUID) {
	if m == nil {
		return
	}
	m.invoicesCancelled.Add(ctx, 1, metric.WithAttributes(tenantAttr(tenantID)))
}

// RecordPayment counts a ledger entry; amount is only added for applied payments
func (m *InvoicingMetrics) RecordPayment(ctx context.Context, tenantID uuid.UUID, method, outcome string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(tenantAttr(tenantID), AttrKeyMethod.String(method), AttrKeyOutcome.String(outcome))
	m.paymentsApplied.Add(ctx, 1, attrs)
	if outcome == "applied" && amount.IsPositive() {
		m.paymentAmountCents.Add(ctx, amount.Shift(2).IntPart(), attrs)
	}
}

// RecordAllocationRetry counts a lost compare-and-swap round
func (m *InvoicingMetrics) RecordAllocationRetry(ctx context.Context, tenantID uuid.UUID, documentType string) {
	if m == nil {
		return
	}
	m.allocationRetries.Add(ctx, 1, metric.WithAttributes(tenantAttr(tenantID), AttrKeyDocumentType.String(documentType)))
}

// RecordAllocationFailure counts an allocation that returned an error
func (m *InvoicingMetrics) RecordAllocationFailure(ctx context.Context, tenantID uuid.UUID, documentType, code string) {
	if m == nil {
		return
	}
	m.allocationFailures.Add(ctx, 1, metric.WithAttributes(tenantAttr(tenantID),
		AttrKeyDocumentType.String(documentType), AttrKeyOutcome.String(code)))
}

// RecordSequenceRemaining reports the numbers left after an allocation
func (m *InvoicingMetrics) RecordSequenceRemaining(ctx context.Context, tenantID uuid.UUID, documentType string, remaining int64) {
	if m == nil {
		return
	}
	m.sequenceRemaining.Record(ctx, remaining, metric.WithAttributes(tenantAttr(tenantID), AttrKeyDocumentType.String(documentType)))
}

// RecordReportGenerated counts a generated report
func (m *InvoicingMetrics) RecordReportGenerated(ctx context.Context, tenantID uuid.UUID, reportType string) {
	if m == nil {
		return
	}
	m.reportsGenerated.Add(ctx, 1, metric.WithAttributes(tenantAttr(tenantID), AttrKeyReportType.String(reportType)))
}
