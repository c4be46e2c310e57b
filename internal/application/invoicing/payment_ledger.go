package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/clinicerp/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// PaymentLedger records payments and voids against invoices. The ledger rows
// are the source of truth; Invoice.PaidAmount is a snapshot kept in step in the
// same transaction and repairable with Reconcile.
type PaymentLedger struct {
	paymentRepo invoicing.PaymentRepository
	invoiceRepo invoicing.InvoiceRepository
	txScope     TransactionScope
	idempotency shared.IdempotencyStore
	publisher   shared.EventPublisher
	metrics     *telemetry.InvoicingMetrics
	settings    Settings
	logger      *zap.Logger
	now         Clock

	retryInterval time.Duration
}

// NewPaymentLedger creates a new PaymentLedger. idempotency may be nil, in
// which case only the durable unique index deduplicates keys.
func NewPaymentLedger(
	paymentRepo invoicing.PaymentRepository,
	invoiceRepo invoicing.InvoiceRepository,
	txScope TransactionScope,
	idempotency shared.IdempotencyStore,
	publisher shared.EventPublisher,
	metrics *telemetry.InvoicingMetrics,
	settings Settings,
	logger *zap.Logger,
) *PaymentLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentLedger{
		paymentRepo:   paymentRepo,
		invoiceRepo:   invoiceRepo,
		txScope:       txScope,
		idempotency:   idempotency,
		publisher:     publisher,
		metrics:       metrics,
		settings:      settings.withDefaults(),
		logger:        logger.Named("payment_ledger"),
		now:           time.Now,
		retryInterval: 10 * time.Millisecond,
	}
}

// WithClock replaces the time source
func (l *PaymentLedger) WithClock(clock Clock) *PaymentLedger {
	l.now = clock
	return l
}

// ApplyPayment records a payment. A repeated call with a known idempotency key
// returns the original entry and does not touch the invoice again.
func (l *PaymentLedger) ApplyPayment(ctx context.Context, cmd ApplyPaymentCommand) (_ *PaymentResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_ledger", "apply_payment",
		telemetry.AttrTenantID, cmd.TenantID.String(),
		telemetry.AttrInvoiceID, cmd.InvoiceID.String(),
		telemetry.AttrAmount, cmd.Amount.String(),
	)
	defer span.End()

	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key != "" {
		if result, rerr := l.replay(ctx, cmd.TenantID, key, cmd.InvoiceID); result != nil || rerr != nil {
			if rerr != nil {
				telemetry.RecordError(span, rerr)
			}
			return result, rerr
		}
		release, cerr := l.claim(ctx, cmd.TenantID, key)
		if cerr != nil {
			// the holder may have committed between the lookup and the claim
			if result, rerr := l.replay(ctx, cmd.TenantID, key, cmd.InvoiceID); result != nil || rerr != nil {
				return result, rerr
			}
			telemetry.RecordError(span, cerr)
			return nil, cerr
		}
		defer func() { release(err) }()
	}

	method := invoicing.PaymentMethod(strings.ToLower(strings.TrimSpace(cmd.Method)))
	appliedAt := l.now()
	if cmd.AppliedAt != nil {
		appliedAt = *cmd.AppliedAt
	}

	var (
		inv     *invoicing.Invoice
		payment *invoicing.Payment
	)
	err = l.withLockRetry(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForTenant(ctx, cmd.TenantID, cmd.InvoiceID)
		if err != nil {
			return notFoundAs(err, invoicing.ErrInvoiceNotFound, "invoice %s not found", cmd.InvoiceID)
		}
		currency := inv.Currency
		if cmd.Currency != "" {
			if currency, err = valueobject.ParseCurrency(cmd.Currency); err != nil {
				return shared.NewDomainError(invoicing.ErrCurrencyMismatch.Code, err.Error())
			}
		}
		amount, err := valueobject.NewMoney(cmd.Amount, currency)
		if err != nil {
			return shared.NewDomainError(invoicing.ErrCurrencyMismatch.Code, err.Error())
		}

		payment, err = invoicing.NewPayment(cmd.TenantID, inv.ID, amount, method, cmd.Reference, key, appliedAt)
		if err != nil {
			return err
		}
		payment.CreatedBy = cmd.CreatedBy

		if err := inv.ApplyPayment(amount); err != nil {
			return err
		}
		if err := repos.PaymentRepo().Create(ctx, payment); err != nil {
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv)
	})
	if err != nil {
		if key != "" && errors.Is(err, shared.ErrAlreadyExists) {
			// lost the durable race to a concurrent request with the same key
			if result, rerr := l.replay(ctx, cmd.TenantID, key, cmd.InvoiceID); result != nil {
				return result, nil
			} else if rerr != nil {
				err = rerr
			}
		}
		l.metrics.RecordPayment(ctx, cmd.TenantID, string(method), strings.ToLower(shared.CodeOf(err)), cmd.Amount)
		telemetry.RecordError(span, err)
		l.logger.Warn("Payment rejected",
			zap.String("tenant_id", cmd.TenantID.String()),
			zap.String("invoice_id", cmd.InvoiceID.String()),
			zap.String("amount", cmd.Amount.String()),
			zap.String("code", shared.CodeOf(err)),
			zap.Error(err),
		)
		return nil, err
	}

	publishAfterCommit(ctx, l.publisher, l.logger, nil, inv)
	l.metrics.RecordPayment(ctx, cmd.TenantID, string(method), "applied", payment.Amount)
	l.logger.Info("Payment applied",
		zap.String("tenant_id", cmd.TenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("amount_due", inv.AmountDue().StringFixed(2)),
	)

	return &PaymentResult{
		Payment: ToPaymentResponse(payment),
		Invoice: ToInvoiceResponse(inv, l.now()),
	}, nil
}

// VoidPayment appends the reversing entry of a payment and takes its amount
// off the invoice. Each payment can be voided once.
func (l *PaymentLedger) VoidPayment(ctx context.Context, cmd VoidPaymentCommand) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_ledger", "void_payment",
		telemetry.AttrTenantID, cmd.TenantID.String(),
		"payment_id", cmd.PaymentID.String(),
	)
	defer span.End()

	original, err := l.paymentRepo.FindByIDForTenant(ctx, cmd.TenantID, cmd.PaymentID)
	if err != nil {
		err = notFoundAs(err, shared.ErrNotFound, "payment %s not found", cmd.PaymentID)
		telemetry.RecordError(span, err)
		return nil, err
	}
	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key == "" {
		key = "void:" + original.ID.String()
	}

	existing, err := l.paymentRepo.FindReversal(ctx, cmd.TenantID, original.ID)
	switch {
	case err == nil && existing.IdempotencyKey == key:
		return l.replayResult(ctx, existing)
	case err == nil:
		err = shared.NewDomainError(invoicing.ErrInvalidTransition.Code, fmt.Sprintf("payment %s was already voided", original.ID))
		telemetry.RecordError(span, err)
		return nil, err
	case !errors.Is(err, shared.ErrNotFound):
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to look up reversal: %w", err)
	}

	var (
		inv      *invoicing.Invoice
		reversal *invoicing.Payment
	)
	err = l.withLockRetry(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForTenant(ctx, cmd.TenantID, original.InvoiceID)
		if err != nil {
			return notFoundAs(err, invoicing.ErrInvoiceNotFound, "invoice %s not found", original.InvoiceID)
		}
		if reversal, err = original.NewVoid(cmd.Reason, key, l.now()); err != nil {
			return err
		}
		reversal.CreatedBy = cmd.CreatedBy
		if err := inv.ReversePayment(original.Money()); err != nil {
			return err
		}
		if err := repos.PaymentRepo().Create(ctx, reversal); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				return shared.NewDomainError(invoicing.ErrInvalidTransition.Code, fmt.Sprintf("payment %s was already voided", original.ID))
			}
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishAfterCommit(ctx, l.publisher, l.logger, nil, inv)
	l.metrics.RecordPayment(ctx, cmd.TenantID, string(original.Method), "voided", original.Amount)
	l.logger.Info("Payment voided",
		zap.String("tenant_id", cmd.TenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("payment_id", original.ID.String()),
		zap.String("reversal_id", reversal.ID.String()),
		zap.String("amount_due", inv.AmountDue().StringFixed(2)),
	)

	return &PaymentResult{
		Payment: ToPaymentResponse(reversal),
		Invoice: ToInvoiceResponse(inv, l.now()),
	}, nil
}

// ListPayments returns an invoice's ledger entries in application order
func (l *PaymentLedger) ListPayments(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_ledger", "list_payments",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrInvoiceID, invoiceID.String(),
	)
	defer span.End()

	if _, err := l.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID); err != nil {
		err = notFoundAs(err, invoicing.ErrInvoiceNotFound, "invoice %s not found", invoiceID)
		telemetry.RecordError(span, err)
		return nil, err
	}
	payments, err := l.paymentRepo.FindByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return lo.Map(payments, func(p invoicing.Payment, _ int) PaymentResponse {
		return ToPaymentResponse(&p)
	}), nil
}

// Reconcile recomputes the invoice's paid amount from its ledger rows and
// repairs the snapshot when it drifted
func (l *PaymentLedger) Reconcile(ctx context.Context, tenantID, invoiceID uuid.UUID) (*ReconcileResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_ledger", "reconcile",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrInvoiceID, invoiceID.String(),
	)
	defer span.End()

	var result *ReconcileResult
	err := l.withLockRetry(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.InvoiceRepo().FindByIDForTenant(ctx, tenantID, invoiceID)
		if err != nil {
			return notFoundAs(err, invoicing.ErrInvoiceNotFound, "invoice %s not found", invoiceID)
		}
		payments, err := repos.PaymentRepo().FindByInvoice(ctx, tenantID, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to load ledger: %w", err)
		}
		sum, err := invoicing.SumPayments(inv.Currency, payments)
		if err != nil {
			return err
		}
		previous := money(inv.PaidAmount, inv.Currency)
		repaired, err := inv.SyncPaidAmount(sum)
		if err != nil {
			return err
		}
		if repaired {
			if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
				return err
			}
		}
		result = &ReconcileResult{
			InvoiceID:    inv.ID,
			LedgerSum:    sum,
			PreviousPaid: previous,
			Repaired:     repaired,
			Entries:      len(payments),
			Status:       inv.Status(l.now()).String(),
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if result.Repaired {
		l.logger.Warn("Invoice paid amount drifted from ledger, repaired",
			zap.String("tenant_id", tenantID.String()),
			zap.String("invoice_id", invoiceID.String()),
			zap.String("previous", result.PreviousPaid.StringFixed()),
			zap.String("ledger_sum", result.LedgerSum.StringFixed()),
		)
	}
	return result, nil
}

// withLockRetry runs fn in a transaction and retries the whole unit when the
// invoice's optimistic lock was lost. Every other error is final.
func (l *PaymentLedger) withLockRetry(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := l.txScope.Execute(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			l.logger.Debug("Invoice lock conflict, retrying", zap.Int("attempt", attempt))
			return err
		}
		return backoff.Permanent(err)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = l.retryInterval
	exp.MaxInterval = 250 * time.Millisecond
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(l.settings.PaymentMaxRetries)), ctx)
	return backoff.Retry(operation, b)
}

func (l *PaymentLedger) idempotencyKey(tenantID uuid.UUID, key string) string {
	return "payment:" + tenantID.String() + ":" + key
}

// claim takes the in-flight claim on key. The returned release drops it when
// the attempt failed so the client can retry at once.
func (l *PaymentLedger) claim(ctx context.Context, tenantID uuid.UUID, key string) (func(error), error) {
	if l.idempotency == nil {
		return func(error) {}, nil
	}
	storeKey := l.idempotencyKey(tenantID, key)
	claimed, err := l.idempotency.Claim(ctx, storeKey, l.settings.IdempotencyTTL)
	if err != nil {
		// the unique index still protects the ledger
		l.logger.Warn("Idempotency store unavailable, relying on ledger index", zap.Error(err))
		return func(error) {}, nil
	}
	if !claimed {
		return nil, shared.NewDomainError(invoicing.ErrIdempotencyInProgress.Code,
			fmt.Sprintf("a payment with idempotency key %q is in progress", key))
	}
	return func(opErr error) {
		if opErr == nil {
			return
		}
		if err := l.idempotency.Release(context.WithoutCancel(ctx), storeKey); err != nil {
			l.logger.Warn("Failed to release idempotency claim", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// replay returns the stored result for key, or nil, nil when the key is unused
func (l *PaymentLedger) replay(ctx context.Context, tenantID uuid.UUID, key string, invoiceID uuid.UUID) (*PaymentResult, error) {
	existing, err := l.paymentRepo.FindByIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if existing.InvoiceID != invoiceID {
		return nil, invalidInput("idempotency key %q was used for another invoice", key)
	}
	return l.replayResult(ctx, existing)
}

func (l *PaymentLedger) replayResult(ctx context.Context, payment *invoicing.Payment) (*PaymentResult, error) {
	inv, err := l.invoiceRepo.FindByIDForTenant(ctx, payment.TenantID, payment.InvoiceID)
	if err != nil {
		return nil, notFoundAs(err, invoicing.ErrInvoiceNotFound, "invoice %s not found", payment.InvoiceID)
	}
	l.metrics.RecordPayment(ctx, payment.TenantID, string(payment.Method), "replayed", payment.Amount)
	l.logger.Info("Payment request replayed",
		zap.String("tenant_id", payment.TenantID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("idempotency_key", payment.IdempotencyKey),
	)
	return &PaymentResult{
		Payment:  ToPaymentResponse(payment),
		Invoice:  ToInvoiceResponse(inv, l.now()),
		Replayed: true,
	}, nil
}
