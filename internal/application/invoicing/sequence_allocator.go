package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errLostRace marks a compare-and-swap round that another writer won
var errLostRace = errors.New("fiscal sequence advanced concurrently")

// Allocation is one issued fiscal number
type Allocation struct {
	invoicing.FiscalNumberAssignment
	DocumentType invoicing.DocumentType
	Remaining    int64
	// Events are published by the caller once its transaction commits
	Events []shared.DomainEvent
}

// SequenceAllocator hands out fiscal numbers. Every number is consumed by a
// single conditional update on the sequence row, so concurrent finalizers in
// any process receive distinct, dense numbers.
type SequenceAllocator struct {
	txScope    TransactionScope
	maxRetries int
	metrics    *telemetry.InvoicingMetrics
	logger     *zap.Logger
	now        Clock

	// initialInterval is the first backoff wait; kept small because the
	// conflicting transaction is usually a single row update
	initialInterval time.Duration
}

// NewSequenceAllocator creates a SequenceAllocator
func NewSequenceAllocator(txScope TransactionScope, settings Settings, metrics *telemetry.InvoicingMetrics, logger *zap.Logger) *SequenceAllocator {
	settings = settings.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SequenceAllocator{
		txScope:         txScope,
		maxRetries:      settings.AllocationMaxRetries,
		metrics:         metrics,
		logger:          logger.Named("sequence_allocator"),
		now:             time.Now,
		initialInterval: 5 * time.Millisecond,
	}
}

// WithClock replaces the time source
func (a *SequenceAllocator) WithClock(clock Clock) *SequenceAllocator {
	a.now = clock
	return a
}

// Allocate issues the next number in its own transaction
func (a *SequenceAllocator) Allocate(ctx context.Context, tenantID uuid.UUID, documentType invoicing.DocumentType) (*Allocation, error) {
	var alloc *Allocation
	err := a.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		alloc, err = a.AllocateWith(ctx, repos.SequenceRepo(), tenantID, documentType)
		return err
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

// AllocateWith issues the next number through repo, which is expected to be
// bound to the caller's transaction so the number is only consumed on commit.
func (a *SequenceAllocator) AllocateWith(ctx context.Context, repo invoicing.FiscalSequenceRepository, tenantID uuid.UUID, documentType invoicing.DocumentType) (*Allocation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sequence_allocator", "allocate",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrDocumentType, string(documentType),
	)
	defer span.End()

	if !documentType.IsValid() {
		err := shared.NewDomainError(shared.ErrInvalidInput.Code, fmt.Sprintf("unknown fiscal document type %q", documentType))
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		alloc   *Allocation
		attempt int
	)
	operation := func() error {
		attempt++
		seq, err := repo.FindActive(ctx, tenantID, documentType)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return backoff.Permanent(shared.NewDomainError(invoicing.ErrNoSequenceConfigured.Code,
					fmt.Sprintf("no active fiscal sequence for %s", documentType)))
			}
			return backoff.Permanent(fmt.Errorf("failed to load fiscal sequence: %w", err))
		}

		next, err := seq.NextNumber(a.now())
		if err != nil {
			return backoff.Permanent(err)
		}

		swapped, err := repo.CompareAndAdvance(ctx, seq.ID, seq.CurrentNumber, next)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to advance fiscal sequence: %w", err))
		}
		if !swapped {
			a.metrics.RecordAllocationRetry(ctx, tenantID, string(documentType))
			a.logger.Debug("Lost fiscal sequence race, retrying",
				zap.String("sequence_id", seq.ID.String()),
				zap.Int64("expected", seq.CurrentNumber),
				zap.Int("attempt", attempt),
			)
			return errLostRace
		}

		seq.Advance(next)
		alloc = &Allocation{
			FiscalNumberAssignment: invoicing.FiscalNumberAssignment{
				SequenceID:   seq.ID,
				Number:       next,
				FiscalNumber: seq.Format(next),
			},
			DocumentType: documentType,
			Remaining:    seq.Remaining(),
		}
		if seq.IsRunningLow() {
			a.logger.Warn("Fiscal sequence running low",
				zap.String("tenant_id", tenantID.String()),
				zap.String("sequence_id", seq.ID.String()),
				zap.String("document_type", string(documentType)),
				zap.Int64("remaining", alloc.Remaining),
			)
			alloc.Events = append(alloc.Events, invoicing.NewFiscalSequenceRunningLowEvent(seq))
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(a.newBackOff(), ctx))
	telemetry.SetAttributes(span, telemetry.AttrAttempt, attempt)
	if err != nil {
		if errors.Is(err, errLostRace) {
			err = shared.NewDomainError(invoicing.ErrSequenceContention.Code,
				fmt.Sprintf("fiscal sequence for %s still contended after %d attempts", documentType, attempt))
		}
		a.metrics.RecordAllocationFailure(ctx, tenantID, string(documentType), shared.CodeOf(err))
		telemetry.RecordError(span, err)
		return nil, err
	}

	a.metrics.RecordSequenceRemaining(ctx, tenantID, string(documentType), alloc.Remaining)
	telemetry.SetAttributes(span,
		telemetry.AttrSequenceID, alloc.SequenceID.String(),
		telemetry.AttrFiscalNumber, alloc.FiscalNumber,
	)
	return alloc, nil
}

func (a *SequenceAllocator) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = a.initialInterval
	exp.MaxInterval = 200 * time.Millisecond
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, uint64(a.maxRetries))
}
