package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func invalidInput(format string, args ...any) error {
	return shared.NewDomainError(shared.ErrInvalidInput.Code, fmt.Sprintf(format, args...))
}

func (s Settings) currencyOrDefault(code string) (valueobject.Currency, error) {
	if strings.TrimSpace(code) == "" {
		return s.DefaultCurrency, nil
	}
	c, err := valueobject.ParseCurrency(code)
	if err != nil {
		return "", shared.NewDomainError(invoicing.ErrCurrencyMismatch.Code, err.Error())
	}
	return c, nil
}

func (s Settings) taxRateOrDefault(rate *decimal.Decimal) decimal.Decimal {
	if rate == nil {
		return s.DefaultTaxRate
	}
	return *rate
}

func parseDocumentType(s string) (invoicing.DocumentType, error) {
	if strings.TrimSpace(s) == "" {
		return invoicing.DocumentTypeFinalConsumer, nil
	}
	return invoicing.ParseDocumentType(s)
}

// notFoundAs swaps a repository miss for the context-specific code
func notFoundAs(err error, code *shared.DomainError, format string, args ...any) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewDomainError(code.Code, fmt.Sprintf(format, args...))
	}
	return err
}

// eventSource is any aggregate that buffers domain events
type eventSource interface {
	PullDomainEvents() []shared.DomainEvent
}

// publishAfterCommit flushes buffered events. Publish failures are logged and
// never undo the committed change.
func publishAfterCommit(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, extra []shared.DomainEvent, sources ...eventSource) {
	events := append([]shared.DomainEvent{}, extra...)
	for _, src := range sources {
		if src == nil {
			continue
		}
		events = append(events, src.PullDomainEvents()...)
	}
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Error("Failed to publish domain events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}
