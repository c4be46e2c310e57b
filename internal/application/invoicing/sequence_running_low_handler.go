package invoicing

import (
	"context"
	"fmt"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SequenceAlert tells an operator to request a new authorized range
type SequenceAlert struct {
	TenantID     string `json:"tenant_id"`
	SequenceID   string `json:"sequence_id"`
	DocumentType string `json:"document_type"`
	DocumentCode string `json:"document_code"`
	Prefix       string `json:"prefix"`
	Remaining    int64  `json:"remaining"`
}

// SequenceAlertNotifier delivers sequence alerts (in-app, email)
type SequenceAlertNotifier interface {
	SendSequenceAlert(ctx context.Context, alert SequenceAlert) error
}

// SequenceRunningLowHandler reacts to FiscalSequenceRunningLow events
type SequenceRunningLowHandler struct {
	logger   *zap.Logger
	notifier SequenceAlertNotifier
}

// NewSequenceRunningLowHandler creates a new SequenceRunningLowHandler
func NewSequenceRunningLowHandler(logger *zap.Logger) *SequenceRunningLowHandler {
	return &SequenceRunningLowHandler{logger: logger}
}

// WithNotifier sets the alert notifier
func (h *SequenceRunningLowHandler) WithNotifier(notifier SequenceAlertNotifier) *SequenceRunningLowHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *SequenceRunningLowHandler) EventTypes() []string {
	return []string{invoicing.EventTypeFiscalSequenceRunningLow}
}

// Handle processes the event
func (h *SequenceRunningLowHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*invoicing.FiscalSequenceRunningLowEvent)
	if !ok {
		h.logger.Warn("Unexpected event type received",
			zap.String("expected", invoicing.EventTypeFiscalSequenceRunningLow),
			zap.String("received", event.EventType()),
		)
		return nil
	}

	alert := SequenceAlert{
		TenantID:     e.TenantID().String(),
		SequenceID:   e.AggregateID().String(),
		DocumentType: string(e.DocumentType),
		DocumentCode: e.DocumentType.Code(),
		Prefix:       e.Prefix,
		Remaining:    e.Remaining,
	}
	h.logger.Warn("Fiscal sequence needs a new authorized range",
		zap.String("tenant_id", alert.TenantID),
		zap.String("sequence_id", alert.SequenceID),
		zap.String("document_code", alert.DocumentCode),
		zap.Int64("remaining", alert.Remaining),
	)

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.SendSequenceAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to send sequence alert: %w", err)
	}
	return nil
}

var _ shared.EventHandler = (*SequenceRunningLowHandler)(nil)
