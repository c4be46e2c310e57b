package event

import (
	"context"

	"github.com/clinicerp/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes every published event to the audit logger as an envelope
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// EventTypes subscribes to all events
func (h *AuditLogHandler) EventTypes() []string { return nil }

// Handle logs evt
func (h *AuditLogHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	raw, err := Serialize(evt)
	if err != nil {
		return err
	}
	h.logger.Info("Domain event",
		zap.String("event_type", evt.EventType()),
		zap.String("aggregate_id", evt.AggregateID().String()),
		zap.String("tenant_id", evt.TenantID().String()),
		zap.ByteString("event", raw),
	)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
