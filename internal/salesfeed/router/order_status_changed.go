package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/salesfeed/types"
	salesfeedwriter "github.com/angelmondragon/storefront-backend/internal/salesfeed/writer"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	outboxpayloads "github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type orderStatusChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderStatusChangedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderStatusChangedHandler{writer: writer, logg: logg}
}

func (h *orderStatusChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*outboxpayloads.OrderStatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_status_changed")
	}

	fields := map[string]any{
		"event_type":  envelope.EventType,
		"order_id":    event.OrderID,
		"from_status": event.FromStatus,
		"to_status":   event.ToStatus,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	payloadJSON, err := salesfeedwriter.EncodeJSON(envelope.Payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to encode payload json", err)
		return err
	}

	row := types.OrderStatusFactRow{
		EventID:    envelope.EventID,
		OccurredAt: envelope.OccurredAt,
		OrderID:    event.OrderID.String(),
		FromStatus: string(event.FromStatus),
		ToStatus:   string(event.ToStatus),
		Version:    int64(event.Version),
		Payload:    payloadJSON,
	}
	if event.UserID != nil {
		row.UserID = stringPtr(event.UserID.String())
	}

	if err := h.writer.InsertStatusFact(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert status fact row", err)
		return err
	}

	h.logg.Info(logCtx, "order_status_changed handler inserted status fact")
	return nil
}
