package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/salesfeed/types"
	salesfeedwriter "github.com/angelmondragon/storefront-backend/internal/salesfeed/writer"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	outboxpayloads "github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type cartCompletedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newCartCompletedHandler(writer Writer, logg *logger.Logger) Handler {
	return &cartCompletedHandler{writer: writer, logg: logg}
}

func (h *cartCompletedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*outboxpayloads.CartCompletedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for cart_completed")
	}

	fields := map[string]any{
		"event_type": envelope.EventType,
		"cart_id":    event.CartID,
		"order_id":   event.OrderID,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	payloadJSON, err := salesfeedwriter.EncodeJSON(envelope.Payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to encode payload json", err)
		return err
	}

	row := types.SalesEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt,
		OrderID:    stringPtr(event.OrderID.String()),
		CartID:     stringPtr(event.CartID.String()),
		Payload:    payloadJSON,
	}

	if err := h.writer.InsertSale(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert sales row", err)
		return err
	}

	h.logg.Info(logCtx, "cart_completed handler inserted sales row")
	return nil
}
