package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/salesfeed/types"
	salesfeedwriter "github.com/angelmondragon/storefront-backend/internal/salesfeed/writer"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	outboxpayloads "github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type orderPlacedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderPlacedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderPlacedHandler{writer: writer, logg: logg}
}

func (h *orderPlacedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*outboxpayloads.OrderPlacedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_placed")
	}

	fields := map[string]any{
		"event_type":  envelope.EventType,
		"order_id":    event.OrderID,
		"total_cents": event.TotalCents,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildOrderPlacedRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build sales row", err)
		return err
	}

	if err := h.writer.InsertSale(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert sales row", err)
		return err
	}

	h.logg.Info(logCtx, "order_placed handler inserted sales row")
	return nil
}

func buildOrderPlacedRow(envelope types.Envelope, event *outboxpayloads.OrderPlacedEvent) (types.SalesEventRow, error) {
	payloadJSON, err := salesfeedwriter.EncodeJSON(envelope.Payload)
	if err != nil {
		return types.SalesEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	row := types.SalesEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    envelope.OccurredAt,
		OrderID:       stringPtr(event.OrderID.String()),
		Currency:      stringPtr(event.Currency),
		SubtotalCents: int64Ptr(int64(event.SubtotalCents)),
		DiscountCents: int64Ptr(int64(event.DiscountCents)),
		TaxCents:      int64Ptr(int64(event.TaxCents)),
		ShippingCents: int64Ptr(int64(event.ShippingCents)),
		TotalCents:    int64Ptr(int64(event.TotalCents)),
		LineItemCount: int64Ptr(int64(event.LineItemCount)),
		Payload:       payloadJSON,
	}
	if event.CartID != nil {
		row.CartID = stringPtr(event.CartID.String())
	}
	if event.UserID != nil {
		row.UserID = stringPtr(event.UserID.String())
	}
	if event.SessionID != nil {
		row.SessionID = stringPtr(*event.SessionID)
	}
	if event.PromoCode != nil {
		row.PromoCode = stringPtr(*event.PromoCode)
	}
	return row, nil
}
