package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "storefront-domain-events"})
	if err != nil {
		t.Fatalf("NewEventRegistry: %v", err)
	}
	return reg
}

func envelopeRow(t *testing.T, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestNewEventRegistry_RequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	if err == nil {
		t.Fatal("expected error for missing topic")
	}
}

func TestResolve_OrderPlaced(t *testing.T) {
	reg := testRegistry(t)
	orderID := uuid.New()
	row := envelopeRow(t, enums.EventOrderPlaced, enums.AggregateOrder, payloads.OrderPlacedEvent{
		OrderID:    orderID,
		Currency:   "USD",
		TotalCents: 3300,
	})

	resolved, err := reg.Resolve(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "storefront-domain-events" {
		t.Errorf("expected the domain topic, got %s", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderPlacedEvent)
	if !ok {
		t.Fatalf("expected *OrderPlacedEvent, got %T", resolved.Payload)
	}
	if payload.OrderID != orderID || payload.TotalCents != 3300 {
		t.Errorf("payload fields lost in decode: %+v", payload)
	}
}

func TestResolve_UnsupportedEventType(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, "order_deleted", enums.AggregateOrder, map[string]any{})

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Errorf("unknown event types must not be retried, got %v", err)
	}
}

func TestResolve_AggregateMismatch(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, enums.EventOrderPlaced, enums.AggregateCart, payloads.OrderPlacedEvent{})

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Errorf("aggregate mismatch must not be retried, got %v", err)
	}
}

func TestResolve_MissingPayloadData(t *testing.T) {
	reg := testRegistry(t)
	envelope := outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now()}
	payload, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventCartCompleted,
		AggregateType: enums.AggregateCart,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}

	_, err = reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Errorf("empty payloads must not be retried, got %v", err)
	}
}
