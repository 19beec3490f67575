package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// OrderEvent — полезная нагрузка событий заказа в outbox.
type OrderEvent struct {
	OrderID      int64     `json:"order_id"`
	CustomerCode string    `json:"customer_code,omitempty"`
	LineCount    int       `json:"line_count"`
	Version      int64     `json:"version"`
	Inserted     int       `json:"lines_inserted,omitempty"`
	Updated      int       `json:"lines_updated,omitempty"`
	Deleted      int       `json:"lines_deleted,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewOrderOutboxMessage упаковывает событие заказа в сообщение outbox.
func NewOrderOutboxMessage(eventType string, event OrderEvent) (OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: AggregateTypeOrder,
		AggregateID:   strconv.FormatInt(event.OrderID, 10),
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     event.OccurredAt,
	}, nil
}
