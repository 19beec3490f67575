package domain

import "time"

// Типы записей журнала заказа.
const (
	TimelineCreated = "created"
	TimelineUpdated = "updated"
	TimelineRemoved = "removed"
)

// TimelineEvent описывает событие в жизненном цикле заказа. Журнал
// переживает удаление заказа.
type TimelineEvent struct {
	OrderID  int64
	Version  int64
	Type     string
	Reason   string
	Occurred time.Time
}
