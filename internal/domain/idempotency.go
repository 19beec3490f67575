package domain

import (
	"fmt"
	"time"
)

// IdempotencyStatus — стадия обработки запроса на создание заказа с
// заголовком Idempotency-Key.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	IdempotencyStatusDone       IdempotencyStatus = "done"
	IdempotencyStatusFailed     IdempotencyStatus = "failed"
)

// ParseIdempotencyStatus разбирает статус, прочитанный из хранилища.
func ParseIdempotencyStatus(raw string) (IdempotencyStatus, error) {
	switch s := IdempotencyStatus(raw); s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown idempotency status %q", raw)
	}
}

// Terminal сообщает, что ответ сохранён и повтор запроса его воспроизводит.
func (s IdempotencyStatus) Terminal() bool {
	return s == IdempotencyStatusDone || s == IdempotencyStatusFailed
}

// IdempotencyRecord — состояние ключа. ResponseBody хранит JSON ответа:
// идентификатор созданного заказа при успехе или статус с сообщением
// при ошибке. HTTPStatus равен 0, пока запрос обрабатывается.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired сообщает, что ключ можно занять заново.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.After(now)
}

// SameRequest сравнивает отпечаток повторного запроса с сохранённым.
func (r IdempotencyRecord) SameRequest(requestHash string) bool {
	return r.RequestHash == requestHash
}
