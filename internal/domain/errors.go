package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order is not found")
	// ErrInvalidArgument — некорректные параметры запроса (например, пагинации).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrValidation — базовая ошибка нарушения бизнес-инвариантов заказа.
	ErrValidation = errors.New("order validation failed")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — тот же ключ пришёл с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — ключ не найден или истёк.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// ValidationError описывает первое нарушенное правило валидации.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is позволяет сравнивать ошибку с ErrValidation через errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsNotFound проверяет, что заказ отсутствует.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

// IsValidation проверяет, что ошибка вызвана нарушением бизнес-правил.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidArgument проверяет, что ошибка вызвана некорректными аргументами.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsIdempotencyConflict проверяет, что ключ уже использован.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
