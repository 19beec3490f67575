package httpsvc

import (
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
)

const internalErrorMessage = "internal server error"

// toHTTPError переводит ошибку репозитория в ответ huma. Детали
// непредвиденных ошибок пишутся в лог и клиенту не отдаются.
func (a *API) toHTTPError(err error, operation string) error {
	var validation *domain.ValidationError
	switch {
	case domain.IsNotFound(err):
		return huma.Error404NotFound(err.Error())
	case errors.As(err, &validation):
		return huma.Error400BadRequest(validation.Reason)
	case domain.IsInvalidArgument(err):
		return huma.Error400BadRequest(strings.TrimPrefix(err.Error(), domain.ErrInvalidArgument.Error()+": "))
	case domain.IsVersionConflict(err):
		return huma.Error409Conflict(err.Error())
	default:
		a.logger.WithError(err).WithField("operation", operation).Error("order request failed")
		return huma.Error500InternalServerError(internalErrorMessage)
	}
}

// statusOf возвращает HTTP-статус ошибки huma; прочие ошибки считаются 500.
func statusOf(err error) (int, string) {
	var se huma.StatusError
	if errors.As(err, &se) {
		return se.GetStatus(), se.Error()
	}
	return http.StatusInternalServerError, internalErrorMessage
}
