package httpsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
)

const previousFailureMessage = "previous request with the same idempotency key failed"

type idempotencyErrorPayload struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// withIdempotency выполняет handler не более одного раза на ключ. Повтор с тем
// же телом получает сохранённый ответ, с другим телом отклоняется.
func (a *API) withIdempotency(
	ctx context.Context,
	key, method string,
	body any,
	handler func(context.Context) (AddOrderResult, error),
) (AddOrderResult, error) {
	key = strings.TrimSpace(key)
	if a.idempotency == nil || key == "" {
		return handler(ctx)
	}

	reqHash, err := requestHash(method, body)
	if err != nil {
		a.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency request hash")
		return AddOrderResult{}, huma.Error500InternalServerError("failed to initialize idempotency request")
	}

	record, err := a.idempotency.CreateProcessing(ctx, key, reqHash, a.now().Add(a.idempotencyTTL))
	if err != nil {
		return a.replay(err, record)
	}

	result, runErr := handler(ctx)
	if runErr != nil {
		a.cacheFailure(ctx, key, runErr)
		return AddOrderResult{}, runErr
	}

	if err := a.cacheSuccess(ctx, key, result); err != nil {
		a.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
	}
	return result, nil
}

func (a *API) replay(createErr error, record domain.IdempotencyRecord) (AddOrderResult, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return AddOrderResult{}, huma.Error409Conflict("idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		if !record.Status.Terminal() {
			return AddOrderResult{}, huma.Error409Conflict("request with the same idempotency key is already processing")
		}
		if record.Status == domain.IdempotencyStatusFailed {
			return AddOrderResult{}, decodeFailure(record)
		}
		var result AddOrderResult
		if err := json.Unmarshal(record.ResponseBody, &result); err != nil {
			a.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached idempotency response")
			return AddOrderResult{}, huma.Error500InternalServerError("failed to decode cached idempotency response")
		}
		return result, nil
	default:
		a.logger.WithError(createErr).Warn("failed to create idempotency record")
		return AddOrderResult{}, huma.Error500InternalServerError("failed to initialize idempotency request")
	}
}

func (a *API) cacheSuccess(ctx context.Context, key string, result AddOrderResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return a.idempotency.MarkDone(ctx, key, data, http.StatusOK)
}

func (a *API) cacheFailure(ctx context.Context, key string, runErr error) {
	status, message := statusOf(runErr)
	payload, err := json.Marshal(idempotencyErrorPayload{Status: status, Message: message})
	if err != nil {
		a.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
		payload = nil
	}
	if err := a.idempotency.MarkFailed(ctx, key, payload, status); err != nil {
		a.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

func decodeFailure(record domain.IdempotencyRecord) error {
	if len(record.ResponseBody) > 0 {
		var payload idempotencyErrorPayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil && isErrorStatus(payload.Status) {
			if payload.Message == "" {
				payload.Message = previousFailureMessage
			}
			return huma.NewError(payload.Status, payload.Message)
		}
	}
	if isErrorStatus(record.HTTPStatus) {
		return huma.NewError(record.HTTPStatus, previousFailureMessage)
	}
	return huma.Error500InternalServerError(previousFailureMessage)
}

func isErrorStatus(status int) bool {
	return status >= http.StatusBadRequest && status <= 599
}

// requestHash — SHA-256 от метода и канонического JSON тела запроса.
func requestHash(method string, body any) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte{'\n'})
	sum.Write(data)
	return hex.EncodeToString(sum.Sum(nil)), nil
}
