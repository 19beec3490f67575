package metrics

import "github.com/vladislavdragonenkov/northwind/internal/domain"

// Result переводит ошибку операции в значение label `result`.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsValidation(err), domain.IsInvalidArgument(err):
		return "invalid"
	case domain.IsVersionConflict(err):
		return "conflict"
	default:
		return "error"
	}
}
