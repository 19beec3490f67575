package httpsvc

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vladislavdragonenkov/northwind/internal/version"
)

const apiTitle = "Northwind Order API"

// NewRouter собирает chi-роутер с операциями заказов и документацией OpenAPI на /docs.
func NewRouter(a *API) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	api := humachi.New(router, huma.DefaultConfig(apiTitle, version.GetVersion()))
	a.Register(api)

	return router
}
