// Package httpsvc публикует репозиторий заказов как REST API поверх huma и chi.
package httpsvc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	ordersTag             = "Orders"
)

// API связывает HTTP-операции с domain.OrderRepository.
type API struct {
	orders         domain.OrderRepository
	idempotency    domain.IdempotencyRepository
	timeline       domain.TimelineRepository
	logger         *log.Entry
	idempotencyTTL time.Duration
	now            func() time.Time
}

// Option настраивает API.
type Option func(*API)

// WithLogger задаёт logger обработчиков.
func WithLogger(logger *log.Entry) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithIdempotency включает обработку заголовка Idempotency-Key для создания заказа.
func WithIdempotency(repo domain.IdempotencyRepository, ttl time.Duration) Option {
	return func(a *API) {
		a.idempotency = repo
		if ttl > 0 {
			a.idempotencyTTL = ttl
		}
	}
}

// WithTimeline публикует журнал жизненного цикла заказов.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(a *API) {
		a.timeline = repo
	}
}

// WithClock подменяет источник времени для TTL ключей идемпотентности.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		a.now = now
	}
}

// NewAPI создаёт набор обработчиков заказов.
func NewAPI(orders domain.OrderRepository, opts ...Option) *API {
	a := &API{
		orders:         orders,
		idempotencyTTL: defaultIdempotencyTTL,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = log.WithField("component", "http-api")
	}
	return a
}

type getOrderInput struct {
	OrderID int64 `path:"orderId" doc:"Order identifier"`
}

type getOrderOutput struct {
	Body FullOrder
}

type listOrdersInput struct {
	Skip  int `query:"skip" default:"0" doc:"Number of orders to skip"`
	Count int `query:"count" default:"10" doc:"Page size"`
}

type listOrdersOutput struct {
	Body []BriefOrder
}

type addOrderInput struct {
	IdempotencyKey string `header:"Idempotency-Key" required:"false" doc:"Replays the stored response for a repeated request"`
	Body           BriefOrder
}

type addOrderOutput struct {
	Body AddOrderResult
}

type updateOrderInput struct {
	OrderID int64 `path:"orderId" doc:"Order identifier"`
	Body    BriefOrder
}

type deleteOrderInput struct {
	OrderID int64 `path:"orderId" doc:"Order identifier"`
}

type timelineInput struct {
	OrderID int64 `path:"orderId" doc:"Order identifier"`
}

type timelineOutput struct {
	Body []TimelineEntry
}

// Register добавляет операции заказов в huma API.
func (a *API) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Summary:     "Get order with resolved references",
		Method:      http.MethodGet,
		Path:        "/api/orders/{orderId}",
		Tags:        []string{ordersTag},
	}, a.getOrder)

	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Summary:     "List orders ordered by id",
		Method:      http.MethodGet,
		Path:        "/api/orders",
		Tags:        []string{ordersTag},
	}, a.listOrders)

	huma.Register(api, huma.Operation{
		OperationID: "add-order",
		Summary:     "Create order",
		Method:      http.MethodPost,
		Path:        "/api/orders",
		Tags:        []string{ordersTag},
	}, a.addOrder)

	huma.Register(api, huma.Operation{
		OperationID:   "update-order",
		Summary:       "Replace order header and reconcile lines",
		Method:        http.MethodPut,
		Path:          "/api/orders/{orderId}",
		Tags:          []string{ordersTag},
		DefaultStatus: http.StatusNoContent,
	}, a.updateOrder)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-order",
		Summary:       "Delete order with its lines",
		Method:        http.MethodDelete,
		Path:          "/api/orders/{orderId}",
		Tags:          []string{ordersTag},
		DefaultStatus: http.StatusNoContent,
	}, a.deleteOrder)

	if a.timeline == nil {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-order-timeline",
		Summary:     "List order lifecycle events, including removal",
		Method:      http.MethodGet,
		Path:        "/api/orders/{orderId}/timeline",
		Tags:        []string{ordersTag},
	}, a.getTimeline)
}

func (a *API) getOrder(ctx context.Context, input *getOrderInput) (*getOrderOutput, error) {
	order, err := a.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, a.toHTTPError(err, "get-order")
	}
	return &getOrderOutput{Body: toFullOrder(order)}, nil
}

func (a *API) listOrders(ctx context.Context, input *listOrdersInput) (*listOrdersOutput, error) {
	orders, err := a.orders.List(ctx, input.Skip, input.Count)
	if err != nil {
		return nil, a.toHTTPError(err, "list-orders")
	}
	out := &listOrdersOutput{Body: make([]BriefOrder, 0, len(orders))}
	for _, order := range orders {
		out.Body = append(out.Body, toBriefOrder(order))
	}
	return out, nil
}

func (a *API) addOrder(ctx context.Context, input *addOrderInput) (*addOrderOutput, error) {
	create := func(ctx context.Context) (AddOrderResult, error) {
		id, err := a.orders.Add(ctx, input.Body.toDomain(0))
		if err != nil {
			return AddOrderResult{}, a.toHTTPError(err, "add-order")
		}
		return AddOrderResult{OrderID: id}, nil
	}

	result, err := a.withIdempotency(ctx, input.IdempotencyKey, http.MethodPost, input.Body, create)
	if err != nil {
		return nil, err
	}
	return &addOrderOutput{Body: result}, nil
}

func (a *API) updateOrder(ctx context.Context, input *updateOrderInput) (*struct{}, error) {
	if err := a.orders.Update(ctx, input.OrderID, input.Body.toDomain(input.OrderID)); err != nil {
		return nil, a.toHTTPError(err, "update-order")
	}
	return &struct{}{}, nil
}

func (a *API) deleteOrder(ctx context.Context, input *deleteOrderInput) (*struct{}, error) {
	if err := a.orders.Remove(ctx, input.OrderID); err != nil {
		return nil, a.toHTTPError(err, "delete-order")
	}
	return &struct{}{}, nil
}

func (a *API) getTimeline(ctx context.Context, input *timelineInput) (*timelineOutput, error) {
	events, err := a.timeline.List(ctx, input.OrderID)
	if err != nil {
		return nil, a.toHTTPError(err, "get-order-timeline")
	}
	if len(events) == 0 {
		return nil, a.toHTTPError(fmt.Errorf("order %d: %w", input.OrderID, domain.ErrOrderNotFound), "get-order-timeline")
	}
	return &timelineOutput{Body: toTimeline(events)}, nil
}
