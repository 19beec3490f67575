// Package storage описывает границу между движком агрегата заказа и
// конкретным хранилищем: строки таблиц, жадный граф заказа и сессию,
// которая живёт ровно одну транзакцию.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
)

var (
	// ErrRowNotFound возвращается сессией, если строка по ключу отсутствует.
	ErrRowNotFound = errors.New("row not found")
	// ErrDuplicateKey — нарушение уникальности первичного ключа.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrForeignKey — ссылка на отсутствующую строку.
	ErrForeignKey = errors.New("foreign key violation")
)

// CustomerRow соответствует строке таблицы customers.
type CustomerRow struct {
	Code        string
	CompanyName string
}

// EmployeeRow соответствует строке таблицы employees.
type EmployeeRow struct {
	ID        int64
	FirstName string
	LastName  string
	Country   string
}

// ShipperRow соответствует строке таблицы shippers.
type ShipperRow struct {
	ID          int64
	CompanyName string
}

// CategoryRow соответствует строке таблицы categories.
type CategoryRow struct {
	ID   int64
	Name string
}

// SupplierRow соответствует строке таблицы suppliers.
type SupplierRow struct {
	ID          int64
	CompanyName string
}

// ProductRow соответствует строке таблицы products.
type ProductRow struct {
	ID         int64
	Name       string
	SupplierID int64
	CategoryID int64
}

// OrderRow соответствует строке таблицы orders.
type OrderRow struct {
	ID             int64
	CustomerCode   string
	EmployeeID     int64
	OrderDate      time.Time
	RequiredDate   time.Time
	ShippedDate    *time.Time
	ShipperID      int64
	Freight        decimal.Decimal
	ShipName       string
	ShipAddress    string
	ShipCity       string
	ShipRegion     *string
	ShipPostalCode string
	ShipCountry    string
	Version        int64
}

// OrderLineRow соответствует строке order_details с ключом (OrderID, ProductID).
type OrderLineRow struct {
	OrderID   int64
	ProductID int64
	UnitPrice decimal.Decimal
	Quantity  int32
	Discount  float64
}

// LineGraph содержит позицию заказа вместе с товаром, категорией и поставщиком.
type LineGraph struct {
	Line     OrderLineRow
	Product  ProductRow
	Category CategoryRow
	Supplier SupplierRow
}

// OrderGraph содержит заказ, загруженный жадно со всеми ссылками.
type OrderGraph struct {
	Order    OrderRow
	Customer CustomerRow
	Employee EmployeeRow
	Shipper  ShipperRow
	Lines    []LineGraph
}

// Session — область одной транзакции. Пакетные выборки возвращают только
// найденные ключи; отсутствие ключа в результате не является ошибкой.
type Session interface {
	Customers(ctx context.Context, codes []string) (map[string]CustomerRow, error)
	Employees(ctx context.Context, ids []int64) (map[int64]EmployeeRow, error)
	Shippers(ctx context.Context, ids []int64) (map[int64]ShipperRow, error)
	Products(ctx context.Context, ids []int64) (map[int64]ProductRow, error)
	Categories(ctx context.Context, ids []int64) (map[int64]CategoryRow, error)
	Suppliers(ctx context.Context, ids []int64) (map[int64]SupplierRow, error)

	InsertCustomer(ctx context.Context, row CustomerRow) error
	InsertEmployee(ctx context.Context, row EmployeeRow) error
	InsertShipper(ctx context.Context, row ShipperRow) error
	InsertCategory(ctx context.Context, row CategoryRow) error
	InsertSupplier(ctx context.Context, row SupplierRow) error
	InsertProduct(ctx context.Context, row ProductRow) error

	// LockOrder блокирует строку заказа до конца транзакции; конкурентные
	// изменения одного заказа выполняются по очереди.
	LockOrder(ctx context.Context, id int64) error
	// LoadOrder возвращает ErrRowNotFound, если заказа нет.
	LoadOrder(ctx context.Context, id int64) (OrderGraph, error)
	// ListOrders возвращает страницу по возрастанию идентификатора.
	ListOrders(ctx context.Context, skip, count int) ([]OrderGraph, error)
	// InsertOrder игнорирует row.ID и возвращает ключ, выданный хранилищем.
	InsertOrder(ctx context.Context, row OrderRow) (int64, error)
	// UpdateOrder перезаписывает заголовок, если сохранённая версия равна
	// row.Version-1, и возвращает domain.ErrOrderVersionConflict иначе.
	UpdateOrder(ctx context.Context, row OrderRow) error
	// DeleteOrder удаляет заказ и каскадно его позиции.
	DeleteOrder(ctx context.Context, id int64) error

	InsertLine(ctx context.Context, row OrderLineRow) error
	UpdateLine(ctx context.Context, row OrderLineRow) error
	DeleteLine(ctx context.Context, orderID, productID int64) error

	// EnqueueOutbox пишет событие в outbox в рамках той же транзакции.
	EnqueueOutbox(ctx context.Context, msg domain.OutboxMessage) error
	// AppendTimeline дописывает событие в журнал заказа.
	AppendTimeline(ctx context.Context, event domain.TimelineEvent) error
}

// Store выдаёт транзакционные сессии.
type Store interface {
	// WithinTx фиксирует транзакцию, если fn вернула nil, и откатывает иначе.
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Session) error) error
	Ping(ctx context.Context) error
	Close() error
}
