package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer идентифицируется строковым кодом.
type Customer struct {
	Code        string
	CompanyName string
}

// Employee описывает сотрудника, оформившего заказ.
type Employee struct {
	ID        int64
	FirstName string
	LastName  string
	Country   string
}

type Shipper struct {
	ID          int64
	CompanyName string
}

// Product описывает товар вместе с денормализованными данными поставщика и категории.
type Product struct {
	ID           int64
	Name         string
	SupplierID   int64
	SupplierName string
	CategoryID   int64
	CategoryName string
}

// ShippingAddress хранится в строке заказа.
type ShippingAddress struct {
	Address    string
	City       string
	Region     *string
	PostalCode string
	Country    string
}

// OrderLine представляет одну позицию заказа. Внутри заказа позиция
// однозначно определяется идентификатором товара.
type OrderLine struct {
	OrderID   int64
	Product   Product
	UnitPrice decimal.Decimal
	// Quantity строго больше нуля.
	Quantity int32
	// Discount задаёт долю скидки в диапазоне [0, 1].
	Discount float64
}

// Order агрегирует заголовок заказа, ссылки на справочники и позиции.
type Order struct {
	ID              int64
	Customer        Customer
	Employee        Employee
	OrderDate       time.Time
	RequiredDate    time.Time
	ShippedDate     *time.Time
	Shipper         Shipper
	Freight         decimal.Decimal
	ShipName        string
	ShippingAddress ShippingAddress
	Lines           []OrderLine
	// Version — штамп строки для optimistic locking. Ноль отключает проверку.
	Version int64
}

// ProductIDs возвращает идентификаторы товаров в порядке следования позиций.
func (o *Order) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.Lines))
	for _, line := range o.Lines {
		ids = append(ids, line.Product.ID)
	}
	return ids
}
