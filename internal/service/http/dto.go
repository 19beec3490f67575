package httpsvc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
)

// BriefOrder — плоское представление заказа: ссылки передаются ключами.
// Необязательные атрибуты справочников используются, только если запись
// справочника создаётся впервые.
type BriefOrder struct {
	ID                  int64              `json:"id,omitempty" doc:"Order identifier, assigned by storage"`
	CustomerID          string             `json:"customerId,omitempty" doc:"Customer code" example:"ALFKI"`
	CustomerCompanyName string             `json:"customerCompanyName,omitempty" doc:"Company name for a new customer"`
	EmployeeID          int64              `json:"employeeId,omitempty" doc:"Employee identifier"`
	EmployeeFirstName   string             `json:"employeeFirstName,omitempty"`
	EmployeeLastName    string             `json:"employeeLastName,omitempty"`
	EmployeeCountry     string             `json:"employeeCountry,omitempty"`
	OrderDate           time.Time          `json:"orderDate,omitzero" required:"false"`
	RequiredDate        time.Time          `json:"requiredDate,omitzero" required:"false"`
	ShippedDate         *time.Time         `json:"shippedDate,omitempty"`
	ShipperID           int64              `json:"shipperId,omitempty" doc:"Shipper identifier"`
	ShipperCompanyName  string             `json:"shipperCompanyName,omitempty"`
	Freight             float64            `json:"freight,omitempty"`
	ShipName            string             `json:"shipName,omitempty"`
	ShipAddress         string             `json:"shipAddress,omitempty"`
	ShipCity            string             `json:"shipCity,omitempty"`
	ShipRegion          *string            `json:"shipRegion,omitempty"`
	ShipPostalCode      string             `json:"shipPostalCode,omitempty"`
	ShipCountry         string             `json:"shipCountry,omitempty"`
	OrderDetails        []BriefOrderDetail `json:"orderDetails,omitempty"`
	Version             int64              `json:"version,omitempty" doc:"Expected version for optimistic locking, 0 skips the check"`
}

// BriefOrderDetail описывает позицию заказа с ключом товара.
type BriefOrderDetail struct {
	ProductID           int64   `json:"productId"`
	ProductName         string  `json:"productName,omitempty"`
	CategoryID          int64   `json:"categoryId,omitempty"`
	CategoryName        string  `json:"categoryName,omitempty"`
	SupplierID          int64   `json:"supplierId,omitempty"`
	SupplierCompanyName string  `json:"supplierCompanyName,omitempty"`
	UnitPrice           float64 `json:"unitPrice"`
	Quantity            int32   `json:"quantity"`
	Discount            float64 `json:"discount,omitempty"`
}

// FullOrder отдаёт агрегат заказа со всеми разрешёнными ссылками.
type FullOrder struct {
	ID              int64             `json:"id"`
	Customer        Customer          `json:"customer"`
	Employee        Employee          `json:"employee"`
	OrderDate       time.Time         `json:"orderDate"`
	RequiredDate    time.Time         `json:"requiredDate"`
	ShippedDate     *time.Time        `json:"shippedDate,omitempty"`
	Shipper         Shipper           `json:"shipper"`
	Freight         float64           `json:"freight"`
	ShipName        string            `json:"shipName"`
	ShippingAddress ShippingAddress   `json:"shippingAddress"`
	OrderDetails    []FullOrderDetail `json:"orderDetails"`
	Version         int64             `json:"version"`
}

type Customer struct {
	Code        string `json:"code"`
	CompanyName string `json:"companyName"`
}

type Employee struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Country   string `json:"country"`
}

type Shipper struct {
	ID          int64  `json:"id"`
	CompanyName string `json:"companyName"`
}

type ShippingAddress struct {
	Address    string  `json:"address"`
	City       string  `json:"city"`
	Region     *string `json:"region,omitempty"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
}

type FullOrderDetail struct {
	ProductID           int64   `json:"productId"`
	ProductName         string  `json:"productName"`
	CategoryID          int64   `json:"categoryId"`
	CategoryName        string  `json:"categoryName"`
	SupplierID          int64   `json:"supplierId"`
	SupplierCompanyName string  `json:"supplierCompanyName"`
	UnitPrice           float64 `json:"unitPrice"`
	Quantity            int32   `json:"quantity"`
	Discount            float64 `json:"discount"`
}

type AddOrderResult struct {
	OrderID int64 `json:"orderId"`
}

func (b *BriefOrder) toDomain(id int64) domain.Order {
	order := domain.Order{
		ID: id,
		Customer: domain.Customer{
			Code:        b.CustomerID,
			CompanyName: b.CustomerCompanyName,
		},
		Employee: domain.Employee{
			ID:        b.EmployeeID,
			FirstName: b.EmployeeFirstName,
			LastName:  b.EmployeeLastName,
			Country:   b.EmployeeCountry,
		},
		OrderDate:    b.OrderDate,
		RequiredDate: b.RequiredDate,
		ShippedDate:  b.ShippedDate,
		Shipper: domain.Shipper{
			ID:          b.ShipperID,
			CompanyName: b.ShipperCompanyName,
		},
		Freight:  decimal.NewFromFloat(b.Freight),
		ShipName: b.ShipName,
		ShippingAddress: domain.ShippingAddress{
			Address:    b.ShipAddress,
			City:       b.ShipCity,
			Region:     b.ShipRegion,
			PostalCode: b.ShipPostalCode,
			Country:    b.ShipCountry,
		},
		Lines:   make([]domain.OrderLine, 0, len(b.OrderDetails)),
		Version: b.Version,
	}

	for _, d := range b.OrderDetails {
		order.Lines = append(order.Lines, domain.OrderLine{
			OrderID: id,
			Product: domain.Product{
				ID:           d.ProductID,
				Name:         d.ProductName,
				CategoryID:   d.CategoryID,
				CategoryName: d.CategoryName,
				SupplierID:   d.SupplierID,
				SupplierName: d.SupplierCompanyName,
			},
			UnitPrice: decimal.NewFromFloat(d.UnitPrice),
			Quantity:  d.Quantity,
			Discount:  d.Discount,
		})
	}
	return order
}

func toBriefOrder(o domain.Order) BriefOrder {
	brief := BriefOrder{
		ID:                  o.ID,
		CustomerID:          o.Customer.Code,
		CustomerCompanyName: o.Customer.CompanyName,
		EmployeeID:          o.Employee.ID,
		EmployeeFirstName:   o.Employee.FirstName,
		EmployeeLastName:    o.Employee.LastName,
		EmployeeCountry:     o.Employee.Country,
		OrderDate:           o.OrderDate,
		RequiredDate:        o.RequiredDate,
		ShippedDate:         o.ShippedDate,
		ShipperID:           o.Shipper.ID,
		ShipperCompanyName:  o.Shipper.CompanyName,
		Freight:             o.Freight.InexactFloat64(),
		ShipName:            o.ShipName,
		ShipAddress:         o.ShippingAddress.Address,
		ShipCity:            o.ShippingAddress.City,
		ShipRegion:          o.ShippingAddress.Region,
		ShipPostalCode:      o.ShippingAddress.PostalCode,
		ShipCountry:         o.ShippingAddress.Country,
		OrderDetails:        make([]BriefOrderDetail, 0, len(o.Lines)),
		Version:             o.Version,
	}
	for _, line := range o.Lines {
		brief.OrderDetails = append(brief.OrderDetails, BriefOrderDetail{
			ProductID:           line.Product.ID,
			ProductName:         line.Product.Name,
			CategoryID:          line.Product.CategoryID,
			CategoryName:        line.Product.CategoryName,
			SupplierID:          line.Product.SupplierID,
			SupplierCompanyName: line.Product.SupplierName,
			UnitPrice:           line.UnitPrice.InexactFloat64(),
			Quantity:            line.Quantity,
			Discount:            line.Discount,
		})
	}
	return brief
}

func toFullOrder(o domain.Order) FullOrder {
	full := FullOrder{
		ID: o.ID,
		Customer: Customer{
			Code:        o.Customer.Code,
			CompanyName: o.Customer.CompanyName,
		},
		Employee: Employee{
			ID:        o.Employee.ID,
			FirstName: o.Employee.FirstName,
			LastName:  o.Employee.LastName,
			Country:   o.Employee.Country,
		},
		OrderDate:    o.OrderDate,
		RequiredDate: o.RequiredDate,
		ShippedDate:  o.ShippedDate,
		Shipper: Shipper{
			ID:          o.Shipper.ID,
			CompanyName: o.Shipper.CompanyName,
		},
		Freight:  o.Freight.InexactFloat64(),
		ShipName: o.ShipName,
		ShippingAddress: ShippingAddress{
			Address:    o.ShippingAddress.Address,
			City:       o.ShippingAddress.City,
			Region:     o.ShippingAddress.Region,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		OrderDetails: make([]FullOrderDetail, 0, len(o.Lines)),
		Version:      o.Version,
	}
	for _, line := range o.Lines {
		full.OrderDetails = append(full.OrderDetails, FullOrderDetail{
			ProductID:           line.Product.ID,
			ProductName:         line.Product.Name,
			CategoryID:          line.Product.CategoryID,
			CategoryName:        line.Product.CategoryName,
			SupplierID:          line.Product.SupplierID,
			SupplierCompanyName: line.Product.SupplierName,
			UnitPrice:           line.UnitPrice.InexactFloat64(),
			Quantity:            line.Quantity,
			Discount:            line.Discount,
		})
	}
	return full
}

// TimelineEntry — запись журнала жизненного цикла заказа.
type TimelineEntry struct {
	Type     string    `json:"type" enum:"created,updated,removed"`
	Version  int64     `json:"version"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func toTimeline(events []domain.TimelineEvent) []TimelineEntry {
	out := make([]TimelineEntry, 0, len(events))
	for _, e := range events {
		out = append(out, TimelineEntry{
			Type:     e.Type,
			Version:  e.Version,
			Reason:   e.Reason,
			Occurred: e.Occurred,
		})
	}
	return out
}
