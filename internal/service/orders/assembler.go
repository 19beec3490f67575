package orders

import (
	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/storage"
)

// toDomain собирает агрегат из жадно загруженного графа строк.
func toDomain(g storage.OrderGraph) domain.Order {
	o := g.Order
	order := domain.Order{
		ID: o.ID,
		Customer: domain.Customer{
			Code:        g.Customer.Code,
			CompanyName: g.Customer.CompanyName,
		},
		Employee: domain.Employee{
			ID:        g.Employee.ID,
			FirstName: g.Employee.FirstName,
			LastName:  g.Employee.LastName,
			Country:   g.Employee.Country,
		},
		OrderDate:    o.OrderDate,
		RequiredDate: o.RequiredDate,
		ShippedDate:  o.ShippedDate,
		Shipper: domain.Shipper{
			ID:          g.Shipper.ID,
			CompanyName: g.Shipper.CompanyName,
		},
		Freight:  o.Freight,
		ShipName: o.ShipName,
		ShippingAddress: domain.ShippingAddress{
			Address:    o.ShipAddress,
			City:       o.ShipCity,
			Region:     o.ShipRegion,
			PostalCode: o.ShipPostalCode,
			Country:    o.ShipCountry,
		},
		Lines:   make([]domain.OrderLine, 0, len(g.Lines)),
		Version: o.Version,
	}

	for _, lg := range g.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			OrderID: lg.Line.OrderID,
			Product: domain.Product{
				ID:           lg.Product.ID,
				Name:         lg.Product.Name,
				SupplierID:   lg.Supplier.ID,
				SupplierName: lg.Supplier.CompanyName,
				CategoryID:   lg.Category.ID,
				CategoryName: lg.Category.Name,
			},
			UnitPrice: lg.Line.UnitPrice,
			Quantity:  lg.Line.Quantity,
			Discount:  lg.Line.Discount,
		})
	}
	return order
}

// toOrderRow переносит заголовок агрегата в строку orders, используя
// ключи разрешённых ссылок.
func toOrderRow(id int64, order *domain.Order, refs headerRefs, version int64) storage.OrderRow {
	return storage.OrderRow{
		ID:             id,
		CustomerCode:   refs.customer.Code,
		EmployeeID:     refs.employee.ID,
		OrderDate:      order.OrderDate,
		RequiredDate:   order.RequiredDate,
		ShippedDate:    order.ShippedDate,
		ShipperID:      refs.shipper.ID,
		Freight:        order.Freight,
		ShipName:       order.ShipName,
		ShipAddress:    order.ShippingAddress.Address,
		ShipCity:       order.ShippingAddress.City,
		ShipRegion:     order.ShippingAddress.Region,
		ShipPostalCode: order.ShippingAddress.PostalCode,
		ShipCountry:    order.ShippingAddress.Country,
		Version:        version,
	}
}

func toLineRow(orderID int64, line domain.OrderLine, product storage.ProductRow) storage.OrderLineRow {
	return storage.OrderLineRow{
		OrderID:   orderID,
		ProductID: product.ID,
		UnitPrice: line.UnitPrice,
		Quantity:  line.Quantity,
		Discount:  line.Discount,
	}
}

func lineRows(g storage.OrderGraph) []storage.OrderLineRow {
	rows := make([]storage.OrderLineRow, 0, len(g.Lines))
	for _, lg := range g.Lines {
		rows = append(rows, lg.Line)
	}
	return rows
}
