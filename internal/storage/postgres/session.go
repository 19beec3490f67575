package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/storage"
)

// listPreallocLimit ограничивает заранее резервируемую ёмкость страницы:
// count приходит от клиента и не ограничен сверху.
const listPreallocLimit = 100

const orderHeaderSelect = `
	SELECT
		o.order_id, o.customer_id, c.company_name,
		o.employee_id, e.first_name, e.last_name, e.country,
		o.order_date, o.required_date, o.shipped_date,
		o.ship_via, s.company_name,
		o.freight, o.ship_name, o.ship_address, o.ship_city, o.ship_region,
		o.ship_postal_code, o.ship_country, o.version
	FROM orders o
	JOIN customers c ON c.customer_id = o.customer_id
	JOIN employees e ON e.employee_id = o.employee_id
	JOIN shippers s ON s.shipper_id = o.ship_via
`

// session реализует storage.Session поверх одной SQL-транзакции.
type session struct {
	tx *sql.Tx
}

type rowScanner interface {
	Scan(dest ...any) error
}

// classify переводит ошибки ограничений PostgreSQL в ошибки storage.
func classify(err error, format string, args ...any) error {
	switch {
	case isUniqueViolation(err):
		err = fmt.Errorf("%w: %v", storage.ErrDuplicateKey, err)
	case isForeignKeyViolation(err):
		err = fmt.Errorf("%w: %v", storage.ErrForeignKey, err)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func (s *session) Customers(ctx context.Context, codes []string) (map[string]storage.CustomerRow, error) {
	result := make(map[string]storage.CustomerRow, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	rows, err := s.tx.QueryContext(ctx, `
		SELECT customer_id, company_name FROM customers WHERE customer_id = ANY($1)
	`, codes)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row storage.CustomerRow
		if err := rows.Scan(&row.Code, &row.CompanyName); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		result[row.Code] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return result, nil
}

func (s *session) Employees(ctx context.Context, ids []int64) (map[int64]storage.EmployeeRow, error) {
	result := make(map[int64]storage.EmployeeRow, len(ids))
	err := s.queryByIDs(ctx, "employees", `
		SELECT employee_id, first_name, last_name, country FROM employees WHERE employee_id = ANY($1)
	`, ids, func(rs rowScanner) error {
		var row storage.EmployeeRow
		if err := rs.Scan(&row.ID, &row.FirstName, &row.LastName, &row.Country); err != nil {
			return err
		}
		result[row.ID] = row
		return nil
	})
	return result, err
}

func (s *session) Shippers(ctx context.Context, ids []int64) (map[int64]storage.ShipperRow, error) {
	result := make(map[int64]storage.ShipperRow, len(ids))
	err := s.queryByIDs(ctx, "shippers", `
		SELECT shipper_id, company_name FROM shippers WHERE shipper_id = ANY($1)
	`, ids, func(rs rowScanner) error {
		var row storage.ShipperRow
		if err := rs.Scan(&row.ID, &row.CompanyName); err != nil {
			return err
		}
		result[row.ID] = row
		return nil
	})
	return result, err
}

func (s *session) Products(ctx context.Context, ids []int64) (map[int64]storage.ProductRow, error) {
	result := make(map[int64]storage.ProductRow, len(ids))
	err := s.queryByIDs(ctx, "products", `
		SELECT product_id, product_name, supplier_id, category_id FROM products WHERE product_id = ANY($1)
	`, ids, func(rs rowScanner) error {
		var row storage.ProductRow
		if err := rs.Scan(&row.ID, &row.Name, &row.SupplierID, &row.CategoryID); err != nil {
			return err
		}
		result[row.ID] = row
		return nil
	})
	return result, err
}

func (s *session) Categories(ctx context.Context, ids []int64) (map[int64]storage.CategoryRow, error) {
	result := make(map[int64]storage.CategoryRow, len(ids))
	err := s.queryByIDs(ctx, "categories", `
		SELECT category_id, category_name FROM categories WHERE category_id = ANY($1)
	`, ids, func(rs rowScanner) error {
		var row storage.CategoryRow
		if err := rs.Scan(&row.ID, &row.Name); err != nil {
			return err
		}
		result[row.ID] = row
		return nil
	})
	return result, err
}

func (s *session) Suppliers(ctx context.Context, ids []int64) (map[int64]storage.SupplierRow, error) {
	result := make(map[int64]storage.SupplierRow, len(ids))
	err := s.queryByIDs(ctx, "suppliers", `
		SELECT supplier_id, company_name FROM suppliers WHERE supplier_id = ANY($1)
	`, ids, func(rs rowScanner) error {
		var row storage.SupplierRow
		if err := rs.Scan(&row.ID, &row.CompanyName); err != nil {
			return err
		}
		result[row.ID] = row
		return nil
	})
	return result, err
}

func (s *session) queryByIDs(ctx context.Context, table, query string, ids []int64, scan func(rowScanner) error) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := s.tx.QueryContext(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}
	return nil
}

func (s *session) InsertCustomer(ctx context.Context, row storage.CustomerRow) error {
	if _, err := s.tx.ExecContext(ctx, `
		INSERT INTO customers (customer_id, company_name) VALUES ($1, $2)
	`, row.Code, row.CompanyName); err != nil {
		return classify(err, "insert customer %q", row.Code)
	}
	return nil
}

func (s *session) InsertEmployee(ctx context.Context, row storage.EmployeeRow) error {
	if _, err := s.tx.ExecContext(ctx, `
		INSERT INTO employees (employee_id, first_name, last_name, country) VALUES ($1, $2, $3, $4)
	`, row.ID, row.FirstName, row.LastName, row.Country); err != nil {
		return classify(err, "insert employee %d", row.ID)
	}
	return nil
}

func (s *session) InsertShipper(ctx context.Context, row storage.ShipperRow) error {
	if _, err := s.tx.ExecContext(ctx, `
		INSERT INTO shippers (shipper_id, company_name) VALUES ($1, $2)
	`, row.ID, row.CompanyName); err != nil {
		return classify(err, "insert shipper %d", row.ID)
	}
	return nil
}

func (s *session) InsertCategory(ctx context.Context, row storage.CategoryRow) error {
	if _, err := s.tx.ExecContext(ctx, `
		INSERT INTO categories (category_id, category_name) VALUES ($1, $2)
	`, row.ID, row.Name); err != nil {
		return classify(err, "insert category %d", row.ID)
	}
	return nil
}

func (s *session) InsertSupplier(ctx context.Context, row storage.SupplierRow) error {
	if _, err := s.tx.ExecContext(ctx, `
		INSERT INTO suppliers (supplier_id, company_name) VALUES ($1, $2)
	`, row.ID, row.CompanyName); err != nil {
		return classify(err, "insert supplier %d", row.ID)
	}
	return nil
}

func (s *session) InsertProduct(ctx context.Context, row storage.ProductRow) error {
	if _, err := s.tx.ExecContext(ctx, `
		INSERT INTO products (product_id, product_name, supplier_id, category_id) VALUES ($1, $2, $3, $4)
	`, row.ID, row.Name, row.SupplierID, row.CategoryID); err != nil {
		return classify(err, "insert product %d", row.ID)
	}
	return nil
}

func scanOrderHeader(rs rowScanner) (storage.OrderGraph, error) {
	var (
		g       storage.OrderGraph
		shipped sql.NullTime
		region  sql.NullString
	)
	err := rs.Scan(
		&g.Order.ID, &g.Order.CustomerCode, &g.Customer.CompanyName,
		&g.Order.EmployeeID, &g.Employee.FirstName, &g.Employee.LastName, &g.Employee.Country,
		&g.Order.OrderDate, &g.Order.RequiredDate, &shipped,
		&g.Order.ShipperID, &g.Shipper.CompanyName,
		&g.Order.Freight, &g.Order.ShipName, &g.Order.ShipAddress, &g.Order.ShipCity, &region,
		&g.Order.ShipPostalCode, &g.Order.ShipCountry, &g.Order.Version,
	)
	if err != nil {
		return storage.OrderGraph{}, err
	}

	g.Customer.Code = g.Order.CustomerCode
	g.Employee.ID = g.Order.EmployeeID
	g.Shipper.ID = g.Order.ShipperID
	g.Order.OrderDate = g.Order.OrderDate.UTC()
	g.Order.RequiredDate = g.Order.RequiredDate.UTC()
	if shipped.Valid {
		t := shipped.Time.UTC()
		g.Order.ShippedDate = &t
	}
	if region.Valid {
		r := region.String
		g.Order.ShipRegion = &r
	}
	return g, nil
}

func (s *session) LockOrder(ctx context.Context, id int64) error {
	var locked int64
	err := s.tx.QueryRowContext(ctx, `SELECT order_id FROM orders WHERE order_id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrRowNotFound
		}
		return fmt.Errorf("lock order %d: %w", id, err)
	}
	return nil
}

func (s *session) LoadOrder(ctx context.Context, id int64) (storage.OrderGraph, error) {
	g, err := scanOrderHeader(s.tx.QueryRowContext(ctx, orderHeaderSelect+` WHERE o.order_id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.OrderGraph{}, storage.ErrRowNotFound
		}
		return storage.OrderGraph{}, fmt.Errorf("query order %d: %w", id, err)
	}

	graphs := []storage.OrderGraph{g}
	if err := s.attachLines(ctx, graphs); err != nil {
		return storage.OrderGraph{}, err
	}
	return graphs[0], nil
}

func (s *session) ListOrders(ctx context.Context, skip, count int) ([]storage.OrderGraph, error) {
	rows, err := s.tx.QueryContext(ctx, orderHeaderSelect+` ORDER BY o.order_id ASC OFFSET $1 LIMIT $2`, skip, count)
	if err != nil {
		return nil, fmt.Errorf("query orders page: %w", err)
	}
	defer rows.Close()

	graphs := make([]storage.OrderGraph, 0, min(count, listPreallocLimit))
	for rows.Next() {
		g, err := scanOrderHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		graphs = append(graphs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close orders rows: %w", err)
	}

	if err := s.attachLines(ctx, graphs); err != nil {
		return nil, err
	}
	return graphs, nil
}

// attachLines загружает позиции всех переданных заказов одним запросом.
func (s *session) attachLines(ctx context.Context, graphs []storage.OrderGraph) error {
	if len(graphs) == 0 {
		return nil
	}

	index := make(map[int64]int, len(graphs))
	ids := make([]int64, 0, len(graphs))
	for i, g := range graphs {
		index[g.Order.ID] = i
		ids = append(ids, g.Order.ID)
		graphs[i].Lines = []storage.LineGraph{}
	}

	rows, err := s.tx.QueryContext(ctx, `
		SELECT
			d.order_id, d.product_id, d.unit_price, d.quantity, d.discount,
			p.product_name, p.supplier_id, p.category_id,
			cat.category_name, sup.company_name
		FROM order_details d
		JOIN products p ON p.product_id = d.product_id
		JOIN categories cat ON cat.category_id = p.category_id
		JOIN suppliers sup ON sup.supplier_id = p.supplier_id
		WHERE d.order_id = ANY($1)
		ORDER BY d.order_id, d.product_id
	`, ids)
	if err != nil {
		return fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lg storage.LineGraph
		if err := rows.Scan(
			&lg.Line.OrderID, &lg.Line.ProductID, &lg.Line.UnitPrice, &lg.Line.Quantity, &lg.Line.Discount,
			&lg.Product.Name, &lg.Product.SupplierID, &lg.Product.CategoryID,
			&lg.Category.Name, &lg.Supplier.CompanyName,
		); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		lg.Product.ID = lg.Line.ProductID
		lg.Category.ID = lg.Product.CategoryID
		lg.Supplier.ID = lg.Product.SupplierID

		i := index[lg.Line.OrderID]
		graphs[i].Lines = append(graphs[i].Lines, lg)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order lines: %w", err)
	}
	return nil
}

func (s *session) InsertOrder(ctx context.Context, row storage.OrderRow) (int64, error) {
	var id int64
	err := s.tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			customer_id, employee_id, order_date, required_date, shipped_date, ship_via,
			freight, ship_name, ship_address, ship_city, ship_region, ship_postal_code, ship_country, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING order_id
	`,
		row.CustomerCode, row.EmployeeID, row.OrderDate, row.RequiredDate, nullTime(row.ShippedDate), row.ShipperID,
		row.Freight, row.ShipName, row.ShipAddress, row.ShipCity, nullString(row.ShipRegion), row.ShipPostalCode,
		row.ShipCountry, row.Version,
	).Scan(&id)
	if err != nil {
		return 0, classify(err, "insert order")
	}
	return id, nil
}

func (s *session) UpdateOrder(ctx context.Context, row storage.OrderRow) error {
	res, err := s.tx.ExecContext(ctx, `
		UPDATE orders
		SET customer_id = $2,
		    employee_id = $3,
		    order_date = $4,
		    required_date = $5,
		    shipped_date = $6,
		    ship_via = $7,
		    freight = $8,
		    ship_name = $9,
		    ship_address = $10,
		    ship_city = $11,
		    ship_region = $12,
		    ship_postal_code = $13,
		    ship_country = $14,
		    version = $15
		WHERE order_id = $1 AND version = $15 - 1
	`,
		row.ID, row.CustomerCode, row.EmployeeID, row.OrderDate, row.RequiredDate, nullTime(row.ShippedDate),
		row.ShipperID, row.Freight, row.ShipName, row.ShipAddress, row.ShipCity, nullString(row.ShipRegion),
		row.ShipPostalCode, row.ShipCountry, row.Version,
	)
	if err != nil {
		return classify(err, "update order %d", row.ID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for order %d: %w", row.ID, err)
	}
	if affected == 0 {
		var exists bool
		if err := s.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)`, row.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check order %d: %w", row.ID, err)
		}
		if !exists {
			return storage.ErrRowNotFound
		}
		return fmt.Errorf("order %d: %w", row.ID, domain.ErrOrderVersionConflict)
	}
	return nil
}

func (s *session) DeleteOrder(ctx context.Context, id int64) error {
	return s.execAffectingOne(ctx, fmt.Sprintf("delete order %d", id), `DELETE FROM orders WHERE order_id = $1`, id)
}

func (s *session) InsertLine(ctx context.Context, row storage.OrderLineRow) error {
	if _, err := s.tx.ExecContext(ctx, `
		INSERT INTO order_details (order_id, product_id, unit_price, quantity, discount)
		VALUES ($1, $2, $3, $4, $5)
	`, row.OrderID, row.ProductID, row.UnitPrice, row.Quantity, row.Discount); err != nil {
		return classify(err, "insert order %d line %d", row.OrderID, row.ProductID)
	}
	return nil
}

func (s *session) UpdateLine(ctx context.Context, row storage.OrderLineRow) error {
	return s.execAffectingOne(ctx, fmt.Sprintf("update order %d line %d", row.OrderID, row.ProductID), `
		UPDATE order_details
		SET unit_price = $3, quantity = $4, discount = $5
		WHERE order_id = $1 AND product_id = $2
	`, row.OrderID, row.ProductID, row.UnitPrice, row.Quantity, row.Discount)
}

func (s *session) DeleteLine(ctx context.Context, orderID, productID int64) error {
	return s.execAffectingOne(ctx, fmt.Sprintf("delete order %d line %d", orderID, productID), `
		DELETE FROM order_details WHERE order_id = $1 AND product_id = $2
	`, orderID, productID)
}

func (s *session) execAffectingOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err, "%s", op)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return storage.ErrRowNotFound
	}
	return nil
}

func (s *session) EnqueueOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	if _, err := s.tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7)
	`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.CreatedAt, now,
	); err != nil {
		return classify(err, "enqueue outbox message")
	}
	return nil
}

func (s *session) AppendTimeline(ctx context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	if _, err := s.tx.ExecContext(ctx, `
		INSERT INTO order_timeline (order_id, version, type, reason, occurred)
		VALUES ($1, $2, $3, $4, $5)
	`, event.OrderID, event.Version, event.Type, event.Reason, event.Occurred); err != nil {
		return classify(err, "append timeline event for order %d", event.OrderID)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var _ storage.Session = (*session)(nil)
