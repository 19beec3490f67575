package orders

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/metrics"
	"github.com/vladislavdragonenkov/northwind/internal/storage"
)

// Виды справочных сущностей для логов и метрик.
const (
	kindCustomer = "customer"
	kindEmployee = "employee"
	kindShipper  = "shipper"
	kindProduct  = "product"
	kindCategory = "category"
	kindSupplier = "supplier"
)

// resolver связывает ссылки агрегата с существующими строками или создаёт
// недостающие в текущей сессии. Все ключи агрегата выбираются пакетно при
// создании, новые строки дописываются в те же карты, поэтому ключ,
// встреченный дважды, вставляется один раз.
type resolver struct {
	sess    storage.Session
	metrics *metrics.OrderMetrics

	customers  map[string]storage.CustomerRow
	employees  map[int64]storage.EmployeeRow
	shippers   map[int64]storage.ShipperRow
	products   map[int64]storage.ProductRow
	categories map[int64]storage.CategoryRow
	suppliers  map[int64]storage.SupplierRow

	created []string
}

// newResolver выбирает из сессии все сущности, на которые ссылаются заголовок
// заказа и переданные позиции.
func newResolver(ctx context.Context, sess storage.Session, m *metrics.OrderMetrics, order *domain.Order, lines []domain.OrderLine) (*resolver, error) {
	r := &resolver{sess: sess, metrics: m}

	var err error
	if r.customers, err = sess.Customers(ctx, []string{order.Customer.Code}); err != nil {
		return nil, fmt.Errorf("lookup customers: %w", err)
	}
	if r.employees, err = sess.Employees(ctx, []int64{order.Employee.ID}); err != nil {
		return nil, fmt.Errorf("lookup employees: %w", err)
	}
	if r.shippers, err = sess.Shippers(ctx, []int64{order.Shipper.ID}); err != nil {
		return nil, fmt.Errorf("lookup shippers: %w", err)
	}

	productIDs := uniqueIDs(len(lines), func(i int) int64 { return lines[i].Product.ID })
	if r.products, err = sess.Products(ctx, productIDs); err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}

	// Категории и поставщики нужны только для товаров, которых ещё нет.
	missing := make([]domain.Product, 0, len(lines))
	for _, line := range lines {
		if _, ok := r.products[line.Product.ID]; !ok {
			missing = append(missing, line.Product)
		}
	}
	categoryIDs := uniqueIDs(len(missing), func(i int) int64 { return missing[i].CategoryID })
	if r.categories, err = sess.Categories(ctx, categoryIDs); err != nil {
		return nil, fmt.Errorf("lookup categories: %w", err)
	}
	supplierIDs := uniqueIDs(len(missing), func(i int) int64 { return missing[i].SupplierID })
	if r.suppliers, err = sess.Suppliers(ctx, supplierIDs); err != nil {
		return nil, fmt.Errorf("lookup suppliers: %w", err)
	}

	return r, nil
}

func uniqueIDs(n int, at func(i int) int64) []int64 {
	seen := make(map[int64]struct{}, n)
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id := at(i)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func (r *resolver) markCreated(kind string) {
	r.created = append(r.created, kind)
	r.metrics.RecordReferenceCreated(kind)
}

func (r *resolver) customer(ctx context.Context, c domain.Customer) (storage.CustomerRow, error) {
	if row, ok := r.customers[c.Code]; ok {
		return row, nil
	}
	row := storage.CustomerRow{Code: c.Code, CompanyName: c.CompanyName}
	if err := r.sess.InsertCustomer(ctx, row); err != nil {
		return storage.CustomerRow{}, fmt.Errorf("insert customer %q: %w", c.Code, err)
	}
	r.customers[c.Code] = row
	r.markCreated(kindCustomer)
	return row, nil
}

func (r *resolver) employee(ctx context.Context, e domain.Employee) (storage.EmployeeRow, error) {
	if row, ok := r.employees[e.ID]; ok {
		return row, nil
	}
	row := storage.EmployeeRow{ID: e.ID, FirstName: e.FirstName, LastName: e.LastName, Country: e.Country}
	if err := r.sess.InsertEmployee(ctx, row); err != nil {
		return storage.EmployeeRow{}, fmt.Errorf("insert employee %d: %w", e.ID, err)
	}
	r.employees[e.ID] = row
	r.markCreated(kindEmployee)
	return row, nil
}

func (r *resolver) shipper(ctx context.Context, s domain.Shipper) (storage.ShipperRow, error) {
	if row, ok := r.shippers[s.ID]; ok {
		return row, nil
	}
	row := storage.ShipperRow{ID: s.ID, CompanyName: s.CompanyName}
	if err := r.sess.InsertShipper(ctx, row); err != nil {
		return storage.ShipperRow{}, fmt.Errorf("insert shipper %d: %w", s.ID, err)
	}
	r.shippers[s.ID] = row
	r.markCreated(kindShipper)
	return row, nil
}

// product связывает товар позиции. Для нового товара сначала разрешаются
// категория и поставщик, чтобы вставка товара не нарушила внешние ключи.
func (r *resolver) product(ctx context.Context, p domain.Product) (storage.ProductRow, error) {
	if row, ok := r.products[p.ID]; ok {
		return row, nil
	}
	if p.CategoryID <= 0 {
		return storage.ProductRow{}, &domain.ValidationError{Reason: fmt.Sprintf("Product %d requires a valid category ID.", p.ID)}
	}
	if p.SupplierID <= 0 {
		return storage.ProductRow{}, &domain.ValidationError{Reason: fmt.Sprintf("Product %d requires a valid supplier ID.", p.ID)}
	}

	category, err := r.category(ctx, p.CategoryID, p.CategoryName)
	if err != nil {
		return storage.ProductRow{}, err
	}
	supplier, err := r.supplier(ctx, p.SupplierID, p.SupplierName)
	if err != nil {
		return storage.ProductRow{}, err
	}

	row := storage.ProductRow{ID: p.ID, Name: p.Name, SupplierID: supplier.ID, CategoryID: category.ID}
	if err := r.sess.InsertProduct(ctx, row); err != nil {
		return storage.ProductRow{}, fmt.Errorf("insert product %d: %w", p.ID, err)
	}
	r.products[p.ID] = row
	r.markCreated(kindProduct)
	return row, nil
}

func (r *resolver) category(ctx context.Context, id int64, name string) (storage.CategoryRow, error) {
	if row, ok := r.categories[id]; ok {
		return row, nil
	}
	row := storage.CategoryRow{ID: id, Name: name}
	if err := r.sess.InsertCategory(ctx, row); err != nil {
		return storage.CategoryRow{}, fmt.Errorf("insert category %d: %w", id, err)
	}
	r.categories[id] = row
	r.markCreated(kindCategory)
	return row, nil
}

func (r *resolver) supplier(ctx context.Context, id int64, companyName string) (storage.SupplierRow, error) {
	if row, ok := r.suppliers[id]; ok {
		return row, nil
	}
	row := storage.SupplierRow{ID: id, CompanyName: companyName}
	if err := r.sess.InsertSupplier(ctx, row); err != nil {
		return storage.SupplierRow{}, fmt.Errorf("insert supplier %d: %w", id, err)
	}
	r.suppliers[id] = row
	r.markCreated(kindSupplier)
	return row, nil
}

// headerRefs — разрешённые ссылки заголовка заказа.
type headerRefs struct {
	customer storage.CustomerRow
	employee storage.EmployeeRow
	shipper  storage.ShipperRow
}

func (r *resolver) header(ctx context.Context, order *domain.Order) (headerRefs, error) {
	var (
		refs headerRefs
		err  error
	)
	if refs.customer, err = r.customer(ctx, order.Customer); err != nil {
		return headerRefs{}, err
	}
	if refs.employee, err = r.employee(ctx, order.Employee); err != nil {
		return headerRefs{}, err
	}
	if refs.shipper, err = r.shipper(ctx, order.Shipper); err != nil {
		return headerRefs{}, err
	}
	return refs, nil
}
