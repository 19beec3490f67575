package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/storage"
	"github.com/vladislavdragonenkov/northwind/internal/storage/memory"
)

// lookupSession считает пакетные выборки справочников.
type lookupSession struct {
	storage.Session
	calls map[string][]int
}

func (s lookupSession) record(kind string, n int) {
	s.calls[kind] = append(s.calls[kind], n)
}

func (s lookupSession) Customers(ctx context.Context, codes []string) (map[string]storage.CustomerRow, error) {
	s.record(kindCustomer, len(codes))
	return s.Session.Customers(ctx, codes)
}

func (s lookupSession) Products(ctx context.Context, ids []int64) (map[int64]storage.ProductRow, error) {
	s.record(kindProduct, len(ids))
	return s.Session.Products(ctx, ids)
}

func (s lookupSession) Categories(ctx context.Context, ids []int64) (map[int64]storage.CategoryRow, error) {
	s.record(kindCategory, len(ids))
	return s.Session.Categories(ctx, ids)
}

func TestResolver_BatchesLookupsPerKind(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	order := sampleOrder(orderLine(1, 1), orderLine(2, 1), orderLine(3, 1))
	calls := map[string][]int{}

	err := store.WithinTx(ctx, func(ctx context.Context, sess storage.Session) error {
		res, err := newResolver(ctx, lookupSession{Session: sess, calls: calls}, nil, &order, order.Lines)
		require.NoError(t, err)

		for _, l := range order.Lines {
			_, err := res.product(ctx, l.Product)
			require.NoError(t, err)
		}
		assert.Equal(t, []string{kindCategory, kindSupplier, kindProduct, kindProduct, kindProduct}, res.created)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, calls[kindCustomer])
	assert.Equal(t, []int{3}, calls[kindProduct])
	// Все три товара ссылаются на одну категорию.
	assert.Equal(t, []int{1}, calls[kindCategory])
}

func TestResolver_FoundRowsBindUnmodified(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	err := store.WithinTx(ctx, func(ctx context.Context, sess storage.Session) error {
		require.NoError(t, sess.InsertCustomer(ctx, storage.CustomerRow{Code: "HANAR", CompanyName: "Stored name"}))
		require.NoError(t, sess.InsertShipper(ctx, storage.ShipperRow{ID: 2, CompanyName: "Stored shipper"}))

		order := sampleOrder()
		res, err := newResolver(ctx, sess, nil, &order, nil)
		require.NoError(t, err)

		refs, err := res.header(ctx, &order)
		require.NoError(t, err)
		assert.Equal(t, "Stored name", refs.customer.CompanyName)
		assert.Equal(t, "Stored shipper", refs.shipper.CompanyName)
		assert.Equal(t, "Peacock", refs.employee.LastName)
		assert.Equal(t, []string{kindEmployee}, res.created)

		// Повторное разрешение не создаёт строку второй раз.
		_, err = res.employee(ctx, domain.Employee{ID: order.Employee.ID})
		require.NoError(t, err)
		assert.Len(t, res.created, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestResolver_NewProductNeedsCategoryAndSupplier(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	err := store.WithinTx(ctx, func(ctx context.Context, sess storage.Session) error {
		p := product(9)
		p.SupplierID = 0
		order := sampleOrder(domain.OrderLine{Product: p, Quantity: 1})

		res, err := newResolver(ctx, sess, nil, &order, order.Lines)
		require.NoError(t, err)

		_, err = res.product(ctx, p)
		require.ErrorIs(t, err, domain.ErrValidation)
		require.EqualError(t, err, "Product 9 requires a valid supplier ID.")
		return nil
	})
	require.NoError(t, err)
}
