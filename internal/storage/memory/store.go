package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/storage"
)

type outboxStatus string

const (
	outboxPending outboxStatus = "pending"
	outboxSent    outboxStatus = "sent"
	outboxFailed  outboxStatus = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     outboxStatus
	attemptCnt int
	updatedAt  time.Time
}

// tables — полное состояние хранилища. Транзакция работает с копией и
// подменяет оригинал при фиксации.
type tables struct {
	customers   map[string]storage.CustomerRow
	employees   map[int64]storage.EmployeeRow
	shippers    map[int64]storage.ShipperRow
	categories  map[int64]storage.CategoryRow
	suppliers   map[int64]storage.SupplierRow
	products    map[int64]storage.ProductRow
	orders      map[int64]storage.OrderRow
	lines       map[int64]map[int64]storage.OrderLineRow
	outbox      map[string]outboxRecord
	timeline    map[int64][]domain.TimelineEvent
	nextOrderID int64
}

func newTables() *tables {
	return &tables{
		customers:   make(map[string]storage.CustomerRow),
		employees:   make(map[int64]storage.EmployeeRow),
		shippers:    make(map[int64]storage.ShipperRow),
		categories:  make(map[int64]storage.CategoryRow),
		suppliers:   make(map[int64]storage.SupplierRow),
		products:    make(map[int64]storage.ProductRow),
		orders:      make(map[int64]storage.OrderRow),
		lines:       make(map[int64]map[int64]storage.OrderLineRow),
		outbox:      make(map[string]outboxRecord),
		timeline:    make(map[int64][]domain.TimelineEvent),
		nextOrderID: 1,
	}
}

func (t *tables) clone() *tables {
	c := &tables{
		customers:   cloneMap(t.customers),
		employees:   cloneMap(t.employees),
		shippers:    cloneMap(t.shippers),
		categories:  cloneMap(t.categories),
		suppliers:   cloneMap(t.suppliers),
		products:    cloneMap(t.products),
		orders:      cloneMap(t.orders),
		lines:       make(map[int64]map[int64]storage.OrderLineRow, len(t.lines)),
		outbox:      cloneMap(t.outbox),
		timeline:    make(map[int64][]domain.TimelineEvent, len(t.timeline)),
		nextOrderID: t.nextOrderID,
	}
	for orderID, lines := range t.lines {
		c.lines[orderID] = cloneMap(lines)
	}
	for orderID, events := range t.timeline {
		c.timeline[orderID] = slices.Clone(events)
	}
	return c
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Store — транзакционное in-memory хранилище для локальной разработки и тестов.
// Транзакции сериализуются: пишущая сессия держит блокировку до фиксации.
type Store struct {
	mu     sync.Mutex
	data   *tables
	closed bool
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{data: newTables()}
}

// WithinTx выполняет fn над копией таблиц и публикует её только при успехе.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, sess storage.Session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("memory store is closed")
	}

	work := s.data.clone()
	if err := fn(ctx, &session{t: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.data = work
	return nil
}

// Ping проверяет, что хранилище не закрыто.
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("memory store is closed")
	}
	return nil
}

// Close помечает хранилище закрытым.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// RowCounts содержит размеры таблиц (используется в тестах).
type RowCounts struct {
	Customers  int
	Employees  int
	Shippers   int
	Categories int
	Suppliers  int
	Products   int
	Orders     int
	Lines      int
	Outbox     int
	Timeline   int
}

// Counts возвращает зафиксированные размеры таблиц.
func (s *Store) Counts() RowCounts {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := 0
	for _, l := range s.data.lines {
		lines += len(l)
	}
	timeline := 0
	for _, events := range s.data.timeline {
		timeline += len(events)
	}
	return RowCounts{
		Customers:  len(s.data.customers),
		Employees:  len(s.data.employees),
		Shippers:   len(s.data.shippers),
		Categories: len(s.data.categories),
		Suppliers:  len(s.data.suppliers),
		Products:   len(s.data.products),
		Orders:     len(s.data.orders),
		Lines:      lines,
		Outbox:     len(s.data.outbox),
		Timeline:   timeline,
	}
}

type session struct {
	t *tables
}

func (s *session) Customers(_ context.Context, codes []string) (map[string]storage.CustomerRow, error) {
	return pick(s.t.customers, codes), nil
}

func (s *session) Employees(_ context.Context, ids []int64) (map[int64]storage.EmployeeRow, error) {
	return pick(s.t.employees, ids), nil
}

func (s *session) Shippers(_ context.Context, ids []int64) (map[int64]storage.ShipperRow, error) {
	return pick(s.t.shippers, ids), nil
}

func (s *session) Products(_ context.Context, ids []int64) (map[int64]storage.ProductRow, error) {
	return pick(s.t.products, ids), nil
}

func (s *session) Categories(_ context.Context, ids []int64) (map[int64]storage.CategoryRow, error) {
	return pick(s.t.categories, ids), nil
}

func (s *session) Suppliers(_ context.Context, ids []int64) (map[int64]storage.SupplierRow, error) {
	return pick(s.t.suppliers, ids), nil
}

func pick[K comparable, V any](src map[K]V, keys []K) map[K]V {
	out := make(map[K]V, len(keys))
	for _, k := range keys {
		if v, ok := src[k]; ok {
			out[k] = v
		}
	}
	return out
}

func insertUnique[K comparable, V any](table string, dst map[K]V, key K, row V) error {
	if _, exists := dst[key]; exists {
		return fmt.Errorf("insert %s %v: %w", table, key, storage.ErrDuplicateKey)
	}
	dst[key] = row
	return nil
}

func (s *session) InsertCustomer(_ context.Context, row storage.CustomerRow) error {
	return insertUnique("customer", s.t.customers, row.Code, row)
}

func (s *session) InsertEmployee(_ context.Context, row storage.EmployeeRow) error {
	return insertUnique("employee", s.t.employees, row.ID, row)
}

func (s *session) InsertShipper(_ context.Context, row storage.ShipperRow) error {
	return insertUnique("shipper", s.t.shippers, row.ID, row)
}

func (s *session) InsertCategory(_ context.Context, row storage.CategoryRow) error {
	return insertUnique("category", s.t.categories, row.ID, row)
}

func (s *session) InsertSupplier(_ context.Context, row storage.SupplierRow) error {
	return insertUnique("supplier", s.t.suppliers, row.ID, row)
}

func (s *session) InsertProduct(_ context.Context, row storage.ProductRow) error {
	if _, ok := s.t.suppliers[row.SupplierID]; !ok {
		return fmt.Errorf("product %d supplier %d: %w", row.ID, row.SupplierID, storage.ErrForeignKey)
	}
	if _, ok := s.t.categories[row.CategoryID]; !ok {
		return fmt.Errorf("product %d category %d: %w", row.ID, row.CategoryID, storage.ErrForeignKey)
	}
	return insertUnique("product", s.t.products, row.ID, row)
}

// LockOrder только проверяет наличие заказа: транзакции Store и так
// выполняются по одной.
func (s *session) LockOrder(_ context.Context, id int64) error {
	if _, ok := s.t.orders[id]; !ok {
		return storage.ErrRowNotFound
	}
	return nil
}

func (s *session) LoadOrder(_ context.Context, id int64) (storage.OrderGraph, error) {
	row, ok := s.t.orders[id]
	if !ok {
		return storage.OrderGraph{}, storage.ErrRowNotFound
	}
	return s.graph(row), nil
}

func (s *session) ListOrders(_ context.Context, skip, count int) ([]storage.OrderGraph, error) {
	ids := make([]int64, 0, len(s.t.orders))
	for id := range s.t.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if skip >= len(ids) {
		return []storage.OrderGraph{}, nil
	}
	ids = ids[skip:]
	if count < len(ids) {
		ids = ids[:count]
	}

	result := make([]storage.OrderGraph, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.graph(s.t.orders[id]))
	}
	return result, nil
}

func (s *session) graph(row storage.OrderRow) storage.OrderGraph {
	g := storage.OrderGraph{
		Order:    row,
		Customer: s.t.customers[row.CustomerCode],
		Employee: s.t.employees[row.EmployeeID],
		Shipper:  s.t.shippers[row.ShipperID],
	}

	lines := s.t.lines[row.ID]
	productIDs := make([]int64, 0, len(lines))
	for productID := range lines {
		productIDs = append(productIDs, productID)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	g.Lines = make([]storage.LineGraph, 0, len(productIDs))
	for _, productID := range productIDs {
		product := s.t.products[productID]
		g.Lines = append(g.Lines, storage.LineGraph{
			Line:     lines[productID],
			Product:  product,
			Category: s.t.categories[product.CategoryID],
			Supplier: s.t.suppliers[product.SupplierID],
		})
	}
	return g
}

func (s *session) checkOrderRefs(row storage.OrderRow) error {
	if _, ok := s.t.customers[row.CustomerCode]; !ok {
		return fmt.Errorf("order customer %q: %w", row.CustomerCode, storage.ErrForeignKey)
	}
	if _, ok := s.t.employees[row.EmployeeID]; !ok {
		return fmt.Errorf("order employee %d: %w", row.EmployeeID, storage.ErrForeignKey)
	}
	if _, ok := s.t.shippers[row.ShipperID]; !ok {
		return fmt.Errorf("order shipper %d: %w", row.ShipperID, storage.ErrForeignKey)
	}
	return nil
}

func (s *session) InsertOrder(_ context.Context, row storage.OrderRow) (int64, error) {
	if err := s.checkOrderRefs(row); err != nil {
		return 0, err
	}
	row.ID = s.t.nextOrderID
	s.t.nextOrderID++
	s.t.orders[row.ID] = row
	s.t.lines[row.ID] = make(map[int64]storage.OrderLineRow)
	return row.ID, nil
}

func (s *session) UpdateOrder(_ context.Context, row storage.OrderRow) error {
	current, ok := s.t.orders[row.ID]
	if !ok {
		return storage.ErrRowNotFound
	}
	if current.Version != row.Version-1 {
		return fmt.Errorf("order %d at version %d: %w", row.ID, current.Version, domain.ErrOrderVersionConflict)
	}
	if err := s.checkOrderRefs(row); err != nil {
		return err
	}
	s.t.orders[row.ID] = row
	return nil
}

func (s *session) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := s.t.orders[id]; !ok {
		return storage.ErrRowNotFound
	}
	delete(s.t.orders, id)
	delete(s.t.lines, id)
	return nil
}

func (s *session) InsertLine(_ context.Context, row storage.OrderLineRow) error {
	lines, ok := s.t.lines[row.OrderID]
	if !ok {
		return fmt.Errorf("line order %d: %w", row.OrderID, storage.ErrForeignKey)
	}
	if _, ok := s.t.products[row.ProductID]; !ok {
		return fmt.Errorf("line product %d: %w", row.ProductID, storage.ErrForeignKey)
	}
	return insertUnique("order line", lines, row.ProductID, row)
}

func (s *session) UpdateLine(_ context.Context, row storage.OrderLineRow) error {
	lines := s.t.lines[row.OrderID]
	if _, ok := lines[row.ProductID]; !ok {
		return storage.ErrRowNotFound
	}
	lines[row.ProductID] = row
	return nil
}

func (s *session) DeleteLine(_ context.Context, orderID, productID int64) error {
	lines := s.t.lines[orderID]
	if _, ok := lines[productID]; !ok {
		return storage.ErrRowNotFound
	}
	delete(lines, productID)
	return nil
}

func (s *session) EnqueueOutbox(_ context.Context, msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	return insertUnique("outbox message", s.t.outbox, msg.ID, outboxRecord{
		msg:       msg,
		status:    outboxPending,
		updatedAt: now,
	})
}

func (s *session) AppendTimeline(_ context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	s.t.timeline[event.OrderID] = append(s.t.timeline[event.OrderID], event)
	return nil
}

var (
	_ storage.Store   = (*Store)(nil)
	_ storage.Session = (*session)(nil)
)
