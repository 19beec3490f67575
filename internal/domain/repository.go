package domain

import "context"

// OrderRepository описывает операции над агрегатом заказа.
// Каждая пишущая операция выполняется атомарно.
type OrderRepository interface {
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id int64) (Order, error)
	// List возвращает страницу заказов по возрастанию идентификатора.
	// skip < 0 или count <= 0 дают ErrInvalidArgument.
	List(ctx context.Context, skip, count int) ([]Order, error)
	// Add валидирует и сохраняет новый заказ, возвращая присвоенный идентификатор.
	Add(ctx context.Context, order Order) (int64, error)
	// Remove удаляет заказ вместе с позициями.
	Remove(ctx context.Context, id int64) error
	// Update перезаписывает заголовок и сверяет позиции с сохранёнными.
	Update(ctx context.Context, id int64, order Order) error
}
