package orders

import (
	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/storage"
)

// LinePlan — минимальный набор записей, переводящий сохранённые позиции
// заказа в состояние входящего агрегата. Применяется в порядке
// Delete, Insert, Update.
type LinePlan struct {
	// Insert — входящие позиции с товаром, которого нет среди сохранённых.
	Insert []domain.OrderLine
	// Update — сохранённые позиции с новыми количеством, ценой или скидкой.
	Update []storage.OrderLineRow
	// Delete — сохранённые позиции, отсутствующие во входящем наборе.
	Delete []storage.OrderLineRow
}

// Empty сообщает, что сверка не требует записей.
func (p LinePlan) Empty() bool {
	return len(p.Insert) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// Reconcile сопоставляет позиции по идентификатору товара. Ссылка на товар у
// совпавшей позиции не меняется; совпавшие позиции без изменений в план не
// попадают. Если во входящем наборе товар повторяется, побеждает последняя
// позиция.
func Reconcile(existing []storage.OrderLineRow, incoming []domain.OrderLine) LinePlan {
	current := make(map[int64]storage.OrderLineRow, len(existing))
	for _, row := range existing {
		current[row.ProductID] = row
	}

	wanted := make(map[int64]domain.OrderLine, len(incoming))
	order := make([]int64, 0, len(incoming))
	for _, line := range incoming {
		if _, seen := wanted[line.Product.ID]; !seen {
			order = append(order, line.Product.ID)
		}
		wanted[line.Product.ID] = line
	}

	var plan LinePlan
	for _, row := range existing {
		if _, keep := wanted[row.ProductID]; !keep {
			plan.Delete = append(plan.Delete, row)
		}
	}

	for _, productID := range order {
		line := wanted[productID]
		row, ok := current[productID]
		if !ok {
			plan.Insert = append(plan.Insert, line)
			continue
		}
		if lineChanged(row, line) {
			row.UnitPrice = line.UnitPrice
			row.Quantity = line.Quantity
			row.Discount = line.Discount
			plan.Update = append(plan.Update, row)
		}
	}

	return plan
}

func lineChanged(row storage.OrderLineRow, line domain.OrderLine) bool {
	return row.Quantity != line.Quantity ||
		row.Discount != line.Discount ||
		!row.UnitPrice.Equal(line.UnitPrice)
}
