package domain

import "strings"

// ValidateOrder проверяет инварианты заказа перед записью и возвращает
// *ValidationError для первого нарушенного правила.
func ValidateOrder(o *Order) error {
	if o == nil {
		return validationf("Order cannot be null.")
	}
	if strings.TrimSpace(o.Customer.Code) == "" {
		return validationf("Customer ID is required.")
	}
	if o.Employee.ID <= 0 {
		return validationf("Valid Employee ID is required.")
	}
	if o.OrderDate.IsZero() {
		return validationf("Order date is required.")
	}
	if !o.RequiredDate.After(o.OrderDate) {
		return validationf("Required date must be after the order date.")
	}
	if o.Freight.IsNegative() {
		return validationf("Freight must be non-negative.")
	}
	if strings.TrimSpace(o.ShipName) == "" {
		return validationf("Ship name is required.")
	}
	if o.Shipper.ID <= 0 {
		return validationf("Valid Shipper ID is required.")
	}
	if len(o.Lines) == 0 {
		return validationf("At least one order detail is required.")
	}

	seen := make(map[int64]struct{}, len(o.Lines))
	for _, line := range o.Lines {
		if err := validateLine(line); err != nil {
			return err
		}
		if _, dup := seen[line.Product.ID]; dup {
			return validationf("Order detail for product %d is duplicated.", line.Product.ID)
		}
		seen[line.Product.ID] = struct{}{}
	}
	return nil
}

func validateLine(line OrderLine) error {
	switch {
	case line.Product.ID <= 0:
		return validationf("Valid Product ID is required.")
	case line.Quantity <= 0:
		return validationf("Order detail quantity must be greater than zero.")
	case line.UnitPrice.IsNegative():
		return validationf("Order detail unit price must be non-negative.")
	case !(line.Discount >= 0 && line.Discount <= 1):
		return validationf("Order detail discount must be between 0 and 1.")
	}
	return nil
}
