package common

import "math"

// TotalPrice returns unitPrice × quantity, rejecting totals that do not fit in an int64.
func TotalPrice(unitPrice int64, quantity int) (int64, error) {
	if unitPrice < 0 || quantity < 0 {
		return 0, Validation("price and quantity must not be negative").
			With("unit_price", unitPrice).
			With("quantity", quantity)
	}
	if unitPrice > 0 && int64(quantity) > math.MaxInt64/unitPrice {
		return 0, Validation("total price of %d x %d is too large", quantity, unitPrice).
			With("unit_price", unitPrice).
			With("quantity", quantity)
	}
	return unitPrice * int64(quantity), nil
}
