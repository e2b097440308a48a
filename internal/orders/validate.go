package orders

import (
	"fmt"
	"strings"
)

const (
	MaxCartLines    = 100
	MaxLineQuantity = 10000
)

// NormalizeCode is the canonical form promotion codes are stored and looked up in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks req before any state is read and returns a normalized copy.
// Lines for the same product are merged, keeping first-occurrence order, so the
// ledger sees one reservation per product.
func Validate(req PlaceOrderRequest) (PlaceOrderRequest, error) {
	out := req
	out.UserID = strings.TrimSpace(req.UserID)
	if out.UserID == "" {
		return out, &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if len(req.Items) == 0 {
		return out, &ValidationError{Field: "items", Reason: "order must contain at least one item"}
	}
	if len(req.Items) > MaxCartLines {
		return out, &ValidationError{Field: "items", Reason: fmt.Sprintf("at most %d lines per order", MaxCartLines)}
	}

	merged := make([]CartLine, 0, len(req.Items))
	index := make(map[string]int, len(req.Items))
	for i, line := range req.Items {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return out, &ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Reason: "is required"}
		}
		if line.Quantity <= 0 {
			return out, &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be greater than zero"}
		}
		tooMany := &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: fmt.Sprintf("at most %d units per product", MaxLineQuantity)}
		if line.Quantity > MaxLineQuantity {
			return out, tooMany
		}
		j, ok := index[id]
		if !ok {
			index[id] = len(merged)
			merged = append(merged, CartLine{ProductID: id, Quantity: line.Quantity})
			continue
		}
		// compare before adding, the sum may not fit in an int
		if merged[j].Quantity > MaxLineQuantity-line.Quantity {
			return out, tooMany
		}
		merged[j].Quantity += line.Quantity
	}
	out.Items = merged

	addr := req.ShippingAddress
	addr.FullName = strings.TrimSpace(addr.FullName)
	addr.Address = strings.TrimSpace(addr.Address)
	addr.City = strings.TrimSpace(addr.City)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	addr.Phone = strings.TrimSpace(addr.Phone)
	if addr.FullName == "" {
		return out, &ValidationError{Field: "shipping_address.full_name", Reason: "is required"}
	}
	if addr.Address == "" {
		return out, &ValidationError{Field: "shipping_address.address", Reason: "is required"}
	}
	out.ShippingAddress = addr

	out.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	if out.PaymentMethod == "" {
		return out, &ValidationError{Field: "payment_method", Reason: "is required"}
	}

	out.PromotionCode = NormalizeCode(req.PromotionCode)
	return out, nil
}
