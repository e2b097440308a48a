package orders

import (
	"context"
	"time"
)

type orderDraft struct {
	ID            string
	Request       PlaceOrderRequest
	Items         []OrderItem
	Price         PriceBreakdown
	PromotionCode string
	At            time.Time
}

func buildOrder(d orderDraft) *Order {
	items := make([]OrderItem, len(d.Items))
	copy(items, d.Items)
	return &Order{
		ID:              d.ID,
		UserID:          d.Request.UserID,
		Items:           items,
		ShippingAddress: d.Request.ShippingAddress,
		PaymentMethod:   d.Request.PaymentMethod,
		Status:          StatusPending,
		StatusHistory: []StatusEntry{{
			Status:    StatusPending,
			Timestamp: d.At,
			Note:      noteOrderCreated,
			UpdatedBy: d.Request.UserID,
		}},
		Subtotal:       d.Price.Subtotal,
		DiscountAmount: d.Price.Discount,
		TaxAmount:      d.Price.Tax,
		ShippingCost:   d.Price.Shipping,
		TotalAmount:    d.Price.Total,
		PromotionCode:  d.PromotionCode,
		VendorIDs:      vendorIDs(items),
		CreatedAt:      d.At,
		UpdatedAt:      d.At,
	}
}

func vendorIDs(items []OrderItem) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.VendorID == "" {
			continue
		}
		if _, ok := seen[it.VendorID]; ok {
			continue
		}
		seen[it.VendorID] = struct{}{}
		out = append(out, it.VendorID)
	}
	return out
}

func writeOrder(ctx context.Context, tx Tx, o *Order) error {
	return storeErr("insert order", tx.InsertOrder(ctx, o))
}
