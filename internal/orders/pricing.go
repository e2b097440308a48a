package orders

import "github.com/shopspring/decimal"

type PricingRules struct {
	TaxRate decimal.Decimal
	// Orders strictly above FreeShippingOver (after discount) ship free.
	FreeShippingOver decimal.Decimal
	FlatShipping     decimal.Decimal
}

func DefaultPricingRules() PricingRules {
	return PricingRules{
		TaxRate:          decimal.RequireFromString("0.16"),
		FreeShippingOver: decimal.NewFromInt(5000),
		FlatShipping:     decimal.NewFromInt(500),
	}
}

type PriceBreakdown struct {
	Subtotal              decimal.Decimal `json:"subtotal"`
	Discount              decimal.Decimal `json:"discount"`
	SubtotalAfterDiscount decimal.Decimal `json:"subtotal_after_discount"`
	Tax                   decimal.Decimal `json:"tax"`
	Shipping              decimal.Decimal `json:"shipping"`
	Total                 decimal.Decimal `json:"total"`
}

// Compute prices an order. Tax is levied on the discounted subtotal only; shipping
// is never taxed.
func (r PricingRules) Compute(subtotal, discount decimal.Decimal) PriceBreakdown {
	after := subtotal.Sub(discount)
	if after.IsNegative() {
		after = decimal.Zero
	}
	tax := after.Mul(r.TaxRate).Round(2)
	shipping := r.FlatShipping
	if after.GreaterThan(r.FreeShippingOver) {
		shipping = decimal.Zero
	}
	return PriceBreakdown{
		Subtotal:              subtotal,
		Discount:              discount,
		SubtotalAfterDiscount: after,
		Tax:                   tax,
		Shipping:              shipping,
		Total:                 after.Add(tax).Add(shipping),
	}
}
