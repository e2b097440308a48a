package orders

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() PlaceOrderRequest {
	return PlaceOrderRequest{
		UserID:          "user-1",
		Items:           []CartLine{{ProductID: "A", Quantity: 2}},
		ShippingAddress: ShippingAddress{FullName: "Ana Diaz", Address: "Calle 1", City: "CDMX"},
		PaymentMethod:   "card",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*PlaceOrderRequest)
		field string
	}{
		{"empty cart", func(r *PlaceOrderRequest) { r.Items = nil }, "items"},
		{"zero quantity", func(r *PlaceOrderRequest) { r.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"negative quantity", func(r *PlaceOrderRequest) { r.Items[0].Quantity = -1 }, "items[0].quantity"},
		{"blank product", func(r *PlaceOrderRequest) { r.Items[0].ProductID = "  " }, "items[0].product_id"},
		{"no name", func(r *PlaceOrderRequest) { r.ShippingAddress.FullName = " " }, "shipping_address.full_name"},
		{"no street", func(r *PlaceOrderRequest) { r.ShippingAddress.Address = "" }, "shipping_address.address"},
		{"no payment method", func(r *PlaceOrderRequest) { r.PaymentMethod = "" }, "payment_method"},
		{"no user", func(r *PlaceOrderRequest) { r.UserID = "" }, "user_id"},
		{"too many units", func(r *PlaceOrderRequest) { r.Items[0].Quantity = MaxLineQuantity + 1 }, "items[0].quantity"},
		{"merged lines over limit", func(r *PlaceOrderRequest) {
			r.Items = []CartLine{{ProductID: "A", Quantity: MaxLineQuantity}, {ProductID: "A", Quantity: 1}}
		}, "items[1].quantity"},
		{"merged lines overflow int", func(r *PlaceOrderRequest) {
			r.Items = []CartLine{{ProductID: "A", Quantity: 5}, {ProductID: "A", Quantity: math.MaxInt}}
		}, "items[1].quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.edit(&req)
			_, err := Validate(req)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	req := validRequest()
	req.Items = []CartLine{{ProductID: " A ", Quantity: 1}, {ProductID: "B", Quantity: 1}, {ProductID: "A", Quantity: 2}}
	req.PromotionCode = "  save10 "
	req.ShippingAddress.FullName = " Ana Diaz "

	got, err := Validate(req)
	require.NoError(t, err)
	assert.Equal(t, []CartLine{{ProductID: "A", Quantity: 3}, {ProductID: "B", Quantity: 1}}, got.Items)
	assert.Equal(t, "SAVE10", got.PromotionCode)
	assert.Equal(t, "Ana Diaz", got.ShippingAddress.FullName)
	// The caller's slice is untouched.
	assert.Equal(t, 1, req.Items[0].Quantity)
}
