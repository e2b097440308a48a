package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced = "OrderPlaced"

	EventVersion = 1
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type PlacedItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	VendorID  string          `json:"vendor_id,omitempty"`
}

type OrderPlacedPayload struct {
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	RecipientName  string          `json:"recipient_name"`
	Items          []PlacedItem    `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PromotionCode  string          `json:"promotion_code,omitempty"`
	VendorIDs      []string        `json:"vendor_ids"`
	PlacedAt       time.Time       `json:"placed_at"`
}

func NewOrderPlacedPayload(o Order) OrderPlacedPayload {
	items := make([]PlacedItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = PlacedItem{ProductID: it.ProductID, Name: it.Name, Qty: it.Quantity, Price: it.Price, VendorID: it.VendorID}
	}
	return OrderPlacedPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		RecipientName:  o.ShippingAddress.FullName,
		Items:          items,
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		TaxAmount:      o.TaxAmount,
		ShippingCost:   o.ShippingCost,
		TotalAmount:    o.TotalAmount,
		PromotionCode:  o.PromotionCode,
		VendorIDs:      o.VendorIDs,
		PlacedAt:       o.CreatedAt,
	}
}

func NewEnvelope(eventType, producer, orderID string, payload any, at time.Time) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredAt:    at,
		Producer:      producer,
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}
