package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	// Stock is nil when the catalog never set a stock level; such products cannot be ordered.
	Stock           *int       `json:"stock,omitempty"`
	VendorID        string     `json:"vendor_id,omitempty"`
	LastStockUpdate *time.Time `json:"last_stock_update,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type PromotionType string

const (
	PromotionPercentage PromotionType = "percentage"
	PromotionFixed      PromotionType = "fixed"
)

type Promotion struct {
	ID                string              `json:"id"`
	Code              string              `json:"code"`
	Description       string              `json:"description,omitempty"`
	Type              PromotionType       `json:"type"`
	Value             decimal.Decimal     `json:"value"`
	IsActive          bool                `json:"is_active"`
	StartDate         time.Time           `json:"start_date"`
	EndDate           *time.Time          `json:"end_date,omitempty"`
	UsageLimit        *int                `json:"usage_limit,omitempty"`
	TimesUsed         int                 `json:"times_used"`
	MinPurchaseAmount decimal.NullDecimal `json:"min_purchase_amount"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// OrderItem: name/price copied at purchase time
type OrderItem struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	VendorID     string          `json:"vendor_id,omitempty"`
	RefundStatus RefundStatus    `json:"refund_status,omitempty"`
}

type StatusEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
	UpdatedBy string    `json:"updated_by"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	Status          Status          `json:"status"`
	StatusHistory   []StatusEntry   `json:"status_history"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PromotionCode   string          `json:"promotion_code,omitempty"`
	VendorIDs       []string        `json:"vendor_ids"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrderRequest struct {
	UserID          string          `json:"-"`
	Items           []CartLine      `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	PromotionCode   string          `json:"promotion_code,omitempty"`
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// Viewer is the authenticated caller as asserted by the gateway.
type Viewer struct {
	UserID string
	Role   Role
}

// CanView reports whether v may read o: admins see everything, customers their own
// orders and vendors any order carrying one of their items.
func (v Viewer) CanView(o *Order) bool {
	switch v.Role {
	case RoleAdmin:
		return true
	case RoleCustomer:
		return o.UserID == v.UserID
	case RoleVendor:
		for _, id := range o.VendorIDs {
			if id == v.UserID {
				return true
			}
		}
	}
	return false
}

type OrderFilter struct {
	UserID   string
	VendorID string
	Limit    int
}
