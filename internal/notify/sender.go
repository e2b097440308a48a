package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/marketplace-orders/internal/orders"
	"go.uber.org/zap"
)

type Confirmation struct {
	OrderID   string
	UserID    string
	Recipient string
	Subject   string
	Body      string
}

type Sender interface {
	Send(ctx context.Context, c Confirmation) error
}

// LogSender: no mail gateway yet, confirmations go to the log.
type LogSender struct{ Log *zap.Logger }

func (s LogSender) Send(_ context.Context, c Confirmation) error {
	s.Log.Info("order confirmation",
		zap.String("order_id", c.OrderID),
		zap.String("user_id", c.UserID),
		zap.String("recipient", c.Recipient),
		zap.String("subject", c.Subject),
		zap.String("body", c.Body),
	)
	return nil
}

func renderConfirmation(p orders.OrderPlacedPayload) Confirmation {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s, thanks for your order.\n\n", p.RecipientName)
	for _, it := range p.Items {
		fmt.Fprintf(&b, "%d x %s @ %s\n", it.Qty, it.Name, it.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", p.Subtotal.StringFixed(2))
	if p.DiscountAmount.IsPositive() {
		fmt.Fprintf(&b, "Discount (%s): -%s\n", p.PromotionCode, p.DiscountAmount.StringFixed(2))
	}
	fmt.Fprintf(&b, "Tax: %s\n", p.TaxAmount.StringFixed(2))
	fmt.Fprintf(&b, "Shipping: %s\n", p.ShippingCost.StringFixed(2))
	fmt.Fprintf(&b, "Total: %s\n", p.TotalAmount.StringFixed(2))

	return Confirmation{
		OrderID:   p.OrderID,
		UserID:    p.UserID,
		Recipient: p.RecipientName,
		Subject:   "Order " + p.OrderID + " confirmed",
		Body:      b.String(),
	}
}
