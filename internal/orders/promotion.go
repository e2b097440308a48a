package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type IgnoreReason string

const (
	ReasonNone            IgnoreReason = ""
	ReasonNotFound        IgnoreReason = "not_found"
	ReasonInactive        IgnoreReason = "inactive"
	ReasonNotStarted      IgnoreReason = "not_started"
	ReasonExpired         IgnoreReason = "expired"
	ReasonUsageLimit      IgnoreReason = "usage_limit_reached"
	ReasonBelowMinimum    IgnoreReason = "below_minimum_purchase"
	ReasonUnsupportedType IgnoreReason = "unsupported_type"
)

type PromotionDecision struct {
	Applied  bool
	Discount decimal.Decimal
	Reason   IgnoreReason
}

var hundred = decimal.NewFromInt(100)

// EvaluatePromotion decides whether p applies to subtotal at now. A nil p is an
// unknown code. The discount is clamped to [0, subtotal] and rounded to cents.
func EvaluatePromotion(p *Promotion, subtotal decimal.Decimal, now time.Time) PromotionDecision {
	ignore := func(r IgnoreReason) PromotionDecision {
		return PromotionDecision{Discount: decimal.Zero, Reason: r}
	}
	switch {
	case p == nil:
		return ignore(ReasonNotFound)
	case !p.IsActive:
		return ignore(ReasonInactive)
	case now.Before(p.StartDate):
		return ignore(ReasonNotStarted)
	case p.EndDate != nil && !now.Before(*p.EndDate):
		return ignore(ReasonExpired)
	case p.UsageLimit != nil && p.TimesUsed >= *p.UsageLimit:
		return ignore(ReasonUsageLimit)
	case p.MinPurchaseAmount.Valid && subtotal.LessThan(p.MinPurchaseAmount.Decimal):
		return ignore(ReasonBelowMinimum)
	}

	var discount decimal.Decimal
	switch p.Type {
	case PromotionPercentage:
		discount = subtotal.Mul(p.Value).Div(hundred).Round(2)
	case PromotionFixed:
		discount = p.Value.Round(2)
	default:
		return ignore(ReasonUnsupportedType)
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return PromotionDecision{Applied: true, Discount: discount}
}

// Message renders r for end users.
func (r IgnoreReason) Message(p *Promotion) string {
	switch r {
	case ReasonNotFound:
		return "Invalid promotion code"
	case ReasonInactive:
		return "This promotion is no longer active"
	case ReasonNotStarted:
		return "This promotion has not started yet"
	case ReasonExpired:
		return "This promotion has expired"
	case ReasonUsageLimit:
		return "This promotion has reached its usage limit"
	case ReasonBelowMinimum:
		if p != nil && p.MinPurchaseAmount.Valid {
			return fmt.Sprintf("Minimum purchase amount of %s required", p.MinPurchaseAmount.Decimal.StringFixed(2))
		}
		return "Minimum purchase amount not reached"
	case ReasonUnsupportedType:
		return "This promotion cannot be applied"
	}
	return ""
}
