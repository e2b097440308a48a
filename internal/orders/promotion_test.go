package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func intp(n int) *int { return &n }

func timep(t time.Time) *time.Time { return &t }

func activePromo(typ PromotionType, value string) *Promotion {
	return &Promotion{
		ID:        "promo-1",
		Code:      "SAVE10",
		Type:      typ,
		Value:     dec(value),
		IsActive:  true,
		StartDate: testNow.Add(-24 * time.Hour),
	}
}

func TestEvaluatePromotion(t *testing.T) {
	tests := []struct {
		name     string
		promo    func() *Promotion
		subtotal string
		applied  bool
		discount string
		reason   IgnoreReason
	}{
		{"percentage", func() *Promotion { return activePromo(PromotionPercentage, "10") }, "2000", true, "200", ReasonNone},
		{"percentage rounds to cents", func() *Promotion { return activePromo(PromotionPercentage, "15") }, "33.33", true, "5", ReasonNone},
		{"fixed", func() *Promotion { return activePromo(PromotionFixed, "150") }, "2000", true, "150", ReasonNone},
		{"fixed clamped to subtotal", func() *Promotion { return activePromo(PromotionFixed, "500") }, "300", true, "300", ReasonNone},
		{"unknown code", func() *Promotion { return nil }, "2000", false, "0", ReasonNotFound},
		{"inactive", func() *Promotion {
			p := activePromo(PromotionPercentage, "10")
			p.IsActive = false
			return p
		}, "2000", false, "0", ReasonInactive},
		{"not started", func() *Promotion {
			p := activePromo(PromotionPercentage, "10")
			p.StartDate = testNow.Add(time.Hour)
			return p
		}, "2000", false, "0", ReasonNotStarted},
		{"expired", func() *Promotion {
			p := activePromo(PromotionPercentage, "10")
			p.EndDate = timep(testNow)
			return p
		}, "2000", false, "0", ReasonExpired},
		{"usage cap reached", func() *Promotion {
			p := activePromo(PromotionPercentage, "10")
			p.UsageLimit = intp(3)
			p.TimesUsed = 3
			return p
		}, "2000", false, "0", ReasonUsageLimit},
		{"below minimum", func() *Promotion {
			p := activePromo(PromotionPercentage, "10")
			p.MinPurchaseAmount = decimal.NewNullDecimal(dec("2500"))
			return p
		}, "2000", false, "0", ReasonBelowMinimum},
		{"minimum met exactly", func() *Promotion {
			p := activePromo(PromotionPercentage, "10")
			p.MinPurchaseAmount = decimal.NewNullDecimal(dec("2000"))
			return p
		}, "2000", true, "200", ReasonNone},
		{"unsupported type", func() *Promotion { return activePromo("bogo", "10") }, "2000", false, "0", ReasonUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluatePromotion(tt.promo(), dec(tt.subtotal), testNow)
			assert.Equal(t, tt.applied, got.Applied)
			assert.Equal(t, tt.reason, got.Reason)
			assert.True(t, got.Discount.Equal(dec(tt.discount)), "discount %s", got.Discount)
		})
	}
}

func TestEvaluatePromotionDiscountBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		typ := rapid.SampledFrom([]PromotionType{PromotionPercentage, PromotionFixed}).Draw(t, "type")
		p := activePromo(typ, "0")
		p.Value = decimal.New(rapid.Int64Range(-1000, 100_000).Draw(t, "value_cents"), -2)
		subtotal := decimal.New(rapid.Int64Range(0, 10_000_000).Draw(t, "subtotal_cents"), -2)

		got := EvaluatePromotion(p, subtotal, testNow)
		if got.Discount.IsNegative() || got.Discount.GreaterThan(subtotal) {
			t.Fatalf("discount %s outside [0, %s]", got.Discount, subtotal)
		}
	})
}

func TestIgnoreReasonMessage(t *testing.T) {
	p := activePromo(PromotionPercentage, "10")
	p.MinPurchaseAmount = decimal.NewNullDecimal(dec("2500"))
	assert.Equal(t, "Minimum purchase amount of 2500.00 required", ReasonBelowMinimum.Message(p))
	assert.Equal(t, "This promotion has expired", ReasonExpired.Message(p))
	assert.Equal(t, "Invalid promotion code", ReasonNotFound.Message(nil))
}
