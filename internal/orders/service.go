package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notifier is told about committed orders. OrderPlaced must return promptly;
// delivery failures are the notifier's problem, never the caller's.
type Notifier interface {
	OrderPlaced(o Order)
}

type Phase string

const (
	PhaseStarted         Phase = "started"
	PhaseValidated       Phase = "validated"
	PhaseReserved        Phase = "reserved"
	PhasePricingComputed Phase = "pricing_computed"
	PhaseCommitting      Phase = "committing"
	PhaseCommitted       Phase = "committed"
	PhaseAborted         Phase = "aborted"
)

const DefaultTimeout = 5 * time.Second

type Service struct {
	store    Store
	rules    PricingRules
	retry    RetryPolicy
	timeout  time.Duration
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithPricingRules(r PricingRules) Option { return func(s *Service) { s.rules = r } }
func WithRetryPolicy(p RetryPolicy) Option   { return func(s *Service) { s.retry = p } }
func WithTimeout(d time.Duration) Option     { return func(s *Service) { s.timeout = d } }
func WithNotifier(n Notifier) Option         { return func(s *Service) { s.notifier = n } }
func WithClock(now func() time.Time) Option  { return func(s *Service) { s.now = now } }
func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

func NewService(store Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		rules:   DefaultPricingRules(),
		retry:   DefaultRetryPolicy(),
		timeout: DefaultTimeout,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// PlaceOrder validates req, then reserves stock, prices the cart and writes the
// order in one transaction, retrying lost races. On success the order is
// committed and the notifier has been handed a copy.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	log := s.log.With(zap.String("user_id", req.UserID))
	log.Debug("place order", zap.String("phase", string(PhaseStarted)), zap.Int("lines", len(req.Items)))

	req, err := Validate(req)
	if err != nil {
		log.Debug("place order", zap.String("phase", string(PhaseAborted)), zap.Error(err))
		return nil, err
	}
	log.Debug("place order", zap.String("phase", string(PhaseValidated)))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	attempt := 0
	order, err := WithTransaction(ctx, s.store, s.retry, func(ctx context.Context, tx Tx) (*Order, error) {
		attempt++
		return s.placeOnce(ctx, tx, req, log.With(zap.Int("attempt", attempt)))
	})
	if err != nil {
		lvl := log.Debug
		if k := KindOf(err); k == KindConflict || k == KindInternal {
			lvl = log.Warn
		}
		lvl("place order", zap.String("phase", string(PhaseAborted)), zap.String("kind", string(KindOf(err))), zap.Error(err))
		return nil, err
	}

	log.Info("order placed",
		zap.String("phase", string(PhaseCommitted)),
		zap.String("order_id", order.ID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.Int("attempts", attempt),
	)
	if s.notifier != nil {
		s.notifier.OrderPlaced(*order)
	}
	return order, nil
}

func (s *Service) placeOnce(ctx context.Context, tx Tx, req PlaceOrderRequest, log *zap.Logger) (*Order, error) {
	now := s.now()

	ids := make([]string, len(req.Items))
	for i, line := range req.Items {
		ids[i] = line.ProductID
	}
	l := newLedger(tx)
	if err := l.load(ctx, ids); err != nil {
		return nil, err
	}

	items := make([]OrderItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, line := range req.Items {
		p, err := l.reserve(line.ProductID, line.Quantity)
		if err != nil {
			return nil, err
		}
		items = append(items, OrderItem{
			ProductID:    p.ID,
			Name:         p.Name,
			Quantity:     line.Quantity,
			Price:        p.Price,
			VendorID:     p.VendorID,
			RefundStatus: RefundNone,
		})
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	log.Debug("place order", zap.String("phase", string(PhaseReserved)))

	discount := decimal.Zero
	var promo *Promotion
	if req.PromotionCode != "" {
		p, err := tx.FindPromotionByCode(ctx, req.PromotionCode)
		if err != nil {
			return nil, storeErr("read promotion", err)
		}
		d := EvaluatePromotion(p, subtotal, now)
		if d.Applied {
			promo = p
			discount = d.Discount
		} else {
			log.Warn("promotion ignored",
				zap.String("promotion_code", req.PromotionCode),
				zap.String("promotion_reason", string(d.Reason)),
			)
		}
	}

	price := s.rules.Compute(subtotal, discount)
	log.Debug("place order", zap.String("phase", string(PhasePricingComputed)), zap.String("total", price.Total.StringFixed(2)))

	draft := orderDraft{ID: s.newID(), Request: req, Items: items, Price: price, At: now}
	if promo != nil {
		draft.PromotionCode = promo.Code
	}
	order := buildOrder(draft)

	log.Debug("place order", zap.String("phase", string(PhaseCommitting)), zap.String("order_id", order.ID))
	if err := l.apply(ctx, now); err != nil {
		return nil, err
	}
	if promo != nil {
		if err := tx.IncrementPromotionUsage(ctx, promo.ID, now); err != nil {
			return nil, storeErr("increment promotion usage", err)
		}
	}
	if err := writeOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, v Viewer, id string) (*Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, storeErr("get order", err)
	}
	// Orders the viewer may not see are reported as missing.
	if !v.CanView(o) {
		return nil, &NotFoundError{Entity: "order", ID: id}
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, v Viewer, limit int) ([]Order, error) {
	f := OrderFilter{Limit: limit}
	switch v.Role {
	case RoleAdmin:
	case RoleCustomer:
		f.UserID = v.UserID
	case RoleVendor:
		f.VendorID = v.UserID
	default:
		return nil, &ValidationError{Field: "role", Reason: "unknown role " + string(v.Role)}
	}
	out, err := s.store.ListOrders(ctx, f)
	if err != nil {
		return nil, storeErr("list orders", err)
	}
	return out, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	out, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, storeErr("list products", err)
	}
	return out, nil
}

type PromotionPreview struct {
	Promotion *Promotion      `json:"promotion"`
	Discount  decimal.Decimal `json:"discount"`
	Pricing   PriceBreakdown  `json:"pricing"`
}

// PreviewPromotion reports what code would take off subtotal right now. Unlike
// PlaceOrder, an unusable code is an error here.
func (s *Service) PreviewPromotion(ctx context.Context, code string, subtotal decimal.Decimal) (*PromotionPreview, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "is required"}
	}
	if subtotal.IsNegative() {
		return nil, &ValidationError{Field: "subtotal", Reason: "must not be negative"}
	}
	p, err := s.store.FindPromotionByCode(ctx, code)
	if err != nil {
		return nil, storeErr("read promotion", err)
	}
	if p == nil {
		return nil, &NotFoundError{Entity: "promotion", ID: code}
	}
	d := EvaluatePromotion(p, subtotal, s.now())
	if !d.Applied {
		return nil, &ValidationError{Field: "code", Reason: d.Reason.Message(p)}
	}
	return &PromotionPreview{
		Promotion: p,
		Discount:  d.Discount,
		Pricing:   s.rules.Compute(subtotal, d.Discount),
	}, nil
}
