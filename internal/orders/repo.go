package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes that mean the transaction lost a race and may be rerun.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// Repo is the Postgres Store. Transactions run at REPEATABLE READ, so a row
// changed by a concurrent commit after our snapshot makes our UPDATE fail with
// a serialization error instead of silently overwriting it.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return classifyPg(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return classifyPg(err)
	}
	return classifyPg(tx.Commit(ctx))
}

func classifyPg(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected) {
		return fmt.Errorf("%w: %s", ErrWriteConflict, pgErr.Message)
	}
	return err
}

type pgTx struct{ tx pgx.Tx }

const productColumns = `id, name, price, stock, COALESCE(vendor_id, ''), last_stock_update, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.VendorID, &p.LastStockUpdate, &p.UpdatedAt)
	return p, err
}

// one round trip for the whole cart
func (t *pgTx) GetProducts(ctx context.Context, ids []string) (map[string]Product, error) {
	b := &pgx.Batch{}
	for _, id := range ids {
		b.Queue(`SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	}
	br := t.tx.SendBatch(ctx, b)

	out := make(map[string]Product, len(ids))
	for range ids {
		p, err := scanProduct(br.QueryRow())
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			_ = br.Close()
			return nil, err
		}
		out[p.ID] = p
	}
	if err := br.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

const promotionColumns = `id, code, COALESCE(description, ''), type, value, is_active, start_date, end_date,
	usage_limit, times_used, min_purchase_amount, created_at, updated_at`

func scanPromotion(row pgx.Row) (*Promotion, error) {
	var p Promotion
	var typ string
	err := row.Scan(&p.ID, &p.Code, &p.Description, &typ, &p.Value, &p.IsActive, &p.StartDate, &p.EndDate,
		&p.UsageLimit, &p.TimesUsed, &p.MinPurchaseAmount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Type = PromotionType(typ)
	return &p, nil
}

func (t *pgTx) FindPromotionByCode(ctx context.Context, code string) (*Promotion, error) {
	return scanPromotion(t.tx.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE code=$1`, code))
}

// DecrementStock never lets stock go negative. Zero affected rows means stock
// moved below qty after our read; the attempt is rerun against fresh state.
func (t *pgTx) DecrementStock(ctx context.Context, productID string, qty int, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, last_stock_update = $3, updated_at = $3
		WHERE id = $1 AND stock >= $2`, productID, qty, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: stock of %s changed", ErrWriteConflict, productID)
	}
	return nil
}

func (t *pgTx) IncrementPromotionUsage(ctx context.Context, promotionID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE promotions SET times_used = times_used + 1, updated_at = $2
		WHERE id = $1 AND (usage_limit IS NULL OR times_used < usage_limit)`, promotionID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: usage of promotion %s changed", ErrWriteConflict, promotionID)
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return err
	}
	var promo *string
	if o.PromotionCode != "" {
		promo = &o.PromotionCode
	}
	vendors := o.VendorIDs
	if vendors == nil {
		vendors = []string{}
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, shipping_address, payment_method, status, status_history,
			subtotal, discount_amount, tax_amount, shipping_cost, total_amount, promotion_code, vendor_ids,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.UserID, addr, o.PaymentMethod, string(o.Status), history,
		o.Subtotal, o.DiscountAmount, o.TaxAmount, o.ShippingCost, o.TotalAmount, promo, vendors,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return err
	}

	b := &pgx.Batch{}
	for i, it := range o.Items {
		b.Queue(`
			INSERT INTO order_items(order_id, position, product_id, name, qty, price, vendor_id, refund_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.ID, i, it.ProductID, it.Name, it.Quantity, it.Price, it.VendorID, string(it.RefundStatus),
		)
	}
	return t.tx.SendBatch(ctx, b).Close()
}

const orderColumns = `id, user_id, shipping_address, payment_method, status, status_history,
	subtotal, discount_amount, tax_amount, shipping_cost, total_amount, COALESCE(promotion_code, ''), vendor_ids,
	created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o       Order
		status  string
		addr    []byte
		history []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &addr, &o.PaymentMethod, &status, &history,
		&o.Subtotal, &o.DiscountAmount, &o.TaxAmount, &o.ShippingCost, &o.TotalAmount, &o.PromotionCode, &o.VendorIDs,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return Order{}, fmt.Errorf("decode shipping_address of %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(history, &o.StatusHistory); err != nil {
		return Order{}, fmt.Errorf("decode status_history of %s: %w", o.ID, err)
	}
	return o, nil
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	out := []Order{o}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (r *Repo) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.VendorID != "" {
		args = append(args, f.VendorID)
		where = append(where, fmt.Sprintf("$%d = ANY(vendor_ids)", len(args)))
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) attachItems(ctx context.Context, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	idx := make(map[string]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		idx[o.ID] = i
		list[i].Items = []OrderItem{}
	}
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, name, qty, price, vendor_id, refund_status
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			it      OrderItem
			refund  string
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Quantity, &it.Price, &it.VendorID, &refund); err != nil {
			return err
		}
		it.RefundStatus = RefundStatus(refund)
		i := idx[orderID]
		list[i].Items = append(list[i].Items, it)
	}
	return rows.Err()
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) FindPromotionByCode(ctx context.Context, code string) (*Promotion, error) {
	return scanPromotion(r.DB.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE code=$1`, code))
}

// SeedProduct: upsert, for fixtures and local setup.
func (r *Repo) SeedProduct(ctx context.Context, p Product) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, name, price, stock, vendor_id, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), now())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
			stock = EXCLUDED.stock, vendor_id = EXCLUDED.vendor_id, updated_at = now()`,
		p.ID, p.Name, p.Price, p.Stock, p.VendorID)
	return err
}

func (r *Repo) SeedPromotion(ctx context.Context, p Promotion) error {
	var desc *string
	if p.Description != "" {
		desc = &p.Description
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO promotions(id, code, description, type, value, is_active, start_date, end_date,
			usage_limit, times_used, min_purchase_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, description = EXCLUDED.description,
			type = EXCLUDED.type, value = EXCLUDED.value, is_active = EXCLUDED.is_active,
			start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date, usage_limit = EXCLUDED.usage_limit,
			times_used = EXCLUDED.times_used, min_purchase_amount = EXCLUDED.min_purchase_amount, updated_at = now()`,
		p.ID, NormalizeCode(p.Code), desc, string(p.Type), p.Value, p.IsActive, p.StartDate, p.EndDate,
		p.UsageLimit, p.TimesUsed, p.MinPurchaseAmount)
	return err
}

var _ Store = (*Repo)(nil)
var _ Store = (*MemStore)(nil)
