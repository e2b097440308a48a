package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

type memDoc[T any] struct {
	val     T
	version uint64
}

// MemStore is an in-process Store. Transactions read committed state, record the
// version of everything they read and buffer their writes; commit fails with
// ErrWriteConflict if any of those versions moved in the meantime.
type MemStore struct {
	mu         sync.RWMutex
	products   map[string]memDoc[Product]
	promotions map[string]memDoc[Promotion]
	promoCodes map[string]string
	orders     map[string]Order
	orderSeq   []string
}

func NewMemStore() *MemStore {
	return &MemStore{
		products:   make(map[string]memDoc[Product]),
		promotions: make(map[string]memDoc[Promotion]),
		promoCodes: make(map[string]string),
		orders:     make(map[string]Order),
	}
}

func (m *MemStore) PutProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.products[p.ID]
	m.products[p.ID] = memDoc[Product]{val: p, version: d.version + 1}
}

func (m *MemStore) PutPromotion(p Promotion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Code = NormalizeCode(p.Code)
	d := m.promotions[p.ID]
	m.promotions[p.ID] = memDoc[Promotion]{val: p, version: d.version + 1}
	m.promoCodes[p.Code] = p.ID
}

func (m *MemStore) Product(id string) (Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.products[id]
	return d.val, ok
}

func (m *MemStore) Promotion(id string) (Promotion, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.promotions[id]
	return d.val, ok
}

type memSeed struct {
	Products   []Product   `json:"products"`
	Promotions []Promotion `json:"promotions"`
}

// LoadSeed: {"products":[...],"promotions":[...]}
func (m *MemStore) LoadSeed(r io.Reader) error {
	var s memSeed
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, p := range s.Products {
		m.PutProduct(p)
	}
	for _, p := range s.Promotions {
		m.PutPromotion(p)
	}
	return nil
}

func (m *MemStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{
		store:     m,
		readProd:  make(map[string]uint64),
		readPromo: make(map[string]uint64),
		decrement: make(map[string]int),
		useCount:  make(map[string]int),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.commit(tx)
}

func (m *MemStore) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, v := range tx.readProd {
		if m.products[id].version != v {
			return fmt.Errorf("%w: product %s changed", ErrWriteConflict, id)
		}
	}
	for id, v := range tx.readPromo {
		if m.promotions[id].version != v {
			return fmt.Errorf("%w: promotion %s changed", ErrWriteConflict, id)
		}
	}
	for _, o := range tx.inserts {
		if _, ok := m.orders[o.ID]; ok {
			return fmt.Errorf("order %s already exists", o.ID)
		}
	}

	for id, qty := range tx.decrement {
		d := m.products[id]
		stock := *d.val.Stock - qty
		d.val.Stock = &stock
		at := tx.stockAt
		d.val.LastStockUpdate = &at
		d.val.UpdatedAt = at
		d.version++
		m.products[id] = d
	}
	for id, n := range tx.useCount {
		d := m.promotions[id]
		d.val.TimesUsed += n
		d.val.UpdatedAt = tx.promoAt
		d.version++
		m.promotions[id] = d
	}
	for _, o := range tx.inserts {
		m.orders[o.ID] = o
		m.orderSeq = append(m.orderSeq, o.ID)
	}
	return nil
}

func (m *MemStore) GetOrder(_ context.Context, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, &NotFoundError{Entity: "order", ID: id}
	}
	o = cloneOrder(o)
	return &o, nil
}

// ListOrders returns matching orders newest first.
func (m *MemStore) ListOrders(_ context.Context, f OrderFilter) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Order{}
	for i := len(m.orderSeq) - 1; i >= 0; i-- {
		o := m.orders[m.orderSeq[i]]
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.VendorID != "" && !(Viewer{UserID: f.VendorID, Role: RoleVendor}).CanView(&o) {
			continue
		}
		out = append(out, cloneOrder(o))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemStore) ListProducts(_ context.Context) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Product, 0, len(m.products))
	for _, d := range m.products {
		out = append(out, d.val)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) FindPromotionByCode(_ context.Context, code string) (*Promotion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.promoCodes[code]
	if !ok {
		return nil, nil
	}
	p := m.promotions[id].val
	return &p, nil
}

type memTx struct {
	store     *MemStore
	readProd  map[string]uint64
	readPromo map[string]uint64
	decrement map[string]int
	useCount  map[string]int
	inserts   []Order
	stockAt   time.Time
	promoAt   time.Time
}

func (t *memTx) GetProducts(_ context.Context, ids []string) (map[string]Product, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		d, ok := t.store.products[id]
		t.readProd[id] = d.version
		if ok {
			out[id] = d.val
		}
	}
	return out, nil
}

func (t *memTx) FindPromotionByCode(_ context.Context, code string) (*Promotion, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	id, ok := t.store.promoCodes[code]
	if !ok {
		return nil, nil
	}
	d := t.store.promotions[id]
	t.readPromo[id] = d.version
	p := d.val
	return &p, nil
}

// DecrementStock only accepts products read in this transaction; the commit
// version check is what keeps the decrement conditional.
func (t *memTx) DecrementStock(_ context.Context, productID string, qty int, at time.Time) error {
	if _, ok := t.readProd[productID]; !ok {
		return fmt.Errorf("decrement stock: product %s was not read in this transaction", productID)
	}
	t.decrement[productID] += qty
	t.stockAt = at
	return nil
}

func (t *memTx) IncrementPromotionUsage(_ context.Context, promotionID string, at time.Time) error {
	if _, ok := t.readPromo[promotionID]; !ok {
		return fmt.Errorf("increment usage: promotion %s was not read in this transaction", promotionID)
	}
	t.useCount[promotionID]++
	t.promoAt = at
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	t.inserts = append(t.inserts, cloneOrder(*o))
	return nil
}

// cloneOrder copies the slices of o so stored orders never alias caller memory.
func cloneOrder(o Order) Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	o.StatusHistory = append([]StatusEntry(nil), o.StatusHistory...)
	o.VendorIDs = append([]string{}, o.VendorIDs...)
	return o
}
