package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-order-fulfillment/internal/catalog"
	"github.com/ariefcatur/go-order-fulfillment/internal/discount"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// memStore is a transactional in-memory Store: each WithinTx works on a copy
// of the state and swaps it in only on success.
type memStore struct {
	mu    sync.Mutex
	state *memState
	// failInsert makes the next order insert fail, to exercise rollback.
	failInsert error
}

type memState struct {
	stock     map[string]inventory.Record
	logs      []inventory.StockLog
	orders    map[string]*orders.Order
	seq       []string
	discounts map[string]*discount.Discount
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		stock:     map[string]inventory.Record{},
		orders:    map[string]*orders.Order{},
		discounts: map[string]*discount.Discount{},
	}}
}

func (st *memState) clone() *memState {
	c := &memState{
		stock:     make(map[string]inventory.Record, len(st.stock)),
		logs:      slices.Clone(st.logs),
		orders:    make(map[string]*orders.Order, len(st.orders)),
		seq:       slices.Clone(st.seq),
		discounts: make(map[string]*discount.Discount, len(st.discounts)),
	}
	for k, v := range st.stock {
		c.stock[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range st.discounts {
		d := *v
		c.discounts[k] = &d
	}
	return c
}

func copyOrder(o *orders.Order) *orders.Order {
	c := *o
	return &c
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(ctx, memRepos{st: work, store: s}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *memStore) Reader() Repos {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memRepos{st: s.state.clone(), store: s}
}

func (s *memStore) record(id string) inventory.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.stock[id]
}

func (s *memStore) used(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.discounts[code].Used
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

type memRepos struct {
	st    *memState
	store *memStore
}

func (r memRepos) Stock() StockLedger            { return memLedger(r) }
func (r memRepos) Orders() OrderRepository       { return memOrders(r) }
func (r memRepos) Discounts() DiscountRepository { return memDiscounts(r) }

type memLedger memRepos

func (l memLedger) Create(_ context.Context, id string, onHand int) error {
	if _, ok := l.st.stock[id]; ok {
		return fmt.Errorf("inventory %s exists", id)
	}
	l.st.stock[id] = inventory.Record{ProductID: id, OnHand: onHand}
	return nil
}

func (l memLedger) Get(_ context.Context, id string) (inventory.Record, error) {
	r, ok := l.st.stock[id]
	if !ok {
		return inventory.Record{}, fmt.Errorf("%w: %s", inventory.ErrRecordNotFound, id)
	}
	return r, nil
}

func (l memLedger) Reserve(ctx context.Context, id string, qty int) error {
	r, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.Available() < qty {
		return &inventory.InsufficientStockError{ProductID: id, Requested: qty, Available: r.Available()}
	}
	r.Reserved += qty
	l.st.stock[id] = r
	return nil
}

func (l memLedger) Release(ctx context.Context, id string, qty int) (int, error) {
	r, err := l.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if r.Reserved < qty {
		return 0, &inventory.InvariantViolationError{Op: "release", ProductID: id, Qty: qty}
	}
	r.Reserved -= qty
	l.st.stock[id] = r
	return r.OnHand, nil
}

func (l memLedger) Consume(ctx context.Context, id string, qty int) (int, error) {
	r, err := l.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if r.Reserved < qty || r.OnHand < qty {
		return 0, &inventory.InvariantViolationError{Op: "consume", ProductID: id, Qty: qty}
	}
	r.Reserved -= qty
	r.OnHand -= qty
	l.st.stock[id] = r
	return r.OnHand, nil
}

func (l memLedger) Increase(ctx context.Context, id string, qty int) (int, error) {
	r, err := l.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	r.OnHand += qty
	l.st.stock[id] = r
	return r.OnHand, nil
}

func (l memLedger) Decrease(ctx context.Context, id string, qty int) (int, error) {
	r, err := l.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if r.OnHand-qty < r.Reserved {
		return 0, &inventory.InsufficientStockError{ProductID: id, Requested: qty, Available: r.Available()}
	}
	r.OnHand -= qty
	l.st.stock[id] = r
	return r.OnHand, nil
}

func (l memLedger) AppendLog(_ context.Context, e inventory.StockLog) error {
	e.ID = int64(len(l.st.logs) + 1)
	l.st.logs = append(l.st.logs, e)
	return nil
}

func (l memLedger) ListLogs(_ context.Context, id string, limit int) ([]inventory.StockLog, error) {
	var out []inventory.StockLog
	for i := len(l.st.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if l.st.logs[i].ProductID == id {
			out = append(out, l.st.logs[i])
		}
	}
	return out, nil
}

type memOrders memRepos

func (r memOrders) Insert(_ context.Context, o *orders.Order) error {
	if err := r.store.failInsert; err != nil {
		return err
	}
	if o.ExternalID != "" {
		for _, e := range r.st.orders {
			if e.ExternalID == o.ExternalID {
				return fmt.Errorf("%w: external id %s", orders.ErrAlreadyExists, o.ExternalID)
			}
		}
	}
	orders.RecomputeTotals(o)
	o.CreatedAt = time.Now().Add(time.Duration(len(r.st.seq)) * time.Millisecond)
	o.UpdatedAt = o.CreatedAt
	r.st.orders[o.ID] = copyOrder(o)
	r.st.seq = append(r.st.seq, o.ID)
	return nil
}

func (r memOrders) Update(_ context.Context, o *orders.Order) error {
	if _, ok := r.st.orders[o.ID]; !ok {
		return fmt.Errorf("%w: %s", orders.ErrNotFound, o.ID)
	}
	orders.RecomputeTotals(o)
	r.st.orders[o.ID] = copyOrder(o)
	return nil
}

func (r memOrders) Get(_ context.Context, id string) (*orders.Order, error) {
	o, ok := r.st.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrNotFound, id)
	}
	return copyOrder(o), nil
}

func (r memOrders) GetForUpdate(ctx context.Context, id string) (*orders.Order, error) {
	return r.Get(ctx, id)
}

func (r memOrders) GetByExternalID(_ context.Context, ext string) (*orders.Order, error) {
	for _, o := range r.st.orders {
		if o.ExternalID == ext {
			return copyOrder(o), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", orders.ErrNotFound, ext)
}

func (r memOrders) newestFirst() []*orders.Order {
	out := make([]*orders.Order, 0, len(r.st.seq))
	for i := len(r.st.seq) - 1; i >= 0; i-- {
		out = append(out, copyOrder(r.st.orders[r.st.seq[i]]))
	}
	return out
}

func (r memOrders) ListByUser(_ context.Context, userID string) ([]*orders.Order, error) {
	var out []*orders.Order
	for _, o := range r.newestFirst() {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r memOrders) ListPage(_ context.Context, page, size int) ([]*orders.Order, int, error) {
	all := r.newestFirst()
	from := min(page*size, len(all))
	to := min(from+size, len(all))
	return all[from:to], len(all), nil
}

func (r memOrders) CountByDiscountAndUser(_ context.Context, discountID, userID string) (int, error) {
	n := 0
	for _, o := range r.st.orders {
		if o.DiscountID == discountID && o.UserID == userID {
			n++
		}
	}
	return n, nil
}

type memDiscounts memRepos

func (r memDiscounts) Create(_ context.Context, d *discount.Discount) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, ok := r.st.discounts[d.Code]; ok {
		return fmt.Errorf("%w: %s", discount.ErrAlreadyExists, d.Code)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Used = 0
	c := *d
	r.st.discounts[d.Code] = &c
	return nil
}

func (r memDiscounts) FindByCode(_ context.Context, code string) (*discount.Discount, error) {
	d, ok := r.st.discounts[discount.NormalizeCode(code)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", discount.ErrNotFound, code)
	}
	c := *d
	return &c, nil
}

// FindByCodeForUpdate needs no lock: memStore runs one transaction at a time.
func (r memDiscounts) FindByCodeForUpdate(ctx context.Context, code string) (*discount.Discount, error) {
	return r.FindByCode(ctx, code)
}

func (r memDiscounts) IncrementUsed(_ context.Context, d *discount.Discount) error {
	cur := r.st.discounts[d.Code]
	if cur.MaxUsage != nil && cur.Used >= *cur.MaxUsage {
		return &discount.InvalidError{Code: d.Code, Reason: discount.ReasonUsageExhausted}
	}
	cur.Used++
	d.Used = cur.Used
	return nil
}

type fakeCatalog struct {
	users    map[string]bool
	products map[string]catalog.Product
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{users: map[string]bool{}, products: map[string]catalog.Product{}}
}

func (c *fakeCatalog) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
	}
	return p, nil
}

func (c *fakeCatalog) ListProducts(context.Context) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b catalog.Product) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (c *fakeCatalog) UserExists(_ context.Context, id string) (bool, error) {
	return c.users[id], nil
}

type sentEvent struct {
	Type    string
	OrderID string
	Status  orders.Status
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, eventType string, o *orders.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{Type: eventType, OrderID: o.ID, Status: o.Status})
	return n.err
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type mapIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *mapIdempotency) Lookup(_ context.Context, ext string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[ext]
	return id, ok, nil
}

func (m *mapIdempotency) Remember(_ context.Context, ext, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]string{}
	}
	m.keys[ext] = orderID
	return nil
}

var errBoom = errors.New("boom")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
