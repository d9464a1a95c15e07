// Package fulfillment drives orders from checkout to delivery or cancellation.
// Every transition runs in one store transaction that covers the order row,
// the stock ledger and discount usage, so a failure anywhere leaves nothing
// behind.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/catalog"
	"github.com/ariefcatur/go-order-fulfillment/internal/discount"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type Catalog interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	ListProducts(ctx context.Context) ([]catalog.Product, error)
}

type Users interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// Notifier is told about committed transitions. Errors are logged and never
// undo the transition.
type Notifier interface {
	Notify(ctx context.Context, eventType string, o *orders.Order) error
}

// Idempotency caches externalId -> orderId in front of the database unique
// constraint.
type Idempotency interface {
	Lookup(ctx context.Context, externalID string) (string, bool, error)
	Remember(ctx context.Context, externalID, orderID string) error
}

type Service struct {
	store    Store
	catalog  Catalog
	users    Users
	notifier Notifier
	idem     Idempotency
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithIdempotency(c Idempotency) Option { return func(s *Service) { s.idem = c } }

func NewService(store Store, cat Catalog, users Users, notifier Notifier, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		catalog:  cat,
		users:    users,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type CreateOrderInput struct {
	ExternalID      string            `json:"external_id"`
	UserID          string            `json:"user_id"`
	Items           []inventory.Item  `json:"items"`
	ShippingFee     decimal.Decimal   `json:"shipping_fee"`
	ShippingAddress map[string]string `json:"shipping_address"`
	DiscountCode    string            `json:"discount_code"`
}

// CreateOrder reserves stock for every line, applies the optional discount
// and persists a PENDING order. A repeated ExternalID returns the order that
// already carries it.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*orders.Order, error) {
	if existing, err := s.existing(ctx, in.ExternalID); existing != nil || err != nil {
		return existing, err
	}
	lines, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	var created *orders.Order
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Repos) error {
		o, err := s.create(ctx, tx, in, lines)
		created = o
		return err
	})
	if errors.Is(err, orders.ErrAlreadyExists) && in.ExternalID != "" {
		// Lost the race on the external id; our reservations rolled back.
		return s.store.Reader().Orders().GetByExternalID(ctx, in.ExternalID)
	}
	if err != nil {
		return nil, err
	}

	s.remember(ctx, created)
	s.log.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("user_id", created.UserID),
		zap.String("grand_total", created.GrandTotal().StringFixed(2)))
	s.notify(ctx, orders.EventOrderCreated, created)
	return created, nil
}

// CreateAndCompleteOrder is the point-of-sale path: create, confirm and
// deliver in a single transaction so a failed walk-in sale leaves no order.
func (s *Service) CreateAndCompleteOrder(ctx context.Context, in CreateOrderInput) (*orders.Order, error) {
	if existing, err := s.existing(ctx, in.ExternalID); existing != nil || err != nil {
		return existing, err
	}
	lines, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	var done *orders.Order
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Repos) error {
		o, err := s.create(ctx, tx, in, lines)
		if err != nil {
			return err
		}
		if err := s.confirm(ctx, tx, o); err != nil {
			return err
		}
		o.MarkDelivered(s.now())
		done = o
		return tx.Orders().Update(ctx, o)
	})
	if errors.Is(err, orders.ErrAlreadyExists) && in.ExternalID != "" {
		return s.store.Reader().Orders().GetByExternalID(ctx, in.ExternalID)
	}
	if err != nil {
		return nil, err
	}

	s.remember(ctx, done)
	s.log.Info("pos order completed", zap.String("order_id", done.ID))
	s.notify(ctx, orders.EventOrderDelivered, done)
	return done, nil
}

// ConfirmOrder consumes the reservations of a PENDING order and moves it to
// WAITING_FOR_DELIVERY.
func (s *Service) ConfirmOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	o, err := s.transition(ctx, orderID, s.confirm)
	if err != nil {
		return nil, err
	}
	s.log.Info("order confirmed", zap.String("order_id", o.ID))
	s.notify(ctx, orders.EventOrderConfirmed, o)
	return o, nil
}

// CancelOrder releases the reservations of a PENDING order.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	o, err := s.transition(ctx, orderID, s.cancel)
	if err != nil {
		return nil, err
	}
	s.log.Info("order cancelled", zap.String("order_id", o.ID))
	s.notify(ctx, orders.EventOrderCancelled, o)
	return o, nil
}

// ChangeOrderStatus applies an administrative status change. Leaving PENDING
// for a shipping state consumes stock exactly like ConfirmOrder, and moving to
// CANCELLED runs the cancellation path.
func (s *Service) ChangeOrderStatus(ctx context.Context, orderID, status string) (*orders.Order, error) {
	to, err := orders.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	var consumed bool
	o, err := s.transition(ctx, orderID, func(ctx context.Context, tx Repos, o *orders.Order) error {
		if !orders.CanTransition(o.Status, to) {
			reason := ReasonNotAllowed
			if o.Status.Terminal() {
				reason = ReasonTerminalState
			}
			return transitionErr(o, to, reason)
		}
		if to == orders.StatusCancelled {
			return s.cancel(ctx, tx, o)
		}
		if o.Status == orders.StatusPending {
			if err := s.confirm(ctx, tx, o); err != nil {
				return err
			}
			consumed = true
		}
		if to == orders.StatusDelivered {
			o.MarkDelivered(s.now())
		} else {
			o.Status = to
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status changed", zap.String("order_id", o.ID), zap.String("status", string(o.Status)))
	switch {
	case to == orders.StatusDelivered:
		s.notify(ctx, orders.EventOrderDelivered, o)
	case to == orders.StatusCancelled:
		s.notify(ctx, orders.EventOrderCancelled, o)
	case consumed:
		s.notify(ctx, orders.EventOrderConfirmed, o)
	}
	return o, nil
}

func (s *Service) MarkDelivered(ctx context.Context, orderID string) (*orders.Order, error) {
	return s.ChangeOrderStatus(ctx, orderID, string(orders.StatusDelivered))
}

// MarkOrderPaid records a successful gateway callback. Repeats are no-ops.
func (s *Service) MarkOrderPaid(ctx context.Context, orderID string) (*orders.Order, error) {
	o, err := s.transition(ctx, orderID, func(_ context.Context, _ Repos, o *orders.Order) error {
		if o.Status == orders.StatusCancelled {
			return transitionErr(o, o.Status, ReasonOrderCancelled)
		}
		o.MarkPaid()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order paid", zap.String("order_id", o.ID))
	return o, nil
}

// MarkOrderPaymentFailed records a failed gateway callback. A settled payment
// is never downgraded.
func (s *Service) MarkOrderPaymentFailed(ctx context.Context, orderID string) (*orders.Order, error) {
	o, err := s.transition(ctx, orderID, func(_ context.Context, _ Repos, o *orders.Order) error {
		if o.HasPaid {
			return transitionErr(o, o.Status, ReasonPaymentSettled)
		}
		o.MarkPaymentFailed()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order payment failed", zap.String("order_id", o.ID))
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	return s.store.Reader().Orders().Get(ctx, orderID)
}

func (s *Service) ListOrdersByUser(ctx context.Context, userID string) ([]*orders.Order, error) {
	return s.store.Reader().Orders().ListByUser(ctx, userID)
}

type Page struct {
	Orders []*orders.Order `json:"orders"`
	Page   int             `json:"page"`
	Size   int             `json:"size"`
	Total  int             `json:"total"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListOrdersPage lists all orders newest first. page is 0-based; size is
// clamped to [1, 100].
func (s *Service) ListOrdersPage(ctx context.Context, page, size int) (Page, error) {
	if page < 0 {
		page = 0
	}
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	list, total, err := s.store.Reader().Orders().ListPage(ctx, page, size)
	if err != nil {
		return Page{}, err
	}
	return Page{Orders: list, Page: page, Size: size, Total: total}, nil
}

// transition loads the order under a row lock, lets step mutate it and
// persists the result, all in one transaction.
func (s *Service) transition(ctx context.Context, orderID string,
	step func(ctx context.Context, tx Repos, o *orders.Order) error,
) (*orders.Order, error) {
	var out *orders.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Repos) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := step(ctx, tx, o); err != nil {
			return err
		}
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) confirm(ctx context.Context, tx Repos, o *orders.Order) error {
	to := orders.StatusWaitingForDelivery
	switch o.Status {
	case orders.StatusPending:
	case orders.StatusCancelled:
		return transitionErr(o, to, ReasonCannotConfirmCancelled)
	case orders.StatusDelivered:
		return transitionErr(o, to, ReasonAlreadyDelivered)
	default:
		return transitionErr(o, to, ReasonNotPending)
	}
	if err := inventory.NewCoordinator(tx.Stock()).ConsumeAll(ctx, o.ID, stockItems(o)); err != nil {
		return err
	}
	o.MarkConfirmed(s.now())
	return nil
}

func (s *Service) cancel(ctx context.Context, tx Repos, o *orders.Order) error {
	to := orders.StatusCancelled
	switch o.Status {
	case orders.StatusPending:
	case orders.StatusCancelled:
		return transitionErr(o, to, ReasonAlreadyCancelled)
	case orders.StatusDelivered:
		return transitionErr(o, to, ReasonCannotCancelDelivered)
	default:
		return transitionErr(o, to, ReasonCannotCancelShipping)
	}
	if err := inventory.NewCoordinator(tx.Stock()).ReleaseAll(ctx, o.ID, stockItems(o)); err != nil {
		return err
	}
	o.MarkCancelled(s.now())
	return nil
}

// prepare validates the request and snapshots catalog prices. It runs before
// any transaction opens so no row lock waits on the catalog.
func (s *Service) prepare(ctx context.Context, in CreateOrderInput) ([]orders.Item, error) {
	if len(in.Items) == 0 {
		return nil, orders.ErrEmptyOrder
	}
	merged, err := inventory.Normalize(in.Items)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orders.ErrInvalidQuantity, err)
	}
	if in.ShippingFee.IsNegative() {
		return nil, fmt.Errorf("%w: shipping fee", orders.ErrInvalidAmount)
	}

	ok, err := s.users.UserExists(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", in.UserID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, in.UserID)
	}

	lines := make([]orders.Item, 0, len(merged))
	for _, it := range merged {
		p, err := s.catalog.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, orders.Item{ProductID: p.ID, UnitPrice: p.Price, Quantity: it.Qty})
	}
	return lines, nil
}

// create performs reserve, discount evaluation and persistence inside tx.
func (s *Service) create(ctx context.Context, tx Repos, in CreateOrderInput, lines []orders.Item) (*orders.Order, error) {
	o, err := orders.New(s.newID(), in.UserID, lines, in.ShippingFee)
	if err != nil {
		return nil, err
	}
	o.ExternalID = in.ExternalID
	for k, v := range in.ShippingAddress {
		o.ShippingAddress[k] = v
	}

	if err := inventory.NewCoordinator(tx.Stock()).ReserveAll(ctx, stockItems(o)); err != nil {
		return nil, err
	}

	var applied *discount.Discount
	if in.DiscountCode != "" {
		// Stock rows are already locked; the discount row comes second.
		d, err := tx.Discounts().FindByCodeForUpdate(ctx, in.DiscountCode)
		if err != nil {
			return nil, err
		}
		prior := 0
		if d.PerUserLimit != nil {
			if prior, err = tx.Orders().CountByDiscountAndUser(ctx, d.ID, in.UserID); err != nil {
				return nil, err
			}
		}
		amount, err := discount.Evaluate(d, o.SubTotal(), o.ShippingFee(), in.UserID, prior, s.now())
		if err != nil {
			return nil, err
		}
		if err := o.ApplyDiscount(d.ID, amount); err != nil {
			return nil, err
		}
		applied = d
	}

	if err := tx.Orders().Insert(ctx, o); err != nil {
		return nil, err
	}
	if applied != nil {
		if err := tx.Discounts().IncrementUsed(ctx, applied); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (s *Service) existing(ctx context.Context, externalID string) (*orders.Order, error) {
	if externalID == "" {
		return nil, nil
	}
	if s.idem != nil {
		id, ok, err := s.idem.Lookup(ctx, externalID)
		if err != nil {
			s.log.Warn("idempotency lookup failed", zap.String("external_id", externalID), zap.Error(err))
		} else if ok {
			o, err := s.store.Reader().Orders().Get(ctx, id)
			if err == nil {
				return o, nil
			}
			if !errors.Is(err, orders.ErrNotFound) {
				return nil, err
			}
		}
	}
	o, err := s.store.Reader().Orders().GetByExternalID(ctx, externalID)
	if errors.Is(err, orders.ErrNotFound) {
		return nil, nil
	}
	return o, err
}

func (s *Service) remember(ctx context.Context, o *orders.Order) {
	if s.idem == nil || o.ExternalID == "" {
		return
	}
	if err := s.idem.Remember(ctx, o.ExternalID, o.ID); err != nil {
		s.log.Warn("idempotency remember failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, eventType string, o *orders.Order) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, eventType, o); err != nil {
		s.log.Warn("notify failed",
			zap.String("event", eventType),
			zap.String("order_id", o.ID),
			zap.Error(err))
	}
}

func stockItems(o *orders.Order) []inventory.Item {
	lines := o.Items()
	out := make([]inventory.Item, 0, len(lines))
	for _, it := range lines {
		out = append(out, inventory.Item{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return out
}
