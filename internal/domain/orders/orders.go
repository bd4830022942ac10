package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"solestore/internal/domain/carts"
	"solestore/internal/domain/products"
	"solestore/internal/params"
	"solestore/internal/recordstore"
)

const Collection = "orders"

var (
	ErrNotFound             = errors.New("order not found")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidTransition    = errors.New("order status transition not allowed")
	ErrRestockFailed        = errors.New("order cancelled but stock could not be restored")

	// ErrInsufficientStock is returned when checkout cannot reserve the cart.
	ErrInsufficientStock = products.ErrInsufficientStock
)

type Store interface {
	// Checkout
	CreateFromCart(ctx context.Context, in CheckoutInput) (*Order, error)

	// USER-facing
	ListByUser(ctx context.Context, userID, status string, p *params.Pagination) ([]*Order, int, error)
	GetForUser(ctx context.Context, userID, ref string) (*Order, error)
	CancelForUser(ctx context.Context, userID, ref, reason string) (*Order, error)

	// ADMIN-facing
	ListAll(ctx context.Context, status string, p *params.Pagination) ([]*Order, int, error)
	Get(ctx context.Context, ref string) (*Order, error)
	UpdateStatus(ctx context.Context, ref, status, note, actor string) (*Order, error)
	Revenue(ctx context.Context) (int64, error)
	Summary(ctx context.Context) (Summary, error)
	Recent(ctx context.Context, n int) ([]*Order, error)
}

type Repository struct {
	orders  *recordstore.Collection[*Order]
	carts   carts.Store
	catalog products.Store
	numbers *OrderNumberGenerator
	pricing Pricing
	now     func() time.Time
}

func NewRepository(s *recordstore.Store, cartStore carts.Store, catalog products.Store, numbers *OrderNumberGenerator, pricing Pricing) *Repository {
	return &Repository{
		orders:  recordstore.NewCollection[*Order](s, Collection),
		carts:   cartStore,
		catalog: catalog,
		numbers: numbers,
		pricing: pricing,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateFromCart turns the user's cart into a pending order. The cart is
// claimed first so two checkouts of one cart cannot both succeed. Stock and
// cart items are handed back if the order cannot be written.
func (r *Repository) CreateFromCart(ctx context.Context, in CheckoutInput) (*Order, error) {
	if !ValidPaymentMethod(in.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}
	claim, err := r.carts.Claim(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	view := claim.View
	if view.Empty() {
		return nil, ErrEmptyCart
	}

	reserve := make(map[string]int, len(view.Items))
	items := make([]Item, 0, len(view.Items))
	for _, line := range view.Items {
		reserve[line.ProductID] -= line.Quantity
		items = append(items, Item{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			ProductSlug:    line.ProductSlug,
			Size:           line.Size,
			Color:          line.Color,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			LineTotalCents: line.LineTotalCents,
			ImageURL:       line.ImageURL,
		})
	}

	if err := r.catalog.AdjustStock(ctx, reserve); err != nil {
		return nil, r.giveBack(ctx, claim, nil, fmt.Errorf("reserve stock: %w", err))
	}

	now := r.now()
	shipping := r.pricing.ShippingFor(view.SubtotalCents)
	order := &Order{
		UserID:          in.UserID,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerEmail:   in.CustomerEmail,
		Items:           items,
		SubtotalCents:   view.SubtotalCents,
		ShippingCents:   shipping,
		TotalCents:      view.SubtotalCents + shipping,
		Status:          StatusPending,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   initialPaymentStatus(in.PaymentMethod),
		ShippingAddress: in.Shipping,
		Notes:           strings.TrimSpace(in.Notes),
		History:         []StatusChange{{Status: StatusPending, At: now, By: in.UserID}},
	}

	if err := r.insert(ctx, order); err != nil {
		return nil, r.giveBack(ctx, claim, reserve, fmt.Errorf("create order: %w", err))
	}
	return order, nil
}

// giveBack undoes a failed checkout: reserved stock first, then the cart.
func (r *Repository) giveBack(ctx context.Context, claim *carts.Claim, reserved map[string]int, cause error) error {
	errs := []error{cause}
	if len(reserved) > 0 {
		if err := r.catalog.AdjustStock(ctx, negate(reserved)); err != nil {
			errs = append(errs, fmt.Errorf("restore stock: %w", err))
		}
	}
	if err := r.carts.Restore(ctx, claim); err != nil {
		errs = append(errs, fmt.Errorf("restore cart: %w", err))
	}
	if len(errs) == 1 {
		return cause
	}
	return errors.Join(errs...)
}

// insert assigns a unique order number and appends the order.
func (r *Repository) insert(ctx context.Context, order *Order) error {
	return r.orders.Mutate(ctx, func(all []*Order) ([]*Order, error) {
		taken := make(map[string]bool, len(all))
		for _, o := range all {
			taken[o.OrderNumber] = true
		}
		for attempt := 0; attempt < 5; attempt++ {
			num, err := r.numbers.Generate()
			if err != nil {
				return nil, err
			}
			if !taken[num] {
				order.OrderNumber = num
				return append(all, order), nil
			}
		}
		return nil, errors.New("could not allocate a unique order number")
	})
}

func initialPaymentStatus(method string) string {
	if method == PaymentCashOnDelivery {
		return PaymentStatusPending
	}
	return PaymentStatusPaid
}

func negate(deltas map[string]int) map[string]int {
	out := make(map[string]int, len(deltas))
	for id, d := range deltas {
		out[id] = -d
	}
	return out
}

// list returns orders matching keep, newest first.
func (r *Repository) list(ctx context.Context, keep func(*Order) bool) ([]*Order, error) {
	all, err := r.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Order, 0, len(all))
	for _, o := range all {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID, status string, p *params.Pagination) ([]*Order, int, error) {
	matched, err := r.list(ctx, func(o *Order) bool {
		return o.UserID == userID && (status == "" || o.Status == status)
	})
	if err != nil {
		return nil, 0, err
	}
	return params.Paginate(matched, p), len(matched), nil
}

func (r *Repository) ListAll(ctx context.Context, status string, p *params.Pagination) ([]*Order, int, error) {
	if status != "" && !ValidStatus(status) {
		return nil, 0, ErrInvalidStatus
	}
	matched, err := r.list(ctx, func(o *Order) bool { return status == "" || o.Status == status })
	if err != nil {
		return nil, 0, err
	}
	return params.Paginate(matched, p), len(matched), nil
}

// Get finds an order by id or order number.
func (r *Repository) Get(ctx context.Context, ref string) (*Order, error) {
	ref = strings.TrimSpace(ref)
	o, ok := r.orders.Find(ctx, func(o *Order) bool {
		return o.ID == ref || strings.EqualFold(o.OrderNumber, ref)
	})
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

// GetForUser hides other users' orders behind ErrNotFound.
func (r *Repository) GetForUser(ctx context.Context, userID, ref string) (*Order, error) {
	o, err := r.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (r *Repository) CancelForUser(ctx context.Context, userID, ref, reason string) (*Order, error) {
	if _, err := r.GetForUser(ctx, userID, ref); err != nil {
		return nil, err
	}
	return r.transition(ctx, ref, StatusCancelled, reason, userID)
}

func (r *Repository) UpdateStatus(ctx context.Context, ref, status, note, actor string) (*Order, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	return r.transition(ctx, ref, status, note, actor)
}

// transition moves an order along the status flow. Cancelling puts the
// reserved stock back; a failed restock is reported with ErrRestockFailed
// alongside the cancelled order.
func (r *Repository) transition(ctx context.Context, ref, status, note, actor string) (*Order, error) {
	var updated *Order
	err := r.orders.Mutate(ctx, func(all []*Order) ([]*Order, error) {
		for _, o := range all {
			if o.ID != ref && !strings.EqualFold(o.OrderNumber, ref) {
				continue
			}
			if !CanTransition(o.Status, status) {
				return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
			}
			o.Status = status
			o.History = append(o.History, StatusChange{Status: status, At: r.now(), Note: strings.TrimSpace(note), By: actor})
			switch status {
			case StatusCancelled:
				o.CancelReason = strings.TrimSpace(note)
				if o.PaymentStatus == PaymentStatusPaid {
					o.PaymentStatus = PaymentStatusRefunded
				}
			case StatusDelivered:
				o.PaymentStatus = PaymentStatusPaid
			}
			updated = o
			return all, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, err
	}

	if status == StatusCancelled {
		if err := r.restock(ctx, updated); err != nil {
			return updated, fmt.Errorf("%w: %v", ErrRestockFailed, err)
		}
	}
	return updated, nil
}

// restock returns an order's quantities to products that still exist.
func (r *Repository) restock(ctx context.Context, o *Order) error {
	deltas := map[string]int{}
	for _, it := range o.Items {
		if _, err := r.catalog.Get(ctx, it.ProductID); err != nil {
			if errors.Is(err, products.ErrNotFound) {
				continue
			}
			return err
		}
		deltas[it.ProductID] += it.Quantity
	}
	return r.catalog.AdjustStock(ctx, deltas)
}

// Revenue sums the totals of all orders that were not cancelled.
func (r *Repository) Revenue(ctx context.Context) (int64, error) {
	s, err := r.Summary(ctx)
	if err != nil {
		return 0, err
	}
	return s.RevenueCents, nil
}

func (r *Repository) Summary(ctx context.Context) (Summary, error) {
	all, err := r.orders.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Total: len(all), ByStatus: make(map[string]int, len(Statuses))}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	counted := 0
	for _, o := range all {
		s.ByStatus[o.Status]++
		if o.Status != StatusCancelled {
			s.RevenueCents += o.TotalCents
			counted++
		}
	}
	if counted > 0 {
		s.AverageOrderCents = s.RevenueCents / int64(counted)
	}
	return s, nil
}

func (r *Repository) Recent(ctx context.Context, n int) ([]*Order, error) {
	all, err := r.list(ctx, func(*Order) bool { return true })
	if err != nil {
		return nil, err
	}
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}
