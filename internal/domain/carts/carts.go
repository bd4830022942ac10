package carts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"solestore/internal/domain/products"
	"solestore/internal/recordstore"

	"github.com/google/uuid"
)

const Collection = "carts"

var (
	ErrItemNotFound       = errors.New("cart item not found")
	ErrInvalidQuantity    = fmt.Errorf("quantity must be between 1 and %d", MaxItemQuantity)
	ErrInvalidOption      = errors.New("size or color not offered for this product")
	ErrProductUnavailable = errors.New("product is not available")
	ErrExceedsStock       = errors.New("quantity exceeds available stock")
)

type Store interface {
	GetView(ctx context.Context, userID string) (*CartView, error)
	AddItem(ctx context.Context, userID string, in AddItemInput) (*CartView, error)
	UpdateItemQty(ctx context.Context, userID, itemID string, qty int) (*CartView, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*CartView, error)
	Clear(ctx context.Context, userID string) error

	// Checkout
	Claim(ctx context.Context, userID string) (*Claim, error)
	Restore(ctx context.Context, claim *Claim) error
}

type Repository struct {
	carts   *recordstore.Collection[*Cart]
	catalog products.Store
	now     func() time.Time
}

func NewRepository(s *recordstore.Store, catalog products.Store) *Repository {
	return &Repository{
		carts:   recordstore.NewCollection[*Cart](s, Collection),
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) find(ctx context.Context, userID string) (*Cart, bool) {
	return r.carts.Find(ctx, func(c *Cart) bool { return c.UserID == userID })
}

// GetView prices the cart from the live catalog. Lines whose product was
// deleted or deactivated are left out.
func (r *Repository) GetView(ctx context.Context, userID string) (*CartView, error) {
	cart, ok := r.find(ctx, userID)
	if !ok {
		return &CartView{UserID: userID, Items: []CartLine{}}, nil
	}
	return r.price(ctx, userID, cart.ID, cart.Items)
}

func (r *Repository) price(ctx context.Context, userID, cartID string, items []Item) (*CartView, error) {
	view := &CartView{ID: cartID, UserID: userID, Items: []CartLine{}}
	for _, it := range items {
		p, err := r.catalog.Get(ctx, it.ProductID)
		if errors.Is(err, products.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !p.IsActive {
			continue
		}
		price := p.EffectivePriceCents()
		line := CartLine{
			ItemID:         it.ID,
			ProductID:      p.ID,
			ProductName:    p.Name,
			ProductSlug:    p.Slug,
			Brand:          p.Brand,
			Size:           it.Size,
			Color:          it.Color,
			Quantity:       it.Quantity,
			UnitPriceCents: price,
			LineTotalCents: price * int64(it.Quantity),
			ImageURL:       p.PrimaryImage(),
			Stock:          p.Stock,
			PriceChanged:   price != it.UnitPriceCents,
		}
		view.Items = append(view.Items, line)
		view.ItemCount += it.Quantity
		view.SubtotalCents += line.LineTotalCents
	}
	return view, nil
}

// AddItem merges with an existing line of the same product, size and color.
// The merged quantity may not exceed stock or MaxItemQuantity.
func (r *Repository) AddItem(ctx context.Context, userID string, in AddItemInput) (*CartView, error) {
	if in.Quantity < 1 || in.Quantity > MaxItemQuantity {
		return nil, ErrInvalidQuantity
	}
	p, err := r.catalog.Get(ctx, in.ProductID)
	if errors.Is(err, products.ErrNotFound) {
		return nil, ErrProductUnavailable
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrProductUnavailable
	}
	size, ok := canonicalOption(p.Sizes, in.Size)
	if !ok {
		return nil, ErrInvalidOption
	}
	color, ok := canonicalOption(p.Colors, in.Color)
	if !ok {
		return nil, ErrInvalidOption
	}

	err = r.carts.Mutate(ctx, func(all []*Cart) ([]*Cart, error) {
		cart := cartFor(&all, userID)
		for i := range cart.Items {
			it := &cart.Items[i]
			if it.ProductID == p.ID && it.Size == size && it.Color == color {
				qty := it.Quantity + in.Quantity
				if err := checkQuantity(qty, p.Stock); err != nil {
					return nil, err
				}
				it.Quantity = qty
				it.UnitPriceCents = p.EffectivePriceCents()
				return all, nil
			}
		}
		if err := checkQuantity(in.Quantity, p.Stock); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, Item{
			ID:             uuid.NewString(),
			ProductID:      p.ID,
			Size:           size,
			Color:          color,
			Quantity:       in.Quantity,
			UnitPriceCents: p.EffectivePriceCents(),
			AddedAt:        r.now(),
		})
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetView(ctx, userID)
}

// UpdateItemQty sets a line's quantity. Zero removes the line.
func (r *Repository) UpdateItemQty(ctx context.Context, userID, itemID string, qty int) (*CartView, error) {
	if qty == 0 {
		return r.RemoveItem(ctx, userID, itemID)
	}
	if qty < 0 || qty > MaxItemQuantity {
		return nil, ErrInvalidQuantity
	}
	cart, ok := r.find(ctx, userID)
	if !ok {
		return nil, ErrItemNotFound
	}
	var productID string
	for _, it := range cart.Items {
		if it.ID == itemID {
			productID = it.ProductID
		}
	}
	if productID == "" {
		return nil, ErrItemNotFound
	}
	p, err := r.catalog.Get(ctx, productID)
	if errors.Is(err, products.ErrNotFound) {
		return nil, ErrProductUnavailable
	}
	if err != nil {
		return nil, err
	}

	err = r.carts.Mutate(ctx, func(all []*Cart) ([]*Cart, error) {
		for _, c := range all {
			if c.UserID != userID {
				continue
			}
			for i := range c.Items {
				if c.Items[i].ID == itemID {
					if err := checkQuantity(qty, p.Stock); err != nil {
						return nil, err
					}
					c.Items[i].Quantity = qty
					return all, nil
				}
			}
		}
		return nil, ErrItemNotFound
	})
	if err != nil {
		return nil, err
	}
	return r.GetView(ctx, userID)
}

func (r *Repository) RemoveItem(ctx context.Context, userID, itemID string) (*CartView, error) {
	err := r.carts.Mutate(ctx, func(all []*Cart) ([]*Cart, error) {
		for _, c := range all {
			if c.UserID != userID {
				continue
			}
			for i := range c.Items {
				if c.Items[i].ID == itemID {
					c.Items = append(c.Items[:i], c.Items[i+1:]...)
					return all, nil
				}
			}
		}
		return nil, ErrItemNotFound
	})
	if err != nil {
		return nil, err
	}
	return r.GetView(ctx, userID)
}

// Clear empties the user's cart. Clearing a cart that does not exist is not
// an error.
func (r *Repository) Clear(ctx context.Context, userID string) error {
	if _, ok := r.find(ctx, userID); !ok {
		return nil
	}
	return r.carts.Mutate(ctx, func(all []*Cart) ([]*Cart, error) {
		for _, c := range all {
			if c.UserID == userID {
				c.Items = []Item{}
			}
		}
		return all, nil
	})
}

var errNothingToClaim = errors.New("nothing to claim")

// Claim empties the user's cart in one locked step and prices what it held.
// Concurrent claims on the same cart never see the same items. A claim whose
// view is empty has already been handed back.
func (r *Repository) Claim(ctx context.Context, userID string) (*Claim, error) {
	claim := &Claim{UserID: userID}
	err := r.carts.Mutate(ctx, func(all []*Cart) ([]*Cart, error) {
		for _, c := range all {
			if c.UserID == userID && len(c.Items) > 0 {
				claim.cartID = c.ID
				claim.items = c.Items
				c.Items = []Item{}
				return all, nil
			}
		}
		return nil, errNothingToClaim
	})
	if errors.Is(err, errNothingToClaim) {
		claim.View = &CartView{UserID: userID, Items: []CartLine{}}
		return claim, nil
	}
	if err != nil {
		return nil, err
	}

	claim.View, err = r.price(ctx, userID, claim.cartID, claim.items)
	if err == nil && claim.View.Empty() {
		err = r.Restore(ctx, claim)
	}
	if err != nil {
		if claim.items != nil {
			err = errors.Join(err, r.Restore(ctx, claim))
		}
		return nil, err
	}
	return claim, nil
}

// Restore puts claimed items back in front of anything added since the
// claim. Restoring twice is harmless.
func (r *Repository) Restore(ctx context.Context, claim *Claim) error {
	if claim == nil || len(claim.items) == 0 {
		return nil
	}
	items := claim.items
	err := r.carts.Mutate(ctx, func(all []*Cart) ([]*Cart, error) {
		cart := cartFor(&all, claim.UserID)
		present := make(map[string]bool, len(cart.Items))
		for _, it := range cart.Items {
			present[it.ID] = true
		}
		back := make([]Item, 0, len(items)+len(cart.Items))
		for _, it := range items {
			if !present[it.ID] {
				back = append(back, it)
			}
		}
		cart.Items = append(back, cart.Items...)
		return all, nil
	})
	if err != nil {
		return err
	}
	claim.items = nil
	return nil
}

// cartFor returns the user's cart inside *all, appending a new one if needed.
func cartFor(all *[]*Cart, userID string) *Cart {
	for _, c := range *all {
		if c.UserID == userID {
			return c
		}
	}
	c := &Cart{UserID: userID, Items: []Item{}}
	*all = append(*all, c)
	return c
}

func checkQuantity(qty, stock int) error {
	if qty > MaxItemQuantity {
		return ErrInvalidQuantity
	}
	if qty > stock {
		return ErrExceedsStock
	}
	return nil
}

// canonicalOption matches v case-insensitively against the offered options
// and returns the catalog's spelling.
func canonicalOption(options []string, v string) (string, bool) {
	v = strings.TrimSpace(v)
	if len(options) == 0 {
		return "", v == ""
	}
	for _, o := range options {
		if strings.EqualFold(o, v) {
			return o, true
		}
	}
	return "", false
}
