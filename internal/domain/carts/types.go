package carts

import (
	"time"

	"solestore/internal/recordstore"
)

const MaxItemQuantity = 10

// Cart is one user's cart record. Items keep the unit price seen when they
// were added; views always price lines from the live catalog.
type Cart struct {
	recordstore.Meta
	UserID string `json:"user_id"`
	Items  []Item `json:"items"`
}

type Item struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	Size           string    `json:"size,omitempty"`
	Color          string    `json:"color,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	AddedAt        time.Time `json:"added_at"`
}

type AddItemInput struct {
	ProductID string
	Size      string
	Color     string
	Quantity  int
}

type CartView struct {
	ID            string     `json:"id,omitempty"`
	UserID        string     `json:"user_id"`
	Items         []CartLine `json:"items"`
	ItemCount     int        `json:"item_count"`
	SubtotalCents int64      `json:"subtotal_cents"`
}

type CartLine struct {
	ItemID         string `json:"item_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	ProductSlug    string `json:"product_slug"`
	Brand          string `json:"brand,omitempty"`
	Size           string `json:"size,omitempty"`
	Color          string `json:"color,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
	ImageURL       string `json:"image_url,omitempty"`
	Stock          int    `json:"stock"`
	PriceChanged   bool   `json:"price_changed"`
}

// Claim holds the items taken out of a cart for checkout.
type Claim struct {
	UserID string
	View   *CartView

	cartID string
	items  []Item
}

func (v *CartView) Empty() bool { return len(v.Items) == 0 }
