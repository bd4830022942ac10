package products

import (
	"strings"

	"solestore/internal/recordstore"
)

type Category struct {
	recordstore.Meta
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description,omitempty"`
	ParentID    *string `json:"parent_id,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	IsActive    bool    `json:"is_active"`
	SortOrder   int     `json:"sort_order"`
}

type CategoryNode struct {
	*Category
	Level    int             `json:"level"`
	Path     []string        `json:"path"`
	Children []*CategoryNode `json:"children,omitempty"`
}

type Product struct {
	recordstore.Meta
	Name           string   `json:"name"`
	Slug           string   `json:"slug"`
	Description    string   `json:"description,omitempty"`
	Brand          string   `json:"brand"`
	CategoryID     string   `json:"category_id,omitempty"`
	Gender         string   `json:"gender,omitempty"`
	PriceCents     int64    `json:"price_cents"`
	SalePriceCents *int64   `json:"sale_price_cents,omitempty"`
	Sizes          []string `json:"sizes"`
	Colors         []string `json:"colors"`
	Stock          int      `json:"stock"`
	Images         []string `json:"images"`
	Rating         float64  `json:"rating"`
	ReviewCount    int      `json:"review_count"`
	Featured       bool     `json:"featured"`
	IsActive       bool     `json:"is_active"`
}

// EffectivePriceCents is what a customer pays for one unit.
func (p *Product) EffectivePriceCents() int64 {
	if p.OnSale() {
		return *p.SalePriceCents
	}
	return p.PriceCents
}

func (p *Product) OnSale() bool {
	return p.SalePriceCents != nil && *p.SalePriceCents > 0 && *p.SalePriceCents < p.PriceCents
}

func (p *Product) InStock() bool { return p.Stock > 0 }

// HasSize reports whether size is offered. A product without sizes accepts
// only the empty size.
func (p *Product) HasSize(size string) bool {
	return hasOption(p.Sizes, size)
}

func (p *Product) HasColor(color string) bool {
	return hasOption(p.Colors, color)
}

func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func hasOption(options []string, v string) bool {
	if len(options) == 0 {
		return v == ""
	}
	for _, o := range options {
		if strings.EqualFold(o, v) {
			return true
		}
	}
	return false
}

var Genders = []string{"men", "women", "unisex", "kids"}

type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type PriceRange struct {
	MinCents int64 `json:"min_cents"`
	MaxCents int64 `json:"max_cents"`
}

// Facets summarises the active catalog for storefront filter widgets.
type Facets struct {
	Brands     []FacetValue `json:"brands"`
	Sizes      []FacetValue `json:"sizes"`
	Colors     []FacetValue `json:"colors"`
	Genders    []FacetValue `json:"genders"`
	Categories []FacetValue `json:"categories"`
	Price      PriceRange   `json:"price"`
	Total      int          `json:"total"`
}

type Stats struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	OutOfStock int `json:"out_of_stock"`
	LowStock   int `json:"low_stock"`
	Categories int `json:"categories"`
}
