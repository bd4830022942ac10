package products

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNameAsc   = "name_asc"
	SortNameDesc  = "name_desc"
	SortRating    = "rating"
)

var validSorts = map[string]bool{
	SortNewest: true, SortOldest: true, SortPriceAsc: true, SortPriceDesc: true,
	SortNameAsc: true, SortNameDesc: true, SortRating: true,
}

var ErrInvalidFilter = errors.New("invalid product filter")

// Filter narrows a product listing. Zero values match everything.
type Filter struct {
	Query    string
	Category string // slug or id, subcategories included
	Brands   []string
	Sizes    []string
	Colors   []string
	Gender   string
	MinPrice *int64
	MaxPrice *int64
	InStock  bool
	Featured *bool
	OnSale   bool
	Sort     string

	IncludeInactive bool
}

// ParseFilter reads a filter from query parameters. Repeatable parameters
// also accept comma separated values.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Query:    strings.TrimSpace(q.Get("q")),
		Category: strings.TrimSpace(q.Get("category")),
		Brands:   multi(q, "brand"),
		Sizes:    multi(q, "size"),
		Colors:   multi(q, "color"),
		Gender:   strings.ToLower(strings.TrimSpace(q.Get("gender"))),
		Sort:     strings.ToLower(strings.TrimSpace(q.Get("sort"))),
	}

	var err error
	if f.MinPrice, err = optionalCents(q, "min_price"); err != nil {
		return Filter{}, err
	}
	if f.MaxPrice, err = optionalCents(q, "max_price"); err != nil {
		return Filter{}, err
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return Filter{}, fmt.Errorf("%w: min_price is greater than max_price", ErrInvalidFilter)
	}

	if f.InStock, err = optionalBool(q, "in_stock"); err != nil {
		return Filter{}, err
	}
	if f.OnSale, err = optionalBool(q, "on_sale"); err != nil {
		return Filter{}, err
	}
	if s := strings.TrimSpace(q.Get("featured")); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: invalid featured", ErrInvalidFilter)
		}
		f.Featured = &v
	}

	if f.Sort == "" {
		f.Sort = SortNewest
	}
	if !validSorts[f.Sort] {
		return Filter{}, fmt.Errorf("%w: unknown sort %q", ErrInvalidFilter, f.Sort)
	}
	return f, nil
}

func multi(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func optionalCents(q url.Values, key string) (*int64, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("%w: invalid %s", ErrInvalidFilter, key)
	}
	return &v, nil
}

func optionalBool(q url.Values, key string) (bool, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: invalid %s", ErrInvalidFilter, key)
	}
	return v, nil
}

// match reports whether p passes f. categories is the set of category ids the
// Category reference expands to, nil when no category was requested.
func (f *Filter) match(p *Product, categories map[string]bool) bool {
	if !f.IncludeInactive && !p.IsActive {
		return false
	}
	if categories != nil && !categories[p.CategoryID] {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) &&
			!strings.Contains(strings.ToLower(p.Brand), q) {
			return false
		}
	}
	if len(f.Brands) > 0 && !containsFold(f.Brands, p.Brand) {
		return false
	}
	if len(f.Sizes) > 0 && !overlapFold(f.Sizes, p.Sizes) {
		return false
	}
	if len(f.Colors) > 0 && !overlapFold(f.Colors, p.Colors) {
		return false
	}
	if f.Gender != "" && !strings.EqualFold(f.Gender, p.Gender) {
		return false
	}
	price := p.EffectivePriceCents()
	if f.MinPrice != nil && price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && price > *f.MaxPrice {
		return false
	}
	if f.InStock && !p.InStock() {
		return false
	}
	if f.OnSale && !p.OnSale() {
		return false
	}
	if f.Featured != nil && p.Featured != *f.Featured {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func overlapFold(want, have []string) bool {
	for _, w := range want {
		if containsFold(have, w) {
			return true
		}
	}
	return false
}

func sortProducts(list []*Product, order string) {
	var less func(a, b *Product) bool
	switch order {
	case SortOldest:
		less = func(a, b *Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortPriceAsc:
		less = func(a, b *Product) bool { return a.EffectivePriceCents() < b.EffectivePriceCents() }
	case SortPriceDesc:
		less = func(a, b *Product) bool { return a.EffectivePriceCents() > b.EffectivePriceCents() }
	case SortNameAsc:
		less = func(a, b *Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortNameDesc:
		less = func(a, b *Product) bool { return strings.ToLower(a.Name) > strings.ToLower(b.Name) }
	case SortRating:
		less = func(a, b *Product) bool {
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
			return a.ReviewCount > b.ReviewCount
		}
	default:
		less = func(a, b *Product) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(list, func(i, j int) bool { return less(list[i], list[j]) })
}
