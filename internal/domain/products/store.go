package products

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"solestore/internal/params"
	"solestore/internal/recordstore"
)

const (
	ProductsCollection   = "products"
	CategoriesCollection = "categories"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrDuplicateSlug     = errors.New("slug already exists")
	ErrCategoryInUse     = errors.New("category has products or child categories")
	ErrInvalidParent     = errors.New("invalid parent category")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockError names the product that could not cover a stock reservation.
type StockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: %d available, %d requested", e.Name, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Store is the data access abstraction for the catalog.
type Store interface {
	// Categories
	ListCategories(ctx context.Context, includeInactive bool) ([]*Category, error)
	CategoryTree(ctx context.Context, includeInactive bool) ([]*CategoryNode, error)
	GetCategory(ctx context.Context, ref string) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) error
	UpdateCategory(ctx context.Context, id string, patch map[string]any) (*Category, error)
	DeleteCategory(ctx context.Context, id string) error

	// Products
	List(ctx context.Context, f Filter, p *params.Pagination) ([]*Product, int, error)
	Get(ctx context.Context, ref string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Patch(ctx context.Context, id string, patch map[string]any) (*Product, error)
	Delete(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, deltas map[string]int) error
	AddImage(ctx context.Context, id, url string) (*Product, error)
	Facets(ctx context.Context) (*Facets, error)
	Search(ctx context.Context, text string, n int) ([]*Product, error)
	LowStock(ctx context.Context, threshold int) ([]*Product, error)
	Stats(ctx context.Context, lowStockThreshold int) (Stats, error)
}

type Repository struct {
	products   *recordstore.Collection[*Product]
	categories *recordstore.Collection[*Category]
	cache      *catalogCache

	// links is held shared while a product write checks its category_id and
	// exclusively while a category is deleted.
	links sync.RWMutex
}

func NewRepository(s *recordstore.Store) Store {
	r := &Repository{
		products:   recordstore.NewCollection[*Product](s, ProductsCollection),
		categories: recordstore.NewCollection[*Category](s, CategoriesCollection),
		cache:      newCatalogCache(),
	}
	s.OnInvalidate(func(name string) {
		if name == ProductsCollection || name == CategoriesCollection {
			r.cache.flush()
		}
	})
	return r
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a display name into a URL slug: "Air Max 90" -> "air-max-90".
func Slugify(name string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// ------------------------------------
// Categories
// ------------------------------------

func (r *Repository) ListCategories(ctx context.Context, includeInactive bool) ([]*Category, error) {
	all, err := r.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Category, 0, len(all))
	for _, c := range all {
		if includeInactive || c.IsActive {
			out = append(out, c)
		}
	}
	sortCategories(out)
	return out, nil
}

func sortCategories(list []*Category) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].SortOrder != list[j].SortOrder {
			return list[i].SortOrder < list[j].SortOrder
		}
		return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
	})
}

// CategoryTree nests categories under their parents. An inactive category
// hides its whole subtree unless includeInactive is set. The result is
// shared with the cache and must not be modified.
func (r *Repository) CategoryTree(ctx context.Context, includeInactive bool) ([]*CategoryNode, error) {
	if nodes, ok := r.cache.tree(includeInactive); ok {
		return nodes, nil
	}
	gen := r.cache.generation()
	all, err := r.ListCategories(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	nodes := buildCategoryTree(all)
	r.cache.setTree(gen, includeInactive, nodes)
	return nodes, nil
}

func buildCategoryTree(categories []*Category) []*CategoryNode {
	byParent := make(map[string][]*Category)
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	var roots []*Category
	for _, c := range categories {
		if c.ParentID == nil || *c.ParentID == "" {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}

	var build func(c *Category, level int, path []string) *CategoryNode
	build = func(c *Category, level int, path []string) *CategoryNode {
		p := append(append([]string{}, path...), c.ID)
		node := &CategoryNode{Category: c, Level: level, Path: p}
		for _, child := range byParent[c.ID] {
			node.Children = append(node.Children, build(child, level+1, p))
		}
		return node
	}

	out := make([]*CategoryNode, 0, len(roots))
	for _, c := range roots {
		out = append(out, build(c, 0, nil))
	}
	return out
}

func (r *Repository) GetCategory(ctx context.Context, ref string) (*Category, error) {
	ref = strings.TrimSpace(ref)
	c, ok := r.categories.Find(ctx, func(c *Category) bool {
		return c.ID == ref || c.Slug == strings.ToLower(ref)
	})
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return c, nil
}

func validateCategory(c *Category) error {
	if c == nil {
		return fmt.Errorf("%w: category cannot be nil", ErrInvalidCategory)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidCategory)
	}
	if c.Slug == "" {
		return fmt.Errorf("%w: slug cannot be empty", ErrInvalidCategory)
	}
	if c.ParentID != nil && *c.ParentID == c.ID && c.ID != "" {
		return fmt.Errorf("%w: category cannot be its own parent", ErrInvalidParent)
	}
	return nil
}

// checkParent walks up from c's parent and rejects unknown parents and cycles.
func checkParent(all []*Category, c *Category) error {
	if c.ParentID == nil || *c.ParentID == "" {
		c.ParentID = nil
		return nil
	}
	byID := make(map[string]*Category, len(all))
	for _, x := range all {
		byID[x.ID] = x
	}
	seen := map[string]bool{}
	for cur := *c.ParentID; cur != ""; {
		if c.ID != "" && cur == c.ID {
			return fmt.Errorf("%w: circular dependency", ErrInvalidParent)
		}
		if seen[cur] {
			return fmt.Errorf("%w: circular dependency", ErrInvalidParent)
		}
		seen[cur] = true
		parent, ok := byID[cur]
		if !ok {
			return fmt.Errorf("%w: %s does not exist", ErrInvalidParent, cur)
		}
		if parent.ParentID == nil {
			break
		}
		cur = *parent.ParentID
	}
	return nil
}

func (r *Repository) CreateCategory(ctx context.Context, c *Category) error {
	if c == nil {
		return validateCategory(c)
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Slug == "" {
		c.Slug = c.Name
	}
	c.Slug = Slugify(c.Slug)
	if err := validateCategory(c); err != nil {
		return err
	}

	err := r.categories.Mutate(ctx, func(all []*Category) ([]*Category, error) {
		for _, x := range all {
			if x.Slug == c.Slug {
				return nil, ErrDuplicateSlug
			}
		}
		if err := checkParent(all, c); err != nil {
			return nil, err
		}
		return append(all, c), nil
	})
	if err != nil {
		return err
	}
	r.cache.flush()
	return nil
}

func (r *Repository) UpdateCategory(ctx context.Context, id string, patch map[string]any) (*Category, error) {
	var updated *Category
	err := r.categories.Mutate(ctx, func(all []*Category) ([]*Category, error) {
		idx := -1
		for i, x := range all {
			if x.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrCategoryNotFound
		}

		next, err := recordstore.Merge(all[idx], patch)
		if err != nil {
			return nil, err
		}
		next.Name = strings.TrimSpace(next.Name)
		next.Slug = Slugify(next.Slug)
		if err := validateCategory(next); err != nil {
			return nil, err
		}
		for _, x := range all {
			if x.ID != id && x.Slug == next.Slug {
				return nil, ErrDuplicateSlug
			}
		}
		if err := checkParent(all, next); err != nil {
			return nil, err
		}
		all[idx] = next
		updated = next
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	r.cache.flush()
	return updated, nil
}

// DeleteCategory refuses while products or child categories reference the
// category.
func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	r.links.Lock()
	defer r.links.Unlock()

	if _, ok := r.products.Find(ctx, func(p *Product) bool { return p.CategoryID == id }); ok {
		return ErrCategoryInUse
	}
	err := r.categories.Mutate(ctx, func(all []*Category) ([]*Category, error) {
		idx := -1
		for i, x := range all {
			if x.ID == id {
				idx = i
			}
			if x.ParentID != nil && *x.ParentID == id {
				return nil, ErrCategoryInUse
			}
		}
		if idx < 0 {
			return nil, ErrCategoryNotFound
		}
		return append(all[:idx:idx], all[idx+1:]...), nil
	})
	if err != nil {
		return err
	}
	r.cache.flush()
	return nil
}

// categorySet expands ref to the ids of the category and all its descendants.
func (r *Repository) categorySet(ctx context.Context, ref string) (map[string]bool, error) {
	all, err := r.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	var root *Category
	for _, c := range all {
		if c.ID == ref || c.Slug == strings.ToLower(ref) {
			root = c
			break
		}
	}
	if root == nil {
		return map[string]bool{}, nil
	}

	set := map[string]bool{root.ID: true}
	for grew := true; grew; {
		grew = false
		for _, c := range all {
			if c.ParentID != nil && set[*c.ParentID] && !set[c.ID] {
				set[c.ID] = true
				grew = true
			}
		}
	}
	return set, nil
}

// ------------------------------------
// Products
// ------------------------------------

// List returns one page of products matching f and the total match count.
// An unknown category matches nothing.
func (r *Repository) List(ctx context.Context, f Filter, p *params.Pagination) ([]*Product, int, error) {
	all, err := r.products.List(ctx)
	if err != nil {
		return nil, 0, err
	}

	var categories map[string]bool
	if f.Category != "" {
		if categories, err = r.categorySet(ctx, f.Category); err != nil {
			return nil, 0, err
		}
	}

	matched := make([]*Product, 0, len(all))
	for _, prod := range all {
		if f.match(prod, categories) {
			matched = append(matched, prod)
		}
	}
	sortProducts(matched, f.Sort)
	return params.Paginate(matched, p), len(matched), nil
}

func (r *Repository) Get(ctx context.Context, ref string) (*Product, error) {
	ref = strings.TrimSpace(ref)
	p, ok := r.products.Find(ctx, func(p *Product) bool {
		return p.ID == ref || p.Slug == strings.ToLower(ref)
	})
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func validateProduct(p *Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidProduct)
	}
	if p.Slug == "" {
		return fmt.Errorf("%w: slug cannot be empty", ErrInvalidProduct)
	}
	if p.PriceCents < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidProduct)
	}
	if p.SalePriceCents != nil && *p.SalePriceCents < 0 {
		return fmt.Errorf("%w: sale price cannot be negative", ErrInvalidProduct)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidProduct)
	}
	if p.Rating < 0 || p.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 0 and 5", ErrInvalidProduct)
	}
	if p.Gender != "" && !containsFold(Genders, p.Gender) {
		return fmt.Errorf("%w: unknown gender %q", ErrInvalidProduct, p.Gender)
	}
	return nil
}

func normalizeProduct(p *Product) {
	p.Name = strings.TrimSpace(p.Name)
	p.Brand = strings.TrimSpace(p.Brand)
	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	p.Slug = Slugify(p.Slug)
	if p.Sizes == nil {
		p.Sizes = []string{}
	}
	if p.Colors == nil {
		p.Colors = []string{}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
}

func (r *Repository) checkCategory(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, ok := r.categories.Get(ctx, id); !ok {
		return fmt.Errorf("%w: %w", ErrInvalidProduct, ErrCategoryNotFound)
	}
	return nil
}

func (r *Repository) Create(ctx context.Context, p *Product) error {
	if p.Slug == "" {
		p.Slug = p.Name
	}
	normalizeProduct(p)
	if err := validateProduct(p); err != nil {
		return err
	}

	r.links.RLock()
	defer r.links.RUnlock()
	if err := r.checkCategory(ctx, p.CategoryID); err != nil {
		return err
	}

	err := r.products.Mutate(ctx, func(all []*Product) ([]*Product, error) {
		for _, x := range all {
			if x.Slug == p.Slug {
				return nil, ErrDuplicateSlug
			}
		}
		return append(all, p), nil
	})
	if err != nil {
		return err
	}
	r.cache.flush()
	return nil
}

// Patch shallow-merges patch into the product. The merged product must still
// validate and keep a unique slug.
func (r *Repository) Patch(ctx context.Context, id string, patch map[string]any) (*Product, error) {
	r.links.RLock()
	defer r.links.RUnlock()

	if v, ok := patch["category_id"].(string); ok {
		if err := r.checkCategory(ctx, v); err != nil {
			return nil, err
		}
	}

	var updated *Product
	err := r.products.Mutate(ctx, func(all []*Product) ([]*Product, error) {
		idx := indexOf(all, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		next, err := recordstore.Merge(all[idx], patch)
		if err != nil {
			return nil, err
		}
		normalizeProduct(next)
		if err := validateProduct(next); err != nil {
			return nil, err
		}
		for _, x := range all {
			if x.ID != id && x.Slug == next.Slug {
				return nil, ErrDuplicateSlug
			}
		}
		all[idx] = next
		updated = next
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	r.cache.flush()
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	deleted, err := r.products.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	r.cache.flush()
	return nil
}

// AdjustStock applies every delta (negative reserves, positive restocks) in
// one write. Nothing is written when any product is missing or would go
// below zero.
func (r *Repository) AdjustStock(ctx context.Context, deltas map[string]int) error {
	if len(deltas) == 0 {
		return nil
	}
	err := r.products.Mutate(ctx, func(all []*Product) ([]*Product, error) {
		for id, delta := range deltas {
			idx := indexOf(all, id)
			if idx < 0 {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			p := all[idx]
			if p.Stock+delta < 0 {
				return nil, &StockError{ProductID: p.ID, Name: p.Name, Available: p.Stock, Requested: -delta}
			}
			p.Stock += delta
		}
		return all, nil
	})
	if err != nil {
		return err
	}
	r.cache.flush()
	return nil
}

func (r *Repository) AddImage(ctx context.Context, id, url string) (*Product, error) {
	var updated *Product
	err := r.products.Mutate(ctx, func(all []*Product) ([]*Product, error) {
		idx := indexOf(all, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		all[idx].Images = append(all[idx].Images, url)
		updated = all[idx]
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Facets counts brands, sizes, colors, genders and categories over active
// products.
func (r *Repository) Facets(ctx context.Context) (*Facets, error) {
	if f, ok := r.cache.facets(); ok {
		return f, nil
	}
	gen := r.cache.generation()
	all, err := r.products.List(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := r.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	slugs := make(map[string]string, len(categories))
	for _, c := range categories {
		slugs[c.ID] = c.Slug
	}

	brands, sizes, colors, genders, cats := counter{}, counter{}, counter{}, counter{}, counter{}
	f := &Facets{}
	for _, p := range all {
		if !p.IsActive {
			continue
		}
		price := p.EffectivePriceCents()
		if f.Total == 0 || price < f.Price.MinCents {
			f.Price.MinCents = price
		}
		if price > f.Price.MaxCents {
			f.Price.MaxCents = price
		}
		f.Total++

		brands.add(p.Brand)
		genders.add(p.Gender)
		cats.add(slugs[p.CategoryID])
		for _, s := range p.Sizes {
			sizes.add(s)
		}
		for _, c := range p.Colors {
			colors.add(strings.ToLower(c))
		}
	}
	f.Brands = brands.values()
	f.Sizes = sizes.values()
	f.Colors = colors.values()
	f.Genders = genders.values()
	f.Categories = cats.values()

	r.cache.setFacets(gen, f)
	return f, nil
}

type counter map[string]int

func (c counter) add(v string) {
	if v != "" {
		c[v]++
	}
}

func (c counter) values() []FacetValue {
	out := make([]FacetValue, 0, len(c))
	for v, n := range c {
		out = append(out, FacetValue{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// Search ranks active products by how many words of text they mention,
// weighting name hits over brand and description hits.
func (r *Repository) Search(ctx context.Context, text string, n int) ([]*Product, error) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 || n <= 0 {
		return []*Product{}, nil
	}
	all, err := r.products.List(ctx)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		p    *Product
		rank int
	}
	var hits []ranked
	for _, p := range all {
		if !p.IsActive {
			continue
		}
		name, brand, desc := strings.ToLower(p.Name), strings.ToLower(p.Brand), strings.ToLower(p.Description)
		rank := 0
		for _, w := range words {
			if len(w) < 3 {
				continue
			}
			switch {
			case strings.Contains(name, w):
				rank += 3
			case strings.Contains(brand, w):
				rank += 2
			case strings.Contains(desc, w):
				rank++
			}
		}
		if rank > 0 {
			hits = append(hits, ranked{p, rank})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank > hits[j].rank
		}
		return hits[i].p.Rating > hits[j].p.Rating
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	out := make([]*Product, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out, nil
}

// LowStock lists active products with stock at or below threshold, lowest
// first.
func (r *Repository) LowStock(ctx context.Context, threshold int) ([]*Product, error) {
	all, err := r.products.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []*Product{}
	for _, p := range all {
		if p.IsActive && p.Stock <= threshold {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Stock < out[j].Stock })
	return out, nil
}

func (r *Repository) Stats(ctx context.Context, lowStockThreshold int) (Stats, error) {
	all, err := r.products.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{Total: len(all), Categories: r.categories.Count(ctx)}
	for _, p := range all {
		if p.IsActive {
			s.Active++
		}
		switch {
		case p.Stock <= 0:
			s.OutOfStock++
		case p.Stock <= lowStockThreshold:
			s.LowStock++
		}
	}
	return s, nil
}

func indexOf(all []*Product, id string) int {
	for i, p := range all {
		if p.ID == id {
			return i
		}
	}
	return -1
}
