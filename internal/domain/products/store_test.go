package products

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"solestore/internal/params"
	"solestore/internal/recordstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*Repository, *recordstore.Store) {
	t.Helper()
	backend, err := recordstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	s := recordstore.New(backend)
	return NewRepository(s).(*Repository), s
}

func cents(v int64) *int64 { return &v }

// seedCatalog creates shoes > running, shoes > lifestyle and four products.
func seedCatalog(t *testing.T, r *Repository) map[string]*Product {
	t.Helper()
	ctx := context.Background()
	shoes := &Category{Name: "Shoes", IsActive: true}
	require.NoError(t, r.CreateCategory(ctx, shoes))
	running := &Category{Name: "Running", ParentID: &shoes.ID, IsActive: true}
	require.NoError(t, r.CreateCategory(ctx, running))
	lifestyle := &Category{Name: "Lifestyle", ParentID: &shoes.ID, IsActive: true}
	require.NoError(t, r.CreateCategory(ctx, lifestyle))

	items := []*Product{
		{Name: "Pegasus 40", Brand: "Nike", CategoryID: running.ID, Gender: "men", PriceCents: 13000,
			Sizes: []string{"9", "10"}, Colors: []string{"Black"}, Stock: 5, Rating: 4.5, IsActive: true, Featured: true},
		{Name: "Ultraboost", Brand: "Adidas", CategoryID: running.ID, Gender: "women", PriceCents: 18000,
			SalePriceCents: cents(9000), Sizes: []string{"7", "8"}, Colors: []string{"White"}, Stock: 0, Rating: 4.8, IsActive: true},
		{Name: "Samba OG", Brand: "Adidas", CategoryID: lifestyle.ID, Gender: "unisex", PriceCents: 10000,
			Sizes: []string{"9"}, Colors: []string{"white", "green"}, Stock: 2, Rating: 4.1, IsActive: true},
		{Name: "Retired Runner", Brand: "Nike", CategoryID: running.ID, PriceCents: 5000, Stock: 10, IsActive: false},
	}
	out := map[string]*Product{}
	for _, p := range items {
		require.NoError(t, r.Create(ctx, p))
		out[p.Slug] = p
		time.Sleep(time.Millisecond)
	}
	return out
}

func names(list []*Product) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.Name
	}
	return out
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "air-max-90", Slugify("  Air Max 90!"))
	assert.Equal(t, "samba-og", Slugify("Samba--OG"))
	assert.Equal(t, "", Slugify("!!"))
}

func TestCreateProductDerivesUniqueSlug(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	p := &Product{Name: "Air Max 90", PriceCents: 12000, IsActive: true}
	require.NoError(t, r.Create(ctx, p))
	assert.Equal(t, "air-max-90", p.Slug)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, []string{}, p.Sizes)

	err := r.Create(ctx, &Product{Name: "Air  Max 90", PriceCents: 1})
	assert.ErrorIs(t, err, ErrDuplicateSlug)

	got, err := r.Get(ctx, "air-max-90")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	got, err = r.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Air Max 90", got.Name)
}

func TestCreateProductValidates(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	assert.ErrorIs(t, r.Create(ctx, &Product{Name: ""}), ErrInvalidProduct)
	assert.ErrorIs(t, r.Create(ctx, &Product{Name: "x", PriceCents: -1}), ErrInvalidProduct)
	assert.ErrorIs(t, r.Create(ctx, &Product{Name: "x", Gender: "robots"}), ErrInvalidProduct)
	err := r.Create(ctx, &Product{Name: "x", CategoryID: "missing"})
	assert.ErrorIs(t, err, ErrInvalidProduct)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	seedCatalog(t, r)

	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"default hides inactive newest first", "", []string{"Samba OG", "Ultraboost", "Pegasus 40"}},
		{"category includes subcategories", "category=shoes&sort=name_asc", []string{"Pegasus 40", "Samba OG", "Ultraboost"}},
		{"subcategory", "category=running&sort=oldest", []string{"Pegasus 40", "Ultraboost"}},
		{"unknown category", "category=hats", []string{}},
		{"brand", "brand=adidas&sort=name_desc", []string{"Ultraboost", "Samba OG"}},
		{"brand comma list", "brand=nike,adidas&sort=oldest", []string{"Pegasus 40", "Ultraboost", "Samba OG"}},
		{"size", "size=9&sort=oldest", []string{"Pegasus 40", "Samba OG"}},
		{"color", "color=WHITE&sort=oldest", []string{"Ultraboost", "Samba OG"}},
		{"gender", "gender=women", []string{"Ultraboost"}},
		{"sale price counts", "max_price=9500&sort=price_asc", []string{"Ultraboost"}},
		{"price range", "min_price=9500&max_price=13000&sort=price_desc", []string{"Pegasus 40", "Samba OG"}},
		{"in stock", "in_stock=true&sort=oldest", []string{"Pegasus 40", "Samba OG"}},
		{"featured", "featured=true", []string{"Pegasus 40"}},
		{"on sale", "on_sale=1", []string{"Ultraboost"}},
		{"text search", "q=boost", []string{"Ultraboost"}},
		{"rating", "sort=rating", []string{"Ultraboost", "Pegasus 40", "Samba OG"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			require.NoError(t, err)
			f, err := ParseFilter(q)
			require.NoError(t, err)
			got, total, err := r.List(ctx, f, &params.Pagination{Page: 1, Limit: 50})
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(got))
			assert.Equal(t, len(tc.want), total)
		})
	}
}

func TestListIncludeInactiveAndPaging(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	seedCatalog(t, r)

	f := Filter{IncludeInactive: true, Sort: SortOldest}
	page, total, err := r.List(ctx, f, &params.Pagination{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, []string{"Retired Runner"}, names(page))
}

func TestParseFilterRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"min_price=abc", "max_price=-5", "min_price=10&max_price=5", "in_stock=maybe", "featured=x", "sort=random"} {
		q, _ := url.ParseQuery(raw)
		_, err := ParseFilter(q)
		assert.ErrorIs(t, err, ErrInvalidFilter, raw)
	}
}

func TestPatchProduct(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	catalog := seedCatalog(t, r)
	p := catalog["pegasus-40"]

	updated, err := r.Patch(ctx, p.ID, map[string]any{"price_cents": 11000, "slug": "Pegasus Forty"})
	require.NoError(t, err)
	assert.Equal(t, int64(11000), updated.PriceCents)
	assert.Equal(t, "pegasus-forty", updated.Slug)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)
	assert.NotNil(t, updated.UpdatedAt)

	_, err = r.Patch(ctx, p.ID, map[string]any{"slug": "samba-og"})
	assert.ErrorIs(t, err, ErrDuplicateSlug)
	_, err = r.Patch(ctx, p.ID, map[string]any{"stock": -3})
	assert.ErrorIs(t, err, ErrInvalidProduct)
	_, err = r.Patch(ctx, p.ID, map[string]any{"category_id": "nope"})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	_, err = r.Patch(ctx, "missing", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdjustStockIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	catalog := seedCatalog(t, r)
	peg, samba := catalog["pegasus-40"], catalog["samba-og"]

	err := r.AdjustStock(ctx, map[string]int{peg.ID: -2, samba.ID: -3})
	var stockErr *StockError
	require.True(t, errors.As(err, &stockErr))
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, samba.ID, stockErr.ProductID)
	assert.Equal(t, 2, stockErr.Available)

	got, _ := r.Get(ctx, peg.ID)
	assert.Equal(t, 5, got.Stock)

	require.NoError(t, r.AdjustStock(ctx, map[string]int{peg.ID: -2, samba.ID: -2}))
	got, _ = r.Get(ctx, peg.ID)
	assert.Equal(t, 3, got.Stock)
	got, _ = r.Get(ctx, samba.ID)
	assert.Equal(t, 0, got.Stock)

	assert.ErrorIs(t, r.AdjustStock(ctx, map[string]int{"ghost": 1}), ErrNotFound)
}

func TestCategoryTreeAndDelete(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	seedCatalog(t, r)

	tree, err := r.CategoryTree(ctx, false)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "shoes", tree[0].Slug)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "lifestyle", tree[0].Children[0].Slug)
	assert.Equal(t, 1, tree[0].Children[0].Level)
	assert.Equal(t, []string{tree[0].ID, tree[0].Children[0].ID}, tree[0].Children[0].Path)

	shoes, err := r.GetCategory(ctx, "shoes")
	require.NoError(t, err)
	assert.ErrorIs(t, r.DeleteCategory(ctx, shoes.ID), ErrCategoryInUse)

	running, err := r.GetCategory(ctx, "running")
	require.NoError(t, err)
	assert.ErrorIs(t, r.DeleteCategory(ctx, running.ID), ErrCategoryInUse)

	empty := &Category{Name: "Sandals", IsActive: true}
	require.NoError(t, r.CreateCategory(ctx, empty))
	require.NoError(t, r.DeleteCategory(ctx, empty.ID))
	_, err = r.GetCategory(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	assert.ErrorIs(t, r.DeleteCategory(ctx, "missing"), ErrCategoryNotFound)
}

func TestUpdateCategoryRejectsCycles(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	seedCatalog(t, r)
	shoes, _ := r.GetCategory(ctx, "shoes")
	running, _ := r.GetCategory(ctx, "running")

	_, err := r.UpdateCategory(ctx, shoes.ID, map[string]any{"parent_id": running.ID})
	assert.ErrorIs(t, err, ErrInvalidParent)
	_, err = r.UpdateCategory(ctx, shoes.ID, map[string]any{"parent_id": shoes.ID})
	assert.ErrorIs(t, err, ErrInvalidParent)
	_, err = r.UpdateCategory(ctx, running.ID, map[string]any{"slug": "shoes"})
	assert.ErrorIs(t, err, ErrDuplicateSlug)

	updated, err := r.UpdateCategory(ctx, running.ID, map[string]any{"name": "Road Running", "parent_id": ""})
	require.NoError(t, err)
	assert.Nil(t, updated.ParentID)
	assert.Equal(t, "Road Running", updated.Name)
}

func TestFacetsAreCachedUntilWrite(t *testing.T) {
	ctx := context.Background()
	r, s := newTestRepo(t)
	seedCatalog(t, r)

	f, err := r.Facets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Total)
	assert.Equal(t, []FacetValue{{"Adidas", 2}, {"Nike", 1}}, f.Brands)
	assert.Equal(t, PriceRange{MinCents: 9000, MaxCents: 13000}, f.Price)
	assert.Contains(t, f.Colors, FacetValue{"white", 2})
	assert.Equal(t, 1, r.cache.size())

	require.NoError(t, r.Create(ctx, &Product{Name: "Gel Kayano", Brand: "Asics", PriceCents: 16000, IsActive: true}))
	assert.Equal(t, 0, r.cache.size())
	f, err = r.Facets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Total)

	s.Invalidate(ProductsCollection)
	assert.Equal(t, 0, r.cache.size())
}

func TestSearchLowStockAndStats(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	seedCatalog(t, r)

	found, err := r.Search(ctx, "adidas samba", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Samba OG", "Ultraboost"}, names(found))

	found, err = r.Search(ctx, "retired", 5)
	require.NoError(t, err)
	assert.Empty(t, found)

	low, err := r.LowStock(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ultraboost", "Samba OG"}, names(low))

	stats, err := r.Stats(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 4, Active: 3, OutOfStock: 1, LowStock: 1, Categories: 3}, stats)
}

func TestAddImage(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	p := &Product{Name: "Court Vision", PriceCents: 7000}
	require.NoError(t, r.Create(ctx, p))

	updated, err := r.AddImage(ctx, p.ID, "https://img.example/court.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/court.jpg", updated.PrimaryImage())

	_, err = r.AddImage(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEffectivePrice(t *testing.T) {
	p := &Product{PriceCents: 10000}
	assert.Equal(t, int64(10000), p.EffectivePriceCents())
	p.SalePriceCents = cents(8000)
	assert.True(t, p.OnSale())
	assert.Equal(t, int64(8000), p.EffectivePriceCents())
	p.SalePriceCents = cents(12000)
	assert.False(t, p.OnSale())
	assert.Equal(t, int64(10000), p.EffectivePriceCents())
}

func TestCacheDropsResultsReadBeforeFlush(t *testing.T) {
	c := newCatalogCache()

	gen := c.generation()
	c.flush()
	assert.False(t, c.set(gen, facetsCacheKey, &Facets{Total: 1}))
	_, ok := c.facets()
	assert.False(t, ok)

	gen = c.generation()
	c.setTree(gen, false, []*CategoryNode{})
	_, ok = c.tree(false)
	assert.True(t, ok)
	_, ok = c.tree(true)
	assert.False(t, ok)
}

func TestDeleteCategoryRacingProductCreate(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	for i := 0; i < 20; i++ {
		cat := &Category{Name: fmt.Sprintf("Drop %d", i), IsActive: true}
		require.NoError(t, r.CreateCategory(ctx, cat))

		var (
			wg        sync.WaitGroup
			createErr error
			deleteErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			createErr = r.Create(ctx, &Product{Name: fmt.Sprintf("Slide %d", i), CategoryID: cat.ID, PriceCents: 3000, IsActive: true})
		}()
		go func() {
			defer wg.Done()
			deleteErr = r.DeleteCategory(ctx, cat.ID)
		}()
		wg.Wait()

		if createErr == nil {
			assert.ErrorIs(t, deleteErr, ErrCategoryInUse, "round %d", i)
			_, err := r.GetCategory(ctx, cat.ID)
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, createErr, ErrCategoryNotFound, "round %d", i)
			assert.NoError(t, deleteErr)
		}
	}
}
