// Package seed loads a starter catalog and an admin account into the record
// store.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"solestore/internal/domain/products"
	"solestore/internal/domain/users"

	"go.uber.org/zap"
	"gopkg.in/ghodss/yaml.v1"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Category struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Parent      string `json:"parent"` // parent slug
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	SortOrder   int    `json:"sort_order"`
}

type Product struct {
	Name           string   `json:"name"`
	Slug           string   `json:"slug"`
	Brand          string   `json:"brand"`
	Category       string   `json:"category"` // category slug
	Gender         string   `json:"gender"`
	Description    string   `json:"description"`
	PriceCents     int64    `json:"price_cents"`
	SalePriceCents *int64   `json:"sale_price_cents"`
	Sizes          []string `json:"sizes"`
	Colors         []string `json:"colors"`
	Stock          int      `json:"stock"`
	Images         []string `json:"images"`
	Rating         float64  `json:"rating"`
	ReviewCount    int      `json:"review_count"`
	Featured       bool     `json:"featured"`
}

// Data is a seed document. YAML and JSON are both accepted.
type Data struct {
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
}

type Admin struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type Result struct {
	CategoriesCreated int  `json:"categories_created"`
	ProductsCreated   int  `json:"products_created"`
	AdminCreated      bool `json:"admin_created"`
}

func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	return &d, nil
}

func Default() (*Data, error) {
	return Parse(defaultCatalog)
}

func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

type Seeder struct {
	Products products.Store
	Users    users.Store
	Logger   *zap.SugaredLogger
}

// Run creates whatever in d (and the admin account) is not there yet.
// Categories and products are matched by slug, the admin by email, so
// running it twice changes nothing.
func (s *Seeder) Run(ctx context.Context, d *Data, admin *Admin) (Result, error) {
	var res Result
	log := s.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	// parents first: a category may only reference one seeded before it
	pending := append([]Category{}, d.Categories...)
	for len(pending) > 0 {
		var next []Category
		for _, c := range pending {
			created, err := s.seedCategory(ctx, c)
			if errors.Is(err, products.ErrCategoryNotFound) {
				next = append(next, c)
				continue
			}
			if err != nil {
				return res, err
			}
			if created {
				res.CategoriesCreated++
			}
		}
		if len(next) == len(pending) {
			return res, fmt.Errorf("seed category %q: parent %q: %w", next[0].Name, next[0].Parent, products.ErrCategoryNotFound)
		}
		pending = next
	}

	for _, p := range d.Products {
		created, err := s.seedProduct(ctx, p)
		if err != nil {
			return res, err
		}
		if created {
			res.ProductsCreated++
		}
	}

	if admin != nil && admin.Email != "" {
		created, err := s.seedAdmin(ctx, admin)
		if err != nil {
			return res, err
		}
		res.AdminCreated = created
	}

	log.Infow("seed complete",
		"categories_created", res.CategoriesCreated,
		"products_created", res.ProductsCreated,
		"admin_created", res.AdminCreated,
	)
	return res, nil
}

func (s *Seeder) seedCategory(ctx context.Context, c Category) (bool, error) {
	slug := products.Slugify(firstNonEmpty(c.Slug, c.Name))
	if _, err := s.Products.GetCategory(ctx, slug); err == nil {
		return false, nil
	}

	cat := &products.Category{
		Name:        c.Name,
		Slug:        slug,
		Description: c.Description,
		ImageURL:    c.ImageURL,
		SortOrder:   c.SortOrder,
		IsActive:    true,
	}
	if c.Parent != "" {
		parent, err := s.Products.GetCategory(ctx, c.Parent)
		if err != nil {
			return false, err
		}
		cat.ParentID = &parent.ID
	}
	if err := s.Products.CreateCategory(ctx, cat); err != nil {
		return false, fmt.Errorf("seed category %q: %w", c.Name, err)
	}
	return true, nil
}

func (s *Seeder) seedProduct(ctx context.Context, p Product) (bool, error) {
	slug := products.Slugify(firstNonEmpty(p.Slug, p.Name))
	if _, err := s.Products.Get(ctx, slug); err == nil {
		return false, nil
	}

	prod := &products.Product{
		Name:           p.Name,
		Slug:           slug,
		Description:    p.Description,
		Brand:          p.Brand,
		Gender:         p.Gender,
		PriceCents:     p.PriceCents,
		SalePriceCents: p.SalePriceCents,
		Sizes:          p.Sizes,
		Colors:         p.Colors,
		Stock:          p.Stock,
		Images:         p.Images,
		Rating:         p.Rating,
		ReviewCount:    p.ReviewCount,
		Featured:       p.Featured,
		IsActive:       true,
	}
	if p.Category != "" {
		cat, err := s.Products.GetCategory(ctx, p.Category)
		if err != nil {
			return false, fmt.Errorf("seed product %q: category %q: %w", p.Name, p.Category, err)
		}
		prod.CategoryID = cat.ID
	}
	if err := s.Products.Create(ctx, prod); err != nil {
		return false, fmt.Errorf("seed product %q: %w", p.Name, err)
	}
	return true, nil
}

func (s *Seeder) seedAdmin(ctx context.Context, a *Admin) (bool, error) {
	if _, err := s.Users.GetByEmail(ctx, a.Email); err == nil {
		return false, nil
	} else if !errors.Is(err, users.ErrNotFound) {
		return false, err
	}
	if len(a.Password) < 8 {
		return false, errors.New("seed admin: password must be at least 8 characters")
	}

	u := &users.User{
		FirstName: firstNonEmpty(a.FirstName, "Store"),
		LastName:  firstNonEmpty(a.LastName, "Admin"),
		Email:     a.Email,
		Role:      users.RoleAdmin,
		IsActive:  true,
	}
	if err := u.Password.Set(a.Password); err != nil {
		return false, err
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	return true, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
