package main

import (
	"net/http"

	"solestore/internal/domain/products"
	"solestore/internal/params"

	"github.com/go-chi/chi/v5"
)

type ProductListResponse = listResponse[*products.Product]

// listProductsHandler serves the storefront listing.
//
// Query: q, category, brand, size, color, gender, min_price, max_price,
// in_stock, featured, on_sale, sort, page, limit.
func (app *application) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter, err := products.ParseFilter(q)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	filter.IncludeInactive = false

	app.writeProductList(w, r, filter, params.ParsePagination(q))
}

func (app *application) writeProductList(w http.ResponseWriter, r *http.Request, filter products.Filter, p params.Pagination) {
	items, total, err := app.store.Products.List(r.Context(), filter, &p)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := app.jsonResponse(w, http.StatusOK, ProductListResponse{
		Items:      items,
		Pagination: p,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) productFacetsHandler(w http.ResponseWriter, r *http.Request) {
	facets, err := app.store.Products.Facets(r.Context())
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, facets); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getProductHandler accepts an id or a slug. Inactive products are hidden.
func (app *application) getProductHandler(w http.ResponseWriter, r *http.Request) {
	product, err := app.store.Products.Get(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}
	if !product.IsActive {
		app.notFoundResponse(w, r, products.ErrNotFound)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, product); err != nil {
		app.internalServerError(w, r, err)
	}
}
