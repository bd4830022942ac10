package main

import (
	"net/http"

	"solestore/internal/domain/products"

	"github.com/go-chi/chi/v5"
)

func (app *application) listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := app.store.Products.ListCategories(r.Context(), false)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, categories); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) categoryTreeHandler(w http.ResponseWriter, r *http.Request) {
	tree, err := app.store.Products.CategoryTree(r.Context(), false)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, tree); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getCategoryHandler(w http.ResponseWriter, r *http.Request) {
	category, err := app.store.Products.GetCategory(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}
	if !category.IsActive {
		app.notFoundResponse(w, r, products.ErrCategoryNotFound)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, category); err != nil {
		app.internalServerError(w, r, err)
	}
}
