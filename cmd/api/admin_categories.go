package main

import (
	"net/http"
	"strings"

	"solestore/internal/domain/products"

	"github.com/go-chi/chi/v5"
)

type CreateCategoryPayload struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Slug        string  `json:"slug" validate:"omitempty,max=100"`
	Description string  `json:"description" validate:"max=1000"`
	ParentID    *string `json:"parent_id"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
	IsActive    *bool   `json:"is_active"`
	SortOrder   int     `json:"sort_order"`
}

func (app *application) adminListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := app.store.Products.ListCategories(r.Context(), true)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, categories); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) adminCreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateCategoryPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	category := &products.Category{
		Name:        strings.TrimSpace(payload.Name),
		Slug:        payload.Slug,
		Description: strings.TrimSpace(payload.Description),
		ParentID:    payload.ParentID,
		ImageURL:    payload.ImageURL,
		IsActive:    payload.IsActive == nil || *payload.IsActive,
		SortOrder:   payload.SortOrder,
	}

	if err := app.store.Products.CreateCategory(r.Context(), category); err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, category); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) adminUpdateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	patch, err := readPatch(w, r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	category, err := app.store.Products.UpdateCategory(r.Context(), chi.URLParam(r, "categoryID"), patch)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, category); err != nil {
		app.internalServerError(w, r, err)
	}
}

// adminDeleteCategoryHandler refuses categories that still have products or children.
func (app *application) adminDeleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.store.Products.DeleteCategory(r.Context(), chi.URLParam(r, "categoryID")); err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
