package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"solestore/internal/domain/products"
	"solestore/internal/images"
	"solestore/internal/params"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var errImagesDisabled = errors.New("image uploads are not configured")

type CreateProductPayload struct {
	Name           string   `json:"name" validate:"required,max=200"`
	Slug           string   `json:"slug" validate:"omitempty,max=200"`
	Description    string   `json:"description" validate:"max=5000"`
	Brand          string   `json:"brand" validate:"required,max=100"`
	CategoryID     string   `json:"category_id" validate:"omitempty"`
	Gender         string   `json:"gender" validate:"omitempty,oneof=men women kids unisex"`
	PriceCents     int64    `json:"price_cents" validate:"gte=0"`
	SalePriceCents *int64   `json:"sale_price_cents" validate:"omitempty,gte=0"`
	Sizes          []string `json:"sizes" validate:"dive,shoesize"`
	Colors         []string `json:"colors" validate:"dive,min=1,max=40"`
	Stock          int      `json:"stock" validate:"gte=0"`
	Images         []string `json:"images" validate:"dive,url"`
	Featured       bool     `json:"featured"`
	IsActive       *bool    `json:"is_active"`
}

// adminListProductsHandler lists every product, inactive ones included.
func (app *application) adminListProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter, err := products.ParseFilter(q)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	filter.IncludeInactive = true

	app.writeProductList(w, r, filter, params.ParsePagination(q))
}

func (app *application) adminCreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateProductPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	isActive := true
	if payload.IsActive != nil {
		isActive = *payload.IsActive
	}

	product := &products.Product{
		Name:           strings.TrimSpace(payload.Name),
		Slug:           payload.Slug,
		Description:    strings.TrimSpace(payload.Description),
		Brand:          strings.TrimSpace(payload.Brand),
		CategoryID:     strings.TrimSpace(payload.CategoryID),
		Gender:         payload.Gender,
		PriceCents:     payload.PriceCents,
		SalePriceCents: payload.SalePriceCents,
		Sizes:          payload.Sizes,
		Colors:         payload.Colors,
		Stock:          payload.Stock,
		Images:         payload.Images,
		Featured:       payload.Featured,
		IsActive:       isActive,
	}

	if err := app.store.Products.Create(r.Context(), product); err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.logger.Infow("product created", "product", product.ID, "slug", product.Slug, "by", getUserFromContext(r).ID)

	if err := app.jsonResponse(w, http.StatusCreated, product); err != nil {
		app.internalServerError(w, r, err)
	}
}

// adminUpdateProductHandler applies a partial update: every field present in
// the body replaces the stored one.
func (app *application) adminUpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	patch, err := readPatch(w, r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	product, err := app.store.Products.Patch(r.Context(), chi.URLParam(r, "productID"), patch)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, product); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) adminDeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "productID")

	product, err := app.store.Products.Get(ctx, id)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.store.Products.Delete(ctx, product.ID); err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if app.images != nil && len(product.Images) > 0 {
		app.background(func() {
			app.deleteImages(product.Images)
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

// adminUploadProductImageHandler expects a multipart form with an "image" file.
func (app *application) adminUploadProductImageHandler(w http.ResponseWriter, r *http.Request) {
	if app.images == nil {
		app.serviceUnavailableResponse(w, r, errImagesDisabled)
		return
	}

	ctx := r.Context()

	product, err := app.store.Products.Get(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, images.MaxUploadBytes+1024)
	if err := r.ParseMultipartForm(images.MaxUploadBytes); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("failed to parse form: %w", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("image")
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("image file is required: %w", err))
		return
	}
	defer file.Close()

	body, _, err := images.Sniff(file)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	publicID := fmt.Sprintf("%s-%s", product.Slug, uuid.NewString()[:8])
	url, err := app.images.Upload(ctx, body, publicID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	updated, err := app.store.Products.AddImage(ctx, product.ID, url)
	if err != nil {
		// don't leave an orphan behind
		app.background(func() { app.deleteImages([]string{url}) })
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, updated); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteImages(urls []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, u := range urls {
		if err := app.images.Delete(ctx, u); err != nil {
			app.logger.Warnw("failed to delete image", "url", u, "error", err.Error())
		}
	}
}
