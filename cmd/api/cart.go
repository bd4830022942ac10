package main

import (
	"net/http"
	"strings"

	"solestore/internal/domain/carts"

	"github.com/go-chi/chi/v5"
)

type AddCartItemPayload struct {
	ProductID string `json:"product_id" validate:"required"`
	Size      string `json:"size" validate:"omitempty,shoesize"`
	Color     string `json:"color" validate:"max=40"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=10"`
}

type UpdateCartItemPayload struct {
	// zero removes the line
	Quantity *int `json:"quantity" validate:"required,min=0,max=10"`
}

func (app *application) getCartHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	view, err := app.store.Sales.Carts.GetView(r.Context(), user.ID)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, view); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload AddCartItemPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	view, err := app.store.Sales.Carts.AddItem(r.Context(), user.ID, carts.AddItemInput{
		ProductID: strings.TrimSpace(payload.ProductID),
		Size:      payload.Size,
		Color:     strings.TrimSpace(payload.Color),
		Quantity:  payload.Quantity,
	})
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, view); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload UpdateCartItemPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	view, err := app.store.Sales.Carts.UpdateItemQty(r.Context(), user.ID, chi.URLParam(r, "itemID"), *payload.Quantity)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, view); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	view, err := app.store.Sales.Carts.RemoveItem(r.Context(), user.ID, chi.URLParam(r, "itemID"))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, view); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if err := app.store.Sales.Carts.Clear(r.Context(), user.ID); err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
