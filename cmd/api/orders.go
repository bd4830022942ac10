package main

import (
	"errors"
	"net/http"
	"strings"

	"solestore/internal/domain/orders"
	"solestore/internal/domain/users"
	"solestore/internal/params"

	"github.com/go-chi/chi/v5"
)

type CheckoutPayload struct {
	// ShippingAddress falls back to the address saved on the profile.
	ShippingAddress *orders.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                  `json:"payment_method" validate:"required,oneof=card cash_on_delivery paypal"`
	Notes           string                  `json:"notes" validate:"max=500"`
}

type CancelOrderPayload struct {
	Reason string `json:"reason" validate:"max=300"`
}

type OrderListResponse = listResponse[*orders.Order]

// checkoutHandler turns the caller's cart into an order.
func (app *application) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload CheckoutPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if payload.ShippingAddress == nil {
		payload.ShippingAddress = savedShippingAddress(user)
		if payload.ShippingAddress == nil {
			app.badRequestResponse(w, r, errors.New("shipping_address is required"))
			return
		}
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload.ShippingAddress); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	order, err := app.store.Sales.Orders.CreateFromCart(r.Context(), orders.CheckoutInput{
		UserID:        user.ID,
		CustomerName:  user.FullName(),
		CustomerEmail: user.Email,
		Shipping:      *payload.ShippingAddress,
		PaymentMethod: payload.PaymentMethod,
		Notes:         strings.TrimSpace(payload.Notes),
	})
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.logger.Infow("order placed", "order", order.OrderNumber, "user", user.ID, "total_cents", order.TotalCents)
	app.sendOrderConfirmation(order)

	if err := app.jsonResponse(w, http.StatusCreated, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

func savedShippingAddress(user *users.User) *orders.ShippingAddress {
	if user.Address == nil {
		return nil
	}
	a := user.Address
	return &orders.ShippingAddress{
		FullName:   user.FullName(),
		Phone:      user.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func (app *application) listMyOrdersHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	status, ok := statusFilter(r)
	if !ok {
		app.badRequestResponse(w, r, orders.ErrInvalidStatus)
		return
	}
	p := params.ParsePagination(r.URL.Query())

	items, total, err := app.store.Sales.Orders.ListByUser(r.Context(), user.ID, status, &p)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := app.jsonResponse(w, http.StatusOK, OrderListResponse{Items: items, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getMyOrderHandler accepts an order id or order number.
func (app *application) getMyOrderHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	order, err := app.store.Sales.Orders.GetForUser(r.Context(), user.ID, chi.URLParam(r, "orderID"))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) cancelMyOrderHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload CancelOrderPayload
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &payload); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
		if err := Validate.Struct(payload); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
	}

	order, err := app.store.Sales.Orders.CancelForUser(r.Context(), user.ID, chi.URLParam(r, "orderID"), strings.TrimSpace(payload.Reason))
	if err != nil && !errors.Is(err, orders.ErrRestockFailed) {
		app.domainErrorResponse(w, r, err)
		return
	}
	if err != nil {
		// the cancellation itself was saved
		app.logger.Errorw("cancelled order was not restocked", "order", order.OrderNumber, "error", err.Error())
	}

	app.sendOrderStatus(order, payload.Reason)

	if err := app.jsonResponse(w, http.StatusOK, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

// statusFilter reads ?status=; ok is false for an unknown status.
func statusFilter(r *http.Request) (string, bool) {
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	if status == "" {
		return "", true
	}
	return status, orders.ValidStatus(status)
}
