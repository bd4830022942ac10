package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"solestore/internal/domain/orders"
	"solestore/internal/params"

	"github.com/go-chi/chi/v5"
)

// AdminUpdateOrderStatusRequest is PATCH body.
type AdminUpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
	Note   string `json:"note" validate:"max=300"`
}

func (app *application) adminListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	status, ok := statusFilter(r)
	if !ok {
		app.badRequestResponse(w, r, orders.ErrInvalidStatus)
		return
	}
	p := params.ParsePagination(r.URL.Query())

	items, total, err := app.store.Sales.Orders.ListAll(ctx, status, &p)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := app.jsonResponse(w, http.StatusOK, OrderListResponse{Items: items, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) adminGetOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := app.store.Sales.Orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

// adminUpdateOrderStatusHandler moves an order along its status flow and
// emails the customer.
func (app *application) adminUpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req AdminUpdateOrderStatusRequest
	if err := readJSON(w, r, &req); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))

	if err := Validate.Struct(req); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	admin := getUserFromContext(r)

	order, err := app.store.Sales.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), req.Status, req.Note, admin.ID)
	if err != nil && !errors.Is(err, orders.ErrRestockFailed) {
		app.domainErrorResponse(w, r, err)
		return
	}
	if err != nil {
		app.logger.Errorw("cancelled order was not restocked", "order", order.OrderNumber, "error", err.Error())
	}

	app.logger.Infow("order status updated", "order", order.OrderNumber, "status", order.Status, "by", admin.ID)
	app.sendOrderStatus(order, req.Note)

	if err := app.jsonResponse(w, http.StatusOK, order); err != nil {
		app.internalServerError(w, r, err)
	}
}
