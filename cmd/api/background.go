package main

import (
	"fmt"
	"time"

	"solestore/internal/domain/orders"
	"solestore/internal/mailer"
)

// background runs fn on its own goroutine. Panics are logged, not raised.
func (app *application) background(fn func()) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				app.logger.Errorw("background task panicked", "error", fmt.Sprintf("%v", err))
			}
		}()
		fn()
	}()
}

func (app *application) sendMail(template, name, email string, data any) {
	app.background(func() {
		start := time.Now()
		status, err := app.mailer.Send(template, name, email, data)
		if err != nil {
			app.logger.Errorw("error sending email", "template", template, "email", email, "error", err.Error())
			return
		}
		app.logger.Infow("email sent", "template", template, "email", email, "status", status, "took", time.Since(start).String())
	})
}

func (app *application) sendOrderConfirmation(o *orders.Order) {
	app.sendMail(mailer.OrderConfirmationTemplate, o.CustomerName, o.CustomerEmail, struct {
		Username      string
		OrderNumber   string
		Items         []orders.Item
		SubtotalCents int64
		ShippingCents int64
		TotalCents    int64
	}{
		Username:      o.CustomerName,
		OrderNumber:   o.OrderNumber,
		Items:         o.Items,
		SubtotalCents: o.SubtotalCents,
		ShippingCents: o.ShippingCents,
		TotalCents:    o.TotalCents,
	})
}

func (app *application) sendOrderStatus(o *orders.Order, note string) {
	app.sendMail(mailer.OrderStatusTemplate, o.CustomerName, o.CustomerEmail, struct {
		Username    string
		OrderNumber string
		Status      string
		Note        string
	}{
		Username:    o.CustomerName,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Note:        note,
	})
}
