package orders

import (
	"time"

	"solestore/internal/recordstore"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

var Statuses = []string{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// transitions lists the statuses each status may move to.
var transitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

const (
	PaymentCard           = "card"
	PaymentCashOnDelivery = "cash_on_delivery"
	PaymentPayPal         = "paypal"

	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

func ValidPaymentMethod(m string) bool {
	return m == PaymentCard || m == PaymentCashOnDelivery || m == PaymentPayPal
}

type Order struct {
	recordstore.Meta
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	Items           []Item          `json:"items"`
	SubtotalCents   int64           `json:"subtotal_cents"`
	ShippingCents   int64           `json:"shipping_cents"`
	TotalCents      int64           `json:"total_cents"`
	Status          string          `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Notes           string          `json:"notes,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	History         []StatusChange  `json:"history"`
}

// Item is a snapshot of a cart line at checkout.
type Item struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	ProductSlug    string `json:"product_slug"`
	Size           string `json:"size,omitempty"`
	Color          string `json:"color,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
	ImageURL       string `json:"image_url,omitempty"`
}

type ShippingAddress struct {
	FullName   string `json:"full_name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=30"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state,omitempty" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=60"`
}

type StatusChange struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
	By     string    `json:"by,omitempty"`
}

func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

type CheckoutInput struct {
	UserID        string
	CustomerName  string
	CustomerEmail string
	Shipping      ShippingAddress
	PaymentMethod string
	Notes         string
}

// Pricing holds the shipping rules applied at checkout.
type Pricing struct {
	FreeShippingThresholdCents int64
	ShippingFeeCents           int64
}

func (p Pricing) ShippingFor(subtotal int64) int64 {
	if p.FreeShippingThresholdCents > 0 && subtotal >= p.FreeShippingThresholdCents {
		return 0
	}
	return p.ShippingFeeCents
}

type Summary struct {
	Total             int            `json:"total"`
	ByStatus          map[string]int `json:"by_status"`
	RevenueCents      int64          `json:"revenue_cents"`
	AverageOrderCents int64          `json:"average_order_cents"`
}
