package storage

import (
	"solestore/internal/domain/admindashboard"
	"solestore/internal/domain/carts"
	"solestore/internal/domain/orders"
	"solestore/internal/domain/products"
	"solestore/internal/domain/users"
	"solestore/internal/recordstore"
)

type Sales struct {
	Carts  carts.Store
	Orders orders.Store
}

// Container holds every repository, all sharing one record store.
type Container struct {
	Records   *recordstore.Store
	Users     users.Store
	Products  products.Store
	Sales     Sales
	Dashboard admindashboard.Store
}

type Options struct {
	OrderNumbers      *orders.OrderNumberGenerator
	Pricing           orders.Pricing
	LowStockThreshold int
}

func NewContainer(records *recordstore.Store, opts Options) *Container {
	u := users.NewRepository(records)
	p := products.NewRepository(records)
	c := carts.NewRepository(records, p)
	o := orders.NewRepository(records, c, p, opts.OrderNumbers, opts.Pricing)

	return &Container{
		Records:  records,
		Users:    u,
		Products: p,
		Sales: Sales{
			Carts:  c,
			Orders: o,
		},
		Dashboard: admindashboard.NewRepository(u, p, o, opts.LowStockThreshold),
	}
}
