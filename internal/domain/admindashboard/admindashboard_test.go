package admindashboard_test

import (
	"context"
	"testing"

	"solestore/internal/domain/carts"
	"solestore/internal/domain/orders"
	"solestore/internal/domain/products"
	"solestore/internal/domain/storage"
	"solestore/internal/domain/users"
	"solestore/internal/recordstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOverview(t *testing.T) {
	ctx := context.Background()
	backend, err := recordstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	gen, err := orders.NewOrderNumberGenerator("salt")
	require.NoError(t, err)
	c := storage.NewContainer(recordstore.New(backend), storage.Options{
		OrderNumbers:      gen,
		Pricing:           orders.Pricing{ShippingFeeCents: 500},
		LowStockThreshold: 3,
	})

	admin := &users.User{Email: "admin@example.com", Role: users.RoleAdmin, IsActive: true}
	require.NoError(t, c.Users.Create(ctx, admin))
	buyer := &users.User{Email: "buyer@example.com", IsActive: true}
	require.NoError(t, c.Users.Create(ctx, buyer))

	cat := &products.Category{Name: "Boots", IsActive: true}
	require.NoError(t, c.Products.CreateCategory(ctx, cat))
	boot := &products.Product{Name: "Chelsea", CategoryID: cat.ID, PriceCents: 15000, Stock: 4, IsActive: true}
	require.NoError(t, c.Products.Create(ctx, boot))
	require.NoError(t, c.Products.Create(ctx, &products.Product{Name: "Sold Out", PriceCents: 100, IsActive: true}))

	_, err = c.Sales.Carts.AddItem(ctx, buyer.ID, carts.AddItemInput{ProductID: boot.ID, Quantity: 2})
	require.NoError(t, err)
	order, err := c.Sales.Orders.CreateFromCart(ctx, orders.CheckoutInput{UserID: buyer.ID, PaymentMethod: orders.PaymentCard})
	require.NoError(t, err)

	o, err := c.Dashboard.GetOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, o.TotalUsers)
	assert.Equal(t, 1, o.TotalAdmins)
	assert.Equal(t, 2, o.TotalProducts)
	assert.Equal(t, 1, o.OutOfStock)
	assert.Equal(t, 1, o.LowStock)
	assert.Equal(t, 1, o.TotalCategories)
	assert.Equal(t, 1, o.TotalOrders)
	assert.Equal(t, 1, o.OrdersByStatus[orders.StatusPending])
	assert.Equal(t, int64(30500), o.RevenueCents)
	require.Len(t, o.RecentOrders, 1)
	assert.Equal(t, order.ID, o.RecentOrders[0].ID)
	assert.Len(t, o.LowStockProducts, 2)
}
