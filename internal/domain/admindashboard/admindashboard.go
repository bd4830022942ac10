package admindashboard

import (
	"context"
	"fmt"

	"solestore/internal/domain/orders"
	"solestore/internal/domain/products"
	"solestore/internal/domain/users"
)

type Repository struct {
	users             users.Store
	products          products.Store
	orders            orders.Store
	lowStockThreshold int
}

func NewRepository(u users.Store, p products.Store, o orders.Store, lowStockThreshold int) Store {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	return &Repository{users: u, products: p, orders: o, lowStockThreshold: lowStockThreshold}
}

func (r *Repository) GetOverview(ctx context.Context) (*Overview, error) {
	uc, err := r.users.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("get admin overview: users: %w", err)
	}
	ps, err := r.products.Stats(ctx, r.lowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("get admin overview: products: %w", err)
	}
	summary, err := r.orders.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("get admin overview: orders: %w", err)
	}
	recent, err := r.orders.Recent(ctx, recentOrdersLimit)
	if err != nil {
		return nil, fmt.Errorf("get admin overview: recent orders: %w", err)
	}
	low, err := r.products.LowStock(ctx, r.lowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("get admin overview: low stock: %w", err)
	}

	return &Overview{
		TotalUsers:         uc.Total,
		TotalActiveUsers:   uc.Active,
		TotalInactiveUsers: uc.Inactive,
		TotalAdmins:        uc.Admins,

		TotalProducts:      ps.Total,
		TotalActiveProduct: ps.Active,
		OutOfStock:         ps.OutOfStock,
		LowStock:           ps.LowStock,
		TotalCategories:    ps.Categories,

		TotalOrders:       summary.Total,
		OrdersByStatus:    summary.ByStatus,
		RevenueCents:      summary.RevenueCents,
		AverageOrderCents: summary.AverageOrderCents,

		RecentOrders:     recent,
		LowStockProducts: low,
	}, nil
}
