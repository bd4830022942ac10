package admindashboard

import (
	"context"

	"solestore/internal/domain/orders"
	"solestore/internal/domain/products"
)

const (
	DefaultLowStockThreshold = 5
	recentOrdersLimit        = 5
)

type Overview struct {
	// Users
	TotalUsers         int `json:"total_users"`
	TotalActiveUsers   int `json:"total_active_users"`
	TotalInactiveUsers int `json:"total_inactive_users"`
	TotalAdmins        int `json:"total_admins"`

	// Catalog
	TotalProducts      int `json:"total_products"`
	TotalActiveProduct int `json:"total_active_products"`
	OutOfStock         int `json:"out_of_stock"`
	LowStock           int `json:"low_stock"`
	TotalCategories    int `json:"total_categories"`

	// Orders
	TotalOrders       int            `json:"total_orders"`
	OrdersByStatus    map[string]int `json:"orders_by_status"`
	RevenueCents      int64          `json:"revenue_cents"`
	AverageOrderCents int64          `json:"average_order_cents"`

	RecentOrders     []*orders.Order     `json:"recent_orders"`
	LowStockProducts []*products.Product `json:"low_stock_products"`
}

type Store interface {
	GetOverview(ctx context.Context) (*Overview, error)
}
