// Package vendororders shows each vendor the orders that contain its products,
// cut down to that vendor's own line items.
package vendororders

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/pricing"
	"github.com/safar/marketplace-orders/internal/store"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// VendorOrder is a vendor-scoped projection of an order. Buyer contact details
// are limited to the name on the packing slip; the e-mail stays private.
type VendorOrder struct {
	ID               uuid.UUID              `json:"id"`
	BuyerName        string                 `json:"buyer_name"`
	ShippingAddress  models.ShippingAddress `json:"shipping_address"`
	PaymentMethod    models.PaymentMethod   `json:"payment_method"`
	Items            []models.OrderLineItem `json:"items"`
	VendorItemsPrice decimal.Decimal        `json:"vendor_items_price"`
	TotalPrice       decimal.Decimal        `json:"total_price"`
	IsPaid           bool                   `json:"is_paid"`
	PaidAt           *time.Time             `json:"paid_at,omitempty"`
	IsDelivered      bool                   `json:"is_delivered"`
	DeliveredAt      *time.Time             `json:"delivered_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

type ProductSet map[uuid.UUID]struct{}

func NewProductSet(ids []uuid.UUID) ProductSet {
	set := make(ProductSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s ProductSet) Contains(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Holds reports whether any line of order is one of the set's products.
func (s ProductSet) Holds(order *models.Order) bool {
	for _, item := range order.Items {
		if s.Contains(item.ProductID) {
			return true
		}
	}
	return false
}

// Project keeps the owned items in their original order. TotalPrice is the
// buyer's grand total and is never recomputed.
func Project(order *models.Order, owned ProductSet) VendorOrder {
	items := []models.OrderLineItem{}
	sum := decimal.Zero
	for _, item := range order.Items {
		if !owned.Contains(item.ProductID) {
			continue
		}
		items = append(items, item)
		sum = sum.Add(item.Subtotal())
	}

	return VendorOrder{
		ID:               order.ID,
		BuyerName:        order.Buyer.DisplayName(),
		ShippingAddress:  order.ShippingAddress,
		PaymentMethod:    order.PaymentMethod,
		Items:            items,
		VendorItemsPrice: pricing.Round2(sum),
		TotalPrice:       order.TotalPrice,
		IsPaid:           order.IsPaid,
		PaidAt:           order.PaidAt,
		IsDelivered:      order.IsDelivered,
		DeliveredAt:      order.DeliveredAt,
		CreatedAt:        order.CreatedAt,
	}
}

type Partitioner struct {
	db *sql.DB
}

func NewPartitioner(db *sql.DB) *Partitioner {
	return &Partitioner{db: db}
}

// OwnedProducts returns the set of products the vendor sells.
func (p *Partitioner) OwnedProducts(ctx context.Context, vendorID uuid.UUID) (ProductSet, error) {
	ids, err := store.ProductIDsByVendor(ctx, p.db, vendorID)
	if err != nil {
		return nil, err
	}
	return NewProductSet(ids), nil
}

// OrdersForVendor pages the orders holding any of the vendor's products, newest
// first. A vendor without products gets an empty page.
func (p *Partitioner) OrdersForVendor(ctx context.Context, vendorID uuid.UUID, page, pageSize int) (*store.OffsetPage[VendorOrder], error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	productIDs, err := store.ProductIDsByVendor(ctx, p.db, vendorID)
	if err != nil {
		return nil, err
	}
	if len(productIDs) == 0 {
		return store.NewOffsetPage[VendorOrder](nil, 0, page, pageSize), nil
	}

	total, err := store.CountOrdersWithProducts(ctx, p.db, productIDs)
	if err != nil {
		return nil, err
	}

	orders, err := store.ListOrdersWithProducts(ctx, p.db, productIDs, pageSize, store.Offset(page, pageSize))
	if err != nil {
		return nil, err
	}

	owned := NewProductSet(productIDs)
	projected := make([]VendorOrder, len(orders))
	for i, order := range orders {
		projected[i] = Project(order, owned)
	}

	return store.NewOffsetPage(projected, total, page, pageSize), nil
}
