package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSchemaVersion is written to every new order row.
const OrderSchemaVersion = 1

type User struct {
	ID               uuid.UUID     `json:"id"`
	Email            string        `json:"email"`
	Name             string        `json:"name"`
	VendorStatus     *VendorStatus `json:"vendor_status,omitempty"`
	StoreName        string        `json:"store_name,omitempty"`
	StoreDescription string        `json:"store_description,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Version          int           `json:"version"`
}

type VendorStatus string

const (
	VendorPending  VendorStatus = "pending"
	VendorApproved VendorStatus = "approved"
	VendorRejected VendorStatus = "rejected"
)

func (u *User) IsApprovedVendor() bool {
	return u.VendorStatus != nil && *u.VendorStatus == VendorApproved
}

type Product struct {
	ID           uuid.UUID       `json:"id"`
	VendorID     uuid.UUID       `json:"vendor_id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Category     string          `json:"category"`
	Image        string          `json:"image"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"count_in_stock"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Version      int             `json:"version"`
}

type ShippingAddress struct {
	FullName   string `json:"full_name" validate:"required"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone,omitempty"`
}

// OrderLineItem is a snapshot of the product taken when the order was placed.
type OrderLineItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image,omitempty"`
	Category  string          `json:"category,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

func (i OrderLineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID                   uuid.UUID       `json:"id"`
	SchemaVersion        int             `json:"schema_version"`
	Buyer                Buyer           `json:"buyer"`
	Items                []OrderLineItem `json:"items"`
	ShippingAddress      ShippingAddress `json:"shipping_address"`
	PaymentMethod        PaymentMethod   `json:"payment_method"`
	PaymentResult        *PaymentResult  `json:"payment_result,omitempty"`
	ItemsPrice           decimal.Decimal `json:"items_price"`
	ShippingPrice        decimal.Decimal `json:"shipping_price"`
	TaxPrice             decimal.Decimal `json:"tax_price"`
	TotalPrice           decimal.Decimal `json:"total_price"`
	ExpectedDeliveryDate time.Time       `json:"expected_delivery_date"`
	IsPaid               bool            `json:"is_paid"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	IsDelivered          bool            `json:"is_delivered"`
	DeliveredAt          *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

type PaymentMethod string

const (
	PaymentMethodStripe         PaymentMethod = "Stripe"
	PaymentMethodPayPal         PaymentMethod = "PayPal"
	PaymentMethodCashOnDelivery PaymentMethod = "CashOnDelivery"
)
