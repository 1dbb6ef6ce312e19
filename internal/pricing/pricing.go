// Package pricing computes order totals and delivery dates from cart lines and
// an explicit delivery configuration. Every function here is pure.
package pricing

import (
	"errors"
	"time"

	"github.com/safar/marketplace-orders/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNoDeliveryOptions     = errors.New("no delivery options configured")
	ErrInvalidDeliveryOption = errors.New("delivery option index out of range")
)

var DefaultTaxRate = decimal.RequireFromString("0.15")

type DeliveryOption struct {
	Name                 string          `json:"name"`
	DaysToDeliver        int             `json:"days_to_deliver"`
	ShippingPrice        decimal.Decimal `json:"shipping_price"`
	FreeShippingMinPrice decimal.Decimal `json:"free_shipping_min_price"`
}

// Config is a snapshot of the store's pricing settings. Callers take one
// snapshot per operation and never mutate it.
type Config struct {
	TaxRate         decimal.Decimal  `json:"tax_rate"`
	DeliveryOptions []DeliveryOption `json:"delivery_options"`
}

func DefaultConfig() Config {
	return Config{
		TaxRate: DefaultTaxRate,
		DeliveryOptions: []DeliveryOption{
			{Name: "Tomorrow", DaysToDeliver: 1, ShippingPrice: decimal.NewFromInt(10), FreeShippingMinPrice: decimal.NewFromInt(35)},
			{Name: "Next 3 Days", DaysToDeliver: 3, ShippingPrice: decimal.NewFromInt(5), FreeShippingMinPrice: decimal.NewFromInt(35)},
			{Name: "Next 5 Days", DaysToDeliver: 5, ShippingPrice: decimal.Zero, FreeShippingMinPrice: decimal.Zero},
		},
	}
}

type Line struct {
	Price    decimal.Decimal
	Quantity int
}

func LinesFromItems(items []models.OrderLineItem) []Line {
	lines := make([]Line, len(items))
	for i, item := range items {
		lines[i] = Line{Price: item.Price, Quantity: item.Quantity}
	}
	return lines
}

// Result holds the computed prices. ShippingPrice and TaxPrice are nil until a
// shipping address is known.
type Result struct {
	ItemsPrice           decimal.Decimal  `json:"items_price"`
	ShippingPrice        *decimal.Decimal `json:"shipping_price,omitempty"`
	TaxPrice             *decimal.Decimal `json:"tax_price,omitempty"`
	TotalPrice           decimal.Decimal  `json:"total_price"`
	DeliveryOptionIndex  int              `json:"delivery_option_index"`
	DeliveryOption       DeliveryOption   `json:"delivery_option"`
	ExpectedDeliveryDate time.Time        `json:"expected_delivery_date"`
}

func (r Result) Complete() bool {
	return r.ShippingPrice != nil && r.TaxPrice != nil
}

func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Calculate prices the lines. A nil optionIndex selects the last option.
func Calculate(lines []Line, address *models.ShippingAddress, optionIndex *int, cfg Config, now time.Time) (Result, error) {
	if len(cfg.DeliveryOptions) == 0 {
		return Result{}, ErrNoDeliveryOptions
	}

	index := len(cfg.DeliveryOptions) - 1
	if optionIndex != nil {
		index = *optionIndex
	}
	if index < 0 || index >= len(cfg.DeliveryOptions) {
		return Result{}, ErrInvalidDeliveryOption
	}
	option := cfg.DeliveryOptions[index]

	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	itemsPrice := Round2(sum)

	result := Result{
		ItemsPrice:           itemsPrice,
		DeliveryOptionIndex:  index,
		DeliveryOption:       option,
		ExpectedDeliveryDate: now.AddDate(0, 0, option.DaysToDeliver),
	}

	total := itemsPrice
	if address != nil {
		shipping := option.ShippingPrice
		if option.FreeShippingMinPrice.IsPositive() && itemsPrice.GreaterThanOrEqual(option.FreeShippingMinPrice) {
			shipping = decimal.Zero
		}
		tax := Round2(itemsPrice.Mul(cfg.TaxRate))

		result.ShippingPrice = &shipping
		result.TaxPrice = &tax
		total = total.Add(shipping).Add(tax)
	}
	result.TotalPrice = Round2(total)

	return result, nil
}
