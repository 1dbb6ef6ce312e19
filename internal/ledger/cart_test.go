package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/pricing"
	"github.com/safar/marketplace-orders/internal/settings"
	"github.com/shopspring/decimal"
)

func validCart() Cart {
	return Cart{
		Items: []CartItem{{
			ProductID: uuid.NewString(),
			Name:      "Mug",
			Slug:      "mug",
			Price:     decimal.RequireFromString("12.50"),
			Quantity:  2,
		}},
		ShippingAddress: &models.ShippingAddress{
			FullName: "Ada Lovelace", Street: "1 Main St", City: "London", PostalCode: "N1", Country: "UK",
		},
		PaymentMethod: models.PaymentMethodStripe,
	}
}

func TestCartValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Cart)
		field  string
	}{
		{"negative price", func(c *Cart) { c.Items[0].Price = decimal.NewFromInt(-1) }, "items[0].price"},
		{"negative quantity", func(c *Cart) { c.Items[0].Quantity = -3 }, "items[0].quantity"},
		{"malformed product id", func(c *Cart) { c.Items[0].ProductID = "507f1f77bcf86cd799439011" }, "items[0].product_id"},
		{"missing name", func(c *Cart) { c.Items[0].Name = "" }, "items[0].name"},
		{"no items", func(c *Cart) { c.Items = nil }, "items"},
		{"no address", func(c *Cart) { c.ShippingAddress = nil }, "shipping_address"},
		{"incomplete address", func(c *Cart) { c.ShippingAddress.City = "" }, "shipping_address.city"},
		{"unknown payment method", func(c *Cart) { c.PaymentMethod = "Barter" }, "payment_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := validCart()
			tt.mutate(&cart)

			err := validateStruct(cart)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("Expected problem on %s, got %v", tt.field, verr.Fields)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("ValidationError should match ErrValidation")
			}
		})
	}
}

func TestCartValidationAcceptsZeroQuantity(t *testing.T) {
	cart := validCart()
	cart.Items[0].Quantity = 0
	cart.Items[0].Price = decimal.Zero

	if err := validateStruct(cart); err != nil {
		t.Errorf("Zero price and quantity are valid: %v", err)
	}
}

func TestCreateRejectsInvalidInputBeforeTouchingStore(t *testing.T) {
	l := New(nil, settings.NewStatic(pricing.DefaultConfig()))
	ctx := context.Background()

	_, err := l.CreateGuestOrder(ctx, models.Guest{Name: "Grace", Email: "not-an-email"}, validCart())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["buyer.email"]; !ok {
		t.Errorf("Expected buyer.email problem, got %v", verr.Fields)
	}

	bad := 9
	cart := validCart()
	cart.DeliveryOptionIndex = &bad
	_, err = l.CreateRegisteredOrder(ctx, uuid.New(), cart)
	if !errors.As(err, &verr) || verr.Fields["delivery_option_index"] == "" {
		t.Errorf("Expected delivery option problem, got %v", err)
	}

	_, err = l.CreateRegisteredOrder(ctx, uuid.Nil, validCart())
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected validation error for nil user id, got %v", err)
	}
}

func TestBuildOrderPricesFromSnapshot(t *testing.T) {
	cfg := pricing.Config{
		TaxRate: pricing.DefaultTaxRate,
		DeliveryOptions: []pricing.DeliveryOption{
			{Name: "Standard", DaysToDeliver: 2, ShippingPrice: decimal.NewFromInt(10), FreeShippingMinPrice: decimal.NewFromInt(100)},
		},
	}
	l := New(nil, settings.NewStatic(cfg))

	cart := validCart()
	cart.Items[0].Price = decimal.NewFromInt(50)
	cart.Items[0].Quantity = 2

	order, err := l.buildOrder(models.GuestBuyer("Grace", "grace@example.com"), cart)
	if err != nil {
		t.Fatalf("buildOrder: %v", err)
	}

	if !order.ItemsPrice.Equal(decimal.NewFromInt(100)) || !order.ShippingPrice.IsZero() ||
		!order.TaxPrice.Equal(decimal.NewFromInt(15)) || !order.TotalPrice.Equal(decimal.NewFromInt(115)) {
		t.Errorf("Unexpected prices: items=%s shipping=%s tax=%s total=%s",
			order.ItemsPrice, order.ShippingPrice, order.TaxPrice, order.TotalPrice)
	}
	if order.IsPaid || order.IsDelivered {
		t.Error("New order must be unpaid and undelivered")
	}
	if order.Items[0].ProductID.String() != cart.Items[0].ProductID {
		t.Error("Product id not normalized")
	}
}

func TestLineItemsHoldColumnLimits(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Cart)
		field  string
	}{
		{"sub-cent price", func(c *Cart) { c.Items[0].Price = decimal.RequireFromString("0.333") }, "items[0].price"},
		{"price beyond column", func(c *Cart) { c.Items[0].Price = decimal.New(1, 11) }, "items[0].price"},
		{"quantity beyond column", func(c *Cart) { c.Items[0].Quantity = maxQuantity + 1 }, "items[0].quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := validCart()
			tt.mutate(&cart)

			_, err := cart.lineItems()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("Expected problem on %s, got %v", tt.field, verr.Fields)
			}
		})
	}
}

func TestLineItemsAcceptTrailingZeros(t *testing.T) {
	cart := validCart()
	cart.Items[0].Price = decimal.RequireFromString("1.500")

	if _, err := cart.lineItems(); err != nil {
		t.Errorf("1.500 is a whole-cent price: %v", err)
	}
}

func TestBuildOrderRejectsSubCentAndOversizedCarts(t *testing.T) {
	l := New(nil, settings.NewStatic(pricing.DefaultConfig()))
	buyer := models.GuestBuyer("Grace", "grace@example.com")

	cart := validCart()
	cart.Items[0].Price = decimal.RequireFromString("0.333")
	cart.Items[0].Quantity = 3
	if _, err := l.buildOrder(buyer, cart); !errors.Is(err, ErrValidation) {
		t.Errorf("Sub-cent price: expected ErrValidation, got %v", err)
	}

	cart = validCart()
	cart.Items[0].Price = maxAmount
	cart.Items[0].Quantity = 2
	_, err := l.buildOrder(buyer, cart)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["items"] == "" {
		t.Errorf("Oversized total: expected a problem on items, got %v", err)
	}
}
