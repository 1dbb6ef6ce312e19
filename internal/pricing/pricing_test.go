package pricing

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/safar/marketplace-orders/internal/models"
	"github.com/shopspring/decimal"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func address() *models.ShippingAddress {
	return &models.ShippingAddress{FullName: "Ada", Street: "1 Main", City: "Oslo", PostalCode: "0150", Country: "NO"}
}

func singleOption(shipping, freeMin string) Config {
	return Config{
		TaxRate: DefaultTaxRate,
		DeliveryOptions: []DeliveryOption{
			{Name: "Standard", DaysToDeliver: 4, ShippingPrice: dec(shipping), FreeShippingMinPrice: dec(freeMin)},
		},
	}
}

func TestCalculateFreeShippingThresholdMet(t *testing.T) {
	lines := []Line{{Price: dec("50"), Quantity: 2}}

	result, err := Calculate(lines, address(), nil, singleOption("10", "100"), now)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if !result.ItemsPrice.Equal(dec("100")) {
		t.Errorf("Expected items 100, got %s", result.ItemsPrice)
	}
	if !result.ShippingPrice.Equal(decimal.Zero) {
		t.Errorf("Expected free shipping, got %s", result.ShippingPrice)
	}
	if !result.TaxPrice.Equal(dec("15")) {
		t.Errorf("Expected tax 15, got %s", result.TaxPrice)
	}
	if !result.TotalPrice.Equal(dec("115")) {
		t.Errorf("Expected total 115, got %s", result.TotalPrice)
	}
	if !result.ExpectedDeliveryDate.Equal(now.AddDate(0, 0, 4)) {
		t.Errorf("Unexpected delivery date %s", result.ExpectedDeliveryDate)
	}
}

func TestCalculateBelowThresholdChargesShipping(t *testing.T) {
	lines := []Line{{Price: dec("49.99"), Quantity: 1}}

	result, err := Calculate(lines, address(), nil, singleOption("10", "100"), now)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if !result.ShippingPrice.Equal(dec("10")) {
		t.Errorf("Expected shipping 10, got %s", result.ShippingPrice)
	}
	// 49.99 * 0.15 = 7.4985 -> 7.50
	if !result.TaxPrice.Equal(dec("7.5")) {
		t.Errorf("Expected tax 7.50, got %s", result.TaxPrice)
	}
	if !result.TotalPrice.Equal(dec("67.49")) {
		t.Errorf("Expected total 67.49, got %s", result.TotalPrice)
	}
}

func TestCalculateZeroThresholdNeverFree(t *testing.T) {
	lines := []Line{{Price: dec("500"), Quantity: 1}}

	result, err := Calculate(lines, address(), nil, singleOption("7", "0"), now)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !result.ShippingPrice.Equal(dec("7")) {
		t.Errorf("A zero threshold must not grant free shipping, got %s", result.ShippingPrice)
	}
}

func TestCalculateWithoutAddressIsIncomplete(t *testing.T) {
	lines := []Line{{Price: dec("20"), Quantity: 3}}

	result, err := Calculate(lines, nil, nil, DefaultConfig(), now)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if result.Complete() {
		t.Error("Pricing without address should be incomplete")
	}
	if result.ShippingPrice != nil || result.TaxPrice != nil {
		t.Error("Shipping and tax should be undefined without address")
	}
	if !result.TotalPrice.Equal(dec("60")) {
		t.Errorf("Expected total to equal items price 60, got %s", result.TotalPrice)
	}
}

func TestCalculateDefaultsToLastOption(t *testing.T) {
	cfg := DefaultConfig()

	result, err := Calculate([]Line{{Price: dec("5"), Quantity: 1}}, address(), nil, cfg, now)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if result.DeliveryOptionIndex != len(cfg.DeliveryOptions)-1 {
		t.Errorf("Expected last option, got index %d", result.DeliveryOptionIndex)
	}

	first := 0
	result, err = Calculate([]Line{{Price: dec("5"), Quantity: 1}}, address(), &first, cfg, now)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if result.DeliveryOption.Name != "Tomorrow" || !result.ShippingPrice.Equal(dec("10")) {
		t.Errorf("Unexpected first option result: %+v", result)
	}
}

func TestCalculateRejectsBadOption(t *testing.T) {
	bad := 7
	_, err := Calculate(nil, nil, &bad, DefaultConfig(), now)
	if !errors.Is(err, ErrInvalidDeliveryOption) {
		t.Errorf("Expected ErrInvalidDeliveryOption, got %v", err)
	}

	_, err = Calculate(nil, nil, nil, Config{TaxRate: DefaultTaxRate}, now)
	if !errors.Is(err, ErrNoDeliveryOptions) {
		t.Errorf("Expected ErrNoDeliveryOptions, got %v", err)
	}
}

func TestCalculateRoundsOnlyTotals(t *testing.T) {
	// Three lines of 0.333 would round to 0.99 if each subtotal were rounded.
	lines := []Line{
		{Price: dec("0.333"), Quantity: 1},
		{Price: dec("0.333"), Quantity: 1},
		{Price: dec("0.334"), Quantity: 1},
	}

	result, err := Calculate(lines, nil, nil, DefaultConfig(), now)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !result.ItemsPrice.Equal(dec("1")) {
		t.Errorf("Expected items 1.00, got %s", result.ItemsPrice)
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	lines := []Line{{Price: dec("12.345"), Quantity: 7}, {Price: dec("3.10"), Quantity: 2}}
	index := 1

	first, err := Calculate(lines, address(), &index, DefaultConfig(), now)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	second, err := Calculate(lines, address(), &index, DefaultConfig(), now)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Calculate is not deterministic:\n%+v\n%+v", first, second)
	}
}
