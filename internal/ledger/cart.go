package ledger

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/shopspring/decimal"
)

// CartItem is one line as submitted by the client. ProductID is parsed into a
// uuid here and nowhere else.
type CartItem struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Name      string          `json:"name" validate:"required"`
	Slug      string          `json:"slug" validate:"required"`
	Image     string          `json:"image"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity  int             `json:"quantity" validate:"gte=0"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
}

type Cart struct {
	Items               []CartItem              `json:"items" validate:"required,min=1,dive"`
	ShippingAddress     *models.ShippingAddress `json:"shipping_address" validate:"required"`
	PaymentMethod       models.PaymentMethod    `json:"payment_method" validate:"required,oneof=Stripe PayPal CashOnDelivery"`
	DeliveryOptionIndex *int                    `json:"delivery_option_index" validate:"omitempty,gte=0"`
}

// Limits of the NUMERIC(12,2) money columns and the INT quantity column.
const (
	priceScale  = 2
	maxQuantity = math.MaxInt32
)

var maxAmount = decimal.RequireFromString("9999999999.99")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	return v
}

// validateStruct turns validator failures into a ValidationError. The root
// struct name is stripped from every field path.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		out.Fields[path] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a uuid"
	case "email":
		return "must be an e-mail address"
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

// lineItems normalizes validated cart items into order snapshots. Prices must
// already be whole cents so the stored lines add up to the frozen items price.
func (c Cart) lineItems() ([]models.OrderLineItem, error) {
	problems := &ValidationError{Fields: map[string]string{}}

	items := make([]models.OrderLineItem, len(c.Items))
	for i, item := range c.Items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			problems.Fields[fmt.Sprintf("items[%d].product_id", i)] = "must be a uuid"
		}
		if !item.Price.Equal(item.Price.Round(priceScale)) {
			problems.Fields[fmt.Sprintf("items[%d].price", i)] = "must have at most 2 decimal places"
		} else if item.Price.GreaterThan(maxAmount) {
			problems.Fields[fmt.Sprintf("items[%d].price", i)] = "must be at most " + maxAmount.String()
		}
		if item.Quantity > maxQuantity {
			problems.Fields[fmt.Sprintf("items[%d].quantity", i)] = fmt.Sprintf("must be at most %d", maxQuantity)
		}

		items[i] = models.OrderLineItem{
			ProductID: id,
			Name:      item.Name,
			Slug:      item.Slug,
			Image:     item.Image,
			Category:  item.Category,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		}
	}

	if len(problems.Fields) > 0 {
		return nil, problems
	}
	return items, nil
}
