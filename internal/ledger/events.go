package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/shopspring/decimal"
)

const TopicOrderPaid = "order.paid"

// OrderPaidEvent is what the notification consumer needs to e-mail a receipt.
type OrderPaidEvent struct {
	OrderID       uuid.UUID            `json:"order_id"`
	Email         string               `json:"email"`
	Name          string               `json:"name"`
	IsGuest       bool                 `json:"is_guest"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	TotalPrice    decimal.Decimal      `json:"total_price"`
	ItemCount     int                  `json:"item_count"`
	PaidAt        time.Time            `json:"paid_at"`
}

func orderPaidEvent(order *models.Order) OrderPaidEvent {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}

	event := OrderPaidEvent{
		OrderID:       order.ID,
		Email:         order.Buyer.Email(),
		Name:          order.Buyer.DisplayName(),
		IsGuest:       order.Buyer.IsGuest(),
		PaymentMethod: order.PaymentMethod,
		TotalPrice:    order.TotalPrice,
		ItemCount:     count,
	}
	if order.PaidAt != nil {
		event.PaidAt = *order.PaidAt
	}
	return event
}
