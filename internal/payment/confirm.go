// Package payment confirms orders as paid, either from a gateway's record or
// by an operator settling them by hand.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/ledger"
	"github.com/safar/marketplace-orders/internal/models"
)

var ErrPaymentMismatch = errors.New("payment does not match order")

type Ledger interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, result models.PaymentResult) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type Confirmation struct {
	Order *models.Order
	// AlreadyPaid is set when the order was paid before this confirmation;
	// nothing was changed.
	AlreadyPaid bool
}

type Confirmer struct {
	ledger  Ledger
	gateway Gateway
	logger  *slog.Logger
}

func NewConfirmer(l Ledger, gateway Gateway, logger *slog.Logger) *Confirmer {
	return &Confirmer{ledger: l, gateway: gateway, logger: logger}
}

// ConfirmGatewayPayment accepts the gateway record only if it is linked to
// orderID and has succeeded. Repeated confirmations of a paid order are
// reported with AlreadyPaid and no error.
func (c *Confirmer) ConfirmGatewayPayment(ctx context.Context, orderID uuid.UUID, ref string) (*Confirmation, error) {
	order, err := c.ledger.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return &Confirmation{Order: order, AlreadyPaid: true}, nil
	}

	payment, err := c.gateway.FetchPayment(ctx, ref)
	if err != nil {
		return nil, err
	}

	if payment.OrderID != orderID.String() {
		c.logger.WarnContext(ctx, "gateway payment linked to another order",
			"order_id", orderID, "payment_id", payment.ID, "payment_order_id", payment.OrderID)
		return nil, fmt.Errorf("%w: payment %s is not linked to order %s", ErrPaymentMismatch, payment.ID, orderID)
	}
	if payment.Status != StatusSucceeded {
		c.logger.WarnContext(ctx, "gateway payment not succeeded",
			"order_id", orderID, "payment_id", payment.ID, "status", payment.Status)
		return nil, fmt.Errorf("%w: payment %s has status %q", ErrPaymentMismatch, payment.ID, payment.Status)
	}

	result := models.GatewayPaymentResult(models.GatewayReceipt{
		TransactionID: payment.ID,
		Status:        payment.Status,
		PayerEmail:    payment.PayerEmail,
	})

	paid, err := c.ledger.MarkPaid(ctx, orderID, result)
	if errors.Is(err, ledger.ErrAlreadyPaid) {
		// Lost the race to a concurrent confirmation of the same order.
		current, err := c.ledger.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return &Confirmation{Order: current, AlreadyPaid: true}, nil
	}
	if err != nil {
		return nil, err
	}

	return &Confirmation{Order: paid}, nil
}

// SettleManually marks an order paid in cash on behalf of actor. Errors such as
// ledger.ErrAlreadyPaid are returned unchanged so operators see the reason.
func (c *Confirmer) SettleManually(ctx context.Context, orderID, actor uuid.UUID, note string) (*models.Order, error) {
	order, err := c.ledger.MarkPaid(ctx, orderID, models.CashPaymentResult(models.CashReceipt{
		SettledBy: actor,
		Note:      note,
	}))
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "order settled manually", "order_id", orderID, "actor", actor)
	return order, nil
}

func (c *Confirmer) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return c.ledger.MarkDelivered(ctx, orderID)
}
