package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/ledger"
	"github.com/safar/marketplace-orders/internal/models"
)

type fakeLedger struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*models.Order
	paidWith []models.PaymentResult
	// raceOnPay simulates another confirmation committing first.
	raceOnPay bool
}

func newFakeLedger(orders ...*models.Order) *fakeLedger {
	f := &fakeLedger{orders: map[uuid.UUID]*models.Order{}}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeLedger) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeLedger) MarkPaid(_ context.Context, id uuid.UUID, result models.PaymentResult) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	if f.raceOnPay {
		order.IsPaid = true
	}
	if order.IsPaid {
		return nil, ledger.ErrAlreadyPaid
	}
	order.IsPaid = true
	order.PaymentResult = &result
	f.paidWith = append(f.paidWith, result)
	copied := *order
	return &copied, nil
}

func (f *fakeLedger) MarkDelivered(_ context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	if !order.IsPaid {
		return nil, ledger.ErrNotPaid
	}
	order.IsDelivered = true
	copied := *order
	return &copied, nil
}

type fakeGateway struct {
	payments map[string]*GatewayPayment
	calls    int
}

func (g *fakeGateway) FetchPayment(_ context.Context, ref string) (*GatewayPayment, error) {
	g.calls++
	p, ok := g.payments[ref]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return p, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupConfirm(status, linkedOrder string) (*Confirmer, *fakeLedger, *fakeGateway, uuid.UUID) {
	order := &models.Order{ID: uuid.New()}
	if linkedOrder == "" {
		linkedOrder = order.ID.String()
	}

	l := newFakeLedger(order)
	g := &fakeGateway{payments: map[string]*GatewayPayment{
		"pi_1": {ID: "pi_1", OrderID: linkedOrder, Status: status, PayerEmail: "payer@example.com"},
	}}
	return NewConfirmer(l, g, discardLogger()), l, g, order.ID
}

func TestConfirmGatewayPaymentSucceeded(t *testing.T) {
	c, l, _, orderID := setupConfirm(StatusSucceeded, "")

	confirmation, err := c.ConfirmGatewayPayment(context.Background(), orderID, "pi_1")
	if err != nil {
		t.Fatalf("ConfirmGatewayPayment: %v", err)
	}
	if confirmation.AlreadyPaid || !confirmation.Order.IsPaid {
		t.Errorf("Expected a fresh payment, got %+v", confirmation)
	}

	if len(l.paidWith) != 1 {
		t.Fatalf("Expected one MarkPaid call, got %d", len(l.paidWith))
	}
	receipt := l.paidWith[0].Gateway
	if receipt == nil || receipt.TransactionID != "pi_1" || receipt.PayerEmail != "payer@example.com" {
		t.Errorf("Unexpected receipt: %+v", l.paidWith[0])
	}
}

func TestConfirmGatewayPaymentMismatch(t *testing.T) {
	tests := []struct {
		name        string
		status      string
		linkedOrder string
	}{
		{"other order", StatusSucceeded, uuid.NewString()},
		{"not succeeded", "requires_payment_method", ""},
		{"processing", "processing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, l, _, orderID := setupConfirm(tt.status, tt.linkedOrder)

			_, err := c.ConfirmGatewayPayment(context.Background(), orderID, "pi_1")
			if !errors.Is(err, ErrPaymentMismatch) {
				t.Fatalf("Expected ErrPaymentMismatch, got %v", err)
			}
			if len(l.paidWith) != 0 {
				t.Error("Order must not be marked paid on mismatch")
			}
		})
	}
}

func TestConfirmGatewayPaymentAlreadyPaid(t *testing.T) {
	c, l, g, orderID := setupConfirm(StatusSucceeded, "")
	l.orders[orderID].IsPaid = true

	confirmation, err := c.ConfirmGatewayPayment(context.Background(), orderID, "pi_1")
	if err != nil {
		t.Fatalf("ConfirmGatewayPayment: %v", err)
	}
	if !confirmation.AlreadyPaid {
		t.Error("Expected AlreadyPaid")
	}
	if g.calls != 0 {
		t.Error("Gateway should not be queried for a paid order")
	}
}

func TestConfirmGatewayPaymentLosesRace(t *testing.T) {
	c, l, _, orderID := setupConfirm(StatusSucceeded, "")
	l.raceOnPay = true

	confirmation, err := c.ConfirmGatewayPayment(context.Background(), orderID, "pi_1")
	if err != nil {
		t.Fatalf("ConfirmGatewayPayment: %v", err)
	}
	if !confirmation.AlreadyPaid || !confirmation.Order.IsPaid {
		t.Errorf("Expected AlreadyPaid with a paid order, got %+v", confirmation)
	}
}

func TestConfirmGatewayPaymentErrors(t *testing.T) {
	c, _, _, orderID := setupConfirm(StatusSucceeded, "")

	if _, err := c.ConfirmGatewayPayment(context.Background(), uuid.New(), "pi_1"); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
	if _, err := c.ConfirmGatewayPayment(context.Background(), orderID, "pi_unknown"); !errors.Is(err, ErrPaymentNotFound) {
		t.Errorf("Expected ErrPaymentNotFound, got %v", err)
	}
}

func TestSettleManually(t *testing.T) {
	c, l, g, orderID := setupConfirm(StatusSucceeded, "")
	actor := uuid.New()

	order, err := c.SettleManually(context.Background(), orderID, actor, "cash at door")
	if err != nil {
		t.Fatalf("SettleManually: %v", err)
	}
	if order.PaymentResult == nil || order.PaymentResult.Cash == nil || order.PaymentResult.Cash.SettledBy != actor {
		t.Errorf("Expected cash receipt by actor, got %+v", order.PaymentResult)
	}
	if g.calls != 0 {
		t.Error("Manual settlement must not consult the gateway")
	}

	if _, err := c.SettleManually(context.Background(), orderID, actor, ""); !errors.Is(err, ledger.ErrAlreadyPaid) {
		t.Errorf("Expected ErrAlreadyPaid on repeat, got %v", err)
	}
	if len(l.paidWith) != 1 {
		t.Errorf("Expected one payment, got %d", len(l.paidWith))
	}

	if _, err := c.MarkDelivered(context.Background(), orderID); err != nil {
		t.Errorf("MarkDelivered: %v", err)
	}
}
