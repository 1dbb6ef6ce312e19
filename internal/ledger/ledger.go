// Package ledger owns orders: creation for registered and guest buyers, and
// the paid and delivered state transitions.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/inventory"
	"github.com/safar/marketplace-orders/internal/metrics"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/outbox"
	"github.com/safar/marketplace-orders/internal/pricing"
	"github.com/safar/marketplace-orders/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SettingsSource hands out the current pricing snapshot.
type SettingsSource interface {
	Current() pricing.Config
}

type Ledger struct {
	db              *sql.DB
	settings        SettingsSource
	adjustInventory bool
	txOptions       database.TxOptions
	now             func() time.Time
	logger          *slog.Logger
	tracer          trace.Tracer
}

type Option func(*Ledger)

// WithInventoryAdjustment turns stock decrements on payment on or off.
func WithInventoryAdjustment(enabled bool) Option {
	return func(l *Ledger) { l.adjustInventory = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithTxOptions(opts database.TxOptions) Option {
	return func(l *Ledger) { l.txOptions = opts }
}

func New(db *sql.DB, settings SettingsSource, opts ...Option) *Ledger {
	l := &Ledger{
		db:              db,
		settings:        settings,
		adjustInventory: true,
		txOptions:       database.DefaultTxOptions(),
		now:             time.Now,
		logger:          slog.Default(),
		tracer:          otel.Tracer("github.com/safar/marketplace-orders/internal/ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) CreateRegisteredOrder(ctx context.Context, userID uuid.UUID, cart Cart) (order *models.Order, err error) {
	ctx, finish := l.observe(ctx, "create_order", attribute.String("buyer.kind", string(models.BuyerRegistered)))
	defer func() { finish(err) }()

	if userID == uuid.Nil {
		return nil, newValidationError("buyer.user_id", "is required")
	}
	return l.create(ctx, models.RegisteredBuyer(userID), cart)
}

// CreateGuestOrder never reads or writes the users table.
func (l *Ledger) CreateGuestOrder(ctx context.Context, guest models.Guest, cart Cart) (order *models.Order, err error) {
	ctx, finish := l.observe(ctx, "create_order", attribute.String("buyer.kind", string(models.BuyerGuest)))
	defer func() { finish(err) }()

	if err := validateStruct(guest); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			prefixed := &ValidationError{Fields: make(map[string]string, len(verr.Fields))}
			for k, v := range verr.Fields {
				prefixed.Fields["buyer."+k] = v
			}
			return nil, prefixed
		}
		return nil, err
	}
	return l.create(ctx, models.GuestBuyer(guest.Name, guest.Email), cart)
}

func (l *Ledger) create(ctx context.Context, buyer models.Buyer, cart Cart) (*models.Order, error) {
	order, err := l.buildOrder(buyer, cart)
	if err != nil {
		return nil, err
	}

	err = database.WithRetry(ctx, l.db, l.txOptions, func(tx *sql.Tx) error {
		if !buyer.IsGuest() {
			exists, err := store.UserExists(ctx, tx, buyer.UserID)
			if err != nil {
				return err
			}
			if !exists {
				return database.ErrUserNotFound
			}
		}
		return store.InsertOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"buyer_kind", buyer.Kind,
		"total_price", order.TotalPrice.String(),
	)
	return order, nil
}

// buildOrder validates the cart and prices it against one settings snapshot.
func (l *Ledger) buildOrder(buyer models.Buyer, cart Cart) (*models.Order, error) {
	if err := validateStruct(cart); err != nil {
		return nil, err
	}

	items, err := cart.lineItems()
	if err != nil {
		return nil, err
	}

	now := l.now()
	result, err := pricing.Calculate(pricing.LinesFromItems(items), cart.ShippingAddress, cart.DeliveryOptionIndex, l.settings.Current(), now)
	if errors.Is(err, pricing.ErrInvalidDeliveryOption) {
		return nil, newValidationError("delivery_option_index", "is out of range")
	}
	if err != nil {
		return nil, fmt.Errorf("price order: %w", err)
	}
	if result.TotalPrice.GreaterThan(maxAmount) {
		return nil, newValidationError("items", "order total must be at most "+maxAmount.String())
	}

	return &models.Order{
		ID:                   uuid.New(),
		SchemaVersion:        models.OrderSchemaVersion,
		Buyer:                buyer,
		Items:                items,
		ShippingAddress:      *cart.ShippingAddress,
		PaymentMethod:        cart.PaymentMethod,
		ItemsPrice:           result.ItemsPrice,
		ShippingPrice:        *result.ShippingPrice,
		TaxPrice:             *result.TaxPrice,
		TotalPrice:           result.TotalPrice,
		ExpectedDeliveryDate: result.ExpectedDeliveryDate,
	}, nil
}

func (l *Ledger) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return store.GetOrder(ctx, l.db, orderID)
}

// ListBuyerOrders pages a registered buyer's orders, newest first.
func (l *Ledger) ListBuyerOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage[*models.Order], error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	page, err := store.ListOrdersCursor(ctx, l.db, userID, cursor, limit)
	if errors.Is(err, store.ErrInvalidCursor) {
		return nil, newValidationError("cursor", "is invalid")
	}
	if err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []*models.Order{}
	}
	return page, nil
}

// MarkPaid records a payment exactly once. The order row is locked and
// re-read, stock is decremented and the notification is queued in the same
// transaction, so a failure at any step leaves the order unpaid and stock
// untouched. Stock failures are reported as ErrOrderNotCompleted.
func (l *Ledger) MarkPaid(ctx context.Context, orderID uuid.UUID, result models.PaymentResult) (order *models.Order, err error) {
	ctx, finish := l.observe(ctx, "mark_paid",
		attribute.String("order.id", orderID.String()),
		attribute.String("payment.kind", string(result.Kind)),
	)
	defer func() { finish(err) }()

	if err := result.Validate(); err != nil {
		return nil, newValidationError("payment_result", err.Error())
	}

	err = database.WithRetry(ctx, l.db, l.txOptions, func(tx *sql.Tx) error {
		current, err := store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if current.IsPaid {
			return ErrAlreadyPaid
		}

		paidAt := l.now().UTC()
		updated, err := store.SetOrderPaid(ctx, tx, orderID, result, paidAt)
		if err != nil {
			return err
		}
		if !updated {
			return ErrAlreadyPaid
		}

		if l.adjustInventory {
			if err := inventory.Adjust(ctx, tx, current.Items); err != nil {
				return fmt.Errorf("%w: %w", ErrOrderNotCompleted, err)
			}
		}

		current.IsPaid = true
		current.PaidAt = &paidAt
		current.PaymentResult = &result

		if current.Buyer.Email() != "" {
			if err := outbox.Insert(ctx, tx, uuid.New(), TopicOrderPaid, current.ID.String(), orderPaidEvent(current)); err != nil {
				return err
			}
		}

		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "order paid",
		"order_id", order.ID,
		"payment_kind", result.Kind,
		"inventory_adjusted", l.adjustInventory,
	)
	return order, nil
}

// MarkDelivered is one-way and requires a paid order.
func (l *Ledger) MarkDelivered(ctx context.Context, orderID uuid.UUID) (order *models.Order, err error) {
	ctx, finish := l.observe(ctx, "mark_delivered", attribute.String("order.id", orderID.String()))
	defer func() { finish(err) }()

	err = database.WithRetry(ctx, l.db, l.txOptions, func(tx *sql.Tx) error {
		current, err := store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !current.IsPaid {
			return ErrNotPaid
		}
		if current.IsDelivered {
			return ErrAlreadyDelivered
		}

		deliveredAt := l.now().UTC()
		updated, err := store.SetOrderDelivered(ctx, tx, orderID, deliveredAt)
		if err != nil {
			return err
		}
		if !updated {
			return ErrAlreadyDelivered
		}

		current.IsDelivered = true
		current.DeliveredAt = &deliveredAt
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "order delivered", "order_id", order.ID)
	return order, nil
}

// observe opens a span for op and returns a func that closes it, counts the
// outcome and logs unexpected failures.
func (l *Ledger) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := l.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		defer span.End()

		result := outcome(err)
		metrics.RecordOrderOperation(op, result)
		if err == nil {
			return
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		if result == "error" {
			l.logger.ErrorContext(ctx, "order operation failed", "operation", op, "error", err)
		} else {
			l.logger.WarnContext(ctx, "order operation rejected", "operation", op, "outcome", result, "error", err)
		}
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrAlreadyPaid):
		return "already_paid"
	case errors.Is(err, ErrNotPaid):
		return "not_paid"
	case errors.Is(err, ErrAlreadyDelivered):
		return "already_delivered"
	case errors.Is(err, ErrOrderNotCompleted):
		return "not_completed"
	case errors.Is(err, database.ErrOrderNotFound), errors.Is(err, database.ErrUserNotFound):
		return "not_found"
	default:
		return "error"
	}
}
