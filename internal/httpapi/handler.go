// Package httpapi exposes the order core over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/analytics"
	"github.com/safar/marketplace-orders/internal/ledger"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/payment"
	"github.com/safar/marketplace-orders/internal/pricing"
	"github.com/safar/marketplace-orders/internal/store"
	"github.com/safar/marketplace-orders/internal/vendororders"
	"github.com/shopspring/decimal"
)

type Orders interface {
	CreateRegisteredOrder(ctx context.Context, userID uuid.UUID, cart ledger.Cart) (*models.Order, error)
	CreateGuestOrder(ctx context.Context, guest models.Guest, cart ledger.Cart) (*models.Order, error)
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage[*models.Order], error)
}

type Payments interface {
	ConfirmGatewayPayment(ctx context.Context, orderID uuid.UUID, ref string) (*payment.Confirmation, error)
	SettleManually(ctx context.Context, orderID, actor uuid.UUID, note string) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type VendorOrders interface {
	OrdersForVendor(ctx context.Context, vendorID uuid.UUID, page, pageSize int) (*store.OffsetPage[vendororders.VendorOrder], error)
	OwnedProducts(ctx context.Context, vendorID uuid.UUID) (vendororders.ProductSet, error)
}

type Analytics interface {
	Report(ctx context.Context, q analytics.Query) (*analytics.Report, error)
}

type Settings interface {
	Current() pricing.Config
	Reload(ctx context.Context) error
}

type Handler struct {
	orders    Orders
	payments  Payments
	vendors   VendorOrders
	analytics Analytics
	settings  Settings

	paymentStepURL    string
	paymentSuccessURL string
	now               func() time.Time
}

type Deps struct {
	Orders    Orders
	Payments  Payments
	Vendors   VendorOrders
	Analytics Analytics
	Settings  Settings
	// PaymentStepURL and PaymentSuccessURL are fmt templates taking the order id.
	PaymentStepURL    string
	PaymentSuccessURL string
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		orders:            deps.Orders,
		payments:          deps.Payments,
		vendors:           deps.Vendors,
		analytics:         deps.Analytics,
		settings:          deps.Settings,
		paymentStepURL:    deps.PaymentStepURL,
		paymentSuccessURL: deps.PaymentSuccessURL,
		now:               time.Now,
	}
}

type quoteLine struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type quoteRequest struct {
	Items               []quoteLine             `json:"items"`
	ShippingAddress     *models.ShippingAddress `json:"shipping_address"`
	DeliveryOptionIndex *int                    `json:"delivery_option_index"`
}

// Quote prices a cart. Without an address only the items price is known.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	lines := make([]pricing.Line, len(req.Items))
	for i, it := range req.Items {
		if it.Price.IsNegative() || it.Quantity < 0 {
			writeError(w, http.StatusBadRequest, "invalid_item", fmt.Sprintf("items[%d]: price and quantity must not be negative", i))
			return
		}
		lines[i] = pricing.Line{Price: it.Price, Quantity: it.Quantity}
	}

	result, err := pricing.Calculate(lines, req.ShippingAddress, req.DeliveryOptionIndex, h.settings.Current(), h.now())
	if errors.Is(err, pricing.ErrInvalidDeliveryOption) {
		writeError(w, http.StatusBadRequest, "invalid_delivery_option", err.Error())
		return
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type createOrderRequest struct {
	ledger.Cart
	Guest *models.Guest `json:"guest,omitempty"`
}

type createOrderResponse struct {
	OrderID uuid.UUID `json:"orderId"`
}

// CreateOrder places a registered order for an authenticated caller and a
// guest order otherwise.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	var (
		order *models.Order
		err   error
	)
	if principal, ok := principalFrom(r.Context()); ok {
		order, err = h.orders.CreateRegisteredOrder(r.Context(), principal.UserID, req.Cart)
	} else {
		if req.Guest == nil {
			writeError(w, http.StatusBadRequest, "guest_required", "guest name and email are required without a login")
			return
		}
		order, err = h.orders.CreateGuestOrder(r.Context(), *req.Guest, req.Cart)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "order created", "order_id", order.ID, "guest", order.Buyer.IsGuest())
	writeJSON(w, http.StatusCreated, createOrderResponse{OrderID: order.ID})
}

// GetOrder returns an order. Registered orders are visible to their buyer and
// to staff; a guest order's id is its only credential.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	if !order.Buyer.IsGuest() {
		principal, ok := principalFrom(r.Context())
		if !ok {
			writeErr(w, r, errUnauthenticated)
			return
		}
		if principal.UserID != order.Buyer.UserID && principal.Role != RoleAdmin {
			// Same response as a missing order so ids cannot be guessed.
			writeErr(w, r, fmt.Errorf("order %s: %w", orderID, errNotVisible))
			return
		}
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())

	limit, err := intQuery(r, "limit")
	if err != nil {
		writeErr(w, r, err)
		return
	}

	page, err := h.orders.ListBuyerOrders(r.Context(), principal.UserID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// PaymentReturn is where the gateway sends the buyer back. The buyer lands on
// the success page once the payment is confirmed, and back on the payment
// step when the gateway record does not confirm this order.
func (h *Handler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	stepURL := fmt.Sprintf(h.paymentStepURL, orderID)
	ref := r.URL.Query().Get("payment_intent")
	if ref == "" {
		http.Redirect(w, r, stepURL, http.StatusSeeOther)
		return
	}

	confirmation, err := h.payments.ConfirmGatewayPayment(r.Context(), orderID, ref)
	switch {
	case errors.Is(err, payment.ErrPaymentMismatch), errors.Is(err, payment.ErrPaymentNotFound):
		slog.WarnContext(r.Context(), "payment not confirmed", "order_id", orderID, "payment_intent", ref, "error", err)
		http.Redirect(w, r, stepURL, http.StatusSeeOther)
		return
	case err != nil:
		writeErr(w, r, err)
		return
	}

	if confirmation.AlreadyPaid {
		slog.InfoContext(r.Context(), "payment already confirmed", "order_id", orderID)
	}
	http.Redirect(w, r, fmt.Sprintf(h.paymentSuccessURL, orderID), http.StatusSeeOther)
}

type settleRequest struct {
	Note string `json:"note"`
}

// MarkPaid settles an order by hand. Vendors may only settle orders holding
// one of their products and get the vendor-scoped view back.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	principal, _ := principalFrom(r.Context())
	owned, err := h.staffScope(r.Context(), principal, orderID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	order, err := h.payments.SettleManually(r.Context(), orderID, principal.UserID, req.Note)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeStaffOrder(w, order, owned)
}

func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	principal, _ := principalFrom(r.Context())
	owned, err := h.staffScope(r.Context(), principal, orderID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	order, err := h.payments.MarkDelivered(r.Context(), orderID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeStaffOrder(w, order, owned)
}

// staffScope returns nil for admins. For a vendor it returns their products,
// and reports the order as missing unless it holds one of them.
func (h *Handler) staffScope(ctx context.Context, principal *Principal, orderID uuid.UUID) (vendororders.ProductSet, error) {
	if principal.Role != RoleVendor {
		return nil, nil
	}

	owned, err := h.vendors.OwnedProducts(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !owned.Holds(order) {
		return nil, fmt.Errorf("order %s: %w", orderID, errNotVisible)
	}
	return owned, nil
}

func writeStaffOrder(w http.ResponseWriter, order *models.Order, owned vendororders.ProductSet) {
	if owned != nil {
		writeJSON(w, http.StatusOK, vendororders.Project(order, owned))
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) VendorOrders(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())

	page, err := intQuery(r, "page")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	pageSize, err := intQuery(r, "page_size")
	if err != nil {
		writeErr(w, r, err)
		return
	}

	result, err := h.vendors.OrdersForVendor(r.Context(), principal.UserID, page, pageSize)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) VendorAnalytics(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())
	h.report(w, r, analytics.ForVendor(principal.UserID))
}

// StoreAnalytics reports the whole store, or one vendor when vendor_id is set.
func (h *Handler) StoreAnalytics(w http.ResponseWriter, r *http.Request) {
	var opts []analytics.Option
	if raw := r.URL.Query().Get("vendor_id"); raw != "" {
		vendorID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_vendor_id", err.Error())
			return
		}
		opts = append(opts, analytics.ForVendor(vendorID))
	}
	h.report(w, r, opts...)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request, opts ...analytics.Option) {
	rangeOpts, err := analyticsOptions(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	q, err := analytics.NewQuery(h.now(), append(opts, rangeOpts...)...)
	if err != nil {
		writeErr(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	report, err := h.analytics.Report(r.Context(), q)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// analyticsOptions reads from and to as inclusive YYYY-MM months, plus top.
func analyticsOptions(r *http.Request) ([]analytics.Option, error) {
	var opts []analytics.Option
	query := r.URL.Query()

	from, to := query.Get("from"), query.Get("to")
	if from != "" || to != "" {
		if from == "" || to == "" {
			return nil, fmt.Errorf("%w: from and to must be given together", errBadRequest)
		}
		start, err := time.Parse("2006-01", from)
		if err != nil {
			return nil, fmt.Errorf("%w: from: %v", errBadRequest, err)
		}
		last, err := time.Parse("2006-01", to)
		if err != nil {
			return nil, fmt.Errorf("%w: to: %v", errBadRequest, err)
		}
		opts = append(opts, analytics.WithRange(start, last.AddDate(0, 1, 0)))
	}

	if top := query.Get("top"); top != "" {
		n, err := strconv.Atoi(top)
		if err != nil {
			return nil, fmt.Errorf("%w: top: %v", errBadRequest, err)
		}
		opts = append(opts, analytics.WithTopN(n))
	}
	return opts, nil
}

func (h *Handler) ReloadSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.Reload(r.Context()); err != nil {
		writeErr(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "store settings reloaded")
	writeJSON(w, http.StatusOK, h.settings.Current())
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_id", err.Error())
		return uuid.Nil, false
	}
	return orderID, true
}

// intQuery returns 0 for an absent parameter.
func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return n, nil
}
