package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/safar/marketplace-orders/internal/config"
	"github.com/shopspring/decimal"
)

const StatusSucceeded = "succeeded"

var (
	ErrPaymentNotFound    = errors.New("payment not found at gateway")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// GatewayPayment is the gateway's authoritative record of a payment.
type GatewayPayment struct {
	ID         string
	OrderID    string
	Status     string
	PayerEmail string
	Amount     decimal.Decimal
	Currency   string
}

type Gateway interface {
	FetchPayment(ctx context.Context, ref string) (*GatewayPayment, error)
}

// HTTPGateway reads payment intents from a Stripe-style REST API. The order id
// is expected in the intent's metadata.
type HTTPGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewHTTPGateway(cfg config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

type paymentIntent struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	ReceiptEmail string            `json:"receipt_email"`
	Metadata     map[string]string `json:"metadata"`
}

func (g *HTTPGateway) FetchPayment(ctx context.Context, ref string) (*GatewayPayment, error) {
	if ref == "" {
		return nil, ErrPaymentNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/payment_intents/"+url.PathEscape(ref), nil)
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPaymentNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var intent paymentIntent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}

	return &GatewayPayment{
		ID:         intent.ID,
		OrderID:    intent.Metadata["order_id"],
		Status:     intent.Status,
		PayerEmail: intent.ReceiptEmail,
		Amount:     decimal.New(intent.Amount, -2),
		Currency:   intent.Currency,
	}, nil
}
