package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type PaymentResultKind string

const (
	PaymentResultGateway PaymentResultKind = "gateway"
	PaymentResultCash    PaymentResultKind = "cash"
)

// GatewayReceipt is what the payment gateway reported for a confirmed payment.
type GatewayReceipt struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	PayerEmail    string `json:"payer_email,omitempty"`
}

// CashReceipt records who settled an order outside the gateway.
type CashReceipt struct {
	SettledBy uuid.UUID `json:"settled_by"`
	Note      string    `json:"note,omitempty"`
}

// PaymentResult is stored as JSONB with a kind discriminant. Only the field
// matching Kind is set.
type PaymentResult struct {
	Kind    PaymentResultKind `json:"kind"`
	Gateway *GatewayReceipt   `json:"gateway,omitempty"`
	Cash    *CashReceipt      `json:"cash,omitempty"`
}

func GatewayPaymentResult(r GatewayReceipt) PaymentResult {
	return PaymentResult{Kind: PaymentResultGateway, Gateway: &r}
}

func CashPaymentResult(r CashReceipt) PaymentResult {
	return PaymentResult{Kind: PaymentResultCash, Cash: &r}
}

func (p PaymentResult) Validate() error {
	switch p.Kind {
	case PaymentResultGateway:
		if p.Gateway == nil || p.Cash != nil {
			return errors.New("gateway payment result needs exactly a gateway receipt")
		}
		if p.Gateway.TransactionID == "" {
			return errors.New("gateway receipt needs a transaction id")
		}
	case PaymentResultCash:
		if p.Cash == nil || p.Gateway != nil {
			return errors.New("cash payment result needs exactly a cash receipt")
		}
	default:
		return fmt.Errorf("unknown payment result kind %q", p.Kind)
	}
	return nil
}

func (p PaymentResult) Value() (driver.Value, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (p *PaymentResult) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan payment result: unsupported type %T", src)
	}

	var decoded PaymentResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("scan payment result: %w", err)
	}
	if err := decoded.Validate(); err != nil {
		return fmt.Errorf("scan payment result: %w", err)
	}
	*p = decoded
	return nil
}
