// Package settings loads the store's pricing configuration and hands out
// immutable snapshots of it.
//
// Reload contract: Current returns the snapshot taken by the last successful
// Load or Reload. Callers read it once per operation and pass it down
// explicitly, so a concurrent Reload never changes a calculation halfway.
// A failed Reload keeps the previous snapshot.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/pricing"
	"github.com/shopspring/decimal"
)

type Provider struct {
	db      *sql.DB
	current atomic.Pointer[pricing.Config]
}

// NewProvider loads the initial snapshot.
func NewProvider(ctx context.Context, db *sql.DB) (*Provider, error) {
	p := &Provider{db: db}
	if err := p.Reload(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// NewStatic returns a provider pinned to cfg; Reload is a no-op.
func NewStatic(cfg pricing.Config) *Provider {
	p := &Provider{}
	p.current.Store(&cfg)
	return p
}

func (p *Provider) Current() pricing.Config {
	return *p.current.Load()
}

func (p *Provider) Reload(ctx context.Context) error {
	if p.db == nil {
		return nil
	}

	cfg, err := Load(ctx, p.db)
	if err != nil {
		return err
	}
	p.current.Store(&cfg)
	return nil
}

// Load reads the settings row, falling back to pricing.DefaultConfig when the
// store has not been configured yet.
func Load(ctx context.Context, q database.Querier) (pricing.Config, error) {
	var (
		taxRate decimal.Decimal
		raw     []byte
	)

	err := q.QueryRowContext(ctx,
		`SELECT tax_rate, delivery_options FROM store_settings WHERE id = 1`,
	).Scan(&taxRate, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.DefaultConfig(), nil
	}
	if err != nil {
		return pricing.Config{}, fmt.Errorf("load store settings: %w", err)
	}

	var options []pricing.DeliveryOption
	if err := json.Unmarshal(raw, &options); err != nil {
		return pricing.Config{}, fmt.Errorf("decode delivery options: %w", err)
	}
	if len(options) == 0 {
		return pricing.Config{}, pricing.ErrNoDeliveryOptions
	}

	return pricing.Config{TaxRate: taxRate, DeliveryOptions: options}, nil
}

// Save upserts the settings row. The provider picks it up on the next Reload.
func Save(ctx context.Context, q database.Querier, cfg pricing.Config) error {
	if len(cfg.DeliveryOptions) == 0 {
		return pricing.ErrNoDeliveryOptions
	}

	raw, err := json.Marshal(cfg.DeliveryOptions)
	if err != nil {
		return fmt.Errorf("encode delivery options: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO store_settings (id, tax_rate, delivery_options, updated_at)
		 VALUES (1, $1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET tax_rate = EXCLUDED.tax_rate,
		     delivery_options = EXCLUDED.delivery_options,
		     updated_at = NOW()`,
		cfg.TaxRate, string(raw))
	if err != nil {
		return fmt.Errorf("save store settings: %w", err)
	}
	return nil
}
