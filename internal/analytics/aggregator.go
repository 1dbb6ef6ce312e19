// Package analytics builds monthly sales and top-product reports for one
// vendor or the whole store. Only paid orders count as sales.
//
// Reports are cached for the aggregator's TTL (ANALYTICS_CACHE_TTL) and are
// not invalidated when an order is paid. A new sale shows up once the cached
// entry expires.
package analytics

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/cache"
	"github.com/safar/marketplace-orders/internal/metrics"
	"github.com/safar/marketplace-orders/internal/store"
	"github.com/safar/marketplace-orders/internal/vendororders"
	"github.com/shopspring/decimal"
)

type Aggregator struct {
	db     *sql.DB
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewAggregator builds an aggregator. c may be nil to disable caching.
func NewAggregator(db *sql.DB, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{db: db, cache: c, ttl: ttl, logger: logger}
}

// Report aggregates in SQL and falls back to summing the matching orders in Go
// when the aggregation query fails. Both paths produce the same report.
func (a *Aggregator) Report(ctx context.Context, q Query) (*Report, error) {
	key := a.cacheKey(q)
	if report, ok := a.cached(ctx, key); ok {
		metrics.RecordAnalyticsSource("cache")
		return report, nil
	}

	var productIDs []uuid.UUID
	if q.VendorID != nil {
		ids, err := store.ProductIDsByVendor(ctx, a.db, *q.VendorID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return newReport(q, nil, nil), nil
		}
		productIDs = ids
	}

	report, err := a.aggregate(ctx, q, productIDs)
	source := "sql"
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		a.logger.WarnContext(ctx, "sales aggregation failed, summing orders instead", "scope", q.scope(), "error", err)

		report, err = a.sumOrders(ctx, q, productIDs)
		if err != nil {
			return nil, err
		}
		source = "fallback"
	}
	metrics.RecordAnalyticsSource(source)

	a.store(ctx, key, report)
	return report, nil
}

func (a *Aggregator) aggregate(ctx context.Context, q Query, productIDs []uuid.UUID) (*Report, error) {
	totals, err := store.MonthlySales(ctx, a.db, productIDs, q.From, q.To)
	if err != nil {
		return nil, err
	}
	products, err := store.TopProducts(ctx, a.db, productIDs, q.From, q.To, q.TopN)
	if err != nil {
		return nil, err
	}

	monthly := make([]MonthlySales, len(totals))
	for i, t := range totals {
		monthly[i] = MonthlySales{Month: t.Month, Amount: t.Amount, Orders: t.Orders}
	}

	top := make([]ProductSales, len(products))
	for i, p := range products {
		top[i] = ProductSales{ProductID: p.ProductID, Name: p.Name, Quantity: p.Quantity, Revenue: p.Revenue}
	}

	return newReport(q, monthly, top), nil
}

// sumOrders loads every matching paid order and totals its in-scope items.
func (a *Aggregator) sumOrders(ctx context.Context, q Query, productIDs []uuid.UUID) (*Report, error) {
	orders, err := store.ListPaidOrdersBetween(ctx, a.db, productIDs, q.From, q.To)
	if err != nil {
		return nil, err
	}

	var owned vendororders.ProductSet
	if productIDs != nil {
		owned = vendororders.NewProductSet(productIDs)
	}

	byMonth := map[time.Time]*MonthlySales{}
	byProduct := map[uuid.UUID]*ProductSales{}
	for _, order := range orders {
		items := order.Items
		if owned != nil {
			items = vendororders.Project(order, owned).Items
		}
		if len(items) == 0 {
			continue
		}

		month := MonthStart(order.CreatedAt)
		m, ok := byMonth[month]
		if !ok {
			m = &MonthlySales{Month: month, Amount: decimal.Zero}
			byMonth[month] = m
		}
		m.Orders++

		for _, item := range items {
			m.Amount = m.Amount.Add(item.Subtotal())

			p, ok := byProduct[item.ProductID]
			if !ok {
				p = &ProductSales{ProductID: item.ProductID, Name: item.Name, Revenue: decimal.Zero}
				byProduct[item.ProductID] = p
			}
			if item.Name > p.Name {
				p.Name = item.Name
			}
			p.Quantity += int64(item.Quantity)
			p.Revenue = p.Revenue.Add(item.Subtotal())
		}
	}

	monthly := make([]MonthlySales, 0, len(byMonth))
	for _, m := range byMonth {
		monthly = append(monthly, *m)
	}

	top := make([]ProductSales, 0, len(byProduct))
	for _, p := range byProduct {
		top = append(top, *p)
	}
	RankProducts(top)
	if len(top) > q.TopN {
		top = top[:q.TopN]
	}

	return newReport(q, monthly, top), nil
}

// RankProducts orders by units sold, then revenue, both descending, then by
// product id so equal products always rank the same way.
func RankProducts(products []ProductSales) {
	sort.Slice(products, func(i, j int) bool {
		a, b := products[i], products[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if c := a.Revenue.Cmp(b.Revenue); c != 0 {
			return c > 0
		}
		return bytes.Compare(a.ProductID[:], b.ProductID[:]) < 0
	})
}

func (a *Aggregator) cacheKey(q Query) string {
	if a.cache == nil {
		return ""
	}
	return a.cache.Key("analytics", fmt.Sprintf("%s:%s:%s:%d",
		q.scope(), q.From.Format("2006-01"), q.To.Format("2006-01"), q.TopN))
}

func (a *Aggregator) cached(ctx context.Context, key string) (*Report, bool) {
	if a.cache == nil {
		return nil, false
	}

	value, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.WarnContext(ctx, "analytics cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var report Report
	if err := json.Unmarshal([]byte(value), &report); err != nil {
		a.logger.WarnContext(ctx, "analytics cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	return &report, true
}

func (a *Aggregator) store(ctx context.Context, key string, report *Report) {
	if a.cache == nil || a.ttl <= 0 {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		a.logger.WarnContext(ctx, "analytics report not cacheable", "error", err)
		return
	}
	if err := a.cache.Set(ctx, key, string(data), a.ttl); err != nil {
		a.logger.WarnContext(ctx, "analytics cache write failed", "key", key, "error", err)
	}
}
