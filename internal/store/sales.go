package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/shopspring/decimal"
)

type MonthlyTotal struct {
	Month  time.Time
	Amount decimal.Decimal
	Orders int64
}

type ProductTotal struct {
	ProductID uuid.UUID
	Name      string
	Quantity  int64
	Revenue   decimal.Decimal
}

// productFilter is NULL for store-wide queries.
func productFilter(productIDs []uuid.UUID) any {
	if productIDs == nil {
		return nil
	}
	return uuidArray(productIDs)
}

// MonthlySales sums price*quantity of paid line items per UTC calendar month.
// Months without sales are absent; callers gap-fill.
func MonthlySales(ctx context.Context, q database.Querier, productIDs []uuid.UUID, from, to time.Time) ([]MonthlyTotal, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT date_trunc('month', o.created_at AT TIME ZONE 'UTC') AS month,
		        SUM(oi.price * oi.quantity) AS amount,
		        COUNT(DISTINCT o.id) AS orders
		 FROM orders o
		 JOIN order_items oi ON oi.order_id = o.id
		 WHERE o.is_paid
		   AND o.created_at >= $1 AND o.created_at < $2
		   AND ($3::uuid[] IS NULL OR oi.product_id = ANY($3::uuid[]))
		 GROUP BY 1
		 ORDER BY 1`,
		from, to, productFilter(productIDs))
	if err != nil {
		return nil, fmt.Errorf("aggregate monthly sales: %w", err)
	}
	defer rows.Close()

	var totals []MonthlyTotal
	for rows.Next() {
		var total MonthlyTotal
		if err := rows.Scan(&total.Month, &total.Amount, &total.Orders); err != nil {
			return nil, fmt.Errorf("scan monthly sales: %w", err)
		}
		m := total.Month
		total.Month = time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
		totals = append(totals, total)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return totals, nil
}

// TopProducts ranks products by units sold, then revenue, then product id. A
// product renamed between orders reports its byte-wise greatest name.
func TopProducts(ctx context.Context, q database.Querier, productIDs []uuid.UUID, from, to time.Time, limit int) ([]ProductTotal, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT oi.product_id,
		        MAX(oi.name COLLATE "C") AS name,
		        SUM(oi.quantity) AS quantity,
		        SUM(oi.price * oi.quantity) AS revenue
		 FROM orders o
		 JOIN order_items oi ON oi.order_id = o.id
		 WHERE o.is_paid
		   AND o.created_at >= $1 AND o.created_at < $2
		   AND ($3::uuid[] IS NULL OR oi.product_id = ANY($3::uuid[]))
		 GROUP BY oi.product_id
		 ORDER BY quantity DESC, revenue DESC, oi.product_id ASC
		 LIMIT $4`,
		from, to, productFilter(productIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("aggregate top products: %w", err)
	}
	defer rows.Close()

	var totals []ProductTotal
	for rows.Next() {
		var total ProductTotal
		if err := rows.Scan(&total.ProductID, &total.Name, &total.Quantity, &total.Revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		totals = append(totals, total)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return totals, nil
}
