// Package inventory applies the stock effect of a paid order.
package inventory

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/store"
)

type Decrement struct {
	ProductID uuid.UUID
	Quantity  int
}

// Plan merges line items per product and orders them by product id, so two
// transactions touching the same products always lock rows in the same order.
// Zero-quantity lines are dropped.
func Plan(items []models.OrderLineItem) []Decrement {
	totals := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		totals[item.ProductID] += item.Quantity
	}

	plan := make([]Decrement, 0, len(totals))
	for id, quantity := range totals {
		plan = append(plan, Decrement{ProductID: id, Quantity: quantity})
	}
	sort.Slice(plan, func(i, j int) bool {
		return bytes.Compare(plan[i].ProductID[:], plan[j].ProductID[:]) < 0
	})
	return plan
}

// Adjust decrements stock for every line of an order inside tx. It is all or
// nothing: the first failing product aborts, and the caller's rollback undoes
// the decrements already applied.
func Adjust(ctx context.Context, tx *sql.Tx, items []models.OrderLineItem) error {
	for _, d := range Plan(items) {
		if err := store.DecrementStock(ctx, tx, d.ProductID, d.Quantity); err != nil {
			return fmt.Errorf("product %s: %w", d.ProductID, err)
		}
	}
	return nil
}
