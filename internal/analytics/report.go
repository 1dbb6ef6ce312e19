package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MonthlySales struct {
	Month  time.Time       `json:"month"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	Orders int64           `json:"orders"`
}

type ProductSales struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type Report struct {
	VendorID     *uuid.UUID      `json:"vendor_id,omitempty"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Monthly      []MonthlySales  `json:"monthly"`
	TopProducts  []ProductSales  `json:"top_products"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalOrders  int64           `json:"total_orders"`
}

// GapFill returns one entry per month in [from, to), oldest first, taking
// amounts from sparse and zero for months it lacks.
func GapFill(from, to time.Time, sparse []MonthlySales) []MonthlySales {
	byMonth := make(map[time.Time]MonthlySales, len(sparse))
	for _, m := range sparse {
		byMonth[MonthStart(m.Month)] = m
	}

	filled := []MonthlySales{}
	for month := MonthStart(from); month.Before(to); month = month.AddDate(0, 1, 0) {
		entry, ok := byMonth[month]
		if !ok {
			entry = MonthlySales{Amount: decimal.Zero}
		}
		entry.Month = month
		entry.Label = month.Format("2006-01")
		filled = append(filled, entry)
	}
	return filled
}

func newReport(q Query, monthly []MonthlySales, top []ProductSales) *Report {
	filled := GapFill(q.From, q.To, monthly)

	total := decimal.Zero
	var orders int64
	for _, m := range filled {
		total = total.Add(m.Amount)
		orders += m.Orders
	}
	if top == nil {
		top = []ProductSales{}
	}

	return &Report{
		VendorID:     q.VendorID,
		From:         q.From,
		To:           q.To,
		Monthly:      filled,
		TopProducts:  top,
		TotalRevenue: total,
		TotalOrders:  orders,
	}
}
